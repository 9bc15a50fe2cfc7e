package domain

import (
	"context"
	"errors"
	"time"
)

var ErrAssetNotFound = errors.New("asset not found")

// Asset is an uploaded file referenced by image/video elements as "asset://<key>".
type Asset struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BlobStore is the file manager port. Adapters: SQL table, disk, memory.
type BlobStore interface {
	Put(ctx context.Context, a *Asset) error
	Get(ctx context.Context, key string) (*Asset, error)
	List(ctx context.Context) ([]Asset, error)
	Delete(ctx context.Context, key string) error
}
