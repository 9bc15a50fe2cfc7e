package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"smartclass/internal/domain"
)

// MaxAssetSize bounds a single upload.
const MaxAssetSize = 25 << 20

// AssetScheme prefixes asset references in image and video src properties.
const AssetScheme = "asset://"

var (
	ErrAssetTooLarge    = errors.New("asset exceeds size limit")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrMalformedDataURL = errors.New("malformed data URL")
	ErrAssetEmpty       = errors.New("asset is empty")
)

// ─────────────────────────────────────────────────────────────
// Asset Service: uploads behind the file manager port
// ─────────────────────────────────────────────────────────────

type AssetService struct {
	blobs   domain.BlobStore
	emitter EventEmitter
}

func NewAssetService(blobs domain.BlobStore, emitter EventEmitter) *AssetService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &AssetService{blobs: blobs, emitter: emitter}
}

// Upload stores an image or video. The content type is sniffed when the
// caller does not know it.
func (s *AssetService) Upload(ctx context.Context, name, contentType string, data []byte) (*domain.Asset, error) {
	if len(data) == 0 {
		return nil, ErrAssetEmpty
	}
	if len(data) > MaxAssetSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrAssetTooLarge, len(data))
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, contentType)
	}
	if !strings.HasPrefix(mediaType, "image/") && !strings.HasPrefix(mediaType, "video/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mediaType)
	}

	a := &domain.Asset{
		Key:         uuid.New().String() + assetExt(name, mediaType),
		Name:        filepath.Base(name),
		ContentType: mediaType,
		Size:        int64(len(data)),
		Data:        data,
	}
	if err := s.blobs.Put(ctx, a); err != nil {
		return nil, fmt.Errorf("store asset: %w", err)
	}
	s.emitter.Emit(ctx, domain.EventAssetsChanged, a.Key)
	return a, nil
}

// UploadDataURL stores a base64 data URL such as the ones produced by the
// canvas paste handler.
func (s *AssetService) UploadDataURL(ctx context.Context, name, dataURL string) (*domain.Asset, error) {
	contentType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return s.Upload(ctx, name, contentType, data)
}

func (s *AssetService) Get(ctx context.Context, key string) (*domain.Asset, error) {
	return s.blobs.Get(ctx, key)
}

func (s *AssetService) List(ctx context.Context) ([]domain.Asset, error) {
	return s.blobs.List(ctx)
}

func (s *AssetService) Delete(ctx context.Context, key string) error {
	if err := s.blobs.Delete(ctx, key); err != nil {
		return err
	}
	s.emitter.Emit(ctx, domain.EventAssetsChanged, key)
	return nil
}

// DataURL returns the asset encoded as a data URL.
func (s *AssetService) DataURL(ctx context.Context, key string) (string, error) {
	a, err := s.blobs.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data), nil
}

// AssetKey extracts the key from an "asset://" src. ok is false for any
// other src.
func AssetKey(src string) (key string, ok bool) {
	if !strings.HasPrefix(src, AssetScheme) {
		return "", false
	}
	key = strings.TrimPrefix(src, AssetScheme)
	return key, key != ""
}

// Unreferenced returns the keys of assets no element src points at.
func (s *AssetService) Unreferenced(ctx context.Context, elements []domain.Element) ([]string, error) {
	assets, err := s.blobs.List(ctx)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool)
	for _, el := range elements {
		if key, ok := AssetKey(el.Media().Src); ok {
			used[key] = true
		}
	}
	var out []string
	for _, a := range assets {
		if !used[a.Key] {
			out = append(out, a.Key)
		}
	}
	return out, nil
}

func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrMalformedDataURL
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrMalformedDataURL
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

func assetExt(name, mediaType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
