package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"smartclass/internal/domain"
	"smartclass/internal/service"
	"smartclass/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// SaveGuard tests
// ─────────────────────────────────────────────────────────────

func TestSaveGuard_Run(t *testing.T) {
	var g service.SaveGuard

	release := make(chan struct{})
	started := make(chan struct{})
	go g.Run("p-1", func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	if !g.Busy("p-1") {
		t.Fatal("expected p-1 to be busy")
	}
	if err := g.Run("p-1", func() error { return nil }); !errors.Is(err, service.ErrSaveInProgress) {
		t.Fatalf("second save of p-1: err = %v", err)
	}
	ran := false
	if err := g.Run("p-2", func() error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("save of another project: ran=%v err=%v", ran, err)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if g.Busy("p-1") {
		t.Fatal("expected p-1 to be released")
	}
}

func TestSaveGuard_ReturnsFnError(t *testing.T) {
	var g service.SaveGuard
	boom := errors.New("boom")
	if err := g.Run("p", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if g.Busy("p") {
		t.Fatal("guard not released after failure")
	}
}

func TestSaveGuard_WaitHonoursContext(t *testing.T) {
	var g service.SaveGuard
	release := make(chan struct{})
	started := make(chan struct{})
	go g.Run("p", func() error {
		close(started)
		<-release
		return nil
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Emitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "test:event" {
		t.Errorf("expected 'test:event', got %q", m.Events[0].Event)
	}
	if got := m.Named("test:event2"); len(got) != 1 {
		t.Errorf("Named returned %d events", len(got))
	}
}

func TestFanoutEmitter_ForwardsToAll(t *testing.T) {
	a, b := &service.MockEmitter{}, &service.MockEmitter{}
	f := service.FanoutEmitter{a, nil, b}

	f.Emit(context.Background(), "x", 1)

	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Errorf("a=%d b=%d, want 1 each", len(a.Events), len(b.Events))
	}
}

// ─────────────────────────────────────────────────────────────
// WindowSettingsService tests
// ─────────────────────────────────────────────────────────────

type mapSettings map[string]string

func (m mapSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapSettings) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func TestWindowSettings_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := service.NewWindowSettingsService(mapSettings{})

	if got := s.LoadWindowSize(ctx); got.Width != 1440 || got.Height != 900 {
		t.Errorf("defaults = %+v", got)
	}
	if err := s.SaveWindowSize(ctx, 1600, 1000); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadWindowSize(ctx); got.Width != 1600 || got.Height != 1000 {
		t.Errorf("saved size = %+v", got)
	}

	// too small to be useful
	s.SaveWindowSize(ctx, 300, 200)
	if got := s.LoadWindowSize(ctx); got.Width != 1440 || got.Height != 900 {
		t.Errorf("tiny size not replaced: %+v", got)
	}

	s.SetLastProject(ctx, "p-1")
	if got := s.LastProject(ctx); got != "p-1" {
		t.Errorf("last project = %q", got)
	}
}

func TestWindowSettings_NoStore(t *testing.T) {
	ctx := context.Background()
	s := service.NewWindowSettingsService(nil)
	if err := s.SaveWindowSize(ctx, 1600, 1000); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadWindowSize(ctx); got.Width != 1440 {
		t.Errorf("width = %d", got.Width)
	}
	if s.LastProject(ctx) != "" {
		t.Error("expected no last project")
	}
}

// ─────────────────────────────────────────────────────────────
// AssetService tests
// ─────────────────────────────────────────────────────────────

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestAssetService_UploadAndReferences(t *testing.T) {
	ctx := context.Background()
	emitter := &service.MockEmitter{}
	s := service.NewAssetService(storage.NewMemoryBlobStore(), emitter)

	a, err := s.Upload(ctx, "photo.PNG", "", pngHeader)
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentType != "image/png" {
		t.Errorf("content type = %q", a.ContentType)
	}
	if len(emitter.Named(domain.EventAssetsChanged)) != 1 {
		t.Error("expected an assets-changed event")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	b, err := s.UploadDataURL(ctx, "paste", dataURL)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := s.DataURL(ctx, b.Key); got != dataURL {
		t.Errorf("data URL round trip = %q", got)
	}

	elements := []domain.Element{{
		ID:         "img",
		Type:       domain.ElementTypeImage,
		Properties: domain.Properties{"src": service.AssetScheme + a.Key},
	}}
	unused, err := s.Unreferenced(ctx, elements)
	if err != nil {
		t.Fatal(err)
	}
	if len(unused) != 1 || unused[0] != b.Key {
		t.Errorf("unreferenced = %v, want [%s]", unused, b.Key)
	}
}

func TestAssetService_Rejects(t *testing.T) {
	ctx := context.Background()
	s := service.NewAssetService(storage.NewMemoryBlobStore(), nil)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"empty", func() error { _, err := s.Upload(ctx, "a.png", "image/png", nil); return err }, service.ErrAssetEmpty},
		{"text", func() error { _, err := s.Upload(ctx, "a.txt", "text/plain", []byte("hi")); return err }, service.ErrUnsupportedMedia},
		{"not a data url", func() error { _, err := s.UploadDataURL(ctx, "x", "hello"); return err }, service.ErrMalformedDataURL},
		{"bad base64", func() error { _, err := s.UploadDataURL(ctx, "x", "data:image/png;base64,%%%"); return err }, service.ErrMalformedDataURL},
	}
	for _, tt := range tests {
		if err := tt.run(); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
