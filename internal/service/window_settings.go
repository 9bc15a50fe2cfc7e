package service

import (
	"context"
	"strconv"
)

// ─────────────────────────────────────────────────────────────
// Window settings: desktop preferences kept between sessions
// ─────────────────────────────────────────────────────────────

// SettingsStore is a key/value port. storage.SettingsStore implements it on
// the SQL drivers.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowSettingsService persists the window size and the last open project.
// Without a store (mongo backend) it hands out defaults and forgets writes.
type WindowSettingsService struct {
	store SettingsStore
}

func NewWindowSettingsService(store SettingsStore) *WindowSettingsService {
	return &WindowSettingsService{store: store}
}

const (
	settingWindowWidth  = "window_width"
	settingWindowHeight = "window_height"
	settingLastProject  = "last_project"
	defaultWindowWidth  = 1440
	defaultWindowHeight = 900
)

// LoadWindowSize returns the saved window dimensions, or sensible defaults.
func (s *WindowSettingsService) LoadWindowSize(ctx context.Context) WindowSize {
	size := WindowSize{Width: defaultWindowWidth, Height: defaultWindowHeight}
	if s.store == nil {
		return size
	}
	if w, ok := s.intSetting(ctx, settingWindowWidth); ok && w >= 1024 {
		size.Width = w
	}
	if h, ok := s.intSetting(ctx, settingWindowHeight); ok && h >= 640 {
		size.Height = h
	}
	return size
}

// SaveWindowSize persists the current window dimensions.
func (s *WindowSettingsService) SaveWindowSize(ctx context.Context, width, height int) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Set(ctx, settingWindowWidth, strconv.Itoa(width)); err != nil {
		return err
	}
	return s.store.Set(ctx, settingWindowHeight, strconv.Itoa(height))
}

// LastProject is the project that was open when the app last closed.
func (s *WindowSettingsService) LastProject(ctx context.Context) string {
	if s.store == nil {
		return ""
	}
	v, _, _ := s.store.Get(ctx, settingLastProject)
	return v
}

func (s *WindowSettingsService) SetLastProject(ctx context.Context, projectID string) error {
	if s.store == nil {
		return nil
	}
	return s.store.Set(ctx, settingLastProject, projectID)
}

func (s *WindowSettingsService) intSetting(ctx context.Context, key string) (int, bool) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
