package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/labstack/gommon/log"

	"smartclass/internal/builder"
	"smartclass/internal/config"
	"smartclass/internal/connection"
	"smartclass/internal/domain"
	"smartclass/internal/logging"
	"smartclass/internal/secret"
	"smartclass/internal/service"
	"smartclass/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Services: storage and services wired from a Config
// ─────────────────────────────────────────────────────────────

// Services is everything a front end (desktop app, HTTP server, MCP) needs.
type Services struct {
	Config  *config.Config
	Secrets secret.SecretStore

	DB       *storage.DB // nil on the mongo backend
	Projects domain.ProjectStore
	Builder  *service.BuilderService
	Assets   *service.AssetService
	Settings *service.WindowSettingsService

	log     *log.Logger
	closers []func(context.Context) error
}

// New opens storage and builds the services. emitter receives every
// service event; nil drops them.
func New(ctx context.Context, cfg *config.Config, secrets secret.SecretStore, emitter service.EventEmitter) (*Services, error) {
	if secrets == nil {
		secrets = secret.Default()
	}
	if emitter == nil {
		emitter = service.NopEmitter{}
	}
	s := &Services{Config: cfg, Secrets: secrets, log: logging.New("bootstrap")}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var (
		revisions service.RevisionStore
		settings  service.SettingsStore
	)
	switch cfg.Storage.Driver {
	case "mongo":
		store, err := storage.OpenMongo(ctx, s.storageOptions())
		if err != nil {
			return nil, err
		}
		s.Projects = store
		s.closers = append(s.closers, store.Close)
	default:
		db, err := s.openSQL()
		if err != nil {
			return nil, err
		}
		s.DB = db
		s.Projects = storage.NewProjectStore(db)
		revisions = storage.NewRevisionStore(db, cfg.MaxRevisions)
		settings = storage.NewSettingsStore(db)
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
	}

	blobs, err := s.blobStore()
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	s.Builder = service.NewBuilderService(s.Projects, revisions, emitter, service.BuilderOptions{
		HistoryLimit: cfg.HistoryLimit,
		Drag: builder.DragOptions{
			Threshold:      cfg.DragThreshold,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
		},
		Connection: connection.Options{
			TargetedTimeout: cfg.TargetedTimeout,
			ShakeTimeout:    cfg.ShakeTimeout,
		},
	})
	s.Assets = service.NewAssetService(blobs, emitter)
	s.Settings = service.NewWindowSettingsService(settings)

	s.log.Infof("storage %s, assets %s, data in %s", cfg.Storage.Driver, cfg.AssetsBackend, cfg.DataDir)
	return s, nil
}

func (s *Services) storageOptions() storage.Options {
	st := s.Config.Storage
	opts := storage.Options{
		Driver:   st.Driver,
		DSN:      st.DSN,
		Host:     st.Host,
		Port:     st.Port,
		Database: st.Database,
		Username: st.Username,
	}
	if st.Driver != "sqlite" && st.DSN == "" {
		opts.Password = s.secret(secret.KeyDBPassword, "STORAGE_PASSWORD")
	}
	return opts
}

func (s *Services) openSQL() (*storage.DB, error) {
	if s.Config.Storage.Driver == "sqlite" {
		return storage.OpenSQLite(s.Config.SQLitePath())
	}
	return storage.Open(s.storageOptions())
}

func (s *Services) blobStore() (domain.BlobStore, error) {
	switch s.Config.AssetsBackend {
	case "disk":
		return storage.NewDiskBlobStore(s.Config.AssetsDir())
	case "memory":
		return storage.NewMemoryBlobStore(), nil
	default:
		if s.DB == nil {
			s.log.Warn("sql asset backend needs a SQL driver, keeping assets on disk")
			return storage.NewDiskBlobStore(s.Config.AssetsDir())
		}
		return storage.NewSQLBlobStore(s.DB), nil
	}
}

// secret reads key from the secret store, falling back to the
// SMARTCLASS_<env> environment variable.
func (s *Services) secret(key, env string) string {
	v, err := secret.GetString(s.Secrets, key)
	if err != nil {
		s.log.Warnf("read secret %s: %v", key, err)
	}
	if v == "" {
		v = os.Getenv(config.EnvPrefix + "_" + env)
	}
	return v
}

// APIToken is the bearer token the HTTP API requires. Empty disables auth.
func (s *Services) APIToken() string {
	return s.secret(secret.KeyAPIToken, "API_TOKEN")
}

// Editor builds the external editor service. It is optional: the caller
// decides whether editing is available.
func (s *Services) Editor(emitter service.EventEmitter, editor string) (*service.EditorService, error) {
	ed, err := service.NewEditorService(s.Builder, emitter, s.Config.EditorDir(), editor)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func(context.Context) error { return ed.Close() })
	return ed, nil
}

// Autosaver returns an autosaver on the configured schedule.
func (s *Services) Autosaver() *service.Autosaver {
	return service.NewAutosaver(s.Builder, s.Config.AutosaveSchedule)
}

// Inbox returns the drop-folder importer rooted at <dataDir>/inbox.
func (s *Services) Inbox(emitter service.EventEmitter) *service.Inbox {
	return service.NewInbox(s.Builder, emitter, filepath.Join(s.Config.DataDir, "inbox"))
}

// Close saves and closes every open session, then releases storage.
func (s *Services) Close(ctx context.Context) error {
	var first error
	if s.Builder != nil {
		if err := s.Builder.CloseAll(ctx); err != nil {
			first = err
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
