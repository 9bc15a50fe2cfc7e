package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartclass/internal/bootstrap"
	"smartclass/internal/builder"
	"smartclass/internal/config"
	"smartclass/internal/domain"
	"smartclass/internal/secret"
	"smartclass/internal/service"
)

func testConfig(t *testing.T, assets string) *config.Config {
	t.Helper()
	v := config.New()
	v.Set("dataDir", t.TempDir())
	v.Set("assets.backend", assets)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "sql")
	emitter := &service.MockEmitter{}

	svcs, err := bootstrap.New(ctx, cfg, secret.NewMemoryStore(), emitter)
	require.NoError(t, err)
	require.NotNil(t, svcs.DB)

	p, err := svcs.Builder.CreateProject(ctx, "Boot")
	require.NoError(t, err)
	sess, err := svcs.Builder.Open(ctx, p.ID)
	require.NoError(t, err)
	_, err = sess.Store.AddElement(builder.NewElement{ID: "t", Type: domain.ElementTypeText})
	require.NoError(t, err)

	require.NoError(t, svcs.Settings.SetLastProject(ctx, p.ID))

	_, err = svcs.Assets.Upload(ctx, "dot.png", "image/png", []byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)

	// Close saves open sessions before the database goes away.
	require.NoError(t, svcs.Close(ctx))
	assert.FileExists(t, cfg.SQLitePath())

	again, err := bootstrap.New(ctx, cfg, secret.NewMemoryStore(), nil)
	require.NoError(t, err)
	defer again.Close(ctx)
	reopened, err := again.Builder.Open(ctx, p.ID)
	require.NoError(t, err)
	_, ok := reopened.Store.Element("t")
	assert.True(t, ok)

	list, err := again.Assets.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, p.ID, again.Settings.LastProject(ctx))
}

func TestNew_DiskAssets(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "disk")
	svcs, err := bootstrap.New(ctx, cfg, secret.NewMemoryStore(), nil)
	require.NoError(t, err)
	defer svcs.Close(ctx)

	_, err = svcs.Assets.Upload(ctx, "a.png", "image/png", []byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	entries, err := os.ReadDir(cfg.AssetsDir())
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestAPIToken(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "memory")
	secrets := secret.NewMemoryStore()
	svcs, err := bootstrap.New(ctx, cfg, secrets, nil)
	require.NoError(t, err)
	defer svcs.Close(ctx)

	t.Setenv("SMARTCLASS_API_TOKEN", "from-env")
	assert.Equal(t, "from-env", svcs.APIToken())

	require.NoError(t, secrets.Set(secret.KeyAPIToken, []byte("from-store")))
	assert.Equal(t, "from-store", svcs.APIToken())
}

func TestInboxAndAutosaver(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "memory")
	svcs, err := bootstrap.New(ctx, cfg, secret.NewMemoryStore(), nil)
	require.NoError(t, err)
	defer svcs.Close(ctx)

	path := filepath.Join(t.TempDir(), "lesson.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))
	p, err := svcs.Inbox(nil).Import(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "lesson", p.Name)

	a := svcs.Autosaver()
	require.NoError(t, a.Start(ctx))
	a.Stop()
}
