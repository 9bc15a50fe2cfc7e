package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartclass/internal/pagination"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SMARTCLASS_DATADIR", dir)
	t.Setenv("SMARTCLASS_ASSETS_BACKEND", "memory")
	t.Setenv("SMARTCLASS_ENV", "test")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func decodeOut[T any](t *testing.T, out string) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env.Data
}

const lessonFile = `{
  "version": 3,
  "content": {
    "currentPageId": "p1",
    "pages": {
      "p1": {"id": "p1", "title": "Intro", "order": 0, "elements": [
        {"id": "box", "type": "container", "name": "Box", "properties": {"x": 0, "y": 0, "width": 300, "height": 200}},
        {"id": "h", "type": "heading", "name": "Title", "parentId": "box", "properties": {"content": "Hi"}}
      ]},
      "p2": {"id": "p2", "title": "Match", "order": 1, "elements": [
        {"id": "a", "type": "connection-text-node", "name": "Lonely", "properties": {"connectionGroupId": "g1"}}
      ]}
    }
  }
}`

func TestProjectsCreateAndList(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "projects", "create", "Fractions", "101")
	require.NoError(t, err)
	p := decodeOut[map[string]any](t, out)
	assert.Equal(t, "Fractions 101", p["name"])

	out, err = run(t, "projects")
	require.NoError(t, err)
	list := decodeOut[[]map[string]any](t, out)
	require.Len(t, list, 1)
	assert.Equal(t, p["id"], list[0]["id"])
}

func TestImportExportLayers(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "lesson.json")
	require.NoError(t, os.WriteFile(src, []byte(lessonFile), 0644))

	out, err := run(t, "import", src)
	require.NoError(t, err)
	p := decodeOut[map[string]any](t, out)
	assert.Equal(t, "lesson", p["name"])
	id := p["id"].(string)

	out, err = run(t, "export", id)
	require.NoError(t, err)
	doc, err := pagination.ParseContent([]byte(out))
	require.NoError(t, err)
	assert.Len(t, doc.Pages, 2)

	out, err = run(t, "layers", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Box")
	assert.Contains(t, out, "Title")

	out, err = run(t, "layers", id, "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Lonely")
	assert.NotContains(t, out, "Box")

	_, err = run(t, "layers", id, "--page", "9")
	assert.ErrorIs(t, err, pagination.ErrPageNotFound)
}

func TestThumbnailAndDiagnose(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "lesson.json")
	require.NoError(t, os.WriteFile(src, []byte(lessonFile), 0644))
	out, err := run(t, "import", src)
	require.NoError(t, err)
	id := decodeOut[map[string]any](t, out)["id"].(string)

	png := filepath.Join(dir, "page.png")
	_, err = run(t, "thumbnail", id, "-o", png, "--width", "200")
	require.NoError(t, err)
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	out, err = run(t, "diagnose", id)
	require.NoError(t, err)
	diags := decodeOut[[]pageDiagnostics](t, out)
	require.Len(t, diags, 1)
	assert.Equal(t, "p2", diags[0].PageID)
	assert.True(t, strings.Contains(diags[0].Diagnostics[0].Message, "no pair"))
}

func TestImportRejectsMalformed(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"version":`), 0644))

	_, err := run(t, "import", src)
	assert.ErrorIs(t, err, pagination.ErrMalformedContent)
}
