package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
	"smartclass/internal/service"
)

// fakeEditor writes a script that replaces the file it is given with text.
func fakeEditor(t *testing.T, text string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "editor.sh")
	script := "#!/bin/sh\nprintf '%s' '" + text + "' > \"$1\"\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEditorService_MirrorsAndFinishes(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newBuilderService(t)
	p, _ := svc.CreateProject(ctx, "Edit")
	sess, _ := svc.Open(ctx, p.ID)
	sess.Store.AddElement(builder.NewElement{ID: "t", Type: domain.ElementTypeText, Properties: domain.Properties{domain.PropContent: "before"}})
	sess.Store.AddElement(builder.NewElement{ID: "img", Type: domain.ElementTypeImage})

	ed, err := service.NewEditorService(svc, emitter, t.TempDir(), fakeEditor(t, "after"))
	if err != nil {
		t.Fatal(err)
	}
	defer ed.Close()

	if _, err := ed.Open(ctx, p.ID, "img"); !errors.Is(err, builder.ErrNotTextEditable) {
		t.Errorf("image err = %v", err)
	}

	path, err := ed.Open(ctx, p.ID, "t")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(path) != ".txt" {
		t.Errorf("path = %s", path)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(emitter.Named(domain.EventEditingFinished)) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(emitter.Named(domain.EventEditingFinished)) == 0 {
		t.Fatal("editor never finished")
	}
	el, _ := sess.Store.Element("t")
	if el.Text().Content != "after" {
		t.Errorf("content = %q", el.Text().Content)
	}
	if sess.Store.EditingTarget() != "" {
		t.Errorf("editing target = %q after exit", sess.Store.EditingTarget())
	}
	if _, _, ok := ed.Active(); ok {
		t.Error("edit still active")
	}
}
