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
	"smartclass/internal/pagination"
	"smartclass/internal/service"
	"smartclass/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// BuilderService tests, backed by in-memory SQLite
// ─────────────────────────────────────────────────────────────

func newBuilderService(t *testing.T) (*service.BuilderService, *service.MockEmitter) {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	emitter := &service.MockEmitter{}
	svc := service.NewBuilderService(storage.NewProjectStore(db), storage.NewRevisionStore(db, 5), emitter, service.BuilderOptions{})
	t.Cleanup(func() { svc.CloseAll(context.Background()) })
	return svc, emitter
}

func TestBuilderService_CreateOpenSave(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newBuilderService(t)

	p, err := svc.CreateProject(ctx, "Lesson 1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateProject(ctx, "  "); !errors.Is(err, service.ErrEmptyName) {
		t.Errorf("blank name err = %v", err)
	}

	sess, err := svc.Open(ctx, p.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if again, _ := svc.Open(ctx, p.ID); again != sess {
		t.Error("opening twice should return the same session")
	}
	if sess.Dirty() {
		t.Error("fresh session should not be dirty")
	}

	if _, err := sess.Store.AddElement(builder.NewElement{ID: "h1", Type: domain.ElementTypeHeading}); err != nil {
		t.Fatal(err)
	}
	if !sess.Dirty() {
		t.Error("adding an element should mark the session dirty")
	}
	if len(emitter.Named(domain.EventBuilderChanged)) == 0 {
		t.Error("store changes should be emitted")
	}

	saved, err := svc.Save(ctx, p.ID, "first")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.RevisionID == "" {
		t.Error("save should record a revision")
	}
	if sess.Dirty() {
		t.Error("session still dirty after save")
	}
	if len(emitter.Named(domain.EventProjectSaved)) != 1 {
		t.Error("expected one saved event")
	}

	stored, err := svc.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := pagination.ParseContent([]byte(stored.Content))
	if err != nil {
		t.Fatalf("stored content unreadable: %v", err)
	}
	if len(doc.Pages[0].Elements) != 1 || doc.Pages[0].Elements[0].ID != "h1" {
		t.Errorf("stored elements = %+v", doc.Pages[0].Elements)
	}
}

func TestBuilderService_SessionNotOpen(t *testing.T) {
	svc, _ := newBuilderService(t)
	if _, err := svc.Session("nope"); !errors.Is(err, service.ErrSessionNotOpen) {
		t.Errorf("err = %v", err)
	}
	if _, err := svc.Open(context.Background(), "nope"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("open missing err = %v", err)
	}
}

func TestBuilderService_SaveDirtyOnlyWritesChanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBuilderService(t)
	a, _ := svc.CreateProject(ctx, "A")
	b, _ := svc.CreateProject(ctx, "B")
	sa, _ := svc.Open(ctx, a.ID)
	if _, err := svc.Open(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	sa.Store.AddElement(builder.NewElement{Type: domain.ElementTypeText})
	n, err := svc.SaveDirty(ctx, "autosave")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("saved %d sessions, want 1", n)
	}
	if n, _ := svc.SaveDirty(ctx, "autosave"); n != 0 {
		t.Errorf("second pass saved %d", n)
	}
}

func TestBuilderService_ConnectionEventsForwarded(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newBuilderService(t)
	p, _ := svc.CreateProject(ctx, "Match")
	sess, _ := svc.Open(ctx, p.ID)

	if _, err := sess.Store.AddTemplate("connection-pair", "", 0, 0); err != nil {
		t.Fatal(err)
	}
	els := sess.Store.Elements()
	if _, err := sess.Connections.Attempt(els[1].ID, els[2].ID); err != nil {
		t.Fatal(err)
	}
	if len(emitter.Named(domain.EventConnectionConfirm)) != 1 {
		t.Errorf("confirm events = %d", len(emitter.Named(domain.EventConnectionConfirm)))
	}
	ev, ok := emitter.Named(domain.EventConnectionAttempt)[0].Data.(service.ConnectionEvent)
	if !ok || ev.ProjectID != p.ID {
		t.Errorf("attempt payload = %#v", emitter.Named(domain.EventConnectionAttempt)[0].Data)
	}
}

func TestBuilderService_PagesAndExport(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newBuilderService(t)
	p, _ := svc.CreateProject(ctx, "Paged")
	sess, _ := svc.Open(ctx, p.ID)

	second := sess.CreatePage("Two")
	if err := sess.SwitchPage(second.ID); err != nil {
		t.Fatal(err)
	}
	sess.Store.AddElement(builder.NewElement{ID: "v", Type: domain.ElementTypeVideo})
	if len(emitter.Named(domain.EventPageSwitched)) != 1 {
		t.Error("page switch not emitted")
	}

	data, err := svc.Export(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := pagination.ParseContent(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 2 || doc.CurrentPageID != second.ID {
		t.Fatalf("exported %d pages, current %q", len(doc.Pages), doc.CurrentPageID)
	}
	if len(doc.Pages[1].Elements) != 1 {
		t.Error("live page missing from export")
	}
}

func TestBuilderService_RestoreRevision(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBuilderService(t)
	p, _ := svc.CreateProject(ctx, "Rev")
	sess, _ := svc.Open(ctx, p.ID)

	sess.Store.AddElement(builder.NewElement{ID: "keep", Type: domain.ElementTypeText})
	first, err := svc.Save(ctx, p.ID, "one")
	if err != nil {
		t.Fatal(err)
	}
	sess.Store.RemoveElement("keep")
	if _, err := svc.Save(ctx, p.ID, "two"); err != nil {
		t.Fatal(err)
	}

	revs, err := svc.Revisions(ctx, p.ID)
	if err != nil || len(revs) != 2 {
		t.Fatalf("revisions = %d, err %v", len(revs), err)
	}
	if err := svc.RestoreRevision(ctx, p.ID, first.RevisionID); err != nil {
		t.Fatal(err)
	}
	if _, ok := sess.Store.Element("keep"); !ok {
		t.Error("restored revision should bring the element back")
	}
	if !sess.Dirty() {
		t.Error("restored state should be unsaved")
	}
}

func TestBuilderService_ImportProject(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBuilderService(t)

	p, err := svc.ImportProject(ctx, "legacy", []byte(`[{"id":"a","type":"text","name":"A","properties":{}}]`))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := svc.Export(ctx, p.ID)
	doc, _ := pagination.ParseContent(data)
	if len(doc.Pages[0].Elements) != 1 {
		t.Errorf("imported elements = %d", len(doc.Pages[0].Elements))
	}

	if _, err := svc.ImportProject(ctx, "broken", []byte(`{"version":`)); !errors.Is(err, pagination.ErrMalformedContent) {
		t.Errorf("malformed import err = %v", err)
	}
	if _, err := svc.ImportProject(ctx, "cyclic", []byte(`[{"id":"a","type":"container","parentId":"b"},{"id":"b","type":"container","parentId":"a"}]`)); err == nil {
		t.Error("cyclic import should be rejected")
	}
}

func TestBuilderService_CloseSaves(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBuilderService(t)
	p, _ := svc.CreateProject(ctx, "Close")
	sess, _ := svc.Open(ctx, p.ID)
	sess.Store.AddElement(builder.NewElement{ID: "b", Type: domain.ElementTypeButton})

	if err := svc.Close(ctx, p.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Session(p.ID); !errors.Is(err, service.ErrSessionNotOpen) {
		t.Error("session still open")
	}
	reopened, err := svc.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Store.Element("b"); !ok {
		t.Error("close did not save")
	}
}

// ─────────────────────────────────────────────────────────────
// Autosaver & Inbox
// ─────────────────────────────────────────────────────────────

func TestAutosaver_Tick(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBuilderService(t)
	p, _ := svc.CreateProject(ctx, "Auto")
	sess, _ := svc.Open(ctx, p.ID)
	sess.Store.AddElement(builder.NewElement{Type: domain.ElementTypeImage})

	a := service.NewAutosaver(svc, "@every 1h")
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()
	if n := a.Tick(ctx); n != 1 {
		t.Errorf("tick saved %d", n)
	}

	bad := service.NewAutosaver(svc, "not a schedule")
	if err := bad.Start(ctx); err == nil {
		t.Error("invalid schedule should fail")
	}
}

func TestInbox_ImportsDroppedFile(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newBuilderService(t)
	dir := t.TempDir()
	in := service.NewInbox(svc, emitter, dir)

	path := filepath.Join(dir, "Fractions.json")
	if err := os.WriteFile(path, []byte(`{"elements":[{"id":"x","type":"heading"}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := in.Import(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Fractions" {
		t.Errorf("name = %q", p.Name)
	}
	if got := emitter.Named(domain.EventProjectImported); len(got) != 1 {
		t.Errorf("imported events = %d", len(got))
	}
}

func TestInbox_WatchesDirectory(t *testing.T) {
	ctx := context.Background()
	svc, emitter := newBuilderService(t)
	dir := t.TempDir()
	in := service.NewInbox(svc, emitter, dir)
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	os.WriteFile(filepath.Join(dir, "dropped.json"), []byte(`[]`), 0644)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(emitter.Named(domain.EventProjectImported)) > 0 {
			list, _ := svc.ListProjects(ctx)
			if len(list) != 1 || list[0].Name != "dropped" {
				t.Errorf("projects = %+v", list)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("dropped file was not imported")
}
