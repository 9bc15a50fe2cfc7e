package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/labstack/gommon/log"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
	"smartclass/internal/logging"
	"smartclass/internal/terminal"
	"smartclass/internal/watch"
)

var ErrNoEditSession = errors.New("no element is open in the editor")

// ─────────────────────────────────────────────────────────────
// Editor Service: edit element text in an external editor
// ─────────────────────────────────────────────────────────────

// EditingEvent is the payload of editor:started and editor:finished.
type EditingEvent struct {
	ProjectID string `json:"projectId"`
	ElementID string `json:"elementId"`
	Path      string `json:"path"`
}

type editTarget struct {
	projectID string
	elementID string
	path      string
}

// EditorService opens a text element in $EDITOR inside a PTY. While the
// editor runs the element is the store's editing target and every write to
// the file is mirrored into the element content.
type EditorService struct {
	builder *BuilderService
	emitter EventEmitter
	dir     string
	log     *log.Logger

	mu      sync.Mutex
	term    *terminal.Manager
	watcher *watch.Watcher
	active  *editTarget
}

// NewEditorService keeps editor files under dir. editor may be empty to use
// $EDITOR.
func NewEditorService(b *BuilderService, emitter EventEmitter, dir, editor string) (*EditorService, error) {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	s := &EditorService{builder: b, emitter: emitter, dir: dir, log: logging.New("editor")}
	w, err := watch.New(s.onFileChanged)
	if err != nil {
		return nil, err
	}
	s.watcher = w
	s.term = terminal.New(editor,
		func(data []byte) { s.emitter.Emit(context.Background(), domain.EventTerminalData, string(data)) },
		s.onExit,
	)
	return s, nil
}

func fileExt(t domain.ElementType) string {
	if t == domain.ElementTypeRichText {
		return ".html"
	}
	return ".txt"
}

// Open writes the element content to a file and starts the editor on it.
// A running edit is finished first.
func (s *EditorService) Open(ctx context.Context, projectID, elementID string) (string, error) {
	sess, err := s.builder.Session(projectID)
	if err != nil {
		return "", err
	}
	el, ok := sess.Store.Element(elementID)
	if !ok {
		return "", fmt.Errorf("open editor: %w: %q", builder.ErrElementNotFound, elementID)
	}
	if !el.Type.TextEditable() {
		return "", fmt.Errorf("%w: %q", builder.ErrNotTextEditable, elementID)
	}
	s.Finish()
	if err := sess.Store.SetEditingTarget(elementID); err != nil {
		return "", err
	}

	dir := filepath.Join(s.dir, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("mkdir for editor file: %w", err)
	}
	path := filepath.Join(dir, elementID+fileExt(el.Type))
	if err := os.WriteFile(path, []byte(el.Text().Content), 0644); err != nil {
		return "", fmt.Errorf("write editor file: %w", err)
	}

	s.mu.Lock()
	s.active = &editTarget{projectID: projectID, elementID: elementID, path: path}
	s.mu.Unlock()

	if err := s.watcher.WatchFile(elementID, path); err != nil {
		s.log.Warnf("watch %s: %v", path, err)
	}
	if err := s.term.OpenFile(path); err != nil {
		s.clear()
		sess.Store.SetEditingTarget("")
		return "", err
	}
	s.log.Infof("editing %s/%s with %s", projectID, elementID, s.term.Editor())
	s.emitter.Emit(ctx, domain.EventEditingStarted, EditingEvent{ProjectID: projectID, ElementID: elementID, Path: path})
	return path, nil
}

// Active returns the project and element being edited.
func (s *EditorService) Active() (projectID, elementID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", "", false
	}
	return s.active.projectID, s.active.elementID, true
}

func (s *EditorService) Write(data string) error {
	if _, _, ok := s.Active(); !ok {
		return ErrNoEditSession
	}
	return s.term.Write(data)
}

func (s *EditorService) Resize(cols, rows uint16) error {
	return s.term.Resize(cols, rows)
}

// Finish stops the editor, applies the file one last time and clears the
// editing target.
func (s *EditorService) Finish() {
	s.mu.Lock()
	t := s.active
	s.mu.Unlock()
	if t == nil {
		return
	}
	s.term.Close()
	s.finish(t)
}

func (s *EditorService) onExit(path string) {
	s.mu.Lock()
	t := s.active
	s.mu.Unlock()
	if t == nil || t.path != path {
		return
	}
	s.finish(t)
}

func (s *EditorService) finish(t *editTarget) {
	if content, err := os.ReadFile(t.path); err == nil {
		s.apply(t, content)
	}
	s.clear()
	if sess, err := s.builder.Session(t.projectID); err == nil && sess.Store.EditingTarget() == t.elementID {
		sess.Store.SetEditingTarget("")
	}
	s.emitter.Emit(context.Background(), domain.EventEditingFinished, EditingEvent{ProjectID: t.projectID, ElementID: t.elementID, Path: t.path})
}

func (s *EditorService) clear() {
	s.mu.Lock()
	t := s.active
	s.active = nil
	s.mu.Unlock()
	if t != nil {
		s.watcher.StopWatching(t.elementID)
	}
}

func (s *EditorService) onFileChanged(elementID string, content []byte) {
	s.mu.Lock()
	t := s.active
	s.mu.Unlock()
	if t == nil || t.elementID != elementID {
		return
	}
	s.apply(t, content)
}

// apply writes file content into the element unless it is unchanged.
func (s *EditorService) apply(t *editTarget, content []byte) {
	sess, err := s.builder.Session(t.projectID)
	if err != nil {
		return
	}
	el, ok := sess.Store.Element(t.elementID)
	if !ok {
		return
	}
	text := strings.TrimRight(string(content), "\n")
	if el.Text().Content == text {
		return
	}
	if _, err := sess.Store.UpdateElement(t.elementID, domain.Properties{domain.PropContent: text}); err != nil {
		s.log.Warnf("mirror %s: %v", t.path, err)
	}
}

func (s *EditorService) Close() error {
	s.Finish()
	return s.watcher.Close()
}
