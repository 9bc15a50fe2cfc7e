package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"smartclass/internal/domain"
	"smartclass/internal/logging"
	"smartclass/internal/watch"
)

// InboxDebounce is how long a dropped file must stay quiet before import.
const InboxDebounce = 500 * time.Millisecond

// ─────────────────────────────────────────────────────────────
// Inbox: imports content files dropped into a folder
// ─────────────────────────────────────────────────────────────

// Inbox watches a directory and imports every *.json file written to it as
// a new project named after the file.
type Inbox struct {
	builder *BuilderService
	emitter EventEmitter
	dir     string
	log     *log.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	w      *watch.Watcher
}

// ImportedEvent is the payload of builder:imported.
type ImportedEvent struct {
	Path      string `json:"path"`
	ProjectID string `json:"projectId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func NewInbox(b *BuilderService, emitter EventEmitter, dir string) *Inbox {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Inbox{builder: b, emitter: emitter, dir: dir, log: logging.New("inbox"), timers: make(map[string]*time.Timer)}
}

func (in *Inbox) Start(ctx context.Context) error {
	w, err := watch.New(nil)
	if err != nil {
		return err
	}
	if err := w.WatchDir(in.dir, ".json", func(path string) { in.schedule(ctx, path) }); err != nil {
		w.Close()
		return err
	}
	in.mu.Lock()
	in.w = w
	in.mu.Unlock()
	in.log.Infof("watching %s", in.dir)
	return nil
}

func (in *Inbox) schedule(ctx context.Context, path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.timers[path]; ok {
		t.Stop()
	}
	in.timers[path] = time.AfterFunc(InboxDebounce, func() {
		in.mu.Lock()
		delete(in.timers, path)
		in.mu.Unlock()
		in.Import(ctx, path)
	})
}

// Import reads path and creates a project from it.
func (in *Inbox) Import(ctx context.Context, path string) (*domain.Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		in.log.Warnf("read %s: %v", path, err)
		in.emitter.Emit(ctx, domain.EventProjectImported, ImportedEvent{Path: path, Error: err.Error()})
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := in.builder.ImportProject(ctx, name, raw)
	if err != nil {
		in.log.Warnf("import %s: %v", path, err)
		in.emitter.Emit(ctx, domain.EventProjectImported, ImportedEvent{Path: path, Error: err.Error()})
		return nil, err
	}
	in.log.Infof("imported %s as project %s", path, p.ID)
	in.emitter.Emit(ctx, domain.EventProjectImported, ImportedEvent{Path: path, ProjectID: p.ID})
	return p, nil
}

func (in *Inbox) Stop() {
	in.mu.Lock()
	w := in.w
	in.w = nil
	for path, t := range in.timers {
		t.Stop()
		delete(in.timers, path)
	}
	in.mu.Unlock()
	if w != nil {
		w.Close()
	}
}
