package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/gommon/log"

	"smartclass/internal/logging"
)

// FileChangedHandler receives the key a file was registered under and its
// new content.
type FileChangedHandler func(key string, content []byte)

// DirHandler receives the path of a file created or written in a watched
// directory.
type DirHandler func(path string)

// Watcher mirrors file writes into the builder. Files are registered under a
// key (the element being edited); directories get a handler for any file
// matching a suffix (the import drop folder).
type Watcher struct {
	watcher *fsnotify.Watcher
	onFile  FileChangedHandler
	log     *log.Logger

	mu    sync.RWMutex
	files map[string]string // abs path -> key
	dirs  map[string]dirWatch
	done  chan struct{}
}

type dirWatch struct {
	suffix  string
	handler DirHandler
}

func New(onFile FileChangedHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		watcher: fw,
		onFile:  onFile,
		log:     logging.New("watch"),
		files:   make(map[string]string),
		dirs:    make(map[string]dirWatch),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// WatchFile starts mirroring writes to path under key.
func (w *Watcher) WatchFile(key, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.files[abs] = key
	w.mu.Unlock()
	// fsnotify watches directories for file events
	return w.watcher.Add(filepath.Dir(abs))
}

func (w *Watcher) StopWatching(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, k := range w.files {
		if k == key {
			delete(w.files, path)
		}
	}
}

// WatchDir calls handler for files ending in suffix that are created or
// written inside dir.
func (w *Watcher) WatchDir(dir, suffix string, handler DirHandler) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	w.mu.Lock()
	w.dirs[abs] = dirWatch{suffix: suffix, handler: handler}
	w.mu.Unlock()
	return w.watcher.Add(abs)
}

func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.dispatch(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) dispatch(name string) {
	abs, _ := filepath.Abs(name)
	w.mu.RLock()
	key, isFile := w.files[abs]
	dw, isDir := w.dirs[filepath.Dir(abs)]
	w.mu.RUnlock()

	if isFile && w.onFile != nil {
		content, err := os.ReadFile(abs)
		if err != nil {
			w.log.Warnf("read %s: %v", abs, err)
			return
		}
		w.onFile(key, content)
		return
	}
	if isDir && strings.HasSuffix(abs, dw.suffix) {
		dw.handler(abs)
	}
}
