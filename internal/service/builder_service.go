package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"smartclass/internal/builder"
	"smartclass/internal/connection"
	"smartclass/internal/domain"
	"smartclass/internal/logging"
	"smartclass/internal/pagination"
)

var (
	ErrSessionNotOpen = errors.New("project is not open")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrEmptyName      = errors.New("project name is required")
)

// ─────────────────────────────────────────────────────────────
// Builder Service: open projects and their canvases
// ─────────────────────────────────────────────────────────────

// RevisionStore keeps saved checkpoints. The Mongo backend has none, so
// BuilderService accepts nil.
type RevisionStore interface {
	Push(ctx context.Context, projectID, label, content string) (*domain.Revision, error)
	List(ctx context.Context, projectID string) ([]domain.Revision, error)
	Get(ctx context.Context, id string) (*domain.Revision, error)
}

type BuilderOptions struct {
	HistoryLimit int
	Drag         builder.DragOptions
	Connection   connection.Options
	Logger       *log.Logger
}

// ChangedEvent is the payload of builder:changed.
type ChangedEvent struct {
	ProjectID string             `json:"projectId"`
	Kind      builder.ChangeKind `json:"kind"`
	IDs       []string           `json:"ids,omitempty"`
}

// ConnectionEvent is the payload of the connection:* events.
type ConnectionEvent struct {
	ProjectID string `json:"projectId"`
	connection.Event
}

// PageEvent is the payload of builder:page-switched.
type PageEvent struct {
	ProjectID string `json:"projectId"`
	PageID    string `json:"pageId"`
}

// SavedEvent is the payload of builder:saved.
type SavedEvent struct {
	ProjectID  string    `json:"projectId"`
	RevisionID string    `json:"revisionId,omitempty"`
	SavedAt    time.Time `json:"savedAt"`
}

// Session is one open project: a store holding the current page plus the
// components bound to it.
type Session struct {
	ProjectID   string
	Name        string
	Store       *builder.Store
	Pager       *pagination.Pager
	Layers      *builder.LayersPanel
	Drag        *builder.DragController
	Keys        *builder.Keymap
	Connections *connection.Coordinator

	emitter EventEmitter
	dirty   atomic.Bool
	detach  []func()
}

// Dirty reports unsaved changes.
func (s *Session) Dirty() bool { return s.dirty.Load() }

func (s *Session) touch() { s.dirty.Store(true) }

func (s *Session) emitPage() {
	s.emitter.Emit(context.Background(), domain.EventPageSwitched, PageEvent{ProjectID: s.ProjectID, PageID: s.Pager.CurrentPageID()})
}

// SwitchPage saves the live page and loads pageID.
func (s *Session) SwitchPage(pageID string) error {
	if err := s.Pager.SwitchPageByID(pageID); err != nil {
		return err
	}
	s.touch()
	s.emitPage()
	return nil
}

func (s *Session) CreatePage(title string) domain.ModulePage {
	p := s.Pager.CreatePage(title)
	s.touch()
	return p
}

func (s *Session) DeletePage(pageID string) error {
	before := s.Pager.CurrentPageID()
	if err := s.Pager.DeletePage(pageID); err != nil {
		return err
	}
	s.touch()
	if s.Pager.CurrentPageID() != before {
		s.emitPage()
	}
	return nil
}

func (s *Session) RenamePage(pageID, title string) error {
	if err := s.Pager.RenamePage(pageID, title); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) MovePage(pageID string, index int) error {
	if err := s.Pager.MovePage(pageID, index); err != nil {
		return err
	}
	s.touch()
	return nil
}

// ImportElements replaces the current page with raw elements. The import is
// undoable and leaves the session dirty.
func (s *Session) ImportElements(raw []byte) error {
	if err := s.Store.ImportProject(raw); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Diagnostics reports connection groups of the current page that cannot be
// played.
func (s *Session) Diagnostics() []connection.Diagnostic {
	return connection.Diagnose(s.Store.Elements())
}

func (s *Session) close() {
	for _, fn := range s.detach {
		fn()
	}
	s.Drag.Close()
	s.Layers.Close()
	s.Connections.Close()
}

// BuilderService manages projects and the sessions of open ones.
type BuilderService struct {
	projects  domain.ProjectStore
	revisions RevisionStore
	emitter   EventEmitter
	opts      BuilderOptions
	log       *log.Logger
	saving    SaveGuard

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewBuilderService(projects domain.ProjectStore, revisions RevisionStore, emitter EventEmitter, opts BuilderOptions) *BuilderService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("service")
	}
	return &BuilderService{
		projects:  projects,
		revisions: revisions,
		emitter:   emitter,
		opts:      opts,
		log:       opts.Logger,
		sessions:  make(map[string]*Session),
	}
}

// ── Project CRUD ───────────────────────────────────────────

// CreateProject stores a new project with one empty page.
func (s *BuilderService) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	return s.createWithDocument(ctx, name, pagination.NewDocument())
}

// ImportProject creates a project from persisted content in any supported
// shape. Content that cannot be read is rejected rather than replaced with
// an empty page.
func (s *BuilderService) ImportProject(ctx context.Context, name string, raw []byte) (*domain.Project, error) {
	doc, err := pagination.ParseContent(raw)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", name, err)
	}
	for _, pg := range doc.Pages {
		if err := builder.ValidateElements(pg.Elements); err != nil {
			return nil, fmt.Errorf("import %q page %q: %w", name, pg.Title, err)
		}
		for _, d := range connection.Diagnose(pg.Elements) {
			s.log.Warnf("import %q page %q: %s", name, pg.Title, d.Message)
		}
	}
	return s.createWithDocument(ctx, name, doc)
}

func (s *BuilderService) createWithDocument(ctx context.Context, name string, doc *pagination.Document) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	content, err := pagination.Serialize(doc)
	if err != nil {
		return nil, err
	}
	p := &domain.Project{ID: uuid.New().String(), Name: name, Content: string(content)}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *BuilderService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.projects.GetProject(ctx, id)
}

func (s *BuilderService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx)
}

func (s *BuilderService) RenameProject(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if err := s.projects.RenameProject(ctx, id, name); err != nil {
		return err
	}
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Name = name
	}
	s.mu.Unlock()
	return nil
}

// DeleteProject closes the project's session without saving and removes it.
func (s *BuilderService) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	return s.projects.DeleteProject(ctx, id)
}

// ── Sessions ───────────────────────────────────────────────

// Open loads a project into a session, or returns the already open one.
// Unreadable content opens as an empty page; the problem is logged.
func (s *BuilderService) Open(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := pagination.ParseContent([]byte(p.Content))
	if err != nil {
		s.log.Warnf("project %s: %v, opening an empty page", id, err)
	}

	sess := s.newSession(p, doc)
	for _, d := range sess.Diagnostics() {
		s.log.Warnf("project %s: %s", id, d.Message)
	}
	s.sessions[id] = sess
	s.log.Infof("opened project %s (%d pages)", id, len(doc.Pages))
	return sess, nil
}

func (s *BuilderService) newSession(p *domain.Project, doc *pagination.Document) *Session {
	store := builder.NewStore(builder.Options{
		HistoryLimit: s.opts.HistoryLimit,
		Validators:   []builder.ElementValidator{connection.CheckGroupCapacity},
	})
	pager := pagination.NewPager(store, doc)
	layers := builder.NewLayersPanel()
	layers.Attach(store)
	drag := builder.NewDragController(store, s.opts.Drag)
	conn := connection.NewCoordinator(store, connection.NewBus(), s.opts.Connection)

	sess := &Session{
		ProjectID:   p.ID,
		Name:        p.Name,
		Store:       store,
		Pager:       pager,
		Layers:      layers,
		Drag:        drag,
		Keys:        builder.NewKeymap(store, drag),
		Connections: conn,
		emitter:     s.emitter,
	}
	projectID := p.ID
	sess.detach = append(sess.detach,
		store.OnChange(func(ch builder.Change) {
			if ch.Kind == builder.ChangeElements {
				sess.touch()
			}
			s.emitter.Emit(context.Background(), domain.EventBuilderChanged, ChangedEvent{ProjectID: projectID, Kind: ch.Kind, IDs: ch.IDs})
		}),
		conn.Bus().Subscribe(func(e connection.Event) {
			s.emitter.Emit(context.Background(), e.Type.Name(), ConnectionEvent{ProjectID: projectID, Event: e})
		}),
	)
	return sess
}

// Session returns the open session of a project.
func (s *BuilderService) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotOpen, id)
	}
	return sess, nil
}

// OpenSessions returns the ids of open projects.
func (s *BuilderService) OpenSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Save writes the session content to the project store and records a
// revision.
func (s *BuilderService) Save(ctx context.Context, id, label string) (*SavedEvent, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	var ev *SavedEvent
	err = s.saving.Run(id, func() error {
		var err error
		ev, err = s.write(ctx, sess, label)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, domain.EventProjectSaved, *ev)
	return ev, nil
}

func (s *BuilderService) write(ctx context.Context, sess *Session, label string) (*SavedEvent, error) {
	id := sess.ProjectID
	// Cleared before serializing so edits made during the write stay dirty.
	sess.dirty.Store(false)
	content, err := sess.Pager.Serialize()
	if err != nil {
		sess.touch()
		return nil, err
	}
	if err := s.projects.SaveContent(ctx, id, string(content)); err != nil {
		sess.touch()
		return nil, fmt.Errorf("save project %s: %w", id, err)
	}

	ev := &SavedEvent{ProjectID: id, SavedAt: time.Now().UTC()}
	if s.revisions == nil {
		return ev, nil
	}
	if label == "" {
		label = ev.SavedAt.Format(time.RFC3339)
	}
	rev, err := s.revisions.Push(ctx, id, label, string(content))
	if err != nil {
		// The content itself is saved; a missing checkpoint is not fatal.
		s.log.Warnf("project %s: revision not recorded: %v", id, err)
		return ev, nil
	}
	ev.RevisionID = rev.ID
	return ev, nil
}

// SaveDirty saves every session with unsaved changes and returns how many
// were written. Sessions already being saved are skipped.
func (s *BuilderService) SaveDirty(ctx context.Context, label string) (int, error) {
	s.mu.Lock()
	var dirty []string
	for id, sess := range s.sessions {
		if sess.Dirty() {
			dirty = append(dirty, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	n := 0
	for _, id := range dirty {
		if _, err := s.Save(ctx, id, label); err != nil {
			if errors.Is(err, ErrSaveInProgress) || errors.Is(err, ErrSessionNotOpen) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Close ends a session, saving first when save is set and there are
// unsaved changes.
func (s *BuilderService) Close(ctx context.Context, id string, save bool) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	if save && sess.Dirty() {
		if _, err := s.Save(ctx, id, ""); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	sess.close()
	s.log.Infof("closed project %s", id)
	return nil
}

// CloseAll saves and closes every session. Used on shutdown.
func (s *BuilderService) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.OpenSessions() {
		if err := s.Close(ctx, id, true); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.saving.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ── Export & revisions ─────────────────────────────────────

// Export returns the project content as version 3. Open projects export
// their live state.
func (s *BuilderService) Export(ctx context.Context, id string) ([]byte, error) {
	if sess, err := s.Session(id); err == nil {
		return sess.Pager.Serialize()
	}
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := pagination.ParseContent([]byte(p.Content))
	if err != nil {
		s.log.Warnf("project %s: %v", id, err)
	}
	return pagination.Serialize(doc)
}

func (s *BuilderService) Revisions(ctx context.Context, projectID string) ([]domain.Revision, error) {
	if s.revisions == nil {
		return []domain.Revision{}, nil
	}
	return s.revisions.List(ctx, projectID)
}

// RestoreRevision replaces the open session's document with a revision.
// The restored state is unsaved until the next save.
func (s *BuilderService) RestoreRevision(ctx context.Context, projectID, revisionID string) error {
	if s.revisions == nil {
		return fmt.Errorf("restore revision: revisions are not kept by this backend")
	}
	sess, err := s.Session(projectID)
	if err != nil {
		return err
	}
	rev, err := s.revisions.Get(ctx, revisionID)
	if err != nil {
		return err
	}
	if rev.ProjectID != projectID {
		return fmt.Errorf("revision %s belongs to another project", revisionID)
	}
	doc, err := pagination.ParseContent([]byte(rev.Content))
	if err != nil {
		return fmt.Errorf("restore revision %s: %w", revisionID, err)
	}
	sess.Pager.Replace(doc)
	sess.touch()
	s.emitter.Emit(ctx, domain.EventProjectReloaded, PageEvent{ProjectID: projectID, PageID: sess.Pager.CurrentPageID()})
	return nil
}
