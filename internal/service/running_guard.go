package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// SaveGuard: one save per project at a time
// ─────────────────────────────────────────────────────────────

// SaveGuard keeps a manual save and the autosave tick from writing the same
// project concurrently. The zero value is ready to use.
type SaveGuard struct {
	mu     sync.Mutex
	active map[string]chan struct{}
}

// Run calls fn unless a save of projectID is already running, in which case
// it returns ErrSaveInProgress without waiting.
func (g *SaveGuard) Run(projectID string, fn func() error) error {
	done, ok := g.acquire(projectID)
	if !ok {
		return ErrSaveInProgress
	}
	defer g.release(projectID, done)
	return fn()
}

// Busy reports whether projectID is being saved right now.
func (g *SaveGuard) Busy(projectID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[projectID]
	return ok
}

// Wait blocks until every save running at call time has finished, or ctx
// ends first.
func (g *SaveGuard) Wait(ctx context.Context) error {
	g.mu.Lock()
	pending := make([]chan struct{}, 0, len(g.active))
	for _, ch := range g.active {
		pending = append(pending, ch)
	}
	g.mu.Unlock()

	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (g *SaveGuard) acquire(projectID string) (chan struct{}, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[projectID]; ok {
		return nil, false
	}
	if g.active == nil {
		g.active = make(map[string]chan struct{})
	}
	done := make(chan struct{})
	g.active[projectID] = done
	return done, true
}

func (g *SaveGuard) release(projectID string, done chan struct{}) {
	g.mu.Lock()
	delete(g.active, projectID)
	g.mu.Unlock()
	close(done)
}
