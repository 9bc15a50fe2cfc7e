package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/robfig/cron/v3"

	"smartclass/internal/logging"
)

// ─────────────────────────────────────────────────────────────
// Autosaver: periodic save of dirty sessions
// ─────────────────────────────────────────────────────────────

// Autosaver saves every open project with unsaved changes on a cron
// schedule ("@every 30s", "*/5 * * * *", ...).
type Autosaver struct {
	builder  *BuilderService
	schedule string
	log      *log.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewAutosaver(b *BuilderService, schedule string) *Autosaver {
	return &Autosaver{builder: b, schedule: schedule, log: logging.New("autosave")}
}

// Start schedules the autosave job. Calling Start twice restarts it.
func (a *Autosaver) Start(ctx context.Context) error {
	a.Stop()

	c := cron.New()
	if _, err := c.AddFunc(a.schedule, func() { a.Tick(ctx) }); err != nil {
		return fmt.Errorf("autosave: invalid schedule %q: %w", a.schedule, err)
	}
	c.Start()

	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()
	a.log.Infof("scheduled %q", a.schedule)
	return nil
}

// Tick saves dirty sessions once.
func (a *Autosaver) Tick(ctx context.Context) int {
	n, err := a.builder.SaveDirty(ctx, "autosave")
	if err != nil {
		a.log.Errorf("autosave failed: %v", err)
	}
	if n > 0 {
		a.log.Debugf("saved %d project(s)", n)
	}
	return n
}

// Stop halts the schedule and waits for a running tick.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
