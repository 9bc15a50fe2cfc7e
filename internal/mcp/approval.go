package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventEmitter allows the approval queue to notify the frontend.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
	EventElementsChanged   = "mcp:elements-changed"
)

// PendingAction is a destructive tool call awaiting a decision.
type PendingAction struct {
	ID          string   `json:"id"`
	Tool        string   `json:"tool"`
	Description string   `json:"description"`
	ProjectID   string   `json:"projectId"`
	ElementIDs  []string `json:"elementIds,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

type actionResult struct {
	approved bool
}

// ApprovalQueue holds destructive tool calls until the builder user approves
// or rejects them. Without a user (AutoApprove) every request passes.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan actionResult
	ctx     context.Context
	emitter EventEmitter
	timeout time.Duration
	auto    bool
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter, autoApprove bool) *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]chan actionResult),
		ctx:     ctx,
		emitter: emitter,
		timeout: 120 * time.Second,
		auto:    autoApprove,
	}
}

// Request blocks until the action is approved, rejected or times out.
func (q *ApprovalQueue) Request(action PendingAction) (bool, error) {
	if q.auto {
		return true, nil
	}
	action.ID = uuid.New().String()
	action.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	ch := make(chan actionResult, 1)
	q.mu.Lock()
	q.pending[action.ID] = ch
	q.mu.Unlock()

	q.emitter.Emit(q.ctx, EventApprovalRequired, action)

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()
	select {
	case result := <-ch:
		q.cleanup(action.ID)
		if !result.approved {
			return false, fmt.Errorf("action rejected by user: %s", action.Tool)
		}
		return true, nil
	case <-timer.C:
		q.cleanup(action.ID)
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": action.ID})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, action.Tool)
	case <-q.ctx.Done():
		q.cleanup(action.ID)
		return false, fmt.Errorf("context cancelled")
	}
}

// Pending returns the ids of actions awaiting a decision.
func (q *ApprovalQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	return ids
}

func (q *ApprovalQueue) Approve(actionID string) {
	q.resolve(actionID, true)
}

func (q *ApprovalQueue) Reject(actionID string) {
	q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if ok {
		select {
		case ch <- actionResult{approved: approved}:
		default:
		}
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
