package connection

import (
	"sort"
	"sync"

	"smartclass/internal/domain"
)

type EventType string

const (
	EventAttempt  EventType = "attempt"
	EventConfirm  EventType = "confirm"
	EventFeedback EventType = "feedback"
	EventReset    EventType = "reset"
	EventVisual   EventType = "visual"
)

// Name maps the event type to the name frontends subscribe to.
func (t EventType) Name() string {
	switch t {
	case EventAttempt:
		return domain.EventConnectionAttempt
	case EventConfirm:
		return domain.EventConnectionConfirm
	case EventFeedback:
		return domain.EventConnectionFeedback
	case EventReset:
		return domain.EventConnectionReset
	case EventVisual:
		return domain.EventConnectionVisual
	}
	return "connection:" + string(t)
}

type FeedbackType string

const (
	FeedbackSuccess FeedbackType = "success"
	FeedbackError   FeedbackType = "error"
)

// Event is the payload carried on a canvas bus. Fields not relevant to the
// event type are left zero.
type Event struct {
	Type         EventType    `json:"type"`
	SourceID     string       `json:"sourceId,omitempty"`
	TargetID     string       `json:"targetId,omitempty"`
	GroupID      string       `json:"groupId,omitempty"`
	Success      bool         `json:"success"`
	Color        string       `json:"color,omitempty"`
	FeedbackType FeedbackType `json:"feedbackType,omitempty"`
	Visual       *Visual      `json:"visual,omitempty"`
}

// Bus delivers events synchronously, in publish order, to every subscriber
// of one canvas. Handlers may publish further events.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	sort.Ints(ids)
	for _, id := range ids {
		b.mu.Lock()
		fn, ok := b.subs[id]
		b.mu.Unlock()
		if ok {
			fn(e)
		}
	}
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
