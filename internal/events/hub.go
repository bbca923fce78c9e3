// Package events carries in-process notifications between components, such as the
// token-refresh hook consumed by audit logging.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by deskpilot components.
const (
	TokenRefreshed      = "token.refreshed"
	TokenExchanged      = "token.exchanged"
	DraftSaved          = "draft.saved"
	DraftSent           = "draft.sent"
	DraftCleared        = "draft.cleared"
	TicketReplied       = "ticket.replied"
	TicketStatusUpdated = "ticket.status_updated"
	TicketTagged        = "ticket.tagged"
)

// Event is a single notification.
type Event struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// New stamps an event with an id and the current UTC time.
func New(eventType string, data map[string]any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	}
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Hub fans events out to subscribers.
type Hub interface {
	Publish(Event)
	// Subscribe registers h for eventType ("*" for every type) and returns an
	// unsubscribe function.
	Subscribe(eventType string, h Handler) func()
}

type subscription struct {
	id      uint64
	handler Handler
}

// MemoryHub is the default in-process hub.
type MemoryHub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string][]subscription)}
}

func (h *MemoryHub) Publish(e Event) {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs[e.Type])+len(h.subs["*"]))
	for _, s := range h.subs[e.Type] {
		targets = append(targets, s.handler)
	}
	for _, s := range h.subs["*"] {
		targets = append(targets, s.handler)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(e)
	}
}

func (h *MemoryHub) Subscribe(eventType string, handler Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs[eventType] = append(h.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[eventType]
		for i, s := range list {
			if s.id == id {
				h.subs[eventType] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

var (
	globalMu  sync.RWMutex
	globalHub Hub = NewMemoryHub()
)

// SetHub replaces the shared hub instance and returns the previous hub.
func SetHub(h Hub) Hub {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := globalHub
	if h == nil {
		globalHub = NewMemoryHub()
	} else {
		globalHub = h
	}
	return prev
}

// GetHub returns the shared hub instance.
func GetHub() Hub {
	globalMu.RLock()
	h := globalHub
	globalMu.RUnlock()
	return h
}

// OrGlobal returns h, or the shared hub when h is nil.
func OrGlobal(h Hub) Hub {
	if h == nil {
		return GetHub()
	}
	return h
}
