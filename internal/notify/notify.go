// Package notify fans change events out to in-process subscribers.
//
// Publish never blocks. Each subscriber owns a small buffered channel drained
// by its own goroutine; when the buffer is full the oldest event is dropped.
// Consumers treat events as invalidation hints, so dropping is safe.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind identifies an event.
type Kind string

const (
	// DatasetChanged means the local store may differ in bulk (sync, import,
	// delete-all). Search must rehydrate and cached views must reload.
	DatasetChanged Kind = "dataset_changed"
	// EntriesChanged means individual entries were written locally.
	EntriesChanged Kind = "entries_changed"
	// SyncComplete is published after every successful sync cycle.
	SyncComplete Kind = "sync_complete"
	// SyncFailed is published when a sync cycle aborts.
	SyncFailed Kind = "sync_failed"
	// RehydrateComplete is published after the search index is rebuilt.
	RehydrateComplete Kind = "rehydrate_complete"
)

// Event is a change notification.
type Event struct {
	Kind      Kind      `json:"kind"`
	Reason    string    `json:"reason,omitempty"`
	EntryIDs  []string  `json:"entry_ids,omitempty"`
	Count     int       `json:"count,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is implemented by Hub. Components depend on this, not on Hub.
type Publisher interface {
	Publish(Event)
}

// Handler consumes events on a subscriber goroutine.
type Handler func(Event)

// Hub distributes events to subscribers.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
	wg     sync.WaitGroup
}

type subscriber struct {
	name string
	ch   chan Event
}

// NewHub creates a Hub. logger may be nil.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger.Named("notify"),
		subs:   make(map[int]*subscriber),
	}
}

// Subscribe registers h and returns a function that unsubscribes it.
// Only events whose kind is listed are delivered; no kinds means all.
func (h *Hub) Subscribe(name string, handler Handler, kinds ...Kind) (unsubscribe func()) {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	s := &subscriber{name: name, ch: make(chan Event, 16)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		for ev := range s.ch {
			if len(want) > 0 && !want[ev.Kind] {
				continue
			}
			handler(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(s.ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		for {
			select {
			case s.ch <- ev:
			default:
				// Full: drop the oldest and retry.
				select {
				case dropped := <-s.ch:
					h.logger.Debug("dropped event",
						zap.String("subscriber", s.name), zap.String("kind", string(dropped.Kind)))
				default:
				}
				continue
			}
			break
		}
	}
}

// Close unsubscribes everyone and waits for handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}
