package daemon

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp is the kind of change seen in the inbox.
type EventOp int

const (
	// OpCreate indicates a new file appeared.
	OpCreate EventOp = iota
	// OpModify indicates a file was written to.
	OpModify
)

func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	default:
		return "unknown"
	}
}

// FileEvent is a change to a *.json file directly inside the inbox.
type FileEvent struct {
	Path string
	Op   EventOp
}

// InboxWatcher watches one directory for snapshot files.
type InboxWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dir     string
}

// NewInboxWatcher creates a watcher. Call Start before reading events.
func NewInboxWatcher() (*InboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &InboxWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching dir.
func (w *InboxWatcher) Start(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve inbox %s: %w", dir, err)
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", abs, err)
	}

	w.dir = abs
	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop closes the watcher and its channels. It is safe to call twice.
func (w *InboxWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events is closed when the watcher stops.
func (w *InboxWatcher) Events() <-chan FileEvent { return w.events }

// Errors is closed when the watcher stops.
func (w *InboxWatcher) Errors() <-chan error { return w.errors }

// IsRunning reports whether Start succeeded and Stop has not been called.
func (w *InboxWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *InboxWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if fe, ok := w.convertEvent(event); ok {
				select {
				case w.events <- fe:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent keeps creates and writes of *.json files in the inbox itself.
// Renames and removals are ignored: the daemon moves files out after import.
func (w *InboxWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return FileEvent{}, false
	}
	if filepath.Dir(event.Name) != w.dir {
		return FileEvent{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return FileEvent{Path: event.Name, Op: OpCreate}, true
	case event.Has(fsnotify.Write):
		return FileEvent{Path: event.Name, Op: OpModify}, true
	default:
		return FileEvent{}, false
	}
}
