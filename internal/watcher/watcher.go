// Package watcher reports settled file changes in watched directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrStopped is returned by Watch after Stop.
var ErrStopped = errors.New("watcher stopped")

// Watcher monitors directories with fsnotify and emits an Event once a file
// has gone SettleDelay without another write.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	pending map[string]*pendingEvent
	mu      sync.Mutex

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once
}

// pendingEvent tracks a file that may still be changing.
type pendingEvent struct {
	created bool
	timer   *time.Timer
}

// New creates a watcher. Nothing is watched until Watch is called.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger.With(slog.String("component", "watcher")),
		opts:    opts,
		watcher: fw,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a directory to be monitored. A file path watches its parent
// directory. Subdirectories are not followed.
func (w *Watcher) Watch(path string) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}

	if err := w.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to add watch on %s: %w", path, err)
	}
	w.logger.Debug("added watch", "path", path)
	return nil
}

// Start processes events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("error channel full, dropping watcher error", "error", err)
			}
		}
	}
}

// Stop releases resources. Pending settle timers are discarded.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for path, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

// Events returns the channel of settled events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name
	if w.opts.shouldIgnore(path) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancelPending(path)
		w.emit(Event{Type: EventRemoved, Path: path})
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.settle(path, event.Op&fsnotify.Create != 0)
	}
}

// settle (re)starts the quiet-period timer for path.
func (w *Watcher) settle(path string, created bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		created = created || p.created
	}

	p := &pendingEvent{created: created}
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.fire(path, p) })
	w.pending[path] = p
}

func (w *Watcher) fire(path string, p *pendingEvent) {
	w.mu.Lock()
	if w.pending[path] != p {
		// Superseded by a later write.
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		// Gone before it settled; the remove event covers it.
		return
	}
	if info.IsDir() {
		return
	}

	typ := EventModified
	if p.created {
		typ = EventAdded
	}
	w.emit(Event{Type: typ, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) emit(event Event) {
	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.events <- event:
		w.logger.Debug("file event", "type", event.Type.String(), "path", event.Path)
	case <-w.done:
	default:
		w.logger.Warn("event channel full, dropping event", "path", event.Path)
	}
}
