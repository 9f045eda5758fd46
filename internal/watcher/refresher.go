package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// RefreshFunc reloads data that another process may have changed.
type RefreshFunc func(ctx context.Context) error

// DatabaseNames returns the base names of a SQLite database and the journal
// files a write can touch. The shared-memory index is left out since readers
// update it too.
func DatabaseNames(dbPath string) []string {
	base := filepath.Base(dbPath)
	return []string{base, base + "-wal", base + "-journal"}
}

// Refresher runs its RefreshFuncs once a burst of changes to a database file
// has gone quiet.
type Refresher struct {
	watcher *Watcher
	refresh []RefreshFunc
	delay   time.Duration
	logger  *slog.Logger
}

// NewDatabaseRefresher watches the directory holding dbPath. The directory
// must exist.
func NewDatabaseRefresher(dbPath string, delay time.Duration, logger *slog.Logger, refresh ...RefreshFunc) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}

	w, err := New(logger, Options{
		SettleDelay:    delay,
		IgnorePatterns: []string{},
		Names:          DatabaseNames(dbPath),
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(filepath.Dir(dbPath)); err != nil {
		_ = w.Stop()
		return nil, fmt.Errorf("watch database directory: %w", err)
	}

	return &Refresher{
		watcher: w,
		refresh: refresh,
		delay:   delay,
		logger:  logger.With(slog.String("component", "refresher"), slog.String("database", dbPath)),
	}, nil
}

// Run blocks until ctx is cancelled or Stop is called.
func (r *Refresher) Run(ctx context.Context) error {
	go r.watcher.Start(ctx) //nolint:errcheck // Start only returns nil

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.watcher.done:
			return nil
		case event := <-r.watcher.Events():
			r.logger.Debug("database file changed", "type", event.Type.String(), "path", event.Path)
			if timer == nil {
				timer = time.NewTimer(r.delay)
			} else {
				timer.Reset(r.delay)
			}
			fire = timer.C
		case err := <-r.watcher.Errors():
			r.logger.Warn("database watcher error", "error", err)
		case <-fire:
			fire = nil
			r.refreshAll(ctx)
		}
	}
}

// Stop ends Run and releases the watcher.
func (r *Refresher) Stop() error {
	return r.watcher.Stop()
}

func (r *Refresher) refreshAll(ctx context.Context) {
	r.logger.Info("database changed on disk, revalidating")
	for _, fn := range r.refresh {
		if err := fn(ctx); err != nil {
			r.logger.Warn("revalidate after database change failed", "error", err)
		}
	}
}
