package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/tagnotes/internal/backend/local"
	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/service"
	"github.com/listenupapp/tagnotes/internal/watcher"
)

// RefresherHandle wraps the database refresher with shutdown capability.
// Refresher is nil unless a file-backed local database is in use.
type RefresherHandle struct {
	*watcher.Refresher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *RefresherHandle) Shutdown() error {
	if h.Refresher == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideRefresher watches the local database and revalidates notes and
// tags when another process writes to it.
func ProvideRefresher(i do.Injector) (*RefresherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	b := do.MustInvoke[*BackendHandle](i)

	if cfg.Backend.Kind != config.BackendLocal || b.LocalPath == "" || b.LocalPath == local.MemoryPath {
		return &RefresherHandle{}, nil
	}

	notes := do.MustInvoke[*NoteServiceHandle](i)
	tags := do.MustInvoke[*service.TagService](i)

	r, err := watcher.NewDatabaseRefresher(b.LocalPath, cfg.Notes.DedupeInterval, log.Logger,
		func(ctx context.Context) error {
			_, err := notes.Revalidate(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := tags.Revalidate(ctx)
			return err
		},
	)
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := r.Run(ctx); err != nil {
			log.Error("Database refresher error", "error", err)
		}
	}()

	log.Info("Watching local database for external changes", "path", b.LocalPath)
	return &RefresherHandle{Refresher: r, cancel: cancel}, nil
}
