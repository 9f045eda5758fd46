package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/service"
	"github.com/listenupapp/tagnotes/internal/store"
)

// CacheHandle wraps the optimistic cache with shutdown capability.
type CacheHandle struct {
	*cache.Store
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the optimistic cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c := cache.New(
		cache.WithLogger(log.Logger),
		cache.WithMutationTimeout(cfg.Notes.MutationTimeout),
		cache.WithDedupeInterval(cfg.Notes.DedupeInterval),
	)
	return &CacheHandle{Store: c}, nil
}

// ProvideResources binds the notes and tags cache keys to the data layer.
func ProvideResources(i do.Injector) (*service.Resources, error) {
	c := do.MustInvoke[*CacheHandle](i)
	data := do.MustInvoke[*store.Store](i)
	return service.NewResources(c.Store, data), nil
}

// NoteServiceHandle wraps the note service with shutdown capability.
type NoteServiceHandle struct {
	*service.NoteService
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. Deletes still in their grace period
// are undone rather than fired.
func (h *NoteServiceHandle) Shutdown() error {
	h.CancelAllDeletes()
	h.Close()
	h.cancel()
	return nil
}

// ProvideNoteService provides the note service. Delete state transitions go
// out to SSE clients.
func ProvideNoteService(i do.Injector) (*NoteServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	data := do.MustInvoke[*store.Store](i)
	res := do.MustInvoke[*service.Resources](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	ctx, cancel := context.WithCancel(context.Background())
	svc := service.NewNoteService(data, res, index.NoteIndex, log.Logger,
		pending.WithGracePeriod[domain.ID](cfg.Notes.DeleteGracePeriod),
		pending.WithOnChange[domain.ID](sseHandle.DeleteStateChanged),
		pending.WithBaseContext[domain.ID](ctx),
	)
	return &NoteServiceHandle{NoteService: svc, cancel: cancel}, nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	data := do.MustInvoke[*store.Store](i)
	res := do.MustInvoke[*service.Resources](i)
	return service.NewTagService(data, res, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	data := do.MustInvoke[*store.Store](i)
	res := do.MustInvoke[*service.Resources](i)
	notes := do.MustInvoke[*NoteServiceHandle](i)
	return service.NewAuthService(data, res, notes.NoteService, log.Logger), nil
}
