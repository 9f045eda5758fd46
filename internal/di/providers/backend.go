package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/backend/local"
	"github.com/listenupapp/tagnotes/internal/backend/rest"
	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/session"
	"github.com/listenupapp/tagnotes/internal/store"
)

// SessionStoreHandle wraps the Badger session store with shutdown capability.
type SessionStoreHandle struct {
	*session.Store
}

// Shutdown implements do.Shutdownable.
func (h *SessionStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideSessionStore opens the persisted session database.
func ProvideSessionStore(i do.Injector) (*SessionStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Session.Path, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	sessions, err := session.Open(cfg.Session.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Debug("Session store opened", "path", cfg.Session.Path)
	return &SessionStoreHandle{Store: sessions}, nil
}

// BackendHandle wraps the configured backend with shutdown capability.
type BackendHandle struct {
	backend.Backend
	// LocalPath is the SQLite file of the local backend, empty for rest.
	LocalPath string
}

// Shutdown implements do.Shutdownable.
func (h *BackendHandle) Shutdown() error {
	return h.Close()
}

// ProvideBackend provides the rest or local backend, as configured.
func ProvideBackend(i do.Injector) (*BackendHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sessions := do.MustInvoke[*SessionStoreHandle](i)

	switch cfg.Backend.Kind {
	case config.BackendREST:
		client, err := rest.New(rest.Config{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
			Timeout: cfg.Backend.Timeout,
			RPS:     cfg.Backend.RPS,
			Burst:   cfg.Backend.Burst,
		}, sessions.Store, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Using hosted backend", "url", cfg.Backend.URL)
		return &BackendHandle{Backend: client}, nil

	case config.BackendLocal:
		if cfg.Backend.LocalPath != local.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(cfg.Backend.LocalPath), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err := local.Open(cfg.Backend.LocalPath, sessions.Store, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Using local backend", "path", cfg.Backend.LocalPath)
		return &BackendHandle{Backend: db, LocalPath: db.Path()}, nil

	default:
		return nil, fmt.Errorf("invalid backend kind %q", cfg.Backend.Kind)
	}
}

// ProvideStore provides the data layer on top of the backend.
func ProvideStore(i do.Injector) (*store.Store, error) {
	b := do.MustInvoke[*BackendHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return store.New(b.Backend, log.Logger), nil
}
