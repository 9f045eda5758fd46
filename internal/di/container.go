// Package di provides dependency injection configuration for tagnotes.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/di/providers"
	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/service"
	"github.com/listenupapp/tagnotes/internal/store"
)

// NewContainer creates and configures the DI container with all providers.
// Everything is lazy: a CLI command only opens what it invokes.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, flags)

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence
	do.Provide(injector, providers.ProvideSessionStore)
	do.Provide(injector, providers.ProvideBackend)
	do.Provide(injector, providers.ProvideStore)

	// Cache and search
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideResources)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Business services
	do.Provide(injector, providers.ProvideNoteService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideAuthService)

	// Server
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideRefresher)

	return injector
}

// Bootstrap initializes the core services the CLI commands share.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*store.Store](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.NoteServiceHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.TagService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.AuthService](injector); err != nil {
		return err
	}
	return nil
}

// BootstrapServer additionally starts the HTTP API and the database refresher.
func BootstrapServer(injector *do.RootScope) error {
	if err := Bootstrap(injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.RefresherHandle](injector); err != nil {
		return err
	}
	return nil
}
