package api

import (
	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/service"
	"github.com/listenupapp/tagnotes/internal/sse"
)

// Services groups the business logic used by the API server.
type Services struct {
	Auth  *service.AuthService
	Notes *service.NoteService
	Tags  *service.TagService
	// Cache and SSE are only read by the health check.
	Cache *cache.Store
	SSE   *sse.Manager
}
