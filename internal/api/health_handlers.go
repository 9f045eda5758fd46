package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	SignedIn   bool                       `json:"signed_in" doc:"Whether a backend session is active"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	backendHealth, signedIn := s.checkBackend(ctx)
	components["backend"] = backendHealth
	if backendHealth.Status != "healthy" {
		overall = "degraded"
	}

	components["cache"] = s.checkCache()
	components["sse"] = s.checkSSEManager()

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			SignedIn:   signedIn,
			Components: components,
		},
	}, nil
}

// checkBackend asks the backend who is signed in. Being signed out is healthy.
func (s *Server) checkBackend(ctx context.Context) (ComponentHealth, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	user, err := s.services.Auth.CurrentUser(ctx)
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: err.Error(),
		}, false
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}, user != nil
}

func (s *Server) checkCache() ComponentHealth {
	if s.services.Cache == nil {
		return ComponentHealth{Status: "degraded", Message: "cache not configured"}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: fmt.Sprintf("%d entries", len(s.services.Cache.Keys())),
	}
}

func (s *Server) checkSSEManager() ComponentHealth {
	if s.services.SSE == nil {
		return ComponentHealth{Status: "degraded", Message: "event stream not configured"}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: fmt.Sprintf("%d clients", s.services.SSE.ClientCount()),
	}
}
