package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/backend/local"
	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/search"
	"github.com/listenupapp/tagnotes/internal/service"
	"github.com/listenupapp/tagnotes/internal/session"
	"github.com/listenupapp/tagnotes/internal/sse"
	"github.com/listenupapp/tagnotes/internal/store"
)

const testGrace = 5 * time.Second

// testEnvelope decodes a successful response.
type testEnvelope[T any] struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// testErrorEnvelope decodes a coded error response.
type testErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type testServer struct {
	*Server
	api   humatest.TestAPI
	sched *pending.ManualScheduler
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard().Logger

	lb, err := local.Open(local.MemoryPath, session.NewMemory(), log)
	require.NoError(t, err)
	data := store.New(lb, log)

	c := cache.New(cache.WithDedupeInterval(0), cache.WithLogger(log))
	res := service.NewResources(c, data)
	index, err := search.NewNoteIndex(log)
	require.NoError(t, err)

	sched := pending.NewManualScheduler()
	notes := service.NewNoteService(data, res, index, log,
		pending.WithScheduler[domain.ID](sched),
		pending.WithGracePeriod[domain.ID](testGrace),
	)
	manager := sse.NewManager(log)

	services := &Services{
		Auth:  service.NewAuthService(data, res, notes, log),
		Notes: notes,
		Tags:  service.NewTagService(data, res, log),
		Cache: c,
		SSE:   manager,
	}
	s := NewServer(services, sse.NewHandler(manager, log), config.ServerConfig{
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		CORSOrigins:    []string{"http://localhost:5173"},
	}, log)

	t.Cleanup(func() {
		s.Close()
		notes.Close()
		_ = manager.Shutdown(context.Background())
		_ = index.Close()
		_ = c.Close()
		_ = lb.Close()
	})

	return &testServer{Server: s, api: humatest.Wrap(t, s.api), sched: sched}
}

// signUp registers and signs in the test user.
func (ts *testServer) signUp(t *testing.T) {
	t.Helper()
	resp := ts.api.Post("/api/v1/auth/signup", map[string]any{
		"email":    "ada@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	require.True(t, env.Success, string(body))
	require.Equal(t, EnvelopeVersion, env.Version)
	return env.Data
}

func decodeError(t *testing.T, body []byte) testErrorEnvelope {
	t.Helper()
	var env testErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	require.False(t, env.Success)
	return env
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.SignedIn)
	assert.Equal(t, "healthy", health.Components["backend"].Status)

	ts.signUp(t)
	health = decode[HealthResponse](t, ts.api.Get("/health").Body.Bytes())
	assert.True(t, health.SignedIn)
}

func TestRateLimitMiddleware(t *testing.T) {
	ts := setupTestServer(t)

	s := NewServer(ts.services, nil, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}, nil)
	t.Cleanup(s.Close)
	api := humatest.Wrap(t, s.api)

	assert.Equal(t, http.StatusOK, api.Get("/health").Code)

	resp := api.Get("/health")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, codeRateLimited, decodeError(t, resp.Body.Bytes()).Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "127.0.0.1:1", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.3"}, "127.0.0.1:1", "10.0.0.3"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[::1]:80", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}
