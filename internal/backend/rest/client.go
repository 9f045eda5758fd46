// Package rest is a Backend for a hosted Supabase-compatible service: GoTrue
// for auth under /auth/v1 and PostgREST for tables under /rest/v1.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/ratelimit"
)

const (
	// Outbound rate limit shared by every call to one backend host.
	defaultRPS   = 10.0
	defaultBurst = 20

	defaultTimeout = 30 * time.Second

	userAgent = "tagnotes/1.0"
)

// Config configures a Client.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string
	// AnonKey is the public API key sent as apikey on every request.
	AnonKey string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// Client implements backend.Backend over HTTP.
type Client struct {
	base     *url.URL
	anonKey  string
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	sessions backend.SessionStore
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *domain.Session
	loaded  bool
}

var _ backend.Backend = (*Client)(nil)

// New creates a client. sessions may be nil, in which case the session only
// lives as long as the client.
func New(cfg Config, sessions backend.SessionStore, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https, got %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS == 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:     base,
		anonKey:  cfg.AnonKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  ratelimit.New(cfg.RPS, cfg.Burst),
		sessions: sessions,
		logger:   logger.With(slog.String("component", "rest")),
		now:      time.Now,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.limiter.Stop()
	return nil
}

// request is one outbound call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
	// token overrides the bearer token; empty uses the anon key.
	token string
}

// contextError reports a call stopped by ctx. A canceled caller gets its own
// error back; anything else is a retryable timeout.
func contextError(ctx context.Context, msg string, cause error) error {
	if err := ctx.Err(); err == context.Canceled {
		return err
	}
	return errors.Timeout(msg, cause)
}

// do executes req with rate limiting and decodes a 2xx body into dest.
// Non-2xx responses become *errors.Error carrying the backend's message
// and status.
func (c *Client) do(ctx context.Context, req request, dest any) error {
	if err := c.limiter.Wait(ctx, c.base.Host); err != nil {
		return contextError(ctx, "rate limit wait", err)
	}

	u := *c.base
	u.Path = c.base.Path + req.path
	u.RawQuery = encodeQuery(req.query)

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "encode request body")
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create request")
	}

	token := req.token
	if token == "" {
		token = c.anonKey
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return contextError(ctx, "backend did not respond", ctx.Err())
		}
		return errors.Remote(0, "could not reach the backend").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Remote(resp.StatusCode, "read backend response").WithCause(err)
	}

	c.logger.Debug("backend request",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", c.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.Remote(resp.StatusCode, "unexpected backend response").WithCause(err)
	}
	return nil
}

// encodeQuery keeps PostgREST operators readable ("id=eq.7", "select=notes(*)")
// while escaping anything that would break the query string.
func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for _, key := range slices.Sorted(maps.Keys(q)) {
		for _, v := range q[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(escapeValue(v))
		}
	}
	return b.String()
}

func escapeValue(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch {
		case strings.ContainsRune("*(),.:-_", r),
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteString(url.QueryEscape(string(r)))
		}
	}
	return b.String()
}
