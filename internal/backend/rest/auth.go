package rest

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
)

// tokenResponse is the GoTrue session payload.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         domain.User `json:"user"`
}

// signUpResponse is either a session or, when email confirmation is on, a
// bare user.
type signUpResponse struct {
	tokenResponse
	ID    string `json:"id"`
	Email string `json:"email"`
}

type credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

func (c *Client) toSession(tr tokenResponse) *domain.Session {
	s := &domain.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		User:         tr.User,
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return s
}

// SignIn exchanges email and password for a session and keeps it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials{Email: email, Password: password},
	}, &tr)
	if err != nil {
		return nil, err
	}

	s := c.toSession(tr)
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	c.logger.Info("signed in", slog.String("user_id", s.User.ID))
	return s, nil
}

// SignUp registers a user. When the backend answers with a session it is
// kept as with SignIn; otherwise the returned session has no tokens and the
// user must confirm their email before signing in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp signUpResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		return &domain.Session{User: domain.User{ID: resp.ID, Email: resp.Email}}, nil
	}
	s := c.toSession(resp.tokenResponse)
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOut revokes the session upstream and forgets it locally. Signing out
// while signed out is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	token, err := c.accessToken(ctx)
	if err != nil && !errors.Is(err, errors.ErrUnauthorized) {
		return err
	}
	if token != "" {
		err = c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: token}, nil)
		if err != nil && !errors.Is(err, errors.ErrUnauthorized) && !isStatus(err, http.StatusUnauthorized) {
			return err
		}
	}
	return c.setSession(ctx, nil)
}

// CurrentUser asks the auth service who the session belongs to.
// A missing or rejected session means signed out.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	var u domain.User
	err = c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: token}, &u)
	if isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusForbidden) {
		c.logger.Info("session rejected, signing out locally")
		return nil, c.setSession(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser changes the signed-in user's email and/or password.
func (c *Client) UpdateUser(ctx context.Context, email, password string) (*domain.User, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return nil, err
	}

	var u domain.User
	err = c.do(ctx, request{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		body:   credentials{Email: email, Password: password},
		token:  token,
	}, &u)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		next := *c.session
		next.User = u
		c.session = &next
	}
	s := c.session
	c.mu.Unlock()
	if s != nil && c.sessions != nil {
		if err := c.sessions.Save(ctx, s); err != nil {
			c.logger.Warn("persist session failed", slog.String("error", err.Error()))
		}
	}
	return &u, nil
}

// Session returns the current session, loading it from the session store
// on first use. Nil means signed out.
func (c *Client) Session(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	return c.session, nil
}

// accessToken returns a usable access token, refreshing an expired session.
// It returns "" when signed out.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return "", err
	}
	if c.session == nil || c.session.AccessToken == "" {
		return "", nil
	}
	if !c.session.Expired(c.now()) {
		return c.session.AccessToken, nil
	}
	if c.session.RefreshToken == "" {
		c.session = nil
		return "", errors.Unauthorized("session expired, sign in again")
	}

	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": c.session.RefreshToken},
	}, &tr)
	if err != nil {
		var domainErr *errors.Error
		if errors.As(err, &domainErr) && domainErr.Status >= 400 && domainErr.Status < 500 {
			c.session = nil
			if c.sessions != nil {
				_ = c.sessions.Clear(ctx)
			}
			return "", errors.Unauthorized("session expired, sign in again").WithCause(err)
		}
		return "", err
	}

	c.session = c.toSession(tr)
	if c.sessions != nil {
		if err := c.sessions.Save(ctx, c.session); err != nil {
			c.logger.Warn("persist refreshed session failed", slog.String("error", err.Error()))
		}
	}
	c.logger.Debug("session refreshed", slog.Time("expires_at", c.session.ExpiresAt))
	return c.session.AccessToken, nil
}

// requireToken is accessToken for calls that only make sense signed in.
func (c *Client) requireToken(ctx context.Context) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", backend.ErrSignedOut
	}
	return token, nil
}

func (c *Client) loadLocked(ctx context.Context) error {
	if c.loaded || c.sessions == nil {
		c.loaded = true
		return nil
	}
	s, err := c.sessions.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "load saved session")
	}
	c.session = s
	c.loaded = true
	return nil
}

func (c *Client) setSession(ctx context.Context, s *domain.Session) error {
	c.mu.Lock()
	c.session = s
	c.loaded = true
	c.mu.Unlock()

	if c.sessions == nil {
		return nil
	}
	if s == nil {
		return c.sessions.Clear(ctx)
	}
	return c.sessions.Save(ctx, s)
}

func isStatus(err error, status int) bool {
	var domainErr *errors.Error
	return errors.As(err, &domainErr) && domainErr.Status == status
}
