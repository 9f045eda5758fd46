package local

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/listenupapp/tagnotes/internal/auth"
	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
)

// MinPasswordLength matches the hosted auth service default.
const MinPasswordLength = 6

func invalidLogin() error {
	e := errors.InvalidCredentials("Invalid login credentials")
	e.Status = http.StatusBadRequest
	return e
}

type account struct {
	id           string
	email        string
	passwordHash string
	createdAt    string
}

func (a account) user() domain.User {
	u := domain.User{ID: a.id, Email: a.email}
	if t, err := parseTime(a.createdAt); err == nil {
		u.CreatedAt = t
	}
	return u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return unprocessable("Unable to validate email address: invalid format")
	}
	return nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return unprocessable("Password should be at least 6 characters.")
	}
	if len(password) > auth.MaxPasswordLength {
		return unprocessable("Password is too long.")
	}
	return nil
}

// SignUp creates an account and signs it in. Accounts are confirmed at once.
func (s *Store) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "hash password")
	}
	a := account{id: uuid.NewString(), email: email, passwordHash: hash, createdAt: s.timestamp()}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		a.id, a.email, a.passwordHash, a.createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			e := errors.Conflict("User already registered")
			e.Status = http.StatusUnprocessableEntity
			return nil, e
		}
		return nil, sqlError(err, "accounts")
	}

	s.logger.Info("account created", slog.String("user_id", a.id))
	return s.startSession(ctx, a)
}

// SignIn checks the password and starts a session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	a, err := s.accountBy(ctx, "email", normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if a == nil || !auth.VerifyPassword(a.passwordHash, password) {
		return nil, invalidLogin()
	}
	return s.startSession(ctx, *a)
}

// SignOut ends the session. Signing out while signed out is not an error.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	sess := s.session
	s.mu.Unlock()

	if sess != nil {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE access_token = ?", sess.AccessToken); err != nil {
			return sqlError(err, "auth_sessions")
		}
	}
	return s.setSession(ctx, nil)
}

// CurrentUser returns the session's user, or nil when signed out.
func (s *Store) CurrentUser(ctx context.Context) (*domain.User, error) {
	uid, err := s.authorize(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	a, err := s.accountBy(ctx, "id", uid)
	if err != nil || a == nil {
		return nil, err
	}
	u := a.user()
	return &u, nil
}

// UpdateUser changes the signed-in account's email and/or password. Empty
// arguments leave the field alone.
func (s *Store) UpdateUser(ctx context.Context, email, password string) (*domain.User, error) {
	uid, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}

	if email != "" {
		email = normalizeEmail(email)
		if err := checkEmail(email); err != nil {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx, "UPDATE accounts SET email = ? WHERE id = ?", email, uid); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				e := errors.Conflict("A user with this email address has already been registered")
				e.Status = http.StatusUnprocessableEntity
				return nil, e
			}
			return nil, sqlError(err, "accounts")
		}
	}
	if password != "" {
		if err := checkPassword(password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "hash password")
		}
		if _, err := s.db.ExecContext(ctx, "UPDATE accounts SET password_hash = ? WHERE id = ?", hash, uid); err != nil {
			return nil, sqlError(err, "accounts")
		}
	}

	a, err := s.accountBy(ctx, "id", uid)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.NotFound("user not found")
	}
	u := a.user()

	s.mu.Lock()
	if s.session != nil {
		next := *s.session
		next.User = u
		s.session = &next
	}
	sess := s.session
	s.mu.Unlock()
	if sess != nil && s.sessions != nil {
		if err := s.sessions.Save(ctx, sess); err != nil {
			s.logger.Warn("persist session failed", slog.String("error", err.Error()))
		}
	}
	return &u, nil
}

// Session returns the current session; nil means signed out.
func (s *Store) Session(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	return s.session, nil
}

func (s *Store) accountBy(ctx context.Context, column, value string) (*account, error) {
	var a account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE "+column+" = ?", value,
	).Scan(&a.id, &a.email, &a.passwordHash, &a.createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlError(err, "accounts")
	}
	return &a, nil
}

func (s *Store) startSession(ctx context.Context, a account) (*domain.Session, error) {
	tokens, err := auth.NewTokens(s.now())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "mint session")
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO auth_sessions (access_token, refresh_token, account_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)",
		tokens.Access, tokens.Refresh, a.id, formatTime(tokens.ExpiresAt), s.timestamp())
	if err != nil {
		return nil, sqlError(err, "auth_sessions")
	}

	sess := &domain.Session{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		TokenType:    "bearer",
		ExpiresAt:    tokens.ExpiresAt,
		User:         a.user(),
	}
	if err := s.setSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// authorize returns the signed-in user's id, rotating an expired access
// token with its refresh token first.
func (s *Store) authorize(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return "", err
	}
	if s.session == nil {
		return "", backend.ErrSignedOut
	}

	if s.session.Expired(s.now()) {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	var uid string
	err := s.db.QueryRowContext(ctx,
		"SELECT account_id FROM auth_sessions WHERE access_token = ?", s.session.AccessToken,
	).Scan(&uid)
	if stderrors.Is(err, sql.ErrNoRows) {
		s.dropSessionLocked(ctx)
		return "", errors.Unauthorized("session expired, sign in again")
	}
	if err != nil {
		return "", sqlError(err, "auth_sessions")
	}
	return uid, nil
}

func (s *Store) refreshLocked(ctx context.Context) error {
	tokens, err := auth.NewTokens(s.now())
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mint session")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE auth_sessions SET access_token = ?, refresh_token = ?, expires_at = ? WHERE refresh_token = ?",
		tokens.Access, tokens.Refresh, formatTime(tokens.ExpiresAt), s.session.RefreshToken)
	if err != nil {
		return sqlError(err, "auth_sessions")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.dropSessionLocked(ctx)
		return errors.Unauthorized("session expired, sign in again")
	}

	// Sessions already handed out stay as they were; swap in a new one.
	next := *s.session
	next.AccessToken = tokens.Access
	next.RefreshToken = tokens.Refresh
	next.ExpiresAt = tokens.ExpiresAt
	s.session = &next
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, s.session); err != nil {
			s.logger.Warn("persist refreshed session failed", slog.String("error", err.Error()))
		}
	}
	s.logger.Debug("session refreshed")
	return nil
}

func (s *Store) dropSessionLocked(ctx context.Context) {
	s.session = nil
	if s.sessions != nil {
		_ = s.sessions.Clear(ctx)
	}
}

func (s *Store) loadLocked(ctx context.Context) error {
	if s.loaded || s.sessions == nil {
		s.loaded = true
		return nil
	}
	sess, err := s.sessions.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "load saved session")
	}
	s.session = sess
	s.loaded = true
	return nil
}

func (s *Store) setSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	s.session = sess
	s.loaded = true
	s.mu.Unlock()

	if s.sessions == nil {
		return nil
	}
	if sess == nil {
		return s.sessions.Clear(ctx)
	}
	return s.sessions.Save(ctx, sess)
}
