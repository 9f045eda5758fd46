package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/store"
	"github.com/listenupapp/tagnotes/internal/validation"
)

// Credentials is an email and password pair.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// newPassword is the rule for passwords being set.
type newPassword struct {
	Password string `json:"password" validate:"min=6"`
}

const credentialsMessage = "a valid email and a password are required"

// UserUpdate changes the signed-in user. Empty fields are left alone.
type UserUpdate struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6,max=1024"`
}

// AuthService signs users in and out of the backend.
type AuthService struct {
	backend   backend.Backend
	data      *store.Store
	res       *Resources
	notes     *NoteService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates a new auth service. notes may be nil when nothing
// schedules deletes.
func NewAuthService(data *store.Store, res *Resources, notes *NoteService, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		backend:   data.Backend(),
		data:      data,
		res:       res,
		notes:     notes,
		validator: validation.New(),
		logger:    logger.With(slog.String("service", "auth")),
	}
}

func (c Credentials) normalized() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// SignIn exchanges credentials for a session. Data cached for a previous
// user is dropped.
func (s *AuthService) SignIn(ctx context.Context, creds Credentials) (*domain.Session, error) {
	creds = creds.normalized()
	if err := s.validator.Check(creds, credentialsMessage); err != nil {
		return nil, err
	}
	sess, err := s.backend.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	s.forget()
	s.logger.Info("user signed in", slog.String("user_id", sess.User.ID))
	return sess, nil
}

// SignUp registers a user. When the backend signs the user straight in, the
// application's users row is created too. Otherwise the returned session has
// no tokens and the user has to confirm their email first.
func (s *AuthService) SignUp(ctx context.Context, creds Credentials) (*domain.Session, error) {
	creds = creds.normalized()
	if err := s.validator.Check(creds, credentialsMessage); err != nil {
		return nil, err
	}
	if err := s.validator.Check(newPassword{creds.Password}, "password must be at least 6 characters"); err != nil {
		return nil, err
	}
	sess, err := s.backend.SignUp(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		s.logger.Info("user signed up, confirmation pending", slog.String("user_id", sess.User.ID))
		return sess, nil
	}

	if _, err := s.data.AddUser(ctx, sess.User.ID); err != nil {
		return nil, err
	}
	s.forget()
	s.logger.Info("user signed up", slog.String("user_id", sess.User.ID))
	return sess, nil
}

// SignOut ends the session. Pending deletes are withdrawn and the cache is
// emptied so the next user starts clean.
func (s *AuthService) SignOut(ctx context.Context) error {
	if s.notes != nil {
		if n := s.notes.CancelAllDeletes(); n > 0 {
			s.logger.Info("canceled pending deletes on sign out", slog.Int("count", n))
		}
	}
	if err := s.backend.SignOut(ctx); err != nil {
		return err
	}
	s.forget()
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *AuthService) CurrentUser(ctx context.Context) (*domain.User, error) {
	return s.backend.CurrentUser(ctx)
}

// UpdateUser changes the signed-in user's email and/or password.
func (s *AuthService) UpdateUser(ctx context.Context, upd UserUpdate) (*domain.User, error) {
	upd.Email = strings.TrimSpace(upd.Email)
	if err := s.validator.Check(upd, "invalid user update"); err != nil {
		return nil, err
	}
	if upd.Email == "" && upd.Password == "" {
		return s.CurrentUser(ctx)
	}
	return s.backend.UpdateUser(ctx, upd.Email, upd.Password)
}

func (s *AuthService) forget() {
	if s.res != nil {
		s.res.Cache.Reset()
	}
}
