package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Signs in to the backend. Data cached for a previous user is dropped.",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/signup",
		Summary:       "Register new user",
		Description:   "Creates an account. When the backend requires email confirmation no session is started.",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
	}, s.handleSignup)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/logout",
		Summary:       "Logout",
		Description:   "Ends the session, withdraws pending deletes and empties the cache",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleLogout)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/me",
		Summary:     "Current user",
		Description: "Returns the signed-in user",
		Tags:        []string{"Authentication"},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/auth/me",
		Summary:     "Update current user",
		Description: "Changes the signed-in user's email and/or password",
		Tags:        []string{"Authentication"},
	}, s.handleUpdateCurrentUser)
}

// === DTOs ===

// CredentialsRequest is the request body for login and signup.
type CredentialsRequest struct {
	Email    string `json:"email,omitempty" doc:"User email"`
	Password string `json:"password,omitempty" doc:"User password"`
}

// CredentialsInput wraps the credentials for Huma.
type CredentialsInput struct {
	Body CredentialsRequest
}

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID        string    `json:"id" doc:"User ID"`
	Email     string    `json:"email" doc:"Email address"`
	CreatedAt time.Time `json:"created_at,omitzero" doc:"Creation time"`
}

// SessionResponse describes the session after login or signup. Tokens stay
// on the server.
type SessionResponse struct {
	User                 UserResponse `json:"user" doc:"Signed-in user"`
	ExpiresAt            time.Time    `json:"expires_at,omitzero" doc:"When the access token expires"`
	ConfirmationRequired bool         `json:"confirmation_required" doc:"True when the email must be confirmed before signing in"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// UpdateUserRequest is the request body for changing the current user.
type UpdateUserRequest struct {
	Email    string `json:"email,omitempty" doc:"New email address"`
	Password string `json:"password,omitempty" doc:"New password"`
}

// UpdateUserInput wraps the update request for Huma.
type UpdateUserInput struct {
	Body UpdateUserRequest
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toSessionResponse(sess *domain.Session) SessionResponse {
	return SessionResponse{
		User:                 toUserResponse(sess.User),
		ExpiresAt:            sess.ExpiresAt,
		ConfirmationRequired: sess.AccessToken == "",
	}
}

// === Handlers ===

func (s *Server) handleLogin(ctx context.Context, input *CredentialsInput) (*SessionOutput, error) {
	sess, err := s.services.Auth.SignIn(ctx, service.Credentials{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: toSessionResponse(sess)}, nil
}

func (s *Server) handleSignup(ctx context.Context, input *CredentialsInput) (*SessionOutput, error) {
	sess, err := s.services.Auth.SignUp(ctx, service.Credentials{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: toSessionResponse(sess)}, nil
}

func (s *Server) handleLogout(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.services.Auth.SignOut(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	user, err := s.services.Auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Unauthorized("not signed in")
	}
	return &UserOutput{Body: toUserResponse(*user)}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	user, err := s.services.Auth.UpdateUser(ctx, service.UserUpdate{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Unauthorized("not signed in")
	}
	return &UserOutput{Body: toUserResponse(*user)}, nil
}
