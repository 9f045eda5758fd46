package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_SignupLoginLogout(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/signup", map[string]any{"email": "ada@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	sess := decode[SessionResponse](t, resp.Body.Bytes())
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.False(t, sess.ConfirmationRequired)
	assert.NotContains(t, resp.Body.String(), "access_token", "tokens stay on the server")

	resp = ts.api.Get("/api/v1/auth/me")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, sess.User.ID, decode[UserResponse](t, resp.Body.Bytes()).ID)

	resp = ts.api.Post("/api/v1/auth/logout", map[string]any{})
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/auth/me")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{"email": "ada@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, sess.User.ID, decode[SessionResponse](t, resp.Body.Bytes()).User.ID)
}

func TestAuth_LoginErrors(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing email", map[string]any{"password": "hunter22"}, http.StatusBadRequest, "VALIDATION"},
		{"bad email", map[string]any{"email": "ada", "password": "hunter22"}, http.StatusBadRequest, "VALIDATION"},
		{"wrong password", map[string]any{"email": "ada@example.com", "password": "nope-nope"}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/auth/login", tt.body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			assert.Equal(t, tt.code, decodeError(t, resp.Body.Bytes()).Code)
		})
	}
}

func TestAuth_SignupShortPassword(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/signup", map[string]any{"email": "bob@example.com", "password": "123"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "password must be at least 6 characters", decodeError(t, resp.Body.Bytes()).Message)
}

func TestAuth_UpdateCurrentUser(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	resp := ts.api.Patch("/api/v1/auth/me", map[string]any{"email": "ada@lovelace.dev"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "ada@lovelace.dev", decode[UserResponse](t, resp.Body.Bytes()).Email)

	resp = ts.api.Patch("/api/v1/auth/me", map[string]any{"password": "123"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
