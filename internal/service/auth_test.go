package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/pending"
)

func TestAuthService_SignUpCreatesUserRow(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	u, err := f.auth.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = f.data.AddUser(ctx, u.ID)
	assert.ErrorIs(t, err, errors.ErrConflict, "row inserted during sign up")
}

func TestAuthService_ValidatesBeforeCallingBackend(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	_, err := f.auth.SignIn(ctx, Credentials{Email: "not-an-email", Password: "hunter22"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.auth.SignUp(ctx, Credentials{Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.auth.SignIn(ctx, Credentials{Email: "bob@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials, "bob was never created")
}

func TestAuthService_SignOutCancelsDeletesAndResetsCache(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	n := f.addNote(t, "private")

	ok, err := f.notes.RequestDelete(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.auth.SignOut(ctx))
	assert.Equal(t, pending.StateNone, f.notes.DeleteState(n.ID))
	assert.False(t, f.notes.Snapshot().HasData)
	assert.False(t, f.tags.Snapshot().HasData)

	f.sched.Advance(testGrace)
	assert.Empty(t, f.backend.noteDeletes())

	u, err := f.auth.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = f.notes.Load(ctx)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestAuthService_SignInAgain(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	n := f.addNote(t, "mine")
	require.NoError(t, f.auth.SignOut(ctx))

	sess, err := f.auth.SignIn(ctx, Credentials{Email: " ada@example.com ", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)

	views, err := f.notes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, n.ID, views[0].ID)
}

func TestAuthService_UpdateUser(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	u, err := f.auth.UpdateUser(ctx, UserUpdate{Email: "ada@lovelace.dev"})
	require.NoError(t, err)
	assert.Equal(t, "ada@lovelace.dev", u.Email)

	_, err = f.auth.UpdateUser(ctx, UserUpdate{Password: "123"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.auth.UpdateUser(ctx, UserUpdate{Password: "new-secret"})
	require.NoError(t, err)
	require.NoError(t, f.auth.SignOut(ctx))

	_, err = f.auth.SignIn(ctx, Credentials{Email: "ada@lovelace.dev", Password: "new-secret"})
	require.NoError(t, err)
}
