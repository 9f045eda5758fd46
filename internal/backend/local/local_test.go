package local

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/session"
)

func setupTestStore(t *testing.T) (*Store, *session.Memory) {
	t.Helper()
	sessions := session.NewMemory()
	s, err := Open(filepath.Join(t.TempDir(), "tagnotes.db"), sessions, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, sessions
}

func signUp(t *testing.T, s *Store, email string) *domain.Session {
	t.Helper()
	sess, err := s.SignUp(context.Background(), email, "hunter22")
	require.NoError(t, err)
	return sess
}

type noteRow struct {
	Text string `json:"text"`
}

type tagRow struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type joinRow struct {
	NoteID domain.ID `json:"note_id"`
	TagID  domain.ID `json:"tag_id"`
}

func TestSignUpSignInSignOut(t *testing.T) {
	s, sessions := setupTestStore(t)
	ctx := context.Background()

	sess := signUp(t, s, " Ada@Example.com ")
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.AccessToken)

	saved, err := sessions.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, sess.AccessToken, saved.AccessToken)

	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, sess.User.ID, u.ID)

	require.NoError(t, s.SignOut(ctx))
	u, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = s.SignIn(ctx, "ada@example.com", "wrong-password")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	assert.Equal(t, "Invalid login credentials", errors.Message(err))

	again, err := s.SignIn(ctx, "ADA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, again.User.ID)
	assert.NotEqual(t, sess.AccessToken, again.AccessToken)
}

func TestSignUp_Validation(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "not-an-email", "hunter22")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = s.SignUp(ctx, "a@b.co", "123")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	signUp(t, s, "a@b.co")
	_, err = s.SignUp(ctx, "A@B.co", "hunter22")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Equal(t, "User already registered", errors.Message(err))
}

func TestSessionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	sessions := session.NewMemory()
	path := filepath.Join(dir, "db.sqlite")

	s1, err := Open(path, sessions, nil)
	require.NoError(t, err)
	sess := signUp(t, s1, "a@b.co")
	require.NoError(t, s1.Close())

	s2, err := Open(path, sessions, nil)
	require.NoError(t, err)
	defer s2.Close()

	u, err := s2.CurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, sess.User.ID, u.ID)
}

func TestExpiredSessionRefreshes(t *testing.T) {
	s, sessions := setupTestStore(t)
	ctx := context.Background()
	sess := signUp(t, s, "a@b.co")

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	var notes []domain.Note
	require.NoError(t, s.Select(ctx, backend.TableNotes, backend.Query{}, &notes))

	saved, err := sessions.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEqual(t, sess.AccessToken, saved.AccessToken)
	assert.NotEqual(t, sess.RefreshToken, saved.RefreshToken)
}

func TestRefresh_LeavesHandedOutSessionAlone(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@b.co")

	before, err := s.Session(ctx)
	require.NoError(t, err)
	token := before.AccessToken

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, s.Select(ctx, backend.TableNotes, backend.Query{}, &[]domain.Note{}))

	after, err := s.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, before.AccessToken)
	assert.NotEqual(t, token, after.AccessToken)
}

func TestDataCalls_RequireSession(t *testing.T) {
	s, _ := setupTestStore(t)
	err := s.Select(context.Background(), backend.TableNotes, backend.Query{}, &[]domain.Note{})
	assert.ErrorIs(t, err, backend.ErrSignedOut)
}

func TestInsertSelect_Embedding(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	sess := signUp(t, s, "a@b.co")

	var notes []domain.Note
	require.NoError(t, s.Insert(ctx, backend.TableNotes, []noteRow{{Text: "first"}}, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "first", notes[0].Text)
	assert.Equal(t, sess.User.ID, notes[0].UserID)
	assert.False(t, notes[0].CreatedAt.IsZero())

	var tags []domain.Tag
	require.NoError(t, s.Insert(ctx, backend.TableTags, []tagRow{{Text: "bee", Color: "teal"}, {Text: "buzz", Color: "tomato"}}, &tags))
	require.Len(t, tags, 2)

	rows := []joinRow{
		{NoteID: notes[0].ID, TagID: tags[0].ID},
		{NoteID: notes[0].ID, TagID: tags[1].ID},
	}
	require.NoError(t, s.Insert(ctx, backend.TableNotesTags, rows, nil))

	var joined []domain.NoteTag
	require.NoError(t, s.Select(ctx, backend.TableNotesTags, backend.Query{Select: backend.EmbedNotesAndTags}, &joined))
	require.Len(t, joined, 2)
	for _, j := range joined {
		require.NotNil(t, j.Notes)
		require.NotNil(t, j.Tags)
		assert.Equal(t, "first", j.Notes.Text)
		assert.Empty(t, j.NoteID, "only embedded columns were selected")
	}
	texts := []string{joined[0].Tags.Text, joined[1].Tags.Text}
	assert.ElementsMatch(t, []string{"bee", "buzz"}, texts)
}

func TestRowsAreScopedToOwner(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	signUp(t, s, "a@b.co")
	require.NoError(t, s.Insert(ctx, backend.TableNotes, noteRow{Text: "mine"}, nil))

	other := signUp(t, s, "c@d.co")
	var notes []domain.Note
	require.NoError(t, s.Select(ctx, backend.TableNotes, backend.Query{}, &notes))
	assert.Empty(t, notes)

	err := s.Insert(ctx, backend.TableNotes, map[string]any{"text": "x", "user_id": "someone-else"}, nil)
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusForbidden, e.Status)

	require.NoError(t, s.Insert(ctx, backend.TableNotes, map[string]any{"text": "theirs", "user_id": other.User.ID}, nil))
	require.NoError(t, s.Select(ctx, backend.TableNotes, backend.Query{}, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "theirs", notes[0].Text)
}

func TestUpdateDeleteAndFilters(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@b.co")

	var tags []domain.Tag
	require.NoError(t, s.Insert(ctx, backend.TableTags, []tagRow{{Text: "a", Color: "c1"}, {Text: "b", Color: "c2"}, {Text: "c", Color: "c3"}}, &tags))

	var updated []domain.Tag
	require.NoError(t, s.Update(ctx, backend.TableTags, []backend.Filter{backend.Eq("id", tags[0].ID)}, map[string]string{"color": "teal"}, &updated))
	require.Len(t, updated, 1)
	assert.Equal(t, "teal", updated[0].Color)

	var some []domain.Tag
	require.NoError(t, s.Select(ctx, backend.TableTags, backend.Query{
		Filters: []backend.Filter{backend.In("id", tags[0].ID, tags[2].ID)},
		Order:   []backend.Order{{Column: "text", Desc: true}},
	}, &some))
	require.Len(t, some, 2)
	assert.Equal(t, "c", some[0].Text)
	assert.Equal(t, "a", some[1].Text)

	require.NoError(t, s.Delete(ctx, backend.TableTags, []backend.Filter{backend.Neq("id", tags[1].ID)}))
	var rest []domain.Tag
	require.NoError(t, s.Select(ctx, backend.TableTags, backend.Query{Select: "id,text"}, &rest))
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].Text)
	assert.Empty(t, rest[0].Color)

	err := s.Delete(ctx, backend.TableTags, nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestConstraintErrors(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@b.co")

	var notes []domain.Note
	require.NoError(t, s.Insert(ctx, backend.TableNotes, noteRow{Text: "n"}, &notes))
	var tags []domain.Tag
	require.NoError(t, s.Insert(ctx, backend.TableTags, tagRow{Text: "t", Color: "c"}, &tags))
	require.NoError(t, s.Insert(ctx, backend.TableNotesTags, joinRow{NoteID: notes[0].ID, TagID: tags[0].ID}, nil))

	t.Run("duplicate tag text", func(t *testing.T) {
		err := s.Insert(ctx, backend.TableTags, tagRow{Text: "t", Color: "x"}, nil)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})

	t.Run("note still referenced", func(t *testing.T) {
		err := s.Delete(ctx, backend.TableNotes, []backend.Filter{backend.Eq("id", notes[0].ID)})
		var e *errors.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, http.StatusConflict, e.Status)
	})

	t.Run("unknown column", func(t *testing.T) {
		err := s.Insert(ctx, backend.TableNotes, map[string]any{"text": "x", "bogus": 1}, nil)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("unknown table", func(t *testing.T) {
		err := s.Select(ctx, "secrets", backend.Query{}, &[]map[string]any{})
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("join rows first", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, backend.TableNotesTags, []backend.Filter{backend.Eq("note_id", notes[0].ID)}))
		require.NoError(t, s.Delete(ctx, backend.TableNotes, []backend.Filter{backend.Eq("id", notes[0].ID)}))
	})
}

func TestUpdateUser(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@b.co")

	u, err := s.UpdateUser(ctx, "new@b.co", "newpassword")
	require.NoError(t, err)
	assert.Equal(t, "new@b.co", u.Email)

	require.NoError(t, s.SignOut(ctx))
	_, err = s.SignIn(ctx, "new@b.co", "newpassword")
	require.NoError(t, err)
}

func TestParseSelect(t *testing.T) {
	sel, err := parseSelect(tables[backend.TableNotesTags], "notes(*),tags(id,text)")
	require.NoError(t, err)
	assert.False(t, sel.all)
	require.Len(t, sel.embeds, 2)
	assert.Equal(t, "notes", sel.embeds[0].name)
	assert.True(t, sel.embeds[0].sel.all)
	assert.Equal(t, []string{"id", "text"}, sel.embeds[1].sel.columns)
	assert.Equal(t, []string{"note_id", "tag_id"}, sel.fetchColumns(tables[backend.TableNotesTags]))

	_, err = parseSelect(tables[backend.TableNotes], "tags(*)")
	assert.Error(t, err)

	_, err = parseSelect(tables[backend.TableNotes], "id,password")
	assert.Error(t, err)
}
