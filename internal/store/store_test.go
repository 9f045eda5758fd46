package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/backend/local"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
)

func newTestStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	s := New(fb, nil)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s, fb
}

const mockNotes = `[
	{"id": 7, "text": "first", "created_at": "2026-01-01T00:00:00Z"},
	{"id": 8, "text": "second", "created_at": "2026-01-02T00:00:00Z"},
	{"id": 9, "text": "third", "created_at": "2026-01-03T00:00:00Z"}
]`

const mockNotesTags = `[
	{"notes": {"id": 7, "text": "first", "created_at": "2026-01-01T00:00:00Z"}, "tags": {"id": 18, "text": "bee", "color": "teal"}},
	{"notes": {"id": 7, "text": "first", "created_at": "2026-01-01T00:00:00Z"}, "tags": {"id": 19, "text": "buzz", "color": "tomato"}},
	{"notes": {"id": 9, "text": "third", "created_at": "2026-01-03T00:00:00Z"}, "tags": {"id": 19, "text": "buzz", "color": "tomato"}},
	{"notes": null, "tags": {"id": 18, "text": "bee", "color": "teal"}}
]`

func TestLoadNotes(t *testing.T) {
	s, fb := newTestStore(t)
	fb.selects[backend.TableNotes] = mockNotes
	fb.selects[backend.TableNotesTags] = mockNotesTags

	notes, err := s.LoadNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 3)

	gotIDs := []domain.ID{notes[0].ID, notes[1].ID, notes[2].ID}
	assert.Equal(t, domain.IDs("9", "8", "7"), gotIDs, "newest first")

	tagTexts := func(n domain.Note) []string {
		out := []string{}
		for _, t := range n.Tags {
			out = append(out, t.Text)
		}
		return out
	}
	if diff := cmp.Diff([]string{"bee", "buzz"}, tagTexts(notes[2])); diff != "" {
		t.Errorf("note 7 tags (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"buzz"}, tagTexts(notes[0]))
	assert.NotNil(t, notes[1].Tags)
	assert.Empty(t, notes[1].Tags)
}

func TestLoadNotes_FailureIsReturned(t *testing.T) {
	s, fb := newTestStore(t)
	fb.err["select notes_tags"] = errors.Remote(500, "boom")

	_, err := s.LoadNotes(context.Background())
	require.Error(t, err)
	assert.Equal(t, "boom", errors.Message(err))
}

func TestLoadTags_NeverNil(t *testing.T) {
	s, fb := newTestStore(t)
	fb.selects[backend.TableTags] = "null"

	tags, err := s.LoadTags(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestAddNote(t *testing.T) {
	s, fb := newTestStore(t)
	fb.inserts[backend.TableNotes] = `[{"id": 10, "text": "hello"}]`

	note, err := s.AddNote(context.Background(), "  hello ", domain.IDs("18", "19", "18"))
	require.NoError(t, err)
	assert.Equal(t, domain.ID("10"), note.ID)
	assert.NotNil(t, note.Tags)

	inserts := fb.callsFor("insert", backend.TableNotes)
	require.Len(t, inserts, 1)
	assert.JSONEq(t, `[{"text":"hello","user_id":"u1"}]`, inserts[0].Body)

	touches := fb.callsFor("update", backend.TableTags)
	require.Len(t, touches, 2)
	for _, c := range touches {
		assert.JSONEq(t, `{"updated_at":"2026-05-01T09:00:00Z"}`, c.Body)
	}

	links := fb.callsFor("insert", backend.TableNotesTags)
	require.Len(t, links, 1)
	assert.JSONEq(t, `[
		{"note_id":10,"tag_id":18,"user_id":"u1"},
		{"note_id":10,"tag_id":19,"user_id":"u1"}
	]`, links[0].Body)
}

func TestAddNote_EmptyTextRejectedLocally(t *testing.T) {
	s, fb := newTestStore(t)

	_, err := s.AddNote(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Empty(t, fb.Calls())
}

func TestUpdateNote_DiffsTags(t *testing.T) {
	s, fb := newTestStore(t)
	fb.updates[backend.TableNotes] = `[{"id": 7, "text": "edited"}]`

	note, err := s.UpdateNote(context.Background(), "7", "edited", domain.IDs("18", "19"), domain.IDs("19", "20"))
	require.NoError(t, err)
	assert.Equal(t, "edited", note.Text)

	links := fb.callsFor("insert", backend.TableNotesTags)
	require.Len(t, links, 1)
	assert.JSONEq(t, `[{"note_id":7,"tag_id":20,"user_id":"u1"}]`, links[0].Body)

	unlinks := fb.callsFor("delete", backend.TableNotesTags)
	require.Len(t, unlinks, 1)
	assert.Equal(t, []string{"note_id=eq.7", "tag_id=eq.18"}, unlinks[0].Filters)
}

func TestUpdateNote_UnchangedTagsTouchNoLinks(t *testing.T) {
	s, fb := newTestStore(t)
	fb.updates[backend.TableNotes] = `[{"id": 7, "text": "same"}]`

	_, err := s.UpdateNote(context.Background(), "7", "same", domain.IDs("18"), domain.IDs("18"))
	require.NoError(t, err)
	assert.Empty(t, fb.callsFor("insert", backend.TableNotesTags))
	assert.Empty(t, fb.callsFor("delete", backend.TableNotesTags))
}

func TestUpdateNote_Missing(t *testing.T) {
	s, fb := newTestStore(t)
	fb.updates[backend.TableNotes] = `[]`

	_, err := s.UpdateNote(context.Background(), "404", "x", nil, nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDeleteNote_JoinRowsFirst(t *testing.T) {
	s, fb := newTestStore(t)
	require.NoError(t, s.DeleteNote(context.Background(), "7"))

	calls := fb.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, call{Verb: "delete", Table: backend.TableNotesTags, Filters: []string{"note_id=eq.7"}}, calls[0])
	assert.Equal(t, call{Verb: "delete", Table: backend.TableNotes, Filters: []string{"id=eq.7"}}, calls[1])
}

func TestDeleteNote_StopsWhenUnlinkFails(t *testing.T) {
	s, fb := newTestStore(t)
	fb.err["delete notes_tags"] = errors.Remote(503, "unavailable")

	err := s.DeleteNote(context.Background(), "7")
	require.Error(t, err)
	assert.Len(t, fb.Calls(), 1)
}

func TestAddTag_RequiresTextAndColor(t *testing.T) {
	for name, in := range map[string][2]string{
		"no color": {"bee", ""},
		"no text":  {"", "teal"},
		"blank":    {"   ", "teal"},
	} {
		t.Run(name, func(t *testing.T) {
			s, fb := newTestStore(t)
			_, err := s.AddTag(context.Background(), in[0], in[1])
			require.Error(t, err)
			assert.Contains(t, errors.Message(err), "text and color are required")
			assert.Empty(t, fb.Calls(), "no remote call")
		})
	}
}

func TestAddTag_Lowercases(t *testing.T) {
	s, fb := newTestStore(t)
	fb.inserts[backend.TableTags] = `[{"id": 30, "text": "bee keeping", "color": "teal"}]`

	tag, err := s.AddTag(context.Background(), " Bee  KEEPING ", "teal")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("30"), tag.ID)

	inserts := fb.callsFor("insert", backend.TableTags)
	require.Len(t, inserts, 1)
	assert.JSONEq(t, `[{"text":"bee keeping","color":"teal","user_id":"u1","updated_at":"2026-05-01T09:00:00Z"}]`, inserts[0].Body)
}

func TestDeleteTag_JoinRowsFirst(t *testing.T) {
	s, fb := newTestStore(t)
	require.NoError(t, s.DeleteTag(context.Background(), "18"))

	calls := fb.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"tag_id=eq.18"}, calls[0].Filters)
	assert.Equal(t, backend.TableTags, calls[1].Table)
}

func TestSignedOutWritesFail(t *testing.T) {
	s, fb := newTestStore(t)
	fb.user = nil

	_, err := s.AddTag(context.Background(), "bee", "teal")
	assert.ErrorIs(t, err, backend.ErrSignedOut)
	assert.Empty(t, fb.callsFor("insert", backend.TableTags))
}

// TestAgainstLocalBackend runs the whole data layer on the embedded backend.
func TestAgainstLocalBackend(t *testing.T) {
	b, err := local.Open(filepath.Join(t.TempDir(), "db.sqlite"), nil, nil)
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	sess, err := b.SignUp(ctx, "a@b.co", "hunter22")
	require.NoError(t, err)

	s := New(b, nil)
	_, err = s.AddUser(ctx, sess.User.ID)
	require.NoError(t, err)

	bee, err := s.AddTag(ctx, "Bee", "teal")
	require.NoError(t, err)
	buzz, err := s.AddTag(ctx, "buzz", "tomato")
	require.NoError(t, err)

	first, err := s.AddNote(ctx, "first", []domain.ID{bee.ID, buzz.ID})
	require.NoError(t, err)
	_, err = s.AddNote(ctx, "second", nil)
	require.NoError(t, err)

	notes, err := s.LoadNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Text)
	assert.Equal(t, []domain.ID{bee.ID, buzz.ID}, notes[1].TagIDs())
	assert.Empty(t, notes[0].Tags)

	_, err = s.UpdateNote(ctx, first.ID, "first, edited", []domain.ID{bee.ID, buzz.ID}, []domain.ID{buzz.ID})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTag(ctx, buzz.ID))

	notes, err = s.LoadNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first, edited", notes[1].Text)
	assert.Empty(t, notes[1].Tags)

	require.NoError(t, s.DeleteNote(ctx, first.ID))
	tags, err := s.LoadTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "bee", tags[0].Text)
}

func TestAddTag_RejectsOddCharacters(t *testing.T) {
	s, fb := newTestStore(t)

	_, err := s.AddTag(context.Background(), "bee!", "teal")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, "Must be alphanumeric, received bee!", errors.Message(err))
	assert.Empty(t, fb.Calls())
}
