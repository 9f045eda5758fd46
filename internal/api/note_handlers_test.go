package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/pending"
)

func (ts *testServer) createNote(t *testing.T, body map[string]any) NoteResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/notes", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[NoteResponse](t, resp.Body.Bytes())
}

func TestNotes_RequireSignIn(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/notes")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp.Body.Bytes()).Code)
}

func TestNotes_CreateAndList(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	note := ts.createNote(t, map[string]any{"text": "buy honey", "tags": []string{"Bee", "shopping"}})
	assert.Equal(t, "buy honey", note.Text)
	require.Len(t, note.Tags, 2)
	assert.Equal(t, "bee", note.Tags[0].Text)
	assert.Equal(t, pending.StateNone, note.DeleteState)

	resp := ts.api.Get("/api/v1/notes")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[ListNotesResponse](t, resp.Body.Bytes())
	require.Len(t, list.Notes, 1)
	assert.Equal(t, note.ID, list.Notes[0].ID)

	tags := decode[ListTagsResponse](t, ts.api.Get("/api/v1/tags").Body.Bytes())
	assert.Len(t, tags.Tags, 2, "tag texts were created on the fly")
}

func TestNotes_CreateValidation(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	resp := ts.api.Post("/api/v1/notes", map[string]any{"text": "   ", "tags": []string{"orphan"}})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)

	tags := decode[ListTagsResponse](t, ts.api.Get("/api/v1/tags").Body.Bytes())
	assert.Empty(t, tags.Tags, "no tag created for a rejected note")
}

func TestNotes_FilterByTag(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	tagged := ts.createNote(t, map[string]any{"text": "honey", "tags": []string{"bee"}})
	ts.createNote(t, map[string]any{"text": "milk"})

	list := decode[ListNotesResponse](t, ts.api.Get("/api/v1/notes?tag="+tagged.Tags[0].ID).Body.Bytes())
	require.Len(t, list.Notes, 1)
	assert.Equal(t, tagged.ID, list.Notes[0].ID)
}

func TestNotes_Update(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)
	note := ts.createNote(t, map[string]any{"text": "draft", "tags": []string{"bee"}})

	// Without tag_ids the tags stay.
	resp := ts.api.Patch("/api/v1/notes/"+note.ID, map[string]any{"text": "final"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode[NoteResponse](t, resp.Body.Bytes())
	assert.Equal(t, "final", updated.Text)
	assert.Len(t, updated.Tags, 1)

	resp = ts.api.Patch("/api/v1/notes/"+note.ID, map[string]any{"text": "final", "tag_ids": []string{}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Empty(t, decode[NoteResponse](t, resp.Body.Bytes()).Tags)

	resp = ts.api.Patch("/api/v1/notes/note-missing", map[string]any{"text": "x"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestNotes_GetMissing(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	resp := ts.api.Get("/api/v1/notes/note-missing")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, decodeError(t, resp.Body.Bytes()).Message, "note-missing")
}

func TestNotes_Search(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)
	honey := ts.createNote(t, map[string]any{"text": "raw honey from the market"})
	ts.createNote(t, map[string]any{"text": "oat milk"})

	resp := ts.api.Get("/api/v1/notes/search?q=honey")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decode[SearchNotesResponse](t, resp.Body.Bytes())
	require.Len(t, res.Hits, 1)
	assert.Equal(t, honey.ID, res.Hits[0].Note.ID)

	resp = ts.api.Get("/api/v1/notes/search?q=honey&limit=0")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestNotes_Grouped(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)
	ts.createNote(t, map[string]any{"text": "honey", "tags": []string{"bee"}})
	ts.createNote(t, map[string]any{"text": "loose"})

	resp := ts.api.Get("/api/v1/notes/grouped")
	require.Equal(t, http.StatusOK, resp.Code)
	groups := decode[struct {
		Groups []TagGroupResponse `json:"groups"`
	}](t, resp.Body.Bytes()).Groups

	require.Len(t, groups, 2)
	require.NotNil(t, groups[0].Tag)
	assert.Equal(t, "bee", groups[0].Tag.Text)
	assert.Nil(t, groups[1].Tag, "untagged notes come last")
	assert.Equal(t, "loose", groups[1].Notes[0].Text)
}

func TestNotes_PendingDeleteAndUndo(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)
	note := ts.createNote(t, map[string]any{"text": "maybe"})
	path := "/api/v1/notes/" + note.ID + "/pending-delete"

	resp := ts.api.Post(path, map[string]any{})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	state := decode[DeleteStateResponse](t, resp.Body.Bytes())
	assert.Equal(t, pending.StatePending, state.State)
	assert.Equal(t, testGrace.String(), state.GracePeriod)

	resp = ts.api.Post(path, map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.Code, "already pending")

	pendingIDs := decode[struct {
		NoteIDs []string `json:"note_ids"`
	}](t, ts.api.Get("/api/v1/notes/pending-deletes").Body.Bytes()).NoteIDs
	assert.Equal(t, []string{note.ID}, pendingIDs)

	resp = ts.api.Delete(path)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, pending.StateNone, decode[DeleteStateResponse](t, resp.Body.Bytes()).State)

	resp = ts.api.Delete(path)
	assert.Equal(t, http.StatusConflict, resp.Code, "nothing left to undo")

	ts.sched.Advance(testGrace)
	list := decode[ListNotesResponse](t, ts.api.Get("/api/v1/notes").Body.Bytes())
	assert.Len(t, list.Notes, 1, "undone delete never fires")
}

func TestNotes_PendingDeleteFires(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)
	note := ts.createNote(t, map[string]any{"text": "gone soon"})

	resp := ts.api.Post("/api/v1/notes/"+note.ID+"/pending-delete", map[string]any{})
	require.Equal(t, http.StatusAccepted, resp.Code)

	list := decode[ListNotesResponse](t, ts.api.Get("/api/v1/notes").Body.Bytes())
	require.Len(t, list.Notes, 1, "still listed during the undo window")
	assert.Equal(t, pending.StatePending, list.Notes[0].DeleteState)

	ts.sched.Advance(testGrace)

	list = decode[ListNotesResponse](t, ts.api.Get("/api/v1/notes").Body.Bytes())
	assert.Empty(t, list.Notes)
}

func TestNotes_DeleteUnknown(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t)

	resp := ts.api.Post("/api/v1/notes/note-missing/pending-delete", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/v1/notes/tmp-abc/pending-delete", map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.Code)
}
