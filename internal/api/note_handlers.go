package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/search"
	"github.com/listenupapp/tagnotes/internal/service"
)

func (s *Server) registerNoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes",
		Summary:     "List notes",
		Description: "Returns the notes newest first, optionally only those carrying a tag",
		Tags:        []string{"Notes"},
	}, s.handleListNotes)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createNote",
		Method:        http.MethodPost,
		Path:          "/api/v1/notes",
		Summary:       "Create note",
		Description:   "Creates a note. Tags can be given by ID or by text; unknown texts become new tags.",
		Tags:          []string{"Notes"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchNotes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/search",
		Summary:     "Search notes",
		Description: "Full-text search over note text and tag labels",
		Tags:        []string{"Notes"},
	}, s.handleSearchNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "groupedNotes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/grouped",
		Summary:     "Notes grouped by tag",
		Description: "Returns one group per tag, most recently used first, and the untagged notes last",
		Tags:        []string{"Notes"},
	}, s.handleGroupedNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPendingDeletes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/pending-deletes",
		Summary:     "Pending deletes",
		Description: "Returns the notes whose delete can still be undone",
		Tags:        []string{"Notes"},
	}, s.handleListPendingDeletes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNote",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Get note",
		Description: "Returns a note by ID",
		Tags:        []string{"Notes"},
	}, s.handleGetNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateNote",
		Method:      http.MethodPatch,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Update note",
		Description: "Replaces a note's text and, when given, its tags",
		Tags:        []string{"Notes"},
	}, s.handleUpdateNote)

	huma.Register(s.api, huma.Operation{
		OperationID:   "requestNoteDelete",
		Method:        http.MethodPost,
		Path:          "/api/v1/notes/{id}/pending-delete",
		Summary:       "Delete note",
		Description:   "Starts the undo window. The note is deleted once it closes.",
		Tags:          []string{"Notes"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRequestDelete)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelNoteDelete",
		Method:      http.MethodDelete,
		Path:        "/api/v1/notes/{id}/pending-delete",
		Summary:     "Undo delete",
		Description: "Cancels a pending delete while its undo window is open",
		Tags:        []string{"Notes"},
	}, s.handleCancelDelete)
}

// === DTOs ===

// NoteResponse contains note data in API responses.
type NoteResponse struct {
	ID          string        `json:"id" doc:"Note ID; tmp- IDs are still being created"`
	Text        string        `json:"text" doc:"Note text"`
	CreatedAt   time.Time     `json:"created_at" doc:"Creation time"`
	Tags        []TagResponse `json:"tags" doc:"Tags on the note"`
	DeleteState pending.State `json:"delete_state" enum:"none,pending,fired" doc:"Where the note is in the delete flow"`
}

// ListNotesInput contains parameters for listing notes.
type ListNotesInput struct {
	Tag string `query:"tag" doc:"Only notes carrying this tag ID"`
}

// ListNotesResponse contains a list of notes.
type ListNotesResponse struct {
	Notes []NoteResponse `json:"notes" doc:"List of notes"`
}

// ListNotesOutput wraps the list notes response for Huma.
type ListNotesOutput struct {
	Body ListNotesResponse
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Text     string   `json:"text,omitempty" doc:"Note text"`
	TagIDs   []string `json:"tag_ids,omitempty" doc:"IDs of existing tags to attach"`
	TagTexts []string `json:"tags,omitempty" doc:"Tag texts to attach, created when missing"`
}

// CreateNoteInput wraps the create note request for Huma.
type CreateNoteInput struct {
	Body CreateNoteRequest
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Text string `json:"text,omitempty" doc:"New note text"`
	// A missing tag_ids keeps the current tags; an empty list removes them all.
	TagIDs []string `json:"tag_ids,omitempty" nullable:"true" doc:"Tag IDs the note should carry"`
}

// UpdateNoteInput wraps the update note request for Huma.
type UpdateNoteInput struct {
	ID   string `path:"id" doc:"Note ID"`
	Body UpdateNoteRequest
}

// NoteIDInput contains the note ID path parameter.
type NoteIDInput struct {
	ID string `path:"id" doc:"Note ID"`
}

// NoteOutput wraps the note response for Huma.
type NoteOutput struct {
	Body NoteResponse
}

// SearchNotesInput contains parameters for a note search.
type SearchNotesInput struct {
	Query string `query:"q" doc:"Search text; empty lists every note"`
	Tag   string `query:"tag" doc:"Only notes carrying this tag ID"`
	Limit int    `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum number of hits"`
}

// SearchHitResponse is one search hit.
type SearchHitResponse struct {
	Note      NoteResponse `json:"note" doc:"Matching note"`
	Score     float64      `json:"score" doc:"Relevance score"`
	Highlight string       `json:"highlight,omitempty" doc:"Matching fragment with <mark> around hits"`
}

// SearchNotesResponse contains search hits, best first.
type SearchNotesResponse struct {
	Query string              `json:"query" doc:"The query that was run"`
	Total uint64              `json:"total" doc:"Total number of matches"`
	Hits  []SearchHitResponse `json:"hits" doc:"Hits, best first"`
}

// SearchNotesOutput wraps the search response for Huma.
type SearchNotesOutput struct {
	Body SearchNotesResponse
}

// TagGroupResponse is the notes under one tag. Tag is nil for untagged notes.
type TagGroupResponse struct {
	Tag   *TagResponse   `json:"tag" doc:"The tag, null for untagged notes"`
	Notes []NoteResponse `json:"notes" doc:"Notes carrying the tag"`
}

// GroupedNotesOutput wraps the grouped notes for Huma.
type GroupedNotesOutput struct {
	Body struct {
		Groups []TagGroupResponse `json:"groups" doc:"One group per tag"`
	}
}

// DeleteStateResponse reports a note's delete state.
type DeleteStateResponse struct {
	NoteID      string        `json:"note_id" doc:"Note ID"`
	State       pending.State `json:"state" enum:"none,pending,fired" doc:"Delete state"`
	GracePeriod string        `json:"grace_period,omitempty" doc:"How long the delete can be undone"`
}

// DeleteStateOutput wraps the delete state for Huma.
type DeleteStateOutput struct {
	Body DeleteStateResponse
}

// PendingDeletesOutput wraps the pending deletes for Huma.
type PendingDeletesOutput struct {
	Body struct {
		NoteIDs []string `json:"note_ids" doc:"Notes waiting out their undo window"`
	}
}

func toNoteResponse(v service.NoteView) NoteResponse {
	return NoteResponse{
		ID:          v.ID.String(),
		Text:        v.Text,
		CreatedAt:   v.CreatedAt,
		Tags:        toTagResponses(v.Tags),
		DeleteState: v.DeleteState,
	}
}

func toNoteResponses(views []service.NoteView) []NoteResponse {
	out := make([]NoteResponse, len(views))
	for i, v := range views {
		out[i] = toNoteResponse(v)
	}
	return out
}

// === Handlers ===

func (s *Server) handleListNotes(ctx context.Context, input *ListNotesInput) (*ListNotesOutput, error) {
	var (
		views []service.NoteView
		err   error
	)
	if input.Tag != "" {
		views, err = s.services.Notes.ByTag(ctx, domain.ID(input.Tag))
	} else {
		views, err = s.services.Notes.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &ListNotesOutput{Body: ListNotesResponse{Notes: toNoteResponses(views)}}, nil
}

func (s *Server) handleCreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	tagIDs := toIDs(input.Body.TagIDs)
	if len(input.Body.TagTexts) > 0 {
		// Reject an empty note before any tag gets created for it.
		if err := s.services.Notes.Check(input.Body.Text); err != nil {
			return nil, err
		}
		for _, text := range input.Body.TagTexts {
			tag, _, err := s.services.Tags.FindOrCreate(ctx, text)
			if err != nil {
				return nil, err
			}
			tagIDs = append(tagIDs, tag.ID)
		}
	}

	note, err := s.services.Notes.Add(ctx, input.Body.Text, tagIDs)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(service.NoteView{Note: note, DeleteState: pending.StateNone})}, nil
}

func (s *Server) handleSearchNotes(ctx context.Context, input *SearchNotesInput) (*SearchNotesOutput, error) {
	res, err := s.services.Notes.Search(ctx, search.Params{
		Query: input.Query,
		TagID: domain.ID(input.Tag),
		Limit: input.Limit,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHitResponse, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = SearchHitResponse{
			Note:      toNoteResponse(h.NoteView),
			Score:     h.Score,
			Highlight: h.Highlight,
		}
	}
	return &SearchNotesOutput{Body: SearchNotesResponse{Query: res.Query, Total: res.Total, Hits: hits}}, nil
}

func (s *Server) handleGroupedNotes(ctx context.Context, _ *struct{}) (*GroupedNotesOutput, error) {
	groups, err := s.services.Notes.GroupByTag(ctx)
	if err != nil {
		return nil, err
	}

	out := &GroupedNotesOutput{}
	out.Body.Groups = make([]TagGroupResponse, len(groups))
	for i, g := range groups {
		resp := TagGroupResponse{Notes: toNoteResponses(g.Notes)}
		if g.Tag.ID != "" {
			tag := toTagResponse(g.Tag)
			resp.Tag = &tag
		}
		out.Body.Groups[i] = resp
	}
	return out, nil
}

func (s *Server) handleListPendingDeletes(_ context.Context, _ *struct{}) (*PendingDeletesOutput, error) {
	ids := s.services.Notes.PendingDeletes()

	out := &PendingDeletesOutput{}
	out.Body.NoteIDs = make([]string, len(ids))
	for i, id := range ids {
		out.Body.NoteIDs[i] = id.String()
	}
	return out, nil
}

func (s *Server) handleGetNote(ctx context.Context, input *NoteIDInput) (*NoteOutput, error) {
	views, err := s.services.Notes.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		if v.ID == domain.ID(input.ID) {
			return &NoteOutput{Body: toNoteResponse(v)}, nil
		}
	}
	return nil, errors.NotFoundf("note %s not found", input.ID)
}

func (s *Server) handleUpdateNote(ctx context.Context, input *UpdateNoteInput) (*NoteOutput, error) {
	noteID := domain.ID(input.ID)

	tagIDs := toIDs(input.Body.TagIDs)
	if input.Body.TagIDs == nil {
		notes, err := s.services.Notes.Load(ctx)
		if err != nil {
			return nil, err
		}
		current, ok := domain.FindNote(notes, noteID)
		if !ok {
			return nil, errors.NotFoundf("note %s not found", noteID)
		}
		tagIDs = current.TagIDs()
	}

	note, err := s.services.Notes.Update(ctx, noteID, input.Body.Text, tagIDs)
	if err != nil {
		return nil, err
	}
	view := service.NoteView{Note: note, DeleteState: s.services.Notes.DeleteState(noteID)}
	return &NoteOutput{Body: toNoteResponse(view)}, nil
}

func (s *Server) handleRequestDelete(ctx context.Context, input *NoteIDInput) (*DeleteStateOutput, error) {
	noteID := domain.ID(input.ID)
	started, err := s.services.Notes.RequestDelete(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, errors.Conflict("a delete of this note is already in progress")
	}
	return &DeleteStateOutput{Body: DeleteStateResponse{
		NoteID:      noteID.String(),
		State:       s.services.Notes.DeleteState(noteID),
		GracePeriod: s.services.Notes.Deleter().GracePeriod().String(),
	}}, nil
}

func (s *Server) handleCancelDelete(_ context.Context, input *NoteIDInput) (*DeleteStateOutput, error) {
	noteID := domain.ID(input.ID)
	if !s.services.Notes.CancelDelete(noteID) {
		return nil, errors.Conflict("there is no pending delete to undo")
	}
	return &DeleteStateOutput{Body: DeleteStateResponse{
		NoteID: noteID.String(),
		State:  s.services.Notes.DeleteState(noteID),
	}}, nil
}
