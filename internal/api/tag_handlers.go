package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns all tags for the current user",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags",
		Summary:       "Create tag",
		Description:   "Creates a new tag. Text and color are both required.",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "findOrCreateTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/find-or-create",
		Summary:     "Find or create tag",
		Description: "Returns the tag with this text, creating it with a random palette color when missing",
		Tags:        []string{"Tags"},
	}, s.handleFindOrCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "recentTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/recent",
		Summary:     "Recent tags",
		Description: "Returns the most recently used tags, optionally filtered by text",
		Tags:        []string{"Tags"},
	}, s.handleRecentTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "tagPalette",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/palette",
		Summary:     "Tag palette",
		Description: "Returns the colors offered for tags",
		Tags:        []string{"Tags"},
	}, s.handleTagPalette)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag by ID",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTag",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Update tag",
		Description: "Changes a tag's text and color. Notes carrying the tag are refreshed.",
		Tags:        []string{"Tags"},
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTag",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tags/{id}",
		Summary:       "Delete tag",
		Description:   "Removes the tag from every note, then deletes it",
		Tags:          []string{"Tags"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteTag)
}

// === DTOs ===

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID        string    `json:"id" doc:"Tag ID"`
	Text      string    `json:"text" doc:"Tag text, lowercased"`
	Color     string    `json:"color" doc:"Display color"`
	CreatedAt time.Time `json:"created_at,omitzero" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at,omitzero" doc:"Last time the tag was used or changed"`
}

// ListTagsResponse contains a list of tags.
type ListTagsResponse struct {
	Tags []TagResponse `json:"tags" doc:"List of tags"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// TagRequest is the request body for creating or updating a tag.
type TagRequest struct {
	Text  string `json:"text,omitempty" maxLength:"64" doc:"Tag text"`
	Color string `json:"color,omitempty" maxLength:"32" doc:"Display color"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Body TagRequest
}

// FindOrCreateTagRequest is the request body for find-or-create.
type FindOrCreateTagRequest struct {
	Text string `json:"text,omitempty" maxLength:"64" doc:"Tag text"`
}

// FindOrCreateTagInput wraps the find-or-create request for Huma.
type FindOrCreateTagInput struct {
	Body FindOrCreateTagRequest
}

// FindOrCreateTagResponse reports the tag and whether it is new.
type FindOrCreateTagResponse struct {
	Tag     TagResponse `json:"tag" doc:"The matching or created tag"`
	Created bool        `json:"created" doc:"True when the tag did not exist yet"`
}

// FindOrCreateTagOutput wraps the find-or-create response for Huma.
type FindOrCreateTagOutput struct {
	Body FindOrCreateTagResponse
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// RecentTagsInput contains parameters for listing recent tags.
type RecentTagsInput struct {
	Filter  string   `query:"filter" doc:"Only tags whose text contains this, case-insensitive"`
	Exclude []string `query:"exclude" doc:"Tag IDs to leave out, e.g. the ones already chosen"`
	All     bool     `query:"all" doc:"Return every match instead of the most recent few"`
}

// PaletteOutput wraps the palette for Huma.
type PaletteOutput struct {
	Body struct {
		Colors []domain.PaletteColor `json:"colors" doc:"Available colors"`
	}
}

// TagIDInput contains the tag ID path parameter.
type TagIDInput struct {
	ID string `path:"id" doc:"Tag ID"`
}

// UpdateTagInput wraps the update tag request for Huma.
type UpdateTagInput struct {
	ID   string `path:"id" doc:"Tag ID"`
	Body TagRequest
}

func toTagResponse(t domain.Tag) TagResponse {
	return TagResponse{
		ID:        t.ID.String(),
		Text:      t.Text,
		Color:     t.Color,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTagResponses(tags []domain.Tag) []TagResponse {
	out := make([]TagResponse, len(tags))
	for i, t := range tags {
		out[i] = toTagResponse(t)
	}
	return out
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
	tags, err := s.services.Tags.Recent(ctx, service.RecentParams{ShowAll: true})
	if err != nil {
		return nil, err
	}
	return &ListTagsOutput{Body: ListTagsResponse{Tags: toTagResponses(tags)}}, nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	tag, err := s.services.Tags.Create(ctx, input.Body.Text, input.Body.Color)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: toTagResponse(tag)}, nil
}

func (s *Server) handleFindOrCreateTag(ctx context.Context, input *FindOrCreateTagInput) (*FindOrCreateTagOutput, error) {
	tag, created, err := s.services.Tags.FindOrCreate(ctx, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &FindOrCreateTagOutput{Body: FindOrCreateTagResponse{Tag: toTagResponse(tag), Created: created}}, nil
}

func (s *Server) handleRecentTags(ctx context.Context, input *RecentTagsInput) (*ListTagsOutput, error) {
	tags, err := s.services.Tags.Recent(ctx, service.RecentParams{
		Filter:  input.Filter,
		Exclude: toIDs(input.Exclude),
		ShowAll: input.All,
	})
	if err != nil {
		return nil, err
	}
	return &ListTagsOutput{Body: ListTagsResponse{Tags: toTagResponses(tags)}}, nil
}

func (s *Server) handleTagPalette(_ context.Context, _ *struct{}) (*PaletteOutput, error) {
	out := &PaletteOutput{}
	out.Body.Colors = domain.Palette
	return out, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *TagIDInput) (*TagOutput, error) {
	tag, err := s.services.Tags.Get(ctx, domain.ID(input.ID))
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: toTagResponse(tag)}, nil
}

func (s *Server) handleUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	tag, err := s.services.Tags.Update(ctx, domain.ID(input.ID), input.Body.Text, input.Body.Color)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: toTagResponse(tag)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *TagIDInput) (*struct{}, error) {
	if err := s.services.Tags.Delete(ctx, domain.ID(input.ID)); err != nil {
		return nil, err
	}
	return nil, nil
}
