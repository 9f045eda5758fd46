// Package store is the data layer: every read and write the application
// makes against the backend, with notes returned already joined to their tags.
package store

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/denorm"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/normalize"
	"github.com/listenupapp/tagnotes/internal/validation"
)

// TagRequiredMessage is shown when a tag is created without text or color.
const TagRequiredMessage = "text and color are required for tags"

// Store talks to the backend on behalf of the services.
type Store struct {
	backend   backend.Backend
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Store over b.
func New(b backend.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:   b,
		validator: validation.New(),
		logger:    logger.With(slog.String("component", "store")),
		now:       time.Now,
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() backend.Backend { return s.backend }

// Rows as written. Reads decode into the domain types.
type (
	noteRow struct {
		Text   string `json:"text"`
		UserID string `json:"user_id"`
	}
	tagRow struct {
		Text      string `json:"text"`
		Color     string `json:"color"`
		UserID    string `json:"user_id"`
		UpdatedAt string `json:"updated_at"`
	}
	tagPatch struct {
		Text      string `json:"text,omitempty"`
		Color     string `json:"color,omitempty"`
		UpdatedAt string `json:"updated_at"`
	}
	joinRow struct {
		NoteID domain.ID `json:"note_id"`
		TagID  domain.ID `json:"tag_id"`
		UserID string    `json:"user_id"`
	}
	touch struct {
		UpdatedAt string `json:"updated_at"`
	}
)

type noteInput struct {
	Text string `json:"text" validate:"notblank,max=10000"`
}

type tagInput struct {
	Text  string `json:"text" validate:"notblank,max=100"`
	Color string `json:"color" validate:"notblank,max=64"`
}

type tagTextInput struct {
	Text string `json:"text" validate:"tagtext"`
}

// CheckNote validates note text the way AddNote and UpdateNote will.
func (s *Store) CheckNote(text string) error {
	return s.validator.Check(noteInput{Text: normalize.NoteText(text)}, "note text is required")
}

// CheckTag validates a tag the way AddTag and UpdateTag will.
func (s *Store) CheckTag(text, color string) error {
	in := tagInput{Text: normalize.TagText(text), Color: color}
	if err := s.validator.Check(in, TagRequiredMessage); err != nil {
		return err
	}
	return s.validator.Check(tagTextInput{Text: in.Text}, "Must be alphanumeric, received "+in.Text)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// userID asks the backend who is signed in; rows are stamped with it.
func (s *Store) userID(ctx context.Context) (string, error) {
	u, err := s.backend.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", backend.ErrSignedOut
	}
	return u.ID, nil
}

// LoadNotes fetches notes and the embedded join together and returns the
// notes, newest first, with their tags attached.
func (s *Store) LoadNotes(ctx context.Context) ([]domain.Note, error) {
	var (
		notes []domain.Note
		rows  []domain.NoteTag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.backend.Select(gctx, backend.TableNotes, backend.Query{
			Order: []backend.Order{{Column: "created_at", Desc: true}},
		}, &notes)
	})
	g.Go(func() error {
		return s.backend.Select(gctx, backend.TableNotesTags, backend.Query{
			Select: backend.EmbedNotesAndTags,
		}, &rows)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := JoinNotes(notes, rows)
	domain.SortNotesNewestFirst(out)
	s.logger.Debug("notes loaded", slog.Int("notes", len(out)), slog.Int("links", len(rows)))
	return out, nil
}

// JoinNotes attaches the tags of rows to notes. Rows whose embedded note or
// tag did not resolve are ignored.
func JoinNotes(notes []domain.Note, rows []domain.NoteTag) []domain.Note {
	pairs := make([]denorm.Pair[domain.Note, domain.Tag], 0, len(rows))
	for _, r := range rows {
		if r.Notes == nil || r.Tags == nil {
			continue
		}
		pairs = append(pairs, denorm.Pair[domain.Note, domain.Tag]{Left: *r.Notes, Right: *r.Tags})
	}

	joined := denorm.Denormalize(notes, pairs)
	out := make([]domain.Note, len(joined))
	for i, j := range joined {
		n := j.Entity
		n.Tags = j.Related
		out[i] = n
	}
	return out
}

// LoadTags fetches every tag. It never returns a nil slice.
func (s *Store) LoadTags(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	if err := s.backend.Select(ctx, backend.TableTags, backend.Query{}, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	return tags, nil
}

// AddNote creates a note, marks each of its tags as just used and links them.
func (s *Store) AddNote(ctx context.Context, text string, tagIDs []domain.ID) (domain.Note, error) {
	if err := s.CheckNote(text); err != nil {
		return domain.Note{}, err
	}
	text = normalize.NoteText(text)
	uid, err := s.userID(ctx)
	if err != nil {
		return domain.Note{}, err
	}

	var inserted []domain.Note
	if err := s.backend.Insert(ctx, backend.TableNotes, []noteRow{{Text: text, UserID: uid}}, &inserted); err != nil {
		return domain.Note{}, err
	}
	if len(inserted) == 0 {
		return domain.Note{}, errors.Internal("backend returned no note")
	}
	note := inserted[0]

	tagIDs = uniqueIDs(tagIDs)
	if len(tagIDs) > 0 {
		now := s.timestamp()
		links := make([]joinRow, len(tagIDs))
		for i, tid := range tagIDs {
			links[i] = joinRow{NoteID: note.ID, TagID: tid, UserID: uid}
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, tid := range tagIDs {
			g.Go(func() error {
				return s.backend.Update(gctx, backend.TableTags, []backend.Filter{backend.Eq("id", tid)}, touch{UpdatedAt: now}, nil)
			})
		}
		g.Go(func() error {
			return s.backend.Insert(gctx, backend.TableNotesTags, links, nil)
		})
		if err := g.Wait(); err != nil {
			return domain.Note{}, err
		}
	}

	note.Tags = []domain.Tag{}
	s.logger.Info("note added", slog.String("note_id", note.ID.String()), slog.Int("tags", len(tagIDs)))
	return note, nil
}

// UpdateNote sets the note's text and moves its tag links from oldTagIDs to
// newTagIDs, touching only the links that changed.
func (s *Store) UpdateNote(ctx context.Context, id domain.ID, text string, oldTagIDs, newTagIDs []domain.ID) (domain.Note, error) {
	if err := s.CheckNote(text); err != nil {
		return domain.Note{}, err
	}
	text = normalize.NoteText(text)
	uid, err := s.userID(ctx)
	if err != nil {
		return domain.Note{}, err
	}

	var added []joinRow
	for _, tid := range uniqueIDs(newTagIDs) {
		if !slices.Contains(oldTagIDs, tid) {
			added = append(added, joinRow{NoteID: id, TagID: tid, UserID: uid})
		}
	}
	var removed []domain.ID
	for _, tid := range uniqueIDs(oldTagIDs) {
		if !slices.Contains(newTagIDs, tid) {
			removed = append(removed, tid)
		}
	}

	var updated []domain.Note
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.backend.Update(gctx, backend.TableNotes, []backend.Filter{backend.Eq("id", id)}, map[string]string{"text": text}, &updated)
	})
	if len(added) > 0 {
		g.Go(func() error {
			return s.backend.Insert(gctx, backend.TableNotesTags, added, nil)
		})
	}
	for _, tid := range removed {
		g.Go(func() error {
			return s.backend.Delete(gctx, backend.TableNotesTags, []backend.Filter{
				backend.Eq("note_id", id),
				backend.Eq("tag_id", tid),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Note{}, err
	}
	if len(updated) == 0 {
		return domain.Note{}, errors.NotFoundf("note %s not found", id)
	}

	note := updated[0]
	note.Tags = []domain.Tag{}
	s.logger.Info("note updated",
		slog.String("note_id", id.String()),
		slog.Int("linked", len(added)),
		slog.Int("unlinked", len(removed)),
	)
	return note, nil
}

// DeleteNote removes the note's tag links, then the note.
func (s *Store) DeleteNote(ctx context.Context, id domain.ID) error {
	if err := s.backend.Delete(ctx, backend.TableNotesTags, []backend.Filter{backend.Eq("note_id", id)}); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, backend.TableNotes, []backend.Filter{backend.Eq("id", id)}); err != nil {
		return err
	}
	s.logger.Info("note deleted", slog.String("note_id", id.String()))
	return nil
}

// AddTag creates a tag. Text is stored in canonical lowercase form.
func (s *Store) AddTag(ctx context.Context, text, color string) (domain.Tag, error) {
	if err := s.CheckTag(text, color); err != nil {
		return domain.Tag{}, err
	}
	in := tagInput{Text: normalize.TagText(text), Color: color}
	uid, err := s.userID(ctx)
	if err != nil {
		return domain.Tag{}, err
	}

	var inserted []domain.Tag
	row := tagRow{Text: in.Text, Color: in.Color, UserID: uid, UpdatedAt: s.timestamp()}
	if err := s.backend.Insert(ctx, backend.TableTags, []tagRow{row}, &inserted); err != nil {
		return domain.Tag{}, err
	}
	if len(inserted) == 0 {
		return domain.Tag{}, errors.Internal("backend returned no tag")
	}
	s.logger.Info("tag added", slog.String("tag_id", inserted[0].ID.String()))
	return inserted[0], nil
}

// UpdateTag changes a tag's text and color and marks it as just used.
func (s *Store) UpdateTag(ctx context.Context, id domain.ID, text, color string) (domain.Tag, error) {
	if err := s.CheckTag(text, color); err != nil {
		return domain.Tag{}, err
	}
	in := tagInput{Text: normalize.TagText(text), Color: color}

	var updated []domain.Tag
	patch := tagPatch{Text: in.Text, Color: in.Color, UpdatedAt: s.timestamp()}
	if err := s.backend.Update(ctx, backend.TableTags, []backend.Filter{backend.Eq("id", id)}, patch, &updated); err != nil {
		return domain.Tag{}, err
	}
	if len(updated) == 0 {
		return domain.Tag{}, errors.NotFoundf("tag %s not found", id)
	}
	return updated[0], nil
}

// DeleteTag unlinks the tag from every note, then removes it.
func (s *Store) DeleteTag(ctx context.Context, id domain.ID) error {
	if err := s.backend.Delete(ctx, backend.TableNotesTags, []backend.Filter{backend.Eq("tag_id", id)}); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, backend.TableTags, []backend.Filter{backend.Eq("id", id)}); err != nil {
		return err
	}
	s.logger.Info("tag deleted", slog.String("tag_id", id.String()))
	return nil
}

// AddUser inserts the application's row for a freshly signed-up user.
func (s *Store) AddUser(ctx context.Context, id string) (domain.UserRow, error) {
	if id == "" {
		return domain.UserRow{}, errors.Validation("user id is required")
	}
	var rows []domain.UserRow
	if err := s.backend.Insert(ctx, backend.TableUsers, []domain.UserRow{{ID: id}}, &rows); err != nil {
		return domain.UserRow{}, err
	}
	if len(rows) == 0 {
		return domain.UserRow{ID: id}, nil
	}
	return rows[0], nil
}

func uniqueIDs(ids []domain.ID) []domain.ID {
	out := make([]domain.ID, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
