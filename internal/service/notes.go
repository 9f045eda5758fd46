package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/id"
	"github.com/listenupapp/tagnotes/internal/normalize"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/search"
	"github.com/listenupapp/tagnotes/internal/store"
)

// NoteView is a note as the UI shows it, with its delete state.
type NoteView struct {
	domain.Note
	DeleteState pending.State `json:"delete_state"`
}

// TagGroup is one tag with the notes carrying it. The untagged group has a
// zero Tag.
type TagGroup struct {
	Tag   domain.Tag `json:"tag"`
	Notes []NoteView `json:"notes"`
}

// SearchHit is a search result resolved to its note.
type SearchHit struct {
	NoteView
	Score     float64 `json:"score"`
	Highlight string  `json:"highlight,omitempty"`
}

// SearchResult is a page of search hits.
type SearchResult struct {
	Query string      `json:"query"`
	Total uint64      `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// NoteService manages the signed-in user's notes, including deletes that
// can be undone during a grace period.
type NoteService struct {
	data    *store.Store
	res     *Resources
	index   *search.NoteIndex
	deleter *pending.Deleter[domain.ID]
	logger  *slog.Logger
	now     func() time.Time

	unsubscribe func()
}

// NewNoteService creates a new note service. The search index follows the
// notes key of the cache from here on. deleteOpts configure the grace period
// and scheduler of pending deletes.
func NewNoteService(
	data *store.Store,
	res *Resources,
	index *search.NoteIndex,
	logger *slog.Logger,
	deleteOpts ...pending.DeleterOption[domain.ID],
) *NoteService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &NoteService{
		data:   data,
		res:    res,
		index:  index,
		logger: logger.With(slog.String("service", "notes")),
		now:    time.Now,
	}

	opts := append([]pending.DeleterOption[domain.ID]{pending.WithDeleterLogger[domain.ID](s.logger)}, deleteOpts...)
	s.deleter = pending.NewDeleter(s.fireDelete, opts...)

	if index != nil {
		s.unsubscribe = res.Cache.Subscribe(s.syncIndex)
	}
	return s
}

// Close stops following the cache. Pending deletes are left to their timers.
func (s *NoteService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Deleter exposes the pending delete tracker.
func (s *NoteService) Deleter() *pending.Deleter[domain.ID] { return s.deleter }

// syncIndex keeps the index equal to whatever the notes entry holds,
// optimistic values included.
func (s *NoteService) syncIndex(ev cache.Event) {
	if ev.Key != KeyNotes {
		return
	}
	var notes []domain.Note
	switch ev.Kind {
	case cache.EventReset:
	case cache.EventLoading:
		return
	default:
		v, ok := ev.Data.([]domain.Note)
		if !ok {
			return
		}
		notes = v
	}
	if err := s.index.Replace(notes); err != nil {
		s.logger.Warn("sync search index failed", slog.String("error", err.Error()))
	}
}

// Load returns the notes, fetching them when the cached copy is stale.
func (s *NoteService) Load(ctx context.Context) ([]domain.Note, error) {
	return s.res.Notes.Load(ctx)
}

// Revalidate refetches the notes.
func (s *NoteService) Revalidate(ctx context.Context) ([]domain.Note, error) {
	return s.res.Notes.Revalidate(ctx)
}

// Snapshot returns the cached notes without fetching.
func (s *NoteService) Snapshot() cache.Snapshot[[]domain.Note] {
	return s.res.Notes.Snapshot()
}

// List returns every note, newest first.
func (s *NoteService) List(ctx context.Context) ([]NoteView, error) {
	notes, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(notes), nil
}

// ByTag returns the notes carrying tagID, newest first.
func (s *NoteService) ByTag(ctx context.Context, tagID domain.ID) ([]NoteView, error) {
	notes, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	tagged := slices.DeleteFunc(slices.Clone(notes), func(n domain.Note) bool { return !n.HasTag(tagID) })
	return s.views(tagged), nil
}

// GroupByTag returns one group per tag that has notes, most recently used
// tag first, followed by the untagged notes. A note with two tags shows in
// both groups.
func (s *NoteService) GroupByTag(ctx context.Context) ([]TagGroup, error) {
	notes, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.res.Tags.Load(ctx)
	if err != nil {
		return nil, err
	}

	views := s.views(notes)
	byTag := make(map[domain.ID][]NoteView)
	var untagged []NoteView
	for _, v := range views {
		if len(v.Tags) == 0 {
			untagged = append(untagged, v)
			continue
		}
		for _, t := range v.Tags {
			byTag[t.ID] = append(byTag[t.ID], v)
		}
	}

	ordered := slices.Clone(tags)
	domain.SortTagsRecentFirst(ordered)
	groups := make([]TagGroup, 0, len(byTag)+1)
	for _, t := range ordered {
		if vs, ok := byTag[t.ID]; ok {
			groups = append(groups, TagGroup{Tag: t, Notes: vs})
			delete(byTag, t.ID)
		}
	}
	// Tags the notes embed but the tags entry does not know yet.
	for _, v := range views {
		for _, t := range v.Tags {
			if vs, ok := byTag[t.ID]; ok {
				groups = append(groups, TagGroup{Tag: t, Notes: vs})
				delete(byTag, t.ID)
			}
		}
	}
	if len(untagged) > 0 {
		groups = append(groups, TagGroup{Notes: untagged})
	}
	return groups, nil
}

// Search finds notes by text and tag label.
func (s *NoteService) Search(ctx context.Context, params search.Params) (*SearchResult, error) {
	if s.index == nil {
		return nil, errors.Internal("search is not available")
	}
	notes, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "search notes")
	}

	out := &SearchResult{Query: res.Query, Total: res.Total, Hits: make([]SearchHit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		n, ok := domain.FindNote(notes, h.ID)
		if !ok {
			continue
		}
		state := s.deleter.State(n.ID)
		if state == pending.StateFired {
			continue
		}
		out.Hits = append(out.Hits, SearchHit{
			NoteView:  NoteView{Note: n, DeleteState: state},
			Score:     h.Score,
			Highlight: h.Highlight,
		})
	}
	return out, nil
}

// Check rejects note text the backend would refuse, without touching the cache.
func (s *NoteService) Check(text string) error {
	return s.data.CheckNote(text)
}

// Add creates a note with the given tags. The note is listed under a
// temporary id at once. Afterwards notes and then tags are refetched, the
// latter because attaching a tag counts as using it.
func (s *NoteService) Add(ctx context.Context, text string, tagIDs []domain.ID) (domain.Note, error) {
	if err := s.data.CheckNote(text); err != nil {
		return domain.Note{}, err
	}

	temp := domain.Note{
		ID:        domain.ID(id.Temp()),
		Text:      normalize.NoteText(text),
		CreatedAt: s.now(),
		Tags:      s.resolveTags(tagIDs),
	}

	var added domain.Note
	_, err := s.res.Notes.Mutate(ctx, func(ctx context.Context, previous []domain.Note) ([]domain.Note, error) {
		n, err := s.data.AddNote(ctx, text, tagIDs)
		if err != nil {
			return nil, err
		}
		n.Tags = temp.Tags
		added = n
		return prependNote(previous, n), nil
	}, cache.WithOptimisticFunc(func(previous []domain.Note) []domain.Note {
		return prependNote(previous, temp)
	}))
	if err != nil {
		return domain.Note{}, err
	}

	if _, err := s.res.Tags.Revalidate(ctx); err != nil {
		s.logger.Warn("revalidate tags after add failed", slog.String("error", err.Error()))
	}
	return added, nil
}

// Update sets a note's text and tags.
func (s *NoteService) Update(ctx context.Context, noteID domain.ID, text string, tagIDs []domain.ID) (domain.Note, error) {
	if err := s.data.CheckNote(text); err != nil {
		return domain.Note{}, err
	}
	if id.IsTemp(noteID.String()) {
		return domain.Note{}, errors.Conflict("note is still being created")
	}
	notes, err := s.Load(ctx)
	if err != nil {
		return domain.Note{}, err
	}
	current, ok := domain.FindNote(notes, noteID)
	if !ok {
		return domain.Note{}, errors.NotFoundf("note %s not found", noteID)
	}

	edited := current.Clone()
	edited.Text = normalize.NoteText(text)
	edited.Tags = s.resolveTags(tagIDs)

	var updated domain.Note
	_, err = s.res.Notes.Mutate(ctx, func(ctx context.Context, previous []domain.Note) ([]domain.Note, error) {
		old, ok := domain.FindNote(previous, noteID)
		if !ok {
			old = current
		}
		n, err := s.data.UpdateNote(ctx, noteID, text, old.TagIDs(), tagIDs)
		if err != nil {
			return nil, err
		}
		n.Tags = edited.Tags
		updated = n
		return replaceNote(previous, n), nil
	},
		cache.WithOptimisticFunc(func(previous []domain.Note) []domain.Note { return replaceNote(previous, edited) }),
		cache.WithRevalidate(false),
	)
	if err != nil {
		return domain.Note{}, err
	}
	return updated, nil
}

// RequestDelete starts the undo window for a note. It reports false when a
// delete of the note is already pending or running.
func (s *NoteService) RequestDelete(ctx context.Context, noteID domain.ID) (bool, error) {
	if id.IsTemp(noteID.String()) {
		return false, errors.Conflict("note is still being created")
	}
	notes, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := domain.FindNote(notes, noteID); !ok {
		return false, errors.NotFoundf("note %s not found", noteID)
	}
	return s.deleter.Request(noteID), nil
}

// CancelDelete undoes a pending delete. It reports false when there was
// nothing left to undo.
func (s *NoteService) CancelDelete(noteID domain.ID) bool {
	return s.deleter.Cancel(noteID)
}

// CancelAllDeletes undoes every pending delete.
func (s *NoteService) CancelAllDeletes() int {
	return s.deleter.CancelAll()
}

// PendingDeletes lists the notes waiting out their undo window.
func (s *NoteService) PendingDeletes() []domain.ID {
	return s.deleter.Pending()
}

// DeleteState returns where a note is in the delete flow.
func (s *NoteService) DeleteState(noteID domain.ID) pending.State {
	return s.deleter.State(noteID)
}

// fireDelete runs once a note's undo window closes. The optimistic value is
// built from the entry as it stands once this delete owns the key, so every
// delete that settled before it is already reflected: a successful one is
// gone and a failed one is back. Fired notes still waiting for the key are
// hidden by views, not dropped here, so a failure among them cannot be
// baked into this commit.
func (s *NoteService) fireDelete(ctx context.Context, noteID domain.ID, _ []domain.ID) error {
	_, err := s.res.Notes.Mutate(ctx, func(ctx context.Context, previous []domain.Note) ([]domain.Note, error) {
		if err := s.data.DeleteNote(ctx, noteID); err != nil {
			return nil, err
		}
		return nil, nil
	},
		cache.WithOptimisticFunc(func(previous []domain.Note) []domain.Note {
			return domain.WithoutNotes(previous, map[domain.ID]bool{noteID: true})
		}),
		cache.WithRevalidate(false),
		cache.WithPopulate(false),
	)
	return err
}

// resolveTags turns ids into the tags the cache knows. Unknown ids are kept
// as bare tags so the optimistic note still shows how many were attached.
func (s *NoteService) resolveTags(tagIDs []domain.ID) []domain.Tag {
	known := s.res.Tags.Snapshot().Data
	out := make([]domain.Tag, 0, len(tagIDs))
	for _, tid := range tagIDs {
		if slices.ContainsFunc(out, func(t domain.Tag) bool { return t.ID == tid }) || tid.IsZero() {
			continue
		}
		t, ok := domain.FindTag(known, tid)
		if !ok {
			t = domain.Tag{ID: tid}
		}
		out = append(out, t)
	}
	return out
}

// views sorts notes newest first and attaches their delete state. Notes whose
// delete has fired are left out; one that fails comes back with state none.
func (s *NoteService) views(notes []domain.Note) []NoteView {
	sorted := slices.Clone(notes)
	domain.SortNotesNewestFirst(sorted)
	out := make([]NoteView, 0, len(sorted))
	for _, n := range sorted {
		state := s.deleter.State(n.ID)
		if state == pending.StateFired {
			continue
		}
		out = append(out, NoteView{Note: n, DeleteState: state})
	}
	return out
}

func prependNote(notes []domain.Note, n domain.Note) []domain.Note {
	out := make([]domain.Note, 0, len(notes)+1)
	out = append(out, n)
	return append(out, notes...)
}

func replaceNote(notes []domain.Note, n domain.Note) []domain.Note {
	out := slices.Clone(notes)
	for i := range out {
		if out[i].ID == n.ID {
			out[i] = n
		}
	}
	return out
}
