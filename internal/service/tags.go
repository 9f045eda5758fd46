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
	"github.com/listenupapp/tagnotes/internal/store"
)

// MaxRecentTags caps the tag suggestions shown next to the note editor.
const MaxRecentTags = 7

// TagService manages the signed-in user's tags.
type TagService struct {
	data   *store.Store
	res    *Resources
	logger *slog.Logger
	now    func() time.Time
}

// NewTagService creates a new tag service.
func NewTagService(data *store.Store, res *Resources, logger *slog.Logger) *TagService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagService{
		data:   data,
		res:    res,
		logger: logger.With(slog.String("service", "tags")),
		now:    time.Now,
	}
}

// RecentParams narrows the suggestion list.
type RecentParams struct {
	// Filter keeps tags whose text contains it, case-insensitively.
	Filter string
	// Exclude drops tags already picked for the note being edited.
	Exclude []domain.ID
	// ShowAll lifts the MaxRecentTags cap.
	ShowAll bool
}

// Load returns the tags, fetching them when the cached copy is stale.
func (s *TagService) Load(ctx context.Context) ([]domain.Tag, error) {
	return s.res.Tags.Load(ctx)
}

// Revalidate refetches the tags.
func (s *TagService) Revalidate(ctx context.Context) ([]domain.Tag, error) {
	return s.res.Tags.Revalidate(ctx)
}

// Snapshot returns the cached tags without fetching.
func (s *TagService) Snapshot() cache.Snapshot[[]domain.Tag] {
	return s.res.Tags.Snapshot()
}

// Get returns one tag.
func (s *TagService) Get(ctx context.Context, tagID domain.ID) (domain.Tag, error) {
	tags, err := s.Load(ctx)
	if err != nil {
		return domain.Tag{}, err
	}
	t, ok := domain.FindTag(tags, tagID)
	if !ok {
		return domain.Tag{}, errors.NotFoundf("tag %s not found", tagID)
	}
	return t, nil
}

// Recent returns the most recently used tags matching p.
func (s *TagService) Recent(ctx context.Context, p RecentParams) ([]domain.Tag, error) {
	tags, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return recentTags(tags, p), nil
}

func recentTags(tags []domain.Tag, p RecentParams) []domain.Tag {
	sorted := slices.Clone(tags)
	domain.SortTagsRecentFirst(sorted)

	out := make([]domain.Tag, 0, min(len(sorted), MaxRecentTags))
	for _, t := range sorted {
		if slices.Contains(p.Exclude, t.ID) || !normalize.Contains(t.Text, p.Filter) {
			continue
		}
		out = append(out, t)
		if !p.ShowAll && len(out) == MaxRecentTags {
			break
		}
	}
	return out
}

// FindOrCreate returns the tag whose text matches, creating it with a random
// palette color when there is none. created reports which happened.
func (s *TagService) FindOrCreate(ctx context.Context, text string) (tag domain.Tag, created bool, err error) {
	color := domain.RandomColor()
	if err := s.data.CheckTag(text, color); err != nil {
		return domain.Tag{}, false, err
	}
	tags, err := s.Load(ctx)
	if err != nil {
		return domain.Tag{}, false, err
	}
	if t, ok := domain.FindTagByText(tags, normalize.TagText(text)); ok {
		return t, false, nil
	}
	t, err := s.Create(ctx, text, color)
	if err != nil {
		return domain.Tag{}, false, err
	}
	return t, true, nil
}

// Create adds a tag. The tag shows in the cache under a temporary id until
// the backend answers, then the tags are refetched.
func (s *TagService) Create(ctx context.Context, text, color string) (domain.Tag, error) {
	if err := s.data.CheckTag(text, color); err != nil {
		return domain.Tag{}, err
	}

	now := s.now()
	temp := domain.Tag{
		ID:        domain.ID(id.Temp()),
		Text:      normalize.TagText(text),
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created domain.Tag
	_, err := s.res.Tags.Mutate(ctx, func(ctx context.Context, previous []domain.Tag) ([]domain.Tag, error) {
		t, err := s.data.AddTag(ctx, text, color)
		if err != nil {
			return nil, err
		}
		created = t
		return prependTag(previous, t), nil
	}, cache.WithOptimisticFunc(func(previous []domain.Tag) []domain.Tag {
		return prependTag(previous, temp)
	}))
	if err != nil {
		return domain.Tag{}, err
	}
	return created, nil
}

// Update changes a tag's text and color. Notes embed their tags, so they are
// refetched after the tags.
func (s *TagService) Update(ctx context.Context, tagID domain.ID, text, color string) (domain.Tag, error) {
	if err := s.data.CheckTag(text, color); err != nil {
		return domain.Tag{}, err
	}
	if id.IsTemp(tagID.String()) {
		return domain.Tag{}, errors.Conflict("tag is still being created")
	}

	label := normalize.TagText(text)
	now := s.now()
	var updated domain.Tag
	_, err := s.res.Tags.Mutate(ctx, func(ctx context.Context, previous []domain.Tag) ([]domain.Tag, error) {
		t, err := s.data.UpdateTag(ctx, tagID, text, color)
		if err != nil {
			return nil, err
		}
		updated = t
		return replaceTag(previous, t), nil
	}, cache.WithOptimisticFunc(func(previous []domain.Tag) []domain.Tag {
		t, ok := domain.FindTag(previous, tagID)
		if !ok {
			return previous
		}
		t.Text, t.Color, t.UpdatedAt = label, color, now
		return replaceTag(previous, t)
	}))
	if err != nil {
		return domain.Tag{}, err
	}

	s.revalidateNotes(ctx)
	return updated, nil
}

// Delete removes a tag from every note and then the tag itself.
func (s *TagService) Delete(ctx context.Context, tagID domain.ID) error {
	if id.IsTemp(tagID.String()) {
		return errors.Conflict("tag is still being created")
	}

	_, err := s.res.Tags.Mutate(ctx, func(ctx context.Context, previous []domain.Tag) ([]domain.Tag, error) {
		if err := s.data.DeleteTag(ctx, tagID); err != nil {
			return nil, err
		}
		return withoutTag(previous, tagID), nil
	},
		cache.WithOptimisticFunc(func(previous []domain.Tag) []domain.Tag { return withoutTag(previous, tagID) }),
		cache.WithRevalidate(false),
	)
	if err != nil {
		return err
	}

	s.revalidateNotes(ctx)
	return nil
}

func (s *TagService) revalidateNotes(ctx context.Context) {
	if _, err := s.res.Notes.Revalidate(ctx); err != nil {
		s.logger.Warn("revalidate notes after tag change failed", slog.String("error", err.Error()))
	}
}

func prependTag(tags []domain.Tag, t domain.Tag) []domain.Tag {
	out := make([]domain.Tag, 0, len(tags)+1)
	out = append(out, t)
	return append(out, tags...)
}

func replaceTag(tags []domain.Tag, t domain.Tag) []domain.Tag {
	out := slices.Clone(tags)
	for i := range out {
		if out[i].ID == t.ID {
			out[i] = t
		}
	}
	return out
}

func withoutTag(tags []domain.Tag, tagID domain.ID) []domain.Tag {
	return slices.DeleteFunc(slices.Clone(tags), func(t domain.Tag) bool { return t.ID == tagID })
}
