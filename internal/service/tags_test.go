package service

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
	"github.com/listenupapp/tagnotes/internal/id"
)

func TestRecentTags(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var tags []domain.Tag
	for i := range 10 {
		tags = append(tags, domain.Tag{
			ID:        domain.ID(fmt.Sprintf("tag-%02d", i)),
			Text:      fmt.Sprintf("label %d", i),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	tests := []struct {
		name   string
		params RecentParams
		want   []domain.ID
	}{
		{
			name: "capped, most recent first",
			want: domain.IDs("tag-09", "tag-08", "tag-07", "tag-06", "tag-05", "tag-04", "tag-03"),
		},
		{
			name:   "show all",
			params: RecentParams{ShowAll: true},
			want: domain.IDs("tag-09", "tag-08", "tag-07", "tag-06", "tag-05",
				"tag-04", "tag-03", "tag-02", "tag-01", "tag-00"),
		},
		{
			name:   "filter is case-insensitive",
			params: RecentParams{Filter: "LABEL 1"},
			want:   domain.IDs("tag-01"),
		},
		{
			name:   "excluded tags are skipped before the cap",
			params: RecentParams{Exclude: domain.IDs("tag-09", "tag-08")},
			want:   domain.IDs("tag-07", "tag-06", "tag-05", "tag-04", "tag-03", "tag-02", "tag-01"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recentTags(tags, tt.params)
			assert.Equal(t, tt.want, noteIDs(got))
		})
	}
	assert.Equal(t, domain.ID("tag-00"), tags[0].ID, "input left unsorted")
}

func TestTagService_CreateRequiresTextAndColor(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	_, err := f.tags.Load(ctx)
	require.NoError(t, err)
	before := f.tags.Snapshot().Version

	for _, in := range [][2]string{{"bee", ""}, {"", "tomato"}} {
		_, err := f.tags.Create(ctx, in[0], in[1])
		require.Error(t, err)
		assert.Contains(t, errors.Message(err), "text and color are required")
	}
	assert.Equal(t, before, f.tags.Snapshot().Version)
	assert.Empty(t, f.tags.Snapshot().Data)
}

func TestTagService_Create(t *testing.T) {
	f := setupServices(t)

	tag := f.addTag(t, "  Bee  Keeping ")
	assert.Equal(t, "bee keeping", tag.Text)
	assert.False(t, id.IsTemp(tag.ID.String()))

	snap := f.tags.Snapshot()
	require.Len(t, snap.Data, 1)
	assert.Equal(t, tag.ID, snap.Data[0].ID)
}

func TestTagService_CreateDuplicateConflicts(t *testing.T) {
	f := setupServices(t)
	f.addTag(t, "bee")

	_, err := f.tags.Create(context.Background(), "BEE", "teal")
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.Len(t, f.tags.Snapshot().Data, 1, "optimistic tag rolled back")
}

func TestTagService_FindOrCreate(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	bee := f.addTag(t, "bee")

	got, created, err := f.tags.FindOrCreate(ctx, " BEE ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, bee.ID, got.ID)

	got, created, err = f.tags.FindOrCreate(ctx, "wasp")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "wasp", got.Text)
	assert.True(t, slices.ContainsFunc(domain.Palette, func(c domain.PaletteColor) bool { return c.Hex == got.Color }))
}

func TestTagService_UpdateRefreshesNotes(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	bee := f.addTag(t, "bee")
	n := f.addNote(t, "honey", bee)

	updated, err := f.tags.Update(ctx, bee.ID, "wasp", "#00ff00")
	require.NoError(t, err)
	assert.Equal(t, "wasp", updated.Text)

	cached, ok := domain.FindNote(f.notes.Snapshot().Data, n.ID)
	require.True(t, ok)
	require.Len(t, cached.Tags, 1)
	assert.Equal(t, "wasp", cached.Tags[0].Text)
	assert.Equal(t, "#00ff00", cached.Tags[0].Color)
}

func TestTagService_UpdateMissing(t *testing.T) {
	f := setupServices(t)
	_, err := f.tags.Update(context.Background(), "tag-missing", "wasp", "teal")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestTagService_DeleteUnlinksNotes(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	bee := f.addTag(t, "bee")
	buzz := f.addTag(t, "buzz")
	n := f.addNote(t, "honey", bee, buzz)

	require.NoError(t, f.tags.Delete(ctx, bee.ID))

	assert.Equal(t, []domain.ID{buzz.ID}, noteIDs(f.tags.Snapshot().Data))
	cached, ok := domain.FindNote(f.notes.Snapshot().Data, n.ID)
	require.True(t, ok)
	assert.Equal(t, []domain.ID{buzz.ID}, cached.TagIDs())
}

func TestTagService_RecentAfterUse(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	bee := f.addTag(t, "bee")
	time.Sleep(2 * time.Millisecond)
	f.addTag(t, "buzz")
	time.Sleep(2 * time.Millisecond)

	// Attaching bee to a note marks it as just used.
	f.addNote(t, "honey", bee)

	recent, err := f.tags.Recent(ctx, RecentParams{})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, bee.ID, recent[0].ID)
}
