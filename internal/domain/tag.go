package domain

import (
	"cmp"
	"slices"
	"time"
)

// Tag is a colored label. Tags belong to a user, not to notes, and can be
// attached to any number of that user's notes.
type Tag struct {
	ID        ID        `json:"id"`
	Text      string    `json:"text"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	UserID    string    `json:"user_id,omitempty"`
}

// Key implements denorm.Keyed.
func (t Tag) Key() ID { return t.ID }

// SortTagsRecentFirst orders tags by UpdatedAt, most recently used first.
// Equal timestamps fall back to id so the order is stable across loads.
func SortTagsRecentFirst(tags []Tag) {
	slices.SortStableFunc(tags, func(a, b Tag) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// FindTag returns the tag with the given id.
func FindTag(tags []Tag, id ID) (Tag, bool) {
	i := slices.IndexFunc(tags, func(t Tag) bool { return t.ID == id })
	if i < 0 {
		return Tag{}, false
	}
	return tags[i], true
}

// FindTagByText returns the tag whose text equals text exactly.
// Callers normalize text first.
func FindTagByText(tags []Tag, text string) (Tag, bool) {
	i := slices.IndexFunc(tags, func(t Tag) bool { return t.Text == text })
	if i < 0 {
		return Tag{}, false
	}
	return tags[i], true
}
