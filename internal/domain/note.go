// Package domain contains the notes, tags and accounts tagnotes works with.
package domain

import (
	"slices"
	"time"
)

// Note is a short text entry owned by one user.
// Tags is resolved client-side from the notes_tags join and is never nil
// once a note leaves the data layer.
type Note struct {
	ID        ID        `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
	Tags      []Tag     `json:"tags"`
}

// Key implements denorm.Keyed.
func (n Note) Key() ID { return n.ID }

// TagIDs returns the ids of the note's tags in attachment order.
func (n Note) TagIDs() []ID {
	out := make([]ID, len(n.Tags))
	for i, t := range n.Tags {
		out[i] = t.ID
	}
	return out
}

// HasTag reports whether the note carries the tag.
func (n Note) HasTag(id ID) bool {
	return slices.ContainsFunc(n.Tags, func(t Tag) bool { return t.ID == id })
}

// Clone returns a copy whose Tags slice can be modified independently.
func (n Note) Clone() Note {
	n.Tags = append(make([]Tag, 0, len(n.Tags)), n.Tags...)
	return n
}

// NoteTag is one edge of the notes/tags many-to-many relation.
// Notes and Tags are filled when the row is selected with embedding
// (select=notes(*),tags(*)).
type NoteTag struct {
	NoteID ID     `json:"note_id,omitempty"`
	TagID  ID     `json:"tag_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Notes  *Note  `json:"notes,omitempty"`
	Tags   *Tag   `json:"tags,omitempty"`
}

// SortNotesNewestFirst orders notes by creation time, newest first.
// Ties keep their relative order.
func SortNotesNewestFirst(notes []Note) {
	slices.SortStableFunc(notes, func(a, b Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// WithoutNotes returns notes minus every note whose id is in drop.
func WithoutNotes(notes []Note, drop map[ID]bool) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if !drop[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// FindNote returns the note with the given id.
func FindNote(notes []Note, id ID) (Note, bool) {
	i := slices.IndexFunc(notes, func(n Note) bool { return n.ID == id })
	if i < 0 {
		return Note{}, false
	}
	return notes[i], true
}
