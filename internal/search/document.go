// Package search keeps an in-memory full-text index of the signed-in user's
// notes so the UI can search without a backend round trip.
package search

import (
	"github.com/listenupapp/tagnotes/internal/domain"
)

// noteDocument is what gets indexed for one note. Tag texts and ids are
// denormalized onto the note so one query covers both.
type noteDocument struct {
	ID        string
	Text      string
	Tags      []string
	TagIDs    []string
	CreatedAt int64
}

func newNoteDocument(n domain.Note) noteDocument {
	doc := noteDocument{
		ID:        n.ID.String(),
		Text:      n.Text,
		CreatedAt: n.CreatedAt.UnixMilli(),
	}
	for _, t := range n.Tags {
		doc.Tags = append(doc.Tags, t.Text)
		doc.TagIDs = append(doc.TagIDs, t.ID.String())
	}
	return doc
}

// toMap uses the lowercase field names of the index mapping.
func (d noteDocument) toMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"text":       d.Text,
		"created_at": d.CreatedAt,
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
		m["tag_ids"] = d.TagIDs
	}
	return m
}
