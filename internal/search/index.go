package search

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/listenupapp/tagnotes/internal/domain"
)

// NoteIndex is a memory-only Bleve index of notes. It is safe for
// concurrent use.
type NoteIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	docs   map[string]struct{}
	logger *slog.Logger
}

// NewNoteIndex creates an empty index.
func NewNoteIndex(logger *slog.Logger) (*NoteIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create note index: %w", err)
	}
	return &NoteIndex{
		index:  index,
		docs:   make(map[string]struct{}),
		logger: logger.With(slog.String("component", "search")),
	}, nil
}

// Close releases the index.
func (x *NoteIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

// Replace makes the index hold exactly notes, in one batch.
func (x *NoteIndex) Replace(notes []domain.Note) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	batch := x.index.NewBatch()
	next := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		doc := newNoteDocument(n)
		if err := batch.Index(doc.ID, doc.toMap()); err != nil {
			return fmt.Errorf("index note %s: %w", doc.ID, err)
		}
		next[doc.ID] = struct{}{}
	}
	for id := range x.docs {
		if _, ok := next[id]; !ok {
			batch.Delete(id)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("apply note batch: %w", err)
	}
	x.docs = next

	x.logger.Debug("note index replaced", slog.Int("notes", len(next)))
	return nil
}

// Index adds or replaces one note.
func (x *NoteIndex) Index(n domain.Note) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	doc := newNoteDocument(n)
	if err := x.index.Index(doc.ID, doc.toMap()); err != nil {
		return err
	}
	x.docs[doc.ID] = struct{}{}
	return nil
}

// Delete removes one note.
func (x *NoteIndex) Delete(id domain.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.index.Delete(id.String()); err != nil {
		return err
	}
	delete(x.docs, id.String())
	return nil
}

// Len returns the number of indexed notes.
func (x *NoteIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}
