package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.NoteIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory Bleve note index. The note
// service fills it from the cache, so nothing is persisted.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewNoteIndex(log.Logger)
	if err != nil {
		return nil, err
	}
	return &SearchIndexHandle{NoteIndex: index}, nil
}
