// Package service holds the application operations on top of the data layer
// and the optimistic cache.
package service

import (
	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/store"
)

// Cache keys.
const (
	KeyNotes = "notes"
	KeyTags  = "tags"
)

// Resources are the cache handles the services share. Every read and write
// of notes and tags goes through them.
type Resources struct {
	Cache *cache.Store
	Notes *cache.Resource[[]domain.Note]
	Tags  *cache.Resource[[]domain.Tag]
}

// NewResources binds the notes and tags keys of c to data.
func NewResources(c *cache.Store, data *store.Store) *Resources {
	return &Resources{
		Cache: c,
		Notes: cache.NewResource(c, KeyNotes, data.LoadNotes),
		Tags:  cache.NewResource(c, KeyTags, data.LoadTags),
	}
}
