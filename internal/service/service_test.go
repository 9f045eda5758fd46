package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/backend/local"
	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/search"
	"github.com/listenupapp/tagnotes/internal/session"
	"github.com/listenupapp/tagnotes/internal/store"
)

const testGrace = 5 * time.Second

// recordingBackend wraps the local backend, records deletes and can hold or
// fail note inserts and deletes.
type recordingBackend struct {
	backend.Backend

	mu         sync.Mutex
	deletes    []string
	failDelete error
	failInsert error
	gate       chan struct{}
	held       map[string]*heldDelete
}

// heldDelete parks the delete of one note until release is closed, then
// answers err.
type heldDelete struct {
	reached chan struct{}
	release chan struct{}
	err     error
}

func (b *recordingBackend) Insert(ctx context.Context, table string, rows, dest any) error {
	b.mu.Lock()
	gate, fail := b.gate, b.failInsert
	b.mu.Unlock()

	if table == backend.TableNotes {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if fail != nil {
			return fail
		}
	}
	return b.Backend.Insert(ctx, table, rows, dest)
}

func (b *recordingBackend) Delete(ctx context.Context, table string, filters []backend.Filter) error {
	b.mu.Lock()
	var hold *heldDelete
	if table == backend.TableNotes {
		b.deletes = append(b.deletes, filters[0].String())
		hold = b.held[filters[0].String()]
	}
	err := b.failDelete
	b.mu.Unlock()

	if hold != nil {
		close(hold.reached)
		select {
		case <-hold.release:
		case <-ctx.Done():
			return ctx.Err()
		}
		if hold.err != nil {
			return hold.err
		}
	}
	if err != nil && table == backend.TableNotes {
		return err
	}
	return b.Backend.Delete(ctx, table, filters)
}

// holdDelete parks the next delete of note id. Closing release lets it
// finish with err.
func (b *recordingBackend) holdDelete(id domain.ID, err error) *heldDelete {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held == nil {
		b.held = make(map[string]*heldDelete)
	}
	h := &heldDelete{reached: make(chan struct{}), release: make(chan struct{}), err: err}
	b.held["id=eq."+id.String()] = h
	return h
}

func (b *recordingBackend) noteDeletes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deletes...)
}

func (b *recordingBackend) holdInserts() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	return b.gate
}

type fixture struct {
	backend *recordingBackend
	data    *store.Store
	res     *Resources
	sched   *pending.ManualScheduler
	notes   *NoteService
	tags    *TagService
	auth    *AuthService
}

func setupServices(t *testing.T, cacheOpts ...cache.Option) *fixture {
	t.Helper()

	lb, err := local.Open(local.MemoryPath, session.NewMemory(), nil)
	require.NoError(t, err)
	rb := &recordingBackend{Backend: lb}
	data := store.New(rb, nil)

	c := cache.New(append([]cache.Option{cache.WithDedupeInterval(0)}, cacheOpts...)...)
	res := NewResources(c, data)

	index, err := search.NewNoteIndex(nil)
	require.NoError(t, err)

	sched := pending.NewManualScheduler()
	notes := NewNoteService(data, res, index, nil,
		pending.WithScheduler[domain.ID](sched),
		pending.WithGracePeriod[domain.ID](testGrace),
	)
	f := &fixture{
		backend: rb,
		data:    data,
		res:     res,
		sched:   sched,
		notes:   notes,
		tags:    NewTagService(data, res, nil),
		auth:    NewAuthService(data, res, notes, nil),
	}

	t.Cleanup(func() {
		notes.Close()
		_ = index.Close()
		_ = c.Close()
		_ = lb.Close()
	})

	_, err = f.auth.SignUp(context.Background(), Credentials{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	return f
}

func (f *fixture) addTag(t *testing.T, text string) domain.Tag {
	t.Helper()
	tag, err := f.tags.Create(context.Background(), text, "#ff6347")
	require.NoError(t, err)
	return tag
}

func (f *fixture) addNote(t *testing.T, text string, tags ...domain.Tag) domain.Note {
	t.Helper()
	ids := make([]domain.ID, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	n, err := f.notes.Add(context.Background(), text, ids)
	require.NoError(t, err)
	return n
}

func noteIDs[T interface{ Key() domain.ID }](items []T) []domain.ID {
	out := make([]domain.ID, len(items))
	for i, it := range items {
		out[i] = it.Key()
	}
	return out
}
