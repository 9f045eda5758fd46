// Package cache keeps the last known good copy of remote collections and
// applies optimistic mutations to them with rollback on failure.
//
// A Store owns every entry. Callers read entries through typed Resource
// handles and change them only through Resource.Mutate or a fetch, so a
// rollback can always restore what was there before.
package cache

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("cache: store closed")

// Store is an explicit cache instance. The zero value is not usable; create
// one with New. Test code should use a fresh Store per test.
type Store struct {
	logger          *slog.Logger
	mutationTimeout time.Duration
	dedupeInterval  time.Duration
	now             func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	listeners []listener
	nextID    uint64
	closed    bool

	flights singleflight.Group
}

// entry is one cache key. sem serializes mutations; mu guards the state.
type entry struct {
	key string
	sem chan struct{}

	mu        sync.RWMutex
	data      any
	hasData   bool
	inFlight  int
	mutating  bool
	err       error
	version   uint64
	seq       uint64 // bumped when a mutation takes the key and when it settles
	gen       uint64 // bumped by Reset
	fetchedAt time.Time
}

// state is a copy of an entry's value taken at the start of a mutation.
type state struct {
	data    any
	hasData bool
	err     error
	gen     uint64
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		logger:          slog.Default(),
		mutationTimeout: DefaultMutationTimeout,
		dedupeInterval:  DefaultDedupeInterval,
		now:             time.Now,
		entries:         make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "cache"))
	return s
}

// Subscribe registers fn to be called after every entry change.
// Listeners run synchronously on the goroutine that made the change and must
// not block or call Mutate. Changes to different keys may be reported
// concurrently; Version orders the events of one key. The returned func
// removes the listener.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
		})
	}
}

// Keys returns the keys the store has entries for, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Reset drops every entry's value and error. Fetches and mutations already
// running finish but do not write their results back.
func (s *Store) Reset() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.key, b.key) })
	for _, e := range entries {
		e.mu.Lock()
		e.data = nil
		e.hasData = false
		e.err = nil
		e.gen++
		e.version++
		e.fetchedAt = time.Time{}
		ev := Event{Key: e.key, Kind: EventReset, Version: e.version}
		e.mu.Unlock()
		s.emit(ev)
	}
	s.logger.Debug("cache reset", slog.Int("keys", len(entries)))
}

// Close resets the store, removes every listener and makes further fetches
// and mutations fail with ErrClosed.
func (s *Store) Close() error {
	s.Reset()
	s.mu.Lock()
	s.closed = true
	s.listeners = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) entry(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key, sem: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	return e
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	ls := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, l := range ls {
		l.fn(ev)
	}
}

// lock takes the entry's mutation slot, giving up when ctx is done.
func (e *entry) lock(ctx context.Context) (release func(), err error) {
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *entry) marks() (seq, gen uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq, e.gen
}

func (s *Store) beginFetch(e *entry) {
	e.mu.Lock()
	e.inFlight++
	first := e.inFlight == 1
	ev := Event{Key: e.key, Kind: EventLoading, Version: e.version}
	e.mu.Unlock()
	if first {
		s.emit(ev)
	}
}

// finishFetch records a fetch result. A fetch that started before the latest
// mutation settled, or before a Reset, is stale and only clears the in-flight flag.
func (s *Store) finishFetch(e *entry, seq, gen uint64, val any, fetchErr error) {
	e.mu.Lock()
	e.inFlight--
	if e.gen != gen || e.seq != seq || e.mutating {
		e.mu.Unlock()
		s.logger.Debug("discarding stale fetch", slog.String("key", e.key))
		return
	}

	var ev Event
	if fetchErr != nil {
		e.err = fetchErr
		e.version++
		ev = Event{Key: e.key, Kind: EventFailed, Version: e.version, Err: fetchErr, Data: e.data}
	} else {
		e.data = val
		e.hasData = true
		e.err = nil
		e.fetchedAt = s.now()
		e.version++
		ev = Event{Key: e.key, Kind: EventLoaded, Version: e.version, Data: val}
	}
	e.mu.Unlock()

	if fetchErr != nil {
		s.logger.Warn("fetch failed", slog.String("key", e.key), slog.String("error", fetchErr.Error()))
	}
	s.emit(ev)
}

func (s *Store) beginMutation(e *entry) state {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.mutating = true
	return state{data: e.data, hasData: e.hasData, err: e.err, gen: e.gen}
}

func (s *Store) applyOptimistic(e *entry, prev state, v any) {
	e.mu.Lock()
	if e.gen != prev.gen {
		e.mu.Unlock()
		return
	}
	e.data = v
	e.hasData = true
	e.version++
	ev := Event{Key: e.key, Kind: EventOptimistic, Version: e.version, Data: v}
	e.mu.Unlock()
	s.emit(ev)
}

func (s *Store) commit(e *entry, prev state, result any, populate bool) {
	e.mu.Lock()
	e.mutating = false
	e.seq++
	if e.gen != prev.gen {
		e.mu.Unlock()
		return
	}
	if populate {
		e.data = result
		e.hasData = true
	}
	e.err = nil
	e.version++
	ev := Event{Key: e.key, Kind: EventCommitted, Version: e.version, Data: e.data}
	e.mu.Unlock()
	s.emit(ev)
}

func (s *Store) rollback(e *entry, prev state, cause error) {
	e.mu.Lock()
	e.mutating = false
	e.seq++
	if e.gen != prev.gen {
		e.mu.Unlock()
		return
	}
	e.data = prev.data
	e.hasData = prev.hasData
	e.err = cause
	e.version++
	ev := Event{Key: e.key, Kind: EventRolledBack, Version: e.version, Err: cause, Data: e.data}
	e.mu.Unlock()

	s.logger.Warn("mutation rolled back", slog.String("key", e.key), slog.String("error", cause.Error()))
	s.emit(ev)
}
