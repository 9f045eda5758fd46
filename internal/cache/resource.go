package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	domainerrors "github.com/listenupapp/tagnotes/internal/errors"
)

// Fetcher loads the authoritative value of a key from the backend.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Effect performs a remote mutation. previous is the entry value from
// before any optimistic update. The returned value becomes the entry value
// unless the mutation was made WithPopulate(false).
type Effect[T any] func(ctx context.Context, previous T) (T, error)

// Snapshot is a point-in-time copy of an entry.
type Snapshot[T any] struct {
	Data    T      `json:"data"`
	HasData bool   `json:"has_data"`
	Loading bool   `json:"loading"`
	Err     error  `json:"-"`
	Version uint64 `json:"version"`
}

// Resource is a typed handle on one cache key.
type Resource[T any] struct {
	store *Store
	entry *entry
	fetch Fetcher[T]
}

type effectResult[T any] struct {
	value T
	err   error
}

// NewResource binds key to fetch. Every Resource for one key shares the same
// entry, so they must agree on T.
func NewResource[T any](s *Store, key string, fetch Fetcher[T]) *Resource[T] {
	return &Resource[T]{store: s, entry: s.entry(key), fetch: fetch}
}

// Key returns the cache key.
func (r *Resource[T]) Key() string { return r.entry.key }

// Snapshot returns the current state of the entry.
func (r *Resource[T]) Snapshot() Snapshot[T] {
	e := r.entry
	e.mu.RLock()
	defer e.mu.RUnlock()
	data, _ := e.data.(T)
	return Snapshot[T]{
		Data:    data,
		HasData: e.hasData,
		Loading: e.inFlight > 0,
		Err:     e.err,
		Version: e.version,
	}
}

// Load returns the cached value when it was fetched within the dedupe
// interval and fetches it otherwise.
func (r *Resource[T]) Load(ctx context.Context) (T, error) {
	e := r.entry
	e.mu.RLock()
	fresh := e.hasData && e.err == nil && !e.fetchedAt.IsZero() &&
		r.store.now().Sub(e.fetchedAt) < r.store.dedupeInterval
	data, _ := e.data.(T)
	e.mu.RUnlock()

	if fresh {
		return data, nil
	}
	return r.Revalidate(ctx)
}

// Revalidate fetches the key from the backend. Concurrent calls share one
// fetch. On failure the error is recorded and the previous value, if any, stays.
func (r *Resource[T]) Revalidate(ctx context.Context) (T, error) {
	var zero T
	if r.store.isClosed() {
		return zero, ErrClosed
	}
	if r.fetch == nil {
		return zero, fmt.Errorf("cache: no fetcher for %q", r.entry.key)
	}

	seq, gen := r.entry.marks()
	flight := r.entry.key + "#" + strconv.FormatUint(gen, 10) + "." + strconv.FormatUint(seq, 10)
	v, err, _ := r.store.flights.Do(flight, func() (any, error) {
		r.store.beginFetch(r.entry)
		val, err := r.fetch(ctx)
		r.store.finishFetch(r.entry, seq, gen, val, err)
		return val, err
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Mutate runs effect against the key.
//
// Mutations of one key run one at a time. With an optimistic value the entry
// shows it before effect starts. When effect fails or runs past the mutation
// timeout the entry goes back to its previous value, the error is recorded
// and returned. On success the result is stored (see WithPopulate) and the
// key is refetched (see WithRevalidate); a failed refetch does not fail the
// mutation.
func (r *Resource[T]) Mutate(ctx context.Context, effect Effect[T], opts ...MutateOption) (T, error) {
	var zero T
	cfg := defaultMutateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	release, err := r.entry.lock(ctx)
	if err != nil {
		return zero, err
	}
	defer release()

	if r.store.isClosed() {
		return zero, ErrClosed
	}

	prev := r.store.beginMutation(r.entry)
	previous, _ := prev.data.(T)

	if cfg.optimistic != nil {
		optimistic, ok := cfg.optimistic(previous).(T)
		if !ok {
			err := domainerrors.Internal(fmt.Sprintf("optimistic value for %q has the wrong type", r.entry.key))
			r.store.rollback(r.entry, prev, err)
			return zero, err
		}
		r.store.applyOptimistic(r.entry, prev, optimistic)
	}

	result, err := r.runEffect(ctx, effect, previous)
	if err != nil {
		r.store.rollback(r.entry, prev, err)
		return zero, err
	}

	r.store.commit(r.entry, prev, result, cfg.populate)

	if cfg.revalidate {
		if _, rerr := r.Revalidate(ctx); rerr != nil {
			r.store.logger.Warn("revalidate after mutation failed",
				slog.String("key", r.entry.key),
				slog.String("error", rerr.Error()),
			)
		}
	}
	return result, nil
}

// runEffect runs effect under the mutation timeout. An effect that ignores
// its context is abandoned when the deadline passes; its late result is dropped.
func (r *Resource[T]) runEffect(ctx context.Context, effect Effect[T], previous T) (T, error) {
	timeout := r.store.mutationTimeout
	if timeout <= 0 {
		return effect(ctx, previous)
	}

	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan effectResult[T], 1)
	go func() {
		v, err := effect(ectx, previous)
		done <- effectResult[T]{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && r.timedOut(ctx, ectx) {
			return res.value, r.timeoutError(res.err)
		}
		return res.value, res.err
	case <-ectx.Done():
		var zero T
		if r.timedOut(ctx, ectx) {
			return zero, r.timeoutError(ectx.Err())
		}
		return zero, ectx.Err()
	}
}

// timedOut reports whether ectx expired because of the mutation timeout
// rather than the caller's own context.
func (r *Resource[T]) timedOut(parent, ectx context.Context) bool {
	return errors.Is(ectx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

func (r *Resource[T]) timeoutError(cause error) error {
	return domainerrors.Timeout(
		fmt.Sprintf("%s mutation did not finish within %s", r.entry.key, r.store.mutationTimeout),
		cause,
	)
}
