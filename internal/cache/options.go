package cache

import (
	"log/slog"
	"time"
)

// Defaults for a new Store.
const (
	DefaultMutationTimeout = 15 * time.Second
	DefaultDedupeInterval  = 2 * time.Second
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMutationTimeout bounds how long a mutation effect may run.
// Zero or negative disables the bound.
func WithMutationTimeout(d time.Duration) Option {
	return func(s *Store) { s.mutationTimeout = d }
}

// WithDedupeInterval sets how long after a successful fetch Load serves the
// cached value instead of fetching again. Revalidate ignores it.
func WithDedupeInterval(d time.Duration) Option {
	return func(s *Store) { s.dedupeInterval = d }
}

// MutateOption configures a single Mutate call.
type MutateOption func(*mutateConfig)

type mutateConfig struct {
	optimistic func(previous any) any
	revalidate bool
	populate   bool
}

func defaultMutateConfig() mutateConfig {
	return mutateConfig{revalidate: true, populate: true}
}

// WithOptimistic shows v as the entry value while the effect runs.
// v must have the resource's value type.
func WithOptimistic(v any) MutateOption {
	return func(c *mutateConfig) {
		c.optimistic = func(any) any { return v }
	}
}

// WithOptimisticFunc computes the optimistic value from the value the entry
// holds once the mutation owns the key, so it never builds on a stale copy.
func WithOptimisticFunc[T any](fn func(previous T) T) MutateOption {
	return func(c *mutateConfig) {
		c.optimistic = func(previous any) any {
			p, _ := previous.(T)
			return fn(p)
		}
	}
}

// WithRevalidate controls whether a successful mutation refetches the key
// before Mutate returns. Defaults to true.
func WithRevalidate(revalidate bool) MutateOption {
	return func(c *mutateConfig) { c.revalidate = revalidate }
}

// WithPopulate controls whether the effect's result replaces the entry value.
// With false, the optimistic value (or the previous one) stays. Defaults to true.
func WithPopulate(populate bool) MutateOption {
	return func(c *mutateConfig) { c.populate = populate }
}
