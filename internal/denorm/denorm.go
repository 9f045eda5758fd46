// Package denorm flattens a many-to-many join into entities that carry their
// related items.
//
// Design philosophy:
//   - The full entity list decides which entities exist and in what order
//   - Join rows decide which related items attach, in the order supplied
//   - An entity nobody joined still comes back, with an empty (non-nil) Related
package denorm

// Keyed is anything with a comparable identity.
type Keyed[K comparable] interface {
	Key() K
}

// Pair is one join row with both ends resolved.
type Pair[L, R any] struct {
	Left  L
	Right R
}

// Joined is a left entity with the right entities joined to it.
type Joined[L, R any] struct {
	Entity  L
	Related []R
}

// Denormalize attaches to each entity of all the right-hand items of the join
// rows whose left key matches it.
//
// The entity emitted for a joined key is the Left of its first join row, so
// scalar fields carried by the join payload win over the copy in all. A right
// item already attached to the same entity is skipped, keeping duplicate rows
// for one (left, right) pair from rendering twice.
func Denormalize[K comparable, L Keyed[K], R Keyed[K]](all []L, rows []Pair[L, R]) []Joined[L, R] {
	type accumulator struct {
		entity  L
		related []R
		seen    map[K]struct{}
	}

	byKey := make(map[K]*accumulator, len(rows))
	for _, row := range rows {
		lk := row.Left.Key()
		acc, ok := byKey[lk]
		if !ok {
			acc = &accumulator{entity: row.Left, seen: make(map[K]struct{})}
			byKey[lk] = acc
		}

		rk := row.Right.Key()
		if _, dup := acc.seen[rk]; dup {
			continue
		}
		acc.seen[rk] = struct{}{}
		acc.related = append(acc.related, row.Right)
	}

	out := make([]Joined[L, R], len(all))
	for i, entity := range all {
		if acc, ok := byKey[entity.Key()]; ok {
			out[i] = Joined[L, R]{Entity: acc.entity, Related: acc.related}
			continue
		}
		out[i] = Joined[L, R]{Entity: entity, Related: []R{}}
	}
	return out
}
