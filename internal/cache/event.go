package cache

// EventKind names a state transition of a cache entry.
type EventKind string

// Event kinds, in the order a typical entry goes through them.
const (
	EventLoading    EventKind = "loading"
	EventLoaded     EventKind = "loaded"
	EventFailed     EventKind = "failed"
	EventOptimistic EventKind = "optimistic"
	EventCommitted  EventKind = "committed"
	EventRolledBack EventKind = "rolled_back"
	EventReset      EventKind = "reset"
)

// Event is delivered to subscribers after an entry changed.
// Data is the entry value after the change (nil for loading and reset).
type Event struct {
	Key     string    `json:"key"`
	Kind    EventKind `json:"kind"`
	Version uint64    `json:"version"`
	Err     error     `json:"-"`
	Data    any       `json:"-"`
}

// ErrMessage returns the event error message, or "".
func (e Event) ErrMessage() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

type listener struct {
	id uint64
	fn func(Event)
}
