package pending

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultGracePeriod is how long a delete request can be undone.
const DefaultGracePeriod = 5 * time.Second

// State is the delete state of one id.
type State string

// Possible states. An id moves none -> pending -> fired -> none, or back
// from pending to none when the request is canceled.
const (
	StateNone    State = "none"
	StatePending State = "pending"
	StateFired   State = "fired"
)

// FireFunc performs the real delete of id. fired holds every id in the fired
// state when id's timer went off, id included. It is a snapshot: by the time
// the callback acts on it another id may have settled, its delete failed and
// its entry cleared, so a callback that waits for a shared resource before
// using fired must check State first.
type FireFunc[K comparable] func(ctx context.Context, id K, fired []K) error

// ChangeFunc observes state transitions.
type ChangeFunc[K comparable] func(id K, state State)

// Deleter tracks pending deletes keyed by entity id.
type Deleter[K comparable] struct {
	sched    Scheduler
	grace    time.Duration
	fire     FireFunc[K]
	onChange ChangeFunc[K]
	ctx      context.Context
	logger   *slog.Logger

	mu      sync.Mutex
	seq     uint64
	entries map[K]*request
}

type request struct {
	state State
	token Token
	seq   uint64
}

// DeleterOption configures a Deleter.
type DeleterOption[K comparable] func(*Deleter[K])

// WithGracePeriod sets the undo window.
func WithGracePeriod[K comparable](d time.Duration) DeleterOption[K] {
	return func(dl *Deleter[K]) {
		if d > 0 {
			dl.grace = d
		}
	}
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler[K comparable](s Scheduler) DeleterOption[K] {
	return func(dl *Deleter[K]) { dl.sched = s }
}

// WithOnChange registers a state transition observer. It runs synchronously
// and must not call back into the Deleter.
func WithOnChange[K comparable](fn ChangeFunc[K]) DeleterOption[K] {
	return func(dl *Deleter[K]) { dl.onChange = fn }
}

// WithBaseContext sets the context fire callbacks run under.
func WithBaseContext[K comparable](ctx context.Context) DeleterOption[K] {
	return func(dl *Deleter[K]) { dl.ctx = ctx }
}

// WithDeleterLogger sets the logger.
func WithDeleterLogger[K comparable](logger *slog.Logger) DeleterOption[K] {
	return func(dl *Deleter[K]) { dl.logger = logger }
}

// NewDeleter creates a Deleter that calls fire once an id's grace period ends.
func NewDeleter[K comparable](fire FireFunc[K], opts ...DeleterOption[K]) *Deleter[K] {
	d := &Deleter[K]{
		grace:   DefaultGracePeriod,
		fire:    fire,
		ctx:     context.Background(),
		logger:  slog.Default(),
		entries: make(map[K]*request),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sched == nil {
		d.sched = NewClockScheduler()
	}
	return d
}

// GracePeriod returns the undo window.
func (d *Deleter[K]) GracePeriod() time.Duration { return d.grace }

// Request starts the grace period for id. It reports false when id is
// already pending or firing.
func (d *Deleter[K]) Request(id K) bool {
	d.mu.Lock()
	if _, ok := d.entries[id]; ok {
		d.mu.Unlock()
		return false
	}
	d.seq++
	req := &request{state: StatePending, seq: d.seq}
	d.entries[id] = req
	// Schedule under the lock so the timer callback cannot look the entry up
	// before its token is set.
	req.token = d.sched.Schedule(d.grace, func() { d.run(id, req) })
	d.mu.Unlock()

	d.logger.Debug("delete requested", slog.Any("id", id), slog.Duration("grace", d.grace))
	d.changed(id, StatePending)
	return true
}

// Cancel withdraws a pending request. Once the delete has started there is
// nothing to undo and Cancel reports false.
func (d *Deleter[K]) Cancel(id K) bool {
	d.mu.Lock()
	req, ok := d.entries[id]
	if !ok || req.state != StatePending {
		d.mu.Unlock()
		return false
	}
	d.sched.Cancel(req.token)
	delete(d.entries, id)
	d.mu.Unlock()

	d.logger.Debug("delete canceled", slog.Any("id", id))
	d.changed(id, StateNone)
	return true
}

// CancelAll withdraws every pending request and returns how many there were.
func (d *Deleter[K]) CancelAll() int {
	d.mu.Lock()
	var canceled []K
	for id, req := range d.entries {
		if req.state != StatePending {
			continue
		}
		d.sched.Cancel(req.token)
		delete(d.entries, id)
		canceled = append(canceled, id)
	}
	d.mu.Unlock()

	for _, id := range canceled {
		d.changed(id, StateNone)
	}
	return len(canceled)
}

// State returns the delete state of id.
func (d *Deleter[K]) State(id K) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if req, ok := d.entries[id]; ok {
		return req.state
	}
	return StateNone
}

// Pending returns the ids waiting out their grace period, oldest request first.
func (d *Deleter[K]) Pending() []K {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idsLocked(StatePending)
}

// Fired returns the ids whose delete is running, oldest request first.
func (d *Deleter[K]) Fired() []K {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idsLocked(StateFired)
}

func (d *Deleter[K]) idsLocked(state State) []K {
	type item struct {
		id  K
		seq uint64
	}
	var items []item
	for id, req := range d.entries {
		if req.state == state {
			items = append(items, item{id: id, seq: req.seq})
		}
	}
	slices.SortFunc(items, func(a, b item) int { return cmp.Compare(a.seq, b.seq) })
	ids := make([]K, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids
}

// run is the timer callback. The entry is cleared when fire returns, whether
// or not the delete succeeded, so a failed delete can be requested again.
func (d *Deleter[K]) run(id K, req *request) {
	d.mu.Lock()
	if d.entries[id] != req || req.state != StatePending {
		d.mu.Unlock()
		return
	}
	req.state = StateFired
	fired := d.idsLocked(StateFired)
	d.mu.Unlock()

	d.changed(id, StateFired)

	err := d.fire(d.ctx, id, fired)

	d.mu.Lock()
	if d.entries[id] == req {
		delete(d.entries, id)
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("delete failed", slog.Any("id", id), slog.String("error", err.Error()))
	} else {
		d.logger.Info("deleted", slog.Any("id", id))
	}
	d.changed(id, StateNone)
}

func (d *Deleter[K]) changed(id K, state State) {
	if d.onChange != nil {
		d.onChange(id, state)
	}
}
