// Package pending implements soft delete with undo: a delete request waits
// out a grace period on a cancellable timer before the real delete runs.
package pending

import (
	"slices"
	"sync"
	"time"
)

// Token identifies a scheduled callback.
type Token uint64

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	// Schedule arranges for fn to run once after delay.
	Schedule(delay time.Duration, fn func()) Token
	// Cancel prevents a scheduled fn from running. It reports false when fn
	// already started or tok is unknown.
	Cancel(tok Token) bool
}

// ClockScheduler schedules on the wall clock with time.AfterFunc.
type ClockScheduler struct {
	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewClockScheduler creates a wall-clock scheduler.
func NewClockScheduler() *ClockScheduler {
	return &ClockScheduler{timers: make(map[Token]*time.Timer)}
}

// Schedule implements Scheduler.
func (s *ClockScheduler) Schedule(delay time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	tok := s.next
	s.timers[tok] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, tok)
		s.mu.Unlock()
		fn()
	})
	return tok
}

// Cancel implements Scheduler.
func (s *ClockScheduler) Cancel(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[tok]
	if !ok {
		return false
	}
	delete(s.timers, tok)
	return t.Stop()
}

// Stop cancels every scheduled callback.
func (s *ClockScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
}

// ManualScheduler is a fake clock for tests. Nothing runs until Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	next  Token
	tasks []manualTask
}

type manualTask struct {
	tok Token
	due time.Duration
	fn  func()
}

// NewManualScheduler creates a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.tasks = append(s.tasks, manualTask{tok: s.next, due: s.now + delay, fn: fn})
	return s.next
}

// Cancel implements Scheduler.
func (s *ManualScheduler) Cancel(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.tasks, func(t manualTask) bool { return t.tok == tok })
	if i < 0 {
		return false
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	return true
}

// Advance moves the clock forward by d and runs every callback that came due,
// earliest first, on the calling goroutine. Callbacks scheduled by those
// callbacks run too if they fall due within the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		i := s.earliestDue(target)
		if i < 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		task := s.tasks[i]
		s.tasks = slices.Delete(s.tasks, i, i+1)
		s.now = task.due
		s.mu.Unlock()

		task.fn()
	}
}

// Scheduled returns the number of callbacks waiting to run.
func (s *ManualScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// earliestDue returns the index of the first task due at or before target,
// ties broken by scheduling order. Callers hold s.mu.
func (s *ManualScheduler) earliestDue(target time.Duration) int {
	best := -1
	for i, t := range s.tasks {
		if t.due > target {
			continue
		}
		if best < 0 || t.due < s.tasks[best].due {
			best = i
		}
	}
	return best
}
