// Package progress is the fire-and-forget status side-channel: workflow
// steps publish human-readable progress strings keyed by task ID, and
// consumers (a CLI printer, a push channel) subscribe per task.
//
// Publishing is best-effort by contract: a full buffer drops the update, a
// missing subscriber is fine, and no Publish error can abort the step that
// reported it.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Update is one progress report for a task.
type Update struct {
	// Stage names the workflow phase, e.g. "summarizing".
	Stage string
	// Message is the human-readable status string.
	Message string
	// At is when the update was published.
	At time.Time
}

// Publisher is the side-channel workflow steps report through.
type Publisher interface {
	// Publish delivers an update for the task. Best-effort: it never
	// blocks and never returns an error.
	Publish(taskID string, u Update)
}

// Nop is a Publisher that discards everything.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(string, Update) {}

// Func adapts a function to the Publisher interface.
type Func func(taskID string, u Update)

// Publish calls f.
func (f Func) Publish(taskID string, u Update) { f(taskID, u) }

// Bus is an in-memory Publisher with per-task subscriptions.
type Bus struct {
	bufferSize int

	mu     sync.RWMutex
	byTask map[string][]*subscription
	closed atomic.Bool

	// Dropped counts updates discarded because a subscriber's buffer was
	// full or the bus was closed.
	dropped atomic.Int64
}

type subscription struct {
	taskID  string
	updates chan Update

	// mu serializes sends against close so a cancel racing a publish can
	// never send on a closed channel. Sends are non-blocking, so the lock
	// is never held for long.
	mu     sync.Mutex
	closed bool
}

// send offers the update without blocking. Reports false if the buffer is
// full or the subscription is already closed.
func (s *subscription) send(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.updates <- u:
		return true
	default:
		return false
	}
}

// close closes the delivery channel exactly once.
func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBufferSize sets the per-subscription channel buffer. Default 64.
func WithBufferSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// NewBus creates an in-memory progress bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		bufferSize: 64,
		byTask:     make(map[string][]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish implements Publisher. Updates for tasks with no subscribers are
// discarded; a subscriber whose buffer is full misses the update rather
// than blocking the publisher.
func (b *Bus) Publish(taskID string, u Update) {
	if b.closed.Load() {
		b.dropped.Add(1)
		return
	}
	if u.At.IsZero() {
		u.At = time.Now()
	}

	b.mu.RLock()
	subs := b.byTask[taskID]
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.send(u) {
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers for a task's updates. The returned cancel function
// removes the subscription and closes the channel; it is safe to call more
// than once.
func (b *Bus) Subscribe(taskID string) (<-chan Update, func()) {
	sub := &subscription{
		taskID:  taskID,
		updates: make(chan Update, b.bufferSize),
	}

	b.mu.Lock()
	b.byTask[taskID] = append(b.byTask[taskID], sub)
	b.mu.Unlock()

	return sub.updates, func() { b.unsubscribe(sub) }
}

// Complete closes every subscription for the task, signalling consumers
// that no further updates will arrive.
func (b *Bus) Complete(taskID string) {
	b.mu.Lock()
	subs := b.byTask[taskID]
	delete(b.byTask, taskID)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Close shuts down the bus, completing all tasks.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	all := b.byTask
	b.byTask = make(map[string][]*subscription)
	b.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.close()
		}
	}
}

// Dropped returns how many updates were discarded.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	subs := b.byTask[sub.taskID]
	for i, s := range subs {
		if s == sub {
			b.byTask[sub.taskID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.byTask[sub.taskID]) == 0 {
		delete(b.byTask, sub.taskID)
	}
	b.mu.Unlock()

	sub.close()
}
