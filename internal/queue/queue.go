// Package queue provides the ordered collection of calls currently on screen.
package queue

import (
	"errors"
	"slices"
	"sync"

	"github.com/jmylchreest/callhud/internal/model"
)

// ErrQueueClosed is returned when mutating a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// ChangeType indicates the type of queue change.
type ChangeType int

const (
	// ChangeTypeAdd indicates a call was appended.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeUpdate indicates an existing call was replaced in place.
	ChangeTypeUpdate
	// ChangeTypeRemove indicates one or more calls were removed.
	ChangeTypeRemove
	// ChangeTypeReplace indicates an arbitrary Update rewrote the sequence.
	ChangeTypeReplace
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case ChangeTypeAdd:
		return "add"
	case ChangeTypeUpdate:
		return "update"
	case ChangeTypeRemove:
		return "remove"
	case ChangeTypeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ChangeEvent signals queue content changes.
type ChangeEvent struct {
	Type ChangeType
	ID   string // Empty for ChangeTypeReplace
	Len  int    // Queue length after the change

	// Cause names who removed the call, if the remover said so
	Cause string
}

// Observer is called with the new contents after every change, while the
// writer lock is held. Observers must not mutate the queue.
type Observer func(calls []model.Call, event ChangeEvent)

// Without returns a new sequence with every call matching id excluded.
// An absent id yields an equal copy.
func Without(calls []model.Call, id string) []model.Call {
	out := make([]model.Call, 0, len(calls))
	for _, c := range calls {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// Queue is a single-writer ordered sequence of calls.
// All mutations are serialized; the last update wins.
type Queue struct {
	mu    sync.Mutex
	calls []model.Call

	observers   []Observer
	subscribers []chan ChangeEvent
	closed      bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		calls:       make([]model.Call, 0),
		subscribers: make([]chan ChangeEvent, 0),
	}
}

// Update applies fn to the current sequence and stores the result.
// fn receives a copy and may return it modified or a new slice.
func (q *Queue) Update(fn func([]model.Call) []model.Call) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	next := fn(slices.Clone(q.calls))
	if slices.Equal(next, q.calls) {
		return nil
	}
	q.calls = next
	q.notifyLocked(ChangeEvent{Type: ChangeTypeReplace, Len: len(q.calls)})
	return nil
}

// Remove drops every call with the given id.
// Removing an id that is not queued is a no-op.
func (q *Queue) Remove(id string) {
	q.RemoveWithCause(id, "")
}

// RemoveWithCause is Remove with cause carried on the change event.
// Returns true only for the caller that actually removed the call.
func (q *Queue) RemoveWithCause(id, cause string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || !q.containsLocked(id) {
		return false
	}

	q.calls = Without(q.calls, id)
	q.notifyLocked(ChangeEvent{Type: ChangeTypeRemove, ID: id, Len: len(q.calls), Cause: cause})
	return true
}

// Push appends a call. If a call with the same id is already queued it is
// replaced in place and keeps its position.
func (q *Queue) Push(call model.Call) error {
	if err := call.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if idx := q.indexLocked(call.ID); idx >= 0 {
		if q.calls[idx] == call {
			return nil
		}
		q.calls[idx] = call
		q.notifyLocked(ChangeEvent{Type: ChangeTypeUpdate, ID: call.ID, Len: len(q.calls)})
		return nil
	}

	q.calls = append(q.calls, call)
	q.notifyLocked(ChangeEvent{Type: ChangeTypeAdd, ID: call.ID, Len: len(q.calls)})
	return nil
}

// Snapshot returns a copy of the queued calls in order.
func (q *Queue) Snapshot() []model.Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.calls)
}

// Get returns the call with the given id.
func (q *Queue) Get(id string) (model.Call, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if idx := q.indexLocked(id); idx >= 0 {
		return q.calls[idx], true
	}
	return model.Call{}, false
}

// Contains reports whether a call with the given id is queued.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.containsLocked(id)
}

// Len returns the number of queued calls.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Observe registers a synchronous observer. fn is invoked immediately with
// the current contents, then after every change, always in mutation order.
func (q *Queue) Observe(fn Observer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.observers = append(q.observers, fn)
	fn(slices.Clone(q.calls), ChangeEvent{Type: ChangeTypeReplace, Len: len(q.calls)})
}

// Subscribe returns a channel that receives change events.
// Sends never block; a slow subscriber misses events.
func (q *Queue) Subscribe() <-chan ChangeEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan ChangeEvent, 16)
	if q.closed {
		close(ch)
		return ch
	}
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (q *Queue) Unsubscribe(ch <-chan ChangeEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes all subscriber channels. Later mutations fail or no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	for _, ch := range q.subscribers {
		close(ch)
	}
	q.subscribers = nil
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.calls, func(c model.Call) bool { return c.ID == id })
}

func (q *Queue) containsLocked(id string) bool {
	return q.indexLocked(id) >= 0
}

// notifyLocked informs observers and subscribers. Caller must hold the lock.
func (q *Queue) notifyLocked(event ChangeEvent) {
	if len(q.observers) > 0 {
		snapshot := slices.Clone(q.calls)
		for _, fn := range q.observers {
			fn(snapshot, event)
		}
	}

	for _, ch := range q.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}
