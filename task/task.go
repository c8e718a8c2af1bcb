// Package task implements the per-call execution graph: the Series/Subtask
// model spec.md §4.3 describes, generalized from the teacher's direct
// goroutine-per-request dispatch (server.go's handleRequest, client.go's
// Call) into an explicit chain a handler can append follow-up work to and
// a one-shot timer can cancel mid-flight.
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"srpcgo/filter"
	"srpcgo/message"
)

var nextID uint64

// NewCallID hands out the opaque per-call identifier filters use to
// correlate their begin/end observations.
func NewCallID() filter.CallID {
	return filter.CallID(atomic.AddUint64(&nextID, 1))
}

// Subtask is one unit of work in a call's Series. The transport step
// itself is an internal subtask; handlers may Append further subtasks,
// which the server runs to completion after the handler returns and
// before it sends the reply (spec.md §4.3 "a chain of subtasks... that can
// suspend at I/O boundaries").
type Subtask func(ctx context.Context)

// Series is the ordered chain of subtasks belonging to one call.
// Append is safe to call while Run is draining the chain, so a running
// subtask can schedule its own successor.
type Series struct {
	mu       sync.Mutex
	subtasks []Subtask
	canceled atomic.Bool
}

// Append adds t to the end of the series.
func (s *Series) Append(t Subtask) {
	s.mu.Lock()
	s.subtasks = append(s.subtasks, t)
	s.mu.Unlock()
}

// Run drains the series in FIFO order. It stops early, without running
// any more subtasks, once Cancel has been called — matching spec.md §4.4
// "the currently running subtask observes [the cancel flag] at its next
// suspension point".
func (s *Series) Run(ctx context.Context) {
	for {
		if s.canceled.Load() {
			return
		}
		s.mu.Lock()
		if len(s.subtasks) == 0 {
			s.mu.Unlock()
			return
		}
		t := s.subtasks[0]
		s.subtasks = s.subtasks[1:]
		s.mu.Unlock()
		t(ctx)
	}
}

// Cancel sets the series' cancel flag; it does not interrupt a subtask
// already running, only prevents the next one from starting.
func (s *Series) Cancel() { s.canceled.Store(true) }

// Canceled reports whether Cancel has been called.
func (s *Series) Canceled() bool { return s.canceled.Load() }

// CallContext is the per-call state threaded through filters and
// handlers: the call's filter-correlation id, its meta (and therefore its
// mutable module-data baggage), and the Series a handler may extend.
type CallContext struct {
	ID     filter.CallID
	Meta   *message.Meta
	Series *Series
}

// NewCallContext builds a CallContext for one inbound or outbound call.
func NewCallContext(meta *message.Meta) *CallContext {
	return &CallContext{ID: NewCallID(), Meta: meta, Series: &Series{}}
}

// ModuleData returns the call's mutable baggage map, lazily initialized on
// first write via message.ModuleData.Set.
func (c *CallContext) ModuleData() *message.ModuleData {
	return &c.Meta.ModuleData
}

// OverallTimer arms a one-shot timer that cancels series once d elapses,
// matching spec.md §4.4's "overall timeout fires a one-shot timer that
// sets a cancel-flag on the series". Callers must invoke the returned
// stop func once the call finishes normally, to release the timer early.
func OverallTimer(series *Series, d time.Duration) (stop func()) {
	if d <= 0 {
		return func() {}
	}
	timer := time.AfterFunc(d, series.Cancel)
	return func() { timer.Stop() }
}
