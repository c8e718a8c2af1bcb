// Package filter implements srpcgo's plugin mechanism for cross-cutting
// call behavior (tracing, auth, rate limiting, logging): the RPCFilter
// shape from spec.md §6, generalized from the teacher's onion-model
// HTTP-style middleware into the four-hook begin/end shape a call's
// series needs.
//
// Execution order, per spec.md §4.3:
//
//	client_begin(1) -> client_begin(2) -> ... -> transport -> client_end(1) -> client_end(2) -> ...
//
// If any begin hook returns false, remaining begin hooks and the transport
// step are skipped, but every end hook still runs so observability can
// record the failure (spec.md §4.3 "Ordering").
package filter

import (
	"sync"

	"srpcgo/message"
)

// CallID identifies the call (spec.md's "owning subtask") a hook
// invocation belongs to, so a filter can correlate its begin and end
// observations for one call without needing srpcgo's task package —
// avoiding an import cycle between filter (used by task) and task itself.
type CallID uint64

// Filter is the plugin interface a client or server registers via
// AddFilter. Every hook is optional: embed NopFilter, whose zero value is
// a legal no-op plugin, and override only the hooks needed.
type Filter interface {
	// ClientBegin runs before a client call's transport step. Returning
	// false vetoes the call; data is the call's module-data, mutable in
	// place.
	ClientBegin(id CallID, data *message.ModuleData) bool
	// ClientEnd runs after a client call's transport step, success or
	// failure.
	ClientEnd(id CallID, data *message.ModuleData, status message.Status)
	// ServerBegin runs before a server call's handler dispatch.
	ServerBegin(id CallID, data *message.ModuleData) bool
	// ServerEnd runs after a server call's handler returns (or its
	// appended subtask completes, for async handlers).
	ServerEnd(id CallID, data *message.ModuleData, status message.Status)
}

// NopFilter implements every hook as a no-op / allow; embed it to satisfy
// Filter while overriding only the hooks a concrete filter cares about.
type NopFilter struct{}

func (NopFilter) ClientBegin(CallID, *message.ModuleData) bool { return true }
func (NopFilter) ClientEnd(CallID, *message.ModuleData, message.Status) {}
func (NopFilter) ServerBegin(CallID, *message.ModuleData) bool { return true }
func (NopFilter) ServerEnd(CallID, *message.ModuleData, message.Status) {}

// Chain is an ordered, append-only list of filters run as a fold around a
// call, matching spec.md §9's "natural fold over a vector of filters".
// Mutation (AddFilter) during serving is supported; Snapshot gives each
// call an atomic view so concurrent AddFilter calls never torn-read the
// slice mid-call (spec.md §5 "Shared state").
type Chain struct {
	mu      sync.RWMutex
	filters []Filter
}

// Add appends a filter; filters run in the order they were added, for both
// begin (forward order) and end (also forward order, per spec.md §8
// "Filter order" testable property).
func (c *Chain) Add(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Copy-on-write: callers may hold a Snapshot concurrently with Add.
	next := make([]Filter, len(c.filters)+1)
	copy(next, c.filters)
	next[len(c.filters)] = f
	c.filters = next
}

// Snapshot returns the filter list to use for one call — a stable view
// even if Add runs concurrently afterward.
func (c *Chain) Snapshot() []Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters
}

// RunClientBegin runs every filter's ClientBegin in order, stopping (but
// not erroring) at the first false — remaining begins and the transport
// step are skipped by the caller, matching spec.md §4.3.
func RunClientBegin(filters []Filter, id CallID, data *message.ModuleData) bool {
	for _, f := range filters {
		if !f.ClientBegin(id, data) {
			return false
		}
	}
	return true
}

// RunClientEnd runs every filter's ClientEnd in order; always runs all of
// them, even if a begin hook vetoed the call.
func RunClientEnd(filters []Filter, id CallID, data *message.ModuleData, status message.Status) {
	for _, f := range filters {
		f.ClientEnd(id, data, status)
	}
}

// RunServerBegin mirrors RunClientBegin for the server side.
func RunServerBegin(filters []Filter, id CallID, data *message.ModuleData) bool {
	for _, f := range filters {
		if !f.ServerBegin(id, data) {
			return false
		}
	}
	return true
}

// RunServerEnd mirrors RunClientEnd for the server side.
func RunServerEnd(filters []Filter, id CallID, data *message.ModuleData, status message.Status) {
	for _, f := range filters {
		f.ServerEnd(id, data, status)
	}
}
