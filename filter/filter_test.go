package filter

import (
	"testing"

	"go.uber.org/zap/zaptest/observer"

	"go.uber.org/zap"

	"srpcgo/message"
)

type recordingFilter struct {
	NopFilter
	order  *[]string
	name   string
	vetoOn string
}

func (f *recordingFilter) ClientBegin(id CallID, data *message.ModuleData) bool {
	*f.order = append(*f.order, f.name+":begin")
	return f.vetoOn != "begin"
}

func (f *recordingFilter) ClientEnd(id CallID, data *message.ModuleData, status message.Status) {
	*f.order = append(*f.order, f.name+":end")
}

func TestChainOrderingForwardBothHooks(t *testing.T) {
	var order []string
	var chain Chain
	chain.Add(&recordingFilter{order: &order, name: "a"})
	chain.Add(&recordingFilter{order: &order, name: "b"})

	id := CallID(1)
	data := &message.ModuleData{}
	RunClientBegin(chain.Snapshot(), id, data)
	RunClientEnd(chain.Snapshot(), id, data, message.StatusOK)

	want := []string{"a:begin", "b:begin", "a:end", "b:end"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChainBeginVetoStopsRemainingBeginsButRunsAllEnds(t *testing.T) {
	var order []string
	var chain Chain
	chain.Add(&recordingFilter{order: &order, name: "a", vetoOn: "begin"})
	chain.Add(&recordingFilter{order: &order, name: "b"})

	id := CallID(1)
	data := &message.ModuleData{}
	ok := RunClientBegin(chain.Snapshot(), id, data)
	if ok {
		t.Fatal("expected veto from filter a to fail the begin chain")
	}
	RunClientEnd(chain.Snapshot(), id, data, message.StatusMetaError)

	want := []string{"a:begin", "a:end", "b:end"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChainSnapshotIsolatedFromConcurrentAdd(t *testing.T) {
	var chain Chain
	chain.Add(NopFilter{})
	snap := chain.Snapshot()
	chain.Add(NopFilter{})

	if len(snap) != 1 {
		t.Fatalf("snapshot should be pinned at 1 filter, got %d", len(snap))
	}
	if len(chain.Snapshot()) != 2 {
		t.Fatalf("a fresh snapshot should see both filters, got %d", len(chain.Snapshot()))
	}
}

func TestRateLimitFilterVetoesOnceExhausted(t *testing.T) {
	f := NewRateLimitFilter(1, 1)
	data := &message.ModuleData{}
	if !f.ServerBegin(CallID(1), data) {
		t.Fatal("first call should be allowed by a fresh token bucket")
	}
	if f.ServerBegin(CallID(2), data) {
		t.Fatal("second immediate call should be vetoed, the bucket has no tokens left")
	}
}

func TestAuthFilterRequiresKeyAndValidation(t *testing.T) {
	f := NewAuthFilter("token", func(v string) bool { return v == "good" })

	empty := &message.ModuleData{}
	if f.ServerBegin(CallID(1), empty) {
		t.Fatal("expected veto when module-data has no token key")
	}

	bad := &message.ModuleData{}
	bad.Set("token", "bad")
	if f.ServerBegin(CallID(2), bad) {
		t.Fatal("expected veto when Validate rejects the token")
	}

	good := &message.ModuleData{}
	good.Set("token", "good")
	if !f.ServerBegin(CallID(3), good) {
		t.Fatal("expected call allowed when Validate accepts the token")
	}
}

func TestLoggingFilterTracksDurationPerCallID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := NewLoggingFilter(zap.New(core))

	data := &message.ModuleData{}
	f.ClientBegin(CallID(7), data)
	f.ClientEnd(CallID(7), data, message.StatusOK)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["status"] != "ok" {
		t.Fatalf("expected status=ok field, got %v", entries[0].ContextMap())
	}
}
