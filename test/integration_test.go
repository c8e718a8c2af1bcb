package test

import (
	"context"
	"testing"
	"time"

	"srpcgo/client"
	"srpcgo/filter"
	"srpcgo/message"
	"srpcgo/server"
	"srpcgo/task"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(ctx *task.CallContext, args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func (a *Arith) Multiply(ctx *task.CallContext, args *Args, reply *Reply) error {
	reply.Result = args.A * args.B
	return nil
}

// Slow appends a subtask that the server runs before sending the reply,
// exercising the async handler path: the client gets its timeout-triggered
// response_timeout while the server keeps running the subtask to completion.
func (a *Arith) Slow(ctx *task.CallContext, args *Args, reply *Reply) error {
	ctx.Series.Append(func(context.Context) {
		time.Sleep(50 * time.Millisecond)
	})
	reply.Result = args.A
	return nil
}

func startServer(t testing.TB, addr, protocol string) *server.Server {
	svr := server.NewServer(server.Options{Protocol: protocol})
	if err := svr.AddService(&Arith{}); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", addr)
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { svr.Stop(3 * time.Second) })
	return svr
}

func newTestClient(addr, protocol string) *client.Client {
	return client.NewClient(client.Options{
		Protocol: protocol,
		Addr:     addr,
		DataType: message.DataTypeJSON,
	})
}

func TestCallSbinRoundTrip(t *testing.T) {
	startServer(t, "127.0.0.1:19080", "s-bin")
	cli := newTestClient("127.0.0.1:19080", "s-bin")

	reply := &Reply{}
	if err := cli.Call(context.Background(), "Arith", "Add", &Args{A: 3, B: 5}, reply); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if reply.Result != 8 {
		t.Fatalf("Add: expected 8, got %d", reply.Result)
	}

	reply2 := &Reply{}
	if err := cli.Call(context.Background(), "Arith", "Multiply", &Args{A: 4, B: 6}, reply2); err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	if reply2.Result != 24 {
		t.Fatalf("Multiply: expected 24, got %d", reply2.Result)
	}
}

func TestCallShttpRoundTrip(t *testing.T) {
	startServer(t, "127.0.0.1:19081", "s-http")
	cli := newTestClient("127.0.0.1:19081", "s-http")

	reply := &Reply{}
	if err := cli.Call(context.Background(), "Arith", "Add", &Args{A: 1, B: 2}, reply); err != nil {
		t.Fatalf("Add over s-http failed: %v", err)
	}
	if reply.Result != 3 {
		t.Fatalf("Add: expected 3, got %d", reply.Result)
	}
}

func TestCallBbinRoundTrip(t *testing.T) {
	startServer(t, "127.0.0.1:19082", "b-bin")
	cli := newTestClient("127.0.0.1:19082", "b-bin")

	reply := &Reply{}
	if err := cli.Call(context.Background(), "Arith", "Add", &Args{A: 10, B: 20}, reply); err != nil {
		t.Fatalf("Add over b-bin failed: %v", err)
	}
	if reply.Result != 30 {
		t.Fatalf("Add: expected 30, got %d", reply.Result)
	}
}

func TestCallTrbinRoundTrip(t *testing.T) {
	startServer(t, "127.0.0.1:19083", "tr-bin")
	cli := newTestClient("127.0.0.1:19083", "tr-bin")

	reply := &Reply{}
	if err := cli.Call(context.Background(), "Arith", "Add", &Args{A: 7, B: 8}, reply); err != nil {
		t.Fatalf("Add over tr-bin failed: %v", err)
	}
	if reply.Result != 15 {
		t.Fatalf("Add: expected 15, got %d", reply.Result)
	}
}

func TestCallMethodNotFound(t *testing.T) {
	startServer(t, "127.0.0.1:19084", "s-bin")
	cli := newTestClient("127.0.0.1:19084", "s-bin")

	reply := &Reply{}
	err := cli.Call(context.Background(), "Arith", "Divide", &Args{A: 1, B: 2}, reply)
	if err == nil {
		t.Fatal("expected method_not_found error, got nil")
	}
	if message.AsStatus(err) != message.StatusMethodNotFound {
		t.Fatalf("expected method_not_found, got %v", message.AsStatus(err))
	}
}

func TestCallServiceNotFound(t *testing.T) {
	startServer(t, "127.0.0.1:19085", "s-bin")
	cli := newTestClient("127.0.0.1:19085", "s-bin")

	reply := &Reply{}
	err := cli.Call(context.Background(), "NoSuchService", "Add", &Args{A: 1, B: 2}, reply)
	if message.AsStatus(err) != message.StatusServiceNotFound {
		t.Fatalf("expected service_not_found, got %v", message.AsStatus(err))
	}
}

func TestOverallTimeout(t *testing.T) {
	startServer(t, "127.0.0.1:19086", "s-bin")
	cli := client.NewClient(client.Options{
		Protocol:       "s-bin",
		Addr:           "127.0.0.1:19086",
		DataType:       message.DataTypeJSON,
		OverallTimeout: 20 * time.Millisecond,
	})

	reply := &Reply{}
	err := cli.Call(context.Background(), "Arith", "Slow", &Args{A: 9}, reply)
	if err == nil {
		t.Fatal("expected response_timeout, got nil")
	}
	if message.AsStatus(err) != message.StatusResponseTimeout {
		t.Fatalf("expected response_timeout, got %v", message.AsStatus(err))
	}
}

// moduleDataFilter records every module-data key it observes at each hook,
// proving baggage set on the client is visible in server_begin and
// baggage set in the handler is visible back in client_end.
type moduleDataFilter struct {
	filter.NopFilter
	seenServerBegin map[string]string
}

func (f *moduleDataFilter) ServerBegin(id filter.CallID, data *message.ModuleData) bool {
	f.seenServerBegin = map[string]string(data.Clone())
	data.Set("server-seen", "yes")
	return true
}

func TestModuleDataPropagation(t *testing.T) {
	svr := server.NewServer(server.Options{Protocol: "s-bin"})
	if err := svr.AddService(&Arith{}); err != nil {
		t.Fatal(err)
	}
	srvFilter := &moduleDataFilter{}
	svr.AddFilter(srvFilter)
	go svr.Serve("tcp", "127.0.0.1:19087")
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { svr.Stop(3 * time.Second) })

	cli := newTestClient("127.0.0.1:19087", "s-bin")
	var clientEndData message.ModuleData
	cli.AddFilter(&moduleDataObserver{onEnd: func(d message.ModuleData) { clientEndData = d }})

	reply := &Reply{}
	ctx := context.Background()
	task := cli.CreateTask("Arith", "Add", &Args{A: 1, B: 1}, reply)

	// inject trace-id the way a begin-filter would, via a wrapping filter:
	cli.AddFilter(&traceIDFilter{})
	if err := task.Start(ctx); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	if srvFilter.seenServerBegin["trace-id"] != "abc123" {
		t.Fatalf("server_begin did not see client-set trace-id: %v", srvFilter.seenServerBegin)
	}
	if clientEndData["server-seen"] != "yes" {
		t.Fatalf("client_end did not see server-set module-data: %v", clientEndData)
	}
}

type traceIDFilter struct{ filter.NopFilter }

func (traceIDFilter) ClientBegin(id filter.CallID, data *message.ModuleData) bool {
	data.Set("trace-id", "abc123")
	return true
}

type moduleDataObserver struct {
	filter.NopFilter
	onEnd func(message.ModuleData)
}

func (o *moduleDataObserver) ClientEnd(id filter.CallID, data *message.ModuleData, status message.Status) {
	o.onEnd(data.Clone())
}
