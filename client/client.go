// Package client implements the RPC client: address resolution, a shared
// multiplexed transport pool, and the four call forms spec.md §6 expects
// (sync, async-callback, async-future, create-task) — generalized from
// the teacher's single Call method and ad hoc getTransport round-robin
// map onto the protocol/codec/compress/filter pipeline.
//
// Call flow:
//
//	Call(ctx, "Arith", "Add", args, reply)
//	  -> resolve address (fixed addr, or Resolver+Balancer)
//	  -> pool.Get(addr)       -> shared, multiplexed transport.Conn
//	  -> filter chain (client_begin)
//	  -> serialize -> compress -> Conn.Send()
//	  -> wait on reply channel, racing the overall timeout
//	  -> decompress -> deserialize -> filter chain (client_end)
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"srpcgo/codec"
	"srpcgo/compress"
	"srpcgo/filter"
	"srpcgo/message"
	"srpcgo/protocol"
	"srpcgo/resolver"
	"srpcgo/task"
	"srpcgo/transport"
)

// Options configures a Client's pipeline and per-call policy knobs
// (spec.md §4.4's Client construction params: max-connections,
// response-timeout, keep-alive-timeout, retry-max, data-type/compress-type
// defaults).
type Options struct {
	Protocol          string // adapter name
	PoolSize          int    // connections per address, default 1
	MaxFrameSize      int
	CompressThreshold int
	IdleTimeout       time.Duration // connection keep-alive idle timeout, <=0 disables
	OverallTimeout    time.Duration // per-call deadline, <=0 disables
	RetryMax          int           // count-bounded retry for idempotent failure kinds
	DataType          message.DataType
	CompressType      message.CompressType
	Resolver          resolver.Resolver // optional; nil means Addr is used directly
	Balancer          resolver.Balancer // required if Resolver is set
	Addr              string            // fixed address, used when Resolver is nil
	Log               *zap.Logger
}

// Client is the RPC client facade, parameterized by one protocol.Adapter
// chosen at construction (spec.md's "templated client classes" design
// note — one struct, not five duplicated client types).
type Client struct {
	opts    Options
	adapter protocol.Adapter
	pool    *transport.Pool
	filters filter.Chain
	log     *zap.Logger
}

// NewClient builds a Client. Panics at construction time if opts.Protocol
// names an unregistered adapter, or if a Resolver is set without a
// Balancer.
func NewClient(opts Options) *Client {
	adapter, err := protocol.New(opts.Protocol)
	if err != nil {
		panic(err)
	}
	if opts.Resolver != nil && opts.Balancer == nil {
		panic("client: Resolver set without a Balancer")
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 1
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = compress.DefaultThreshold
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	dial := func(addr string) (net.Conn, error) { return net.Dial("tcp", addr) }
	pool := transport.NewPool(dial, adapter, opts.PoolSize, opts.MaxFrameSize, opts.IdleTimeout)

	return &Client{opts: opts, adapter: adapter, pool: pool, log: log}
}

// AddFilter registers a filter; filters run in the order added, for both
// ClientBegin and ClientEnd.
func (c *Client) AddFilter(f filter.Filter) {
	c.filters.Add(f)
}

// Call performs a synchronous RPC call: resolve, send, wait, decode.
func (c *Client) Call(ctx context.Context, service, method string, req, resp any) error {
	return c.invoke(ctx, service, method, req, resp)
}

// Future is the handle an async-future call returns; Wait blocks until
// the reply arrives (or ctx/overall-timeout fires) and reports the call's
// outcome, mirroring spec.md §6's "async-future" client form.
type Future struct {
	done chan error
}

// Wait blocks for the call to complete and returns its error.
func (f *Future) Wait() error { return <-f.done }

// Go starts an asynchronous call and returns immediately with a Future;
// resp is filled in place once Wait returns nil.
func (c *Client) Go(ctx context.Context, service, method string, req, resp any) *Future {
	f := &Future{done: make(chan error, 1)}
	go func() { f.done <- c.invoke(ctx, service, method, req, resp) }()
	return f
}

// CallAsync performs the call in a new goroutine and invokes cb with the
// outcome once it completes — spec.md §6's "async-callback" client form.
func (c *Client) CallAsync(ctx context.Context, service, method string, req, resp any, cb func(error)) {
	go cb(c.invoke(ctx, service, method, req, resp))
}

// Task is the handle spec.md §6's "create-task" client form returns: a
// call fully constructed but not yet started, so a caller may inspect or
// abandon it (freeing it without any I/O) before calling Start.
type Task struct {
	client  *Client
	service string
	method  string
	req     any
	resp    any
}

// CreateTask builds a Task without starting it. Discarding a Task without
// calling Start frees it without performing any I/O (spec.md §4.4 "A user
// may abandon a client task before start(), doing so frees the task
// without I/O").
func (c *Client) CreateTask(service, method string, req, resp any) *Task {
	return &Task{client: c, service: service, method: method, req: req, resp: resp}
}

// Start runs the task synchronously, returning its outcome.
func (t *Task) Start(ctx context.Context) error {
	return t.client.invoke(ctx, t.service, t.method, t.req, t.resp)
}

// invoke is the shared core every call form above funnels through.
func (c *Client) invoke(ctx context.Context, service, method string, req, resp any) error {
	if c.opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.OverallTimeout)
		defer cancel()
	}

	var lastErr error
	tries := c.opts.RetryMax + 1
	for attempt := 0; attempt < tries; attempt++ {
		err := c.attempt(ctx, service, method, req, resp)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		default:
		}
		c.log.Info("retrying call",
			zap.String("service", service),
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return lastErr
}

// retryable reports whether a failure kind spec.md §7 allows the task
// layer to restart: connect failure or a timeout before any bytes were
// written. Any write-after-partial-data failure is terminal.
func retryable(err error) bool {
	status := message.AsStatus(err)
	return status == message.StatusRequestSendFailed
}

func (c *Client) attempt(ctx context.Context, service, method string, req, resp any) error {
	meta := &message.Meta{
		Service:      service,
		Method:       method,
		IsRequest:    true,
		DataType:     c.opts.DataType,
		CompressType: c.opts.CompressType,
	}
	ctxCall := task.NewCallContext(meta)

	filters := c.filters.Snapshot()
	if !filter.RunClientBegin(filters, ctxCall.ID, ctxCall.ModuleData()) {
		err := message.NewStatusError(message.StatusMetaError, nil)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	ser, err := codec.Get(meta.DataType)
	if err != nil {
		err = message.NewStatusError(message.StatusRequestEncodeFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}
	body, err := ser.Marshal(req)
	if err != nil {
		err = message.NewStatusError(message.StatusRequestEncodeFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	compressed, ctype, err := compress.Apply(meta.CompressType, body, c.opts.CompressThreshold)
	if err != nil {
		err = message.NewStatusError(message.StatusRequestCompressFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}
	meta.CompressType = ctype
	meta.ModuleData = *ctxCall.ModuleData()

	addr, err := c.pickAddr(service)
	if err != nil {
		err = message.NewStatusError(message.StatusRequestSendFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	conn, err := c.pool.Get(addr)
	if err != nil {
		err = message.NewStatusError(message.StatusRequestSendFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	respCh, err := conn.Send(&message.Message{Meta: meta, Payload: compressed})
	if err != nil {
		err = message.NewStatusError(message.StatusRequestSendFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	var replyMsg *message.Message
	select {
	case replyMsg = <-respCh:
	case <-ctx.Done():
		ctxCall.Series.Cancel()
		conn.Abandon(meta.CorrelationID)
		err := message.NewStatusError(message.StatusResponseTimeout, ctx.Err())
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	*ctxCall.ModuleData() = replyMsg.Meta.ModuleData
	status := replyMsg.Meta.Status
	if status != message.StatusOK {
		err := message.NewStatusError(status, fmt.Errorf("%s", replyMsg.Meta.StatusErr))
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), status)
		return err
	}

	payload, err := compress.Reverse(replyMsg.Meta.CompressType, replyMsg.Payload, 0)
	if err != nil {
		err = message.NewStatusError(message.StatusResponseDecompressFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	replySer, err := codec.Get(meta.DataType)
	if err != nil {
		err = message.NewStatusError(message.StatusResponseDecodeFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}
	if err := replySer.Unmarshal(payload, resp); err != nil {
		err = message.NewStatusError(message.StatusResponseDecodeFailed, err)
		filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.AsStatus(err))
		return err
	}

	filter.RunClientEnd(filters, ctxCall.ID, ctxCall.ModuleData(), message.StatusOK)
	return nil
}

func (c *Client) pickAddr(service string) (string, error) {
	if c.opts.Resolver == nil {
		if c.opts.Addr == "" {
			return "", fmt.Errorf("client: no Resolver and no fixed Addr configured")
		}
		return c.opts.Addr, nil
	}
	instances, err := c.opts.Resolver.Resolve(service)
	if err != nil {
		return "", err
	}
	inst, err := c.opts.Balancer.Pick(instances)
	if err != nil {
		return "", err
	}
	return inst.Addr, nil
}

// Close tears down every pooled connection.
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}
