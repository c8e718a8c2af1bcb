// Package server implements the RPC server facade: service registration,
// the filter chain, per-connection parallel request processing, and
// graceful shutdown — generalized from the teacher's reflection-dispatch
// server onto the protocol/codec/compress pipeline and the five wire
// protocols.
//
// Request processing pipeline:
//
//	Accept conn -> handleConn (single goroutine parses frames)
//	  -> for each request: go handleRequest (parallel processing;
//	     in order for protocols without correlation)
//	    -> decompress -> filter chain -> lookup -> deserialize -> handler
//	    -> serialize -> compress -> write response
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"srpcgo/codec"
	"srpcgo/compress"
	"srpcgo/filter"
	"srpcgo/message"
	"srpcgo/protocol"
	"srpcgo/resolver"
	"srpcgo/task"
)

// Options configures a Server's pipeline. MaxFrameSize and
// CompressThreshold default to the package-level values from protocol and
// compress when left zero.
type Options struct {
	Protocol            string // adapter name: "s-bin", "s-http", "b-bin", "t-bin", "tr-bin"
	MaxFrameSize        int
	CompressThreshold   int
	IdleTimeout         time.Duration
	Log                 *zap.Logger
	Advertiser          resolver.Advertiser // optional: registers services on Serve
	AdvertiseAddr       string
	AdvertiseTTLSeconds int64
}

// Server is the RPC server that registers services and handles incoming
// requests across any one of the five protocol adapters.
type Server struct {
	opts     Options
	adapter  protocol.Adapter
	services map[string]*service

	filters filter.Chain

	listener net.Listener
	wg       sync.WaitGroup
	shutdown atomic.Bool

	log *zap.Logger
}

// NewServer builds a Server using opts.Protocol's adapter. Panics at
// construction time (not at Serve time) if the protocol name is unknown,
// matching the fail-fast posture spec.md §7 gives misconfiguration.
func NewServer(opts Options) *Server {
	adapter, err := protocol.New(opts.Protocol)
	if err != nil {
		panic(err)
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
	return &Server{
		opts:     opts,
		adapter:  adapter,
		services: make(map[string]*service),
		log:      log,
	}
}

// AddService registers rcvr's RPC-compatible methods under its struct
// name. Duplicate registration is a returned error, not a panic — callers
// can recover, matching Go idiom over the source's process-abort
// behavior (spec.md §3 "Method identity").
func (s *Server) AddService(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	if _, exists := s.services[svc.name]; exists {
		return fmt.Errorf("server: service %q already registered", svc.name)
	}
	s.services[svc.name] = svc
	return nil
}

// AddFilter registers a filter; filters run in the order added, for both
// ServerBegin and ServerEnd.
func (s *Server) AddFilter(f filter.Filter) {
	s.filters.Add(f)
}

// Serve listens on network/address, optionally advertises every
// registered service via opts.Advertiser, then runs the accept loop.
func (s *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = listener

	if s.opts.Advertiser != nil {
		for name := range s.services {
			inst := resolver.Instance{Addr: s.opts.AdvertiseAddr}
			if err := s.opts.Advertiser.Register(name, inst, s.opts.AdvertiseTTLSeconds); err != nil {
				s.log.Warn("advertise failed", zap.String("service", name), zap.Error(err))
			}
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn parses frames from one connection in a single goroutine
// (reads must be sequential to track frame boundaries) and dispatches
// each request to its own goroutine for parallel processing, matching
// spec.md §5 "Parallel worker threads process tasks". For adapters without
// correlation (S-http) requests are handled one at a time, so replies go
// out in request order.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	writeMu := &sync.Mutex{}

	for {
		if s.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		msg, err := s.adapter.Parse(reader, s.opts.MaxFrameSize)
		if err != nil {
			return
		}
		if !s.adapter.RequiresCorrelation() {
			// The peer matches uncorrelated replies in request order.
			s.handleRequest(conn, writeMu, msg)
			continue
		}
		go s.handleRequest(conn, writeMu, msg)
	}
}

// handleRequest runs one request through the full pipeline: decompress,
// filter chain, lookup, deserialize, dispatch, serialize, compress, write.
func (s *Server) handleRequest(conn net.Conn, writeMu *sync.Mutex, req *message.Message) {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx := task.NewCallContext(req.Meta)
	reply := s.dispatch(ctx, req)

	frame, err := s.adapter.Frame(reply)
	if err != nil {
		s.log.Warn("frame reply failed", zap.Error(err))
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if s.opts.IdleTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.opts.IdleTimeout))
	}
	if _, err := conn.Write(frame); err != nil {
		s.log.Warn("write reply failed", zap.Error(err))
	}
}

// dispatch decodes, runs the filter chain, invokes the handler, and
// re-encodes the reply — isolated by a deferred recover so a handler
// panic completes the call with undefined_error instead of taking the
// server down (spec.md §7 "User: handler exception/panic... isolates the
// handler, completes the call with undefined-error, keeps the server
// alive").
func (s *Server) dispatch(ctx *task.CallContext, req *message.Message) (reply *message.Message) {
	meta := req.Meta
	replyMeta := &message.Meta{
		Service:       meta.Service,
		Method:        meta.Method,
		IsRequest:     false,
		CorrelationID: meta.CorrelationID,
		DataType:      meta.DataType,
		CompressType:  meta.CompressType,
	}

	defer func() {
		if r := recover(); r != nil {
			replyMeta.Status = message.StatusUndefinedError
			replyMeta.StatusErr = fmt.Sprintf("panic: %v", r)
			reply = &message.Message{Meta: replyMeta}
		}
	}()

	payload, err := compress.Reverse(meta.CompressType, req.Payload, 0)
	if err != nil {
		replyMeta.Status = message.StatusResponseDecompressFailed
		return &message.Message{Meta: replyMeta}
	}

	ser, err := codec.Get(meta.DataType)
	if err != nil {
		replyMeta.Status = message.StatusMetaError
		return &message.Message{Meta: replyMeta}
	}

	filters := s.filters.Snapshot()
	if !filter.RunServerBegin(filters, ctx.ID, ctx.ModuleData()) {
		replyMeta.Status = message.StatusMetaError
		replyMeta.ModuleData = *ctx.ModuleData()
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}

	svc, ok := s.services[meta.Service]
	if !ok {
		replyMeta.Status = message.StatusServiceNotFound
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}
	stub, ok := svc.methods[meta.Method]
	if !ok {
		replyMeta.Status = message.StatusMethodNotFound
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}

	reqVal := stub.NewRequest()
	if err := ser.Unmarshal(payload, reqVal); err != nil {
		replyMeta.Status = message.StatusResponseDecodeFailed
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}
	respVal := stub.NewResponse()

	handlerErr := stub.Handler(ctx, reqVal, respVal)
	ctx.Series.Run(context.Background())

	replyMeta.ModuleData = *ctx.ModuleData()
	if handlerErr != nil {
		replyMeta.Status = message.AsStatus(handlerErr)
		if replyMeta.Status == message.StatusUndefinedError {
			replyMeta.StatusErr = handlerErr.Error()
		}
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}

	body, err := ser.Marshal(respVal)
	if err != nil {
		replyMeta.Status = message.StatusResponseDecodeFailed
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}

	compressed, ctype, err := compress.Apply(meta.CompressType, body, s.opts.CompressThreshold)
	if err != nil {
		replyMeta.Status = message.StatusRequestCompressFailed
		filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
		return &message.Message{Meta: replyMeta}
	}
	replyMeta.CompressType = ctype
	replyMeta.Status = message.StatusOK

	filter.RunServerEnd(filters, ctx.ID, ctx.ModuleData(), replyMeta.Status)
	return &message.Message{Meta: replyMeta, Payload: compressed}
}

// Stop performs graceful shutdown: deregisters every advertised service,
// stops accepting new connections, then waits up to timeout for in-flight
// requests to finish.
func (s *Server) Stop(timeout time.Duration) error {
	if s.opts.Advertiser != nil {
		for name := range s.services {
			s.opts.Advertiser.Deregister(name, s.opts.AdvertiseAddr)
		}
	}

	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for in-flight requests")
	}
}
