// Package transport implements the connection layer shared by client and
// server: a single net.Conn carrying framed srpcgo messages, multiplexed
// by correlation id for protocols that support it and by strict FIFO for
// those that don't.
//
// Conn enables multiple concurrent RPC calls over a single TCP connection.
// The key insight, carried over from the teacher's ClientTransport: each
// request gets a unique correlation id (when the adapter requires one),
// and a background goroutine (recvLoop) continuously reads frames and
// routes them to the correct caller via pending channels.
//
//	goroutine-1 ──Send(corr=1)──┐
//	goroutine-2 ──Send(corr=2)──┼──→ single net.Conn ──→ peer
//	goroutine-3 ──Send(corr=3)──┘
//
//	recvLoop:  ←── frame(corr=2) → pending[2] chan ← frame → goroutine-2 wakes up
package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"srpcgo/message"
	"srpcgo/protocol"
)

// ErrClosed is returned to every caller still waiting on a reply once the
// connection breaks.
var ErrClosed = errors.New("transport: connection closed")

// Conn wraps a net.Conn with framing via a protocol.Adapter, a read loop,
// and an idle-timeout keep-alive policy (spec.md §3 "Connection").
type Conn struct {
	conn    net.Conn
	adapter protocol.Adapter
	reader  *bufio.Reader
	maxSize int

	idleTimeout time.Duration // <=0 disables

	corr    uint32 // atomic, next correlation id for adapters that require one
	sending sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan *message.Message // used when adapter.RequiresCorrelation()
	fifo    []chan *message.Message          // used otherwise, strict request/response order

	closed   atomic.Bool
	closeErr error
}

// NewConn wraps conn, starting its background read loop. idleTimeout <= 0
// disables the idle keep-alive deadline.
func NewConn(conn net.Conn, adapter protocol.Adapter, maxSize int, idleTimeout time.Duration) *Conn {
	c := &Conn{
		conn:        conn,
		adapter:     adapter,
		reader:      bufio.NewReader(conn),
		maxSize:     maxSize,
		idleTimeout: idleTimeout,
		pending:     make(map[uint32]chan *message.Message),
	}
	go c.recvLoop()
	return c
}

// Send frames and writes msg, returning a channel that receives exactly one
// reply (or a synthesized error message if the connection breaks first).
//
// Thread safety: the sending mutex ensures a frame's header and body are
// written atomically; without it, concurrent writers would interleave
// bytes from different requests and corrupt the stream (same hazard the
// teacher's ClientTransport.Send documents).
func (c *Conn) Send(msg *message.Message) (<-chan *message.Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	respCh := make(chan *message.Message, 1)

	if c.adapter.RequiresCorrelation() {
		id := atomic.AddUint32(&c.corr, 1)
		msg.Meta.CorrelationID = id
		c.mu.Lock()
		c.pending[id] = respCh
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.fifo = append(c.fifo, respCh)
		c.mu.Unlock()
	}

	frame, err := c.adapter.Frame(msg)
	if err != nil {
		c.forget(msg.Meta.CorrelationID, respCh)
		return nil, err
	}

	c.sending.Lock()
	if c.idleTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.idleTimeout))
	}
	_, err = c.conn.Write(frame)
	c.sending.Unlock()
	if err != nil {
		c.forget(msg.Meta.CorrelationID, respCh)
		return nil, err
	}

	return respCh, nil
}

// Abandon stops waiting for correlated reply corrID, used when a caller's
// overall timeout fires before the reply arrives: without this, the
// pending entry (and its buffered channel) would sit in the map forever.
// A no-op for protocols that don't correlate (RequiresCorrelation false).
func (c *Conn) Abandon(corrID uint32) {
	if !c.adapter.RequiresCorrelation() {
		return
	}
	c.mu.Lock()
	delete(c.pending, corrID)
	c.mu.Unlock()
}

func (c *Conn) forget(corrID uint32, ch chan *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adapter.RequiresCorrelation() {
		delete(c.pending, corrID)
		return
	}
	for i, fc := range c.fifo {
		if fc == ch {
			c.fifo = append(c.fifo[:i], c.fifo[i+1:]...)
			return
		}
	}
}

// recvLoop runs in a dedicated goroutine, continuously reading frames and
// routing them to the correct waiting caller. Reads must stay sequential
// to parse frame boundaries correctly — a single reader per connection,
// same as the teacher's recvLoop.
func (c *Conn) recvLoop() {
	for {
		if c.idleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}
		msg, err := c.adapter.Parse(c.reader, c.maxSize)
		if err != nil {
			c.closeAllPending(err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg *message.Message) {
	var ch chan *message.Message
	c.mu.Lock()
	if c.adapter.RequiresCorrelation() {
		ch = c.pending[msg.Meta.CorrelationID]
		delete(c.pending, msg.Meta.CorrelationID)
	} else if len(c.fifo) > 0 {
		ch = c.fifo[0]
		c.fifo = c.fifo[1:]
	}
	c.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

// closeAllPending runs once the connection breaks (read error or explicit
// Close); it wakes every caller still waiting on a reply with a synthetic
// error message so nobody blocks forever.
func (c *Conn) closeAllPending(err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.closeErr = err
	c.conn.Close()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	fifo := c.fifo
	c.fifo = nil
	c.mu.Unlock()

	errMsg := &message.Message{Meta: &message.Meta{Status: statusForCloseErr(err)}}
	for _, ch := range pending {
		ch <- errMsg
	}
	for _, ch := range fifo {
		ch <- errMsg
	}
}

func statusForCloseErr(err error) message.Status {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return message.StatusResponseTimeout
	}
	return message.StatusResponseParseFailed
}

// Close shuts down the connection and wakes any still-pending callers.
func (c *Conn) Close() error {
	c.closeAllPending(ErrClosed)
	return nil
}

// Closed reports whether the connection has already broken or been closed.
func (c *Conn) Closed() bool { return c.closed.Load() }

// RemoteAddr exposes the peer address, used for logging and for matching
// a resolver.Instance back to the Conn it produced.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
