// Copyright 2026 The Originserver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package httpserver

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
)

// readBufferSize bounds a single conn.Read call, per spec.md §4.D's
// "recv up to 4 KiB into the buffer".
const readBufferSize = 4096

// pendingPair is one queued (Request, Response) awaiting delivery, per
// spec.md §3's Connection FIFO.
type pendingPair struct {
	req  *Request
	resp *Response
}

// EvaluateTimeouts is a pure function of the four optional timestamps
// and the four configured thresholds, per spec.md §4.D/§8 property 7.
// Any nil timestamp is treated as "timer not running". It is exported
// and side-effect-free so it can be driven directly by a fake clock in
// tests.
func EvaluateTimeouts(now time.Time, cfg config.Timeouts, lastReceived, requestHandleStart, responseHandleStart, responseDeliveryStart *time.Time) bool {
	if lastReceived != nil && now.Sub(*lastReceived) >= cfg.Idle {
		return true
	}
	if requestHandleStart != nil && now.Sub(*requestHandleStart) >= cfg.Request {
		return true
	}
	if responseHandleStart != nil && now.Sub(*responseHandleStart) >= cfg.ResponseHandling {
		return true
	}
	if responseDeliveryStart != nil && now.Sub(*responseDeliveryStart) >= cfg.ResponseDelivery {
		return true
	}
	return false
}

// heartbeat governs how often a Connection re-checks its timeouts while
// otherwise idle; it is the Go-idiomatic stand-in for spec.md §4.I's
// shared 100ms poll tick, scoped per-connection instead of globally.
const heartbeat = 50 * time.Millisecond

// Connection owns one client socket end to end: input buffering,
// incremental parsing, the request/response FIFO, and the four
// independent timeouts, per spec.md §3/§4.D (component D).
//
// The four timer fields are written from the Serve goroutine (on every
// read/write cycle) and also from a CGI dispatch's OnStateChange
// observer, which fires on the CGI worker's own goroutine as it
// finalizes a response (cgi.go's runCGIWorker). timerMu guards them
// against that cross-goroutine access.
type Connection struct {
	id     string
	conn   net.Conn
	cfg    *config.ServerConfig
	router *Router
	logger *zap.Logger

	inputBuf bytes.Buffer
	current  *Request
	queue    []pendingPair

	timerMu               sync.Mutex
	lastReceived          *time.Time
	requestHandleStart    *time.Time
	responseHandleStart   *time.Time
	responseDeliveryStart *time.Time

	notify chan struct{}

	closed   bool
	closeMu  sync.Mutex
	onClosed func(*Connection)
}

// NewConnection wraps an accepted client connection. The idle timer
// starts at accept time, so a client that never sends a byte still
// times out.
func NewConnection(id string, conn net.Conn, cfg *config.ServerConfig, router *Router, logger *zap.Logger, onClosed func(*Connection)) *Connection {
	accepted := time.Now()
	c := &Connection{
		id:       id,
		conn:     conn,
		cfg:      cfg,
		router:   router,
		logger:   logger,
		current:  NewRequest(),
		notify:   make(chan struct{}, 1),
		onClosed: onClosed,
	}
	c.lastReceived = &accepted
	return c
}

// wake signals the serve loop to re-check write readiness without
// blocking if a signal is already pending.
func (c *Connection) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// setResponseHandleStart updates the response-handling timer; called
// from both the Serve goroutine (synchronous handlers) and a CGI
// worker goroutine (via the Response's OnStateChange observer).
func (c *Connection) setResponseHandleStart(t *time.Time) {
	c.timerMu.Lock()
	c.responseHandleStart = t
	c.timerMu.Unlock()
}

// snapshotTimers returns a consistent read of all four timers, guarded
// against concurrent writes from a CGI worker goroutine.
func (c *Connection) snapshotTimers() (lastReceived, requestHandleStart, responseHandleStart, responseDeliveryStart *time.Time) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return c.lastReceived, c.requestHandleStart, c.responseHandleStart, c.responseDeliveryStart
}

type readEvent struct {
	data []byte
	err  error
}

// Serve drives this connection's entire lifetime: reading, parsing,
// dispatching, and delivering responses in order, until the connection
// closes, times out, or ctx is canceled. It is the goroutine-per-
// connection analogue of spec.md §4.D's fd-readiness callbacks, per
// SPEC_FULL.md §1's adaptation note.
func (c *Connection) Serve(ctx context.Context) {
	defer c.close()

	reads := make(chan readEvent, 4)
	go c.readLoop(reads)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		c.tryWrite()
		if c.timedOut(time.Now()) {
			c.logger.Debug("connection timed out", zap.String("conn", c.id))
			c.sendTimeoutResponseIfPossible()
			return
		}

		select {
		case <-ctx.Done():
			return
		case ev := <-reads:
			if ev.err != nil {
				return
			}
			c.onBytesRead(ev.data)
		case <-c.notify:
		case <-ticker.C:
		}
	}
}

func (c *Connection) readLoop(out chan<- readEvent) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			out <- readEvent{data: cp}
		}
		if err != nil {
			out <- readEvent{err: err}
			return
		}
	}
}

// onBytesRead implements spec.md §4.D's Readable bullet.
func (c *Connection) onBytesRead(data []byte) {
	now := time.Now()
	c.timerMu.Lock()
	c.lastReceived = &now
	if c.requestHandleStart == nil {
		startNow := time.Now()
		c.requestHandleStart = &startNow
	}
	c.timerMu.Unlock()

	if len(c.queue) > 0 {
		// back-pressure: a response is still awaiting delivery, so don't
		// overlap parsing of the next request yet. Bytes accumulate in
		// inputBuf for the next cycle.
		c.inputBuf.Write(data)
		return
	}

	c.inputBuf.Write(data)
	c.current.Consume(&c.inputBuf, c.cfg.ClientMaxBodySize)

	if c.current.State == StateComplete || c.current.State == StateBad {
		c.timerMu.Lock()
		c.requestHandleStart = nil
		c.timerMu.Unlock()
		c.finishRequest()
	}
}

// finishRequest builds the Response shell for a completed (or bad)
// request, dispatches it to the Router, and enqueues the pair, per
// spec.md §4.D.
func (c *Connection) finishRequest() {
	req := c.current
	resp := NewResponse()
	resp.OnStateChange(func(s ResponseState) {
		switch s {
		case StatusInProgress:
			now := time.Now()
			c.setResponseHandleStart(&now)
		case StatusReady:
			c.setResponseHandleStart(nil)
			c.wake()
		}
	})
	resp.Begin()

	c.queue = append(c.queue, pendingPair{req: req, resp: resp})
	c.current = NewRequest()

	c.router.Route(req, resp, c.wake)
}

// tryWrite implements spec.md §4.D's Writable bullet: only the head of
// the FIFO is ever sent, in order, and only once it is READY.
func (c *Connection) tryWrite() {
	for len(c.queue) > 0 {
		head := c.queue[0]
		if head.resp.State() != StatusReady {
			return
		}
		c.timerMu.Lock()
		if c.responseDeliveryStart == nil {
			now := time.Now()
			c.responseDeliveryStart = &now
		}
		c.timerMu.Unlock()

		done, err := head.resp.send(c.conn)
		if err != nil {
			c.queue = c.queue[1:]
			c.timerMu.Lock()
			c.responseDeliveryStart = nil
			c.timerMu.Unlock()
			return
		}
		if !done {
			return
		}

		c.timerMu.Lock()
		c.responseDeliveryStart = nil
		c.timerMu.Unlock()
		c.queue = c.queue[1:]

		if c.shouldCloseAfter(head.req, head.resp) {
			c.close()
			return
		}

		// a response was just fully delivered and bytes may already be
		// buffered for the next request; resume parsing immediately.
		if len(c.queue) == 0 && c.inputBuf.Len() > 0 {
			c.current.Consume(&c.inputBuf, c.cfg.ClientMaxBodySize)
			if c.current.State == StateComplete || c.current.State == StateBad {
				c.finishRequest()
			}
		}
	}
}

// shouldCloseAfter decides connection closure per spec.md §4.D:
// Connection: close on the request, or a terminal status code.
func (c *Connection) shouldCloseAfter(req *Request, resp *Response) bool {
	if req.CloseRequested {
		return true
	}
	switch resp.Status {
	case 400, 408, 500, 503, 504:
		return true
	}
	return false
}

func (c *Connection) timedOut(now time.Time) bool {
	lastReceived, requestHandleStart, responseHandleStart, responseDeliveryStart := c.snapshotTimers()
	return EvaluateTimeouts(now, c.cfg.Timeouts, lastReceived, requestHandleStart, responseHandleStart, responseDeliveryStart)
}

// sendTimeoutResponseIfPossible emits a 408 when a timer has tripped and
// no response is already queued/ready, per spec.md §7 ("408 if we can
// still respond, otherwise drop").
func (c *Connection) sendTimeoutResponseIfPossible() {
	if len(c.queue) > 0 {
		return
	}
	resp := NewResponse()
	resp.Begin()
	resp.SetText(408, "Request Timeout")
	resp.Build()
	_, _ = resp.send(c.conn)
}

func (c *Connection) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
	if c.onClosed != nil {
		c.onClosed(c)
	}
}
