// Package transport maintains the persistent websocket connection to a
// Cowork session server. It frames messages as JSON text frames, delivers
// inbound frames through a callback in arrival order, and optionally
// redials with exponential backoff when the connection drops.
//
// The transport makes no ordering promises beyond what the websocket gives
// it: frames are handed to OnEvent one at a time from a single reader
// goroutine, in the order they were read.
package transport

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mweinbach/cowork/logger"
)

// WriteTimeout bounds a single frame write so a stalled server can't block
// callers of Send indefinitely.
const WriteTimeout = 10 * time.Second

// Status is the connection lifecycle state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Options configures a Conn.
type Options struct {
	// URL is the ws:// or wss:// session endpoint.
	URL string

	// OnEvent is invoked once per inbound JSON frame, from a single
	// goroutine. Required.
	OnEvent func(raw []byte)

	// OnClose is invoked when the connection is lost and (if reconnect is
	// enabled) before each redial attempt begins. Optional.
	OnClose func(err error)

	// OnStatus is invoked on every status transition. Optional.
	OnStatus func(s Status)

	// Reconnect enables automatic redialing with exponential backoff.
	Reconnect    bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// Log overrides the default component logger. Optional.
	Log *slog.Logger
}

// Conn is a persistent connection to one session endpoint.
type Conn struct {
	opts Options
	log  *slog.Logger

	mu     sync.Mutex // guards ws, status, closed
	ws     *websocket.Conn
	status Status
	closed bool

	wg sync.WaitGroup
}

// Dial connects to the session endpoint and starts the reader. The first
// connection attempt is synchronous: if it fails and reconnect is disabled,
// the error is returned; with reconnect enabled the Conn is returned and
// keeps retrying in the background.
func Dial(opts Options) (*Conn, error) {
	log := opts.Log
	if log == nil {
		log = logger.WithComponent("transport")
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = opts.ReconnectMin
	}

	c := &Conn{opts: opts, log: log, status: StatusConnecting}
	c.notifyStatus(StatusConnecting)

	ws, err := c.dial()
	if err != nil {
		if !opts.Reconnect {
			c.setStatus(StatusDisconnected)
			return nil, err
		}
		c.log.Warn("initial dial failed, will retry", "error", err)
		c.wg.Add(1)
		go c.redialLoop()
		return c, nil
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	c.wg.Add(1)
	go c.readLoop(ws)
	return c, nil
}

func (c *Conn) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(c.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Send marshals v and writes it as a single text frame. Returns false when
// the connection is down or the write fails.
func (c *Conn) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("failed to marshal outbound message", "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.closed {
		return false
	}

	c.ws.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warn("write failed", "error", err)
		return false
	}
	return true
}

// Status returns the current connection status.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close shuts the connection down and stops any reconnect loop. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	var err error
	if ws != nil {
		err = ws.Close()
	}
	c.wg.Wait()
	c.setStatus(StatusDisconnected)
	return err
}

// readLoop delivers frames until the connection errors, then hands off to
// the redial loop when reconnect is enabled.
func (c *Conn) readLoop(ws *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.ws = nil
			c.mu.Unlock()

			if closed {
				return
			}

			c.log.Warn("connection lost", "error", err)
			c.setStatus(StatusDisconnected)
			if c.opts.OnClose != nil {
				c.opts.OnClose(err)
			}

			if c.opts.Reconnect {
				c.wg.Add(1)
				go c.redialLoop()
			}
			return
		}

		if c.opts.OnEvent != nil {
			c.opts.OnEvent(data)
		}
	}
}

// redialLoop retries the dial with jittered exponential backoff until it
// succeeds or the Conn is closed.
func (c *Conn) redialLoop() {
	defer c.wg.Done()

	backoff := c.opts.ReconnectMin
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		c.setStatus(StatusConnecting)
		ws, err := c.dial()
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				ws.Close()
				return
			}
			c.ws = ws
			c.mu.Unlock()
			c.setStatus(StatusConnected)

			c.wg.Add(1)
			go c.readLoop(ws)
			return
		}

		c.log.Debug("redial failed", "error", err, "backoff", backoff)
		// Jitter avoids thundering herds when many clients share a server.
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		time.Sleep(sleep)

		backoff *= 2
		if backoff > c.opts.ReconnectMax {
			backoff = c.opts.ReconnectMax
		}
	}
}

func (c *Conn) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()
	if changed {
		c.notifyStatus(s)
	}
}

func (c *Conn) notifyStatus(s Status) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}
