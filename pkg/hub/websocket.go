package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// invocationFrame is the wire shape of a named hub call.
type invocationFrame struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	Args   []any  `json:"args"`
}

// completionFrame is the wire shape of a hub reply, correlated by id.
type completionFrame struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// WebsocketTransport dials the hub over a websocket and speaks the JSON
// invocation/completion protocol. The session token is presented as the
// access_token query parameter during the handshake.
type WebsocketTransport struct {
	URL              string
	HandshakeTimeout time.Duration
	KeepAlive        time.Duration // client ping interval
	Liveness         time.Duration // read deadline; roughly 2x the server keep-alive
	WriteTimeout     time.Duration
	Logger           *slog.Logger
}

// NewWebsocketTransport creates a transport with default timings: 15s
// handshake, 15s pings and a 30s liveness deadline so a silently dead
// connection is detected rather than hung indefinitely.
func NewWebsocketTransport(rawURL string) *WebsocketTransport {
	return &WebsocketTransport{
		URL:              rawURL,
		HandshakeTimeout: 15 * time.Second,
		KeepAlive:        15 * time.Second,
		Liveness:         30 * time.Second,
		WriteTimeout:     10 * time.Second,
		Logger:           slog.Default(),
	}
}

// Dial performs the websocket handshake with the given token and starts the
// connection's read and keep-alive pumps.
func (t *WebsocketTransport) Dial(ctx context.Context, token string) (Conn, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return nil, fmt.Errorf("hub: invalid hub url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	dialer := &websocket.Dialer{
		HandshakeTimeout: t.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake status %d: %v", ErrDialFailed, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	c := &wsConn{
		ws:           ws,
		log:          t.Logger,
		keepAlive:    t.KeepAlive,
		liveness:     t.Liveness,
		writeTimeout: t.WriteTimeout,
		pending:      make(map[string]chan completionFrame),
		done:         make(chan struct{}),
	}

	_ = ws.SetReadDeadline(time.Now().Add(c.liveness))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.liveness))
	})

	go c.readPump()
	go c.pingPump()

	return c, nil
}

type wsConn struct {
	ws           *websocket.Conn
	log          *slog.Logger
	keepAlive    time.Duration
	liveness     time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan completionFrame

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

func (c *wsConn) Invoke(ctx context.Context, target string, args []any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	frame := invocationFrame{
		ID:     uuid.NewString(),
		Target: target,
		Args:   args,
	}

	ch := make(chan completionFrame, 1)
	c.pendingMu.Lock()
	c.pending[frame.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, frame.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.writeJSON(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	select {
	case completion, ok := <-ch:
		if !ok {
			// Channel closed by shutdown while we were waiting.
			return nil, ErrConnectionClosed
		}
		if completion.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvocationFailed, completion.Error)
		}
		return completion.Result, nil
	case <-c.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

// Close tears the connection down cleanly; Err reports nil afterwards.
func (c *wsConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *wsConn) Done() <-chan struct{} { return c.done }

func (c *wsConn) Err() error { return c.err }

func (c *wsConn) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.err = reason
		close(c.done)
		_ = c.ws.Close()

		// Unblock every in-flight invocation.
		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	})
}

// readPump reads completion frames and routes them to waiting invocations.
// Any read error, including the liveness deadline firing, kills the
// connection.
func (c *wsConn) readPump() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.liveness))

		var completion completionFrame
		if err := json.Unmarshal(data, &completion); err != nil {
			c.log.Warn("discarding malformed hub frame", slog.Any("error", err))
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[completion.ID]
		if ok {
			delete(c.pending, completion.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- completion
		}
	}
}

// pingPump keeps the connection alive; the server answers pings with pongs,
// which extend the read deadline via the pong handler.
func (c *wsConn) pingPump() {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.shutdown(fmt.Errorf("%w: ping failed: %v", ErrConnectionClosed, err))
				return
			}
		}
	}
}
