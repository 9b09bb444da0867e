// Package ws pushes engine events to subscribed websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/podium/internal/domain/events"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

const (
	defaultSendBuffer = 64
	writeTimeout      = 5 * time.Second
)

// Broadcaster fans engine events out to websocket subscribers. It
// implements events.Sink; Emit never blocks the engine, slow clients
// are disconnected instead.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	sendBuffer int
	logger     logger.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// Option applies a configuration option to the Broadcaster.
type Option func(*Broadcaster)

// WithSendBuffer sets the per-client outbound buffer. A client whose
// buffer fills up is dropped.
func WithSendBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.sendBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the broadcaster.
func WithLogger(l logger.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBroadcaster creates a Broadcaster ready to accept subscribers.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		sendBuffer: defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("ws")
	}
	return b
}

// HandleWS handles GET /ws requests by upgrading the connection and
// streaming events until the client goes away.
func (b *Broadcaster) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, b.sendBuffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
		return
	}
	b.clients[c] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	metrics.UpdateWSClients(count)

	go b.writeLoop(c)
	b.readLoop(r.Context(), c)
}

// Emit implements events.Sink. The event is serialized once and copied
// into every client's buffer.
func (b *Broadcaster) Emit(ctx context.Context, e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Error(ctx, "marshal event", logger.Error(err))
		return
	}

	b.mu.Lock()
	var dropped []*client
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(b.clients, c)
	}
	count := len(b.clients)
	b.mu.Unlock()

	for _, c := range dropped {
		metrics.RecordWSDropped()
		c.close()
	}
	if len(dropped) > 0 {
		metrics.UpdateWSClients(count)
		b.logger.Warn(ctx, "dropped slow websocket clients", logger.Int("count", len(dropped)))
	}
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()

	for _, c := range clients {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
		c.close()
	}
	metrics.UpdateWSClients(0)
	return nil
}

// writeLoop drains the client's buffer onto the wire.
func (b *Broadcaster) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.remove(c)
			return
		}
	}
}

// readLoop consumes inbound frames so pings and close handshakes are
// processed. Subscribers are not expected to send anything.
func (b *Broadcaster) readLoop(ctx context.Context, c *client) {
	defer b.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			b.logger.Debug(ctx, "websocket closed", logger.Error(err))
			return
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	_, present := b.clients[c]
	delete(b.clients, c)
	count := len(b.clients)
	b.mu.Unlock()

	if present {
		metrics.UpdateWSClients(count)
	}
	c.close()
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
