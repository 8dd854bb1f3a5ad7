package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientSendBuffer = 256
	writeWait        = 10 * time.Second
)

var (
	// ErrTooManyConnections is returned by AddClient when the connection
	// limit has been reached.
	ErrTooManyConnections = errors.New("too many websocket connections")
	// ErrBroadcasterClosed is returned by AddClient after Close.
	ErrBroadcasterClosed = errors.New("broadcaster closed")
)

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func newClient(conn *websocket.Conn, b *Broadcaster) *client {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, clientSendBuffer),
	}
	go c.writePump()
	return c
}

// writePump is the only goroutine writing to conn. It exits when send is
// closed or a write fails, and removes a client whose connection broke.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster mirrors every output line to the connected live tail
// clients. Each line is sent as one text message holding exactly the
// JSON object written to the output stream. Clients that cannot keep up
// are disconnected rather than slowing down the aggregator.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	closed   bool
	logger   *zap.SugaredLogger
}

// NewBroadcaster creates a broadcaster accepting at most maxConns
// clients. Zero means unlimited.
func NewBroadcaster(maxConns int, logger *zap.SugaredLogger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		logger:   logger,
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBroadcasterClosed
	}
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		return nil, ErrTooManyConnections
	}

	c := newClient(conn, b)
	b.clients[c] = true
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c)
}

func (b *Broadcaster) removeLocked(c *client) {
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
}

// Publish queues line for every client without blocking.
func (b *Broadcaster) Publish(line []byte) {
	var slow []*client

	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- line:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	b.mu.Lock()
	for _, c := range slow {
		b.removeLocked(c)
	}
	b.mu.Unlock()
	b.logger.Warnf("Disconnected %d live tail clients that could not keep up", len(slow))
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for c := range b.clients {
		b.removeLocked(c)
	}
}
