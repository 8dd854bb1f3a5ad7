package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second

	tokenHeader = "X-Hostwatch-Token"
)

// WSClient manages the WebSocket connection to the collector's live tail.
type WSClient struct {
	url   string
	token string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises pings
	conn    *websocket.Conn
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSDialErrorMsg reports a failed connection attempt; Listen keeps retrying.
type WSDialErrorMsg struct {
	Err   error
	Retry time.Duration
}

// WSEventMsg delivers one telemetry record.
type WSEventMsg struct{ Event Event }

// WSDecodeErrorMsg reports a message that is not a telemetry record.
type WSDecodeErrorMsg struct{ Err error }

// Listen returns a Bubble Tea command that connects once. On failure it
// waits out the backoff delay and reports WSDialErrorMsg; the caller
// calls Listen again.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return c.listen(ctx, reconnectBaseDelay)
}

// Retry is Listen with the delay following a WSDialErrorMsg.
func (c *WSClient) Retry(ctx context.Context, last time.Duration) tea.Cmd {
	return c.listen(ctx, min(last*2, reconnectMaxDelay))
}

func (c *WSClient) listen(ctx context.Context, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		if ctx.Err() != nil {
			return nil
		}

		header := http.Header{}
		if c.token != "" {
			header.Set(tokenHeader, c.token)
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			return WSDialErrorMsg{Err: err, Retry: delay}
		}

		// Cancel any previous ping goroutine.
		c.mu.Lock()
		if c.pingCtx != nil {
			c.pingCtx()
		}
		pingCtx, pingCancel := context.WithCancel(ctx)
		c.conn = conn
		c.pingCtx = pingCancel
		c.mu.Unlock()

		// Start a single ping ticker for this connection.
		go c.pingLoop(pingCtx, conn)

		return WSConnectedMsg{}
	}
}

// ReadLoop returns a Bubble Tea command that reads the next record.
// It should be started after receiving WSConnectedMsg and re-issued
// after every WSEventMsg or WSDecodeErrorMsg.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()
			return WSDisconnectedMsg{Err: err}
		}

		ev, err := Decode(data)
		if err != nil {
			return WSDecodeErrorMsg{Err: err}
		}
		return WSEventMsg{Event: ev}
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close drops the current connection, if any.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
