package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

const sendBuffer = 256

// Client is one realtime connection, presenter or listener.
type Client struct {
	ID          string
	sessionMu   sync.RWMutex
	sessionCode string
	role        string

	conn *websocket.Conn

	sendMu     sync.RWMutex
	send       chan []byte
	sendClosed bool

	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

func (c *Client) session() (string, string) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.sessionCode, c.role
}

func (c *Client) setSession(code string, role string) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.sessionCode = code
	c.role = role
}

// enqueue offers a message without blocking. Reports false when the client
// is already closed or too slow to keep its buffer drained. The read pump
// can still race a close, so the closed check must hold the lock the closer
// takes; a bare select would send on a closed channel and panic.
func (c *Client) enqueue(message []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once; the write pump closes the
// underlying connection when it drains.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.sendClosed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}

func (c *Client) closed() bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	return c.sendClosed
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
