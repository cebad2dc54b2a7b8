package push

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// SocketChannel pushes payloads over a persistent websocket. Deliveries go
// through a buffered queue drained by a single write pump, which keeps
// Deliver non-blocking and payloads in order; a viewer that stops reading
// fills the queue and the next Deliver fails, which unregisters it.
type SocketChannel struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func NewSocketChannel(conn *websocket.Conn, sendBuffer int) *SocketChannel {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	c := &SocketChannel{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *SocketChannel) ID() string {
	return c.id
}

func (c *SocketChannel) Deliver(payload []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("push: send queue full for channel %s", c.id)
	}
}

func (c *SocketChannel) writePump() {
	defer c.conn.Close()
	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *SocketChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
