package ws

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"
)

const maxInboundBytes = 64 * 1024

// Sink receives decoded frames from a client's read loop and learns when
// the connection goes away.
type Sink interface {
	Dispatch(c *Client, req *Request)
	Drop(c *Client)
}

type Client struct {
	conn    *connWrapper
	Message chan *WSMessage
	ID      string `json:"id"`
}

func NewClient(conn *websocket.Conn, id string) *Client {
	return &Client{
		conn:    newConnWrapper(conn),
		Message: make(chan *WSMessage, 64), // buffered to avoid dead-locks on slow clients
		ID:      id,
	}
}

// ReadPump decodes frames off the socket and hands them to the sink. It
// runs on the connection's own goroutine, so frames from one sender are
// dispatched in the order they arrived.
func (c *Client) ReadPump(sink Sink) {
	defer func() {
		sink.Drop(c)
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxInboundBytes)

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (client %s): %v", c.ID, err)
			}
			break
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.Send(NewError("", CodeValidation, "malformed frame"))
			continue
		}

		sink.Dispatch(c, &req)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for msg := range c.Message {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error (client %s): %v", c.ID, err)
			break
		}
	}
}

// Send queues a message without blocking. A full buffer means the client
// cannot keep up; the frame is dropped rather than stalling the relay.
func (c *Client) Send(msg *WSMessage) bool {
	select {
	case c.Message <- msg:
		return true
	default:
		return false
	}
}

// CloseSend stops the write pump once queued messages are flushed.
func (c *Client) CloseSend() {
	close(c.Message)
}
