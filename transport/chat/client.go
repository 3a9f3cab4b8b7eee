package chat

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
)

// Client wraps one upgraded WebSocket connection, adapted in place from
// cmd/fanout's Client.
type Client struct {
	hub      *Hub
	boardID  string
	conn     *websocket.Conn
	username string
	send     chan []byte
}

// NewClient builds a Client bound to a board; every message it reads
// triggers that board's chat_event start node.
func NewClient(hub *Hub, conn *websocket.Conn, username, boardID string) *Client {
	return &Client{
		hub:      hub,
		boardID:  boardID,
		conn:     conn,
		username: username,
		send:     make(chan []byte, 256),
	}
}

// readPump pumps inbound frames to the hub's trigger channel, the one
// behavioral departure from cmd/fanout's client: there, inbound
// messages are read only to detect disconnects and otherwise discarded;
// here they are the whole point of the transport.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("chat websocket error", "username", c.username, "error", err)
			}
			return
		}
		c.hub.inbound <- &Inbound{Username: c.username, BoardID: c.boardID, Data: data}
	}
}

// writePump pumps hub-delivered messages to the WebSocket connection,
// unchanged from cmd/fanout's client beyond the rename.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			n := len(c.send)
			for i := 0; i < n; i++ {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
