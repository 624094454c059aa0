package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/config"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

// DisconnectHandler is called when a client's read loop ends.
type DisconnectHandler func(*Client)

// Client is one persistent connection with its session state.
type Client struct {
	ID           string
	Hub          *Hub
	Conn         *websocket.Conn
	Send         chan []byte
	Session      *domain.Session
	config       config.WebSocketConfig
	onDisconnect DisconnectHandler

	sendMu sync.Mutex
	closed bool
}

// trySend queues data for the write pump without blocking. It reports
// false when the buffer is full or the connection has been torn down.
// The mutex pairs with closeSend so a send can never race the close.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound channel exactly once. Late senders see
// the closed flag and drop instead of hitting a closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// SetDisconnectHandler sets the handler invoked on disconnect, before
// the connection is unregistered.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.onDisconnect = handler
}

// NewClient wraps an upgraded connection. The identity was resolved at
// connect time and is fixed for the connection's lifetime.
func NewClient(id string, h *Hub, conn *websocket.Conn, identity domain.Identity, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: domain.NewSession(id, identity),
		config:  cfg,
	}
}

// ReadPump reads inbound events and dispatches them to handler until
// the connection drops.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.onDisconnect != nil {
			c.onDisconnect(c)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump writes outbound messages and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a message for this connection only. A full send
// buffer or an already closed connection drops the message; delivery
// is best effort.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.trySend(data)
	return nil
}
