package ws

import (
	"encoding/json"
	"sync"
	"time"

	"tournament_market/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
	Done   chan struct{}

	// guarded by Hub.mu
	topics map[string]struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Hub:    hub,
		Done:   make(chan struct{}),
		topics: make(map[string]struct{}),
		closed: make(chan struct{}),
	}
}

// Run serves the connection until the peer goes away.
func (c *Client) Run() {
	c.Hub.Register(c)
	go c.writePump()
	c.reply(Outbound{Type: MsgReady})
	c.readPump()
}

func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) reply(o Outbound) {
	msg, err := json.Marshal(o)
	if err != nil {
		return
	}
	c.enqueue(msg)
}

// read
func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.reply(Outbound{Type: MsgError, Message: "invalid message"})
		return
	}
	switch in.Type {
	case MsgSubscribe:
		if in.TournamentID == "" {
			c.reply(Outbound{Type: MsgError, Message: "tournament_id required"})
			return
		}
		if !c.Hub.Subscribe(c, in.TournamentID) {
			c.reply(Outbound{Type: MsgError, Message: "too many subscriptions"})
			return
		}
		c.reply(Outbound{Type: MsgSubscribed, TournamentID: in.TournamentID})
	case MsgUnsubscribe:
		c.Hub.Unsubscribe(c, in.TournamentID)
	case MsgPing:
		c.reply(Outbound{Type: MsgPong})
	default:
		c.reply(Outbound{Type: MsgError, Message: "unknown message type"})
	}
}

// write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "user_id", c.UserID, "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect
func (c *Client) disconnect() {
	c.Hub.OnDisconnect(c)
	c.closeOnce.Do(func() { close(c.closed) })
	_ = c.Conn.Close()
}
