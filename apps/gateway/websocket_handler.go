package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mahaj/commune-chat/pkg/chat"
	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for one join or send, including the store round trips.
	opTimeout = 5 * time.Second
)

// Client is a middleman between the websocket connection and the chat service.
type Client struct {
	gw   *Gateway
	conn *websocket.Conn

	// Buffered channel of outbound frames. It is never closed; done signals
	// the writer to stop.
	send chan []byte
	done chan struct{}
	once sync.Once

	id      string
	user    model.User
	limiter *rate.Limiter
}

func (c *Client) ID() string       { return c.id }
func (c *Client) UserID() int64    { return c.user.ID }
func (c *Client) User() model.User { return c.user }

func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) reply(ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.gw.log.Error("Failed to encode event", "conn", c.id, "type", ev.Type, "err", err)
		return
	}
	if !c.Enqueue(payload) {
		c.gw.log.Warn("Dropped reply for a full connection", "conn", c.id, "type", ev.Type)
	}
}

// readPump pumps frames from the websocket connection to the chat service.
// Returning from it is the one disconnect path: it leaves every room.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.gw.disconnect(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(int64(c.gw.settings.MaxFrameSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				c.gw.log.Info("Frame exceeded size limit", "conn", c.id, "limit", c.gw.settings.MaxFrameSize)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
				c.gw.log.Warn("Unexpected websocket close", "conn", c.id, "err", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.reply(model.Event{Type: model.TypeError, Error: "rate limit exceeded"})
			continue
		}
		c.handle(ctx, frame)
	}
}

func (c *Client) handle(ctx context.Context, frame []byte) {
	var cmd model.Command
	if err := json.Unmarshal(frame, &cmd); err != nil {
		c.reply(model.Event{Type: model.TypeError, Error: "malformed frame"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch cmd.Type {
	case model.TypeJoin:
		room, err := c.gw.chat.Join(ctx, c, cmd.Conversation)
		if err != nil {
			c.gw.log.Info("Join rejected", "conn", c.id, "user", c.user.ID, "err", err)
			c.reply(model.Event{Type: model.TypeError, Conversation: &cmd.Conversation, Error: chat.PublicMessage(err)})
			return
		}
		c.reply(model.Event{Type: model.TypeJoined, Room: room, Conversation: &cmd.Conversation})
	case model.TypeLeave:
		room, err := c.gw.chat.Leave(c, cmd.Conversation)
		if err != nil {
			c.reply(model.Event{Type: model.TypeError, Conversation: &cmd.Conversation, Error: chat.PublicMessage(err)})
			return
		}
		c.reply(model.Event{Type: model.TypeLeft, Room: room, Conversation: &cmd.Conversation})
	case model.TypeSend:
		// Failures were already reported to this connection as sendFailed.
		_, _ = c.gw.chat.Send(ctx, c, cmd.Conversation, cmd.Text, cmd.ClientRef)
	default:
		c.reply(model.Event{Type: model.TypeError, Error: "unknown frame type " + string(cmd.Type)})
	}
}

// writePump pumps frames to the websocket connection, one frame per event.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// ServeWS authenticates the handshake and upgrades it. Requests without a
// valid token are refused before the upgrade, so no room operation is ever
// reachable anonymously.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := g.verifier.Authenticate(r)
	if err != nil {
		g.metrics.AuthFailures.Inc()
		g.log.Info("Refused websocket", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := g.users.GetUser(r.Context(), claims.UserID)
	switch {
	case errors.Is(err, chaterr.ErrNotFound):
		user = model.User{ID: claims.UserID}
	case err != nil:
		g.log.Warn("Profile lookup failed, continuing without it", "user", claims.UserID, "err", err)
		user = model.User{ID: claims.UserID}
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		g.log.Info("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := &Client{
		gw:      g,
		conn:    conn,
		send:    make(chan []byte, g.settings.SendBuffer),
		done:    make(chan struct{}),
		id:      uuid.NewString(),
		user:    user,
		limiter: newFrameLimiter(g.settings.RateLimitBurst, g.settings.RateLimitRefill),
	}
	if !g.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	go c.writePump()
	go func() {
		defer g.wg.Done()
		c.readPump(g.ctx)
	}()
}
