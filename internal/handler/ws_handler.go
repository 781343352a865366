package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/internal/auth"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays connected; pings go out
	// early enough to beat it.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	// maxMessageBytes caps inbound frames; clients only send small
	// subscribe envelopes.
	maxMessageBytes = 4096
	sendQueueSize   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin checks are relaxed here; CORS policy lives in
		// the middleware layer.
		return true
	},
}

// WSHandler upgrades HTTP requests to WebSocket connections and feeds
// them into the hub.
type WSHandler struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr}
}

// ServeWS handles GET /api/v1/ws. Browsers cannot set headers on a
// WebSocket handshake, so the access token rides in ?token=.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing token parameter")
		return
	}

	claims, err := h.jwtMgr.ValidateAccessToken(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendQueueSize),
	}
	h.hub.Register(client)

	// First frame confirms the session so the client knows it may
	// subscribe to adventures.
	if welcome, err := json.Marshal(WSEvent{Type: EventConnected, Data: map[string]string{"user_id": claims.UserID}}); err == nil {
		client.send <- welcome
	}

	go client.writePump()
	go client.readPump(h.hub)

	log.Info().Str("userId", claims.UserID).Int("total", h.hub.ConnectionCount()).Msg("websocket client connected")
}

// readPump consumes subscribe/unsubscribe envelopes until the peer goes
// away, then tears the connection down. Pong handling keeps the read
// deadline moving.
func (c *WSConn) readPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("userId", c.userID).Msg("websocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // ignore garbage frames
		}

		switch msg.Action {
		case "subscribe":
			if msg.AdventureID != "" {
				hub.Subscribe(c, msg.AdventureID)
			}
		case "unsubscribe":
			if msg.AdventureID != "" {
				hub.Unsubscribe(c, msg.AdventureID)
			}
		}
	}
}

// writePump pushes queued events to the peer and keeps the connection
// alive with pings. It batches whatever is already queued into one
// frame, newline separated.
func (c *WSConn) writePump() {
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
				// Hub closed the queue; say goodbye properly.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			for i := len(c.send); i > 0; i-- {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
