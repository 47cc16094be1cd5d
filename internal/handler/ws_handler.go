package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/potluck-games/dicepot/internal/auth"
	"github.com/potluck-games/dicepot/internal/service"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var _ service.Broadcaster = (*Hub)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Type    string                `json:"type"`
	Code    string                `json:"code,omitempty"`
	Action  *service.ClientAction `json:"action,omitempty"`
	Content string                `json:"content,omitempty"`
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *Hub
	jwtMgr  *auth.JWTManager
	roomSvc *service.RoomService
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, roomSvc *service.RoomService) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, roomSvc: roomSvc}
}

// ServeWS handles GET /ws: upgrades to WebSocket.
// Auth via ?token= query parameter (WebSocket can't send headers); the token
// is either a signed JWT or a guest literal.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	ident, err := h.jwtMgr.VerifyBearer(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		userID:   ident.UserID,
		userName: ident.DisplayName,
		send:     make(chan []byte, sendBufSize),
		rooms:    make(map[string]bool),
	}
	h.hub.Register(client)

	welcome, _ := json.Marshal(WSEvent{Type: "connected", Data: map[string]any{
		"userId":     ident.UserID,
		"serverTime": time.Now().UnixMilli(),
	}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", ident.UserID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		codes := h.hub.Unregister(c)
		c.conn.Close()
		for _, code := range codes {
			h.roomSvc.HandleDisconnect(context.Background(), code, c.userID)
		}
		log.Info().Str("userId", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.dispatch(c, msg)
	}
}

// dispatch routes one inbound client message.
func (h *WSHandler) dispatch(c *WSConn, msg ClientMessage) {
	if msg.Code == "" {
		return
	}
	ctx := context.Background()

	switch msg.Type {
	case "joinGame":
		room, err := h.roomSvc.GetRoom(ctx, msg.Code)
		if err != nil || !room.IsMember(c.userID) {
			h.sendError(c, msg.Code, "you are not a member of this room")
			return
		}
		h.hub.JoinRoom(c, msg.Code)
		h.roomSvc.HandleConnect(ctx, msg.Code, c.userID)
	case "leaveGame":
		h.hub.LeaveRoom(c, msg.Code)
		h.roomSvc.HandleDisconnect(ctx, msg.Code, c.userID)
	case "gameAction":
		if msg.Action == nil {
			h.sendError(c, msg.Code, "missing action")
			return
		}
		h.roomSvc.HandleAction(ctx, msg.Code, c.userID, *msg.Action)
	case "requestGameState":
		h.roomSvc.RequestGameState(ctx, msg.Code, c.userID)
	case "diceSelected":
		h.roomSvc.HandleAction(ctx, msg.Code, c.userID, service.ClientAction{Kind: service.ActionDiceSelected})
	case "resumeControl":
		h.roomSvc.ResumeControl(ctx, msg.Code, c.userID)
	case "chatMessage":
		if err := h.roomSvc.Chat(ctx, msg.Code, c.userID, c.userName, msg.Content); err != nil {
			h.sendError(c, msg.Code, err.Error())
		}
	}
}

func (h *WSHandler) sendError(c *WSConn, code, message string) {
	payload, _ := json.Marshal(WSEvent{
		Type: service.EventActionError,
		Room: code,
		Data: map[string]any{"message": message},
	})
	select {
	case c.send <- payload:
	default:
	}
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
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
