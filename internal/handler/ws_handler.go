package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/oakmund/conquer/api/internal/auth"
	"github.com/oakmund/conquer/api/internal/repository"
	"github.com/oakmund/conquer/api/internal/service"
	"github.com/oakmund/conquer/api/pkg/conquest"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// WSConn is one live WebSocket connection and its verified identity.
type WSConn struct {
	id       string
	conn     *websocket.Conn
	identity service.Identity
	send     chan []byte
}

// WSHandler upgrades WebSocket connections and dispatches client
// commands to the services.
type WSHandler struct {
	hub      *Hub
	jwtMgr   *auth.JWTManager
	userRepo repository.UserRepository

	rooms *service.RoomService
	mm    *service.MatchmakingService
	chat  *service.ChatService
	emote *service.EmoteService
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, userRepo repository.UserRepository, rooms *service.RoomService, mm *service.MatchmakingService, chat *service.ChatService, emote *service.EmoteService) *WSHandler {
	return &WSHandler{
		hub:      hub,
		jwtMgr:   jwtMgr,
		userRepo: userRepo,
		rooms:    rooms,
		mm:       mm,
		chat:     chat,
		emote:    emote,
	}
}

// ServeWS handles GET /api/v1/ws — upgrades to WebSocket.
// Auth via ?token= query parameter (WebSocket can't send headers).
// Guest tokens are accepted; guests play with the default rating.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	identity, err := h.resolveIdentity(r.Context(), claims)
	if err != nil {
		http.Error(w, `{"error":"unknown user"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		id:       uuid.NewString(),
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	welcome, _ := json.Marshal(WSEvent{Type: "connected", Data: map[string]any{
		"player_id":    identity.PlayerID,
		"display_name": identity.DisplayName,
		"rating":       identity.Rating,
		"guest":        identity.Guest,
	}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("playerId", identity.PlayerID).Bool("guest", identity.Guest).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// resolveIdentity builds the player identity behind a token. Guests get
// a synthetic display name and the default rating; registered users are
// loaded from storage.
func (h *WSHandler) resolveIdentity(ctx context.Context, claims *auth.Claims) (service.Identity, error) {
	if claims.Guest {
		return service.Identity{
			PlayerID:    claims.UserID,
			DisplayName: "Guest-" + claims.UserID[:8],
			Rating:      conquest.DefaultRating,
			Guest:       true,
		}, nil
	}

	user, err := h.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return service.Identity{}, err
	}
	if user == nil {
		return service.Identity{}, auth.ErrInvalidToken
	}
	return service.Identity{
		PlayerID:    user.ID,
		DisplayName: user.DisplayName,
		Rating:      user.Rating,
	}, nil
}

// readPump reads client commands until the connection drops, then tears
// down every trace of the connection: hub entry, queue entry, and room
// membership.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		h.mm.Dequeue(c.id)
		h.rooms.Disconnect(c.id)
		c.conn.Close()
		log.Info().Str("playerId", c.identity.PlayerID).Msg("WebSocket client disconnected")
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
				log.Warn().Err(err).Str("playerId", c.identity.PlayerID).Msg("WebSocket unexpected close")
			}
			break
		}

		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			continue
		}
		h.dispatch(c, envelope.Type, envelope.Data)
	}
}

// dispatch routes one client command. Validation errors go back to the
// sender only and never touch shared state.
func (h *WSHandler) dispatch(c *WSConn, msgType string, data json.RawMessage) {
	var err error

	switch msgType {
	case msgMatchmakingJoin:
		var m matchmakingJoinMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.mm.Enqueue(c.id, c.identity, m.Mode)
		}
	case msgMatchmakingLeave:
		err = h.mm.Dequeue(c.id)
	case msgRoomCreate:
		var m roomCreateMsg
		if err = json.Unmarshal(data, &m); err == nil {
			_, err = h.rooms.CreateRoom(c.id, c.identity, m.Mode)
		}
	case msgRoomJoin:
		var m roomJoinMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.rooms.JoinRoom(c.id, c.identity, m.RoomID)
		}
	case msgRoomLeave:
		err = h.rooms.LeaveRoom(c.id)
	case msgRoomReady:
		var m roomReadyMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.rooms.Ready(c.id, m.Ready)
		}
	case msgRoomChangeTeam:
		var m roomChangeTeamMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.rooms.ChangeTeam(c.id, m.Team)
		}
	case msgGameSendTroops:
		var m sendTroopsMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.rooms.SendTroops(c.id, m.From, m.To, m.Fraction)
		}
	case msgGameSurrender:
		err = h.rooms.Surrender(c.id)
	case msgRematchVote:
		err = h.rooms.VoteRematch(c.id)
	case msgChatSend:
		var m chatSendMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.chat.Send(context.Background(), c.id, m.Text)
		}
	case msgChatQuick:
		var m chatQuickMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.chat.SendQuick(context.Background(), c.id, m.MessageID)
		}
	case msgEmoteSend:
		var m emoteSendMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = h.emote.Play(context.Background(), c.id, m.EmoteID)
		}
	default:
		log.Debug().Str("type", msgType).Msg("Unknown WebSocket message type")
		return
	}

	if err != nil {
		h.hub.Send(c.id, "error", errorPayload{Command: msgType, Error: err.Error()})
	}
}

// writePump writes queued messages and keepalive pings to the connection.
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
