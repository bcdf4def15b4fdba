// Package ws upgrades HTTP requests to the persistent game channel and
// pumps inbound frames into the owning room.
package ws

import (
	"errors"
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/room"
)

const defaultRoomID = "walnut-woods"

type HandlerConfig struct {
	Logger *log.Logger
}

type Handler struct {
	manager  *room.Manager
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(manager *room.Manager, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		manager:  manager,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades one client. Identity and token arrive as query
// parameters; verification happens inside the room before any state is
// shared.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	identity := r.URL.Query().Get("id")
	if identity == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}
	token := r.URL.Query().Get("token")
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = defaultRoomID
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", identity, err)
		return
	}

	rm := h.manager.GetOrCreate(roomID)
	c := newConn(wsConn)
	res, err := rm.Join(r.Context(), identity, token, room.JoinRequest{
		Name:      r.URL.Query().Get("name"),
		Character: r.URL.Query().Get("character"),
		Conn:      c,
	})
	if err != nil {
		if errors.Is(err, room.ErrAuthFailed) {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
			wsConn.WriteMessage(websocket.CloseMessage, message)
		}
		wsConn.Close()
		return
	}

	if !h.sendInitialState(rm, res, c) {
		return
	}

	for {
		_, payload, err := wsConn.ReadMessage()
		if err != nil {
			rm.ConnClosed(res.PlayerID, c)
			return
		}
		rm.HandleFrame(res.PlayerID, payload)
	}
}

// sendInitialState delivers the world snapshot and peer list before the
// read loop starts, so the client never sees a broadcast it cannot
// place.
func (h *Handler) sendInitialState(rm *room.Room, res room.JoinResult, c *conn) bool {
	for _, msg := range []any{res.World, res.Existing} {
		data, err := proto.Encode(msg)
		if err != nil {
			h.logger.Printf("failed to marshal initial state for %s: %v", res.PlayerID, err)
			rm.ConnClosed(res.PlayerID, c)
			c.Close()
			return false
		}
		if err := c.Send(data); err != nil {
			rm.ConnClosed(res.PlayerID, c)
			return false
		}
	}
	return true
}

// DefaultRoomID is the room joined when a client names none.
func DefaultRoomID() string {
	return defaultRoomID
}
