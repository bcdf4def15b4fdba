// Package net assembles the HTTP surface: health and diagnostics,
// world snapshots, the leaderboard, admin resets and the websocket
// upgrade endpoint.
package net

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log"
	nethttp "net/http"
	"net/url"
	"strconv"
	"time"

	"walnut-woods/server/internal/leaderboard"
	"walnut-woods/server/internal/net/ws"
	"walnut-woods/server/internal/room"
	"walnut-woods/server/internal/telemetry"
	"walnut-woods/server/internal/world"
)

type HTTPHandlerConfig struct {
	ClientDir   string
	AdminSecret string
	Board       *leaderboard.Board
	Logger      *log.Logger
}

func NewHTTPHandler(manager *room.Manager, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		type roomDiag struct {
			ID        string             `json:"id"`
			Seed      int64              `json:"seed"`
			Telemetry telemetry.Snapshot `json:"telemetry"`
		}
		rooms := make([]roomDiag, 0)
		for _, rm := range manager.Rooms() {
			rooms = append(rooms, roomDiag{ID: rm.ID(), Seed: rm.Seed(), Telemetry: rm.Counters().Snapshot()})
		}

		payload := struct {
			Status     string     `json:"status"`
			ServerTime int64      `json:"serverTime"`
			Rooms      []roomDiag `json:"rooms"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Rooms:      rooms,
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/metrics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rm, ok := lookupRoom(manager, r)
		if !ok {
			httpError(w, "unknown room", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, rm.Counters().Snapshot())
	})

	mux.HandleFunc("/world/snapshot", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rm, ok := lookupRoom(manager, r)
		if !ok {
			httpError(w, "unknown room", nethttp.StatusNotFound)
			return
		}
		state, err := rm.WorldSnapshot()
		if err != nil {
			httpError(w, "room unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		writeJSON(w, state)
	})

	mux.HandleFunc("/world/objects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rm, ok := lookupRoom(manager, r)
		if !ok {
			httpError(w, "unknown room", nethttp.StatusNotFound)
			return
		}
		state, err := rm.WorldSnapshot()
		if err != nil {
			httpError(w, "room unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		payload := struct {
			RoomID  string               `json:"roomId"`
			Objects []world.ForestObject `json:"objects"`
		}{RoomID: rm.ID(), Objects: state.ForestObjects}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Name      string `json:"name"`
			Character string `json:"character"`
			Room      string `json:"room"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid request body", nethttp.StatusBadRequest)
			return
		}
		roomID := req.Room
		if roomID == "" {
			roomID = ws.DefaultRoomID()
		}
		rm := manager.GetOrCreate(roomID)

		playerID, token, err := newCredentials()
		if err != nil {
			httpError(w, "failed to issue identity", nethttp.StatusInternalServerError)
			return
		}
		q := url.Values{}
		q.Set("id", playerID)
		q.Set("token", token)
		q.Set("room", roomID)
		if req.Name != "" {
			q.Set("name", req.Name)
		}
		if req.Character != "" {
			q.Set("character", req.Character)
		}
		payload := struct {
			PlayerID    string `json:"playerId"`
			Token       string `json:"token"`
			RoomID      string `json:"roomId"`
			TerrainSeed int64  `json:"terrainSeed"`
			WebSocket   string `json:"websocket"`
		}{
			PlayerID:    playerID,
			Token:       token,
			RoomID:      roomID,
			TerrainSeed: rm.Seed(),
			WebSocket:   "/ws?" + q.Encode(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/world/seed", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rm, ok := lookupRoom(manager, r)
		if !ok {
			httpError(w, "unknown room", nethttp.StatusNotFound)
			return
		}
		payload := struct {
			RoomID      string `json:"roomId"`
			TerrainSeed int64  `json:"terrainSeed"`
		}{RoomID: rm.ID(), TerrainSeed: rm.Seed()}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/leaderboard", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Board == nil {
			httpError(w, "leaderboard disabled", nethttp.StatusNotFound)
			return
		}
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				httpError(w, "invalid limit", nethttp.StatusBadRequest)
				return
			}
			limit = parsed
		}
		payload := struct {
			Scores []leaderboard.Score `json:"scores"`
		}{Scores: cfg.Board.TopN(limit)}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/leaderboard/rank", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Board == nil {
			httpError(w, "leaderboard disabled", nethttp.StatusNotFound)
			return
		}
		identity := r.URL.Query().Get("id")
		if identity == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}
		rank, ok := cfg.Board.Rank(identity)
		if !ok {
			httpError(w, "unranked identity", nethttp.StatusNotFound)
			return
		}
		payload := struct {
			Identity string `json:"identity"`
			Rank     int    `json:"rank"`
		}{Identity: identity, Rank: rank}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/admin/reset-world", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rm, ok := authAdmin(w, r, manager, cfg.AdminSecret)
		if !ok {
			return
		}
		if err := rm.ResetWorld(); err != nil {
			httpError(w, "room unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		logger.Printf("admin reset world for room %s", rm.ID())
		writeJSON(w, statusOK{Status: "ok"})
	})

	mux.HandleFunc("/admin/reset-positions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rm, ok := authAdmin(w, r, manager, cfg.AdminSecret)
		if !ok {
			return
		}
		if err := rm.ResetPositions(); err != nil {
			httpError(w, "room unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		logger.Printf("admin reset positions for room %s", rm.ID())
		writeJSON(w, statusOK{Status: "ok"})
	})

	wsHandler := ws.NewHandler(manager, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

type statusOK struct {
	Status string `json:"status"`
}

// newCredentials issues a fresh player identity and its channel token
// for the websocket upgrade.
func newCredentials() (id, token string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	return "player-" + hex.EncodeToString(buf[:8]), hex.EncodeToString(buf[8:]), nil
}

// lookupRoom resolves the room query parameter without creating rooms
// as a side effect of read-only endpoints.
func lookupRoom(manager *room.Manager, r *nethttp.Request) (*room.Room, bool) {
	id := r.URL.Query().Get("room")
	if id == "" {
		id = ws.DefaultRoomID()
	}
	return manager.Get(id)
}

// authAdmin gates the reset endpoints behind the shared secret. Both a
// missing server-side secret and a mismatched header reject.
func authAdmin(w nethttp.ResponseWriter, r *nethttp.Request, manager *room.Manager, secret string) (*room.Room, bool) {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return nil, false
	}
	provided := r.Header.Get("X-Admin-Secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		httpError(w, "unauthorized", nethttp.StatusUnauthorized)
		return nil, false
	}
	rm, ok := lookupRoom(manager, r)
	if !ok {
		httpError(w, "unknown room", nethttp.StatusNotFound)
		return nil, false
	}
	return rm, true
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
