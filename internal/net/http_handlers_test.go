package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"walnut-woods/server/internal/leaderboard"
	"walnut-woods/server/internal/room"
)

func newTestHandler(t *testing.T, cfg HTTPHandlerConfig) (http.Handler, *room.Manager) {
	t.Helper()
	manager := room.NewManager(room.Config{Seed: 99})
	t.Cleanup(manager.StopAll)
	return NewHTTPHandler(manager, cfg), manager
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, HTTPHandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want ok", rec.Body.String())
	}
}

func TestWorldSeedForLiveRoom(t *testing.T) {
	handler, manager := newTestHandler(t, HTTPHandlerConfig{})
	manager.GetOrCreate("walnut-woods")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/world/seed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		RoomID      string `json:"roomId"`
		TerrainSeed int64  `json:"terrainSeed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.RoomID != "walnut-woods" || payload.TerrainSeed != 99 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestWorldSnapshotUnknownRoom(t *testing.T) {
	handler, _ := newTestHandler(t, HTTPHandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/world/snapshot?room=nowhere", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWorldSnapshotReturnsGeneratedWorld(t *testing.T) {
	handler, manager := newTestHandler(t, HTTPHandlerConfig{})
	manager.GetOrCreate("walnut-woods")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/world/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		TerrainSeed   int64 `json:"terrainSeed"`
		MapState      []any `json:"mapState"`
		ForestObjects []any `json:"forestObjects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.MapState) == 0 || len(payload.ForestObjects) == 0 {
		t.Fatalf("empty snapshot: %d walnuts, %d objects", len(payload.MapState), len(payload.ForestObjects))
	}
}

func TestWorldObjectsEndpoint(t *testing.T) {
	handler, manager := newTestHandler(t, HTTPHandlerConfig{})
	manager.GetOrCreate("walnut-woods")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/world/objects", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		RoomID  string `json:"roomId"`
		Objects []any  `json:"objects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.RoomID != "walnut-woods" || len(payload.Objects) == 0 {
		t.Fatalf("payload = room %q with %d objects", payload.RoomID, len(payload.Objects))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/world/objects?room=nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown room status = %d, want 404", rec.Code)
	}
}

func TestJoinBootstrapIssuesCredentials(t *testing.T) {
	handler, manager := newTestHandler(t, HTTPHandlerConfig{})

	body := strings.NewReader(`{"name":"Ava","character":"squirrel","room":"forest-9"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/join", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		PlayerID    string `json:"playerId"`
		Token       string `json:"token"`
		RoomID      string `json:"roomId"`
		TerrainSeed int64  `json:"terrainSeed"`
		WebSocket   string `json:"websocket"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(payload.PlayerID, "player-") || payload.Token == "" {
		t.Fatalf("credentials = %q / %q", payload.PlayerID, payload.Token)
	}
	if payload.RoomID != "forest-9" {
		t.Fatalf("room = %q, want forest-9", payload.RoomID)
	}
	rm, ok := manager.Get("forest-9")
	if !ok {
		t.Fatal("bootstrap did not create the room")
	}
	if payload.TerrainSeed != rm.Seed() {
		t.Fatalf("seed = %d, room has %d", payload.TerrainSeed, rm.Seed())
	}
	for _, part := range []string{"id=" + payload.PlayerID, "token=" + payload.Token, "room=forest-9", "name=Ava"} {
		if !strings.Contains(payload.WebSocket, part) {
			t.Fatalf("websocket url %q missing %q", payload.WebSocket, part)
		}
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/join", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/join", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestLeaderboardLimitValidation(t *testing.T) {
	board := leaderboard.New(nil)
	handler, _ := newTestHandler(t, HTTPHandlerConfig{Board: board})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rec.Code)
	}

	board.RecordFind("alice", "Alice")
	board.RecordFind("alice", "Alice")
	board.RecordFind("bob", "Bob")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Scores []leaderboard.Score `json:"scores"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Scores) != 1 || payload.Scores[0].Identity != "alice" {
		t.Fatalf("scores = %+v", payload.Scores)
	}
}

func TestRankEndpoint(t *testing.T) {
	board := leaderboard.New(nil)
	board.RecordFind("alice", "Alice")
	handler, _ := newTestHandler(t, HTTPHandlerConfig{Board: board})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard/rank?id=alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard/rank?id=nobody", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unranked status = %d, want 404", rec.Code)
	}
}

func TestAdminResetRequiresSecret(t *testing.T) {
	handler, manager := newTestHandler(t, HTTPHandlerConfig{AdminSecret: "hunter2"})
	manager.GetOrCreate("walnut-woods")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reset-world", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/reset-world", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/reset-world", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid secret status = %d, want 200", rec.Code)
	}
}

func TestAdminResetRejectedWhenNoSecretConfigured(t *testing.T) {
	handler, manager := newTestHandler(t, HTTPHandlerConfig{})
	manager.GetOrCreate("walnut-woods")

	req := httptest.NewRequest(http.MethodPost, "/admin/reset-positions", nil)
	req.Header.Set("X-Admin-Secret", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminResetRejectsGet(t *testing.T) {
	handler, _ := newTestHandler(t, HTTPHandlerConfig{AdminSecret: "hunter2"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/reset-world", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestUpgradeRequiresIdentity(t *testing.T) {
	handler, _ := newTestHandler(t, HTTPHandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
