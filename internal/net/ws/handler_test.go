package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/room"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	manager := room.NewManager(room.Config{Seed: 7})
	t.Cleanup(manager.StopAll)

	handler := NewHandler(manager, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return data
}

func TestUpgradeDeliversWorldThenPeers(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "id=alice&token=secret")

	var world proto.WorldState
	if err := json.Unmarshal(readFrame(t, conn), &world); err != nil {
		t.Fatalf("decode world state: %v", err)
	}
	if world.Type != proto.KindWorldState || world.TerrainSeed != 7 {
		t.Fatalf("world state = type %q seed %d", world.Type, world.TerrainSeed)
	}

	var existing proto.ExistingPlayers
	if err := json.Unmarshal(readFrame(t, conn), &existing); err != nil {
		t.Fatalf("decode existing players: %v", err)
	}
	if existing.Type != proto.KindExistingPlayers {
		t.Fatalf("second frame type = %q", existing.Type)
	}
}

func TestUpgradeRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "id=alice")

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("connection survived failed authentication")
	}
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("close error = %v, want policy violation", err)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "id=alice&token=secret")

	readFrame(t, conn)
	readFrame(t, conn)

	beat, _ := json.Marshal(proto.Heartbeat{Type: proto.KindHeartbeat, Timestamp: 123})
	if err := conn.WriteMessage(websocket.TextMessage, beat); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var reply proto.HeartbeatReply
		if err := json.Unmarshal(readFrame(t, conn), &reply); err != nil {
			continue
		}
		if reply.Type == proto.KindHeartbeat && reply.ClientTime == 123 {
			if reply.ServerTime <= 0 {
				t.Fatalf("server time = %d", reply.ServerTime)
			}
			return
		}
	}
	t.Fatal("no heartbeat reply received")
}

func TestPeerSeesJoinBroadcast(t *testing.T) {
	srv := newTestServer(t)
	alice := dial(t, srv, "id=alice&token=secret")
	readFrame(t, alice)
	readFrame(t, alice)

	bob := dial(t, srv, "id=bob&token=secret")
	readFrame(t, bob)
	readFrame(t, bob)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var joined proto.PlayerJoined
		if err := json.Unmarshal(readFrame(t, alice), &joined); err != nil {
			continue
		}
		if joined.Type == proto.KindPlayerJoined {
			if joined.Player.ID != "bob" {
				t.Fatalf("joined player = %q, want bob", joined.Player.ID)
			}
			return
		}
	}
	t.Fatal("alice never saw bob join")
}
