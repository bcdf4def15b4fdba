package proto

import (
	"time"

	"walnut-woods/server/internal/ai"
	"walnut-woods/server/internal/guard"
	"walnut-woods/server/internal/world"
)

// Message kinds on the persistent channel. Client and server frames share
// one envelope: {"type": "...", ...}.
const (
	KindPlayerUpdate       = "player_update"
	KindHeartbeat          = "heartbeat"
	KindWalnutHidden       = "walnut_hidden"
	KindWalnutFound        = "walnut_found"
	KindChatMessage        = "chat_message"
	KindPlayerEmote        = "player_emote"
	KindWorldState         = "world_state"
	KindExistingPlayers    = "existing_players"
	KindPlayerJoined       = "player_joined"
	KindPlayerDisconnected = "player_disconnected"
	KindPlayerLeave        = "player_leave"
	KindNPCSpawned         = "npc_spawned"
	KindNPCDespawned       = "npc_despawned"
	KindNPCUpdate          = "npc_update"
	KindPositionCorrection = "position_correction"
	KindAntiCheatWarning   = "anti_cheat_warning"
	KindRateLimited        = "rate_limited"
)

// --- client -> server ---

// PlayerUpdate carries a client-predicted pose for validation.
type PlayerUpdate struct {
	Type      string      `json:"type"`
	Position  world.Vec3  `json:"position"`
	RotationY float64     `json:"rotationY"`
	Animation string      `json:"animation,omitempty"`
	Velocity  *world.Vec3 `json:"velocity,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Heartbeat keeps an otherwise idle connection alive.
type Heartbeat struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// WalnutHidden announces a player hide action.
type WalnutHidden struct {
	Type       string     `json:"type"`
	WalnutID   string     `json:"walnutId"`
	OwnerID    string     `json:"ownerId"`
	WalnutType string     `json:"walnutType"`
	Position   world.Vec3 `json:"position"`
}

// WalnutFound announces a find. Re-sends for an already-found walnut are
// no-ops.
type WalnutFound struct {
	Type     string `json:"type"`
	WalnutID string `json:"walnutId"`
	FinderID string `json:"finderId"`
}

// ChatMessage is relayed to every other connection in the room.
type ChatMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PlayerEmote is relayed to every other connection in the room.
type PlayerEmote struct {
	Type  string `json:"type"`
	Emote string `json:"emote"`
}

// --- server -> client ---

// PlayerSnapshot is the public view of a peer.
type PlayerSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Character string     `json:"character"`
	Position  world.Vec3 `json:"position"`
	RotationY float64    `json:"rotationY"`
	Animation string     `json:"animation,omitempty"`
	Carried   int        `json:"carried"`
}

// WorldState is the full snapshot returned on upgrade and from the
// snapshot endpoint.
type WorldState struct {
	Type           string               `json:"type"`
	TerrainSeed    int64                `json:"terrainSeed"`
	MapState       []world.Walnut       `json:"mapState"`
	ForestObjects  []world.ForestObject `json:"forestObjects"`
	NPCs           []ai.Entity          `json:"npcs,omitempty"`
	SpawnPosition  world.Vec3           `json:"spawnPosition"`
	SpawnRotationY float64              `json:"spawnRotationY"`
	ServerTime     int64                `json:"serverTime"`
}

// ExistingPlayers lists the peers already present when a client joins.
type ExistingPlayers struct {
	Type    string           `json:"type"`
	Players []PlayerSnapshot `json:"players"`
}

// PlayerJoined announces a new peer to the rest of the room.
type PlayerJoined struct {
	Type   string         `json:"type"`
	Player PlayerSnapshot `json:"player"`
}

// PlayerUpdateBroadcast relays an accepted pose to peers.
type PlayerUpdateBroadcast struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Position  world.Vec3 `json:"position"`
	RotationY float64    `json:"rotationY"`
	Animation string     `json:"animation,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// PlayerDisconnected marks a peer silent but still inside the removal
// window; PlayerLeave is the final removal.
type PlayerDisconnected struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PlayerLeave announces final removal of a peer.
type PlayerLeave struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NPCSpawned announces a new AI entity.
type NPCSpawned struct {
	Type string    `json:"type"`
	NPC  ai.Entity `json:"npc"`
}

// NPCDespawned announces removal of an AI entity, distinct from player
// removal so clients can tell the two apart.
type NPCDespawned struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NPCUpdate relays AI entity poses each tick.
type NPCUpdate struct {
	Type string      `json:"type"`
	NPCs []ai.Entity `json:"npcs"`
}

// PositionCorrection tells the affected client its proposal was clamped,
// so local prediction can realign.
type PositionCorrection struct {
	Type              string            `json:"type"`
	OriginalPosition  world.Vec3        `json:"originalPosition"`
	CorrectedPosition world.Vec3        `json:"correctedPosition"`
	Violations        []guard.Violation `json:"violations"`
	Timestamp         int64             `json:"timestamp"`
}

// HeartbeatReply echoes server time for RTT measurement.
type HeartbeatReply struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime,omitempty"`
}

// AntiCheatWarning is sent when a connection trips the violation flag.
type AntiCheatWarning struct {
	Type          string  `json:"type"`
	Count         int     `json:"count"`
	WindowSeconds float64 `json:"windowSeconds"`
}

// RateLimited rejects one specific request with a retryable status; the
// connection itself survives.
type RateLimited struct {
	Type         string `json:"type"`
	Kind         string `json:"kind"`
	RetryAfterMS int64  `json:"retryAfterMs"`
}

// ChatBroadcast relays chat with the sender attached.
type ChatBroadcast struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId"`
	Message  string `json:"message"`
}

// EmoteBroadcast relays an emote with the sender attached.
type EmoteBroadcast struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId"`
	Emote    string `json:"emote"`
}

// Millis converts a wall-clock instant to the wire's millisecond stamps.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
