package world

import "time"

// Vec3 is a world-space position or direction.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Bounds describes the playable rectangle on x/z and the global y range.
type Bounds struct {
	HalfExtent float64
	MinY       float64
	MaxY       float64
}

// DefaultBounds matches the terrain patch streamed to clients.
func DefaultBounds() Bounds {
	return Bounds{HalfExtent: 250, MinY: -50, MaxY: 200}
}

// Contains reports whether p lies inside the x/z rectangle and y range.
func (b Bounds) Contains(p Vec3) bool {
	if p.X < -b.HalfExtent || p.X > b.HalfExtent {
		return false
	}
	if p.Z < -b.HalfExtent || p.Z > b.HalfExtent {
		return false
	}
	return p.Y >= b.MinY && p.Y <= b.MaxY
}

// ObjectType enumerates generated forest props.
type ObjectType string

const (
	ObjectTree  ObjectType = "tree"
	ObjectBush  ObjectType = "bush"
	ObjectRock  ObjectType = "rock"
	ObjectStump ObjectType = "stump"
)

// ForestObject is immutable after generation and persisted with the room.
type ForestObject struct {
	ID       string     `json:"id"`
	Type     ObjectType `json:"type"`
	Position Vec3       `json:"position"`
	Scale    float64    `json:"scale"`
	Variant  int        `json:"variant"`
}

// WalnutOrigin distinguishes seeded walnuts from player-hidden ones.
type WalnutOrigin string

const (
	OriginSystem WalnutOrigin = "system"
	OriginPlayer WalnutOrigin = "player"
)

// WalnutMethod is how a walnut is concealed.
type WalnutMethod string

const (
	MethodBuried WalnutMethod = "buried"
	MethodBush   WalnutMethod = "bush"
)

// Walnut is created by generation or a player hide action. Only the Found
// flag ever changes, and only from false to true.
type Walnut struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"ownerId,omitempty"`
	Origin    WalnutOrigin `json:"origin"`
	Method    WalnutMethod `json:"method"`
	Position  Vec3         `json:"position"`
	Found     bool         `json:"found"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Landmark is a fixed point of interest that generation keeps clear.
type Landmark struct {
	Name     string
	Position Vec3
	Radius   float64
}
