package room

import (
	"sort"
	"time"

	"walnut-woods/server/internal/guard"
	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/world"
)

// Quality classifies a connection by how recently it has spoken.
type Quality string

const (
	QualityGood     Quality = "good"
	QualityDegraded Quality = "degraded"
	QualityStale    Quality = "stale"
)

// playerConn is the authoritative record for one identity. Owned
// exclusively by the room goroutine; nothing outside it may touch one.
type playerConn struct {
	id        string
	identity  string
	name      string
	character string
	conn      Conn

	position  world.Vec3
	rotationY float64
	animation string
	carried   int

	lastActivity time.Time
	lastUpdate   time.Time

	disconnected bool
	window       *guard.Window
	quality      Quality

	chatTimes []time.Time
	// failed write queues this connection for removal on the next tick
	// so one bad channel never blocks delivery to the rest.
	sendFailed bool
}

func (p *playerConn) snapshot() proto.PlayerSnapshot {
	return proto.PlayerSnapshot{
		ID:        p.id,
		Name:      p.name,
		Character: p.character,
		Position:  p.position,
		RotationY: p.rotationY,
		Animation: p.animation,
		Carried:   p.carried,
	}
}

// registry is the in-memory map of live connections, keyed by identity.
type registry struct {
	players map[string]*playerConn
}

func newRegistry() *registry {
	return &registry{players: make(map[string]*playerConn)}
}

func (r *registry) get(id string) (*playerConn, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r *registry) put(p *playerConn) {
	r.players[p.id] = p
}

func (r *registry) remove(id string) {
	delete(r.players, id)
}

func (r *registry) len() int {
	return len(r.players)
}

// ordered returns players sorted by id for deterministic iteration.
func (r *registry) ordered() []*playerConn {
	out := make([]*playerConn, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// connectedSnapshots lists broadcastable peers, excluding one id and any
// connection marked disconnected.
func (r *registry) connectedSnapshots(excludeID string) []proto.PlayerSnapshot {
	out := make([]proto.PlayerSnapshot, 0, len(r.players))
	for _, p := range r.ordered() {
		if p.id == excludeID || p.disconnected {
			continue
		}
		out = append(out, p.snapshot())
	}
	return out
}
