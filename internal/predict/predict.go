// Package predict implements the client half of the movement protocol:
// a local integrator running the same physics constants the server
// validates with, plus a bounded history ring used to absorb
// authoritative corrections without visible rubber-banding.
package predict

import (
	"math"
	"time"

	"walnut-woods/server/internal/world"
)

// Config mirrors the server's movement limits. MaxSpeed must match the
// validator or honest clients draw corrections.
type Config struct {
	HistorySize        int
	ReconcileThreshold float64
	TrustWindow        time.Duration
	MaxSpeed           float64
}

// DefaultConfig matches guard.DefaultConfig on the server side.
func DefaultConfig() Config {
	return Config{
		HistorySize:        128,
		ReconcileThreshold: 0.25,
		TrustWindow:        time.Second,
		MaxSpeed:           20,
	}
}

type entry struct {
	timestamp int64
	position  world.Vec3
}

// Predictor advances the locally-controlled entity every frame and keeps
// a ring of (timestamp, state) pairs for reconciliation.
type Predictor struct {
	cfg      Config
	position world.Vec3
	ring     []entry
	head     int
	count    int
}

func New(cfg Config, start world.Vec3) *Predictor {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	return &Predictor{
		cfg:      cfg,
		position: start,
		ring:     make([]entry, cfg.HistorySize),
	}
}

// Position returns the current predicted position.
func (p *Predictor) Position() world.Vec3 {
	return p.position
}

// Step integrates one frame of input. dir is the input direction (not
// necessarily normalized), dt the frame interval in seconds, now the
// local timestamp in milliseconds. The new state is recorded in history.
func (p *Predictor) Step(dir world.Vec3, dt float64, now int64) world.Vec3 {
	length := math.Sqrt(dir.X*dir.X + dir.Y*dir.Y + dir.Z*dir.Z)
	if length > 0 {
		if length > 1 {
			dir.X /= length
			dir.Y /= length
			dir.Z /= length
		}
		p.position.X += dir.X * p.cfg.MaxSpeed * dt
		p.position.Y += dir.Y * p.cfg.MaxSpeed * dt
		p.position.Z += dir.Z * p.cfg.MaxSpeed * dt
	}
	p.record(now)
	return p.position
}

func (p *Predictor) record(timestamp int64) {
	p.ring[p.head] = entry{timestamp: timestamp, position: p.position}
	p.head = (p.head + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
}

// Reconcile absorbs an authoritative correction stamped with the client
// timestamp it answers. Returns true when live state snapped.
//
// Corrections older than the trust window are applied outright with no
// history lookup. Otherwise history is searched for the nearest-timestamp
// entry; if the positional delta exceeds the threshold the live state
// snaps to the authoritative value and history at or before that
// timestamp is discarded, else the correction is noise and ignored.
func (p *Predictor) Reconcile(authoritative world.Vec3, timestamp, now int64) bool {
	if now-timestamp > p.cfg.TrustWindow.Milliseconds() {
		p.snap(authoritative, timestamp)
		return true
	}

	nearest, ok := p.nearest(timestamp)
	if !ok {
		p.snap(authoritative, timestamp)
		return true
	}

	if distance(nearest.position, authoritative) <= p.cfg.ReconcileThreshold {
		return false
	}

	p.snap(authoritative, timestamp)
	return true
}

func (p *Predictor) snap(position world.Vec3, timestamp int64) {
	p.position = position
	p.discardThrough(timestamp)
}

// nearest finds the history entry whose timestamp is closest to the
// requested one. Linear scan; the ring is small and scans are rare.
func (p *Predictor) nearest(timestamp int64) (entry, bool) {
	best := entry{}
	bestDelta := int64(math.MaxInt64)
	found := false
	for i := 0; i < p.count; i++ {
		e := p.at(i)
		delta := e.timestamp - timestamp
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			best = e
			found = true
		}
	}
	return best, found
}

// discardThrough drops entries at or before the timestamp; later entries
// remain so in-flight predictions survive a snap.
func (p *Predictor) discardThrough(timestamp int64) {
	kept := make([]entry, 0, p.count)
	for i := 0; i < p.count; i++ {
		e := p.at(i)
		if e.timestamp > timestamp {
			kept = append(kept, e)
		}
	}
	for i := range p.ring {
		p.ring[i] = entry{}
	}
	copy(p.ring, kept)
	p.head = len(kept) % len(p.ring)
	p.count = len(kept)
}

// at indexes history oldest-first.
func (p *Predictor) at(i int) entry {
	start := p.head - p.count
	if start < 0 {
		start += len(p.ring)
	}
	return p.ring[(start+i)%len(p.ring)]
}

// HistoryLen reports the live history size.
func (p *Predictor) HistoryLen() int {
	return p.count
}

func distance(a, b world.Vec3) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
