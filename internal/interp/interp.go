// Package interp smooths discrete peer updates into continuous motion
// for display. It is a pure consumer of the sync protocol: it never
// feeds state back to the server.
package interp

import (
	"math"
	"time"

	"walnut-woods/server/internal/world"
)

// Config holds the smoothing knobs.
type Config struct {
	// MaxSnapDistance snaps current to target immediately when a jump
	// exceeds it (post-reconnect teleports).
	MaxSnapDistance float64
	// ConvergenceRate is the fraction of the remaining gap closed per
	// second.
	ConvergenceRate float64
	// StaleAfter freezes interpolation when the target is older than
	// this, rather than extrapolating forever.
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSnapDistance: 8,
		ConvergenceRate: 10,
		StaleAfter:      2 * time.Second,
	}
}

// Pose is a display position plus facing.
type Pose struct {
	Position  world.Vec3
	RotationY float64
}

// Smoother tracks one remote entity's rendered and authoritative poses.
type Smoother struct {
	cfg        Config
	current    Pose
	target     Pose
	lastTarget time.Time
	hasTarget  bool
}

func NewSmoother(cfg Config, start Pose, now time.Time) *Smoother {
	return &Smoother{
		cfg:        cfg,
		current:    start,
		target:     start,
		lastTarget: now,
		hasTarget:  true,
	}
}

// Current returns the rendered pose.
func (s *Smoother) Current() Pose {
	return s.current
}

// SetTarget records a new authoritative pose. Jumps beyond the snap
// distance move current immediately.
func (s *Smoother) SetTarget(pose Pose, now time.Time) {
	if !s.hasTarget || distance(s.current.Position, pose.Position) > s.cfg.MaxSnapDistance {
		s.current = pose
	}
	s.target = pose
	s.lastTarget = now
	s.hasTarget = true
}

// Step advances current toward target for one render frame. Stale
// targets freeze the entity in place.
func (s *Smoother) Step(now time.Time, dt float64) Pose {
	if !s.hasTarget || dt <= 0 {
		return s.current
	}
	if now.Sub(s.lastTarget) > s.cfg.StaleAfter {
		return s.current
	}

	factor := s.cfg.ConvergenceRate * dt
	if factor > 1 {
		factor = 1
	}

	s.current.Position.X += (s.target.Position.X - s.current.Position.X) * factor
	s.current.Position.Y += (s.target.Position.Y - s.current.Position.Y) * factor
	s.current.Position.Z += (s.target.Position.Z - s.current.Position.Z) * factor
	s.current.RotationY = blendAngle(s.current.RotationY, s.target.RotationY, factor)

	return s.current
}

// blendAngle interpolates along the shortest arc so a peer turning from
// +179° to -179° rotates 2°, not 358°.
func blendAngle(from, to, factor float64) float64 {
	delta := math.Mod(to-from, 2*math.Pi)
	if delta > math.Pi {
		delta -= 2 * math.Pi
	} else if delta < -math.Pi {
		delta += 2 * math.Pi
	}
	result := from + delta*factor
	if result > math.Pi {
		result -= 2 * math.Pi
	} else if result < -math.Pi {
		result += 2 * math.Pi
	}
	return result
}

func distance(a, b world.Vec3) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
