package guard

import (
	"fmt"
	"math"
	"time"

	"walnut-woods/server/internal/world"
)

// ViolationKind enumerates the independent movement checks.
type ViolationKind string

const (
	ViolationUpdateRate ViolationKind = "update_rate"
	ViolationSpeed      ViolationKind = "speed"
	ViolationTeleport   ViolationKind = "teleport"
	ViolationBounds     ViolationKind = "bounds"
	ViolationClearance  ViolationKind = "terrain_clearance"
)

// Violation records a single failed check.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Detail string        `json:"detail,omitempty"`
	At     time.Time     `json:"at"`
}

// Config holds the movement limits shared with client prediction.
type Config struct {
	MinUpdateInterval time.Duration
	MaxSpeed          float64
	SpeedTolerance    float64
	MaxTeleport       float64
	MinClearance      float64
	MaxClearance      float64
	Bounds            world.Bounds
}

// DefaultConfig returns the limits used by standard rooms.
func DefaultConfig() Config {
	return Config{
		MinUpdateInterval: 30 * time.Millisecond,
		MaxSpeed:          20,
		SpeedTolerance:    1.5,
		MaxTeleport:       25,
		MinClearance:      0.5,
		MaxClearance:      3.0,
		Bounds:            world.DefaultBounds(),
	}
}

// Result is the outcome of validating one proposed position.
type Result struct {
	Accepted   bool
	Corrected  world.Vec3
	Violations []Violation
}

// Validate checks a proposed position against the previous authoritative
// one. Every check runs independently; nothing short-circuits. When any
// check fails the corrected position is the proposal clamped into all
// valid ranges at once rather than a revert to prev, which keeps honest
// clients smooth and bounds an exploiting client to one clamp range per
// update interval.
func Validate(cfg Config, seed int64, prev, next world.Vec3, dt time.Duration, now time.Time) Result {
	violations := make([]Violation, 0, 2)

	if dt < cfg.MinUpdateInterval {
		violations = append(violations, Violation{
			Kind:   ViolationUpdateRate,
			Detail: fmt.Sprintf("interval %s below minimum %s", dt, cfg.MinUpdateInterval),
			At:     now,
		})
	}

	displacement := distance3(prev, next)
	seconds := dt.Seconds()

	maxStep := cfg.MaxSpeed * cfg.SpeedTolerance * seconds
	if seconds > 0 && displacement > maxStep {
		violations = append(violations, Violation{
			Kind:   ViolationSpeed,
			Detail: fmt.Sprintf("moved %.2f in %.3fs, limit %.2f", displacement, seconds, maxStep),
			At:     now,
		})
	}

	if displacement > cfg.MaxTeleport {
		violations = append(violations, Violation{
			Kind:   ViolationTeleport,
			Detail: fmt.Sprintf("displacement %.2f exceeds ceiling %.2f", displacement, cfg.MaxTeleport),
			At:     now,
		})
	}

	half := cfg.Bounds.HalfExtent
	if next.X < -half || next.X > half || next.Z < -half || next.Z > half ||
		next.Y < cfg.Bounds.MinY || next.Y > cfg.Bounds.MaxY {
		violations = append(violations, Violation{
			Kind:   ViolationBounds,
			Detail: fmt.Sprintf("position (%.1f, %.1f, %.1f) outside world", next.X, next.Y, next.Z),
			At:     now,
		})
	}

	ground := world.TerrainHeight(seed, clampF(next.X, -half, half), clampF(next.Z, -half, half))
	if next.Y < ground+cfg.MinClearance || next.Y > ground+cfg.MaxClearance {
		violations = append(violations, Violation{
			Kind:   ViolationClearance,
			Detail: fmt.Sprintf("y %.2f outside [%.2f, %.2f]", next.Y, ground+cfg.MinClearance, ground+cfg.MaxClearance),
			At:     now,
		})
	}

	if len(violations) == 0 {
		return Result{Accepted: true, Corrected: next}
	}

	return Result{Accepted: false, Corrected: clampPosition(cfg, seed, prev, next, seconds), Violations: violations}
}

// clampPosition applies every range clamp simultaneously: displacement is
// scaled back toward prev to the tighter of the speed allowance and the
// teleport ceiling, then x/z/y are clamped into world bounds, then y into
// the terrain clearance band.
func clampPosition(cfg Config, seed int64, prev, next world.Vec3, seconds float64) world.Vec3 {
	allowed := cfg.MaxTeleport
	if seconds > 0 {
		if step := cfg.MaxSpeed * cfg.SpeedTolerance * seconds; step < allowed {
			allowed = step
		}
	}

	corrected := next
	if dist := distance3(prev, next); dist > allowed && dist > 0 {
		scale := allowed / dist
		corrected = world.Vec3{
			X: prev.X + (next.X-prev.X)*scale,
			Y: prev.Y + (next.Y-prev.Y)*scale,
			Z: prev.Z + (next.Z-prev.Z)*scale,
		}
	}

	half := cfg.Bounds.HalfExtent
	corrected.X = clampF(corrected.X, -half, half)
	corrected.Z = clampF(corrected.Z, -half, half)
	corrected.Y = clampF(corrected.Y, cfg.Bounds.MinY, cfg.Bounds.MaxY)

	ground := world.TerrainHeight(seed, corrected.X, corrected.Z)
	corrected.Y = clampF(corrected.Y, ground+cfg.MinClearance, ground+cfg.MaxClearance)

	return corrected
}

func distance3(a, b world.Vec3) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
