package anticheat

import (
	"context"

	"walnut-woods/server/logging"
)

const (
	// EventViolation is emitted for every rejected movement check.
	EventViolation logging.EventType = "anticheat.violation"
	// EventPlayerFlagged is emitted when a connection exceeds the
	// violation threshold inside the window.
	EventPlayerFlagged logging.EventType = "anticheat.player_flagged"
)

// ViolationPayload describes a single failed movement check.
type ViolationPayload struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// FlaggedPayload summarizes the window that tripped the flag.
type FlaggedPayload struct {
	Count         int     `json:"count"`
	WindowSeconds float64 `json:"windowSeconds"`
}

func Violation(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViolationPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventViolation,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAntiCheat,
		Payload:  payload,
	})
}

func PlayerFlagged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FlaggedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerFlagged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAntiCheat,
		Payload:  payload,
	})
}
