// Package config loads operator-authored tuning overrides from JSON.
// Every field is optional; zero values leave the built-in defaults in
// place. The types double as the source for the generated JSON schema
// used by editor tooling.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"walnut-woods/server/internal/room"
)

// MovementTuning overrides the movement validation limits.
type MovementTuning struct {
	MaxSpeed            float64 `json:"maxSpeed,omitempty" jsonschema:"title=Max speed,description=Maximum player speed in units per second,minimum=0"`
	SpeedTolerance      float64 `json:"speedTolerance,omitempty" jsonschema:"title=Speed tolerance,description=Multiplier applied to max speed before a movement is rejected,minimum=1"`
	MaxTeleport         float64 `json:"maxTeleport,omitempty" jsonschema:"title=Teleport ceiling,description=Largest single-update displacement accepted regardless of elapsed time,minimum=0"`
	MinUpdateIntervalMS int     `json:"minUpdateIntervalMs,omitempty" jsonschema:"title=Min update interval,description=Shortest accepted gap between movement updates in milliseconds,minimum=0"`
	MinClearance        float64 `json:"minClearance,omitempty" jsonschema:"title=Min terrain clearance,description=Lowest accepted height above the terrain surface"`
	MaxClearance        float64 `json:"maxClearance,omitempty" jsonschema:"title=Max terrain clearance,description=Highest accepted height above the terrain surface"`
}

// AntiCheatTuning overrides the violation flagging window.
type AntiCheatTuning struct {
	WindowSeconds float64 `json:"windowSeconds,omitempty" jsonschema:"title=Violation window,description=Sliding window over which violations accumulate in seconds,minimum=0"`
	FlagThreshold int     `json:"flagThreshold,omitempty" jsonschema:"title=Flag threshold,description=Violation count inside the window that flags a connection,minimum=1"`
}

// PopulationTuning overrides the AI entity counts per room.
type PopulationTuning struct {
	NPCCount      int `json:"npcCount,omitempty" jsonschema:"title=Gatherer count,description=Friendly gatherer NPCs spawned per room,minimum=0"`
	PredatorCount int `json:"predatorCount,omitempty" jsonschema:"title=Predator count,description=Predators spawned per room,minimum=0"`
}

// ChatTuning overrides the per-connection chat rate limit.
type ChatTuning struct {
	Burst         int     `json:"burst,omitempty" jsonschema:"title=Chat burst,description=Messages accepted inside one window before rate limiting,minimum=1"`
	WindowSeconds float64 `json:"windowSeconds,omitempty" jsonschema:"title=Chat window,description=Sliding window for the chat rate limit in seconds,minimum=0"`
}

// FileTuning represents the contents of config/tuning.json.
type FileTuning struct {
	TickRate                int              `json:"tickRate,omitempty" jsonschema:"title=Tick rate,description=Room simulation ticks per second,minimum=5,maximum=20"`
	DisconnectAfterSeconds  float64          `json:"disconnectAfterSeconds,omitempty" jsonschema:"title=Disconnect threshold,description=Seconds of silence before a connection is marked disconnected,minimum=0"`
	RemoveAfterSeconds      float64          `json:"removeAfterSeconds,omitempty" jsonschema:"title=Removal threshold,description=Seconds of silence before a player record is removed,minimum=0"`
	Movement                MovementTuning   `json:"movement,omitempty" jsonschema:"title=Movement limits"`
	AntiCheat               AntiCheatTuning  `json:"antiCheat,omitempty" jsonschema:"title=Anti-cheat flagging"`
	Population              PopulationTuning `json:"population,omitempty" jsonschema:"title=AI population"`
	Chat                    ChatTuning       `json:"chat,omitempty" jsonschema:"title=Chat rate limit"`
}

// Load reads a tuning file. A missing file is not an error; it returns
// the zero tuning, which applies no overrides.
func Load(path string) (FileTuning, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return FileTuning{}, nil
	}
	if err != nil {
		return FileTuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	var tuning FileTuning
	if err := json.Unmarshal(data, &tuning); err != nil {
		return FileTuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return tuning, nil
}

// Apply overlays the non-zero overrides onto a room configuration.
func (t FileTuning) Apply(cfg room.Config) room.Config {
	if t.TickRate > 0 {
		cfg.TickRate = t.TickRate
	}
	if t.DisconnectAfterSeconds > 0 {
		cfg.DisconnectAfter = time.Duration(t.DisconnectAfterSeconds * float64(time.Second))
	}
	if t.RemoveAfterSeconds > 0 {
		cfg.RemoveAfter = time.Duration(t.RemoveAfterSeconds * float64(time.Second))
	}

	if t.Movement.MaxSpeed > 0 {
		cfg.Guard.MaxSpeed = t.Movement.MaxSpeed
	}
	if t.Movement.SpeedTolerance > 0 {
		cfg.Guard.SpeedTolerance = t.Movement.SpeedTolerance
	}
	if t.Movement.MaxTeleport > 0 {
		cfg.Guard.MaxTeleport = t.Movement.MaxTeleport
	}
	if t.Movement.MinUpdateIntervalMS > 0 {
		cfg.Guard.MinUpdateInterval = time.Duration(t.Movement.MinUpdateIntervalMS) * time.Millisecond
	}
	if t.Movement.MinClearance != 0 {
		cfg.Guard.MinClearance = t.Movement.MinClearance
	}
	if t.Movement.MaxClearance != 0 {
		cfg.Guard.MaxClearance = t.Movement.MaxClearance
	}

	if t.AntiCheat.WindowSeconds > 0 {
		cfg.ViolationWindow = time.Duration(t.AntiCheat.WindowSeconds * float64(time.Second))
	}
	if t.AntiCheat.FlagThreshold > 0 {
		cfg.FlagThreshold = t.AntiCheat.FlagThreshold
	}

	if t.Population.NPCCount > 0 {
		cfg.NPCCount = t.Population.NPCCount
	}
	if t.Population.PredatorCount > 0 {
		cfg.PredatorCount = t.Population.PredatorCount
	}

	if t.Chat.Burst > 0 {
		cfg.ChatBurst = t.Chat.Burst
	}
	if t.Chat.WindowSeconds > 0 {
		cfg.ChatWindow = time.Duration(t.Chat.WindowSeconds * float64(time.Second))
	}

	return cfg
}
