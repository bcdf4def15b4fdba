package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"walnut-woods/server/internal/room"
)

func TestLoadMissingFileYieldsNoOverrides(t *testing.T) {
	tuning, err := Load(filepath.Join(t.TempDir(), "tuning.json"))
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}

	base := room.DefaultConfig("r", 1)
	applied := tuning.Apply(base)
	if applied.TickRate != base.TickRate || applied.Guard.MaxSpeed != base.Guard.MaxSpeed {
		t.Fatalf("zero tuning changed defaults: %+v", applied)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed tuning file accepted")
	}
}

func TestApplyOverlaysOnlyProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	body := `{
		"tickRate": 20,
		"disconnectAfterSeconds": 30,
		"movement": {"maxSpeed": 12.5, "minUpdateIntervalMs": 50},
		"antiCheat": {"flagThreshold": 10},
		"population": {"predatorCount": 4},
		"chat": {"burst": 2, "windowSeconds": 5}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	tuning, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := tuning.Apply(room.DefaultConfig("r", 1))

	if cfg.TickRate != 20 {
		t.Fatalf("tick rate = %d, want 20", cfg.TickRate)
	}
	if cfg.DisconnectAfter != 30*time.Second {
		t.Fatalf("disconnect after = %s, want 30s", cfg.DisconnectAfter)
	}
	if cfg.Guard.MaxSpeed != 12.5 {
		t.Fatalf("max speed = %v, want 12.5", cfg.Guard.MaxSpeed)
	}
	if cfg.Guard.MinUpdateInterval != 50*time.Millisecond {
		t.Fatalf("min interval = %s, want 50ms", cfg.Guard.MinUpdateInterval)
	}
	if cfg.FlagThreshold != 10 {
		t.Fatalf("flag threshold = %d, want 10", cfg.FlagThreshold)
	}
	if cfg.PredatorCount != 4 {
		t.Fatalf("predator count = %d, want 4", cfg.PredatorCount)
	}
	if cfg.ChatBurst != 2 || cfg.ChatWindow != 5*time.Second {
		t.Fatalf("chat limit = %d/%s", cfg.ChatBurst, cfg.ChatWindow)
	}

	// Fields the file omits keep their defaults.
	base := room.DefaultConfig("r", 1)
	if cfg.Guard.MaxTeleport != base.Guard.MaxTeleport {
		t.Fatalf("teleport ceiling drifted to %v", cfg.Guard.MaxTeleport)
	}
	if cfg.NPCCount != base.NPCCount {
		t.Fatalf("npc count drifted to %d", cfg.NPCCount)
	}
}
