package predict

import (
	"testing"

	"walnut-woods/server/internal/world"
)

func TestStepAdvancesWithSharedPhysics(t *testing.T) {
	p := New(DefaultConfig(), world.Vec3{})
	pos := p.Step(world.Vec3{X: 1}, 0.1, 100)

	want := DefaultConfig().MaxSpeed * 0.1
	if pos.X != want || pos.Y != 0 || pos.Z != 0 {
		t.Fatalf("stepped to %+v, want x=%f", pos, want)
	}
	if p.HistoryLen() != 1 {
		t.Fatalf("history len %d, want 1", p.HistoryLen())
	}
}

func TestStepNormalizesOversizedInput(t *testing.T) {
	p := New(DefaultConfig(), world.Vec3{})
	pos := p.Step(world.Vec3{X: 10, Z: 10}, 0.1, 100)

	dist := pos.X*pos.X + pos.Z*pos.Z
	limit := DefaultConfig().MaxSpeed * 0.1
	if dist > limit*limit+1e-9 {
		t.Fatalf("oversized input outran max speed: %+v", pos)
	}
}

func TestReconcileIgnoresNoise(t *testing.T) {
	p := New(DefaultConfig(), world.Vec3{})
	p.Step(world.Vec3{X: 1}, 0.1, 100)
	predicted := p.Position()

	// Authoritative value differs by less than the threshold.
	correction := world.Vec3{X: predicted.X + 0.1}
	if p.Reconcile(correction, 100, 150) {
		t.Fatal("noise correction snapped live state")
	}
	if p.Position() != predicted {
		t.Fatalf("position changed on ignored correction: %+v", p.Position())
	}
}

func TestReconcileSnapsOnDivergence(t *testing.T) {
	p := New(DefaultConfig(), world.Vec3{})
	p.Step(world.Vec3{X: 1}, 0.1, 100)
	p.Step(world.Vec3{X: 1}, 0.1, 116)
	p.Step(world.Vec3{X: 1}, 0.1, 133)

	correction := world.Vec3{X: 0.5, Z: 3}
	if !p.Reconcile(correction, 116, 150) {
		t.Fatal("large divergence did not snap")
	}
	if p.Position() != correction {
		t.Fatalf("live state %+v, want authoritative %+v", p.Position(), correction)
	}
	// History at or before the corrected timestamp is gone; the later
	// entry survives.
	if p.HistoryLen() != 1 {
		t.Fatalf("history len %d after snap, want 1", p.HistoryLen())
	}
}

func TestReconcileTrustsStaleCorrections(t *testing.T) {
	p := New(DefaultConfig(), world.Vec3{})
	p.Step(world.Vec3{X: 1}, 0.1, 100)

	// Way outside the trust window: applied outright even though the
	// delta is tiny.
	correction := p.Position()
	correction.X += 0.01
	if !p.Reconcile(correction, 100, 5000) {
		t.Fatal("stale correction was not trusted outright")
	}
	if p.Position() != correction {
		t.Fatalf("position %+v, want %+v", p.Position(), correction)
	}
}

func TestHistoryRingIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 8
	p := New(cfg, world.Vec3{})

	for i := 0; i < 100; i++ {
		p.Step(world.Vec3{X: 1}, 0.016, int64(i*16))
	}
	if p.HistoryLen() != 8 {
		t.Fatalf("history len %d, want bounded at 8", p.HistoryLen())
	}
}
