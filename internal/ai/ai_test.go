package ai

import (
	"math/rand"
	"testing"

	"walnut-woods/server/internal/world"
)

const (
	testSeed = int64(7)
	testDT   = 0.1
)

func newTestEngine(kind Kind) *Engine {
	tuning := NPCTuning()
	if kind == KindPredator {
		tuning = PredatorTuning()
	}
	return NewEngine(kind, testSeed, rand.New(rand.NewSource(1)), tuning)
}

func playerAt(id string, x, z float64, carried int) PlayerView {
	return PlayerView{
		ID:        id,
		Position:  world.SurfacePoint(testSeed, x, z, 1),
		Carried:   carried,
		Connected: true,
	}
}

func tickUntil(t *testing.T, e *Engine, snap func() Snapshot, maxTicks int, done func(Entity, []Intent) bool) {
	t.Helper()
	for tick := uint64(1); tick <= uint64(maxTicks); tick++ {
		s := snap()
		s.Tick = tick
		intents := e.Tick(tick, testDT, s)
		for _, entity := range e.Entities() {
			if done(entity, intents) {
				return
			}
		}
	}
	t.Fatalf("condition not reached within %d ticks", maxTicks)
}

func TestPredatorAcquiresAndAttacks(t *testing.T) {
	e := newTestEngine(KindPredator)
	e.Spawn("hawk", 0, 0)

	snap := func() Snapshot {
		return Snapshot{Players: []PlayerView{playerAt("p1", 1, 0, 3)}}
	}

	var attack *AttackIntent
	tickUntil(t, e, snap, 100, func(entity Entity, intents []Intent) bool {
		for _, intent := range intents {
			if intent.Attack != nil {
				attack = intent.Attack
			}
		}
		return attack != nil
	})

	if attack.TargetID != "p1" {
		t.Fatalf("attacked %s, want p1", attack.TargetID)
	}
	if attack.StealWalnuts != PredatorTuning().StealCount {
		t.Fatalf("steal count %d, want %d", attack.StealWalnuts, PredatorTuning().StealCount)
	}
	if attack.Damage != PredatorTuning().AttackDamage {
		t.Fatalf("damage %f, want %f", attack.Damage, PredatorTuning().AttackDamage)
	}

	entity := e.Entities()[0]
	if entity.State != StateReturning {
		t.Fatalf("post-attack state %s, want %s", entity.State, StateReturning)
	}
}

func TestPredatorPrefersLoadedPlayer(t *testing.T) {
	e := newTestEngine(KindPredator)
	e.Spawn("fox", 0, 0)

	// The empty player is closer, but the loaded one scores higher:
	// (1+0)/5 = 0.2 versus (1+8)/20 = 0.45.
	snap := Snapshot{Tick: 1, Players: []PlayerView{
		playerAt("empty", 5, 0, 0),
		playerAt("loaded", 20, 0, 8),
	}}

	e.Tick(1, testDT, snap)
	entity := e.Entities()[0]
	if entity.State != StateTargeting {
		t.Fatalf("state %s, want %s", entity.State, StateTargeting)
	}
	if entity.TargetID != "loaded" {
		t.Fatalf("target %s, want loaded", entity.TargetID)
	}
}

func TestPredatorGiveUpWalksHomeThenPatrols(t *testing.T) {
	e := newTestEngine(KindPredator)
	e.Spawn("hawk", 0, 0)

	near := Snapshot{Players: []PlayerView{playerAt("p1", 30, 0, 1)}}
	far := Snapshot{Players: []PlayerView{playerAt("p1", 200, 0, 1)}}

	near.Tick = 1
	e.Tick(1, testDT, near)
	if got := e.Entities()[0].State; got != StateTargeting {
		t.Fatalf("state %s after acquisition, want %s", got, StateTargeting)
	}

	far.Tick = 2
	e.Tick(2, testDT, far)
	if got := e.Entities()[0].State; got != StateReturning {
		t.Fatalf("state %s after target loss, want %s", got, StateReturning)
	}

	// The chase barely moved it; returning home resolves within a few
	// ticks and patrol resumes.
	sawPatrol := false
	for tick := uint64(3); tick < 200; tick++ {
		far.Tick = tick
		e.Tick(tick, testDT, far)
		if e.Entities()[0].State == StatePatrol {
			sawPatrol = true
			break
		}
	}
	if !sawPatrol {
		t.Fatal("predator never resumed patrol after returning")
	}
}

func TestPredatorRespectsCooldown(t *testing.T) {
	e := newTestEngine(KindPredator)
	e.Spawn("hawk", 0, 0)
	snap := func() Snapshot {
		return Snapshot{Players: []PlayerView{playerAt("p1", 1, 0, 2)}}
	}

	attacks := 0
	var attackTick, retargetTick uint64
	for tick := uint64(1); tick <= 60; tick++ {
		s := snap()
		s.Tick = tick
		for _, intent := range e.Tick(tick, testDT, s) {
			if intent.Attack != nil {
				attacks++
				attackTick = tick
			}
		}
		if attacks == 1 && e.Entities()[0].State == StateTargeting && retargetTick == 0 {
			retargetTick = tick
		}
	}
	if attacks == 0 {
		t.Fatal("no attack issued")
	}
	if retargetTick != 0 && retargetTick < attackTick+PredatorTuning().CooldownTicks {
		t.Fatalf("retargeted at tick %d, cooldown ends at %d", retargetTick, attackTick+PredatorTuning().CooldownTicks)
	}
}

func TestNPCGathersNearbyWalnut(t *testing.T) {
	e := newTestEngine(KindNPC)
	e.Spawn("squirrel-helper", 0, 0)

	walnut := WalnutView{ID: "walnut-sys-1", Position: world.SurfacePoint(testSeed, 4, 0, 0)}
	snap := func() Snapshot {
		return Snapshot{Walnuts: []WalnutView{walnut}}
	}

	var gathered string
	tickUntil(t, e, snap, 400, func(entity Entity, intents []Intent) bool {
		for _, intent := range intents {
			if intent.Gather != nil {
				gathered = intent.Gather.WalnutID
			}
		}
		return gathered != ""
	})

	if gathered != "walnut-sys-1" {
		t.Fatalf("gathered %s, want walnut-sys-1", gathered)
	}
	if got := e.Entities()[0].State; got != StateReturning {
		t.Fatalf("post-gather state %s, want %s", got, StateReturning)
	}
}

func TestNPCAbandonsFoundWalnut(t *testing.T) {
	e := newTestEngine(KindNPC)
	e.Spawn("squirrel-helper", 0, 0)

	available := Snapshot{Walnuts: []WalnutView{{ID: "w1", Position: world.SurfacePoint(testSeed, 10, 0, 0)}}}
	taken := Snapshot{Walnuts: []WalnutView{{ID: "w1", Position: world.SurfacePoint(testSeed, 10, 0, 0), Found: true}}}

	// Idle delay first, then patrol acquisition.
	approached := false
	for tick := uint64(1); tick <= 200; tick++ {
		available.Tick = tick
		e.Tick(tick, testDT, available)
		if e.Entities()[0].State == StateApproach {
			approached = true
			taken.Tick = tick + 1
			e.Tick(tick+1, testDT, taken)
			break
		}
	}
	if !approached {
		t.Fatal("NPC never approached the walnut")
	}
	if got := e.Entities()[0].State; got != StateReturning {
		t.Fatalf("state %s after walnut was found, want %s", got, StateReturning)
	}
}

func TestEngineDespawnsDeadEntities(t *testing.T) {
	e := newTestEngine(KindPredator)
	spawned := e.Spawn("hawk", 0, 0)

	e.entities[spawned.ID].Health = 0
	intents := e.Tick(1, testDT, Snapshot{Tick: 1})

	if e.Len() != 0 {
		t.Fatalf("dead entity still registered, count %d", e.Len())
	}
	if len(intents) != 1 || !intents[0].Despawn {
		t.Fatalf("expected a despawn intent, got %+v", intents)
	}
}

func TestEngineStatesStayEnumerated(t *testing.T) {
	e := newTestEngine(KindPredator)
	e.Spawn("hawk", 10, 10)
	valid := map[State]bool{
		StateIdle: true, StatePatrol: true, StateApproach: true, StateGather: true,
		StateTargeting: true, StateAttack: true, StateReturning: true,
	}

	snap := Snapshot{Players: []PlayerView{playerAt("p1", 12, 10, 1)}}
	for tick := uint64(1); tick <= 300; tick++ {
		snap.Tick = tick
		e.Tick(tick, testDT, snap)
		for _, entity := range e.Entities() {
			if !valid[entity.State] {
				t.Fatalf("entity in unknown state %q at tick %d", entity.State, tick)
			}
		}
	}
}
