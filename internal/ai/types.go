package ai

import "walnut-woods/server/internal/world"

// State enumerates every behavior state an engine may hold. Transitions
// happen only inside that engine's own Tick.
type State string

const (
	StateIdle      State = "idle"
	StatePatrol    State = "patrol"
	StateApproach  State = "approach"
	StateGather    State = "gather"
	StateTargeting State = "targeting"
	StateAttack    State = "attack"
	StateReturning State = "returning"
)

// Kind distinguishes cooperative NPCs from adversarial predators.
type Kind string

const (
	KindNPC      Kind = "npc"
	KindPredator Kind = "predator"
)

// PlayerView is the read-only slice of a player the engines may see.
type PlayerView struct {
	ID        string
	Position  world.Vec3
	Carried   int
	Connected bool
}

// WalnutView is the read-only slice of a walnut the engines may see.
type WalnutView struct {
	ID       string
	Position world.Vec3
	Found    bool
}

// Snapshot is the world as of one tick. Engines never receive mutable
// references to room state.
type Snapshot struct {
	Tick    uint64
	Players []PlayerView
	Walnuts []WalnutView
}

// Entity is an AI-driven actor owned by its engine.
type Entity struct {
	ID         string     `json:"id"`
	Species    string     `json:"species"`
	Position   world.Vec3 `json:"position"`
	FacingY    float64    `json:"rotationY"`
	State      State      `json:"state"`
	Health     float64    `json:"health"`
	TargetID   string     `json:"-"`
	stateSince     uint64
	wanderTarget   world.Vec3
	nextWanderTick uint64
	cooldownUntil  uint64
	home           world.Vec3
}

// StateAge returns how many ticks the entity has held its current state.
func (e *Entity) StateAge(tick uint64) uint64 {
	if tick < e.stateSince {
		return 0
	}
	return tick - e.stateSince
}

func (e *Entity) enter(state State, tick uint64) {
	e.State = state
	e.stateSince = tick
}

// Intent is an engine's requested side effect for one tick. Engines never
// touch connection state; the room actor reads intents and applies them.
type Intent struct {
	ActorID string
	Move    *MoveIntent
	Attack  *AttackIntent
	Gather  *GatherIntent
	Despawn bool
}

// MoveIntent reports the entity's new pose for broadcast.
type MoveIntent struct {
	Position world.Vec3
	FacingY  float64
	State    State
}

// AttackIntent asks the room to apply damage and steal carried walnuts.
type AttackIntent struct {
	TargetID     string
	StealWalnuts int
	Damage       float64
}

// GatherIntent asks the room to mark a system walnut as gathered.
type GatherIntent struct {
	WalnutID string
}

// Tuning holds the shared FSM knobs. NPC and predator engines use the
// same shape with different values.
type Tuning struct {
	MoveSpeed       float64
	ChaseSpeed      float64
	DetectionRadius float64
	ActionRadius    float64
	GiveUpRange     float64
	WanderRadius    float64
	ArriveRadius    float64
	IdleTicksMin    uint64
	IdleTicksMax    uint64
	ActionTicks     uint64
	TargetingTicks  uint64
	CooldownTicks   uint64
	AttackDamage    float64
	StealCount      int
}

// NPCTuning returns the defaults for cooperative gatherer NPCs.
func NPCTuning() Tuning {
	return Tuning{
		MoveSpeed:       4,
		ChaseSpeed:      6,
		DetectionRadius: 30,
		ActionRadius:    1.5,
		GiveUpRange:     60,
		WanderRadius:    40,
		ArriveRadius:    1.0,
		IdleTicksMin:    20,
		IdleTicksMax:    60,
		ActionTicks:     30,
		TargetingTicks:  200,
		CooldownTicks:   0,
	}
}

// PredatorTuning returns the defaults for hawks and foxes.
func PredatorTuning() Tuning {
	return Tuning{
		MoveSpeed:       5,
		ChaseSpeed:      9,
		DetectionRadius: 45,
		ActionRadius:    2.0,
		GiveUpRange:     70,
		WanderRadius:    60,
		ArriveRadius:    1.0,
		IdleTicksMin:    10,
		IdleTicksMax:    40,
		ActionTicks:     10,
		TargetingTicks:  150,
		CooldownTicks:   80,
		AttackDamage:    10,
		StealCount:      1,
	}
}
