package ai

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"walnut-woods/server/internal/world"
)

const entityClearance = 0.8

// Engine owns a population of AI entities of one kind and advances their
// state machines once per room tick. All mutation happens inside Tick;
// callers only ever see copies.
type Engine struct {
	kind     Kind
	tuning   Tuning
	seed     int64
	rng      *rand.Rand
	bounds   world.Bounds
	entities map[string]*Entity
	nextID   uint64
}

// NewEngine builds an engine. The RNG is injected so behavior scripts are
// reproducible under test.
func NewEngine(kind Kind, seed int64, rng *rand.Rand, tuning Tuning) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}
	return &Engine{
		kind:     kind,
		tuning:   tuning,
		seed:     seed,
		rng:      rng,
		bounds:   world.DefaultBounds(),
		entities: make(map[string]*Entity),
	}
}

// Spawn creates an entity at the given x/z, snapped to the terrain, and
// returns a copy of it.
func (e *Engine) Spawn(species string, x, z float64) Entity {
	e.nextID++
	pos := world.SurfacePoint(e.seed, x, z, entityClearance)
	entity := &Entity{
		ID:       fmt.Sprintf("%s-%d", e.kind, e.nextID),
		Species:  species,
		Position: pos,
		State:    initialState(e.kind),
		Health:   100,
		home:     pos,
	}
	entity.wanderTarget = pos
	e.entities[entity.ID] = entity
	return *entity
}

func initialState(kind Kind) State {
	if kind == KindPredator {
		return StatePatrol
	}
	return StateIdle
}

// Remove despawns an entity.
func (e *Engine) Remove(id string) {
	delete(e.entities, id)
}

// Len returns the live entity count.
func (e *Engine) Len() int {
	return len(e.entities)
}

// Entities returns copies sorted by id for snapshots and broadcasts.
func (e *Engine) Entities() []Entity {
	out := make([]Entity, 0, len(e.entities))
	for _, entity := range e.entities {
		out = append(out, *entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tick advances every entity one step and returns the side effects the
// room actor must apply. dt is the tick interval in seconds.
func (e *Engine) Tick(tick uint64, dt float64, snap Snapshot) []Intent {
	if e == nil || len(e.entities) == 0 {
		return nil
	}

	ids := make([]string, 0, len(e.entities))
	for id := range e.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	intents := make([]Intent, 0, len(ids))
	for _, id := range ids {
		entity := e.entities[id]
		if entity.Health <= 0 {
			delete(e.entities, id)
			intents = append(intents, Intent{ActorID: id, Despawn: true})
			continue
		}

		var extra *Intent
		switch e.kind {
		case KindPredator:
			extra = e.runPredator(entity, tick, dt, snap)
		default:
			extra = e.runNPC(entity, tick, dt, snap)
		}

		intents = append(intents, Intent{
			ActorID: entity.ID,
			Move: &MoveIntent{
				Position: entity.Position,
				FacingY:  entity.FacingY,
				State:    entity.State,
			},
		})
		if extra != nil {
			intents = append(intents, *extra)
		}
	}
	return intents
}

// seek moves the entity toward target on x/z at the given speed, keeping
// it on the terrain surface. Reports arrival within the arrive radius.
func (e *Engine) seek(entity *Entity, target world.Vec3, speed, dt float64) bool {
	dx := target.X - entity.Position.X
	dz := target.Z - entity.Position.Z
	dist := math.Hypot(dx, dz)
	if dist <= e.tuning.ArriveRadius {
		return true
	}

	step := speed * dt
	if step > dist {
		step = dist
	}
	nx := entity.Position.X + dx/dist*step
	nz := entity.Position.Z + dz/dist*step

	margin := e.tuning.ArriveRadius
	half := e.bounds.HalfExtent - margin
	nx = clampF(nx, -half, half)
	nz = clampF(nz, -half, half)

	entity.Position = world.SurfacePoint(e.seed, nx, nz, entityClearance)
	entity.FacingY = math.Atan2(dx, dz)
	return false
}

// randomWanderTarget draws a point around home using the angle plus
// sqrt-radius draw so targets distribute evenly over the disc.
func (e *Engine) randomWanderTarget(entity *Entity) world.Vec3 {
	angle := e.rng.Float64() * 2 * math.Pi
	dist := e.tuning.WanderRadius * math.Sqrt(e.rng.Float64())
	half := e.bounds.HalfExtent - e.tuning.ArriveRadius
	x := clampF(entity.home.X+math.Cos(angle)*dist, -half, half)
	z := clampF(entity.home.Z+math.Sin(angle)*dist, -half, half)
	return world.SurfacePoint(e.seed, x, z, entityClearance)
}

func (e *Engine) randomIdleTicks() uint64 {
	min, max := e.tuning.IdleTicksMin, e.tuning.IdleTicksMax
	if max <= min {
		return min
	}
	return min + uint64(e.rng.Intn(int(max-min)+1))
}

func distanceXZ(a, b world.Vec3) float64 {
	return math.Hypot(b.X-a.X, b.Z-a.Z)
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
