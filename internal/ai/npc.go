package ai

// Cooperative gatherers: Idle -> Patrol -> Approach -> Gather -> Returning
// -> Idle. They hunt unfound system walnuts and score candidates by
// distance alone.

func (e *Engine) runNPC(entity *Entity, tick uint64, dt float64, snap Snapshot) *Intent {
	switch entity.State {
	case StateIdle:
		if tick >= entity.nextWanderTick {
			entity.wanderTarget = e.randomWanderTarget(entity)
			entity.enter(StatePatrol, tick)
		}

	case StatePatrol:
		if target, ok := e.acquireWalnut(entity, snap); ok {
			entity.TargetID = target
			entity.enter(StateApproach, tick)
			break
		}
		if e.seek(entity, entity.wanderTarget, e.tuning.MoveSpeed, dt) {
			entity.nextWanderTick = tick + e.randomIdleTicks()
			entity.enter(StateIdle, tick)
		}

	case StateApproach:
		target, ok := walnutByID(snap, entity.TargetID)
		if !ok || target.Found || distanceXZ(entity.Position, target.Position) > e.tuning.GiveUpRange {
			entity.TargetID = ""
			entity.enter(StateReturning, tick)
			break
		}
		if e.seek(entity, target.Position, e.tuning.ChaseSpeed, dt) ||
			distanceXZ(entity.Position, target.Position) <= e.tuning.ActionRadius {
			entity.enter(StateGather, tick)
		}

	case StateGather:
		target, ok := walnutByID(snap, entity.TargetID)
		if !ok || target.Found {
			entity.TargetID = ""
			entity.enter(StateReturning, tick)
			break
		}
		if entity.StateAge(tick) >= e.tuning.ActionTicks {
			walnutID := entity.TargetID
			entity.TargetID = ""
			entity.enter(StateReturning, tick)
			return &Intent{ActorID: entity.ID, Gather: &GatherIntent{WalnutID: walnutID}}
		}

	case StateReturning:
		if e.seek(entity, entity.home, e.tuning.MoveSpeed, dt) {
			entity.nextWanderTick = tick + e.randomIdleTicks()
			entity.enter(StateIdle, tick)
		}

	default:
		entity.enter(StateIdle, tick)
	}
	return nil
}

// acquireWalnut picks the highest-scoring unfound walnut inside the
// detection radius; NPCs score by inverse distance, so nearest wins.
func (e *Engine) acquireWalnut(entity *Entity, snap Snapshot) (string, bool) {
	bestScore := 0.0
	bestID := ""
	for _, w := range snap.Walnuts {
		if w.Found {
			continue
		}
		dist := distanceXZ(entity.Position, w.Position)
		if dist > e.tuning.DetectionRadius {
			continue
		}
		if dist < 0.001 {
			dist = 0.001
		}
		score := 1 / dist
		if score > bestScore {
			bestScore = score
			bestID = w.ID
		}
	}
	return bestID, bestID != ""
}

func walnutByID(snap Snapshot, id string) (WalnutView, bool) {
	for _, w := range snap.Walnuts {
		if w.ID == id {
			return w, true
		}
	}
	return WalnutView{}, false
}
