package ai

// Adversarial predators: Patrol -> Targeting -> Attack -> Returning ->
// Patrol. They hunt connected players and score candidates by carried
// walnut count weighted by inverse distance, so a loaded squirrel nearby
// beats an empty one next door.

func (e *Engine) runPredator(entity *Entity, tick uint64, dt float64, snap Snapshot) *Intent {
	switch entity.State {
	case StatePatrol:
		if tick >= entity.cooldownUntil {
			if target, ok := e.acquirePlayer(entity, snap); ok {
				entity.TargetID = target
				entity.enter(StateTargeting, tick)
				break
			}
		}
		if e.seek(entity, entity.wanderTarget, e.tuning.MoveSpeed, dt) {
			entity.wanderTarget = e.randomWanderTarget(entity)
		}

	case StateTargeting:
		target, ok := playerByID(snap, entity.TargetID)
		lost := !ok || !target.Connected ||
			distanceXZ(entity.Position, target.Position) > e.tuning.GiveUpRange ||
			entity.StateAge(tick) > e.tuning.TargetingTicks
		if lost {
			entity.TargetID = ""
			entity.enter(StateReturning, tick)
			break
		}
		e.seek(entity, target.Position, e.tuning.ChaseSpeed, dt)
		if distanceXZ(entity.Position, target.Position) <= e.tuning.ActionRadius {
			entity.enter(StateAttack, tick)
		}

	case StateAttack:
		target, ok := playerByID(snap, entity.TargetID)
		if !ok || !target.Connected || distanceXZ(entity.Position, target.Position) > e.tuning.ActionRadius*2 {
			entity.TargetID = ""
			entity.enter(StateReturning, tick)
			break
		}
		if entity.StateAge(tick) >= e.tuning.ActionTicks {
			targetID := entity.TargetID
			entity.TargetID = ""
			entity.cooldownUntil = tick + e.tuning.CooldownTicks
			entity.enter(StateReturning, tick)
			return &Intent{ActorID: entity.ID, Attack: &AttackIntent{
				TargetID:     targetID,
				StealWalnuts: e.tuning.StealCount,
				Damage:       e.tuning.AttackDamage,
			}}
		}

	case StateReturning:
		if e.seek(entity, entity.home, e.tuning.MoveSpeed, dt) {
			entity.wanderTarget = e.randomWanderTarget(entity)
			entity.enter(StatePatrol, tick)
		}

	default:
		entity.enter(StatePatrol, tick)
	}
	return nil
}

// acquirePlayer picks the highest-scoring connected player inside the
// detection radius. Score is (1 + carried walnuts) / distance.
func (e *Engine) acquirePlayer(entity *Entity, snap Snapshot) (string, bool) {
	bestScore := 0.0
	bestID := ""
	for _, p := range snap.Players {
		if !p.Connected {
			continue
		}
		dist := distanceXZ(entity.Position, p.Position)
		if dist > e.tuning.DetectionRadius {
			continue
		}
		if dist < 0.001 {
			dist = 0.001
		}
		score := float64(1+p.Carried) / dist
		if score > bestScore {
			bestScore = score
			bestID = p.ID
		}
	}
	return bestID, bestID != ""
}

func playerByID(snap Snapshot, id string) (PlayerView, bool) {
	for _, p := range snap.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}
