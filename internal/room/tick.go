package room

import (
	"context"
	"time"

	"walnut-woods/server/internal/ai"
	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/store"
	"walnut-woods/server/internal/world"
	"walnut-woods/server/logging"
	loglifecycle "walnut-woods/server/logging/lifecycle"
)

// runTick advances the room one step: AI, disconnect sweep, periodic
// metrics. The wake timer re-arms only while connections remain, so an
// empty room costs nothing.
func (r *Room) runTick() {
	started := r.clock()
	r.tick++

	snap := r.aiSnapshot()
	dt := r.tickInterval().Seconds()
	r.applyIntents(r.npcs.Tick(r.tick, dt, snap))
	r.applyIntents(r.predators.Tick(r.tick, dt, snap))
	r.maintainPopulation()
	r.broadcastEntities()

	r.sweepConnections(started)

	if r.tick%metricsEveryTicks == 0 {
		r.flushMetrics()
	}

	r.counters.RecordTick(r.clock().Sub(started))

	if r.registry.len() > 0 {
		r.armTimer()
		return
	}
	loglifecycle.RoomIdle(context.Background(), r.pub, r.tick, r.cfg.ID)
	if r.cfg.OnEmpty != nil {
		r.cfg.OnEmpty(r.cfg.ID)
	}
}

// aiSnapshot builds the read-only world view handed to the engines.
func (r *Room) aiSnapshot() ai.Snapshot {
	players := make([]ai.PlayerView, 0, r.registry.len())
	for _, p := range r.registry.ordered() {
		players = append(players, ai.PlayerView{
			ID:        p.id,
			Position:  p.position,
			Carried:   p.carried,
			Connected: !p.disconnected,
		})
	}
	walnuts := make([]ai.WalnutView, 0, len(r.walnuts))
	for _, w := range r.walnuts {
		walnuts = append(walnuts, ai.WalnutView{ID: w.ID, Position: w.Position, Found: w.Found})
	}
	return ai.Snapshot{Tick: r.tick, Players: players, Walnuts: walnuts}
}

// applyIntents is the only place engine side effects touch room state.
// Engines never mutate connections themselves.
func (r *Room) applyIntents(intents []ai.Intent) {
	for _, intent := range intents {
		switch {
		case intent.Attack != nil:
			r.applyAttack(intent.ActorID, intent.Attack)
		case intent.Gather != nil:
			r.applyGather(intent.ActorID, intent.Gather)
		case intent.Despawn:
			r.broadcast("", proto.NPCDespawned{Type: proto.KindNPCDespawned, ID: intent.ActorID})
		}
	}
}

func (r *Room) applyAttack(actorID string, attack *ai.AttackIntent) {
	p, ok := r.registry.get(attack.TargetID)
	if !ok {
		return
	}
	stolen := attack.StealWalnuts
	if stolen > p.carried {
		stolen = p.carried
	}
	p.carried -= stolen
	r.pub.Publish(context.Background(), logging.Event{
		Type:     "predator.attack",
		Tick:     r.tick,
		Actor:    logging.EntityRef{ID: actorID, Kind: logging.EntityKindPredator},
		Targets:  []logging.EntityRef{{ID: p.id, Kind: logging.EntityKindPlayer}},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  map[string]any{"stolen": stolen, "damage": attack.Damage},
	})
}

func (r *Room) applyGather(actorID string, gather *ai.GatherIntent) {
	w, ok := r.byWalnut[gather.WalnutID]
	if !ok || w.Found {
		return
	}
	w.Found = true
	r.counters.RecordWalnutFound()
	r.persistWorld(false)
	r.broadcast("", proto.WalnutFound{
		Type:     proto.KindWalnutFound,
		WalnutID: w.ID,
		FinderID: actorID,
	})
}

// maintainPopulation replaces despawned entities so the configured
// populations hold. Replacements are announced with npc_spawned.
func (r *Room) maintainPopulation() {
	for r.npcs.Len() < r.cfg.NPCCount {
		r.broadcast("", proto.NPCSpawned{Type: proto.KindNPCSpawned, NPC: r.spawnNPC()})
	}
	for r.predators.Len() < r.cfg.PredatorCount {
		r.broadcast("", proto.NPCSpawned{Type: proto.KindNPCSpawned, NPC: r.spawnPredator()})
	}
}

func (r *Room) broadcastEntities() {
	entities := append(r.npcs.Entities(), r.predators.Entities()...)
	if len(entities) == 0 {
		return
	}
	r.broadcast("", proto.NPCUpdate{Type: proto.KindNPCUpdate, NPCs: entities})
}

// sweepConnections marks silent connections disconnected, then removes
// those past the removal window. Failed channels are pruned here too, so
// one bad write never blocks delivery to the rest.
func (r *Room) sweepConnections(now time.Time) {
	for _, p := range r.registry.ordered() {
		if p.sendFailed {
			r.removePlayer(p, "send_failed")
			continue
		}

		idle := now.Sub(p.lastActivity)
		r.updateQuality(p, now)

		if idle > r.cfg.RemoveAfter {
			r.removePlayer(p, "timeout")
			continue
		}
		if idle > r.cfg.DisconnectAfter && !p.disconnected {
			// Marked, not removed: a reconnect inside the removal
			// window resumes this PlayerConnection silently.
			p.disconnected = true
			r.broadcast(p.id, proto.PlayerDisconnected{Type: proto.KindPlayerDisconnected, ID: p.id})
		}
	}
}

func (r *Room) removePlayer(p *playerConn, reason string) {
	if p.conn != nil {
		p.conn.Close()
	}
	r.registry.remove(p.id)
	r.persistPosition(p)
	loglifecycle.PlayerDisconnected(context.Background(), r.pub, r.tick,
		logging.EntityRef{ID: p.id, Kind: logging.EntityKindPlayer},
		loglifecycle.PlayerDisconnectedPayload{Reason: reason})
	r.broadcast(p.id, proto.PlayerLeave{Type: proto.KindPlayerLeave, ID: p.id})
}

func (r *Room) flushMetrics() {
	st := r.cfg.Store
	if st == nil {
		return
	}
	if err := st.PutBatched(store.MetricsKey(r.cfg.ID), r.counters.Snapshot()); err != nil {
		r.storageWarn(err)
	}
	if err := st.LastError(); err != nil {
		r.storageWarn(err)
	}
}

// sendTo encodes and delivers one message to one connection. A write
// failure queues the connection for removal on the next sweep.
func (r *Room) sendTo(p *playerConn, msg any) {
	if p.conn == nil {
		return
	}
	data, err := proto.Encode(msg)
	if err != nil {
		r.logger.Printf("room %s: encode for %s: %v", r.cfg.ID, p.id, err)
		return
	}
	if err := p.conn.Send(data); err != nil {
		p.sendFailed = true
		return
	}
	r.counters.RecordBroadcast(len(data), 1)
}

// broadcast delivers one message to every live connection except the
// sender. Disconnected-marked connections are skipped.
func (r *Room) broadcast(excludeID string, msg any) {
	data, err := proto.Encode(msg)
	if err != nil {
		r.logger.Printf("room %s: encode broadcast: %v", r.cfg.ID, err)
		return
	}
	for _, p := range r.registry.ordered() {
		if p.id == excludeID || p.disconnected || p.conn == nil {
			continue
		}
		if err := p.conn.Send(data); err != nil {
			p.sendFailed = true
			continue
		}
		r.counters.RecordBroadcast(len(data), 1)
	}
}

// handleResetWorld regenerates the map in place and pushes a fresh
// world_state to everyone.
func (r *Room) handleResetWorld() {
	objects, walnuts := world.Generate(world.DefaultGenConfig(r.cfg.Seed))
	r.objects = objects
	r.walnuts = nil
	r.byWalnut = make(map[string]*world.Walnut)
	for i := range walnuts {
		w := walnuts[i]
		r.addWalnut(&w)
	}
	r.persistWorld(true)

	// A fresh map gets a fresh population; clients see explicit
	// despawn/spawn pairs rather than entities silently relocating.
	for _, e := range r.npcs.Entities() {
		r.npcs.Remove(e.ID)
		r.broadcast("", proto.NPCDespawned{Type: proto.KindNPCDespawned, ID: e.ID})
	}
	for _, e := range r.predators.Entities() {
		r.predators.Remove(e.ID)
		r.broadcast("", proto.NPCDespawned{Type: proto.KindNPCDespawned, ID: e.ID})
	}
	r.maintainPopulation()

	for _, p := range r.registry.ordered() {
		r.sendTo(p, r.worldState(p.position, p.rotationY))
	}
}

// handleResetPositions returns everyone to spawn, durably.
func (r *Room) handleResetPositions(spawn world.Vec3) {
	for _, p := range r.registry.ordered() {
		original := p.position
		p.position = spawn
		r.persistPosition(p)
		r.sendTo(p, proto.PositionCorrection{
			Type:              proto.KindPositionCorrection,
			OriginalPosition:  original,
			CorrectedPosition: spawn,
			Timestamp:         proto.Millis(r.clock()),
		})
	}
}
