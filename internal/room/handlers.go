package room

import (
	"context"
	"time"

	"walnut-woods/server/internal/guard"
	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/world"
	"walnut-woods/server/logging"
	loganticheat "walnut-woods/server/logging/anticheat"
)

// firstUpdateDT stands in for the unknowable interval before a player's
// first movement frame, so the rate check cannot trip on it.
const firstUpdateDT = time.Second

func (r *Room) handleFrame(playerID string, data []byte) {
	p, ok := r.registry.get(playerID)
	if !ok {
		return
	}
	r.counters.RecordInbound()

	msg, err := proto.DecodeClient(data)
	if err != nil {
		// Malformed input never kills the connection.
		r.counters.RecordMalformed()
		r.logger.Printf("room %s: dropping malformed frame from %s: %v", r.cfg.ID, playerID, err)
		return
	}

	now := r.clock()
	p.lastActivity = now
	if p.disconnected {
		p.disconnected = false
	}

	switch m := msg.(type) {
	case proto.PlayerUpdate:
		r.handlePlayerUpdate(p, m, now)
	case proto.Heartbeat:
		r.sendTo(p, proto.HeartbeatReply{
			Type:       proto.KindHeartbeat,
			ServerTime: proto.Millis(now),
			ClientTime: m.Timestamp,
		})
	case proto.WalnutHidden:
		r.handleWalnutHidden(p, m, now)
	case proto.WalnutFound:
		r.handleWalnutFound(p, m)
	case proto.ChatMessage:
		r.handleChat(p, m, now)
	case proto.PlayerEmote:
		r.broadcast(p.id, proto.EmoteBroadcast{Type: proto.KindPlayerEmote, SenderID: p.id, Emote: m.Emote})
	}
}

func (r *Room) handlePlayerUpdate(p *playerConn, m proto.PlayerUpdate, now time.Time) {
	dt := firstUpdateDT
	if !p.lastUpdate.IsZero() {
		dt = now.Sub(p.lastUpdate)
	}
	p.lastUpdate = now

	result := guard.Validate(r.cfg.Guard, r.cfg.Seed, p.position, m.Position, dt, now)
	p.position = result.Corrected
	p.rotationY = m.RotationY
	p.animation = m.Animation

	if !result.Accepted {
		r.counters.RecordCorrection()
		r.counters.RecordViolations(len(result.Violations))
		for _, v := range result.Violations {
			loganticheat.Violation(context.Background(), r.pub, r.tick,
				logging.EntityRef{ID: p.id, Kind: logging.EntityKindPlayer},
				loganticheat.ViolationPayload{Kind: string(v.Kind), Detail: v.Detail})
		}

		// The correction is the one failure surfaced to the player, so
		// local prediction can realign.
		r.sendTo(p, proto.PositionCorrection{
			Type:              proto.KindPositionCorrection,
			OriginalPosition:  m.Position,
			CorrectedPosition: result.Corrected,
			Violations:        result.Violations,
			Timestamp:         m.Timestamp,
		})

		if p.window.Add(now, result.Violations...) {
			loganticheat.PlayerFlagged(context.Background(), r.pub, r.tick,
				logging.EntityRef{ID: p.id, Kind: logging.EntityKindPlayer},
				loganticheat.FlaggedPayload{Count: p.window.Count(now), WindowSeconds: p.window.Span().Seconds()})
			r.sendTo(p, proto.AntiCheatWarning{
				Type:          proto.KindAntiCheatWarning,
				Count:         p.window.Count(now),
				WindowSeconds: p.window.Span().Seconds(),
			})
		}
	}

	r.persistPosition(p)

	r.broadcast(p.id, proto.PlayerUpdateBroadcast{
		Type:      proto.KindPlayerUpdate,
		ID:        p.id,
		Position:  p.position,
		RotationY: p.rotationY,
		Animation: p.animation,
		Timestamp: m.Timestamp,
	})
}

func (r *Room) handleWalnutHidden(p *playerConn, m proto.WalnutHidden, now time.Time) {
	if _, exists := r.byWalnut[m.WalnutID]; exists {
		return
	}

	method := world.MethodBuried
	if m.WalnutType == string(world.MethodBush) {
		method = world.MethodBush
	}

	// Hide positions obey the same world limits as movement; an
	// out-of-range hide lands at the nearest legal spot.
	half := r.cfg.Guard.Bounds.HalfExtent
	x := clampF(m.Position.X, -half, half)
	z := clampF(m.Position.Z, -half, half)

	w := &world.Walnut{
		ID:        m.WalnutID,
		OwnerID:   p.id,
		Origin:    world.OriginPlayer,
		Method:    method,
		Position:  world.SurfacePoint(r.cfg.Seed, x, z, 0),
		CreatedAt: now,
	}
	r.addWalnut(w)
	if p.carried > 0 {
		p.carried--
	}
	r.counters.RecordWalnutHidden()
	r.persistWorld(false)

	r.broadcast(p.id, proto.WalnutHidden{
		Type:       proto.KindWalnutHidden,
		WalnutID:   w.ID,
		OwnerID:    p.id,
		WalnutType: string(method),
		Position:   w.Position,
	})
}

func (r *Room) handleWalnutFound(p *playerConn, m proto.WalnutFound) {
	w, ok := r.byWalnut[m.WalnutID]
	if !ok || w.Found {
		// Unknown or already found: idempotent no-op, no double score.
		return
	}
	w.Found = true
	p.carried++
	r.counters.RecordWalnutFound()
	if r.cfg.Board != nil {
		r.cfg.Board.RecordFind(p.identity, p.name)
	}
	r.persistWorld(false)

	r.broadcast(p.id, proto.WalnutFound{
		Type:     proto.KindWalnutFound,
		WalnutID: w.ID,
		FinderID: p.id,
	})
}

func (r *Room) handleChat(p *playerConn, m proto.ChatMessage, now time.Time) {
	if !r.allowChat(p, now) {
		r.sendTo(p, proto.RateLimited{
			Type:         proto.KindRateLimited,
			Kind:         proto.KindChatMessage,
			RetryAfterMS: r.cfg.ChatWindow.Milliseconds(),
		})
		return
	}
	text := m.Message
	if len(text) > maxChatLength {
		text = text[:maxChatLength]
	}
	r.broadcast(p.id, proto.ChatBroadcast{Type: proto.KindChatMessage, SenderID: p.id, Message: text})
}

// allowChat applies a sliding-window limit per connection.
func (r *Room) allowChat(p *playerConn, now time.Time) bool {
	cutoff := now.Add(-r.cfg.ChatWindow)
	kept := p.chatTimes[:0]
	for _, t := range p.chatTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.chatTimes = kept
	if len(p.chatTimes) >= r.cfg.ChatBurst {
		return false
	}
	p.chatTimes = append(p.chatTimes, now)
	return true
}

func (r *Room) updateQuality(p *playerConn, now time.Time) {
	since := now.Sub(p.lastActivity)
	switch {
	case since < 5*time.Second:
		p.quality = QualityGood
	case since < r.cfg.DisconnectAfter:
		p.quality = QualityDegraded
	default:
		p.quality = QualityStale
	}
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
