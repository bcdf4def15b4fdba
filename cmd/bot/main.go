// Command bot drives headless clients against a running server. One bot
// moves with local prediction and reconciles against corrections; a
// second smooths the first one's broadcasts the way a rendering client
// would. Used for soak testing and protocol smoke checks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"walnut-woods/server/internal/interp"
	"walnut-woods/server/internal/predict"
	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/world"
)

type frame struct {
	kind    string
	payload []byte
}

type botClient struct {
	id    string
	conn  *websocket.Conn
	inbox chan frame
	done  chan error

	world proto.WorldState
}

func main() {
	wsURL := flag.String("ws", "ws://localhost:8080/ws", "server websocket url")
	roomID := flag.String("room", "walnut-woods", "room to join")
	steps := flag.Int("steps", 20, "movement updates the actor sends")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actor, err := newBotClient(ctx, *wsURL, *roomID, "bot-actor")
	if err != nil {
		fail(err)
	}
	defer actor.close()

	observer, err := newBotClient(ctx, *wsURL, *roomID, "bot-observer")
	if err != nil {
		fail(err)
	}
	defer observer.close()

	if err := actor.waitForWorld(ctx); err != nil {
		fail(fmt.Errorf("actor world state: %w", err))
	}
	if err := observer.waitForWorld(ctx); err != nil {
		fail(fmt.Errorf("observer world state: %w", err))
	}

	if err := heartbeatRoundTrip(ctx, actor); err != nil {
		fail(fmt.Errorf("heartbeat: %w", err))
	}

	final, err := actor.walkEast(ctx, *steps)
	if err != nil {
		fail(fmt.Errorf("movement: %w", err))
	}

	drift, err := observer.smoothActor(ctx, actor.id, final)
	if err != nil {
		fail(fmt.Errorf("interpolation: %w", err))
	}
	fmt.Printf("walnut-bot: observer converged within %.3f units\n", drift)

	if err := hideAndFind(ctx, actor, observer); err != nil {
		fail(fmt.Errorf("walnut exchange: %w", err))
	}

	fmt.Println("walnut-bot: scenario complete")
}

func newBotClient(ctx context.Context, wsURL, roomID, id string) (*botClient, error) {
	url := fmt.Sprintf("%s?id=%s&token=bot-token&name=%s&room=%s", wsURL, id, id, roomID)
	conn, err := dialWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	client := &botClient{
		id:    id,
		conn:  conn,
		inbox: make(chan frame, 256),
		done:  make(chan error, 1),
	}
	go client.readLoop()
	return client, nil
}

func (c *botClient) close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *botClient) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.done <- err
			close(c.done)
			return
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(payload, &envelope) != nil {
			continue
		}
		select {
		case c.inbox <- frame{kind: envelope.Type, payload: payload}:
		default:
		}
	}
}

func (c *botClient) send(msg any) error {
	return c.conn.WriteJSON(msg)
}

func (c *botClient) waitFor(ctx context.Context, predicate func(frame) bool) (frame, error) {
	for {
		select {
		case f := <-c.inbox:
			if predicate(f) {
				return f, nil
			}
		case err := <-c.done:
			if err != nil {
				return frame{}, err
			}
			return frame{}, fmt.Errorf("connection closed")
		case <-ctx.Done():
			return frame{}, ctx.Err()
		}
	}
}

func (c *botClient) waitForWorld(ctx context.Context) error {
	_, err := c.waitFor(ctx, func(f frame) bool {
		if f.kind != proto.KindWorldState {
			return false
		}
		return json.Unmarshal(f.payload, &c.world) == nil
	})
	return err
}

func heartbeatRoundTrip(ctx context.Context, c *botClient) error {
	sent := time.Now().UnixMilli()
	if err := c.send(proto.Heartbeat{Type: proto.KindHeartbeat, Timestamp: sent}); err != nil {
		return err
	}
	_, err := c.waitFor(ctx, func(f frame) bool {
		if f.kind != proto.KindHeartbeat {
			return false
		}
		var reply proto.HeartbeatReply
		return json.Unmarshal(f.payload, &reply) == nil && reply.ClientTime == sent
	})
	return err
}

// walkEast advances the local predictor and reports each predicted pose
// to the server, reconciling on any correction. Terrain following is
// left to the server: when the slope pulls the true surface away from
// the flat prediction, the correction snaps the predictor back in line.
// Returns the final reconciled position.
func (c *botClient) walkEast(ctx context.Context, steps int) (world.Vec3, error) {
	predictor := predict.New(predict.DefaultConfig(), c.world.SpawnPosition)

	interval := 100 * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return world.Vec3{}, ctx.Err()
		case <-ticker.C:
		}

		now := time.Now().UnixMilli()
		pos := predictor.Step(world.Vec3{X: 1}, interval.Seconds(), now)

		if err := c.send(proto.PlayerUpdate{
			Type:      proto.KindPlayerUpdate,
			Position:  pos,
			RotationY: math.Pi / 2,
			Animation: "walk",
			Timestamp: now,
		}); err != nil {
			return world.Vec3{}, err
		}
		c.reconcileCorrections(predictor)
	}

	// Give the last in-flight correction a moment to land.
	time.Sleep(300 * time.Millisecond)
	c.reconcileCorrections(predictor)
	return predictor.Position(), nil
}

func (c *botClient) reconcileCorrections(predictor *predict.Predictor) {
	for {
		select {
		case f := <-c.inbox:
			if f.kind != proto.KindPositionCorrection {
				continue
			}
			var correction proto.PositionCorrection
			if json.Unmarshal(f.payload, &correction) != nil {
				continue
			}
			predictor.Reconcile(correction.CorrectedPosition, correction.Timestamp, time.Now().UnixMilli())
		default:
			return
		}
	}
}

// smoothActor consumes the actor's pose broadcasts through the same
// smoother a rendering client uses and returns the final distance to
// the actor's last known position.
func (c *botClient) smoothActor(ctx context.Context, actorID string, target world.Vec3) (float64, error) {
	start := interp.Pose{Position: c.world.SpawnPosition}
	smoother := interp.NewSmoother(interp.DefaultConfig(), start, time.Now())

	deadline := time.Now().Add(8 * time.Second)
	frameInterval := 50 * time.Millisecond
	last := time.Now()
	for time.Now().Before(deadline) {
		waitCtx, cancel := context.WithTimeout(ctx, frameInterval)
		f, err := c.waitFor(waitCtx, func(f frame) bool {
			return f.kind == proto.KindPlayerUpdate
		})
		cancel()
		if err == nil {
			var update proto.PlayerUpdateBroadcast
			if json.Unmarshal(f.payload, &update) == nil && update.ID == actorID {
				smoother.SetTarget(interp.Pose{Position: update.Position, RotationY: update.RotationY}, time.Now())
			}
		} else if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		now := time.Now()
		pose := smoother.Step(now, now.Sub(last).Seconds())
		last = now

		dx := pose.Position.X - target.X
		dz := pose.Position.Z - target.Z
		if dist := math.Hypot(dx, dz); dist < 3.0 {
			return dist, nil
		}
	}

	pose := smoother.Current()
	return math.Hypot(pose.Position.X-target.X, pose.Position.Z-target.Z),
		fmt.Errorf("observer never converged on the actor")
}

// hideAndFind has the actor hide a walnut and the observer claim it,
// verifying both relays arrive.
func hideAndFind(ctx context.Context, actor, observer *botClient) error {
	walnutID := fmt.Sprintf("bot-walnut-%d", time.Now().UnixNano())
	seed := actor.world.TerrainSeed
	spot := world.SurfacePoint(seed, 12, -7, 0)

	if err := actor.send(proto.WalnutHidden{
		Type:       proto.KindWalnutHidden,
		WalnutID:   walnutID,
		WalnutType: string(world.MethodBuried),
		Position:   spot,
	}); err != nil {
		return err
	}

	if _, err := observer.waitFor(ctx, func(f frame) bool {
		if f.kind != proto.KindWalnutHidden {
			return false
		}
		var hidden proto.WalnutHidden
		return json.Unmarshal(f.payload, &hidden) == nil && hidden.WalnutID == walnutID
	}); err != nil {
		return fmt.Errorf("hide relay: %w", err)
	}

	if err := observer.send(proto.WalnutFound{Type: proto.KindWalnutFound, WalnutID: walnutID}); err != nil {
		return err
	}

	if _, err := actor.waitFor(ctx, func(f frame) bool {
		if f.kind != proto.KindWalnutFound {
			return false
		}
		var found proto.WalnutFound
		return json.Unmarshal(f.payload, &found) == nil && found.WalnutID == walnutID
	}); err != nil {
		return fmt.Errorf("find relay: %w", err)
	}
	return nil
}

func dialWithRetry(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	if !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://") {
		return nil, fmt.Errorf("invalid ws url: %s", wsURL)
	}
	var lastErr error
	for attempt := 0; attempt < 12; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func fail(err error) {
	fmt.Println(err.Error())
	os.Exit(1)
}
