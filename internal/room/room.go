// Package room implements the authoritative per-room world actor. One
// goroutine drains an inbox of network commands and timer wakes, so all
// room state is mutated without locks and messages from one connection
// are processed strictly in arrival order.
package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"walnut-woods/server/internal/ai"
	"walnut-woods/server/internal/guard"
	"walnut-woods/server/internal/leaderboard"
	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/store"
	"walnut-woods/server/internal/telemetry"
	"walnut-woods/server/internal/world"
	"walnut-woods/server/logging"
	loglifecycle "walnut-woods/server/logging/lifecycle"
)

const (
	defaultTickRate   = 10
	playerClearance   = 1.0
	maxChatLength     = 256
	inboxSize         = 256
	defaultNPCs       = 3
	defaultPredators  = 2
	metricsEveryTicks = 50
)

// Config captures one room's tuning. Zero values fall back to defaults.
type Config struct {
	ID              string
	Seed            int64
	TickRate        int
	DisconnectAfter time.Duration
	RemoveAfter     time.Duration
	Guard           guard.Config
	ViolationWindow time.Duration
	FlagThreshold   int
	NPCCount        int
	PredatorCount   int
	ChatBurst       int
	ChatWindow      time.Duration

	Clock     func() time.Time
	Verifier  IdentityVerifier
	Store     *store.Store
	Board     *leaderboard.Board
	Publisher logging.Publisher
	Logger    *log.Logger
	// OnEmpty fires when the last connection is removed and the wake
	// timer is released.
	OnEmpty func(id string)
}

// DefaultConfig returns standard room tuning for the given seed.
func DefaultConfig(id string, seed int64) Config {
	return Config{
		ID:              id,
		Seed:            seed,
		TickRate:        defaultTickRate,
		DisconnectAfter: 15 * time.Second,
		RemoveAfter:     60 * time.Second,
		Guard:           guard.DefaultConfig(),
		ViolationWindow: 10 * time.Second,
		FlagThreshold:   5,
		NPCCount:        defaultNPCs,
		PredatorCount:   defaultPredators,
		ChatBurst:       5,
		ChatWindow:      10 * time.Second,
	}
}

// Room is the single serialization point for one game instance.
type Room struct {
	cfg      Config
	clock    func() time.Time
	logger   *log.Logger
	pub      logging.Publisher
	counters *telemetry.Counters

	inbox chan any
	quit  chan struct{}

	registry *registry
	objects  []world.ForestObject
	walnuts  []*world.Walnut
	byWalnut map[string]*world.Walnut

	npcs      *ai.Engine
	predators *ai.Engine
	rng       *rand.Rand

	tick       uint64
	timer      *time.Timer
	timerArmed bool
}

// New builds a room, loading persisted world state for its id or
// generating and persisting a fresh map.
func New(cfg Config) *Room {
	if cfg.TickRate < 5 {
		cfg.TickRate = defaultTickRate
	}
	if cfg.TickRate > 20 {
		cfg.TickRate = 20
	}
	if cfg.DisconnectAfter <= 0 {
		cfg.DisconnectAfter = 15 * time.Second
	}
	if cfg.RemoveAfter <= cfg.DisconnectAfter {
		cfg.RemoveAfter = 4 * cfg.DisconnectAfter
	}
	if cfg.Guard.MaxSpeed == 0 {
		cfg.Guard = guard.DefaultConfig()
	}
	if cfg.ViolationWindow <= 0 {
		cfg.ViolationWindow = 10 * time.Second
	}
	if cfg.FlagThreshold <= 0 {
		cfg.FlagThreshold = 5
	}
	if cfg.ChatBurst <= 0 {
		cfg.ChatBurst = 5
	}
	if cfg.ChatWindow <= 0 {
		cfg.ChatWindow = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Verifier == nil {
		cfg.Verifier = AllowAll()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	r := &Room{
		cfg:      cfg,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		pub:      logging.WithRoom(cfg.Publisher, cfg.ID),
		counters: telemetry.NewCounters(),
		inbox:    make(chan any, inboxSize),
		quit:     make(chan struct{}),
		registry: newRegistry(),
		byWalnut: make(map[string]*world.Walnut),
		timer:    time.NewTimer(time.Hour),
	}
	if !r.timer.Stop() {
		<-r.timer.C
	}

	r.loadOrGenerateWorld()

	r.rng = rand.New(rand.NewSource(cfg.Seed + 1))
	r.npcs = ai.NewEngine(ai.KindNPC, cfg.Seed, r.rng, ai.NPCTuning())
	r.predators = ai.NewEngine(ai.KindPredator, cfg.Seed, rand.New(rand.NewSource(cfg.Seed+2)), ai.PredatorTuning())
	for i := 0; i < cfg.NPCCount; i++ {
		r.spawnNPC()
	}
	for i := 0; i < cfg.PredatorCount; i++ {
		r.spawnPredator()
	}

	return r
}

// spawnNPC and spawnPredator place new entities inside the central half
// of the map, away from the world edge.
func (r *Room) spawnNPC() ai.Entity {
	half := r.cfg.Guard.Bounds.HalfExtent * 0.5
	return r.npcs.Spawn("squirrel-helper", r.rng.Float64()*half-half/2, r.rng.Float64()*half-half/2)
}

func (r *Room) spawnPredator() ai.Entity {
	half := r.cfg.Guard.Bounds.HalfExtent * 0.5
	species := "hawk"
	if r.predators.Len()%2 == 1 {
		species = "fox"
	}
	return r.predators.Spawn(species, r.rng.Float64()*half-half/2, r.rng.Float64()*half-half/2)
}

func (r *Room) loadOrGenerateWorld() {
	st := r.cfg.Store
	if st != nil {
		var seed int64
		var objects []world.ForestObject
		var walnuts []world.Walnut
		if st.Get(store.SeedKey(r.cfg.ID), &seed) == nil && seed == r.cfg.Seed &&
			st.Get(store.ObjectsKey(r.cfg.ID), &objects) == nil &&
			st.Get(store.WalnutsKey(r.cfg.ID), &walnuts) == nil {
			r.objects = objects
			for i := range walnuts {
				w := walnuts[i]
				r.addWalnut(&w)
			}
			return
		}
	}

	objects, walnuts := world.Generate(world.DefaultGenConfig(r.cfg.Seed))
	r.objects = objects
	for i := range walnuts {
		w := walnuts[i]
		r.addWalnut(&w)
	}
	r.persistWorld(true)
}

func (r *Room) addWalnut(w *world.Walnut) {
	r.walnuts = append(r.walnuts, w)
	r.byWalnut[w.ID] = w
}

func (r *Room) persistWorld(includeSeed bool) {
	st := r.cfg.Store
	if st == nil {
		return
	}
	if includeSeed {
		if err := st.Put(store.SeedKey(r.cfg.ID), r.cfg.Seed); err != nil {
			r.storageWarn(err)
		}
		if err := st.Put(store.ObjectsKey(r.cfg.ID), r.objects); err != nil {
			r.storageWarn(err)
		}
	}
	if err := st.PutBatched(store.WalnutsKey(r.cfg.ID), r.walnutValues()); err != nil {
		r.storageWarn(err)
	}
}

func (r *Room) walnutValues() []world.Walnut {
	out := make([]world.Walnut, 0, len(r.walnuts))
	for _, w := range r.walnuts {
		out = append(out, *w)
	}
	return out
}

func (r *Room) storageWarn(err error) {
	r.counters.RecordStorageFailure()
	r.logger.Printf("room %s: storage failure: %v", r.cfg.ID, err)
}

// Run drains the inbox until Stop. Must be called exactly once, in its
// own goroutine.
func (r *Room) Run() {
	for {
		var wake <-chan time.Time
		if r.timerArmed {
			wake = r.timer.C
		}
		select {
		case cmd := <-r.inbox:
			r.handle(cmd)
		case <-wake:
			r.timerArmed = false
			r.runTick()
		case <-r.quit:
			r.shutdown()
			return
		}
	}
}

// Stop shuts the room down, closing every connection.
func (r *Room) Stop() {
	close(r.quit)
}

func (r *Room) shutdown() {
	for _, p := range r.registry.ordered() {
		if p.conn != nil {
			p.conn.Close()
		}
	}
	if st := r.cfg.Store; st != nil {
		if err := st.Flush(); err != nil {
			r.storageWarn(err)
		}
	}
}

// Counters exposes the room's telemetry for the metrics endpoint.
func (r *Room) Counters() *telemetry.Counters {
	return r.counters
}

// Seed returns the room's terrain seed.
func (r *Room) Seed() int64 {
	return r.cfg.Seed
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.cfg.ID
}

func (r *Room) tickInterval() time.Duration {
	return time.Second / time.Duration(r.cfg.TickRate)
}

func (r *Room) armTimer() {
	if r.timerArmed {
		return
	}
	r.timer.Reset(r.tickInterval())
	r.timerArmed = true
}

// post delivers a command unless the room is shutting down.
func (r *Room) post(cmd any) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-r.quit:
		return errors.New("room: stopped")
	}
}

// Join verifies the identity with the external service, then posts the
// upgrade to the room goroutine. Verification happens on the caller's
// goroutine so a slow identity service never stalls the room.
func (r *Room) Join(ctx context.Context, identity, token string, req JoinRequest) (JoinResult, error) {
	if err := r.cfg.Verifier.Verify(ctx, identity, token); err != nil {
		return JoinResult{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.Identity = identity

	reply := make(chan joinReply, 1)
	if err := r.post(joinCmd{req: req, reply: reply}); err != nil {
		return JoinResult{}, err
	}
	select {
	case res := <-reply:
		return res.result, res.err
	case <-r.quit:
		return JoinResult{}, errors.New("room: stopped")
	}
}

// HandleFrame posts one raw inbound frame for a connection.
func (r *Room) HandleFrame(playerID string, data []byte) {
	_ = r.post(frameCmd{playerID: playerID, data: data})
}

// ConnClosed reports that a connection's read loop ended.
func (r *Room) ConnClosed(playerID string, conn Conn) {
	_ = r.post(closedCmd{playerID: playerID, conn: conn})
}

// WorldSnapshot returns the room's current world state. Served from the
// snapshot endpoint and used by tests.
func (r *Room) WorldSnapshot() (proto.WorldState, error) {
	reply := make(chan proto.WorldState, 1)
	if err := r.post(snapshotCmd{reply: reply}); err != nil {
		return proto.WorldState{}, err
	}
	select {
	case ws := <-reply:
		return ws, nil
	case <-r.quit:
		return proto.WorldState{}, errors.New("room: stopped")
	}
}

// ResetWorld regenerates the map from the configured seed, clearing all
// walnut found flags. Admin-only.
func (r *Room) ResetWorld() error {
	reply := make(chan struct{}, 1)
	if err := r.post(resetWorldCmd{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-r.quit:
		return errors.New("room: stopped")
	}
}

// ResetPositions returns every player to the spawn clearing. Admin-only.
func (r *Room) ResetPositions() error {
	reply := make(chan struct{}, 1)
	spawn := world.SurfacePoint(r.cfg.Seed, 0, 0, playerClearance)
	if err := r.post(resetPositionsCmd{spawn: spawn, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-r.quit:
		return errors.New("room: stopped")
	}
}

func (r *Room) handle(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		result, err := r.handleJoin(c.req)
		c.reply <- joinReply{result: result, err: err}
	case frameCmd:
		r.handleFrame(c.playerID, c.data)
	case closedCmd:
		r.handleClosed(c.playerID, c.conn)
	case snapshotCmd:
		c.reply <- r.worldState(world.SurfacePoint(r.cfg.Seed, 0, 0, playerClearance), 0)
	case resetWorldCmd:
		r.handleResetWorld()
		c.reply <- struct{}{}
	case resetPositionsCmd:
		r.handleResetPositions(c.spawn)
		c.reply <- struct{}{}
	default:
		r.logger.Printf("room %s: dropping unknown command %T", r.cfg.ID, cmd)
	}
}

func (r *Room) handleJoin(req JoinRequest) (JoinResult, error) {
	now := r.clock()
	ctx := context.Background()

	existing, ok := r.registry.get(req.Identity)
	if ok {
		// Same identity token: evict the prior channel and hand the
		// surviving PlayerConnection to the new one. Position and
		// violation history are preserved; no re-join announcement.
		if existing.conn != nil && existing.conn != req.Conn {
			existing.conn.Close()
		}
		existing.conn = req.Conn
		existing.disconnected = false
		existing.sendFailed = false
		existing.lastActivity = now
		if req.Name != "" {
			existing.name = req.Name
		}
		if req.Character != "" {
			existing.character = req.Character
		}
		loglifecycle.PlayerReconnected(ctx, r.pub, r.tick, logging.EntityRef{ID: existing.id, Kind: logging.EntityKindPlayer})
		r.armTimer()
		return r.joinResult(existing, true), nil
	}

	position := world.SurfacePoint(r.cfg.Seed, 0, 0, playerClearance)
	if st := r.cfg.Store; st != nil {
		var saved world.Vec3
		err := st.Get(store.PositionKey(req.Identity), &saved)
		if err == nil {
			// Positions are keyed by identity alone, so a restore may
			// carry coordinates saved against another room's terrain.
			position = r.clampIntoWorld(saved)
		} else if !errors.Is(err, store.ErrNotFound) {
			r.storageWarn(err)
		}
	}

	p := &playerConn{
		id:           req.Identity,
		identity:     req.Identity,
		name:         req.Name,
		character:    req.Character,
		conn:         req.Conn,
		position:     position,
		lastActivity: now,
		window:       guard.NewWindow(r.cfg.ViolationWindow, r.cfg.FlagThreshold),
		quality:      QualityGood,
	}
	r.registry.put(p)
	r.persistPosition(p)

	loglifecycle.PlayerJoined(ctx, r.pub, r.tick,
		logging.EntityRef{ID: p.id, Kind: logging.EntityKindPlayer},
		loglifecycle.PlayerJoinedPayload{SpawnX: position.X, SpawnY: position.Y, SpawnZ: position.Z})

	r.broadcast(p.id, proto.PlayerJoined{Type: proto.KindPlayerJoined, Player: p.snapshot()})
	r.armTimer()
	return r.joinResult(p, false), nil
}

func (r *Room) joinResult(p *playerConn, reconnect bool) JoinResult {
	return JoinResult{
		PlayerID:  p.id,
		World:     r.worldState(p.position, p.rotationY),
		Existing:  proto.ExistingPlayers{Type: proto.KindExistingPlayers, Players: r.registry.connectedSnapshots(p.id)},
		Reconnect: reconnect,
	}
}

func (r *Room) worldState(spawn world.Vec3, rotationY float64) proto.WorldState {
	entities := append(r.npcs.Entities(), r.predators.Entities()...)
	return proto.WorldState{
		Type:           proto.KindWorldState,
		TerrainSeed:    r.cfg.Seed,
		MapState:       r.walnutValues(),
		ForestObjects:  r.objects,
		NPCs:           entities,
		SpawnPosition:  spawn,
		SpawnRotationY: rotationY,
		ServerTime:     proto.Millis(r.clock()),
	}
}

func (r *Room) handleClosed(playerID string, conn Conn) {
	p, ok := r.registry.get(playerID)
	if !ok || (conn != nil && p.conn != conn) {
		// A newer channel already took over; nothing to do.
		return
	}
	p.conn = nil
	if !p.disconnected {
		p.disconnected = true
		r.broadcast(p.id, proto.PlayerDisconnected{Type: proto.KindPlayerDisconnected, ID: p.id})
	}
}

// clampIntoWorld pins a position into this room's bounds and terrain
// clearance band.
func (r *Room) clampIntoWorld(pos world.Vec3) world.Vec3 {
	half := r.cfg.Guard.Bounds.HalfExtent
	x := clampF(pos.X, -half, half)
	z := clampF(pos.Z, -half, half)
	ground := world.TerrainHeight(r.cfg.Seed, x, z)
	return world.Vec3{
		X: x,
		Y: clampF(pos.Y, ground+r.cfg.Guard.MinClearance, ground+r.cfg.Guard.MaxClearance),
		Z: z,
	}
}

func (r *Room) persistPosition(p *playerConn) {
	st := r.cfg.Store
	if st == nil {
		return
	}
	// Positions bypass batching: they are the only state whose loss is
	// unrecoverable from any other source.
	if err := st.Put(store.PositionKey(p.identity), p.position); err != nil {
		r.storageWarn(err)
	}
}
