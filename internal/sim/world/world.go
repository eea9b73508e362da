// Package world is the reference host: a single-goroutine simulation of the
// three realms that dispatches host events to the mod and streams per-tick
// observations to connected players.
package world

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"enderborne.gg/internal/persistence/snapshot"
	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/mod"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/rng"
	"enderborne.gg/internal/sim/terrain"
	"enderborne.gg/internal/sim/terrain/store"
)

type Config struct {
	ID         string
	TickRateHz int
	Seed       int64
	// ViewRadius is in chunks around each player.
	ViewRadius int
	// SnapshotEveryTicks is the periodic snapshot cadence; 0 disables it.
	SnapshotEveryTicks uint64
	// Borders is the world border radius per region, in blocks. 0 disables it.
	Borders map[region.Region]int
	// StarterItems are given to a player on their first join.
	StarterItems map[string]int

	Mod mod.Config
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     string
}

type ActionEnvelope struct {
	PlayerID string
	Act      protocol.ActMsg
}

type regionState struct {
	store *store.ChunkStore
	// seen holds the chunks that have fired a chunk-load event.
	seen mapset.Set[terrain.ChunkPos]
}

type clientState struct {
	Out chan []byte
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg Config
	log *log.Logger

	tick atomic.Uint64

	env *env.Context
	mod *mod.Mod

	regions map[region.Region]*regionState
	players map[uuid.UUID]*Player
	// offline keeps the last known state of players who left.
	offline map[uuid.UUID]*Player
	clients map[uuid.UUID]*clientState

	// writeCause labels terrain writes in the audit log.
	writeCause string

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	leave  chan string
	admin  chan adminSnapshotReq
	query  chan adminProgressReq
	stop   chan struct{}
	exited chan struct{}

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

// New builds a world whose progress attachments live in st. logger may be
// nil.
func New(cfg Config, st progress.Store, logger *log.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world: tick_rate_hz must be > 0")
	}
	if cfg.ViewRadius < 0 {
		return nil, fmt.Errorf("world: negative view radius")
	}
	if err := cfg.Mod.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("world: progress store required")
	}

	w := &World{
		cfg:     cfg,
		log:     logger,
		regions: map[region.Region]*regionState{},
		players: map[uuid.UUID]*Player{},
		offline: map[uuid.UUID]*Player{},
		clients: map[uuid.UUID]*clientState{},
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		admin:   make(chan adminSnapshotReq, 8),
		query:   make(chan adminProgressReq, 64),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, r := range region.All() {
		w.regions[r] = &regionState{store: w.newStore(r), seen: mapset.New[terrain.ChunkPos]()}
	}
	w.env = &env.Context{
		Rand:      rng.New(uint64(cfg.Seed)),
		Worlds:    w,
		Store:     st,
		Presenter: w,
		Log:       logger,
	}
	w.mod = mod.New(w.env, cfg.Mod)
	return w, nil
}

func (w *World) newStore(r region.Region) *store.ChunkStore {
	s := store.NewChunkStore(w.worldGen(r))
	s.OnSet = w.onTerrainSet(r)
	return s
}

func (w *World) worldGen(r region.Region) store.WorldGen {
	return store.WorldGen{Seed: w.cfg.Seed, Region: r, BorderR: w.cfg.Borders[r]}
}

func (w *World) SetAuditSink(s audit.Sink)                     { w.env.Audit = s }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// SetClock replaces the wall clock used for defeat timestamps.
func (w *World) SetClock(fn func() time.Time) { w.env.Clock = fn }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) Mod() *mod.Mod       { return w.mod }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Run(ctx context.Context) error {
	defer close(w.exited)
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingSnapshots []adminSnapshotReq
	var pendingQueries []adminProgressReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case ae := <-w.inbox:
			pendingActions = append(pendingActions, ae)
		case req := <-w.admin:
			pendingSnapshots = append(pendingSnapshots, req)
		case req := <-w.query:
			pendingQueries = append(pendingQueries, req)
		case <-ticker.C:
			w.handleAdminProgressRequests(pendingQueries)
			w.step(pendingJoins, pendingLeaves, pendingActions)
			w.handleAdminSnapshotRequests(pendingSnapshots)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingSnapshots = pendingSnapshots[:0]
			pendingQueries = pendingQueries[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Done is closed when Run returns.
func (w *World) Done() <-chan struct{} { return w.exited }

func (w *World) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	started := time.Now()
	nowTick := w.tick.Load()

	// Keeps audit ticks current for events dispatched before HandleTick.
	w.env.Sched.Advance(nowTick)

	// Leaves and joins apply at the tick boundary.
	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range joins {
		resp := w.joinPlayer(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	// Actions apply in inbox order.
	for _, ae := range actions {
		id, err := uuid.Parse(ae.PlayerID)
		if err != nil {
			continue
		}
		p := w.players[id]
		if p == nil {
			continue
		}
		w.applyAct(p, ae.Act, nowTick)
	}

	// Systems: collisions -> chunk loading -> mod tick.
	w.systemCollisions()
	w.writeCause = "CHUNK_LOAD"
	w.systemChunkLoading()
	w.writeCause = "SPREAD"
	w.mod.HandleTick(nowTick)
	w.writeCause = ""

	for _, p := range w.sortedPlayers() {
		if cl := w.clients[p.id]; cl != nil {
			b, err := json.Marshal(w.buildObs(p, nowTick))
			if err == nil {
				sendLatest(cl.Out, b)
			}
		}
		p.events = p.events[:0]
	}

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && nowTick != 0 && nowTick%w.cfg.SnapshotEveryTicks == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.publishMetrics(nowTick, time.Since(started))
	w.tick.Add(1)
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. Tests drive the world with it.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, actions)
	return tick
}

func (w *World) joinPlayer(name string, out chan []byte) JoinResponse {
	if name == "" {
		return JoinResponse{Err: "player_name required"}
	}
	id := OfflineID(name)
	if _, ok := w.players[id]; ok {
		return JoinResponse{Err: "already online"}
	}

	p, known := w.offline[id]
	if known {
		delete(w.offline, id)
		p.removed = false
	} else {
		p = w.newPlayer(id, name)
		p.reg = region.Surface
		p.pos = w.surfaceSpawn()
		if !progress.Get(w.env.Store, id, progress.HasPlayed) {
			for item, n := range w.cfg.StarterItems {
				p.Give(item, n)
			}
		}
	}
	w.players[id] = p
	if out != nil {
		w.clients[id] = &clientState{Out: out}
	}
	w.logf("world: %s joined as %s", name, id)
	w.mod.HandleJoin(p)

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        id.String(),
		ResumeToken:     fmt.Sprintf("resume_%s_%s", w.cfg.ID, id),
		WorldParams:     w.worldParams(),
		Progress:        w.progressView(p),
	}}
}

func (w *World) worldParams() protocol.WorldParams {
	wp := protocol.WorldParams{
		TickRateHz: w.cfg.TickRateHz,
		ChunkSize:  terrain.ChunkSize,
		ViewRadius: w.cfg.ViewRadius,
		Seed:       w.cfg.Seed,
	}
	for _, r := range region.All() {
		rg := r.Range()
		wp.Regions = append(wp.Regions, protocol.RegionInfo{Name: r.String(), MinY: rg.Min(), MaxY: rg.Max(), BorderR: w.cfg.Borders[r]})
	}
	return wp
}

func (w *World) handleLeave(playerID string) {
	id, err := uuid.Parse(playerID)
	if err != nil {
		return
	}
	p := w.players[id]
	if p == nil {
		return
	}
	w.mod.HandleLeave(p)
	p.removed = true
	p.events = nil
	delete(w.players, id)
	delete(w.clients, id)
	w.offline[id] = p
}

func (w *World) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	return out
}

// OfflineID derives the stable identity of a player from their name.
func OfflineID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte("OfflinePlayer:"+name))
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
