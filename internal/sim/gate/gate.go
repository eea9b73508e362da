// Package gate is the per-player progression lock between the origin realm
// and the surface realm. A player unlocks by being near the dragon when it
// dies; until then every origin-realm end portal refuses them.
package gate

import (
	"fmt"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/region"
)

type State uint8

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "UNLOCKED"
	}
	return "LOCKED"
}

type Config struct {
	// SearchBox is the full extent of the volume, centered on the dragon, in
	// which players unlock.
	SearchBox [3]float64 `yaml:"search_box"`
	// VictoryDelayTicks delays the follow-up victory sounds.
	VictoryDelayTicks uint64 `yaml:"victory_delay_ticks"`
	// FeedbackIntervalMS throttles rejection feedback per player. The veto
	// itself is never throttled.
	FeedbackIntervalMS int `yaml:"feedback_interval_ms"`
	FeedbackBurst      int `yaml:"feedback_burst"`
}

func DefaultConfig() Config {
	return Config{
		SearchBox:          [3]float64{300, 150, 300},
		VictoryDelayTicks:  60,
		FeedbackIntervalMS: 1000,
		FeedbackBurst:      1,
	}
}

func (c Config) Validate() error {
	for i, v := range c.SearchBox {
		if v <= 0 {
			return fmt.Errorf("search_box[%d] must be > 0", i)
		}
	}
	if c.FeedbackIntervalMS < 0 {
		return fmt.Errorf("feedback_interval_ms must be >= 0")
	}
	if c.FeedbackBurst < 1 {
		return fmt.Errorf("feedback_burst must be >= 1")
	}
	return nil
}

type Stats struct {
	BossDeaths uint64
	Unlocks    uint64
	Resets     uint64
	Vetoes     uint64
}

type Gate struct {
	env *env.Context
	cfg Config

	feedback map[uuid.UUID]*rate.Limiter
	stats    Stats
}

func New(e *env.Context, cfg Config) *Gate {
	return &Gate{env: e, cfg: cfg, feedback: map[uuid.UUID]*rate.Limiter{}}
}

func (g *Gate) Stats() Stats { return g.stats }

func (g *Gate) State(id uuid.UUID) State {
	if progress.Get(g.env.Store, id, progress.OverworldUnlocked) {
		return Unlocked
	}
	return Locked
}

// CanEnterSurfaceRealm is the traversal check.
func (g *Gate) CanEnterSurfaceRealm(p host.Player) bool {
	return g.State(p.ID()) == Unlocked
}

// HasTimePassed reports whether the player defeated the dragon at least d
// ago. Players who never did report false.
func (g *Gate) HasTimePassed(p host.Player, d time.Duration) bool {
	id := p.ID()
	if !progress.Get(g.env.Store, id, progress.DragonDefeated) {
		return false
	}
	at := progress.Get(g.env.Store, id, progress.DefeatTimestamp)
	return g.env.NowMillis()-at >= d.Milliseconds()
}

// DefeatTimeFormatted renders the defeat time relative to now, in the
// largest whole unit.
func (g *Gate) DefeatTimeFormatted(p host.Player) string { return g.DefeatAgo(p.ID()) }

// DefeatAgo is DefeatTimeFormatted for a player who may be offline.
func (g *Gate) DefeatAgo(id uuid.UUID) string {
	at := progress.Get(g.env.Store, id, progress.DefeatTimestamp)
	if at == 0 {
		return "Never"
	}
	minutes := (g.env.NowMillis() - at) / (60 * 1000)
	hours := minutes / 60
	days := hours / 24
	switch {
	case days > 0:
		return fmt.Sprintf("%d day(s) ago", days)
	case hours > 0:
		return fmt.Sprintf("%d hour(s) ago", hours)
	case minutes > 0:
		return fmt.Sprintf("%d minute(s) ago", minutes)
	}
	return "Just now"
}

// MarkDefeated unlocks p and plays the personal victory feedback. It does not
// guard against repeat calls; a repeat refreshes the timestamp.
func (g *Gate) MarkDefeated(p host.Player) {
	id := p.ID()
	now := g.env.NowMillis()
	// Unlock before recording the defeat so that a partial write never leaves
	// dragonDefeated set without overworldUnlocked.
	if err := progress.Set(g.env.Store, id, progress.OverworldUnlocked, true); err != nil {
		g.env.Log.Printf("warn: gate: unlock %s: %v", p.Name(), err)
		return
	}
	if err := progress.Set(g.env.Store, id, progress.DragonDefeated, true); err != nil {
		g.env.Log.Printf("warn: gate: mark defeated %s: %v", p.Name(), err)
	}
	if err := progress.Set(g.env.Store, id, progress.DefeatTimestamp, now); err != nil {
		g.env.Log.Printf("warn: gate: defeat timestamp %s: %v", p.Name(), err)
	}
	g.stats.Unlocks++
	g.env.Log.Printf("gate: %s defeated the dragon and unlocked the surface realm", p.Name())
	g.env.Record(audit.Entry{
		Actor:  id.String(),
		Action: audit.ActionUnlock,
		Region: p.Region().String(),
		Pos:    blockOf(p.Position()),
		To:     Unlocked.String(),
	})

	pr := g.env.Presenter
	pr.Title(p, "§6§l◆ THE END'S GUARDIAN HAS FALLEN ◆", "")
	pr.Message(p, "§5§oThe ancient corruption weakens...")
	pr.Message(p, "§a§oYou feel the dimensional barriers shifting.")
	pr.Message(p, "§e§lThe Overworld portal now responds to your presence!")
	pr.Message(p, "§7§oStep through the End Portal to claim your reward.")
	pr.ActionBar(p, "§6§l✦ OVERWORLD UNLOCKED ✦")
	pr.PlaySoundTo(p, host.SoundChallengeComplete, 1.0, 1.0)
	g.env.Sched.After(g.cfg.VictoryDelayTicks, func() {
		if p.Removed() {
			return
		}
		pr.PlaySoundTo(p, host.SoundEndPortalSpawn, 0.8, 0.9)
	})
}

// Reset locks p again and tells them so.
func (g *Gate) Reset(p host.Player, actor string) {
	if g.ResetID(p.ID(), actor) {
		g.env.Presenter.Message(p, "§c§oYour progress has been reset. The dragon awaits...")
	}
}

// ResetID clears the defeat fields of an online or offline player. The
// defeat flag is cleared before the unlock flag.
func (g *Gate) ResetID(id uuid.UUID, actor string) bool {
	s := g.env.Store
	ok := true
	if err := progress.Set(s, id, progress.DragonDefeated, false); err != nil {
		g.env.Log.Printf("warn: gate: reset %s: %v", id, err)
		return false
	}
	if err := progress.Set(s, id, progress.OverworldUnlocked, false); err != nil {
		g.env.Log.Printf("warn: gate: reset %s: %v", id, err)
		ok = false
	}
	if err := progress.Set(s, id, progress.DefeatTimestamp, 0); err != nil {
		g.env.Log.Printf("warn: gate: reset %s: %v", id, err)
		ok = false
	}
	g.stats.Resets++
	g.env.Log.Printf("gate: reset progress for %s", id)
	g.env.Record(audit.Entry{
		Actor:   actor,
		Action:  audit.ActionReset,
		To:      Locked.String(),
		Details: map[string]any{"player": id.String()},
	})
	return ok
}

// Forget drops per-player throttling state.
func (g *Gate) Forget(id uuid.UUID) { delete(g.feedback, id) }

// HandleEntityDeath unlocks every non-spectator near a server-side dragon
// that died in the origin realm. Other deaths are ignored.
func (g *Gate) HandleEntityDeath(e host.Entity, src host.DamageSource) {
	if e.Type() != host.EntityTypeDragon || e.Region() != region.Origin || e.Remote() {
		return
	}
	g.stats.BossDeaths++
	at := e.Position()
	by := src.Attacker
	if by == "" {
		by = "unknown"
	}
	g.env.Log.Printf("gate: dragon defeated in %s by %s", e.Region(), by)

	half := mgl64.Vec3{g.cfg.SearchBox[0] / 2, g.cfg.SearchBox[1] / 2, g.cfg.SearchBox[2] / 2}
	box := cube.Box(at[0]-half[0], at[1]-half[1], at[2]-half[2], at[0]+half[0], at[1]+half[1], at[2]+half[2])
	var near []host.Player
	for _, p := range g.env.Worlds.PlayersWithin(region.Origin, box) {
		if !p.Spectator() {
			near = append(near, p)
		}
	}
	g.env.Log.Printf("gate: %d players near dragon defeat", len(near))
	for _, p := range near {
		g.MarkDefeated(p)
	}
	g.victoryEffects(at)
}

func (g *Gate) victoryEffects(at mgl64.Vec3) {
	pr := g.env.Presenter
	rnd := g.env.Rand
	for i := 0; i < 50; i++ {
		pos := mgl64.Vec3{
			at[0] + (rnd.Float64()-0.5)*100,
			at[1] + rnd.Float64()*30,
			at[2] + (rnd.Float64()-0.5)*100,
		}
		pr.Particles(region.Origin, pos, host.ParticleEndRod, 1, mgl64.Vec3{0, 0.2, 0}, 0.1)
		pr.Particles(region.Origin, pos, host.ParticleTotem, 1, mgl64.Vec3{0, 0.1, 0}, 0.05)
	}
	pr.PlaySound(region.Origin, at, host.SoundDragonDeath, 2.0, 1.0)
	g.env.Sched.After(g.cfg.VictoryDelayTicks, func() {
		if _, ok := g.env.Worlds.Terrain(region.Origin); !ok {
			return
		}
		pr.PlaySound(region.Origin, at, host.SoundEndPortalSpawn, 1.5, 0.8)
		pr.PlaySound(region.Origin, at, host.SoundBeaconActivate, 1.0, 1.2)
	})
}

// HandleBlockCollision cancels a locked player's contact with an end portal
// in the origin realm. Other collisions pass through untouched.
func (g *Gate) HandleBlockCollision(ctx *event.Context[host.Entity], m material.Material, r region.Region, pos cube.Pos) {
	if m != material.EndPortal || r != region.Origin {
		return
	}
	p, ok := ctx.Val().(host.Player)
	if !ok || p.Remote() {
		return
	}
	if g.CanEnterSurfaceRealm(p) {
		return
	}
	ctx.Cancel()
	g.stats.Vetoes++
	if !g.limiter(p.ID()).AllowN(g.env.Clock(), 1) {
		return
	}
	g.env.Record(audit.Entry{
		Actor:  p.ID().String(),
		Action: audit.ActionVeto,
		Region: r.String(),
		Pos:    [3]int{pos.X(), pos.Y(), pos.Z()},
	})
	pr := g.env.Presenter
	pr.ActionBar(p, "§8§oThe portal resists your passage...")
	pr.Message(p, "§7§oA powerful force blocks your path to the Overworld.")
	pr.Message(p, "§5§oDefeat the End Dragon to break this barrier.")
	g.rejectionEffects(r, pos)
}

func (g *Gate) rejectionEffects(r region.Region, pos cube.Pos) {
	pr := g.env.Presenter
	rnd := g.env.Rand
	for i := 0; i < 12; i++ {
		at := mgl64.Vec3{
			float64(pos.X()) + 0.5 + (rnd.Float64()-0.5)*2,
			float64(pos.Y()) + 0.1,
			float64(pos.Z()) + 0.5 + (rnd.Float64()-0.5)*2,
		}
		pr.Particles(r, at, host.ParticleLargeSmoke, 1, mgl64.Vec3{0, 0.05, 0}, 0)
		if rnd.Bool() {
			drift := mgl64.Vec3{(rnd.Float64() - 0.5) * 0.5, rnd.Float64() * 0.2, (rnd.Float64() - 0.5) * 0.5}
			pr.Particles(r, at, host.ParticlePortal, 1, drift, 0)
		}
	}
	center := pos.Vec3Centre()
	pr.PlaySound(r, center, host.SoundFireExtinguish, 0.4, 0.6)
	pr.PlaySound(r, center, host.SoundPortalAmbient, 0.3, 0.5)
}

func (g *Gate) limiter(id uuid.UUID) *rate.Limiter {
	l, ok := g.feedback[id]
	if !ok {
		every := rate.Inf
		if g.cfg.FeedbackIntervalMS > 0 {
			every = rate.Every(time.Duration(g.cfg.FeedbackIntervalMS) * time.Millisecond)
		}
		l = rate.NewLimiter(every, g.cfg.FeedbackBurst)
		g.feedback[id] = l
	}
	return l
}

func blockOf(v mgl64.Vec3) [3]int {
	p := cube.PosFromVec3(v)
	return [3]int{p.X(), p.Y(), p.Z()}
}
