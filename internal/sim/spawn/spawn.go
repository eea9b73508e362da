// Package spawn routes new players, and dead players who have not yet
// unlocked the surface realm, to the outer islands of the origin realm.
package spawn

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
)

type Config struct {
	Attempts int `yaml:"attempts"`
	// Candidate |x| and |z| are drawn from [MinDistance, MinDistance+Span).
	MinDistance int    `yaml:"min_distance"`
	Span        int    `yaml:"span"`
	ScanFromY   int    `yaml:"scan_from_y"`
	Fallback    [3]int `yaml:"fallback"`
}

func DefaultConfig() Config {
	return Config{
		Attempts:    50,
		MinDistance: 1000,
		Span:        1000,
		ScanFromY:   100,
		Fallback:    [3]int{1000, 50, 1000},
	}
}

func (c Config) Validate() error {
	if c.Attempts < 1 {
		return fmt.Errorf("attempts must be >= 1")
	}
	if c.MinDistance < 0 || c.Span < 1 {
		return fmt.Errorf("min_distance must be >= 0 and span >= 1")
	}
	return nil
}

// Gate is the unlock query respawn routing consults.
type Gate interface {
	CanEnterSurfaceRealm(p host.Player) bool
}

type Stats struct {
	FirstSpawns uint64
	Reroutes    uint64
	Fallbacks   uint64
}

type Router struct {
	env   *env.Context
	cfg   Config
	gate  Gate
	stats Stats
}

func New(e *env.Context, cfg Config, g Gate) *Router {
	return &Router{env: e, cfg: cfg, gate: g}
}

func (r *Router) Stats() Stats { return r.stats }

// FindSafeSpawn samples columns far from the main island and returns the
// cell above the first safe ground it finds, or the configured fallback.
func (r *Router) FindSafeSpawn(t terrain.Facade) cube.Pos {
	rnd := r.env.Rand
	for i := 0; i < r.cfg.Attempts; i++ {
		x := rnd.IntN(r.cfg.Span) + r.cfg.MinDistance
		z := rnd.IntN(r.cfg.Span) + r.cfg.MinDistance
		if rnd.Bool() {
			x = -x
		}
		if rnd.Bool() {
			z = -z
		}
		ground, ok := groundLevel(t, x, r.cfg.ScanFromY, z)
		if ok && safe(t, ground) {
			return ground.Side(cube.FaceUp)
		}
	}
	r.stats.Fallbacks++
	r.env.Log.Printf("warn: spawn: no safe spawn after %d attempts, using fallback %v", r.cfg.Attempts, r.cfg.Fallback)
	return cube.Pos(r.cfg.Fallback)
}

// groundLevel scans down from fromY for the first non-air cell with two air
// cells above it.
func groundLevel(t terrain.Facade, x, fromY, z int) (cube.Pos, bool) {
	for y := fromY; y > t.Bottom(); y-- {
		pos := cube.Pos{x, y, z}
		if t.Material(pos).Air() {
			continue
		}
		if t.Material(pos.Add(cube.Pos{0, 1, 0})).Air() && t.Material(pos.Add(cube.Pos{0, 2, 0})).Air() {
			return pos, true
		}
	}
	return cube.Pos{}, false
}

func safe(t terrain.Facade, pos cube.Pos) bool {
	return !t.Material(pos).Air() &&
		t.Material(pos.Add(cube.Pos{0, 1, 0})).Air() &&
		t.Material(pos.Add(cube.Pos{0, 2, 0})).Air() &&
		!t.Liquid(pos)
}

// TeleportToFirstSpawnRegion moves p to a safe origin-realm cell. It returns
// false, without touching p or its progress, when the origin realm is not
// available. A rejected teleport is logged and still counts as routed.
func (r *Router) TeleportToFirstSpawnRegion(p host.Player) (cube.Pos, bool) {
	t, ok := r.env.Worlds.Terrain(region.Origin)
	if !ok {
		r.env.Log.Printf("spawn: cannot teleport %s: %s not available", p.Name(), region.Origin)
		return cube.Pos{}, false
	}
	pos := r.FindSafeSpawn(t)
	at := mgl64.Vec3{float64(pos.X()) + 0.5, float64(pos.Y()), float64(pos.Z()) + 0.5}
	if err := p.Teleport(region.Origin, at, 0, 0); err != nil {
		r.env.Log.Printf("warn: spawn: teleport %s to %v: %v", p.Name(), pos, err)
	} else {
		r.env.Log.Printf("spawn: teleported %s to %v", p.Name(), pos)
	}
	return pos, true
}

// MarkPlayed records the first-join transition.
func (r *Router) MarkPlayed(p host.Player) {
	id := p.ID()
	n := progress.Get(r.env.Store, id, progress.SpawnCount)
	if err := progress.Set(r.env.Store, id, progress.HasPlayed, true); err != nil {
		r.env.Log.Printf("warn: spawn: mark played %s: %v", p.Name(), err)
		return
	}
	if err := progress.Set(r.env.Store, id, progress.SpawnCount, n+1); err != nil {
		r.env.Log.Printf("warn: spawn: spawn count %s: %v", p.Name(), err)
	}
}

// HandleJoin routes a player seen for the first time.
func (r *Router) HandleJoin(p host.Player) {
	if progress.Get(r.env.Store, p.ID(), progress.HasPlayed) {
		r.env.Log.Printf("spawn: returning player %s", p.Name())
		return
	}
	r.env.Log.Printf("spawn: new player %s, routing to %s", p.Name(), region.Origin)
	pos, ok := r.TeleportToFirstSpawnRegion(p)
	if !ok {
		return
	}
	r.MarkPlayed(p)
	r.stats.FirstSpawns++
	r.env.Record(audit.Entry{
		Actor:  p.ID().String(),
		Action: audit.ActionFirstSpawn,
		Region: region.Origin.String(),
		Pos:    [3]int{pos.X(), pos.Y(), pos.Z()},
	})
	pr := r.env.Presenter
	pr.Message(p, "§5§l◆ Welcome to the Enderborne Realm ◆")
	pr.Message(p, "§7§oYou find yourself in a corrupted dimension...")
	pr.Message(p, "§7§oThe Endermen here seem... different.")
	pr.Message(p, "§6§oDefeat the End Dragon to unlock the path to the Overworld.")
}

// HandleRespawn sends a player who died while locked back to the origin
// realm. Respawns of living players (e.g. returning through the exit portal)
// are left alone.
func (r *Router) HandleRespawn(_, p host.Player, wasAlive bool) {
	if wasAlive || r.gate.CanEnterSurfaceRealm(p) {
		return
	}
	if _, ok := r.TeleportToFirstSpawnRegion(p); !ok {
		return
	}
	r.stats.Reroutes++
	pr := r.env.Presenter
	pr.Message(p, "§8§oThe corruption pulls you back to the End...")
	pr.Message(p, "§7§oYou must grow stronger to escape this realm.")
	if n := progress.Get(r.env.Store, p.ID(), progress.SpawnCount); n > 1 {
		pr.Message(p, fmt.Sprintf("§6§o(Death #%d)", n-1))
	}
}

func (r *Router) HandleLeave(p host.Player) {
	r.env.Log.Printf("spawn: %s left", p.Name())
}
