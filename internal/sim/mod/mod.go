// Package mod wires the gameplay components to host events. Mod is the single
// host.Handler the server registers.
package mod

import (
	"fmt"
	"runtime/debug"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"

	"enderborne.gg/internal/sim/corruption"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/gate"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/spawn"
	"enderborne.gg/internal/sim/terrain"
	"enderborne.gg/internal/sim/trader"
)

type Config struct {
	// SpreadEveryTicks is the cadence of natural spread, per loaded region.
	SpreadEveryTicks uint64 `yaml:"spread_every_ticks"`

	Corruption corruption.Config `yaml:"corruption"`
	Gate       gate.Config       `yaml:"gate"`
	Spawn      spawn.Config      `yaml:"spawn"`
	Trader     trader.Config     `yaml:"trader"`
}

func DefaultConfig() Config {
	return Config{
		SpreadEveryTicks: 20,
		Corruption:       corruption.DefaultConfig(),
		Gate:             gate.DefaultConfig(),
		Spawn:            spawn.DefaultConfig(),
		Trader:           trader.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.SpreadEveryTicks == 0 {
		return fmt.Errorf("spread_every_ticks must be > 0")
	}
	if err := c.Corruption.Validate(); err != nil {
		return err
	}
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if err := c.Spawn.Validate(); err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	if err := c.Trader.Validate(); err != nil {
		return fmt.Errorf("trader: %w", err)
	}
	return nil
}

type Mod struct {
	env *env.Context
	cfg Config

	Corruption *corruption.Engine
	Gate       *gate.Gate
	Spawn      *spawn.Router
	Market     *trader.Market

	panics uint64
}

func New(e *env.Context, cfg Config) *Mod {
	e.Normalize()
	g := gate.New(e, cfg.Gate)
	return &Mod{
		env:        e,
		cfg:        cfg,
		Corruption: corruption.New(e.Rand, cfg.Corruption),
		Gate:       g,
		Spawn:      spawn.New(e, cfg.Spawn, g),
		Market:     trader.NewMarket(e, cfg.Trader),
	}
}

func (m *Mod) Env() *env.Context { return m.env }

// Panics counts handler panics that were recovered.
func (m *Mod) Panics() uint64 { return m.panics }

func (m *Mod) recover(where string) {
	if r := recover(); r != nil {
		m.panics++
		m.env.Log.Printf("mod: panic in %s: %v\n%s", where, r, debug.Stack())
	}
}

func (m *Mod) HandleJoin(p host.Player) {
	defer m.recover("join")
	m.Spawn.HandleJoin(p)
}

func (m *Mod) HandleRespawn(old, p host.Player, wasAlive bool) {
	defer m.recover("respawn")
	m.Spawn.HandleRespawn(old, p, wasAlive)
}

func (m *Mod) HandleLeave(p host.Player) {
	defer m.recover("leave")
	m.Gate.Forget(p.ID())
	m.Spawn.HandleLeave(p)
}

func (m *Mod) HandleEntityDeath(e host.Entity, src host.DamageSource) {
	defer m.recover("entity death")
	m.Gate.HandleEntityDeath(e, src)
}

func (m *Mod) HandleBlockCollision(ctx *event.Context[host.Entity], mat material.Material, r region.Region, pos cube.Pos) {
	defer m.recover("block collision")
	m.Gate.HandleBlockCollision(ctx, mat, r, pos)
}

func (m *Mod) HandleChunkLoad(r region.Region, c terrain.ChunkPos) {
	defer m.recover("chunk load")
	t, ok := m.env.Worlds.Terrain(r)
	if !ok {
		m.env.Log.Printf("mod: chunk load in %s without a world", r)
		return
	}
	m.Corruption.ApplyChunkCorruption(r, t, c)
}

// HandleTick drains deferred effects, then runs periodic work.
func (m *Mod) HandleTick(tick uint64) {
	defer m.recover("tick")
	m.env.Sched.Advance(tick)
	if tick%m.cfg.SpreadEveryTicks == 0 {
		for _, r := range region.All() {
			if t, ok := m.env.Worlds.Terrain(r); ok {
				m.Corruption.SpreadNaturally(r, t)
			}
		}
	}
	m.Market.Tick(tick)
}

// ObserveTerrainChange keeps the catalyst index current for writes the mod
// did not make itself.
func (m *Mod) ObserveTerrainChange(r region.Region, pos cube.Pos, from, to material.Material) {
	m.Corruption.ObserveChange(r, pos, from, to)
}

var _ host.Handler = (*Mod)(nil)
