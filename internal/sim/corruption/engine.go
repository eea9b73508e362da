// Package corruption mutates terrain toward each region's corruption palette:
// chunk patches with linear falloff on load, and periodic propagation from
// catalyst cells.
package corruption

import (
	"fmt"
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/rng"
	"enderborne.gg/internal/sim/terrain"
)

type Config struct {
	Regions map[region.Region]region.Params `yaml:"regions"`

	MaxPatches     int     `yaml:"max_patches"`
	MinRadius      int     `yaml:"min_radius"`
	MaxRadius      int     `yaml:"max_radius"`
	BandBelow      int     `yaml:"band_below"`
	BandAbove      int     `yaml:"band_above"`
	CatalystChance float64 `yaml:"catalyst_chance"`

	SpreadChance       float64 `yaml:"spread_chance"`
	SpreadChunkRange   int     `yaml:"spread_chunk_range"`
	CatalystRadius     int     `yaml:"catalyst_radius"`
	CatalystCellChance float64 `yaml:"catalyst_cell_chance"`
}

func DefaultConfig() Config {
	regions := map[region.Region]region.Params{}
	for _, r := range region.All() {
		regions[r] = r.DefaultParams()
	}
	return Config{
		Regions:            regions,
		MaxPatches:         3,
		MinRadius:          2,
		MaxRadius:          5,
		BandBelow:          1,
		BandAbove:          2,
		CatalystChance:     0.3,
		SpreadChance:       0.1,
		SpreadChunkRange:   100,
		CatalystRadius:     3,
		CatalystCellChance: 0.1,
	}
}

func (c Config) Validate() error {
	for r, p := range c.Regions {
		if p.Chance < 0 || p.Chance > 1 || p.Intensity < 0 || p.Intensity > 1 {
			return fmt.Errorf("corruption: %s params out of [0,1]: %+v", r, p)
		}
	}
	switch {
	case c.MaxPatches < 1:
		return fmt.Errorf("corruption: max_patches must be >= 1")
	case c.MinRadius < 1 || c.MaxRadius < c.MinRadius:
		return fmt.Errorf("corruption: bad radius range [%d,%d]", c.MinRadius, c.MaxRadius)
	case c.BandBelow < 0 || c.BandAbove < 0:
		return fmt.Errorf("corruption: negative y band")
	case c.SpreadChunkRange < 1:
		return fmt.Errorf("corruption: spread_chunk_range must be >= 1")
	case c.CatalystRadius < 0:
		return fmt.Errorf("corruption: negative catalyst_radius")
	}
	return nil
}

// Params returns the chance/intensity in effect for r.
func (c Config) Params(r region.Region) region.Params {
	if p, ok := c.Regions[r]; ok {
		return p
	}
	return r.DefaultParams()
}

// Stats counts engine activity since construction.
type Stats struct {
	ChunksGated     uint64
	ChunksCorrupted uint64
	Patches         uint64
	CellsWritten    uint64
	CatalystsPlaced uint64
	Spreads         uint64
	SpreadMisses    uint64
}

// Engine is owned by the simulation goroutine.
type Engine struct {
	rng rng.Source
	cfg Config

	catalysts map[region.Region]*catalystIndex
	stats     Stats
}

func New(src rng.Source, cfg Config) *Engine {
	e := &Engine{
		rng:       src,
		cfg:       cfg,
		catalysts: map[region.Region]*catalystIndex{},
	}
	for _, r := range region.All() {
		e.catalysts[r] = newCatalystIndex()
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }
func (e *Engine) Stats() Stats   { return e.stats }

// Patch is a transient corruption disc around a host cell.
type Patch struct {
	Center    cube.Pos
	Radius    int
	Intensity float64
}

// Bounds returns the inclusive corners of the cells the patch samples.
func (p Patch) Bounds(below, above int) (lo, hi cube.Pos) {
	return p.Center.Add(cube.Pos{-p.Radius, -below, -p.Radius}), p.Center.Add(cube.Pos{p.Radius, above, p.Radius})
}

// ApplyChunkCorruption runs one corruption pass over chunk c. It returns the
// patches that were materialized.
func (e *Engine) ApplyChunkCorruption(r region.Region, t terrain.Facade, c terrain.ChunkPos) []Patch {
	p := e.cfg.Params(r)
	if e.rng.Float64() > p.Chance {
		e.stats.ChunksGated++
		return nil
	}
	e.stats.ChunksCorrupted++

	ox, oz := c.Origin()
	n := e.rng.IntN(e.cfg.MaxPatches) + 1
	var out []Patch
	for i := 0; i < n; i++ {
		x := ox + e.rng.IntN(terrain.ChunkSize)
		z := oz + e.rng.IntN(terrain.ChunkSize)
		y, ok := suitableY(t, x, z)
		if !ok {
			continue
		}
		patch := Patch{
			Center:    cube.Pos{x, y, z},
			Radius:    e.rng.IntN(e.cfg.MaxRadius-e.cfg.MinRadius+1) + e.cfg.MinRadius,
			Intensity: p.Intensity,
		}
		e.materialize(r, t, patch)
		out = append(out, patch)
	}
	return out
}

// suitableY finds the highest non-air host cell of the column.
func suitableY(t terrain.Facade, x, z int) (int, bool) {
	for y := t.SurfaceHeight(x, z); y > t.Bottom(); y-- {
		m := t.Material(cube.Pos{x, y, z})
		if !m.Air() && m.Host() {
			return y, true
		}
	}
	return 0, false
}

func (e *Engine) materialize(r region.Region, t terrain.Facade, p Patch) {
	e.stats.Patches++
	rad := float64(p.Radius)
	for dx := -p.Radius; dx <= p.Radius; dx++ {
		for dz := -p.Radius; dz <= p.Radius; dz++ {
			for dy := -e.cfg.BandBelow; dy <= e.cfg.BandAbove; dy++ {
				d := math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
				prob := math.Max(0, p.Intensity*(1-d/rad))
				if e.rng.Float64() < prob {
					e.TryCorrupt(r, t, p.Center.Add(cube.Pos{dx, dy, dz}))
				}
			}
		}
	}
	if e.rng.Float64() < e.cfg.CatalystChance && terrain.Placeable(t, p.Center) {
		e.set(r, t, p.Center, material.SculkCatalyst)
	}
}

// TryCorrupt applies the corruption decision to one cell and reports whether
// a write happened.
func (e *Engine) TryCorrupt(r region.Region, t terrain.Facade, pos cube.Pos) bool {
	if !terrain.Placeable(t, pos) {
		return false
	}
	palette := r.Palette()
	m := palette[e.rng.IntN(len(palette))]
	cur := t.Material(pos)

	if m == material.SculkVein && !cur.Air() {
		up := pos.Side(cube.FaceUp)
		if !terrain.Placeable(t, up) {
			return false
		}
		e.set(r, t, up, m)
		return true
	}
	if !cur.Replaceable() {
		return false
	}
	e.set(r, t, pos, m)
	return true
}

// SpreadNaturally is the periodic propagation step: with the configured
// chance it picks a pseudo-random chunk and spreads from its first catalyst.
func (e *Engine) SpreadNaturally(r region.Region, t terrain.Facade) bool {
	if e.rng.Float64() >= e.cfg.SpreadChance {
		return false
	}
	n := e.cfg.SpreadChunkRange
	c := terrain.ChunkPos{e.rng.IntN(2*n) - n, e.rng.IntN(2*n) - n}
	pos, ok := e.FindCatalyst(r, t, c)
	if !ok {
		e.stats.SpreadMisses++
		return false
	}
	e.SpreadFromCatalyst(r, t, pos)
	return true
}

// SpreadFromCatalyst corrupts each cell of the cubic neighborhood around pos
// with the configured per-cell chance.
func (e *Engine) SpreadFromCatalyst(r region.Region, t terrain.Facade, pos cube.Pos) {
	e.stats.Spreads++
	n := e.cfg.CatalystRadius
	for dx := -n; dx <= n; dx++ {
		for dz := -n; dz <= n; dz++ {
			for dy := -n; dy <= n; dy++ {
				if e.rng.Float64() < e.cfg.CatalystCellChance {
					e.TryCorrupt(r, t, pos.Add(cube.Pos{dx, dy, dz}))
				}
			}
		}
	}
}

func (e *Engine) set(r region.Region, t terrain.Facade, pos cube.Pos, m material.Material) {
	prev := t.Material(pos)
	if prev == m {
		return
	}
	t.SetMaterial(pos, m)
	e.stats.CellsWritten++
	if m == material.SculkCatalyst {
		e.stats.CatalystsPlaced++
	}
	e.ObserveChange(r, pos, prev, m)
}
