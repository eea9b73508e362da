package corruption

import (
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/stretchr/testify/require"

	"enderborne.gg/internal/sim/hosttest"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/mathx"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/rng"
	"enderborne.gg/internal/sim/terrain"
)

// slab lays a 48x4x48 host slab with its top at y=60 across chunks -1..1.
func slab(r region.Region, m material.Material) *hosttest.Terrain {
	t := hosttest.NewTerrain(r.Range())
	t.Fill(cube.Pos{-16, 57, -16}, cube.Pos{31, 60, 31}, m)
	return t
}

func TestChunkGateSkipsAllWrites(t *testing.T) {
	for _, r := range region.All() {
		p := r.DefaultParams()
		tr := slab(r, material.Stone)
		e := New(&rng.Script{Floats: []float64{p.Chance + 0.001}}, DefaultConfig())

		patches := e.ApplyChunkCorruption(r, tr, terrain.ChunkPos{0, 0})
		require.Empty(t, patches, r.String())
		require.Empty(t, tr.Writes, r.String())
		require.EqualValues(t, 1, e.Stats().ChunksGated)
	}
}

func TestChunkGateBoundaryProceeds(t *testing.T) {
	tr := slab(region.Origin, material.EndStone)
	src := &rng.Script{Floats: []float64{0.75}, Fallback: rng.New(3)}
	e := New(src, DefaultConfig())

	patches := e.ApplyChunkCorruption(region.Origin, tr, terrain.ChunkPos{0, 0})
	require.NotEmpty(t, patches)
	require.EqualValues(t, 0, e.Stats().ChunksGated)
	for _, p := range patches {
		require.GreaterOrEqual(t, p.Center.Y(), 57)
		require.LessOrEqual(t, p.Center.Y(), 60)
		require.GreaterOrEqual(t, p.Radius, 2)
		require.LessOrEqual(t, p.Radius, 5)
		require.Equal(t, 0.80, p.Intensity)
	}
}

func TestPatchWritesStayInsideBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Regions[region.Origin] = region.Params{Chance: 1, Intensity: 0.8}
	for seed := uint64(1); seed <= 40; seed++ {
		tr := slab(region.Origin, material.EndStone)
		e := New(rng.New(seed), cfg)
		patches := e.ApplyChunkCorruption(region.Origin, tr, terrain.ChunkPos{0, 0})

		for _, w := range tr.Writes {
			inside := false
			for _, p := range patches {
				lo, hi := p.Bounds(cfg.BandBelow, cfg.BandAbove+1)
				if w.Pos.X() >= lo.X() && w.Pos.X() <= hi.X() &&
					w.Pos.Y() >= lo.Y() && w.Pos.Y() <= hi.Y() &&
					w.Pos.Z() >= lo.Z() && w.Pos.Z() <= hi.Z() {
					inside = true
					break
				}
			}
			require.Truef(t, inside, "seed %d: write %v outside every patch %v", seed, w.Pos, patches)
		}
	}
}

func TestCorruptionRespectsWhitelist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Regions[region.Origin] = region.Params{Chance: 1, Intensity: 1}
	for seed := uint64(1); seed <= 20; seed++ {
		tr := slab(region.Origin, material.EndStone)
		// A player structure sitting on and inside the slab.
		tr.Fill(cube.Pos{0, 58, 0}, cube.Pos{15, 62, 15}, material.Planks)
		tr.Fill(cube.Pos{4, 61, 4}, cube.Pos{6, 61, 6}, material.Obsidian)
		before := tr.Snapshot()

		e := New(rng.New(seed), cfg)
		for i := 0; i < 5; i++ {
			e.ApplyChunkCorruption(region.Origin, tr, terrain.ChunkPos{-1, -1})
			e.ApplyChunkCorruption(region.Origin, tr, terrain.ChunkPos{0, 0})
			e.ApplyChunkCorruption(region.Origin, tr, terrain.ChunkPos{1, 1})
		}
		for _, w := range tr.Writes {
			require.True(t, w.To.Corrupted())
			// Veins grow on top of whatever they were drawn for.
			if w.To == material.SculkVein {
				continue
			}
			require.Truef(t, before[w.Pos].Replaceable(), "seed %d: overwrote %s at %v", seed, before[w.Pos], w.Pos)
		}
	}
}

func TestVeinTargetsCellAbove(t *testing.T) {
	tr := hosttest.NewTerrain(region.Surface.Range())
	target := cube.Pos{3, 10, 3}
	tr.Cells[target] = material.Stone

	// Surface palette index 0 is the vein.
	e := New(&rng.Script{Ints: []int{0}}, DefaultConfig())
	require.True(t, e.TryCorrupt(region.Surface, tr, target))
	require.Equal(t, material.Stone, tr.Material(target))
	require.Equal(t, material.SculkVein, tr.Material(target.Side(cube.FaceUp)))
	require.Len(t, tr.Writes, 1)
	require.Equal(t, target.Side(cube.FaceUp), tr.Writes[0].Pos)
}

func TestVeinOnAirReplacesInPlace(t *testing.T) {
	tr := hosttest.NewTerrain(region.Surface.Range())
	pos := cube.Pos{0, 5, 0}
	e := New(&rng.Script{Ints: []int{0}}, DefaultConfig())
	require.True(t, e.TryCorrupt(region.Surface, tr, pos))
	require.Equal(t, material.SculkVein, tr.Material(pos))
}

func TestVeinOverwritesCellAbove(t *testing.T) {
	tr := hosttest.NewTerrain(region.Surface.Range())
	pos := cube.Pos{0, 5, 0}
	tr.Cells[pos] = material.Dirt
	tr.Cells[pos.Side(cube.FaceUp)] = material.Planks
	e := New(&rng.Script{Ints: []int{0}}, DefaultConfig())
	require.True(t, e.TryCorrupt(region.Surface, tr, pos))
	require.Equal(t, material.SculkVein, tr.Material(pos.Side(cube.FaceUp)))

	wet := cube.Pos{4, 5, 0}
	tr.Cells[wet] = material.Stone
	tr.Cells[wet.Side(cube.FaceUp)] = material.Water
	e = New(&rng.Script{Ints: []int{0}}, DefaultConfig())
	require.False(t, e.TryCorrupt(region.Surface, tr, wet), "vein into liquid")

	top := cube.Pos{0, 319, 0}
	tr.Cells[top] = material.Stone
	e = New(&rng.Script{Ints: []int{0}}, DefaultConfig())
	require.False(t, e.TryCorrupt(region.Surface, tr, top), "vein above build limit")
	require.Len(t, tr.Writes, 1)
}

func TestIneligibleCellsAreNeverWritten(t *testing.T) {
	tr := hosttest.NewTerrain(region.Origin.Range())
	tr.BorderR = 10
	water := cube.Pos{0, 5, 0}
	tr.Cells[water] = material.Water
	outside := cube.Pos{11, 5, 0}
	tr.Cells[outside] = material.EndStone

	e := New(rng.New(1), DefaultConfig())
	for i := 0; i < 50; i++ {
		e.TryCorrupt(region.Origin, tr, water)
		e.TryCorrupt(region.Origin, tr, outside)
		e.TryCorrupt(region.Origin, tr, cube.Pos{0, 256, 0})
		e.TryCorrupt(region.Origin, tr, cube.Pos{0, -1, 0})
	}
	require.Empty(t, tr.Writes)
}

func TestPaletteByRegion(t *testing.T) {
	for _, r := range region.All() {
		tr := hosttest.NewTerrain(r.Range())
		e := New(rng.New(9), DefaultConfig())
		allowed := map[material.Material]bool{}
		for _, m := range r.Palette() {
			allowed[m] = true
		}
		for x := 0; x < 200; x++ {
			e.TryCorrupt(r, tr, cube.Pos{x, 10, 0})
		}
		for _, w := range tr.Writes {
			require.Truef(t, allowed[w.To], "%s wrote %s", r, w.To)
		}
	}
}

func TestCatalystPlacedAtPatchCenter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Regions[region.Nether] = region.Params{Chance: 1, Intensity: 0}
	cfg.CatalystChance = 1
	tr := slab(region.Nether, material.Netherrack)
	e := New(rng.New(4), cfg)

	patches := e.ApplyChunkCorruption(region.Nether, tr, terrain.ChunkPos{0, 0})
	require.NotEmpty(t, patches)
	for _, p := range patches {
		require.Equal(t, material.SculkCatalyst, tr.Material(p.Center))
	}
	for _, w := range tr.Writes {
		require.Equal(t, material.SculkCatalyst, w.To, "zero intensity only places catalysts")
	}
	require.Equal(t, int(e.Stats().CatalystsPlaced), e.KnownCatalysts(region.Nether))
}

func TestSpreadNaturallyGate(t *testing.T) {
	tr := slab(region.Origin, material.EndStone)
	tr.Cells[cube.Pos{1, 60, 1}] = material.SculkCatalyst
	e := New(&rng.Script{Floats: []float64{0.1}}, DefaultConfig())
	require.False(t, e.SpreadNaturally(region.Origin, tr))
	require.Len(t, tr.Writes, 0)
	require.EqualValues(t, 0, e.Stats().Spreads)
}

func TestSpreadNaturallyFromOneCatalyst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpreadChance = 1
	cfg.SpreadChunkRange = 1
	cfg.CatalystCellChance = 1

	tr := slab(region.Origin, material.EndStone)
	for _, c := range []cube.Pos{{-8, 60, -8}, {8, 60, -8}, {-8, 60, 8}, {8, 60, 8}} {
		tr.Cells[c] = material.SculkCatalyst
	}
	e := New(rng.New(2), cfg)
	require.True(t, e.SpreadNaturally(region.Origin, tr))
	require.EqualValues(t, 1, e.Stats().Spreads)

	// Every write lies within radius 3 of one catalyst (plus one for veins).
	var anchor *cube.Pos
	for _, w := range tr.Writes {
		for _, c := range []cube.Pos{{-8, 60, -8}, {8, 60, -8}, {-8, 60, 8}, {8, 60, 8}} {
			d := w.Pos.Sub(c)
			if mathx.Abs(d.X()) <= 3 && mathx.Abs(d.Z()) <= 3 && d.Y() >= -3 && d.Y() <= 4 {
				if anchor == nil {
					cc := c
					anchor = &cc
				}
				require.Equal(t, *anchor, c, "spread touched a second catalyst's neighborhood")
			}
		}
	}
	require.NotNil(t, anchor)
}

type countingSource struct {
	rng.Source
	floats int
}

func (c *countingSource) Float64() float64 {
	c.floats++
	return c.Source.Float64()
}

func TestCatalystSpreadRollsEveryNeighbor(t *testing.T) {
	tr := slab(region.Origin, material.EndStone)
	src := &countingSource{Source: rng.New(5)}
	e := New(src, DefaultConfig())

	e.SpreadFromCatalyst(region.Origin, tr, cube.Pos{0, 60, 0})
	require.Equal(t, 7*7*7, src.floats)
	require.EqualValues(t, 1, e.Stats().Spreads)
	for _, w := range tr.Writes {
		d := w.Pos.Sub(cube.Pos{0, 60, 0})
		require.LessOrEqual(t, mathx.Abs(d.X()), 3)
		require.LessOrEqual(t, mathx.Abs(d.Z()), 3)
		require.GreaterOrEqual(t, d.Y(), -3)
		require.LessOrEqual(t, d.Y(), 4)
	}
}

func TestFindCatalystScansBeforeTrustingIndex(t *testing.T) {
	tr := slab(region.Origin, material.EndStone)
	c := terrain.ChunkPos{0, 0}
	e := New(rng.New(1), DefaultConfig())

	// Present before the engine was watching, e.g. restored from disk.
	restored := cube.Pos{1, 60, 1}
	tr.Cells[restored] = material.SculkCatalyst
	newer := cube.Pos{9, 60, 9}
	tr.Cells[newer] = material.SculkCatalyst
	e.ObserveChange(region.Origin, newer, material.EndStone, material.SculkCatalyst)

	got, ok := e.FindCatalyst(region.Origin, tr, c)
	require.True(t, ok)
	require.Equal(t, restored, got)
	require.Equal(t, 2, e.KnownCatalysts(region.Origin))

	// Once scanned, observed removals are enough to move on.
	tr.Cells[restored] = material.EndStone
	e.ObserveChange(region.Origin, restored, material.SculkCatalyst, material.EndStone)
	got, ok = e.FindCatalyst(region.Origin, tr, c)
	require.True(t, ok)
	require.Equal(t, newer, got)

	e.ForgetCatalysts()
	require.Zero(t, e.KnownCatalysts(region.Origin))
	got, ok = e.FindCatalyst(region.Origin, tr, c)
	require.True(t, ok)
	require.Equal(t, newer, got)
}

func TestFindCatalystMatchesScanOrder(t *testing.T) {
	tr := slab(region.Origin, material.EndStone)
	c := terrain.ChunkPos{0, 0}
	e := New(rng.New(1), DefaultConfig())
	for _, p := range []cube.Pos{{5, 58, 2}, {5, 60, 2}, {2, 59, 9}, {9, 60, 0}} {
		tr.Cells[p] = material.SculkCatalyst
		e.ObserveChange(region.Origin, p, material.EndStone, material.SculkCatalyst)
	}
	want, ok := ScanCatalyst(tr, c)
	require.True(t, ok)
	got, ok := e.FindCatalyst(region.Origin, tr, c)
	require.True(t, ok)
	require.Equal(t, want, got)
	require.Equal(t, cube.Pos{2, 59, 9}, got)
}

func TestFindCatalystPrunesStaleAndFallsBack(t *testing.T) {
	tr := slab(region.Origin, material.EndStone)
	c := terrain.ChunkPos{0, 0}
	e := New(rng.New(1), DefaultConfig())

	stale := cube.Pos{1, 60, 1}
	e.ObserveChange(region.Origin, stale, material.EndStone, material.SculkCatalyst)
	require.Equal(t, 1, e.KnownCatalysts(region.Origin))

	// Placed behind the engine's back: only the scan can see it.
	hidden := cube.Pos{7, 57, 7}
	tr.Cells[hidden] = material.SculkCatalyst

	got, ok := e.FindCatalyst(region.Origin, tr, c)
	require.True(t, ok)
	require.Equal(t, hidden, got)
	require.Equal(t, 1, e.KnownCatalysts(region.Origin), "stale entry pruned, scanned one indexed")

	tr.Unloaded = map[terrain.ChunkPos]bool{{3, 3}: true}
	tr.Cells[cube.Pos{49, 60, 49}] = material.SculkCatalyst
	_, ok = e.FindCatalyst(region.Origin, tr, terrain.ChunkPos{3, 3})
	require.False(t, ok, "unloaded chunks are not scanned")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.MaxRadius = 1
	require.Error(t, bad.Validate())
	bad = DefaultConfig()
	bad.Regions[region.Surface] = region.Params{Chance: 2}
	require.Error(t, bad.Validate())
}
