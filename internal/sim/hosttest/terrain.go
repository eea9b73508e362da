// Package hosttest provides in-memory fakes of the host contracts for tests.
package hosttest

import (
	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/terrain"
)

type Write struct {
	Pos      cube.Pos
	From, To material.Material
}

// Terrain is a sparse terrain.Facade. Unset cells are air.
type Terrain struct {
	Range   cube.Range
	BorderR int

	Cells  map[cube.Pos]material.Material
	Writes []Write

	// Unloaded chunks report false from Loaded.
	Unloaded map[terrain.ChunkPos]bool
}

func NewTerrain(r cube.Range) *Terrain {
	return &Terrain{Range: r, Cells: map[cube.Pos]material.Material{}}
}

// Fill sets every cell of the inclusive box without recording writes.
func (t *Terrain) Fill(lo, hi cube.Pos, m material.Material) {
	for x := lo.X(); x <= hi.X(); x++ {
		for y := lo.Y(); y <= hi.Y(); y++ {
			for z := lo.Z(); z <= hi.Z(); z++ {
				t.Cells[cube.Pos{x, y, z}] = m
			}
		}
	}
}

// Snapshot copies the current cells.
func (t *Terrain) Snapshot() map[cube.Pos]material.Material {
	out := make(map[cube.Pos]material.Material, len(t.Cells))
	for k, v := range t.Cells {
		out[k] = v
	}
	return out
}

func (t *Terrain) Material(pos cube.Pos) material.Material {
	return t.Cells[pos]
}

func (t *Terrain) SetMaterial(pos cube.Pos, m material.Material) {
	if !t.InBuildLimits(pos) {
		return
	}
	from := t.Cells[pos]
	t.Cells[pos] = m
	t.Writes = append(t.Writes, Write{Pos: pos, From: from, To: m})
}

func (t *Terrain) Liquid(pos cube.Pos) bool { return t.Cells[pos].Liquid() }

func (t *Terrain) SurfaceHeight(x, z int) int {
	for y := t.Range.Max(); y >= t.Range.Min(); y-- {
		if !t.Cells[cube.Pos{x, y, z}].Air() {
			return y + 1
		}
	}
	return t.Range.Min()
}

func (t *Terrain) Bottom() int { return t.Range.Min() }

func (t *Terrain) InBuildLimits(pos cube.Pos) bool { return !pos.OutOfBounds(t.Range) }

func (t *Terrain) InWorldBorder(pos cube.Pos) bool {
	if t.BorderR <= 0 {
		return true
	}
	return pos.X() >= -t.BorderR && pos.X() <= t.BorderR && pos.Z() >= -t.BorderR && pos.Z() <= t.BorderR
}

func (t *Terrain) Loaded(c terrain.ChunkPos) bool { return !t.Unloaded[c] }

var _ terrain.Facade = (*Terrain)(nil)
