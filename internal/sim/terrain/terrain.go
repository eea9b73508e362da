// Package terrain declares the single-cell access contract the mod uses to
// read and mutate a region's world.
package terrain

import (
	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/mathx"
	"enderborne.gg/internal/sim/material"
)

// Facade is the host's terrain store for one region. Calls are immediate and
// visible to subsequent calls; there is no transaction.
type Facade interface {
	Material(pos cube.Pos) material.Material
	SetMaterial(pos cube.Pos, m material.Material)
	Liquid(pos cube.Pos) bool
	// SurfaceHeight is one above the highest non-air cell of the column, or
	// Bottom() for an empty column.
	SurfaceHeight(x, z int) int
	Bottom() int
	InBuildLimits(pos cube.Pos) bool
	InWorldBorder(pos cube.Pos) bool
}

// Loader is implemented by facades that can tell whether a column exists
// yet. Reading an unloaded column may force it to generate.
type Loader interface {
	Loaded(c ChunkPos) bool
}

// ChunkSize is the edge length of a chunk column.
const ChunkSize = 16

// ChunkPos is the (x, z) index of a 16x16 column.
type ChunkPos [2]int

func (c ChunkPos) X() int { return c[0] }
func (c ChunkPos) Z() int { return c[1] }

// Origin returns the block coordinate of the column's minimum corner.
func (c ChunkPos) Origin() (x, z int) { return c[0] * ChunkSize, c[1] * ChunkSize }

// ChunkOf returns the column holding pos.
func ChunkOf(pos cube.Pos) ChunkPos {
	return ChunkPos{mathx.FloorDiv(pos.X(), ChunkSize), mathx.FloorDiv(pos.Z(), ChunkSize)}
}

// Placeable reports whether a corruption write to pos is allowed at all.
func Placeable(t Facade, pos cube.Pos) bool {
	return t.InBuildLimits(pos) && !t.Liquid(pos) && t.InWorldBorder(pos)
}
