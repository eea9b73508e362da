package store

import (
	"sort"

	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/mathx"
	"enderborne.gg/internal/sim/terrain"
)

func (s *ChunkStore) InBuildLimits(pos cube.Pos) bool {
	return !pos.OutOfBounds(s.Range)
}

func (s *ChunkStore) InWorldBorder(pos cube.Pos) bool {
	r := s.Gen.BorderR
	if r <= 0 {
		return true
	}
	return pos.X() >= -r && pos.X() <= r && pos.Z() >= -r && pos.Z() <= r
}

func (s *ChunkStore) Bottom() int { return s.Range.Min() }

func (s *ChunkStore) Liquid(pos cube.Pos) bool { return s.Material(pos).Liquid() }

func (s *ChunkStore) Material(pos cube.Pos) material.Material {
	if !s.InBuildLimits(pos) {
		return material.Air
	}
	ch := s.GetOrGenChunk(terrain.ChunkOf(pos))
	return ch.Get(mathx.Mod(pos.X(), 16), pos.Y(), mathx.Mod(pos.Z(), 16))
}

func (s *ChunkStore) SetMaterial(pos cube.Pos, m material.Material) {
	if !s.InBuildLimits(pos) {
		return
	}
	ch := s.GetOrGenChunk(terrain.ChunkOf(pos))
	lx, lz := mathx.Mod(pos.X(), 16), mathx.Mod(pos.Z(), 16)
	from := ch.Get(lx, pos.Y(), lz)
	if from == m {
		return
	}
	ch.Set(lx, pos.Y(), lz, m)
	if s.OnSet != nil {
		s.OnSet(pos, from, m)
	}
}

func (s *ChunkStore) SurfaceHeight(x, z int) int {
	ch := s.GetOrGenChunk(terrain.ChunkOf(cube.Pos{x, 0, z}))
	lx, lz := mathx.Mod(x, 16), mathx.Mod(z, 16)
	for y := s.Range.Max(); y >= s.Range.Min(); y-- {
		if !ch.Get(lx, y, lz).Air() {
			return y + 1
		}
	}
	return s.Range.Min()
}

// Loaded reports whether the column has been generated or imported.
func (s *ChunkStore) Loaded(pos terrain.ChunkPos) bool {
	_, ok := s.Chunks[pos]
	return ok
}

func (s *ChunkStore) LoadedChunkKeys() []terrain.ChunkPos {
	keys := make([]terrain.ChunkPos, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	return keys
}

func (s *ChunkStore) GetOrGenChunk(pos terrain.ChunkPos) *Chunk {
	if ch, ok := s.Chunks[pos]; ok {
		return ch
	}
	ch := newChunk(pos, s.Range)
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[pos] = ch
	return ch
}
