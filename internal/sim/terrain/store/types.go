package store

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
)

// Chunk is one 16x16 column spanning the region's full build range.
type Chunk struct {
	Pos    terrain.ChunkPos
	MinY   int
	Height int
	Blocks []uint16 // len = 16*16*Height, x fastest, then z, then y

	dirty bool
	hash  [32]byte
}

func newChunk(pos terrain.ChunkPos, r cube.Range) *Chunk {
	h := r.Height() + 1
	return &Chunk{Pos: pos, MinY: r.Min(), Height: h, Blocks: make([]uint16, 16*16*h)}
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*16 + (y-c.MinY)*256
}

func (c *Chunk) Get(x, y, z int) material.Material {
	return material.Material(c.Blocks[c.index(x, y, z)])
}

func (c *Chunk) Set(x, y, z int, m material.Material) {
	i := c.index(x, y, z)
	if c.Blocks[i] == uint16(m) {
		return
	}
	c.Blocks[i] = uint16(m)
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Seed    int64
	Region  region.Region
	BorderR int // blocks; 0 disables the border
}

// ChangeFunc observes every effective cell write.
type ChangeFunc func(pos cube.Pos, from, to material.Material)

// ChunkStore is the reference terrain.Facade. Accessed only from the world
// loop goroutine.
type ChunkStore struct {
	Gen    WorldGen
	Range  cube.Range
	Chunks map[terrain.ChunkPos]*Chunk

	// OnSet, when set, is called after each write that changes a cell.
	OnSet ChangeFunc
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		Gen:    gen,
		Range:  gen.Region.Range(),
		Chunks: map[terrain.ChunkPos]*Chunk{},
	}
}

var _ terrain.Facade = (*ChunkStore)(nil)
