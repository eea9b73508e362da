package store

import (
	"fmt"

	snapv1 "enderborne.gg/internal/persistence/snapshot"
	"enderborne.gg/internal/sim/terrain"
)

// ExportLoadedChunks converts loaded chunk data into snapshot chunks.
func ExportLoadedChunks(chunks map[terrain.ChunkPos]*Chunk, keys []terrain.ChunkPos) []snapv1.ChunkV1 {
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := chunks[k]
		if ch == nil {
			continue
		}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		out = append(out, snapv1.ChunkV1{
			CX:     k[0],
			CZ:     k[1],
			MinY:   ch.MinY,
			Height: ch.Height,
			Blocks: blocks,
		})
	}
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks.
func ImportChunks(gen WorldGen, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore(gen)
	wantHeight := store.Range.Height() + 1
	for _, ch := range chunks {
		if ch.MinY != store.Range.Min() || ch.Height != wantHeight {
			return nil, fmt.Errorf("snapshot chunk range mismatch: got [%d,+%d) want [%d,+%d)", ch.MinY, ch.Height, store.Range.Min(), wantHeight)
		}
		if len(ch.Blocks) != 16*16*wantHeight {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), 16*16*wantHeight)
		}
		k := terrain.ChunkPos{ch.CX, ch.CZ}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		c := &Chunk{
			Pos:    k,
			MinY:   ch.MinY,
			Height: ch.Height,
			Blocks: blocks,
		}
		_ = c.Digest()
		store.Chunks[k] = c
	}
	return store, nil
}
