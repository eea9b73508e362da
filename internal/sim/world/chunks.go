package world

import (
	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
	"enderborne.gg/internal/sim/terrain/store"
)

// systemChunkLoading loads the columns around every living player. A column
// fires its chunk-load event once, the first time it comes into view.
func (w *World) systemChunkLoading() {
	r := w.cfg.ViewRadius
	for _, p := range w.sortedPlayers() {
		if !p.alive {
			continue
		}
		rs := w.regions[p.reg]
		center := terrain.ChunkOf(cube.PosFromVec3(p.pos))
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				c := terrain.ChunkPos{center.X() + dx, center.Z() + dz}
				if rs.seen.Has(c) {
					continue
				}
				rs.store.GetOrGenChunk(c)
				rs.seen.Put(c)
				w.mod.HandleChunkLoad(p.reg, c)
			}
		}
	}
}

func (w *World) onTerrainSet(r region.Region) store.ChangeFunc {
	return func(pos cube.Pos, from, to material.Material) {
		w.env.Record(audit.Entry{
			Actor:  "corruption",
			Action: audit.ActionSetBlock,
			Region: r.String(),
			Pos:    [3]int{pos.X(), pos.Y(), pos.Z()},
			From:   from.String(),
			To:     to.String(),
			Reason: w.writeCause,
		})
		w.mod.ObserveTerrainChange(r, pos, from, to)
	}
}

func (w *World) loadedChunks() int {
	n := 0
	for _, rs := range w.regions {
		n += len(rs.store.Chunks)
	}
	return n
}
