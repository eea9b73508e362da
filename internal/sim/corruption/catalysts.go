package corruption

import (
	"sort"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/zyedidia/generic/mapset"

	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
)

// catalystIndex tracks known catalyst cells per chunk. A chunk's entries are
// only trusted once the chunk has been scanned in full; after that, observed
// changes keep them current. Lookups re-read the terrain and drop stale ones.
type catalystIndex struct {
	chunks  map[terrain.ChunkPos]mapset.Set[cube.Pos]
	scanned mapset.Set[terrain.ChunkPos]
}

func newCatalystIndex() *catalystIndex {
	return &catalystIndex{
		chunks:  map[terrain.ChunkPos]mapset.Set[cube.Pos]{},
		scanned: mapset.New[terrain.ChunkPos](),
	}
}

// rebuild replaces the entries of c with found and marks c as scanned.
func (ix *catalystIndex) rebuild(c terrain.ChunkPos, found []cube.Pos) {
	delete(ix.chunks, c)
	for _, pos := range found {
		ix.put(pos)
	}
	ix.scanned.Put(c)
}

func (ix *catalystIndex) put(pos cube.Pos) {
	c := terrain.ChunkOf(pos)
	s, ok := ix.chunks[c]
	if !ok {
		s = mapset.New[cube.Pos]()
		ix.chunks[c] = s
	}
	s.Put(pos)
}

func (ix *catalystIndex) remove(pos cube.Pos) {
	c := terrain.ChunkOf(pos)
	s, ok := ix.chunks[c]
	if !ok {
		return
	}
	s.Remove(pos)
	if s.Size() == 0 {
		delete(ix.chunks, c)
	}
}

// inScanOrder returns the chunk's entries ordered the way a column scan
// visits them: x, then z, then y from the top down.
func (ix *catalystIndex) inScanOrder(c terrain.ChunkPos) []cube.Pos {
	s, ok := ix.chunks[c]
	if !ok {
		return nil
	}
	out := make([]cube.Pos, 0, s.Size())
	s.Each(func(p cube.Pos) { out = append(out, p) })
	sort.Slice(out, func(i, j int) bool {
		if out[i].X() != out[j].X() {
			return out[i].X() < out[j].X()
		}
		if out[i].Z() != out[j].Z() {
			return out[i].Z() < out[j].Z()
		}
		return out[i].Y() > out[j].Y()
	})
	return out
}

func (ix *catalystIndex) size() int {
	n := 0
	for _, s := range ix.chunks {
		n += s.Size()
	}
	return n
}

// ObserveChange keeps the catalyst index in step with a terrain write made by
// anyone, not only the engine.
func (e *Engine) ObserveChange(r region.Region, pos cube.Pos, from, to material.Material) {
	ix := e.catalysts[r]
	if ix == nil {
		return
	}
	switch {
	case to == material.SculkCatalyst:
		ix.put(pos)
	case from == material.SculkCatalyst:
		ix.remove(pos)
	}
}

// KnownCatalysts is the number of indexed catalysts in r.
func (e *Engine) KnownCatalysts(r region.Region) int {
	if ix := e.catalysts[r]; ix != nil {
		return ix.size()
	}
	return 0
}

// ForgetCatalysts drops every index entry and scan mark. Terrain replaced
// wholesale, as on snapshot import, is rescanned on the next lookup.
func (e *Engine) ForgetCatalysts() {
	for _, r := range region.All() {
		e.catalysts[r] = newCatalystIndex()
	}
}

// FindCatalyst returns the first catalyst of chunk c in column-scan order.
// A chunk is scanned in full on its first lookup, provided the facade has it
// loaded (or cannot say); later lookups are answered from the index.
func (e *Engine) FindCatalyst(r region.Region, t terrain.Facade, c terrain.ChunkPos) (cube.Pos, bool) {
	ix := e.catalysts[r]
	loaded := true
	if l, ok := t.(terrain.Loader); ok {
		loaded = l.Loaded(c)
	}
	if ix == nil {
		if !loaded {
			return cube.Pos{}, false
		}
		return ScanCatalyst(t, c)
	}
	if !ix.scanned.Has(c) {
		if !loaded {
			return cube.Pos{}, false
		}
		ix.rebuild(c, ScanCatalysts(t, c))
	}
	for _, pos := range ix.inScanOrder(c) {
		if t.Material(pos) == material.SculkCatalyst {
			return pos, true
		}
		ix.remove(pos)
	}
	return cube.Pos{}, false
}

// ScanCatalyst walks every column of c from the surface down and stops at
// the first catalyst.
func ScanCatalyst(t terrain.Facade, c terrain.ChunkPos) (cube.Pos, bool) {
	var found cube.Pos
	ok := false
	walkChunk(t, c, func(pos cube.Pos) bool {
		found, ok = pos, true
		return false
	})
	return found, ok
}

// ScanCatalysts returns every catalyst of c in scan order.
func ScanCatalysts(t terrain.Facade, c terrain.ChunkPos) []cube.Pos {
	var out []cube.Pos
	walkChunk(t, c, func(pos cube.Pos) bool {
		out = append(out, pos)
		return true
	})
	return out
}

func walkChunk(t terrain.Facade, c terrain.ChunkPos, fn func(cube.Pos) bool) {
	ox, oz := c.Origin()
	for x := ox; x < ox+terrain.ChunkSize; x++ {
		for z := oz; z < oz+terrain.ChunkSize; z++ {
			for y := t.SurfaceHeight(x, z) - 1; y >= t.Bottom(); y-- {
				pos := cube.Pos{x, y, z}
				if t.Material(pos) == material.SculkCatalyst && !fn(pos) {
					return
				}
			}
		}
	}
}
