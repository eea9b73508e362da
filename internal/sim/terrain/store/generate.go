package store

import genpkg "enderborne.gg/internal/sim/terrain/gen"

func (s *ChunkStore) GenerateChunk(ch *Chunk) {
	ox, oz := ch.Pos.Origin()
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			for _, l := range genpkg.Column(s.Gen.Seed, s.Gen.Region, ox+x, oz+z) {
				from := max(l.From, s.Range.Min())
				to := min(l.To, s.Range.Max())
				for y := from; y <= to; y++ {
					ch.Blocks[ch.index(x, y, z)] = uint16(l.M)
				}
			}
		}
	}
}
