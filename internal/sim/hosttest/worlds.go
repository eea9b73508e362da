package hosttest

import (
	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
)

// Worlds maps regions to terrains and holds the online players.
type Worlds struct {
	Terrains map[region.Region]terrain.Facade
	Players  []host.Player
}

func NewWorlds() *Worlds {
	return &Worlds{Terrains: map[region.Region]terrain.Facade{}}
}

func (w *Worlds) Terrain(r region.Region) (terrain.Facade, bool) {
	t, ok := w.Terrains[r]
	return t, ok
}

func (w *Worlds) PlayersWithin(r region.Region, box cube.BBox) []host.Player {
	var out []host.Player
	for _, p := range w.Players {
		if p.Region() == r && box.Vec3Within(p.Position()) {
			out = append(out, p)
		}
	}
	return out
}

var _ host.Worlds = (*Worlds)(nil)
