package world

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"

	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
)

// Presentation is delivered as OBS events. Positional sounds and particles
// reach every online player in the region.

func (w *World) Message(p host.Player, text string) {
	w.pushTo(p, protocol.Event{"type": protocol.EventMessage, "text": text})
}

func (w *World) Title(p host.Player, title, subtitle string) {
	w.pushTo(p, protocol.Event{"type": protocol.EventTitle, "title": title, "subtitle": subtitle})
}

func (w *World) ActionBar(p host.Player, text string) {
	w.pushTo(p, protocol.Event{"type": protocol.EventActionBar, "text": text})
}

func (w *World) PlaySoundTo(p host.Player, sound string, volume, pitch float64) {
	w.pushTo(p, protocol.Event{
		"type":   protocol.EventSound,
		"sound":  sound,
		"pos":    vec(p.Position()),
		"volume": volume,
		"pitch":  pitch,
	})
}

func (w *World) PlaySound(r region.Region, pos mgl64.Vec3, sound string, volume, pitch float64) {
	w.broadcast(r, protocol.Event{
		"type":   protocol.EventSound,
		"sound":  sound,
		"pos":    vec(pos),
		"volume": volume,
		"pitch":  pitch,
	})
}

func (w *World) Particles(r region.Region, pos mgl64.Vec3, particle string, count int, spread mgl64.Vec3, speed float64) {
	w.broadcast(r, protocol.Event{
		"type":     protocol.EventParticles,
		"particle": particle,
		"pos":      vec(pos),
		"count":    count,
		"spread":   vec(spread),
		"speed":    speed,
	})
}

func (w *World) pushTo(hp host.Player, e protocol.Event) {
	if hp == nil || hp.Removed() {
		return
	}
	if p := w.players[hp.ID()]; p != nil {
		p.push(e)
	}
}

func (w *World) broadcast(r region.Region, e protocol.Event) {
	for _, p := range w.players {
		if p.reg != r {
			continue
		}
		// Each player gets its own map; push stamps it.
		cp := make(protocol.Event, len(e)+1)
		for k, v := range e {
			cp[k] = v
		}
		p.push(cp)
	}
}

func (w *World) Terrain(r region.Region) (terrain.Facade, bool) {
	rs, ok := w.regions[r]
	if !ok {
		return nil, false
	}
	return rs.store, true
}

// PlayersWithin returns the online players of r inside box, ordered by id.
func (w *World) PlayersWithin(r region.Region, box cube.BBox) []host.Player {
	var out []host.Player
	for _, p := range w.sortedPlayers() {
		if p.reg == r && box.Vec3Within(p.pos) {
			out = append(out, p)
		}
	}
	return out
}

func vec(v mgl64.Vec3) [3]float64 { return [3]float64{v[0], v[1], v[2]} }

var (
	_ host.Presenter = (*World)(nil)
	_ host.Worlds    = (*World)(nil)
)
