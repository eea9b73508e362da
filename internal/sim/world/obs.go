package world

import (
	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/trader"
)

// obsRange is how far, in blocks, other entities are reported.
const obsRange = 64.0

func (w *World) buildObs(p *Player, nowTick uint64) protocol.ObsMsg {
	below := cube.PosFromVec3(p.pos).Side(cube.FaceDown)
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		PlayerID:        p.id.String(),
		Self: protocol.SelfObs{
			Region:   p.reg.String(),
			Pos:      vec(p.pos),
			Yaw:      p.yaw,
			Pitch:    p.pitch,
			Alive:    p.alive,
			Standing: w.regions[p.reg].store.Material(below).String(),
		},
		Inventory: p.inventory(),
		Entities:  []protocol.EntityObs{},
		Events:    append([]protocol.Event{}, p.events...),
		Progress:  w.progressView(p),
	}

	for _, o := range w.sortedPlayers() {
		if o == p || o.reg != p.reg || o.pos.Sub(p.pos).Len() > obsRange {
			continue
		}
		obs.Entities = append(obs.Entities, protocol.EntityObs{ID: o.id.String(), Type: host.EntityTypePlayer, Pos: vec(o.pos), Name: o.name})
	}
	for _, t := range w.mod.Market.All() {
		if t.Region() != p.reg || t.Position().Sub(p.pos).Len() > obsRange {
			continue
		}
		obs.Entities = append(obs.Entities, protocol.EntityObs{
			ID:   t.ID().String(),
			Type: host.EntityTypeTrader,
			Pos:  vec(t.Position()),
			Name: trader.DisplayName,
			Busy: t.RestockUntil() > nowTick,
		})
	}
	return obs
}

func (w *World) progressView(p *Player) protocol.ProgressView {
	pr := progress.Load(w.env.Store, p.id)
	return protocol.ProgressView{
		HasPlayed:         pr.HasPlayed,
		DragonDefeated:    pr.DragonDefeated,
		OverworldUnlocked: pr.OverworldUnlocked,
		DefeatedAgo:       w.mod.Gate.DefeatTimeFormatted(p),
		SpawnCount:        pr.SpawnCount,
	}
}
