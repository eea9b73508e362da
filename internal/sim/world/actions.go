package world

import (
	"errors"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain/gen"
	"enderborne.gg/internal/sim/trader"
)

const (
	// maxActLagTicks is how far behind the current tick an ACT may be.
	maxActLagTicks = 20
	// interactRange is the reach, in blocks, for trader actions.
	interactRange = 8.0
)

// boss is the dragon as the host reports it when it dies.
type boss struct {
	reg region.Region
	pos mgl64.Vec3
}

func (b boss) Type() string          { return host.EntityTypeDragon }
func (b boss) Region() region.Region { return b.reg }
func (b boss) Position() mgl64.Vec3  { return b.pos }
func (b boss) Remote() bool          { return false }

func (w *World) applyAct(p *Player, act protocol.ActMsg, nowTick uint64) {
	if act.Tick > nowTick || nowTick-act.Tick > maxActLagTicks {
		for _, a := range act.Actions {
			p.push(actionResult(a.ID, false, protocol.ErrStale, "act tick out of range"))
		}
		return
	}
	for _, a := range act.Actions {
		// Earlier actions may have replaced the reference.
		cur := w.players[p.id]
		if cur == nil {
			return
		}
		code, msg, extra := w.applyAction(cur, a)
		res := actionResult(a.ID, code == "", code, msg)
		for k, v := range extra {
			res[k] = v
		}
		w.players[p.id].push(res)
	}
}

func (w *World) applyAction(p *Player, a protocol.ActionReq) (code, msg string, extra protocol.Event) {
	if !p.alive && a.Type != protocol.ActionRespawn {
		return protocol.ErrDead, "player is dead", nil
	}
	switch a.Type {
	case protocol.ActionMove:
		if a.Pos == nil {
			return protocol.ErrBadRequest, "pos required", nil
		}
		to := mgl64.Vec3{a.Pos[0], a.Pos[1], a.Pos[2]}
		cell := cube.PosFromVec3(to)
		s := w.regions[p.reg].store
		if !s.InBuildLimits(cell) || !s.InWorldBorder(cell) {
			return protocol.ErrInvalidTarget, "target outside the world", nil
		}
		p.pos = to
		return "", "", nil

	case protocol.ActionDie:
		p.alive = false
		w.mod.HandleEntityDeath(p, host.DamageSource{Cause: "generic"})
		return "", "", nil

	case protocol.ActionRespawn:
		if p.alive {
			return protocol.ErrBadRequest, "player is alive", nil
		}
		np := p.respawned()
		np.reg, np.pos, np.yaw, np.pitch = region.Surface, w.surfaceSpawn(), 0, 0
		w.players[p.id] = np
		w.mod.HandleRespawn(p, np, false)
		return "", "", nil

	case protocol.ActionKillBoss:
		at := p.pos
		if a.Pos != nil {
			at = mgl64.Vec3{a.Pos[0], a.Pos[1], a.Pos[2]}
		}
		w.mod.HandleEntityDeath(boss{reg: p.reg, pos: at}, host.DamageSource{Attacker: p.name, Cause: "player"})
		return "", "", nil

	case protocol.ActionSummonTrader:
		at := p.pos
		if a.Pos != nil {
			at = mgl64.Vec3{a.Pos[0], a.Pos[1], a.Pos[2]}
		}
		t := w.mod.Market.Summon(p.reg, at)
		return "", "", protocol.Event{"trader_id": t.ID().String()}

	case protocol.ActionInteract, protocol.ActionBarter:
		t, code, msg := w.traderInReach(p, a.TraderID)
		if code != "" {
			return code, msg, nil
		}
		var err error
		if a.Type == protocol.ActionInteract {
			err = w.mod.Market.Interact(p, t.ID())
		} else {
			err = w.mod.Market.Barter(p, p, t.ID(), a.Offer)
		}
		return barterCode(err), errMsg(err), nil
	}
	return protocol.ErrBadRequest, "unknown action type", nil
}

func (w *World) traderInReach(p *Player, rawID string) (*trader.Trader, string, string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, protocol.ErrBadRequest, "bad trader_id"
	}
	t, ok := w.mod.Market.Get(id)
	if !ok {
		return nil, protocol.ErrInvalidTarget, "no such trader"
	}
	if t.Region() != p.reg || t.Position().Sub(p.pos).Len() > interactRange {
		return nil, protocol.ErrInvalidTarget, "trader out of reach"
	}
	return t, "", ""
}

func barterCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, trader.ErrUnknownTrader):
		return protocol.ErrInvalidTarget
	case errors.Is(err, trader.ErrRestocking):
		return protocol.ErrBusy
	case errors.Is(err, trader.ErrNoSuchOffer):
		return protocol.ErrBadRequest
	case errors.Is(err, trader.ErrCannotAfford):
		return protocol.ErrNoResource
	}
	return protocol.ErrInternal
}

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func actionResult(ref string, ok bool, code, message string) protocol.Event {
	e := protocol.Event{
		"type": protocol.EventActionResult,
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}

// systemCollisions fires a collision event for every living player standing
// in an end portal and carries out the traversal unless it was cancelled.
func (w *World) systemCollisions() {
	for _, p := range w.sortedPlayers() {
		if !p.alive {
			continue
		}
		cell := cube.PosFromVec3(p.pos)
		m := w.regions[p.reg].store.Material(cell)
		if m != material.EndPortal {
			continue
		}
		ctx := event.C[host.Entity](p)
		w.mod.HandleBlockCollision(ctx, m, p.reg, cell)
		if ctx.Cancelled() {
			continue
		}
		w.traverse(p)
	}
}

// traverse sends a player through an end portal: out of the origin realm to
// the surface spawn, from anywhere else to the origin arrival platform.
func (w *World) traverse(p *Player) {
	var err error
	if p.reg == region.Origin {
		err = p.Teleport(region.Surface, w.surfaceSpawn(), p.yaw, p.pitch)
	} else {
		at := mgl64.Vec3{float64(gen.PlatformX) + 0.5, float64(gen.PlatformY + 1), float64(gen.PlatformZ) + 0.5}
		err = p.Teleport(region.Origin, at, p.yaw, p.pitch)
	}
	if err != nil {
		w.logf("warn: portal traversal for %s: %v", p.name, err)
	}
}

// surfaceSpawn is the world spawn point of the surface realm.
func (w *World) surfaceSpawn() mgl64.Vec3 {
	s := w.regions[region.Surface].store
	return mgl64.Vec3{0.5, float64(s.SurfaceHeight(0, 0)), 0.5}
}
