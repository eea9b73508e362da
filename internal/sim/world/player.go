package world

import (
	"fmt"
	"sort"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/region"
)

// Player is one live reference to a connected player. A respawn replaces the
// reference; the old one reports Removed.
type Player struct {
	w *World

	id   uuid.UUID
	name string

	reg        region.Region
	pos        mgl64.Vec3
	yaw, pitch float64
	alive      bool
	removed    bool

	items map[string]int

	// events are delivered with the next OBS and then cleared.
	events []protocol.Event
}

func (w *World) newPlayer(id uuid.UUID, name string) *Player {
	return &Player{w: w, id: id, name: name, alive: true, items: map[string]int{}}
}

func (p *Player) Type() string          { return host.EntityTypePlayer }
func (p *Player) Region() region.Region { return p.reg }
func (p *Player) Position() mgl64.Vec3  { return p.pos }
func (p *Player) Remote() bool          { return false }
func (p *Player) ID() uuid.UUID         { return p.id }
func (p *Player) Name() string          { return p.name }
func (p *Player) Spectator() bool       { return false }
func (p *Player) Removed() bool         { return p.removed }
func (p *Player) Alive() bool           { return p.alive }

// Teleport moves the player, possibly across regions. It fails for removed
// references and for targets outside the region's build range or border.
func (p *Player) Teleport(r region.Region, pos mgl64.Vec3, yaw, pitch float64) error {
	if p.removed {
		return fmt.Errorf("player %s is no longer in the world", p.name)
	}
	rs := p.w.regions[r]
	if rs == nil {
		return fmt.Errorf("region %s is not loaded", r)
	}
	cell := cube.PosFromVec3(pos)
	if !rs.store.InBuildLimits(cell) || !rs.store.InWorldBorder(cell) {
		return fmt.Errorf("teleport target %v outside %s", cell, r)
	}
	p.reg, p.pos, p.yaw, p.pitch = r, pos, yaw, pitch
	p.push(protocol.Event{
		"type":   protocol.EventTeleport,
		"region": r.String(),
		"pos":    [3]float64{pos[0], pos[1], pos[2]},
	})
	return nil
}

func (p *Player) Count(item string) int { return p.items[item] }

func (p *Player) Remove(item string, n int) bool {
	if n < 0 || p.items[item] < n {
		return false
	}
	p.items[item] -= n
	if p.items[item] == 0 {
		delete(p.items, item)
	}
	return true
}

func (p *Player) Give(item string, n int) {
	if n <= 0 {
		return
	}
	p.items[item] += n
}

func (p *Player) inventory() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(p.items))
	for item, n := range p.items {
		out = append(out, protocol.ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// respawned returns the replacement reference for a respawn and retires p.
func (p *Player) respawned() *Player {
	np := *p
	np.alive = true
	np.removed = false
	p.removed = true
	p.events = nil
	return &np
}

func (p *Player) push(e protocol.Event) {
	if p.removed {
		return
	}
	e["t"] = p.w.tick.Load()
	p.events = append(p.events, e)
}

var (
	_ host.Player    = (*Player)(nil)
	_ host.Inventory = (*Player)(nil)
)
