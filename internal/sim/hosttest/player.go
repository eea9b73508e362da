package hosttest

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/region"
)

var ErrTeleportRejected = errors.New("teleport rejected")

type Teleport struct {
	Region     region.Region
	Pos        mgl64.Vec3
	Yaw, Pitch float64
}

// Player is a host.Player and host.Inventory backed by plain fields.
type Player struct {
	UUID    uuid.UUID
	Nick    string
	Reg     region.Region
	Pos     mgl64.Vec3
	Watcher bool
	Gone    bool
	Replica bool

	// RejectTeleport makes Teleport fail without moving the player.
	RejectTeleport bool
	Teleports      []Teleport

	Items map[string]int
}

// NewPlayer returns a player in the origin realm with the offline id derived
// from name.
func NewPlayer(name string) *Player {
	return &Player{
		UUID:  uuid.NewMD5(uuid.NameSpaceOID, []byte("OfflinePlayer:"+name)),
		Nick:  name,
		Reg:   region.Origin,
		Items: map[string]int{},
	}
}

func (p *Player) Type() string          { return host.EntityTypePlayer }
func (p *Player) Region() region.Region { return p.Reg }
func (p *Player) Position() mgl64.Vec3  { return p.Pos }
func (p *Player) Remote() bool          { return p.Replica }
func (p *Player) ID() uuid.UUID         { return p.UUID }
func (p *Player) Name() string          { return p.Nick }
func (p *Player) Spectator() bool       { return p.Watcher }
func (p *Player) Removed() bool         { return p.Gone }

func (p *Player) Teleport(r region.Region, pos mgl64.Vec3, yaw, pitch float64) error {
	if p.RejectTeleport {
		return ErrTeleportRejected
	}
	p.Reg, p.Pos = r, pos
	p.Teleports = append(p.Teleports, Teleport{Region: r, Pos: pos, Yaw: yaw, Pitch: pitch})
	return nil
}

func (p *Player) Count(item string) int { return p.Items[item] }

func (p *Player) Remove(item string, n int) bool {
	if p.Items[item] < n {
		return false
	}
	p.Items[item] -= n
	if p.Items[item] == 0 {
		delete(p.Items, item)
	}
	return true
}

func (p *Player) Give(item string, n int) { p.Items[item] += n }

// Entity is a non-player host.Entity.
type Entity struct {
	Kind    string
	Reg     region.Region
	Pos     mgl64.Vec3
	Replica bool
}

func (e Entity) Type() string          { return e.Kind }
func (e Entity) Region() region.Region { return e.Reg }
func (e Entity) Position() mgl64.Vec3  { return e.Pos }
func (e Entity) Remote() bool          { return e.Replica }

var (
	_ host.Player    = (*Player)(nil)
	_ host.Inventory = (*Player)(nil)
	_ host.Entity    = Entity{}
)
