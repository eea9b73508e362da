// Package host declares the contracts between the mod and the game server
// that embeds it: entities, worlds, presentation, and the events the server
// publishes.
package host

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
)

const (
	EntityTypePlayer = "player"
	EntityTypeDragon = "ender_dragon"
	EntityTypeTrader = "ender_trader"
)

type Entity interface {
	Type() string
	Region() region.Region
	Position() mgl64.Vec3
	// Remote reports a client-side replica. The mod only acts on
	// server-side entities.
	Remote() bool
}

type Player interface {
	Entity
	ID() uuid.UUID
	Name() string
	Spectator() bool
	// Removed reports that the player left or this reference was replaced
	// (e.g. by a respawn).
	Removed() bool
	Teleport(r region.Region, pos mgl64.Vec3, yaw, pitch float64) error
}

// DamageSource describes what killed an entity.
type DamageSource struct {
	Attacker string
	Cause    string
}

// Worlds resolves regions to loaded worlds.
type Worlds interface {
	// Terrain returns false when the region's world is not loaded.
	Terrain(r region.Region) (terrain.Facade, bool)
	PlayersWithin(r region.Region, box cube.BBox) []Player
}

// Presenter is the fire-and-forget chat/sound/particle layer.
type Presenter interface {
	Message(p Player, text string)
	Title(p Player, title, subtitle string)
	ActionBar(p Player, text string)
	PlaySoundTo(p Player, sound string, volume, pitch float64)
	PlaySound(r region.Region, pos mgl64.Vec3, sound string, volume, pitch float64)
	Particles(r region.Region, pos mgl64.Vec3, particle string, count int, spread mgl64.Vec3, speed float64)
}

// Handler receives host events, synchronously on the simulation goroutine.
type Handler interface {
	HandleJoin(p Player)
	HandleRespawn(old, p Player, wasAlive bool)
	HandleLeave(p Player)
	HandleEntityDeath(e Entity, src DamageSource)
	// HandleBlockCollision fires when e is inside a cell of material m.
	// Cancelling ctx vetoes the collision's effect.
	HandleBlockCollision(ctx *event.Context[Entity], m material.Material, r region.Region, pos cube.Pos)
	HandleChunkLoad(r region.Region, c terrain.ChunkPos)
	HandleTick(tick uint64)
}

type NopHandler struct{}

func (NopHandler) HandleJoin(Player)                               {}
func (NopHandler) HandleRespawn(Player, Player, bool)              {}
func (NopHandler) HandleLeave(Player)                              {}
func (NopHandler) HandleEntityDeath(Entity, DamageSource)          {}
func (NopHandler) HandleChunkLoad(region.Region, terrain.ChunkPos) {}
func (NopHandler) HandleTick(uint64)                               {}

func (NopHandler) HandleBlockCollision(*event.Context[Entity], material.Material, region.Region, cube.Pos) {
}

// Inventory is implemented by players whose items the host lets the mod
// move.
type Inventory interface {
	Count(item string) int
	Remove(item string, n int) bool
	Give(item string, n int)
}

// Sounds and particles the mod emits.
const (
	SoundChallengeComplete = "ui.toast.challenge_complete"
	SoundEndPortalSpawn    = "block.end_portal.spawn"
	SoundBeaconActivate    = "block.beacon.activate"
	SoundDragonDeath       = "entity.ender_dragon.death"
	SoundFireExtinguish    = "block.fire.extinguish"
	SoundPortalAmbient     = "block.portal.ambient"
	SoundTraderYes         = "entity.villager.yes"
	SoundTraderNo          = "entity.villager.no"
	SoundTraderAmbient     = "entity.enderman.ambient"
	SoundTraderRestock     = "entity.experience_orb.pickup"

	ParticleEndRod     = "end_rod"
	ParticleTotem      = "totem_of_undying"
	ParticleLargeSmoke = "large_smoke"
	ParticlePortal     = "portal"
	ParticleEnchant    = "enchant"
)
