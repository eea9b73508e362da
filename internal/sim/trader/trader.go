// Package trader implements the Ender Trader: a passive origin-realm NPC with
// a fixed barter table that goes quiet for a while after each trade.
package trader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/region"
)

const DisplayName = "§5Ender Trader"

var (
	ErrUnknownTrader = errors.New("unknown trader")
	ErrRestocking    = errors.New("trader is restocking")
	ErrNoSuchOffer   = errors.New("no such offer")
	ErrCannotAfford  = errors.New("not enough items")
)

type Stack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type Offer struct {
	In  Stack `json:"in"`
	Out Stack `json:"out"`
}

var offers = []Offer{
	{Stack{"ender_pearl", 3}, Stack{"chorus_fruit", 5}},
	{Stack{"chorus_fruit", 8}, Stack{"chorus_flower", 1}},
	{Stack{"end_stone", 32}, Stack{"purpur_block", 8}},
	{Stack{"purpur_block", 16}, Stack{"purpur_pillar", 4}},
	{Stack{"shulker_shell", 1}, Stack{"ender_chest", 1}},
	{Stack{"ender_chest", 1}, Stack{"ender_eye", 2}},
	{Stack{"dragon_breath", 1}, Stack{"experience_bottle", 8}},
	{Stack{"sculk", 16}, Stack{"sculk_catalyst", 1}},
	{Stack{"sculk_sensor", 4}, Stack{"sculk_shrieker", 1}},
}

// Offers returns the barter table. Offer numbers shown to players are
// 1-based indices into it.
func Offers() []Offer { return append([]Offer(nil), offers...) }

type Config struct {
	RestockTicks uint64 `yaml:"restock_ticks"`
	// AmbientChance is the per-tick chance of an enchant particle; one in
	// twenty of those also shows an end rod.
	AmbientChance float64 `yaml:"ambient_chance"`
}

func DefaultConfig() Config {
	return Config{RestockTicks: 2400, AmbientChance: 0.1}
}

func (c Config) Validate() error {
	if c.AmbientChance < 0 || c.AmbientChance > 1 {
		return fmt.Errorf("ambient_chance must be in [0,1]")
	}
	return nil
}

// Trader is one NPC. It is a host.Entity.
type Trader struct {
	id  uuid.UUID
	reg region.Region
	pos mgl64.Vec3

	restockUntil uint64
}

func (t *Trader) Type() string          { return host.EntityTypeTrader }
func (t *Trader) Region() region.Region { return t.reg }
func (t *Trader) Position() mgl64.Vec3  { return t.pos }
func (t *Trader) Remote() bool          { return false }
func (t *Trader) ID() uuid.UUID         { return t.id }

// RestockUntil is the tick at which trading resumes; zero when idle.
func (t *Trader) RestockUntil() uint64 { return t.restockUntil }

func (t *Trader) available(tick uint64) bool { return tick >= t.restockUntil }

// Market owns every live trader.
type Market struct {
	env     *env.Context
	cfg     Config
	traders map[uuid.UUID]*Trader
	trades  uint64
}

func NewMarket(e *env.Context, cfg Config) *Market {
	return &Market{env: e, cfg: cfg, traders: map[uuid.UUID]*Trader{}}
}

func (m *Market) Summon(r region.Region, pos mgl64.Vec3) *Trader {
	t := &Trader{id: uuid.New(), reg: r, pos: pos}
	m.traders[t.id] = t
	m.env.Log.Printf("trader: summoned %s in %s at %.1f,%.1f,%.1f", t.id, r, pos[0], pos[1], pos[2])
	return t
}

// Restore re-creates a trader from a snapshot.
func (m *Market) Restore(id uuid.UUID, r region.Region, pos mgl64.Vec3, restockUntil uint64) *Trader {
	t := &Trader{id: id, reg: r, pos: pos, restockUntil: restockUntil}
	m.traders[id] = t
	return t
}

func (m *Market) Remove(id uuid.UUID) { delete(m.traders, id) }

func (m *Market) Get(id uuid.UUID) (*Trader, bool) {
	t, ok := m.traders[id]
	return t, ok
}

// All returns the traders sorted by id.
func (m *Market) All() []*Trader {
	out := make([]*Trader, 0, len(m.traders))
	for _, t := range m.traders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	return out
}

func (m *Market) Trades() uint64 { return m.trades }

// Interact lists the offers to p, or tells p the trader is busy.
func (m *Market) Interact(p host.Player, id uuid.UUID) error {
	t, ok := m.traders[id]
	if !ok {
		return ErrUnknownTrader
	}
	pr := m.env.Presenter
	if !t.available(m.env.Tick()) {
		pr.Message(p, "§5§oThe Enderman seems distracted...")
		return nil
	}
	pr.Message(p, "§5§l[Ender Trader] §7§oI have rare items from the void...")
	pr.PlaySound(t.reg, t.pos, host.SoundTraderAmbient, 0.5, 1.2)
	pr.Message(p, "§6§l=== Ender Trades ===")
	for i, o := range offers {
		pr.Message(p, fmt.Sprintf("§7%d. §f%dx %s §7-> §a%dx %s", i+1, o.In.Count, o.In.Item, o.Out.Count, o.Out.Item))
	}
	return nil
}

// Barter performs offer n (1-based) for p. Items move only when the whole
// exchange can happen; the trader then restocks.
func (m *Market) Barter(p host.Player, inv host.Inventory, id uuid.UUID, n int) error {
	t, ok := m.traders[id]
	if !ok {
		return ErrUnknownTrader
	}
	pr := m.env.Presenter
	if !t.available(m.env.Tick()) {
		pr.Message(p, "§5§oThe Enderman seems distracted...")
		return ErrRestocking
	}
	if n < 1 || n > len(offers) {
		return ErrNoSuchOffer
	}
	o := offers[n-1]
	if inv.Count(o.In.Item) < o.In.Count || !inv.Remove(o.In.Item, o.In.Count) {
		pr.PlaySound(t.reg, t.pos, host.SoundTraderNo, 1.0, 1.0)
		return ErrCannotAfford
	}
	inv.Give(o.Out.Item, o.Out.Count)
	t.restockUntil = m.env.Tick() + m.cfg.RestockTicks
	m.trades++
	pr.PlaySound(t.reg, t.pos, host.SoundTraderYes, 1.0, 1.0)
	m.env.Record(audit.Entry{
		Actor:  p.ID().String(),
		Action: audit.ActionBarter,
		Region: t.reg.String(),
		From:   fmt.Sprintf("%dx %s", o.In.Count, o.In.Item),
		To:     fmt.Sprintf("%dx %s", o.Out.Count, o.Out.Item),
		Details: map[string]any{
			"trader": t.id.String(),
			"offer":  n,
		},
	})
	return nil
}

// Tick plays ambient particles and finishes restocks that are due.
func (m *Market) Tick(tick uint64) {
	rnd := m.env.Rand
	pr := m.env.Presenter
	for _, t := range m.All() {
		if t.restockUntil != 0 && tick >= t.restockUntil {
			t.restockUntil = 0
			pr.PlaySound(t.reg, t.pos, host.SoundTraderRestock, 0.7, 1.0)
		}
		if rnd.Float64() >= m.cfg.AmbientChance {
			continue
		}
		at := mgl64.Vec3{
			t.pos[0] + (rnd.Float64()-0.5)*2,
			t.pos[1] + rnd.Float64()*3,
			t.pos[2] + (rnd.Float64()-0.5)*2,
		}
		drift := mgl64.Vec3{(rnd.Float64() - 0.5) * 0.2, rnd.Float64() * 0.2, (rnd.Float64() - 0.5) * 0.2}
		pr.Particles(t.reg, at, host.ParticleEnchant, 1, drift, 0.1)
		if rnd.IntN(20) == 0 {
			pr.Particles(t.reg, at, host.ParticleEndRod, 1, mgl64.Vec3{0, 0.1, 0}, 0.05)
		}
	}
}
