package trader

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/hosttest"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/rng"
)

func newMarket(src rng.Source) (*Market, *hosttest.Presenter, *audit.Recorder) {
	pres := &hosttest.Presenter{}
	rec := &audit.Recorder{}
	e := (&env.Context{Rand: src, Presenter: pres, Audit: rec}).Normalize()
	return NewMarket(e, DefaultConfig()), pres, rec
}

func TestOfferTable(t *testing.T) {
	got := Offers()
	require.Len(t, got, 9)
	require.Equal(t, Offer{Stack{"ender_pearl", 3}, Stack{"chorus_fruit", 5}}, got[0])
	require.Equal(t, Offer{Stack{"sculk", 16}, Stack{"sculk_catalyst", 1}}, got[7])
	got[0].In.Count = 99
	require.Equal(t, 3, Offers()[0].In.Count)
}

func TestInteractListsOffers(t *testing.T) {
	m, pres, _ := newMarket(rng.New(1))
	tr := m.Summon(region.Origin, mgl64.Vec3{5, 60, 5})
	p := hosttest.NewPlayer("alex")

	require.NoError(t, m.Interact(p, tr.ID()))
	msgs := pres.Texts(hosttest.KindMessage, p.ID())
	require.Len(t, msgs, 2+len(offers))
	require.Equal(t, "§71. §f3x ender_pearl §7-> §a5x chorus_fruit", msgs[2])
	require.ErrorIs(t, m.Interact(p, uuid.New()), ErrUnknownTrader)
}

func TestBarterMovesItemsAndRestocks(t *testing.T) {
	m, pres, rec := newMarket(rng.New(1))
	tr := m.Summon(region.Origin, mgl64.Vec3{})
	p := hosttest.NewPlayer("alex")
	p.Give("end_stone", 40)

	require.NoError(t, m.Barter(p, p, tr.ID(), 3))
	require.Equal(t, 8, p.Count("end_stone"))
	require.Equal(t, 8, p.Count("purpur_block"))
	require.Equal(t, uint64(2400), tr.RestockUntil())
	require.Equal(t, []string{audit.ActionBarter}, rec.Actions())
	require.Equal(t, "32x end_stone", rec.Entries[0].From)

	pres.Reset()
	require.ErrorIs(t, m.Barter(p, p, tr.ID(), 3), ErrRestocking)
	require.Equal(t, []string{"§5§oThe Enderman seems distracted..."}, pres.Texts(hosttest.KindMessage, p.ID()))
	require.NoError(t, m.Interact(p, tr.ID()))
	require.Len(t, pres.Texts(hosttest.KindMessage, p.ID()), 2)

	m.env.Sched.Advance(2399)
	m.Tick(2399)
	require.ErrorIs(t, m.Barter(p, p, tr.ID(), 3), ErrRestocking)

	m.env.Sched.Advance(2400)
	m.Tick(2400)
	require.Zero(t, tr.RestockUntil())
	require.NotEmpty(t, pres.Of(hosttest.KindSound))
	p.Give("end_stone", 24)
	require.NoError(t, m.Barter(p, p, tr.ID(), 3))
	require.Equal(t, 16, p.Count("purpur_block"))
	require.Equal(t, uint64(2), m.Trades())
}

func TestBarterRejectsWithoutItems(t *testing.T) {
	m, pres, rec := newMarket(rng.New(1))
	tr := m.Summon(region.Origin, mgl64.Vec3{})
	p := hosttest.NewPlayer("alex")
	p.Give("sculk", 15)

	require.ErrorIs(t, m.Barter(p, p, tr.ID(), 8), ErrCannotAfford)
	require.Equal(t, 15, p.Count("sculk"))
	require.Zero(t, p.Count("sculk_catalyst"))
	require.Zero(t, tr.RestockUntil())
	require.Empty(t, rec.Entries)
	sounds := pres.Of(hosttest.KindSound)
	require.Len(t, sounds, 1)
	require.Equal(t, host.SoundTraderNo, sounds[0].Text)

	require.ErrorIs(t, m.Barter(p, p, tr.ID(), 0), ErrNoSuchOffer)
	require.ErrorIs(t, m.Barter(p, p, tr.ID(), 10), ErrNoSuchOffer)
}

func TestAmbientParticles(t *testing.T) {
	m, pres, _ := newMarket(&rng.Script{Floats: []float64{0.05, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.9}, Ints: []int{0}})
	m.Summon(region.Origin, mgl64.Vec3{0, 60, 0})

	m.Tick(1)
	require.Equal(t, 1, pres.ParticleCount(host.ParticleEnchant))
	require.Equal(t, 1, pres.ParticleCount(host.ParticleEndRod))
	m.Tick(2)
	require.Equal(t, 1, pres.ParticleCount(host.ParticleEnchant))
}

func TestRestoreKeepsRestockDeadline(t *testing.T) {
	m, _, _ := newMarket(rng.New(1))
	id := uuid.New()
	m.Restore(id, region.Origin, mgl64.Vec3{1, 2, 3}, 500)
	tr, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, uint64(500), tr.RestockUntil())
	require.Len(t, m.All(), 1)
	m.Remove(id)
	require.Empty(t, m.All())
}
