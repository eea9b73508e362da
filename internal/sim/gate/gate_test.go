package gate

import (
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/env"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/hosttest"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/rng"
)

type fixture struct {
	now    time.Time
	store  *progress.Memory
	pres   *hosttest.Presenter
	worlds *hosttest.Worlds
	rec    *audit.Recorder
	env    *env.Context
	gate   *Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:    time.UnixMilli(1_700_000_000_000),
		store:  progress.NewMemory(),
		pres:   &hosttest.Presenter{},
		worlds: hosttest.NewWorlds(),
		rec:    &audit.Recorder{},
	}
	f.env = (&env.Context{
		Rand:      rng.New(7),
		Worlds:    f.worlds,
		Store:     f.store,
		Presenter: f.pres,
		Clock:     func() time.Time { return f.now },
		Audit:     f.rec,
	}).Normalize()
	f.worlds.Terrains[region.Origin] = hosttest.NewTerrain(region.Origin.Range())
	f.gate = New(f.env, DefaultConfig())
	return f
}

func (f *fixture) join(name string, pos mgl64.Vec3) *hosttest.Player {
	p := hosttest.NewPlayer(name)
	p.Pos = pos
	f.worlds.Players = append(f.worlds.Players, p)
	return p
}

func dragonAt(pos mgl64.Vec3) hosttest.Entity {
	return hosttest.Entity{Kind: host.EntityTypeDragon, Reg: region.Origin, Pos: pos}
}

func (f *fixture) collide(p host.Entity, m material.Material, r region.Region) bool {
	ctx := event.C[host.Entity](p)
	f.gate.HandleBlockCollision(ctx, m, r, cube.Pos{0, 60, 0})
	return ctx.Cancelled()
}

func TestLockedByDefault(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	require.False(t, f.gate.CanEnterSurfaceRealm(p))
	require.Equal(t, Locked, f.gate.State(p.ID()))
	require.Equal(t, "Never", f.gate.DefeatTimeFormatted(p))
	require.False(t, f.gate.HasTimePassed(p, 0))
}

func TestDragonDeathUnlocksEveryoneInRange(t *testing.T) {
	f := newFixture(t)
	center := mgl64.Vec3{0, 70, 0}
	a := f.join("a", mgl64.Vec3{10, 70, 10})
	b := f.join("b", mgl64.Vec3{-140, 10, 140})
	c := f.join("c", mgl64.Vec3{100, 140, -100})
	far := f.join("far", mgl64.Vec3{200, 70, 0})
	watcher := f.join("watcher", mgl64.Vec3{1, 70, 1})
	watcher.Watcher = true
	nether := f.join("nether", mgl64.Vec3{0, 70, 0})
	nether.Reg = region.Nether

	f.gate.HandleEntityDeath(dragonAt(center), host.DamageSource{Attacker: "a"})

	for _, p := range []*hosttest.Player{a, b, c} {
		got := progress.Load(f.store, p.ID())
		require.True(t, got.OverworldUnlocked, p.Name())
		require.True(t, got.DragonDefeated, p.Name())
		require.Equal(t, f.now.UnixMilli(), got.DefeatTimestampMillis, p.Name())
	}
	for _, p := range []*hosttest.Player{far, watcher, nether} {
		require.Equal(t, Locked, f.gate.State(p.ID()), p.Name())
	}
	require.Equal(t, Stats{BossDeaths: 1, Unlocks: 3}, f.gate.Stats())
	require.Equal(t, []string{audit.ActionUnlock, audit.ActionUnlock, audit.ActionUnlock}, f.rec.Actions())
}

func TestDefeatFlagImpliesUnlock(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{0, 70, 0})
	check := func() {
		got := progress.Load(f.store, p.ID())
		if got.DragonDefeated {
			require.True(t, got.OverworldUnlocked)
		}
	}
	for i := 0; i < 3; i++ {
		f.gate.MarkDefeated(p)
		check()
		f.gate.Reset(p, "admin")
		check()
	}
	got := progress.Load(f.store, p.ID())
	require.False(t, got.DragonDefeated)
	require.False(t, got.OverworldUnlocked)
	require.Zero(t, got.DefeatTimestampMillis)
	require.Contains(t, f.pres.Texts(hosttest.KindMessage, p.ID()), "§c§oYour progress has been reset. The dragon awaits...")
}

func TestIgnoresOtherDeaths(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{0, 70, 0})

	f.gate.HandleEntityDeath(hosttest.Entity{Kind: "zombie", Reg: region.Origin}, host.DamageSource{})
	f.gate.HandleEntityDeath(hosttest.Entity{Kind: host.EntityTypeDragon, Reg: region.Surface}, host.DamageSource{})
	remote := dragonAt(mgl64.Vec3{})
	remote.Replica = true
	f.gate.HandleEntityDeath(remote, host.DamageSource{})

	require.Equal(t, Locked, f.gate.State(p.ID()))
	require.Empty(t, f.pres.Calls)
	require.Zero(t, f.gate.Stats().BossDeaths)
}

func TestVictoryEffects(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{0, 70, 0})
	f.gate.HandleEntityDeath(dragonAt(mgl64.Vec3{0, 70, 0}), host.DamageSource{})

	require.Equal(t, 50, f.pres.ParticleCount(host.ParticleEndRod))
	require.Equal(t, 50, f.pres.ParticleCount(host.ParticleTotem))
	for _, c := range f.pres.Of(hosttest.KindParticles) {
		require.InDelta(t, 0, c.Pos[0], 50)
		require.GreaterOrEqual(t, c.Pos[1], 70.0)
		require.Less(t, c.Pos[1], 100.0)
	}
	sounds := f.pres.Of(hosttest.KindSound)
	require.Len(t, sounds, 1)
	require.Equal(t, host.SoundDragonDeath, sounds[0].Text)
	require.Equal(t, []string{host.SoundChallengeComplete}, f.pres.Texts(hosttest.KindSoundTo, p.ID()))
	require.Equal(t, []string{"§6§l✦ OVERWORLD UNLOCKED ✦"}, f.pres.Texts(hosttest.KindActionBar, p.ID()))
	require.Len(t, f.pres.Texts(hosttest.KindMessage, p.ID()), 4)

	f.env.Sched.Advance(59)
	require.Len(t, f.pres.Of(hosttest.KindSound), 1)
	f.env.Sched.Advance(60)
	sounds = f.pres.Of(hosttest.KindSound)
	require.Len(t, sounds, 3)
	require.Equal(t, host.SoundEndPortalSpawn, sounds[1].Text)
	require.Equal(t, 1.5, sounds[1].Volume)
	require.Equal(t, host.SoundBeaconActivate, sounds[2].Text)
	require.Equal(t, []string{host.SoundChallengeComplete, host.SoundEndPortalSpawn}, f.pres.Texts(hosttest.KindSoundTo, p.ID()))
}

func TestVictorySoundsSkipUnloadedRealm(t *testing.T) {
	f := newFixture(t)
	f.join("alex", mgl64.Vec3{0, 70, 0})
	f.gate.HandleEntityDeath(dragonAt(mgl64.Vec3{0, 70, 0}), host.DamageSource{})
	delete(f.worlds.Terrains, region.Origin)

	f.env.Sched.Advance(60)
	sounds := f.pres.Of(hosttest.KindSound)
	require.Len(t, sounds, 1)
	require.Equal(t, host.SoundDragonDeath, sounds[0].Text)
}

func TestDelayedSoundSkipsRemovedPlayer(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	f.gate.MarkDefeated(p)
	p.Gone = true
	require.Equal(t, 1, f.env.Sched.Advance(60))
	require.Equal(t, []string{host.SoundChallengeComplete}, f.pres.Texts(hosttest.KindSoundTo, p.ID()))
}

func TestPortalVetoOnlyForLockedPlayersInOrigin(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})

	require.True(t, f.collide(p, material.EndPortal, region.Origin))
	require.False(t, f.collide(p, material.EndPortal, region.Surface))
	require.False(t, f.collide(p, material.EndPortal, region.Nether))
	require.False(t, f.collide(p, material.Stone, region.Origin))
	require.False(t, f.collide(hosttest.Entity{Kind: "pig", Reg: region.Origin}, material.EndPortal, region.Origin))

	before := *p
	f.gate.MarkDefeated(p)
	require.False(t, f.collide(p, material.EndPortal, region.Origin))
	require.Equal(t, before.Pos, p.Pos)
	require.Equal(t, uint64(1), f.gate.Stats().Vetoes)
}

func TestRejectionFeedback(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	require.True(t, f.collide(p, material.EndPortal, region.Origin))

	require.Equal(t, []string{"§8§oThe portal resists your passage..."}, f.pres.Texts(hosttest.KindActionBar, p.ID()))
	require.Len(t, f.pres.Texts(hosttest.KindMessage, p.ID()), 2)
	require.Equal(t, 12, f.pres.ParticleCount(host.ParticleLargeSmoke))
	require.LessOrEqual(t, f.pres.ParticleCount(host.ParticlePortal), 12)
	sounds := f.pres.Of(hosttest.KindSound)
	require.Len(t, sounds, 2)
	require.Equal(t, host.SoundFireExtinguish, sounds[0].Text)
	require.Equal(t, host.SoundPortalAmbient, sounds[1].Text)
	require.Equal(t, []string{audit.ActionVeto}, f.rec.Actions())
}

func TestRejectionFeedbackIsThrottledButVetoIsNot(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	for i := 0; i < 5; i++ {
		require.True(t, f.collide(p, material.EndPortal, region.Origin))
	}
	require.Len(t, f.pres.Texts(hosttest.KindActionBar, p.ID()), 1)

	f.now = f.now.Add(time.Second)
	require.True(t, f.collide(p, material.EndPortal, region.Origin))
	require.Len(t, f.pres.Texts(hosttest.KindActionBar, p.ID()), 2)
	require.Equal(t, uint64(6), f.gate.Stats().Vetoes)
}

func TestDefeatTimeFormatted(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	f.gate.MarkDefeated(p)
	start := f.now

	cases := []struct {
		after time.Duration
		want  string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{5 * time.Minute, "5 minute(s) ago"},
		{2*time.Hour + 10*time.Minute, "2 hour(s) ago"},
		{73 * time.Hour, "3 day(s) ago"},
	}
	for _, tc := range cases {
		f.now = start.Add(tc.after)
		require.Equal(t, tc.want, f.gate.DefeatTimeFormatted(p))
	}
}

func TestHasTimePassed(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	f.gate.MarkDefeated(p)
	require.True(t, f.gate.HasTimePassed(p, 0))
	require.False(t, f.gate.HasTimePassed(p, time.Minute))
	f.now = f.now.Add(time.Minute)
	require.True(t, f.gate.HasTimePassed(p, time.Minute))
}

func TestResetOfflinePlayer(t *testing.T) {
	f := newFixture(t)
	p := f.join("alex", mgl64.Vec3{})
	f.gate.MarkDefeated(p)
	require.True(t, f.gate.ResetID(p.ID(), "cli"))
	require.Equal(t, Locked, f.gate.State(p.ID()))
	last := f.rec.Entries[len(f.rec.Entries)-1]
	require.Equal(t, audit.ActionReset, last.Action)
	require.Equal(t, "cli", last.Actor)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	c := DefaultConfig()
	c.SearchBox[1] = 0
	require.Error(t, c.Validate())
	c = DefaultConfig()
	c.FeedbackBurst = 0
	require.Error(t, c.Validate())
}
