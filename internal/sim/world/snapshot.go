package world

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"enderborne.gg/internal/persistence/snapshot"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
	"enderborne.gg/internal/sim/terrain/store"
)

// ExportSnapshot captures terrain, chunk visibility, players (online and
// offline) and traders. Progress attachments are not included.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: nowTick},
		Seed:     w.cfg.Seed,
		TickRate: w.cfg.TickRateHz,
	}
	for _, r := range region.All() {
		rs := w.regions[r]
		rv := snapshot.RegionV1{
			Region:  r.String(),
			BorderR: rs.store.Gen.BorderR,
			Chunks:  store.ExportLoadedChunks(rs.store.Chunks, rs.store.LoadedChunkKeys()),
		}
		rs.seen.Each(func(c terrain.ChunkPos) {
			rv.Seen = append(rv.Seen, snapshot.ChunkKeyV1{CX: c.X(), CZ: c.Z()})
		})
		sort.Slice(rv.Seen, func(i, j int) bool {
			if rv.Seen[i].CX != rv.Seen[j].CX {
				return rv.Seen[i].CX < rv.Seen[j].CX
			}
			return rv.Seen[i].CZ < rv.Seen[j].CZ
		})
		snap.Regions = append(snap.Regions, rv)
	}

	all := make([]*Player, 0, len(w.players)+len(w.offline))
	for _, p := range w.players {
		all = append(all, p)
	}
	for _, p := range w.offline {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].id.String() < all[j].id.String() })
	for _, p := range all {
		items := make(map[string]int, len(p.items))
		for k, v := range p.items {
			items[k] = v
		}
		snap.Players = append(snap.Players, snapshot.PlayerV1{
			ID:     p.id.String(),
			Name:   p.name,
			Region: p.reg.String(),
			Pos:    vec(p.pos),
			Yaw:    p.yaw,
			Pitch:  p.pitch,
			Alive:  p.alive,
			Items:  items,
		})
	}

	for _, t := range w.mod.Market.All() {
		snap.Traders = append(snap.Traders, snapshot.TraderV1{
			ID:           t.ID().String(),
			Region:       t.Region().String(),
			Pos:          vec(t.Position()),
			RestockUntil: t.RestockUntil(),
		})
	}
	return snap
}

// ImportSnapshot replaces the world's state with snap. It must be called
// before Run. Every restored player starts offline.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Seed != w.cfg.Seed {
		return fmt.Errorf("snapshot seed %d does not match world seed %d", snap.Seed, w.cfg.Seed)
	}

	regions := map[region.Region]*regionState{}
	for _, rv := range snap.Regions {
		r, err := region.Parse(rv.Region)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		gen := w.worldGen(r)
		gen.BorderR = rv.BorderR
		s, err := store.ImportChunks(gen, rv.Chunks)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", r, err)
		}
		s.OnSet = w.onTerrainSet(r)
		seen := mapset.New[terrain.ChunkPos]()
		for _, k := range rv.Seen {
			seen.Put(terrain.ChunkPos{k.CX, k.CZ})
		}
		regions[r] = &regionState{store: s, seen: seen}
	}
	for _, r := range region.All() {
		if regions[r] == nil {
			regions[r] = &regionState{store: w.newStore(r), seen: mapset.New[terrain.ChunkPos]()}
		}
	}

	offline := map[uuid.UUID]*Player{}
	for _, pv := range snap.Players {
		id, err := uuid.Parse(pv.ID)
		if err != nil {
			return fmt.Errorf("snapshot player %q: %w", pv.Name, err)
		}
		r, err := region.Parse(pv.Region)
		if err != nil {
			return fmt.Errorf("snapshot player %q: %w", pv.Name, err)
		}
		p := w.newPlayer(id, pv.Name)
		p.reg = r
		p.pos = mgl64.Vec3{pv.Pos[0], pv.Pos[1], pv.Pos[2]}
		p.yaw, p.pitch = pv.Yaw, pv.Pitch
		p.alive = pv.Alive
		p.removed = true
		for k, v := range pv.Items {
			p.items[k] = v
		}
		offline[id] = p
	}

	for _, tv := range snap.Traders {
		id, err := uuid.Parse(tv.ID)
		if err != nil {
			return fmt.Errorf("snapshot trader: %w", err)
		}
		r, err := region.Parse(tv.Region)
		if err != nil {
			return fmt.Errorf("snapshot trader %s: %w", id, err)
		}
		w.mod.Market.Restore(id, r, mgl64.Vec3{tv.Pos[0], tv.Pos[1], tv.Pos[2]}, tv.RestockUntil)
	}

	w.regions = regions
	w.mod.Corruption.ForgetCatalysts()
	w.players = map[uuid.UUID]*Player{}
	w.clients = map[uuid.UUID]*clientState{}
	w.offline = offline
	// Resume on the tick after the snapshot.
	w.tick.Store(snap.Header.Tick + 1)
	w.env.Sched.Advance(snap.Header.Tick)
	return nil
}
