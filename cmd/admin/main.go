package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	persistlog "enderborne.gg/internal/persistence/log"
	"enderborne.gg/internal/persistence/snapshot"
	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/terrain"
	"enderborne.gg/internal/sim/terrain/store"
	"enderborne.gg/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "progress":
			progressCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// rollbackCmd undoes corruption writes inside a box by replaying the audit
// log backwards over a snapshot. The result is written as a new snapshot
// for the server to load with -snapshot.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	regionName := fs.String("region", "ORIGIN_REALM", "region the box is in")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback changes since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "rollback changes up to tick (inclusive, optional; defaults to snapshot tick)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}
	reg, err := region.Parse(*regionName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -region:", err)
		os.Exit(2)
	}
	box, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	endTick := *toTick
	if endTick == 0 || endTick > snap.Header.Tick {
		endTick = snap.Header.Tick
	}

	recs, err := readAudit(worldDir, reg, *sinceTick, endTick, box)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped, err := applyRollback(&snap, reg, recs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rollback:", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s tick=%d region=%s aabb=%s since=%d to=%d entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, reg, *aabb, *sinceTick, endTick, len(recs), applied, skipped, *outPath)
}

type auditRec struct {
	Seq   uint64
	Entry audit.Entry
}

func readAudit(worldDir string, reg region.Region, sinceTick, toTick uint64, box cube.BBox) ([]auditRec, error) {
	files, err := persistlog.AuditFiles(worldDir)
	if err != nil {
		return nil, err
	}

	out := make([]auditRec, 0, 1024)
	var seq uint64
	for _, path := range files {
		err := persistlog.ReadAuditFile(path, func(e audit.Entry) error {
			seq++
			if e.Action != audit.ActionSetBlock || e.Region != reg.String() {
				return nil
			}
			if e.Tick < sinceTick || e.Tick > toTick {
				return nil
			}
			if !withinAABB(e.Pos, box) {
				return nil
			}
			out = append(out, auditRec{Seq: seq, Entry: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// Reverse chronological apply: highest tick first; for same tick use reverse read order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Tick != out[j].Entry.Tick {
			return out[i].Entry.Tick > out[j].Entry.Tick
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

// applyRollback restores each cell to its pre-write material. A cell is
// skipped when its chunk is not in the snapshot or it no longer holds the
// written material.
func applyRollback(snap *snapshot.SnapshotV1, reg region.Region, recs []auditRec) (applied, skipped int, err error) {
	idx := -1
	for i, rv := range snap.Regions {
		if rv.Region == reg.String() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, len(recs), nil
	}
	rv := &snap.Regions[idx]
	s, err := store.ImportChunks(store.WorldGen{Seed: snap.Seed, Region: reg, BorderR: rv.BorderR}, rv.Chunks)
	if err != nil {
		return 0, 0, err
	}

	for _, r := range recs {
		pos := cube.Pos{r.Entry.Pos[0], r.Entry.Pos[1], r.Entry.Pos[2]}
		from, errFrom := material.Parse(r.Entry.From)
		to, errTo := material.Parse(r.Entry.To)
		if errFrom != nil || errTo != nil || !s.Loaded(terrain.ChunkOf(pos)) || !s.InBuildLimits(pos) {
			skipped++
			continue
		}
		if s.Material(pos) != to {
			skipped++
			continue
		}
		s.SetMaterial(pos, from)
		applied++
	}
	rv.Chunks = store.ExportLoadedChunks(s.Chunks, s.LoadedChunkKeys())
	return applied, skipped, nil
}

func withinAABB(pos [3]int, box cube.BBox) bool {
	return box.Vec3Within(cube.Pos{pos[0], pos[1], pos[2]}.Vec3Centre())
}

func parseAABB(s string) (cube.BBox, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return cube.BBox{}, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return cube.BBox{}, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return cube.BBox{}, err
	}
	// Inclusive block bounds, so the far corner is extended by one.
	var lo, hi [3]float64
	for i := 0; i < 3; i++ {
		lo[i], hi[i] = float64(min(a[i], b[i])), float64(max(a[i], b[i])+1)
	}
	return cube.Box(lo[0], lo[1], lo[2], hi[0], hi[1], hi[2]), nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

// parsePlayer accepts a player uuid or a player name.
func parsePlayer(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("missing -player")
	}
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	return world.OfflineID(s), nil
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
