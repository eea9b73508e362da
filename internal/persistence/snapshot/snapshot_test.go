package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	in := SnapshotV1{
		Header:   Header{Version: Version, WorldID: "w", Tick: 42},
		Seed:     7,
		TickRate: 20,
		Regions: []RegionV1{{
			Region:  "ORIGIN_REALM",
			BorderR: 5000,
			Chunks:  []ChunkV1{{CX: 1, CZ: -1, MinY: 0, Height: 2, Blocks: make([]uint16, 2*256)}},
			Seen:    []ChunkKeyV1{{CX: 1, CZ: -1}},
		}},
		Players: []PlayerV1{{ID: "p", Name: "alex", Region: "ORIGIN_REALM", Pos: [3]float64{1.5, 50, 1.5}, Alive: true}},
	}
	in.Regions[0].Chunks[0].Blocks[17] = 9

	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil || h.Tick != 42 {
		t.Fatalf("header: %+v %v", h, err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Seed != 7 || len(out.Regions) != 1 || out.Regions[0].Chunks[0].Blocks[17] != 9 {
		t.Fatalf("unexpected snapshot: %+v", out)
	}
	if len(out.Players) != 1 || out.Players[0].Pos[1] != 50 {
		t.Fatalf("players: %+v", out.Players)
	}
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
