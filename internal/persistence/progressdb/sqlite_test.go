package progressdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/progress"
)

func TestAttachmentsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := uuid.NewMD5(uuid.NameSpaceOID, []byte("OfflinePlayer:alex"))
	if err := progress.Set(s, id, progress.OverworldUnlocked, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := progress.Set(s, id, progress.SpawnCount, int32(2)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := progress.Get(s, id, progress.SpawnCount); got != 2 {
		t.Fatalf("cache read: got %d", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	p := progress.Load(s2, id)
	if !p.OverworldUnlocked || p.SpawnCount != 2 || p.HasPlayed {
		t.Fatalf("unexpected progress after reopen: %+v", p)
	}
	if ids := s2.Players(); len(ids) != 1 || ids[0] != id {
		t.Fatalf("players: %v", ids)
	}
}

func TestLastWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := uuid.New()
	for i := int32(1); i <= 50; i++ {
		if err := progress.Set(s, id, progress.SpawnCount, i); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	_ = s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if got := progress.Get(s2, id, progress.SpawnCount); got != 50 {
		t.Fatalf("got %d want 50", got)
	}
}

func TestAuditRowsQueryable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	actor := uuid.New().String()
	_ = s.WriteAudit(audit.Entry{Tick: 5, Actor: actor, Action: audit.ActionFirstSpawn, Region: "ORIGIN_REALM", Pos: [3]int{1, 2, 3}})
	_ = s.WriteAudit(audit.Entry{Tick: 9, Actor: actor, Action: audit.ActionUnlock})
	_ = s.WriteAudit(audit.Entry{Tick: 9, Actor: "corruption", Action: audit.ActionSetBlock})
	s.RecordSnapshot("/tmp/9.snap.zst", 9, 4, 1)
	_ = s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.AuditsFor(context.Background(), actor, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].Action != audit.ActionUnlock || got[1].Pos != [3]int{1, 2, 3} {
		t.Fatalf("unexpected audits: %+v", got)
	}
}

func TestRejectsNonJSONValue(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "p.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.SetRaw(uuid.New(), "k", []byte("{")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWritesRacingCloseDoNotPanic(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "progress.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := uuid.New()
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.RecordSnapshot("snap", uint64(i), 1, 1)
				_ = s.WriteAudit(audit.Entry{Tick: uint64(i), Actor: "corruption", Action: audit.ActionSetBlock})
				_ = progress.Set(s, id, progress.SpawnCount, int32(g*1000+i))
			}
		}(g)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
	if err := progress.Set(s, id, progress.SpawnCount, 1); err == nil {
		t.Fatalf("expected error after close")
	}
}
