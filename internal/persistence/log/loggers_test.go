package log

import (
	"testing"
	"time"

	"enderborne.gg/internal/sim/audit"
)

func TestAuditLogRotatesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	if err := l.WriteAudit(audit.Entry{Tick: 1, Actor: "a", Action: audit.ActionFirstSpawn}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteAudit(audit.Entry{Tick: 2, Actor: "a", Action: audit.ActionUnlock}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteAudit(audit.Entry{Tick: 3, Actor: "corruption", Action: audit.ActionSetBlock, From: "END_STONE", To: "SCULK"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := AuditFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v", files)
	}
	var ticks []uint64
	for _, f := range files {
		if err := ReadAuditFile(f, func(e audit.Entry) error {
			ticks = append(ticks, e.Tick)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("ticks: %v", ticks)
	}
}
