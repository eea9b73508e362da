package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"enderborne.gg/internal/persistence/progressdb"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/tuning"
	"enderborne.gg/internal/sim/world"
)

func TestLatestSnapshotPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"90.snap.zst", "1200.snap.zst", "300.snap.zst", "junk.snap.zst", "999.txt"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := latestSnapshot(dir), filepath.Join(snaps, "1200.snap.zst"); got != want {
		t.Fatalf("latestSnapshot=%q want %q", got, want)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir: got %q", got)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"example:80":     false,
		"":               false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestPlayerParam(t *testing.T) {
	id := uuid.New()
	got, err := playerParam(httptest.NewRequest("GET", "/admin/v1/progress?player="+id.String(), nil))
	if err != nil || got != id {
		t.Fatalf("uuid param: got %v err %v", got, err)
	}
	got, err = playerParam(httptest.NewRequest("GET", "/admin/v1/progress?player=alex", nil))
	if err != nil || got != world.OfflineID("alex") {
		t.Fatalf("name param: got %v err %v", got, err)
	}
	if _, err := playerParam(httptest.NewRequest("GET", "/admin/v1/progress", nil)); err == nil {
		t.Fatalf("expected error for missing player")
	}
}

func TestLoopbackOnlyRejectsRemote(t *testing.T) {
	called := false
	h := loopbackOnly(func(_ http.ResponseWriter, _ *http.Request) { called = true })
	req := httptest.NewRequest("GET", "/admin/v1/state", nil)
	req.RemoteAddr = "10.1.2.3:4444"
	rec := httptest.NewRecorder()
	h(rec, req)
	if called || rec.Code != 403 {
		t.Fatalf("remote request: called=%v code=%d", called, rec.Code)
	}
}

func TestWriteMetrics(t *testing.T) {
	w, err := world.New(tuning.Defaults().WorldConfig("m1", 3), progress.NewMemory(), nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, nil)

	rec := httptest.NewRecorder()
	writeMetrics(rec, "m1", w, progressdb.QueueStats{Dropped: 2})
	body := rec.Body.String()
	for _, want := range []string{
		`enderborne_world_tick{world="m1"} 1`,
		`enderborne_gate_total{world="m1",metric="vetoes"} 0`,
		`enderborne_progress_db_total{world="m1",metric="dropped"} 2`,
		"# TYPE enderborne_trades_total counter",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("ENDERBORNE_TEST_FLAG", "yes")
	if !envBool("ENDERBORNE_TEST_FLAG", false) {
		t.Fatalf("yes should be true")
	}
	t.Setenv("ENDERBORNE_TEST_FLAG", "off")
	if envBool("ENDERBORNE_TEST_FLAG", true) {
		t.Fatalf("off should be false")
	}
	t.Setenv("ENDERBORNE_TEST_FLAG", "maybe")
	if !envBool("ENDERBORNE_TEST_FLAG", true) {
		t.Fatalf("unknown value should use the default")
	}
}
