package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	persistlog "enderborne.gg/internal/persistence/log"
	"enderborne.gg/internal/persistence/progressdb"
	"enderborne.gg/internal/persistence/snapshot"
	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/tuning"
	"enderborne.gg/internal/sim/world"
	"enderborne.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		progressPath = flag.String("progress_db", "", "player progress database (default: <data>/worlds/<world>/progress.sqlite)")
		disableAudit = flag.Bool("disable_audit", false, "disable the JSONL audit log (progress db still records audits)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if os.IsNotExist(tuneErr) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
	}

	pp := strings.TrimSpace(*progressPath)
	if pp == "" {
		pp = filepath.Join(worldDir, "progress.sqlite")
	}
	progressDB, err := progressdb.Open(pp)
	if err != nil {
		logger.Fatalf("open progress db: %v", err)
	}
	defer progressDB.Close()

	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		cfg := tune.WorldConfig(*worldID, snap.Seed)
		if snap.TickRate > 0 {
			cfg.TickRateHz = snap.TickRate
		}
		w, err = world.New(cfg, progressDB, logger)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		w, err = world.New(tune.WorldConfig(*worldID, *seed), progressDB, logger)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
	}

	// Runs after cancel and before the progress db closes.
	snapDone := make(chan struct{})
	defer func() { <-snapDone }()

	ctx, cancel := signalContext()
	defer cancel()

	sinks := audit.Multi{progressDB}
	if !*disableAudit {
		auditLog := persistlog.NewAuditLogger(worldDir)
		defer auditLog.Close()
		sinks = append(sinks, auditLog)
	}
	w.SetAuditSink(sinks)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				chunks := 0
				for _, r := range snap.Regions {
					chunks += len(r.Chunks)
				}
				progressDB.RecordSnapshot(path, snap.Header.Tick, chunks, len(snap.Players))
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w, progressDB.Stats())
	})

	enableAdminHTTP := envBool("VC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("VC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			writeJSON(rw, http.StatusOK, struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: *worldID,
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			})
		}))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := w.RequestSnapshot(ctx2)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
		}))
		mux.HandleFunc("/admin/v1/progress", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			id, err := playerParam(r)
			if err != nil {
				writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			view, err := w.QueryProgress(ctx2, id)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, view)
		}))
		mux.HandleFunc("/admin/v1/progress/reset", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			id, err := playerParam(r)
			if err != nil {
				writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			actor := strings.TrimSpace(r.URL.Query().Get("actor"))
			if actor == "" {
				actor = "admin_http"
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			view, err := w.ResetProgress(ctx2, id, actor)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error(), "progress": view})
				return
			}
			logger.Printf("admin: progress reset player=%s actor=%s changed=%v", view.ID, actor, view.Changed)
			writeJSON(rw, http.StatusOK, view)
		}))
	} else {
		logger.Printf("admin endpoints disabled (VC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VC_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger, strings.TrimSpace(os.Getenv("VC_WS_TOKEN"))).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s tick_rate=%dHz", *addr, *worldID, tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-w.Done()
}

func writeMetrics(rw http.ResponseWriter, worldID string, w *world.World, db progressdb.QueueStats) {
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	// Minimal Prometheus exposition format.
	gauge := func(name, help string) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
	}
	counter := func(name, help string) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
	}

	gauge("enderborne_world_tick", "Current world tick.")
	fmt.Fprintf(rw, "enderborne_world_tick{world=%q} %d\n", worldID, tick)

	gauge("enderborne_world_players", "Players online.")
	fmt.Fprintf(rw, "enderborne_world_players{world=%q} %d\n", worldID, m.Players)

	gauge("enderborne_world_clients", "Connected clients.")
	fmt.Fprintf(rw, "enderborne_world_clients{world=%q} %d\n", worldID, m.Clients)

	gauge("enderborne_world_loaded_chunks", "Loaded chunk count.")
	fmt.Fprintf(rw, "enderborne_world_loaded_chunks{world=%q} %d\n", worldID, m.LoadedChunks)

	gauge("enderborne_world_seen_chunks", "Chunks that have fired a load event.")
	fmt.Fprintf(rw, "enderborne_world_seen_chunks{world=%q} %d\n", worldID, m.SeenChunks)

	gauge("enderborne_world_traders", "Live traders.")
	fmt.Fprintf(rw, "enderborne_world_traders{world=%q} %d\n", worldID, m.Traders)

	gauge("enderborne_world_queue_depth", "Channel backlog depth.")
	fmt.Fprintf(rw, "enderborne_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "enderborne_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "enderborne_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)
	fmt.Fprintf(rw, "enderborne_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "admin", m.QueueDepths.Admin)
	fmt.Fprintf(rw, "enderborne_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "progress_db", db.Depth)

	gauge("enderborne_world_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(rw, "enderborne_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	gauge("enderborne_corruption_known_catalysts", "Indexed catalyst blocks.")
	fmt.Fprintf(rw, "enderborne_corruption_known_catalysts{world=%q} %d\n", worldID, m.KnownCatalysts)

	gauge("enderborne_sched_pending", "Delayed effects waiting to run.")
	fmt.Fprintf(rw, "enderborne_sched_pending{world=%q} %d\n", worldID, m.PendingEffects)

	counter("enderborne_corruption_total", "Corruption counters.")
	for _, kv := range []struct {
		k string
		v uint64
	}{
		{"chunks_gated", m.Corruption.ChunksGated},
		{"chunks_corrupted", m.Corruption.ChunksCorrupted},
		{"patches", m.Corruption.Patches},
		{"cells_written", m.Corruption.CellsWritten},
		{"catalysts_placed", m.Corruption.CatalystsPlaced},
		{"spreads", m.Corruption.Spreads},
		{"spread_misses", m.Corruption.SpreadMisses},
	} {
		fmt.Fprintf(rw, "enderborne_corruption_total{world=%q,metric=%q} %d\n", worldID, kv.k, kv.v)
	}

	counter("enderborne_gate_total", "Progression gate counters.")
	fmt.Fprintf(rw, "enderborne_gate_total{world=%q,metric=%q} %d\n", worldID, "boss_deaths", m.Gate.BossDeaths)
	fmt.Fprintf(rw, "enderborne_gate_total{world=%q,metric=%q} %d\n", worldID, "unlocks", m.Gate.Unlocks)
	fmt.Fprintf(rw, "enderborne_gate_total{world=%q,metric=%q} %d\n", worldID, "vetoes", m.Gate.Vetoes)
	fmt.Fprintf(rw, "enderborne_gate_total{world=%q,metric=%q} %d\n", worldID, "resets", m.Gate.Resets)

	counter("enderborne_spawn_total", "Spawn routing counters.")
	fmt.Fprintf(rw, "enderborne_spawn_total{world=%q,metric=%q} %d\n", worldID, "first_spawns", m.Spawn.FirstSpawns)
	fmt.Fprintf(rw, "enderborne_spawn_total{world=%q,metric=%q} %d\n", worldID, "fallbacks", m.Spawn.Fallbacks)
	fmt.Fprintf(rw, "enderborne_spawn_total{world=%q,metric=%q} %d\n", worldID, "reroutes", m.Spawn.Reroutes)

	counter("enderborne_trades_total", "Completed barters.")
	fmt.Fprintf(rw, "enderborne_trades_total{world=%q} %d\n", worldID, m.Trades)

	counter("enderborne_handler_panics_total", "Recovered panics in mod handlers.")
	fmt.Fprintf(rw, "enderborne_handler_panics_total{world=%q} %d\n", worldID, m.HandlerPanics)

	counter("enderborne_progress_db_total", "Progress database writer counters.")
	fmt.Fprintf(rw, "enderborne_progress_db_total{world=%q,metric=%q} %d\n", worldID, "stalls", db.Stalls)
	fmt.Fprintf(rw, "enderborne_progress_db_total{world=%q,metric=%q} %d\n", worldID, "dropped", db.Dropped)
	fmt.Fprintf(rw, "enderborne_progress_db_total{world=%q,metric=%q} %d\n", worldID, "failed", db.Failed)
}

// playerParam accepts a player uuid or a player name.
func playerParam(r *http.Request) (uuid.UUID, error) {
	v := strings.TrimSpace(r.URL.Query().Get("player"))
	if v == "" {
		return uuid.Nil, fmt.Errorf("missing player")
	}
	if id, err := uuid.Parse(v); err == nil {
		return id, nil
	}
	return world.OfflineID(v), nil
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
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
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
