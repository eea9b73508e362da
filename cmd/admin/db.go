package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	persistlog "enderborne.gg/internal/persistence/log"
	"enderborne.gg/internal/persistence/progressdb"
	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/progress"
)

type progressRow struct {
	Player string `json:"player"`
	progress.Progress
}

// progressCmd reads the progress database directly. Resets go through the
// running server so its cache stays authoritative.
func progressCmd(args []string) {
	q := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		q, args = args[0], args[1:]
	}
	if q == "reset" {
		resetCmd(args)
		return
	}

	fs := flag.NewFlagSet("progress "+q, flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "progress db path (optional)")
	player := fs.String("player", "", "player uuid or name (show)")
	limit := fs.Int("limit", 20, "result limit (snapshots)")
	_ = fs.Parse(args)

	path, ok := progressDBPath(*dataDir, *worldID, *dbPath)
	if !ok {
		fmt.Fprintln(os.Stderr, "missing -world or -db")
		os.Exit(2)
	}

	switch q {
	case "list":
		db := openProgress(path)
		defer db.Close()
		for _, id := range db.Players() {
			printJSON(progressRow{Player: id.String(), Progress: progress.Load(db, id)})
		}

	case "show":
		id, err := parsePlayer(*player)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		db := openProgress(path)
		defer db.Close()
		printJSON(progressRow{Player: id.String(), Progress: progress.Load(db, id)})

	case "snapshots":
		db, err := sql.Open("sqlite", path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
		defer db.Close()
		if *limit <= 0 {
			*limit = 20
		}
		rows, err := db.Query(`SELECT tick,path,chunks,players,recorded_at FROM snapshots ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64  `json:"tick"`
				Path       string `json:"path"`
				Chunks     int    `json:"chunks"`
				Players    int    `json:"players"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Chunks, &r.Players, &r.RecordedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown progress query %q (want list|show|reset|snapshots)\n", q)
		os.Exit(2)
	}
}

// auditCmd prints audit entries. With -actor it queries the progress
// database index; otherwise it scans the JSONL audit log.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	dbPath := fs.String("db", "", "progress db path (optional)")
	actor := fs.String("actor", "", "actor filter (player uuid, name or \"corruption\")")
	action := fs.String("action", "", "action filter, e.g. UNLOCK, RESET, SET_BLOCK")
	sinceTick := fs.Uint64("since_tick", 0, "only entries at or after this tick")
	limit := fs.Int("limit", 100, "result limit")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	want := strings.ToUpper(strings.TrimSpace(*action))
	match := func(e audit.Entry) bool {
		return (want == "" || e.Action == want) && e.Tick >= *sinceTick
	}

	if a := strings.TrimSpace(*actor); a != "" {
		if a != "corruption" {
			if id, err := parsePlayer(a); err == nil {
				a = id.String()
			}
		}
		path, _ := progressDBPath(*dataDir, *worldID, *dbPath)
		db := openProgress(path)
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		entries, err := db.AuditsFor(ctx, a, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if match(e) {
				printJSON(e)
			}
		}
		return
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	files, err := persistlog.AuditFiles(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit files:", err)
		os.Exit(1)
	}
	n := 0
	errStop := fmt.Errorf("limit reached")
	for _, path := range files {
		err := persistlog.ReadAuditFile(path, func(e audit.Entry) error {
			if !match(e) {
				return nil
			}
			printJSON(e)
			n++
			if *limit > 0 && n >= *limit {
				return errStop
			}
			return nil
		})
		if err == errStop {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
	}
}

func progressDBPath(dataDir, worldID, dbPath string) (string, bool) {
	if p := strings.TrimSpace(dbPath); p != "" {
		return p, true
	}
	if strings.TrimSpace(worldID) == "" {
		return "", false
	}
	return filepath.Join(dataDir, "worlds", worldID, "progress.sqlite"), true
}

func openProgress(path string) *progressdb.SQLite {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := progressdb.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
