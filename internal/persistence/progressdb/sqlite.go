// Package progressdb is the SQLite-backed player progress store. Reads are
// served from memory; writes are persisted by a single writer goroutine.
package progressdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"enderborne.gg/internal/sim/audit"
)

type SQLite struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[uuid.UUID]map[string][]byte

	// qmu orders sends on ch against Close.
	qmu  sync.RWMutex
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	stalls  atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type reqKind int

const (
	reqAttach reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	attach   attachRow
	audit    audit.Entry
	snapshot snapshotRow
}

type attachRow struct {
	Player    string
	Key       string
	Value     []byte
	UpdatedAt string
}

type snapshotRow struct {
	Tick    uint64
	Path    string
	Chunks  int
	Players int
}

func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLite{
		db:    db,
		cache: map[uuid.UUID]map[string][]byte{},
		ch:    make(chan req, 65536),
	}
	if err := s.loadCache(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			player TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (player, key)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			region TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT,
			to_block TEXT,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_tick ON audits(action, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			players INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) loadCache() error {
	rows, err := s.db.Query(`SELECT player, key, value FROM attachments`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var player, key, value string
		if err := rows.Scan(&player, &key, &value); err != nil {
			return err
		}
		id, err := uuid.Parse(player)
		if err != nil {
			continue
		}
		rec, ok := s.cache[id]
		if !ok {
			rec = map[string][]byte{}
			s.cache[id] = rec
		}
		rec[key] = []byte(value)
	}
	return rows.Err()
}

// Close drains pending writes and closes the database.
func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.qmu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.qmu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLite) Raw(player uuid.UUID, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.cache[player][key]
	return b, ok
}

// SetRaw updates the cache immediately and queues the row. Attachments are
// never dropped: a full queue makes the caller wait.
func (s *SQLite) SetRaw(player uuid.UUID, key string, value []byte) error {
	s.qmu.RLock()
	defer s.qmu.RUnlock()
	if s.closed.Load() {
		return fmt.Errorf("progressdb: closed")
	}
	if !json.Valid(value) {
		return fmt.Errorf("progressdb: %s: value is not JSON", key)
	}
	v := append([]byte(nil), value...)
	s.mu.Lock()
	rec, ok := s.cache[player]
	if !ok {
		rec = map[string][]byte{}
		s.cache[player] = rec
	}
	rec[key] = v
	s.mu.Unlock()

	r := req{kind: reqAttach, attach: attachRow{
		Player:    player.String(),
		Key:       key,
		Value:     v,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}
	select {
	case s.ch <- r:
	default:
		s.stalls.Add(1)
		s.ch <- r
	}
	return nil
}

// Players returns every player with stored attachments, sorted.
func (s *SQLite) Players() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.cache))
	for id := range s.cache {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *SQLite) WriteAudit(entry audit.Entry) error {
	if s == nil {
		return nil
	}
	s.qmu.RLock()
	defer s.qmu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		// The JSONL audit log remains the source of truth.
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLite) RecordSnapshot(path string, tick uint64, chunks, players int) {
	if s == nil {
		return
	}
	s.qmu.RLock()
	defer s.qmu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{Tick: tick, Path: path, Chunks: chunks, Players: players}}:
	default:
		s.dropped.Add(1)
	}
}

type QueueStats struct {
	Depth   int
	Stalls  uint64
	Dropped uint64
	Failed  uint64
}

func (s *SQLite) Stats() QueueStats {
	return QueueStats{
		Depth:   len(s.ch),
		Stalls:  s.stalls.Load(),
		Dropped: s.dropped.Load(),
		Failed:  s.failed.Load(),
	}
}

// AuditsFor returns up to limit audit rows of one actor, newest first.
// Only rows already committed are visible.
func (s *SQLite) AuditsFor(ctx context.Context, actor string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM audits WHERE actor = ? ORDER BY tick DESC, seq DESC LIMIT ?`, actor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []audit.Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e audit.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode audit row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) loop() {
	ctx := context.Background()

	upsertAttach, _ := s.db.Prepare(`INSERT OR REPLACE INTO attachments(player,key,value,updated_at) VALUES(?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,region,x,y,z,from_block,to_block,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,chunks,players,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{upsertAttach, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		// Attachments of an aborted transaction are replayed into the next one.
		pending []attachRow

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(1)
		} else {
			pending = pending[:0]
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	putAttach := func(a attachRow) bool {
		if upsertAttach == nil {
			return false
		}
		if _, err := tx.Stmt(upsertAttach).Exec(a.Player, a.Key, string(a.Value), a.UpdatedAt); err != nil {
			return false
		}
		opCount++
		return true
	}
	replay := func() {
		for _, a := range pending {
			if !putAttach(a) {
				rollback()
				return
			}
		}
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	handle := func(r req) {
		if tx == nil {
			begin()
			if tx != nil {
				replay()
			}
			if tx == nil {
				if r.kind == reqAttach {
					pending = append(pending, r.attach)
				}
				return
			}
		}
		switch r.kind {
		case reqAttach:
			pending = append(pending, r.attach)
			if !putAttach(r.attach) {
				rollback()
				return
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.Region,
					a.Pos[0], a.Pos[1], a.Pos[2],
					a.From,
					a.To,
					a.Reason,
					string(raw),
				); err != nil {
					rollback()
					return
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick),
					sn.Path,
					sn.Chunks,
					sn.Players,
					time.Now().UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					return
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()
loop:
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				break loop
			}
			handle(r)
		case <-ticker.C:
			commit()
		}
	}

	if tx == nil && len(pending) > 0 {
		begin()
		replay()
	}
	commit()
}
