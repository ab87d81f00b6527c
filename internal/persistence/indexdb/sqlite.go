package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"hextactics.gg/internal/sim/catalogs"
	"hextactics.gg/internal/sim/lobby"
	"hextactics.gg/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable index of match history. Writes are
// queued and applied by one goroutine; when the queue is full they are
// dropped and counted. The JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTurn    atomic.Uint64
	dropResult  atomic.Uint64
	dropArchive atomic.Uint64
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropTurnTotal    uint64 `json:"drop_turn_total"`
	DropResultTotal  uint64 `json:"drop_result_total"`
	DropArchiveTotal uint64 `json:"drop_archive_total"`
}

type reqKind int

const (
	reqTurn reqKind = iota + 1
	reqResult
	reqArchive
)

type req struct {
	kind reqKind

	turn    lobby.TurnRecord
	result  lobby.ResultRecord
	archive archiveRow
}

type archiveRow struct {
	MatchID string
	Path    string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS units_catalog (
			template_id TEXT PRIMARY KEY,
			palette_index INTEGER NOT NULL,
			name TEXT NOT NULL,
			class TEXT NOT NULL,
			leader INTEGER NOT NULL,
			price INTEGER NOT NULL,
			health INTEGER NOT NULL,
			attack INTEGER NOT NULL,
			defense INTEGER NOT NULL,
			movement INTEGER NOT NULL,
			attack_range INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL,
			enemy_id TEXT NOT NULL,
			winner_id TEXT,
			loser_id TEXT,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			turns INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			started_at TEXT,
			ended_at TEXT,
			archive_path TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_ended_at ON matches(ended_at);`,
		`CREATE TABLE IF NOT EXISTS turns (
			match_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			turn_owner TEXT NOT NULL,
			player_gold INTEGER NOT NULL,
			enemy_gold INTEGER NOT NULL,
			units INTEGER NOT NULL,
			state_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (match_id, turn)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropTurnTotal:    s.dropTurn.Load(),
		DropResultTotal:  s.dropResult.Load(),
		DropArchiveTotal: s.dropArchive.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordTurn(rec lobby.TurnRecord) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqTurn, turn: rec}, &s.dropTurn)
}

func (s *SQLiteIndex) RecordResult(rec lobby.ResultRecord) {
	if s == nil {
		return
	}
	// History is large and lives in the archive.
	rec.History = nil
	s.enqueue(req{kind: reqResult, result: rec}, &s.dropResult)
}

// RecordArchive attaches an archive path to a match row.
func (s *SQLiteIndex) RecordArchive(matchID, path string) {
	if s == nil || matchID == "" || path == "" {
		return
	}
	s.enqueue(req{kind: reqArchive, archive: archiveRow{MatchID: matchID, Path: path}}, &s.dropArchive)
}

// UpsertCatalog stores the unit catalog (one row per template) and the tuning
// actually applied. It runs synchronously at startup.
func (s *SQLiteIndex) UpsertCatalog(configDir string, units *catalogs.UnitCatalog, tune tuning.Tuning) error {
	if s == nil || units == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "units.json")); err == nil {
			rows = append(rows, kv{name: "units_defs", digest: units.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(units.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "units_palette", digest: units.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM units_catalog`); err != nil {
		return err
	}
	ins, err := tx.Prepare(`INSERT INTO units_catalog(template_id,palette_index,name,class,leader,price,health,attack,defense,movement,attack_range) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer ins.Close()
	for i, id := range units.Palette {
		t := units.Defs[id]
		if _, err := ins.Exec(t.ID, i, t.Name, t.Class, boolInt(t.Leader), t.Price, t.Health, t.Attack, t.Defense, t.Movement, t.Range); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeText(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(match_id,turn,turn_owner,player_gold,enemy_gold,units,state_json,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	upsertMatch, _ := s.db.Prepare(`INSERT INTO matches(match_id,player_id,enemy_id,winner_id,loser_id,status,reason,turns,width,height,started_at,ended_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(match_id) DO UPDATE SET
			winner_id=excluded.winner_id, loser_id=excluded.loser_id, status=excluded.status,
			reason=excluded.reason, turns=excluded.turns, started_at=excluded.started_at, ended_at=excluded.ended_at`)
	setArchive, _ := s.db.Prepare(`UPDATE matches SET archive_path=? WHERE match_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTurn, upsertMatch, setArchive} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
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
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqTurn:
			t := r.turn
			if insertTurn == nil {
				break
			}
			b, _ := json.Marshal(t.State)
			_, err = tx.Stmt(insertTurn).Exec(
				t.MatchID,
				t.Turn,
				t.TurnOwner,
				t.State.Player.Gold,
				t.State.Enemy.Gold,
				len(t.State.Units),
				string(b),
				t.At.UTC().Format(time.RFC3339Nano),
			)

		case reqResult:
			m := r.result
			if upsertMatch == nil {
				break
			}
			_, err = tx.Stmt(upsertMatch).Exec(
				m.MatchID,
				m.PlayerID,
				m.EnemyID,
				nullText(m.WinnerID),
				nullText(m.LoserID),
				string(m.Status),
				m.Reason,
				m.Turns,
				m.Width,
				m.Height,
				timeText(m.StartedAt),
				timeText(m.EndedAt),
			)

		case reqArchive:
			if setArchive == nil {
				break
			}
			_, err = tx.Stmt(setArchive).Exec(r.archive.Path, r.archive.MatchID)
		}
		if err != nil {
			rollback()
			continue
		}
		opCount++
		// Commit when the queue drains so readers see finished matches promptly.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
