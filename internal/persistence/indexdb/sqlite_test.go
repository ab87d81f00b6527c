package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"hextactics.gg/internal/sim/catalogs"
	"hextactics.gg/internal/sim/lobby"
	"hextactics.gg/internal/sim/match"
	"hextactics.gg/internal/sim/tuning"
)

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteIndex_TurnsAndResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "matches.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	st := match.NewState("A", "B", 100)
	st.Enemy.Gold = 110
	st.TurnOwner = "B"
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	idx.RecordTurn(lobby.TurnRecord{MatchID: "m1", Turn: 1, TurnOwner: "B", State: st, At: now})
	idx.RecordResult(lobby.ResultRecord{
		MatchID: "m1", PlayerID: "A", EnemyID: "B", WinnerID: "B", LoserID: "A",
		Status: lobby.StatusFinished, Reason: "leader_defeated", Turns: 1, Width: 20, Height: 12,
		StartedAt: now.Add(-time.Minute), EndedAt: now,
		History: []match.State{st},
	})
	idx.RecordArchive("m1", "/data/archives/m1/history.snap.zst")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openRaw(t, path)
	var (
		owner      string
		enemyGold  int
		stateJSON  string
		winner     string
		status     string
		archive    string
		turnsCount int
	)
	if err := db.QueryRow(`SELECT turn_owner,enemy_gold,state_json FROM turns WHERE match_id='m1' AND turn=1`).Scan(&owner, &enemyGold, &stateJSON); err != nil {
		t.Fatalf("turn row: %v", err)
	}
	if owner != "B" || enemyGold != 110 || stateJSON == "" {
		t.Fatalf("turn row owner=%q gold=%d", owner, enemyGold)
	}
	if err := db.QueryRow(`SELECT winner_id,status,archive_path,turns FROM matches WHERE match_id='m1'`).Scan(&winner, &status, &archive, &turnsCount); err != nil {
		t.Fatalf("match row: %v", err)
	}
	if winner != "B" || status != "finished" || archive != "/data/archives/m1/history.snap.zst" || turnsCount != 1 {
		t.Fatalf("match row winner=%q status=%q archive=%q turns=%d", winner, status, archive, turnsCount)
	}
}

func TestSQLiteIndex_CancelledMatchHasNullWinner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordResult(lobby.ResultRecord{MatchID: "m2", PlayerID: "A", Status: lobby.StatusCancelled, Reason: "cancelled"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var winner sql.NullString
	if err := openRaw(t, path).QueryRow(`SELECT winner_id FROM matches WHERE match_id='m2'`).Scan(&winner); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if winner.Valid {
		t.Fatalf("winner=%q want NULL", winner.String)
	}
}

func TestSQLiteIndex_UpsertCatalog(t *testing.T) {
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	path := filepath.Join(t.TempDir(), "idx.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := idx.UpsertCatalog("../../../configs", &cats.Units, tuning.Defaults()); err != nil {
			t.Fatalf("UpsertCatalog #%d: %v", i, err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openRaw(t, path)
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM units_catalog`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(cats.Units.Palette) {
		t.Fatalf("units_catalog rows=%d want %d", n, len(cats.Units.Palette))
	}
	var price, rng int
	if err := db.QueryRow(`SELECT price,attack_range FROM units_catalog WHERE template_id='unit-archer'`).Scan(&price, &rng); err != nil {
		t.Fatalf("archer: %v", err)
	}
	if price != 15 || rng != 3 {
		t.Fatalf("archer price=%d range=%d", price, rng)
	}
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='units_defs'`).Scan(&digest); err != nil {
		t.Fatalf("defs: %v", err)
	}
	if digest != cats.Units.DefsDigest {
		t.Fatalf("digest=%q want %q", digest, cats.Units.DefsDigest)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTurn}

	s.RecordTurn(lobby.TurnRecord{MatchID: "m", Turn: 2})
	s.RecordResult(lobby.ResultRecord{MatchID: "m"})
	s.RecordArchive("m", "/tmp/m.snap.zst")

	st := s.Stats()
	if st.DropTurnTotal != 1 || st.DropResultTotal != 1 || st.DropArchiveTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.RecordTurn(lobby.TurnRecord{})
	s.RecordResult(lobby.ResultRecord{})
	s.RecordArchive("m", "p")
	if err := s.UpsertCatalog("", nil, tuning.Defaults()); err != nil {
		t.Fatalf("err=%v", err)
	}
}
