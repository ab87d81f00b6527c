package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type matchRow struct {
	MatchID     string `json:"match_id"`
	PlayerID    string `json:"player_id"`
	EnemyID     string `json:"enemy_id"`
	WinnerID    string `json:"winner_id,omitempty"`
	LoserID     string `json:"loser_id,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	Turns       int    `json:"turns"`
	EndedAt     string `json:"ended_at,omitempty"`
	ArchivePath string `json:"archive_path,omitempty"`
}

type turnRow struct {
	Turn       int    `json:"turn"`
	TurnOwner  string `json:"turn_owner"`
	PlayerGold int    `json:"player_gold"`
	EnemyGold  int    `json:"enemy_gold"`
	Units      int    `json:"units"`
	RecordedAt string `json:"recorded_at"`
}

type unitRow struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Leader     bool   `json:"leader"`
	Price      int    `json:"price"`
	Health     int    `json:"health"`
	Attack     int    `json:"attack"`
	Defense    int    `json:"defense"`
	Movement   int    `json:"movement"`
	Range      int    `json:"range"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	matchID := fs.String("match", "", "match id (turns)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "matches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "matches.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var out []any
	switch q {
	case "matches":
		rows, err := queryMatches(db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			out = append(out, r)
		}
	case "turns":
		if strings.TrimSpace(*matchID) == "" {
			fmt.Fprintln(os.Stderr, "missing -match")
			os.Exit(2)
		}
		rows, err := queryTurns(db, *matchID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			out = append(out, r)
		}
	case "units":
		rows, err := queryUnits(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			out = append(out, r)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want matches|turns|units)")
		os.Exit(2)
	}
	for _, r := range out {
		printJSON(r)
	}
}

func queryMatches(db *sql.DB, limit int) ([]matchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT match_id,player_id,enemy_id,COALESCE(winner_id,''),COALESCE(loser_id,''),status,reason,turns,COALESCE(ended_at,''),COALESCE(archive_path,'')
		FROM matches ORDER BY ended_at DESC, match_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []matchRow
	for rows.Next() {
		var r matchRow
		if err := rows.Scan(&r.MatchID, &r.PlayerID, &r.EnemyID, &r.WinnerID, &r.LoserID, &r.Status, &r.Reason, &r.Turns, &r.EndedAt, &r.ArchivePath); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryTurns(db *sql.DB, matchID string) ([]turnRow, error) {
	rows, err := db.Query(`SELECT turn,turn_owner,player_gold,enemy_gold,units,recorded_at FROM turns WHERE match_id=? ORDER BY turn`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []turnRow
	for rows.Next() {
		var r turnRow
		if err := rows.Scan(&r.Turn, &r.TurnOwner, &r.PlayerGold, &r.EnemyGold, &r.Units, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryUnits(db *sql.DB) ([]unitRow, error) {
	rows, err := db.Query(`SELECT template_id,name,leader,price,health,attack,defense,movement,attack_range FROM units_catalog ORDER BY palette_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []unitRow
	for rows.Next() {
		var (
			r      unitRow
			leader int
		)
		if err := rows.Scan(&r.TemplateID, &r.Name, &leader, &r.Price, &r.Health, &r.Attack, &r.Defense, &r.Movement, &r.Range); err != nil {
			return nil, err
		}
		r.Leader = leader != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
