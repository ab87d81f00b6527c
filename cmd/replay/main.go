package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "hextactics.gg/internal/persistence/log"
	"hextactics.gg/internal/persistence/snapshot"
	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/lobby"
	"hextactics.gg/internal/sim/match"
)

func main() {
	var (
		archivePath = flag.String("archive", "", "path to history.snap.zst")
		turnsDir    = flag.String("turns", "", "turns dir containing <match_id>.jsonl.zst (optional)")
	)
	flag.Parse()

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "missing -archive")
		os.Exit(2)
	}

	a, err := snapshot.ReadArchive(*archivePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read archive:", err)
		os.Exit(1)
	}
	fmt.Printf("archive v%d match=%s %s vs %s status=%s reason=%s winner=%s turns=%d states=%d grid=%dx%d\n",
		a.Header.Version, a.Header.MatchID, a.PlayerID, a.EnemyID, a.Status, a.Reason, a.WinnerID,
		a.Header.Turns, len(a.History), a.Width, a.Height)

	rep, err := verifyHistory(a)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
	fmt.Printf("history ok: states=%d max_units=%d final_gold=%d/%d\n", rep.States, rep.MaxUnits, rep.FinalPlayerGold, rep.FinalEnemyGold)

	if *turnsDir == "" {
		return
	}
	n, err := checkTurnLog(persistlog.TurnFile(*turnsDir, a.Header.MatchID), a)
	if err != nil {
		fmt.Fprintln(os.Stderr, "turns:", err)
		os.Exit(1)
	}
	fmt.Printf("turn log ok: checked=%d turns\n", n)
}

type report struct {
	States          int
	MaxUnits        int
	FinalPlayerGold int
	FinalEnemyGold  int
}

// verifyHistory re-checks every recorded state and the seating of the match.
func verifyHistory(a snapshot.MatchArchiveV1) (report, error) {
	var rep report
	if len(a.History) == 0 {
		return rep, fmt.Errorf("empty history")
	}
	for i, s := range a.History {
		if s.Player.ID != a.PlayerID || s.Enemy.ID != a.EnemyID {
			return rep, fmt.Errorf("state %d: seats %s/%s do not match %s/%s", i, s.Player.ID, s.Enemy.ID, a.PlayerID, a.EnemyID)
		}
		if s.TurnOwner != a.PlayerID && s.TurnOwner != a.EnemyID {
			return rep, fmt.Errorf("state %d: turn owner %q is not seated", i, s.TurnOwner)
		}
		if err := checkState(s, a.Width, a.Height); err != nil {
			return rep, fmt.Errorf("state %d: %w", i, err)
		}
		rep.MaxUnits = max(rep.MaxUnits, len(s.Units))
	}
	last := a.History[len(a.History)-1]
	rep.States = len(a.History)
	rep.FinalPlayerGold = last.Player.Gold
	rep.FinalEnemyGold = last.Enemy.Gold
	return rep, nil
}

func checkState(s match.State, width, height int) error {
	if err := s.CheckConsistency(); err != nil {
		return err
	}
	g := hexgrid.NewGrid(width, height)
	for k, u := range s.Units {
		if !g.Contains(u.Position) {
			return fmt.Errorf("unit %s at %s is off the grid", u.ID, k)
		}
	}
	return nil
}

// checkTurnLog re-checks every state in a match's turn log and returns how
// many turns it holds.
func checkTurnLog(path string, a snapshot.MatchArchiveV1) (int, error) {
	n := 0
	err := persistlog.ReadLines(path, func(line []byte) error {
		var rec lobby.TurnRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if rec.MatchID != a.Header.MatchID {
			return fmt.Errorf("turn %d belongs to match %q", rec.Turn, rec.MatchID)
		}
		if err := checkState(rec.State, a.Width, a.Height); err != nil {
			return fmt.Errorf("turn %d: %w", rec.Turn, err)
		}
		n++
		return nil
	})
	return n, err
}
