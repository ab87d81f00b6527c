package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"hextactics.gg/internal/persistence/snapshot"
	"hextactics.gg/internal/sim/lobby"
)

type MatchArchiveMeta struct {
	MatchID   string `json:"match_id"`
	WinnerID  string `json:"winner_id,omitempty"`
	LoserID   string `json:"loser_id,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Turns     int    `json:"turns"`
	States    int    `json:"states"`
	Seed      int64  `json:"seed"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// FromResult builds the archive body for an ended match.
func FromResult(rec lobby.ResultRecord, seed int64) snapshot.MatchArchiveV1 {
	return snapshot.MatchArchiveV1{
		Header:    snapshot.Header{MatchID: rec.MatchID, Turns: rec.Turns},
		PlayerID:  rec.PlayerID,
		EnemyID:   rec.EnemyID,
		WinnerID:  rec.WinnerID,
		LoserID:   rec.LoserID,
		Status:    string(rec.Status),
		Reason:    rec.Reason,
		Width:     rec.Width,
		Height:    rec.Height,
		Seed:      seed,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		History:   rec.History,
	}
}

// ArchiveMatch writes `dataDir/archives/<match_id>/history.snap.zst` and a
// meta.json next to it. Matches that never started have no history and are
// skipped (archived=false).
func ArchiveMatch(dataDir string, rec lobby.ResultRecord, seed int64) (path string, archived bool, err error) {
	if rec.MatchID == "" || len(rec.History) == 0 {
		return "", false, nil
	}
	dir := filepath.Join(dataDir, "archives", rec.MatchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	path = filepath.Join(dir, "history.snap.zst")
	if err := snapshot.WriteArchive(path, FromResult(rec, seed)); err != nil {
		return "", false, err
	}

	meta := MatchArchiveMeta{
		MatchID:   rec.MatchID,
		WinnerID:  rec.WinnerID,
		LoserID:   rec.LoserID,
		Status:    string(rec.Status),
		Reason:    rec.Reason,
		Turns:     rec.Turns,
		States:    len(rec.History),
		Seed:      seed,
		Snapshot:  filepath.Base(path),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return path, true, nil
}

// ReadMeta loads the meta.json written by ArchiveMatch.
func ReadMeta(dataDir, matchID string) (MatchArchiveMeta, error) {
	var meta MatchArchiveMeta
	b, err := os.ReadFile(filepath.Join(dataDir, "archives", matchID, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}
