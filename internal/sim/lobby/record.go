package lobby

import (
	"time"

	"hextactics.gg/internal/sim/match"
)

// Notifier delivers an outbound protocol message to one player. It must not
// block; the coordinator calls it after releasing match locks.
type Notifier interface {
	Notify(playerID string, msg any)
}

type TurnRecord struct {
	MatchID   string      `json:"match_id"`
	Turn      int         `json:"turn"`
	TurnOwner string      `json:"turn_owner"`
	State     match.State `json:"state"`
	At        time.Time   `json:"at"`
}

type ResultRecord struct {
	MatchID   string        `json:"match_id"`
	PlayerID  string        `json:"player_id"`
	EnemyID   string        `json:"enemy_id"`
	WinnerID  string        `json:"winner_id,omitempty"`
	LoserID   string        `json:"loser_id,omitempty"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason"`
	Turns     int           `json:"turns"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	History   []match.State `json:"-"`
}

// Recorder persists match history. Implementations should not block the
// caller for long; writes happen under the match lock.
type Recorder interface {
	RecordTurn(TurnRecord)
	RecordResult(ResultRecord)
}

type outbound struct {
	to  string
	msg any
}

func (l *Lobby) flush(out []outbound) {
	if l.notifier == nil {
		return
	}
	for _, o := range out {
		l.notifier.Notify(o.to, o.msg)
	}
}
