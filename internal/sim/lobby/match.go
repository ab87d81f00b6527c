package lobby

import (
	"sync"
	"time"

	"hextactics.gg/internal/sim/match"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusWaiting    Status = "waiting"
	StatusFull       Status = "full"
	StatusInProgress Status = "in_progress"
	StatusCancelled  Status = "cancelled"
	StatusFinished   Status = "finished"
)

// Player is a participant as seen by the coordinator.
type Player struct {
	ID       string
	Name     string
	LeaderID string
}

// Match is one game between two players. All of its mutable fields are
// guarded by mu; commands on the same match run one at a time.
type Match struct {
	ID        string
	Width     int
	Height    int
	CreatedAt time.Time

	mu        sync.Mutex
	player    Player
	enemy     Player
	status    Status
	state     match.State
	history   []match.State
	turn      int
	winner    string
	loser     string
	startedAt time.Time
	endedAt   time.Time
}

// Info is a point-in-time copy of a match for admin and metrics use.
type Info struct {
	ID        string    `json:"match_id"`
	Status    Status    `json:"status"`
	PlayerID  string    `json:"player_id"`
	EnemyID   string    `json:"enemy_id,omitempty"`
	TurnOwner string    `json:"turn_owner,omitempty"`
	Turn      int       `json:"turn"`
	Units     int       `json:"units"`
	Winner    string    `json:"winner_id,omitempty"`
	Loser     string    `json:"loser_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

func (m *Match) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

func (m *Match) infoLocked() Info {
	return Info{
		ID:        m.ID,
		Status:    m.status,
		PlayerID:  m.player.ID,
		EnemyID:   m.enemy.ID,
		TurnOwner: m.state.TurnOwner,
		Turn:      m.turn,
		Units:     len(m.state.Units),
		Winner:    m.winner,
		Loser:     m.loser,
		CreatedAt: m.CreatedAt,
		StartedAt: m.startedAt,
		EndedAt:   m.endedAt,
	}
}

// State returns the current match state. The returned value shares nothing
// the match will later mutate.
func (m *Match) State() match.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// History returns the state snapshots taken at match start and after every
// recorded turn.
func (m *Match) History() []match.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]match.State, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Match) opponentOf(playerID string) string {
	if playerID == m.player.ID {
		return m.enemy.ID
	}
	return m.player.ID
}

func (m *Match) participants() []string {
	out := []string{m.player.ID}
	if m.enemy.ID != "" {
		out = append(out, m.enemy.ID)
	}
	return out
}
