// Package lobby pairs players into matches and serializes every command
// against a match's state.
package lobby

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hextactics.gg/internal/sim/catalogs"
	"hextactics.gg/internal/sim/match"
	"hextactics.gg/internal/sim/simerr"
	"hextactics.gg/internal/sim/tuning"
)

var (
	ErrMatchNotFound  = simerr.NotFound("MATCH_NOT_FOUND", "match not found")
	ErrMatchNotActive = simerr.Invalid("MATCH_NOT_ACTIVE", "match is not in progress")
	ErrNotYourTurn    = simerr.Invalid("NOT_YOUR_TURN", "not your turn")
	ErrAlreadyInMatch = simerr.Invalid("ALREADY_IN_MATCH", "player is already in a match")
	ErrNotForSale     = simerr.Invalid("NOT_FOR_SALE", "leaders cannot be bought")
	ErrBadPlayer      = simerr.Invalid("BAD_PLAYER", "player id is required")
	ErrNotLeader      = simerr.Invalid("NOT_A_LEADER", "chosen unit is not a leader")
)

type Config struct {
	Tuning   tuning.Tuning
	Units    *catalogs.UnitCatalog
	Logger   *zap.Logger
	Notifier Notifier
	Recorder Recorder
	// Roller feeds damage rolls. Nil seeds a math/rand source from
	// Tuning.Seed, or the clock when that is 0.
	Roller match.Roller
	Now    func() time.Time
}

// Lobby owns the open and active match tables. mu guards only the tables;
// each Match carries its own lock. Lock order is always match then lobby.
type Lobby struct {
	tune     tuning.Tuning
	units    *catalogs.UnitCatalog
	engine   *match.Engine
	log      *zap.Logger
	notifier Notifier
	recorder Recorder
	roller   match.Roller
	now      func() time.Time

	mu       sync.Mutex
	open     map[string]*Match
	openSeq  []string
	active   map[string]*Match
	byPlayer map[string]*Match
}

func New(cfg Config) *Lobby {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	roller := cfg.Roller
	if roller == nil {
		seed := cfg.Tuning.Seed
		if seed == 0 {
			seed = now().UnixNano()
		}
		roller = &lockedRoller{r: rand.New(rand.NewSource(seed))}
	}
	return &Lobby{
		tune:     cfg.Tuning,
		units:    cfg.Units,
		engine:   match.NewEngine(cfg.Tuning.Rules()),
		log:      log,
		notifier: cfg.Notifier,
		recorder: cfg.Recorder,
		roller:   roller,
		now:      now,
		open:     map[string]*Match{},
		active:   map[string]*Match{},
		byPlayer: map[string]*Match{},
	}
}

// lockedRoller makes a *rand.Rand safe to share across matches.
type lockedRoller struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRoller) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Join seats p in the oldest open match, or opens a new one. The second
// player to join starts the match; started reports whether that happened.
func (l *Lobby) Join(p Player) (*Match, bool, error) {
	if p.ID == "" {
		return nil, false, ErrBadPlayer
	}
	leader, err := l.leaderFor(p.LeaderID)
	if err != nil {
		return nil, false, err
	}
	p.LeaderID = leader.ID

	l.mu.Lock()
	if _, busy := l.byPlayer[p.ID]; busy {
		l.mu.Unlock()
		return nil, false, ErrAlreadyInMatch
	}
	var m *Match
	if len(l.openSeq) > 0 {
		id := l.openSeq[0]
		l.openSeq = l.openSeq[1:]
		m = l.open[id]
		delete(l.open, id)
	}
	if m == nil {
		m = &Match{
			ID:        uuid.NewString(),
			Width:     l.tune.Grid.Width,
			Height:    l.tune.Grid.Height,
			CreatedAt: l.now(),
			status:    StatusWaiting,
			player:    p,
		}
		l.open[m.ID] = m
		l.openSeq = append(l.openSeq, m.ID)
		l.byPlayer[p.ID] = m
		l.mu.Unlock()
		l.log.Info("match opened", zap.String("match_id", m.ID), zap.String("player_id", p.ID))
		return m, false, nil
	}
	l.active[m.ID] = m
	l.byPlayer[p.ID] = m
	l.mu.Unlock()

	m.mu.Lock()
	if m.status != StatusWaiting {
		// The first player left between our table lookup and now.
		m.mu.Unlock()
		l.mu.Lock()
		delete(l.active, m.ID)
		delete(l.byPlayer, p.ID)
		l.mu.Unlock()
		return l.Join(p)
	}
	m.enemy = p
	m.status = StatusFull
	out, err := l.startLocked(m)
	if err != nil {
		m.status = StatusCancelled
		l.retireLocked(m)
		m.mu.Unlock()
		l.log.Error("match start failed", zap.String("match_id", m.ID), zap.Error(err))
		return m, false, err
	}
	m.mu.Unlock()
	l.flush(out)
	return m, true, nil
}

func (l *Lobby) leaderFor(id string) (match.Template, error) {
	if l.units == nil {
		return match.Template{}, catalogs.ErrTemplateNotFound
	}
	if id == "" {
		leaders := l.units.Leaders()
		if len(leaders) == 0 {
			return match.Template{}, catalogs.ErrTemplateNotFound
		}
		return leaders[0], nil
	}
	tpl, err := l.units.Template(id)
	if err != nil {
		return match.Template{}, err
	}
	if !tpl.Leader {
		return match.Template{}, ErrNotLeader
	}
	return tpl, nil
}

// startLocked seeds the state and places both leaders. Each leader is placed
// while its owner holds the turn, then the turn returns to the first player.
func (l *Lobby) startLocked(m *Match) ([]outbound, error) {
	e := l.engine
	s := match.NewState(m.player.ID, m.enemy.ID, l.tune.StartingGold)

	ptpl, err := l.units.Template(m.player.LeaderID)
	if err != nil {
		return nil, err
	}
	etpl, err := l.units.Template(m.enemy.LeaderID)
	if err != nil {
		return nil, err
	}
	if s, _, err = e.PlaceUnit(s, ptpl, l.tune.PlayerSpawn, true); err != nil {
		return nil, err
	}
	s = e.ToggleCurrentPlayer(s)
	if s, _, err = e.PlaceUnit(s, etpl, l.tune.EnemySpawn, true); err != nil {
		return nil, err
	}
	s = e.ToggleCurrentPlayer(s)

	m.state = s
	m.history = []match.State{s}
	m.status = StatusInProgress
	m.startedAt = l.now()

	l.log.Info("match started",
		zap.String("match_id", m.ID),
		zap.String("player_id", m.player.ID),
		zap.String("enemy_id", m.enemy.ID),
	)
	var out []outbound
	for _, pid := range m.participants() {
		out = append(out, outbound{to: pid, msg: l.startMsg(m, pid)})
	}
	return out, nil
}

// MatchOf returns the match playerID is seated in.
func (l *Lobby) MatchOf(playerID string) (*Match, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.byPlayer[playerID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// Get looks a match up by id among open and active matches.
func (l *Lobby) Get(matchID string) (*Match, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.active[matchID]; ok {
		return m, nil
	}
	if m, ok := l.open[matchID]; ok {
		return m, nil
	}
	return nil, ErrMatchNotFound
}

// Matches returns info for every open and active match, oldest first.
func (l *Lobby) Matches() []Info {
	l.mu.Lock()
	ms := make([]*Match, 0, len(l.open)+len(l.active))
	for _, m := range l.open {
		ms = append(ms, m)
	}
	for _, m := range l.active {
		ms = append(ms, m)
	}
	l.mu.Unlock()

	out := make([]Info, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts reports the sizes of the open and active tables.
func (l *Lobby) Counts() (open, active int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open), len(l.active)
}

// retireLocked drops m from the tables. Caller holds m.mu.
func (l *Lobby) retireLocked(m *Match) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, m.ID)
	delete(l.active, m.ID)
	for i, id := range l.openSeq {
		if id == m.ID {
			l.openSeq = append(l.openSeq[:i], l.openSeq[i+1:]...)
			break
		}
	}
	for _, pid := range m.participants() {
		if l.byPlayer[pid] == m {
			delete(l.byPlayer, pid)
		}
	}
}

func (l *Lobby) resultLocked(m *Match, reason string) ResultRecord {
	return ResultRecord{
		MatchID:   m.ID,
		PlayerID:  m.player.ID,
		EnemyID:   m.enemy.ID,
		WinnerID:  m.winner,
		LoserID:   m.loser,
		Status:    m.status,
		Reason:    reason,
		Turns:     m.turn,
		Width:     m.Width,
		Height:    m.Height,
		StartedAt: m.startedAt,
		EndedAt:   m.endedAt,
		History:   append([]match.State(nil), m.history...),
	}
}
