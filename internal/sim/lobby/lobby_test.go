package lobby

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"hextactics.gg/internal/protocol"
	"hextactics.gg/internal/sim/catalogs"
	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/match"
	"hextactics.gg/internal/sim/pathing"
	"hextactics.gg/internal/sim/simerr"
	"hextactics.gg/internal/sim/tuning"
)

type maxRoller struct{}

func (maxRoller) Intn(n int) int { return n - 1 }

type sink struct {
	mu   sync.Mutex
	msgs map[string][]any
}

func (s *sink) Notify(playerID string, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgs == nil {
		s.msgs = map[string][]any{}
	}
	s.msgs[playerID] = append(s.msgs[playerID], msg)
}

func (s *sink) last(playerID string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.msgs[playerID]
	if len(m) == 0 {
		return nil
	}
	return m[len(m)-1]
}

func (s *sink) count(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs[playerID])
}

type memRecorder struct {
	mu      sync.Mutex
	turns   []TurnRecord
	results []ResultRecord
}

func (r *memRecorder) RecordTurn(t TurnRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
}

func (r *memRecorder) RecordResult(res ResultRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

type fixture struct {
	lobby *Lobby
	sink  *sink
	rec   *memRecorder
	match *Match
}

func newFixture(t *testing.T, tune tuning.Tuning, leaderP1, leaderP2 string) fixture {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	f := fixture{sink: &sink{}, rec: &memRecorder{}}
	f.lobby = New(Config{
		Tuning:   tune,
		Units:    &cats.Units,
		Notifier: f.sink,
		Recorder: f.rec,
		Roller:   maxRoller{},
	})
	m, started, err := f.lobby.Join(Player{ID: "p1", Name: "one", LeaderID: leaderP1})
	if err != nil || started {
		t.Fatalf("first join: started=%v err=%v", started, err)
	}
	m2, started, err := f.lobby.Join(Player{ID: "p2", Name: "two", LeaderID: leaderP2})
	if err != nil || !started {
		t.Fatalf("second join: started=%v err=%v", started, err)
	}
	if m2 != m {
		t.Fatalf("second player seated in a different match")
	}
	f.match = m
	return f
}

func TestJoin_PairsAndStarts(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "unit-claude", "unit-rena")
	if open, active := f.lobby.Counts(); open != 0 || active != 1 {
		t.Fatalf("counts open=%d active=%d", open, active)
	}
	if f.match.Status() != StatusInProgress {
		t.Fatalf("status=%s", f.match.Status())
	}
	s := f.match.State()
	if s.TurnOwner != "p1" || s.Player.Gold != 100 || s.Enemy.Gold != 100 {
		t.Fatalf("state owner=%s gold=%d/%d", s.TurnOwner, s.Player.Gold, s.Enemy.Gold)
	}
	pl, ok := s.UnitAt(hexgrid.Axial{Q: -1, R: 5})
	if !ok || pl.OwnerID != "p1" || pl.TemplateID != "unit-claude" || pl.RemainingMovement != 4 || pl.CanAttack {
		t.Fatalf("player leader=%+v ok=%v", pl, ok)
	}
	el, ok := s.UnitAt(hexgrid.Axial{Q: 16, R: 5})
	if !ok || el.OwnerID != "p2" || el.TemplateID != "unit-rena" {
		t.Fatalf("enemy leader=%+v ok=%v", el, ok)
	}
	for _, pid := range []string{"p1", "p2"} {
		msg, ok := f.sink.last(pid).(protocol.MatchStartMsg)
		if !ok {
			t.Fatalf("%s: last message %T", pid, f.sink.last(pid))
		}
		if msg.View.ActiveTurn != (pid == "p1") || msg.View.IsPlayer != (pid == "p1") {
			t.Fatalf("%s: view flags %+v", pid, msg.View)
		}
		if len(msg.View.Units) != 2 || len(msg.View.Store) != 3 || len(msg.View.Map.Tiles) != 240 {
			t.Fatalf("%s: view sizes units=%d store=%d tiles=%d", pid, len(msg.View.Units), len(msg.View.Store), len(msg.View.Map.Tiles))
		}
	}
	if got := len(f.match.History()); got != 1 {
		t.Fatalf("history=%d want 1", got)
	}
}

func TestJoin_Rejects(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "", "")
	if _, _, err := f.lobby.Join(Player{ID: "p1"}); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("rejoin: err=%v", err)
	}
	if _, _, err := f.lobby.Join(Player{ID: "p3", LeaderID: "unit-soldier"}); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("non-leader: err=%v", err)
	}
	if _, _, err := f.lobby.Join(Player{ID: "p3", LeaderID: "unit-nobody"}); simerr.KindOf(err) != simerr.KindNotFound {
		t.Fatalf("unknown leader: err=%v", err)
	}
	if _, _, err := f.lobby.Join(Player{}); !errors.Is(err, ErrBadPlayer) {
		t.Fatalf("empty id: err=%v", err)
	}
}

func TestBuyUnit(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "unit-claude", "unit-rena")

	u, err := f.lobby.BuyUnit("p1", "unit-soldier")
	if err != nil {
		t.Fatalf("BuyUnit: %v", err)
	}
	// First tile of the ring around (-1,5).
	if u.Position != (hexgrid.Axial{Q: -2, R: 6}) {
		t.Fatalf("placed at %v", u.Position)
	}
	if u.RemainingMovement != 0 || u.CanAttack {
		t.Fatalf("bought unit should be idle: %+v", u)
	}
	if s := f.match.State(); s.Player.Gold != 90 {
		t.Fatalf("gold=%d want 90", s.Player.Gold)
	}
	if _, ok := f.sink.last("p2").(protocol.MatchUpdateMsg); !ok {
		t.Fatalf("opponent not updated: %T", f.sink.last("p2"))
	}
	if msg := f.sink.last("p2").(protocol.MatchUpdateMsg); msg.View.Gold != 100 {
		t.Fatalf("p2 should see only its own gold, got %d", msg.View.Gold)
	}

	if _, err := f.lobby.BuyUnit("p2", "unit-soldier"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out of turn: err=%v", err)
	}
	if _, err := f.lobby.BuyUnit("p1", "unit-rena"); !errors.Is(err, ErrNotForSale) {
		t.Fatalf("leader: err=%v", err)
	}
	if _, err := f.lobby.BuyUnit("p1", "unit-dragon"); simerr.KindOf(err) != simerr.KindNotFound {
		t.Fatalf("unknown: err=%v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := f.lobby.BuyUnit("p1", "unit-cavalry"); err != nil {
			t.Fatalf("cavalry %d: %v", i, err)
		}
	}
	if _, err := f.lobby.BuyUnit("p1", "unit-cavalry"); !errors.Is(err, match.ErrNotEnoughGold) {
		t.Fatalf("broke: err=%v", err)
	}
	if s := f.match.State(); s.Player.Gold != 10 || len(s.Units) != 7 {
		t.Fatalf("after spree gold=%d units=%d", s.Player.Gold, len(s.Units))
	}
}

func TestBuyUnit_ConcurrentBuysAreSerialized(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "unit-claude", "unit-rena")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.lobby.BuyUnit("p1", "unit-soldier"); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	// Six ring tiles around the leader.
	if ok.Load() != 6 {
		t.Fatalf("successful buys=%d want 6", ok.Load())
	}
	s := f.match.State()
	if s.Player.Gold != 40 {
		t.Fatalf("gold=%d want 40", s.Player.Gold)
	}
	if err := s.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
	if _, err := f.lobby.BuyUnit("p1", "unit-soldier"); !errors.Is(err, pathing.ErrNoFreePosition) {
		t.Fatalf("full ring: err=%v", err)
	}
}

func TestMoveUnit(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "unit-claude", "unit-rena")
	from := hexgrid.Axial{Q: -1, R: 5}
	to := hexgrid.Axial{Q: 2, R: 5}

	if err := f.lobby.MoveUnit("p1", from, to); err != nil {
		t.Fatalf("MoveUnit: %v", err)
	}
	u, ok := f.match.State().UnitAt(to)
	if !ok || u.RemainingMovement != 1 {
		t.Fatalf("moved leader=%+v ok=%v", u, ok)
	}
	if err := f.lobby.MoveUnit("p1", to, hexgrid.Axial{Q: 5, R: 5}); !errors.Is(err, pathing.ErrInsufficientMovement) {
		t.Fatalf("overreach: err=%v", err)
	}
	if err := f.lobby.MoveUnit("p1", hexgrid.Axial{Q: 16, R: 5}, hexgrid.Axial{Q: 15, R: 5}); !errors.Is(err, match.ErrNotYourUnit) {
		t.Fatalf("enemy unit: err=%v", err)
	}
	if err := f.lobby.MoveUnit("p2", hexgrid.Axial{Q: 16, R: 5}, hexgrid.Axial{Q: 15, R: 5}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out of turn: err=%v", err)
	}
}

func TestFinishTurn_RecordsAndHandsOver(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "unit-claude", "unit-rena")
	if err := f.lobby.FinishTurn("p1"); err != nil {
		t.Fatalf("FinishTurn: %v", err)
	}
	s := f.match.State()
	if s.TurnOwner != "p2" || s.Enemy.Gold != 110 || s.Player.Gold != 100 {
		t.Fatalf("owner=%s gold=%d/%d", s.TurnOwner, s.Player.Gold, s.Enemy.Gold)
	}
	l, _ := s.UnitAt(hexgrid.Axial{Q: 16, R: 5})
	if !l.CanAttack || l.RemainingMovement != l.Stats.Movement {
		t.Fatalf("p2 leader not readied: %+v", l)
	}
	if len(f.rec.turns) != 1 || f.rec.turns[0].Turn != 1 || f.rec.turns[0].TurnOwner != "p2" {
		t.Fatalf("turn records=%+v", f.rec.turns)
	}
	if got := len(f.match.History()); got != 2 {
		t.Fatalf("history=%d want 2", got)
	}
	if err := f.lobby.FinishTurn("p1"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("double finish: err=%v", err)
	}
}

func TestAttack_LeaderKillEndsMatch(t *testing.T) {
	tune := tuning.Defaults()
	tune.PlayerSpawn = hexgrid.Axial{Q: 0, R: 5}
	tune.EnemySpawn = hexgrid.Axial{Q: 1, R: 5}
	f := newFixture(t, tune, "unit-ashton", "unit-celine")
	from, to := tune.PlayerSpawn, tune.EnemySpawn

	// Freshly placed leaders cannot attack yet.
	if _, err := f.lobby.AttackUnit("p1", from, to); !errors.Is(err, match.ErrCannotAttack) {
		t.Fatalf("first turn: err=%v", err)
	}

	nextRound := func() {
		t.Helper()
		if err := f.lobby.FinishTurn("p1"); err != nil {
			t.Fatalf("p1 finish: %v", err)
		}
		if err := f.lobby.FinishTurn("p2"); err != nil {
			t.Fatalf("p2 finish: %v", err)
		}
	}

	// 8 + 4 - 3 per hit against 20 health.
	wantHealth := []int{11, 2}
	for _, hp := range wantHealth {
		nextRound()
		res, err := f.lobby.AttackUnit("p1", from, to)
		if err != nil {
			t.Fatalf("attack: %v", err)
		}
		if res.Damage != 9 || res.Dead {
			t.Fatalf("result=%+v", res)
		}
		d, _ := f.match.State().UnitAt(to)
		if d.Stats.Health != hp {
			t.Fatalf("celine health=%d want %d", d.Stats.Health, hp)
		}
		if _, err := f.lobby.AttackUnit("p1", from, to); !errors.Is(err, match.ErrCannotAttack) {
			t.Fatalf("second attack same turn: err=%v", err)
		}
		if dmg, ok := f.sink.last("p2").(protocol.MatchUpdateMsg); !ok {
			t.Fatalf("expected update after damage, got %T", dmg)
		}
	}

	nextRound()
	res, err := f.lobby.AttackUnit("p1", from, to)
	if err != nil {
		t.Fatalf("killing blow: %v", err)
	}
	if !res.Dead || !res.Defender.Leader {
		t.Fatalf("result=%+v", res)
	}
	if f.match.Status() != StatusFinished {
		t.Fatalf("status=%s", f.match.Status())
	}
	if open, active := f.lobby.Counts(); open != 0 || active != 0 {
		t.Fatalf("counts open=%d active=%d", open, active)
	}
	for _, pid := range []string{"p1", "p2"} {
		end, ok := f.sink.last(pid).(protocol.EndGameMsg)
		if !ok || end.WinnerID != "p1" || end.LoserID != "p2" || end.Reason != "leader_defeated" {
			t.Fatalf("%s: end=%+v ok=%v", pid, end, ok)
		}
	}
	if len(f.rec.results) != 1 || f.rec.results[0].Status != StatusFinished || f.rec.results[0].WinnerID != "p1" {
		t.Fatalf("results=%+v", f.rec.results)
	}
	if _, err := f.lobby.MatchOf("p1"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("p1 still seated: err=%v", err)
	}
}

func TestAttack_OwnUnitRejected(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "unit-claude", "unit-rena")
	if _, err := f.lobby.BuyUnit("p1", "unit-soldier"); err != nil {
		t.Fatalf("BuyUnit: %v", err)
	}
	if err := f.lobby.FinishTurn("p1"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := f.lobby.FinishTurn("p2"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	before := f.match.State()
	_, err := f.lobby.AttackUnit("p1", hexgrid.Axial{Q: -1, R: 5}, hexgrid.Axial{Q: -2, R: 6})
	if !errors.Is(err, match.ErrCannotAttack) {
		t.Fatalf("friendly fire: err=%v", err)
	}
	after := f.match.State()
	if len(after.Units) != len(before.Units) || after.Player.Gold != before.Player.Gold {
		t.Fatalf("state changed on rejection")
	}
}

func TestLeave_ActiveMatchForfeits(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "", "")
	before := f.sink.count("p1")
	if err := f.lobby.Leave("p1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	end, ok := f.sink.last("p2").(protocol.EndGameMsg)
	if !ok || end.WinnerID != "p2" || end.LoserID != "p1" || end.Reason != "opponent_left" {
		t.Fatalf("p2 end=%+v ok=%v", end, ok)
	}
	if f.sink.count("p1") != before {
		t.Fatalf("leaver should not be notified")
	}
	if f.match.Status() != StatusCancelled {
		t.Fatalf("status=%s", f.match.Status())
	}
	if _, err := f.lobby.MatchOf("p2"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("p2 still seated: err=%v", err)
	}
	if len(f.rec.results) != 1 || f.rec.results[0].Reason != "opponent_left" {
		t.Fatalf("results=%+v", f.rec.results)
	}
}

func TestLeave_WaitingMatchCancels(t *testing.T) {
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	l := New(Config{Tuning: tuning.Defaults(), Units: &cats.Units})
	m, _, err := l.Join(Player{ID: "solo"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := l.Leave("solo"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if m.Status() != StatusCancelled {
		t.Fatalf("status=%s", m.Status())
	}
	if open, active := l.Counts(); open != 0 || active != 0 {
		t.Fatalf("counts open=%d active=%d", open, active)
	}
	m2, started, err := l.Join(Player{ID: "next"})
	if err != nil || started || m2 == m {
		t.Fatalf("fresh join reused a cancelled match")
	}
	if err := l.Leave("ghost"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("ghost leave: err=%v", err)
	}
}

func TestView_HidesOpponentGold(t *testing.T) {
	f := newFixture(t, tuning.Defaults(), "", "")
	if _, err := f.lobby.BuyUnit("p1", "unit-archer"); err != nil {
		t.Fatalf("BuyUnit: %v", err)
	}
	v1, err := f.lobby.View(f.match.ID, "p1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	v2, _ := f.lobby.View(f.match.ID, "p2")
	spectator, _ := f.lobby.View(f.match.ID, "someone")
	if v1.Gold != 85 || v2.Gold != 100 || spectator.Gold != 0 {
		t.Fatalf("gold p1=%d p2=%d spectator=%d", v1.Gold, v2.Gold, spectator.Gold)
	}
	mine := 0
	for _, u := range v2.Units {
		if u.Mine {
			mine++
		}
	}
	if mine != 1 {
		t.Fatalf("p2 owns %d units in view, want 1", mine)
	}
	if _, err := f.lobby.View("missing", "p1"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("missing: err=%v", err)
	}
}
