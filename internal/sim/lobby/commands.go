package lobby

import (
	"go.uber.org/zap"

	"hextactics.gg/internal/protocol"
	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/match"
	"hextactics.gg/internal/sim/pathing"
)

// withTurn runs fn under the lock of playerID's match once the match is in
// progress and playerID holds the turn. fn returns the new state; on error
// the match keeps its previous state.
func (l *Lobby) withTurn(playerID string, fn func(m *Match, s match.State) (match.State, []outbound, error)) error {
	m, err := l.MatchOf(playerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.status != StatusInProgress {
		m.mu.Unlock()
		return ErrMatchNotActive
	}
	if m.state.TurnOwner != playerID {
		m.mu.Unlock()
		return ErrNotYourTurn
	}
	next, out, err := fn(m, m.state)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	if m.status == StatusInProgress {
		out = append(out, l.updatesLocked(m)...)
	}
	m.mu.Unlock()
	l.flush(out)
	return nil
}

func (l *Lobby) updatesLocked(m *Match) []outbound {
	var out []outbound
	for _, pid := range m.participants() {
		out = append(out, outbound{to: pid, msg: protocol.MatchUpdateMsg{
			Type:            protocol.TypeMatchUpdate,
			ProtocolVersion: protocol.Version,
			MatchID:         m.ID,
			View:            l.viewLocked(m, pid),
		}})
	}
	return out
}

// BuyUnit debits the template price from the turn owner and places the new
// unit on the first free tile around their leader. The unit cannot move or
// attack until the owner's next turn.
func (l *Lobby) BuyUnit(playerID, templateID string) (match.Unit, error) {
	var bought match.Unit
	err := l.withTurn(playerID, func(m *Match, s match.State) (match.State, []outbound, error) {
		tpl, err := l.units.Template(templateID)
		if err != nil {
			return s, nil, err
		}
		if tpl.Leader {
			return s, nil, ErrNotForSale
		}
		s, err = l.engine.DecreaseCurrentPlayerGold(s, tpl.Price)
		if err != nil {
			return s, nil, err
		}
		leader, err := s.CurrentLeader()
		if err != nil {
			return s, nil, err
		}
		pos, err := pathing.NearestFreeRingTile(s.Grid(m.Width, m.Height), leader.Position)
		if err != nil {
			return s, nil, err
		}
		s, bought, err = l.engine.PlaceUnit(s, tpl, pos, false)
		if err != nil {
			return s, nil, err
		}
		l.log.Debug("unit bought",
			zap.String("match_id", m.ID),
			zap.String("player_id", playerID),
			zap.String("template_id", tpl.ID),
			zap.String("pos", pos.Key()),
		)
		return s, nil, nil
	})
	return bought, err
}

// MoveUnit walks the turn owner's unit along a shortest free path.
func (l *Lobby) MoveUnit(playerID string, from, to hexgrid.Axial) error {
	return l.withTurn(playerID, func(m *Match, s match.State) (match.State, []outbound, error) {
		u, ok := s.UnitAt(from)
		if !ok {
			return s, nil, match.ErrUnitNotFound
		}
		if u.OwnerID != playerID {
			return s, nil, match.ErrNotYourUnit
		}
		d, err := pathing.ReachableDistance(s.Grid(m.Width, m.Height), from, to)
		if err != nil {
			return s, nil, err
		}
		return wrap(l.engine.MoveUnit(s, from, to, d))
	})
}

func wrap(s match.State, err error) (match.State, []outbound, error) {
	return s, nil, err
}

// AttackUnit resolves one attack. Killing the opposing leader ends the match
// with the attacker's owner as winner.
func (l *Lobby) AttackUnit(playerID string, from, to hexgrid.Axial) (match.AttackResult, error) {
	var res match.AttackResult
	err := l.withTurn(playerID, func(m *Match, s match.State) (match.State, []outbound, error) {
		attacker, ok := s.UnitAt(from)
		if !ok {
			return s, nil, match.ErrUnitNotFound
		}
		defender, ok := s.UnitAt(to)
		if !ok {
			return s, nil, match.ErrUnitNotFound
		}
		if attacker.OwnerID != playerID {
			return s, nil, match.ErrNotYourUnit
		}
		if !match.CanAttackUnit(attacker, defender) {
			return s, nil, match.ErrCannotAttack
		}
		if err := pathing.CheckAttack(s.Grid(m.Width, m.Height), from, to); err != nil {
			return s, nil, err
		}
		next, r, err := l.engine.Strike(s, from, to, l.roller)
		if err != nil {
			return s, nil, err
		}
		res = r

		var out []outbound
		for _, pid := range m.participants() {
			out = append(out, outbound{to: pid, msg: protocol.MatchDamageMsg{
				Type:            protocol.TypeMatchDamage,
				ProtocolVersion: protocol.Version,
				MatchID:         m.ID,
				Position:        coord(to),
				Damage:          r.Damage,
				Dead:            r.Dead,
			}})
		}
		if r.Dead && r.Defender.Leader {
			m.state = next
			out = append(out, l.finishLocked(m, next.TurnOwner, next.Opponent().ID, "leader_defeated")...)
		}
		return next, out, nil
	})
	return res, err
}

// FinishTurn passes the turn, pays the incoming player's income, readies
// their units and records the turn.
func (l *Lobby) FinishTurn(playerID string) error {
	return l.withTurn(playerID, func(m *Match, s match.State) (match.State, []outbound, error) {
		s = l.engine.FinishTurn(s)
		m.turn++
		every := l.tune.History.SnapshotEveryTurns
		if every <= 1 || m.turn%every == 0 {
			m.history = append(m.history, s)
		}
		if l.recorder != nil {
			l.recorder.RecordTurn(TurnRecord{
				MatchID:   m.ID,
				Turn:      m.turn,
				TurnOwner: s.TurnOwner,
				State:     s,
				At:        l.now(),
			})
		}
		return s, nil, nil
	})
}

// Leave takes playerID out of their match. A waiting match is cancelled; an
// active one is cancelled and the remaining player is declared the winner.
func (l *Lobby) Leave(playerID string) error {
	m, err := l.MatchOf(playerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	var out []outbound
	switch m.status {
	case StatusWaiting, StatusCreated:
		m.status = StatusCancelled
		m.endedAt = l.now()
		l.retireLocked(m)
		l.log.Info("match cancelled", zap.String("match_id", m.ID), zap.String("player_id", playerID))
	case StatusFull, StatusInProgress:
		out = l.finishLocked(m, m.opponentOf(playerID), playerID, "opponent_left")
	default:
		l.retireLocked(m)
	}
	m.mu.Unlock()
	// The leaver's connection is already gone.
	for _, o := range out {
		if o.to != playerID {
			l.flush([]outbound{o})
		}
	}
	return nil
}

// finishLocked closes m, records the result and returns the END_GAME
// notifications. Caller holds m.mu.
func (l *Lobby) finishLocked(m *Match, winner, loser, reason string) []outbound {
	m.status = StatusFinished
	m.winner = winner
	m.loser = loser
	m.endedAt = l.now()
	if reason == "opponent_left" {
		m.status = StatusCancelled
	}
	if !m.startedAt.IsZero() {
		m.history = append(m.history, m.state)
	}
	l.retireLocked(m)

	l.log.Info("match ended",
		zap.String("match_id", m.ID),
		zap.String("winner_id", winner),
		zap.String("loser_id", loser),
		zap.String("reason", reason),
		zap.Int("turns", m.turn),
	)
	if l.recorder != nil {
		l.recorder.RecordResult(l.resultLocked(m, reason))
	}
	var out []outbound
	for _, pid := range m.participants() {
		out = append(out, outbound{to: pid, msg: protocol.EndGameMsg{
			Type:            protocol.TypeEndGame,
			ProtocolVersion: protocol.Version,
			MatchID:         m.ID,
			WinnerID:        winner,
			LoserID:         loser,
			Reason:          reason,
		}})
	}
	return out
}
