package match

// ToggleCurrentPlayer hands the turn to the other participant.
func (e *Engine) ToggleCurrentPlayer(s State) State {
	out := s.Clone()
	if s.TurnOwner == s.Player.ID {
		out.TurnOwner = s.Enemy.ID
	} else {
		out.TurnOwner = s.Player.ID
	}
	return out
}

// IncreaseCurrentPlayerGold credits the turn owner. A non-positive amount
// credits the per-turn income.
func (e *Engine) IncreaseCurrentPlayerGold(s State, amount int) State {
	if amount <= 0 {
		amount = e.Rules.GoldPerTurn
	}
	out := s.Clone()
	eco := out.currentEconomy()
	eco.Gold += amount
	return out
}

func (e *Engine) DecreaseCurrentPlayerGold(s State, amount int) (State, error) {
	if amount < 0 {
		return s, ErrInvalidAmount
	}
	if s.CurrentEconomy().Gold-amount < 0 {
		return s, ErrNotEnoughGold
	}
	out := s.Clone()
	eco := out.currentEconomy()
	eco.Gold -= amount
	return out, nil
}

// ResetTurnState readies every unit of the turn owner: full movement and
// attack restored. The opponent's units are left alone.
func (e *Engine) ResetTurnState(s State) State {
	out := s.Clone()
	for k, u := range out.Units {
		if u.OwnerID != out.TurnOwner {
			continue
		}
		u.RemainingMovement = u.Stats.Movement
		u.CanAttack = true
		out.Units[k] = u
	}
	return out
}

// FinishTurn runs the end-of-turn sequence: pass the turn, pay the new turn
// owner's income and ready their units.
func (e *Engine) FinishTurn(s State) State {
	s = e.ToggleCurrentPlayer(s)
	s = e.IncreaseCurrentPlayerGold(s, 0)
	return e.ResetTurnState(s)
}

// currentEconomy must only be called on a State the caller owns.
func (s *State) currentEconomy() *Economy {
	if s.TurnOwner == s.Enemy.ID {
		return &s.Enemy
	}
	return &s.Player
}
