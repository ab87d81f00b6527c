package match

import (
	"github.com/google/uuid"

	"hextactics.gg/internal/sim/hexgrid"
)

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// NewUnit builds a fresh level 1 instance of tpl owned by ownerID. It is not
// placed anywhere.
func (e *Engine) NewUnit(tpl Template, ownerID string, pos hexgrid.Axial, movesImmediately bool) Unit {
	u := Unit{
		ID:         e.newID(),
		OwnerID:    ownerID,
		TemplateID: tpl.ID,
		Name:       tpl.Name,
		Class:      tpl.Class,
		Leader:     tpl.Leader,
		Stats: Stats{
			MaxHealth: tpl.Health,
			Health:    tpl.Health,
			Attack:    tpl.Attack,
			Defense:   tpl.Defense,
			Movement:  tpl.Movement,
			Range:     tpl.Range,
		},
		Level:    1,
		Position: pos,
	}
	if movesImmediately {
		u.RemainingMovement = tpl.Movement
	}
	return u
}

// PlaceUnit creates a unit of tpl for the turn owner at pos. New units cannot
// attack until their owner's next turn.
func (e *Engine) PlaceUnit(s State, tpl Template, pos hexgrid.Axial, movesImmediately bool) (State, Unit, error) {
	if _, taken := s.Units[pos.Key()]; taken {
		return s, Unit{}, ErrPositionOccupied
	}
	u := e.NewUnit(tpl, s.TurnOwner, pos, movesImmediately)
	out := s.Clone()
	out.Units[pos.Key()] = u
	return out, u, nil
}

func (e *Engine) RemoveUnit(s State, pos hexgrid.Axial) (State, error) {
	if _, ok := s.Units[pos.Key()]; !ok {
		return s, ErrUnitNotFound
	}
	out := s.Clone()
	delete(out.Units, pos.Key())
	return out, nil
}

// ReplaceUnit upserts u under its own position.
func (e *Engine) ReplaceUnit(s State, u Unit) State {
	out := s.Clone()
	out.Units[u.Position.Key()] = u
	return out
}

// UnitPatch lists the runtime fields PatchUnitState may overwrite; nil
// fields are kept.
type UnitPatch struct {
	Health            *int
	Experience        *int
	RemainingMovement *int
	CanAttack         *bool
	Position          *hexgrid.Axial
}

// PatchUnitState merges p into the unit at pos. A position change re-keys
// the roster entry.
func (e *Engine) PatchUnitState(s State, pos hexgrid.Axial, p UnitPatch) (State, error) {
	u, ok := s.Units[pos.Key()]
	if !ok {
		return s, ErrUnitNotFound
	}
	if p.Health != nil {
		u.Stats.Health = *p.Health
	}
	if p.Experience != nil {
		u.Experience = *p.Experience
	}
	if p.RemainingMovement != nil {
		u.RemainingMovement = *p.RemainingMovement
	}
	if p.CanAttack != nil {
		u.CanAttack = *p.CanAttack
	}
	if p.Position != nil && *p.Position != pos {
		if _, taken := s.Units[p.Position.Key()]; taken {
			return s, ErrPositionOccupied
		}
		u.Position = *p.Position
	}

	out := s.Clone()
	delete(out.Units, pos.Key())
	out.Units[u.Position.Key()] = u
	return out, nil
}

// MoveUnit relocates the turn owner's unit from one tile to another, paying
// distance out of its remaining movement. Reachability is the caller's job.
func (e *Engine) MoveUnit(s State, from, to hexgrid.Axial, distance int) (State, error) {
	u, ok := s.Units[from.Key()]
	if !ok {
		return s, ErrUnitNotFound
	}
	if u.OwnerID != s.TurnOwner {
		return s, ErrNotYourUnit
	}
	if distance < 0 || distance > u.RemainingMovement {
		return s, ErrInsufficientMovement
	}
	left := u.RemainingMovement - distance
	return e.PatchUnitState(s, from, UnitPatch{Position: &to, RemainingMovement: &left})
}
