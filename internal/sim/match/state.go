// Package match owns the authoritative state of one hex tactics match.
//
// Every Engine operation is copy-on-write: it takes a State and returns a new
// State, leaving its input untouched. A rejected operation returns the input
// State as-is together with the error.
package match

import (
	"sort"

	"hextactics.gg/internal/sim/hexgrid"
)

// Template is an immutable catalog entry a Unit is created from.
type Template struct {
	ID       string `json:"id" yaml:"id"`
	Leader   bool   `json:"leader" yaml:"leader"`
	Class    string `json:"class" yaml:"class"`
	Name     string `json:"name" yaml:"name"`
	Price    int    `json:"price" yaml:"price"`
	Health   int    `json:"health" yaml:"health"`
	Attack   int    `json:"attack" yaml:"attack"`
	Defense  int    `json:"defense" yaml:"defense"`
	Movement int    `json:"movement" yaml:"movement"`
	Range    int    `json:"range" yaml:"range"`

	Assets map[string]string `json:"assets,omitempty" yaml:"assets,omitempty"`
}

type Stats struct {
	MaxHealth int `json:"max_health" msgpack:"max_health"`
	Health    int `json:"health" msgpack:"health"`
	Attack    int `json:"attack" msgpack:"attack"`
	Defense   int `json:"defense" msgpack:"defense"`
	Movement  int `json:"movement" msgpack:"movement"`
	Range     int `json:"range" msgpack:"range"`
}

// Unit is a live combat entity. The roster key it is stored under always
// equals Position.Key().
type Unit struct {
	ID         string `json:"id" msgpack:"id"`
	OwnerID    string `json:"owner_id" msgpack:"owner_id"`
	TemplateID string `json:"template_id" msgpack:"template_id"`
	Name       string `json:"name" msgpack:"name"`
	Class      string `json:"class" msgpack:"class"`
	Leader     bool   `json:"leader" msgpack:"leader"`

	Stats Stats `json:"stats" msgpack:"stats"`

	Experience        int           `json:"experience" msgpack:"experience"`
	Level             int           `json:"level" msgpack:"level"`
	RemainingMovement int           `json:"remaining_movement" msgpack:"remaining_movement"`
	CanAttack         bool          `json:"can_attack" msgpack:"can_attack"`
	Position          hexgrid.Axial `json:"position" msgpack:"position"`
}

func (u Unit) MovementLeft() int { return u.RemainingMovement }
func (u Unit) AttackRange() int  { return u.Stats.Range }
func (u Unit) AttackReady() bool { return u.CanAttack }

type Economy struct {
	ID   string `json:"id" msgpack:"id"`
	Gold int    `json:"gold" msgpack:"gold"`
}

type State struct {
	TurnOwner string          `json:"turn_owner" msgpack:"turn_owner"`
	Units     map[string]Unit `json:"units" msgpack:"units"`
	Player    Economy         `json:"player" msgpack:"player"`
	Enemy     Economy         `json:"enemy" msgpack:"enemy"`
}

// NewState seeds an empty roster with both economies at startingGold.
// The first player owns the first turn.
func NewState(playerID, enemyID string, startingGold int) State {
	return State{
		TurnOwner: playerID,
		Units:     map[string]Unit{},
		Player:    Economy{ID: playerID, Gold: startingGold},
		Enemy:     Economy{ID: enemyID, Gold: startingGold},
	}
}

func (s State) Clone() State {
	out := s
	out.Units = make(map[string]Unit, len(s.Units))
	for k, u := range s.Units {
		out.Units[k] = u
	}
	return out
}

// Grid projects the roster onto a fresh width x height grid.
func (s State) Grid(width, height int) *hexgrid.Grid {
	return hexgrid.Project(hexgrid.NewGrid(width, height), s.Units)
}

// Keys returns the roster keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.Units))
	for k := range s.Units {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnitAt returns the unit at pos, if any.
func (s State) UnitAt(pos hexgrid.Axial) (Unit, bool) {
	u, ok := s.Units[pos.Key()]
	return u, ok
}

func (s State) CurrentEconomy() Economy {
	if s.TurnOwner == s.Enemy.ID {
		return s.Enemy
	}
	return s.Player
}

// Opponent is the economy of the participant who is not the turn owner.
func (s State) Opponent() Economy {
	if s.TurnOwner == s.Enemy.ID {
		return s.Player
	}
	return s.Enemy
}

// Economy returns the economy of playerID.
func (s State) Economy(playerID string) (Economy, bool) {
	switch playerID {
	case s.Player.ID:
		return s.Player, true
	case s.Enemy.ID:
		return s.Enemy, true
	}
	return Economy{}, false
}

// UnitsOwnedByCurrentPlayer lists the turn owner's units in roster key order.
func (s State) UnitsOwnedByCurrentPlayer() []Unit {
	var out []Unit
	for _, k := range s.Keys() {
		if u := s.Units[k]; u.OwnerID == s.TurnOwner {
			out = append(out, u)
		}
	}
	return out
}

// CurrentLeader returns the leader owned by the turn owner.
func (s State) CurrentLeader() (Unit, error) {
	return s.LeaderOf(s.TurnOwner)
}

func (s State) LeaderOf(playerID string) (Unit, error) {
	for _, k := range s.Keys() {
		if u := s.Units[k]; u.Leader && u.OwnerID == playerID {
			return u, nil
		}
	}
	return Unit{}, ErrLeaderNotFound
}

// CheckConsistency reports the first roster invariant violation found: a
// key that disagrees with its unit's position, negative gold, or a player
// with more than one leader.
func (s State) CheckConsistency() error {
	leaders := map[string]int{}
	for _, k := range s.Keys() {
		u := s.Units[k]
		if u.Position.Key() != k {
			return invalidf("KEY_MISMATCH", "unit %s stored under %s but positioned at %s", u.ID, k, u.Position.Key())
		}
		if u.Leader {
			leaders[u.OwnerID]++
			if leaders[u.OwnerID] > 1 {
				return invalidf("DUPLICATE_LEADER", "player %s has more than one leader", u.OwnerID)
			}
		}
		if u.RemainingMovement < 0 || u.RemainingMovement > u.Stats.Movement {
			return invalidf("MOVEMENT_OUT_OF_RANGE", "unit %s remaining movement %d outside [0,%d]", u.ID, u.RemainingMovement, u.Stats.Movement)
		}
	}
	if s.Player.Gold < 0 || s.Enemy.Gold < 0 {
		return invalidf("NEGATIVE_GOLD", "negative gold")
	}
	return nil
}
