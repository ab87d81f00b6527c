package match

import "hextactics.gg/internal/sim/hexgrid"

// Roller is the randomness combat draws from. *math/rand.Rand satisfies it.
type Roller interface {
	Intn(n int) int
}

// CanAttackUnit is the ownership and readiness half of an attack check; the
// range half lives in pathing.
func CanAttackUnit(attacker, defender Unit) bool {
	return attacker.CanAttack && attacker.OwnerID != defender.OwnerID
}

// RollDamage returns attack plus a bonus in [0, DamageExtraMax-2] minus
// defense, floored at zero.
func (e *Engine) RollDamage(attack, defense int, r Roller) int {
	extra := 0
	if n := e.Rules.DamageExtraMax - 1; n > 0 && r != nil {
		extra = r.Intn(n)
	}
	return max(0, attack+extra-defense)
}

type AttackResult struct {
	Damage    int
	Attacker  Unit
	Defender  Unit
	Dead      bool
	LeveledUp bool
}

// ResolveAttack strikes defender once. The attacker ends up spent either
// way and earns experience only on a kill. Neither unit is written back to
// any roster; see Strike for that.
func (e *Engine) ResolveAttack(attacker, defender Unit, r Roller) (AttackResult, error) {
	if !CanAttackUnit(attacker, defender) {
		return AttackResult{}, ErrCannotAttack
	}
	res := AttackResult{
		Damage:   e.RollDamage(attacker.Stats.Attack, defender.Stats.Defense, r),
		Attacker: attacker,
		Defender: defender,
	}
	res.Defender.Stats.Health -= res.Damage
	if res.Defender.Stats.Health <= 0 {
		res.Defender.Stats.Health = 0
		res.Dead = true
		res.Attacker, res.LeveledUp = e.GainExperience(res.Attacker, defender.Level)
	}
	res.Attacker.CanAttack = false
	res.Attacker.RemainingMovement = 0
	return res, nil
}

// Strike resolves an attack between the units at from and to and writes the
// outcome into the roster: the attacker is replaced and the defender is
// either replaced or removed.
func (e *Engine) Strike(s State, from, to hexgrid.Axial, r Roller) (State, AttackResult, error) {
	attacker, ok := s.Units[from.Key()]
	if !ok {
		return s, AttackResult{}, ErrUnitNotFound
	}
	defender, ok := s.Units[to.Key()]
	if !ok {
		return s, AttackResult{}, ErrUnitNotFound
	}
	if attacker.OwnerID != s.TurnOwner {
		return s, AttackResult{}, ErrNotYourUnit
	}
	res, err := e.ResolveAttack(attacker, defender, r)
	if err != nil {
		return s, AttackResult{}, err
	}
	out := e.ReplaceUnit(s, res.Attacker)
	if res.Dead {
		delete(out.Units, to.Key())
	} else {
		out.Units[to.Key()] = res.Defender
	}
	return out, res, nil
}

// GainExperience credits the reward for defeating a unit of defeatedLevel.
// The level-up check runs against the pre-gain level.
func (e *Engine) GainExperience(u Unit, defeatedLevel int) (Unit, bool) {
	gained := u.Experience + e.Rules.BaseXPPerLevel*defeatedLevel
	leveled := false
	if need, ok := e.Rules.XPThresholds[u.Level]; ok && gained >= need {
		u = e.LevelUp(u)
		leveled = true
	}
	u.Experience = gained
	return u, leveled
}

// LevelUp scales current health, attack and defense by LevelUpPermille
// (floored) and bumps the level. The scaled health becomes both the new
// maximum and the current value.
func (e *Engine) LevelUp(u Unit) Unit {
	m := e.Rules.LevelUpPermille
	hp := u.Stats.Health * m / 1000
	u.Stats.MaxHealth = hp
	u.Stats.Health = hp
	u.Stats.Attack = u.Stats.Attack * m / 1000
	u.Stats.Defense = u.Stats.Defense * m / 1000
	u.Level++
	return u
}
