package main

import (
	"fmt"
	"sort"

	"hextactics.gg/internal/protocol"
	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/match"
	"hextactics.gg/internal/sim/pathing"
)

// stateFromView rebuilds enough of a match.State from a wire view to run the
// pathing queries locally.
func stateFromView(v protocol.MatchView) match.State {
	s := match.State{TurnOwner: v.TurnOwnerID, Units: make(map[string]match.Unit, len(v.Units))}
	for _, u := range v.Units {
		pos := hexgrid.Axial{Q: u.Position.Q, R: u.Position.R}
		s.Units[pos.Key()] = match.Unit{
			ID:         u.ID,
			OwnerID:    u.OwnerID,
			TemplateID: u.TemplateID,
			Name:       u.Name,
			Class:      u.Class,
			Leader:     u.Leader,
			Stats: match.Stats{
				MaxHealth: u.MaxHealth,
				Health:    u.Health,
				Attack:    u.Attack,
				Defense:   u.Defense,
				Movement:  u.Movement,
				Range:     u.Range,
			},
			Experience:        u.Experience,
			Level:             u.Level,
			RemainingMovement: u.RemainingMovement,
			CanAttack:         u.CanAttack,
			Position:          pos,
		}
	}
	return s
}

type planner struct {
	maxUnits int
	seq      int
}

func (p *planner) act(cmd string) protocol.ActMsg {
	p.seq++
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ActID:           fmt.Sprintf("bot_%d", p.seq),
		Command:         cmd,
	}
}

func coord(a hexgrid.Axial) *protocol.Coord { return &protocol.Coord{Q: a.Q, R: a.R} }

// next picks one command for the current view, or reports false when it is
// not our turn. Priority: attack, buy, advance, finish.
func (p *planner) next(v protocol.MatchView) (protocol.ActMsg, bool) {
	if !v.ActiveTurn || v.Status != "in_progress" {
		return protocol.ActMsg{}, false
	}
	s := stateFromView(v)
	g := s.Grid(v.Map.Width, v.Map.Height)

	var mine, theirs []match.Unit
	for _, k := range s.Keys() {
		u := s.Units[k]
		if u.OwnerID == v.TurnOwnerID {
			mine = append(mine, u)
		} else {
			theirs = append(theirs, u)
		}
	}

	for _, u := range mine {
		if !u.CanAttack {
			continue
		}
		for _, e := range theirs {
			if pathing.CheckAttack(g, u.Position, e.Position) == nil {
				a := p.act(protocol.CmdAttackUnit)
				a.From, a.To = coord(u.Position), coord(e.Position)
				return a, true
			}
		}
	}

	if len(mine) < p.maxUnits {
		if item, ok := cheapestAffordable(v.Store, v.Gold); ok {
			a := p.act(protocol.CmdBuyUnit)
			a.TemplateID = item.ID
			return a, true
		}
	}

	if target, ok := enemyLeader(theirs); ok {
		for _, u := range mine {
			if u.Leader || u.RemainingMovement <= 0 {
				continue
			}
			if to, ok := advance(g, u, target.Position); ok {
				a := p.act(protocol.CmdMoveUnit)
				a.From, a.To = coord(u.Position), coord(to)
				return a, true
			}
		}
	}

	return p.act(protocol.CmdFinishTurn), true
}

func cheapestAffordable(store []protocol.StoreItem, gold int) (protocol.StoreItem, bool) {
	items := append([]protocol.StoreItem(nil), store...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	for _, it := range items {
		if it.Price > 0 && it.Price <= gold {
			return it, true
		}
	}
	return protocol.StoreItem{}, false
}

func enemyLeader(units []match.Unit) (match.Unit, bool) {
	for _, u := range units {
		if u.Leader {
			return u, true
		}
	}
	return match.Unit{}, false
}

// advance returns the reachable free tile closest to target, if it is closer
// than where u already stands.
func advance(g *hexgrid.Grid, u match.Unit, target hexgrid.Axial) (hexgrid.Axial, bool) {
	best := u.Position
	bestDist := hexgrid.Distance(u.Position, target)
	for _, t := range g.Tiles() {
		if t.Occupied() || hexgrid.Distance(u.Position, t.Pos) > u.RemainingMovement {
			continue
		}
		d := hexgrid.Distance(t.Pos, target)
		if d >= bestDist {
			continue
		}
		if _, err := pathing.ReachableDistance(g, u.Position, t.Pos); err != nil {
			continue
		}
		best, bestDist = t.Pos, d
	}
	return best, best != u.Position
}
