package main

import (
	"testing"

	"hextactics.gg/internal/protocol"
)

func unit(id, owner string, q, r int, leader bool) protocol.UnitView {
	return protocol.UnitView{
		ID: id, OwnerID: owner, Leader: leader,
		Health: 20, MaxHealth: 20, Attack: 5, Defense: 2, Movement: 4, Range: 1,
		RemainingMovement: 4, CanAttack: true,
		Position: protocol.Coord{Q: q, R: r},
	}
}

func baseView() protocol.MatchView {
	return protocol.MatchView{
		MatchID:     "m1",
		Status:      "in_progress",
		ActiveTurn:  true,
		TurnOwnerID: "A",
		Map:         protocol.MapView{Width: 20, Height: 12},
		Store: []protocol.StoreItem{
			{ID: "unit-cavalry", Price: 20},
			{ID: "unit-soldier", Price: 10},
		},
	}
}

func TestPlanner_IdleWhenNotOurTurn(t *testing.T) {
	p := &planner{maxUnits: 6}
	v := baseView()
	v.ActiveTurn = false
	if _, ok := p.next(v); ok {
		t.Fatalf("acted on opponent's turn")
	}
}

func TestPlanner_AttacksAdjacentEnemy(t *testing.T) {
	p := &planner{maxUnits: 6}
	v := baseView()
	v.Gold = 100
	v.Units = []protocol.UnitView{unit("a", "A", 2, 2, true), unit("b", "B", 3, 2, true)}
	act, ok := p.next(v)
	if !ok || act.Command != protocol.CmdAttackUnit {
		t.Fatalf("act=%+v", act)
	}
	if *act.From != (protocol.Coord{Q: 2, R: 2}) || *act.To != (protocol.Coord{Q: 3, R: 2}) {
		t.Fatalf("from=%v to=%v", *act.From, *act.To)
	}
}

func TestPlanner_BuysCheapestThenAdvances(t *testing.T) {
	p := &planner{maxUnits: 2}
	v := baseView()
	v.Gold = 15
	leader := unit("a", "A", 0, 5, true)
	leader.CanAttack = false
	soldier := unit("s", "A", 1, 5, false)
	soldier.CanAttack = false
	v.Units = []protocol.UnitView{leader, unit("b", "B", 12, 5, true)}

	act, ok := p.next(v)
	if !ok || act.Command != protocol.CmdBuyUnit || act.TemplateID != "unit-soldier" {
		t.Fatalf("buy act=%+v", act)
	}

	v.Units = append(v.Units, soldier)
	act, ok = p.next(v)
	if !ok || act.Command != protocol.CmdMoveUnit {
		t.Fatalf("move act=%+v", act)
	}
	if act.To.R != 5 || act.To.Q != 5 {
		t.Fatalf("advance to=%v want (5,5)", *act.To)
	}
}

func TestPlanner_FinishesWhenNothingToDo(t *testing.T) {
	p := &planner{maxUnits: 6}
	v := baseView()
	v.Gold = 5
	leader := unit("a", "A", 0, 5, true)
	leader.CanAttack = false
	v.Units = []protocol.UnitView{leader, unit("b", "B", 12, 5, true)}
	act, ok := p.next(v)
	if !ok || act.Command != protocol.CmdFinishTurn {
		t.Fatalf("act=%+v", act)
	}
	if act.ActID == "" {
		t.Fatalf("missing act id")
	}
}
