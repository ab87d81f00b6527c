package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"hextactics.gg/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Round-trip through JSON so the Go structs are what gets validated.
	asAny := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(asAny(v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	actSchema := compile("act.schema.json")
	updateSchema := compile("match_update.schema.json")
	endSchema := compile("end_game.schema.json")
	errSchema := compile("error.schema.json")

	validate(helloSchema, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      "bot1",
		LeaderID:        "unit-rena",
		Capabilities:    protocol.HelloCapabilities{Binary: true, MaxQueue: 8},
	})

	validate(welcomeSchema, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		PlayerID:        "P1",
		MatchParams:     protocol.MatchParams{Width: 20, Height: 12, StartingGold: 100, GoldPerTurn: 10, Seed: 7},
		Catalogs:        protocol.CatalogDigests{Units: protocol.DigestRef{Digest: "deadbeef", Count: 8}},
	})

	validate(actSchema, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ActID:           "A1",
		Command:         protocol.CmdMoveUnit,
		From:            &protocol.Coord{Q: -1, R: 5},
		To:              &protocol.Coord{Q: 1, R: 5},
	})
	validate(actSchema, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Command:         protocol.CmdBuyUnit,
		TemplateID:      "unit-archer",
	})

	view := protocol.MatchView{
		MatchID:     "M1",
		Status:      "in_progress",
		IsPlayer:    true,
		ActiveTurn:  true,
		TurnOwnerID: "P1",
		Gold:        90,
		Turn:        1,
		Map:         protocol.MapView{Width: 20, Height: 12, Tiles: []protocol.TileView{{Position: protocol.Coord{}, Terrain: "plains"}}},
		Units: []protocol.UnitView{{
			ID: "U1", OwnerID: "P1", Mine: true, TemplateID: "unit-claude", Leader: true,
			Health: 25, MaxHealth: 25, Attack: 7, Defense: 3, Movement: 4, Range: 1,
			Level: 1, RemainingMovement: 4, Position: protocol.Coord{Q: -1, R: 5},
		}},
		Store: []protocol.StoreItem{{ID: "unit-soldier", Name: "Soldier", Price: 10}},
	}
	validate(updateSchema, protocol.MatchUpdateMsg{Type: protocol.TypeMatchUpdate, ProtocolVersion: protocol.Version, MatchID: "M1", View: view})
	validate(updateSchema, protocol.MatchStartMsg{Type: protocol.TypeMatchStart, ProtocolVersion: protocol.Version, MatchID: "M1", View: view})

	validate(endSchema, protocol.EndGameMsg{
		Type:            protocol.TypeEndGame,
		ProtocolVersion: protocol.Version,
		MatchID:         "M1",
		WinnerID:        "P1",
		LoserID:         "P2",
		Reason:          "leader_defeated",
	})

	validate(errSchema, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrNotYourTurn,
		Message:         "not your turn",
	})
}

func TestSchemas_RejectMalformedAct(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "act.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var act any
	_ = json.Unmarshal([]byte(`{"type":"ACT","protocol_version":"1.0","command":"MOVE_UNIT","from":{"q":0,"r":0}}`), &act)
	if err := s.Validate(act); err == nil {
		t.Fatalf("expected MOVE_UNIT without to to fail")
	}
}
