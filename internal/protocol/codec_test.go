package protocol

import "testing"

func TestMarshal_BinaryKeepsJSONFieldNames(t *testing.T) {
	in := MatchDamageMsg{
		Type:            TypeMatchDamage,
		ProtocolVersion: Version,
		MatchID:         "M1",
		Position:        Coord{Q: 3, R: -1},
		Damage:          6,
	}
	b, err := Marshal(in, true)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var generic map[string]any
	if err := Unmarshal(b, true, &generic); err != nil {
		t.Fatalf("Unmarshal generic: %v", err)
	}
	if generic["match_id"] != "M1" || generic["type"] != TypeMatchDamage {
		t.Fatalf("field names not carried: %v", generic)
	}

	var out MatchDamageMsg
	if err := Unmarshal(b, true, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip %+v -> %+v", in, out)
	}
}
