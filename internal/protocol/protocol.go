package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello       = "HELLO"
	TypeWelcome     = "WELCOME"
	TypeCatalog     = "CATALOG"
	TypeAct         = "ACT"
	TypeAck         = "ACK"
	TypeMatchStart  = "MATCH_START"
	TypeMatchUpdate = "MATCH_UPDATE"
	TypeMatchDamage = "MATCH_DAMAGE"
	TypeEndGame     = "END_GAME"
	TypeError       = "ERROR"
)

// ACT commands.
const (
	CmdBuyUnit    = "BUY_UNIT"
	CmdMoveUnit   = "MOVE_UNIT"
	CmdAttackUnit = "ATTACK_UNIT"
	CmdFinishTurn = "FINISH_TURN"
	CmdLeave      = "LEAVE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
