package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Match routing/state.
	ErrMatchNotFound  = "E_MATCH_NOT_FOUND"
	ErrMatchNotActive = "E_MATCH_NOT_ACTIVE"
	ErrNotYourTurn    = "E_NOT_YOUR_TURN"

	// Rule layer.
	ErrNotFound         = "E_NOT_FOUND"
	ErrInvalidOperation = "E_INVALID_OPERATION"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrMatchNotFound:    {},
	ErrMatchNotActive:   {},
	ErrNotYourTurn:      {},
	ErrNotFound:         {},
	ErrInvalidOperation: {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
