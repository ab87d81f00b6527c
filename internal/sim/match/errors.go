package match

import (
	"fmt"

	"hextactics.gg/internal/sim/simerr"
)

var (
	ErrUnitNotFound         = simerr.NotFound("UNIT_NOT_FOUND", "unit not found")
	ErrLeaderNotFound       = simerr.NotFound("LEADER_NOT_FOUND", "leader not found")
	ErrNotEnoughGold        = simerr.Invalid("NOT_ENOUGH_GOLD", "not enough gold")
	ErrInvalidAmount        = simerr.Invalid("INVALID_AMOUNT", "amount must not be negative")
	ErrNotYourUnit          = simerr.Invalid("NOT_YOUR_UNIT", "not your unit")
	ErrInsufficientMovement = simerr.Invalid("INSUFFICIENT_MOVEMENT", "no movement energy")
	ErrCannotAttack         = simerr.Invalid("CANNOT_ATTACK", "unit cannot attack")
	ErrPositionOccupied     = simerr.Invalid("POSITION_OCCUPIED", "position already occupied")
)

func invalidf(code, format string, args ...any) error {
	return simerr.Invalid(code, fmt.Sprintf(format, args...))
}
