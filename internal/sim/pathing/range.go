package pathing

import (
	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/simerr"
)

var (
	ErrTileNotFound         = simerr.NotFound("TILE_NOT_FOUND", "tile not found")
	ErrFromNotOccupied      = simerr.Invalid("FROM_NOT_OCCUPIED", "from tile is not occupied")
	ErrToOccupied           = simerr.Invalid("TO_OCCUPIED", "to tile is occupied")
	ErrToNotOccupied        = simerr.Invalid("TO_NOT_OCCUPIED", "to tile is not occupied")
	ErrNoPath               = simerr.Invalid("NO_PATH", "no path found")
	ErrInsufficientMovement = simerr.Invalid("INSUFFICIENT_MOVEMENT", "not enough movement")
	ErrInsufficientRange    = simerr.Invalid("INSUFFICIENT_RANGE", "target out of range")
	ErrCannotAttack         = simerr.Invalid("CANNOT_ATTACK", "unit cannot attack")
	ErrNoFreePosition       = simerr.Invalid("NO_FREE_POSITION", "no free position found")
)

func endpoints(g *hexgrid.Grid, from, to hexgrid.Axial) (*hexgrid.Tile, *hexgrid.Tile, error) {
	fromTile, ok := g.Tile(from)
	if !ok {
		return nil, nil, ErrTileNotFound
	}
	toTile, ok := g.Tile(to)
	if !ok {
		return nil, nil, ErrTileNotFound
	}
	if !fromTile.Occupied() {
		return nil, nil, ErrFromNotOccupied
	}
	return fromTile, toTile, nil
}

// ReachableDistance reports how many steps the occupant of from needs to reach
// the free tile to, failing when it lacks the movement.
func ReachableDistance(g *hexgrid.Grid, from, to hexgrid.Axial) (int, error) {
	fromTile, toTile, err := endpoints(g, from, to)
	if err != nil {
		return 0, err
	}
	if toTile.Occupied() {
		return 0, ErrToOccupied
	}
	path, ok := ShortestPath(g, from, to)
	if !ok {
		return 0, ErrNoPath
	}
	dist := len(path) - 1
	if dist > fromTile.Occupant().MovementLeft() {
		return 0, ErrInsufficientMovement
	}
	return dist, nil
}

// CheckAttack returns nil when the occupant of from may strike the occupant
// of to: it is ready to attack and the unobstructed path is within range.
func CheckAttack(g *hexgrid.Grid, from, to hexgrid.Axial) error {
	fromTile, toTile, err := endpoints(g, from, to)
	if err != nil {
		return err
	}
	if !toTile.Occupied() {
		return ErrToNotOccupied
	}
	path, ok := ShortestPath(g, from, to)
	if !ok {
		return ErrNoPath
	}
	attacker := fromTile.Occupant()
	if !attacker.AttackReady() {
		return ErrCannotAttack
	}
	if len(path)-1 > attacker.AttackRange() {
		return ErrInsufficientRange
	}
	return nil
}

// CanAttack is CheckAttack as a predicate. Structural problems (missing tiles,
// wrong occupancy, no path) are still reported as errors.
func CanAttack(g *hexgrid.Grid, from, to hexgrid.Axial) (bool, error) {
	err := CheckAttack(g, from, to)
	switch err {
	case nil:
		return true, nil
	case ErrCannotAttack, ErrInsufficientRange:
		return false, nil
	default:
		return false, err
	}
}

// NearestFreeRingTile picks the first unoccupied neighbour of center in ring order.
func NearestFreeRingTile(g *hexgrid.Grid, center hexgrid.Axial) (hexgrid.Axial, error) {
	if !g.Contains(center) {
		return hexgrid.Axial{}, ErrTileNotFound
	}
	for _, t := range g.Ring(center, 1) {
		if !t.Occupied() {
			return t.Pos, nil
		}
	}
	return hexgrid.Axial{}, ErrNoFreePosition
}
