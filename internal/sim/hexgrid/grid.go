package hexgrid

const DefaultTerrain = "plains"

// Occupant is what a tile can reference. The grid never owns it.
type Occupant interface {
	MovementLeft() int
	AttackRange() int
	AttackReady() bool
}

type Tile struct {
	Pos          Axial
	Terrain      string
	GoldGenerate int

	occupant Occupant
}

func (t *Tile) Occupied() bool     { return t.occupant != nil }
func (t *Tile) Occupant() Occupant { return t.occupant }

// SetOccupant replaces the tile's reference; nil clears it.
func (t *Tile) SetOccupant(o Occupant) { t.occupant = o }

// Grid is a width x height battlefield in pointy-top layout with odd rows
// shifted right. Row r holds q in [-r/2, width-r/2).
//
// A Grid is a throwaway projection of a roster: build it, project, query,
// drop it.
type Grid struct {
	Width  int
	Height int

	tiles map[Axial]*Tile
	order []Axial
}

func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	g := &Grid{
		Width:  width,
		Height: height,
		tiles:  make(map[Axial]*Tile, width*height),
		order:  make([]Axial, 0, width*height),
	}
	for r := 0; r < height; r++ {
		off := r / 2
		for col := 0; col < width; col++ {
			a := Axial{Q: col - off, R: r}
			g.tiles[a] = &Tile{Pos: a, Terrain: DefaultTerrain}
			g.order = append(g.order, a)
		}
	}
	return g
}

func (g *Grid) Tile(a Axial) (*Tile, bool) {
	if g == nil {
		return nil, false
	}
	t, ok := g.tiles[a]
	return t, ok
}

func (g *Grid) Contains(a Axial) bool {
	_, ok := g.Tile(a)
	return ok
}

func (g *Grid) Len() int { return len(g.order) }

// Tiles returns every tile in row-major order.
func (g *Grid) Tiles() []*Tile {
	out := make([]*Tile, 0, len(g.order))
	for _, a := range g.order {
		out = append(out, g.tiles[a])
	}
	return out
}

// Ring returns the in-grid tiles exactly radius steps from center, in Ring order.
func (g *Grid) Ring(center Axial, radius int) []*Tile {
	coords := Ring(center, radius)
	out := make([]*Tile, 0, len(coords))
	for _, a := range coords {
		if t, ok := g.tiles[a]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Distance is the hex distance between two coordinates; both need not be in the grid.
func (g *Grid) Distance(a, b Axial) int { return Distance(a, b) }

// Project sets the occupant of every tile whose position key appears in the
// roster and returns g. Roster entries outside the grid are ignored.
func Project[O Occupant](g *Grid, roster map[string]O) *Grid {
	if g == nil {
		return nil
	}
	for _, a := range g.order {
		if o, ok := roster[a.Key()]; ok {
			g.tiles[a].occupant = o
		}
	}
	return g
}
