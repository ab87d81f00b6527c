// Package hexgrid is the spatial model of a match: axial coordinates, tiles,
// and the rectangular battlefield they form.
package hexgrid

import (
	"fmt"
	"strconv"
	"strings"
)

// Axial addresses a hex by its (q, r) axial coordinates.
// The implicit cube coordinate is s = -q - r.
type Axial struct {
	Q int `json:"q" yaml:"q" msgpack:"q"`
	R int `json:"r" yaml:"r" msgpack:"r"`
}

// Directions lists the six neighbour offsets. Ring walks depend on this order.
var Directions = [6]Axial{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Key is the canonical roster key of a position.
func (a Axial) Key() string {
	return strconv.Itoa(a.Q) + "," + strconv.Itoa(a.R)
}

func (a Axial) String() string { return "(" + a.Key() + ")" }

func (a Axial) Add(b Axial) Axial { return Axial{Q: a.Q + b.Q, R: a.R + b.R} }

func (a Axial) Scale(k int) Axial { return Axial{Q: a.Q * k, R: a.R * k} }

// ParseKey is the inverse of Axial.Key.
func ParseKey(key string) (Axial, error) {
	qs, rs, ok := strings.Cut(key, ",")
	if !ok {
		return Axial{}, fmt.Errorf("bad position key %q", key)
	}
	q, err := strconv.Atoi(strings.TrimSpace(qs))
	if err != nil {
		return Axial{}, fmt.Errorf("bad position key %q: %w", key, err)
	}
	r, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil {
		return Axial{}, fmt.Errorf("bad position key %q: %w", key, err)
	}
	return Axial{Q: q, R: r}, nil
}

// Distance is the hex-grid step distance between a and b.
func Distance(a, b Axial) int {
	dq := a.Q - b.Q
	dr := a.R - b.R
	return (abs(dq) + abs(dr) + abs(dq+dr)) / 2
}

// Ring returns the coordinates exactly radius steps away from center, in a
// fixed order: start at center+Directions[4]*radius and walk Directions[0..5].
// The result is not clipped to any grid.
func Ring(center Axial, radius int) []Axial {
	if radius < 0 {
		return nil
	}
	if radius == 0 {
		return []Axial{center}
	}
	out := make([]Axial, 0, 6*radius)
	h := center.Add(Directions[4].Scale(radius))
	for i := 0; i < 6; i++ {
		for j := 0; j < radius; j++ {
			out = append(out, h)
			h = h.Add(Directions[i])
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
