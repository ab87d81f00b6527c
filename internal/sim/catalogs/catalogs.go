package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"hextactics.gg/internal/sim/match"
	"hextactics.gg/internal/sim/simerr"
)

var ErrTemplateNotFound = simerr.NotFound("UNIT_TEMPLATE_NOT_FOUND", "unit template not found")

type Catalogs struct {
	Units UnitCatalog
}

type UnitCatalog struct {
	// Palette is every template id, leaders first, then by price and id.
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]match.Template
	PaletteDigest string
	DefsDigest    string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadUnits(filepath.Join(configDir, "units.json"), &c.Units); err != nil {
		return nil, err
	}
	return &c, nil
}

// Template looks up a unit template by id.
func (c *UnitCatalog) Template(id string) (match.Template, error) {
	d, ok := c.Defs[id]
	if !ok {
		return match.Template{}, fmt.Errorf("%s: %w", id, ErrTemplateNotFound)
	}
	return d, nil
}

// Store lists the purchasable templates in palette order.
func (c *UnitCatalog) Store() []match.Template {
	var out []match.Template
	for _, id := range c.Palette {
		if d := c.Defs[id]; !d.Leader {
			out = append(out, d)
		}
	}
	return out
}

func (c *UnitCatalog) Leaders() []match.Template {
	var out []match.Template
	for _, id := range c.Palette {
		if d := c.Defs[id]; d.Leader {
			out = append(out, d)
		}
	}
	return out
}

func loadUnits(path string, out *UnitCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseUnits(raw, out)
}

func parseUnits(raw []byte, out *UnitCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []match.Template
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("units.json: %w", err)
	}
	out.Defs = map[string]match.Template{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("units.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("units.json: duplicate id %q", d.ID)
		}
		if d.Health <= 0 || d.Attack < 0 || d.Defense < 0 || d.Movement < 0 || d.Range < 1 {
			return fmt.Errorf("units.json: %s: bad stats", d.ID)
		}
		if !d.Leader && d.Price <= 0 {
			return fmt.Errorf("units.json: %s: purchasable unit needs a price", d.ID)
		}
		out.Defs[d.ID] = d
	}
	if !hasLeader(out.Defs) {
		return fmt.Errorf("units.json: no leader templates")
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := out.Defs[ids[i]], out.Defs[ids[j]]
		if a.Leader != b.Leader {
			return a.Leader
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.ID < b.ID
	})
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func hasLeader(defs map[string]match.Template) bool {
	for _, d := range defs {
		if d.Leader {
			return true
		}
	}
	return false
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
