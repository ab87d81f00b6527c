package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/match"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Grid        GridTuning    `yaml:"grid"`
	PlayerSpawn hexgrid.Axial `yaml:"player_spawn"`
	EnemySpawn  hexgrid.Axial `yaml:"enemy_spawn"`

	StartingGold int `yaml:"starting_gold"`
	GoldPerTurn  int `yaml:"gold_per_turn"`

	Combat CombatTuning `yaml:"combat"`

	// Seed for the damage roller. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	History HistoryTuning `yaml:"history"`
}

type GridTuning struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type CombatTuning struct {
	DamageExtraMax  int         `yaml:"damage_extra_max"`
	BaseXPPerLevel  int         `yaml:"base_xp_per_level"`
	LevelUpPermille int         `yaml:"level_up_permille"`
	XPThresholds    map[int]int `yaml:"xp_thresholds"`
}

type HistoryTuning struct {
	SnapshotEveryTurns int  `yaml:"snapshot_every_turns"`
	ArchiveOnFinish    bool `yaml:"archive_on_finish"`
}

func Defaults() Tuning {
	r := match.DefaultRules()
	return Tuning{
		ProtocolVersion: "1.0",
		Grid:            GridTuning{Width: 20, Height: 12},
		PlayerSpawn:     hexgrid.Axial{Q: -1, R: 5},
		EnemySpawn:      hexgrid.Axial{Q: 16, R: 5},
		StartingGold:    100,
		GoldPerTurn:     r.GoldPerTurn,
		Combat: CombatTuning{
			DamageExtraMax:  r.DamageExtraMax,
			BaseXPPerLevel:  r.BaseXPPerLevel,
			LevelUpPermille: r.LevelUpPermille,
			XPThresholds:    r.XPThresholds,
		},
		History: HistoryTuning{SnapshotEveryTurns: 1, ArchiveOnFinish: true},
	}
}

// Load reads path over Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	// Replace rather than merge the threshold table.
	t.Combat.XPThresholds = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Defaults(), fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.Combat.XPThresholds == nil {
		t.Combat.XPThresholds = match.DefaultRules().XPThresholds
	}
	if err := t.Validate(); err != nil {
		return Defaults(), fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Grid.Width <= 0 || t.Grid.Height <= 0 {
		return fmt.Errorf("grid must be positive, got %dx%d", t.Grid.Width, t.Grid.Height)
	}
	g := hexgrid.NewGrid(t.Grid.Width, t.Grid.Height)
	if !g.Contains(t.PlayerSpawn) {
		return fmt.Errorf("player_spawn %s outside grid", t.PlayerSpawn)
	}
	if !g.Contains(t.EnemySpawn) {
		return fmt.Errorf("enemy_spawn %s outside grid", t.EnemySpawn)
	}
	if t.PlayerSpawn == t.EnemySpawn {
		return fmt.Errorf("spawns overlap at %s", t.PlayerSpawn)
	}
	if t.StartingGold < 0 || t.GoldPerTurn < 0 {
		return fmt.Errorf("gold values must not be negative")
	}
	if t.Combat.DamageExtraMax < 1 {
		return fmt.Errorf("combat.damage_extra_max must be >= 1")
	}
	if t.Combat.LevelUpPermille < 1000 {
		return fmt.Errorf("combat.level_up_permille must be >= 1000")
	}
	if t.Combat.BaseXPPerLevel < 0 {
		return fmt.Errorf("combat.base_xp_per_level must not be negative")
	}
	for lvl, xp := range t.Combat.XPThresholds {
		if lvl < 1 || xp <= 0 {
			return fmt.Errorf("combat.xp_thresholds: bad entry %d: %d", lvl, xp)
		}
	}
	if t.History.SnapshotEveryTurns < 1 {
		return fmt.Errorf("history.snapshot_every_turns must be >= 1")
	}
	return nil
}

// Rules is the engine view of the combat and income numbers.
func (t Tuning) Rules() match.Rules {
	th := make(map[int]int, len(t.Combat.XPThresholds))
	for k, v := range t.Combat.XPThresholds {
		th[k] = v
	}
	return match.Rules{
		GoldPerTurn:     t.GoldPerTurn,
		DamageExtraMax:  t.Combat.DamageExtraMax,
		BaseXPPerLevel:  t.Combat.BaseXPPerLevel,
		XPThresholds:    th,
		LevelUpPermille: t.Combat.LevelUpPermille,
	}
}

// Digest is a stable hash of the applied values.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
