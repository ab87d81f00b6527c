package match

// Rules holds the tunable numbers of turn income and combat.
type Rules struct {
	GoldPerTurn    int
	DamageExtraMax int
	BaseXPPerLevel int
	// XPThresholds maps a level to the total experience needed to leave it.
	// A level without an entry never levels up.
	XPThresholds map[int]int
	// LevelUpPermille scales health, attack and defense on level-up (1200 = x1.2).
	LevelUpPermille int
}

func DefaultRules() Rules {
	return Rules{
		GoldPerTurn:     10,
		DamageExtraMax:  6,
		BaseXPPerLevel:  5,
		XPThresholds:    map[int]int{1: 10, 2: 20, 3: 30, 4: 40, 5: 50},
		LevelUpPermille: 1200,
	}
}

// Engine applies the match rules. It holds no match state of its own, so one
// Engine can serve any number of matches concurrently.
type Engine struct {
	Rules Rules
	// NewID mints unit ids; nil uses random UUIDs.
	NewID func() string
}

func NewEngine(r Rules) *Engine {
	return &Engine{Rules: r}
}
