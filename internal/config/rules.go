package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pefman/arcana-duel/internal/models"
)

// Rules is the game balance, loaded from YAML with defaults for anything unset.
type Rules struct {
	HandSize           int              `yaml:"hand_size" json:"hand_size"`
	MaxStack           int              `yaml:"max_stack" json:"max_stack"`
	EnergyRegen        int              `yaml:"energy_regen" json:"energy_regen"`
	ScenarioEvery      int              `yaml:"scenario_every" json:"scenario_every"`
	CriticalMissMorale int              `yaml:"critical_miss_morale" json:"critical_miss_morale"`
	Tiers              []TierBand       `yaml:"tiers" json:"tiers"`
	Resolution         ResolutionTiming `yaml:"resolution" json:"resolution"`
}

// TierBand maps every attack-minus-defense difference >= MinDiff to a tier.
// Bands are ordered from the highest MinDiff down; the last band also
// catches every lower difference.
type TierBand struct {
	Tier       models.Tier `yaml:"tier" json:"tier"`
	MinDiff    int         `yaml:"min_diff" json:"min_diff"`
	Multiplier float64     `yaml:"multiplier" json:"multiplier"`
}

// ResolutionTiming holds the presentation delays between resolution steps.
type ResolutionTiming struct {
	Step     time.Duration `yaml:"step" json:"step"`
	Critical time.Duration `yaml:"critical" json:"critical"`
}

// DefaultTiers is the standard outcome table.
func DefaultTiers() []TierBand {
	return []TierBand{
		{Tier: models.TierCritical, MinDiff: 10, Multiplier: 2.0},
		{Tier: models.TierStrong, MinDiff: 5, Multiplier: 1.5},
		{Tier: models.TierGlancing, MinDiff: 1, Multiplier: 1.0},
		{Tier: models.TierClash, MinDiff: 0, Multiplier: 0.5},
		{Tier: models.TierDeflect, MinDiff: -4, Multiplier: 0.25},
		{Tier: models.TierParry, MinDiff: -9, Multiplier: 0},
		{Tier: models.TierCriticalMiss, MinDiff: -10, Multiplier: 0},
	}
}

// DefaultRules returns the standard balance.
func DefaultRules() Rules {
	r := Rules{}
	r.ApplyDefaults()
	return r
}

func (r *Rules) ApplyDefaults() {
	if r.HandSize == 0 {
		r.HandSize = 5
	}
	if r.MaxStack == 0 {
		r.MaxStack = 3
	}
	if r.EnergyRegen == 0 {
		r.EnergyRegen = 2
	}
	if r.ScenarioEvery == 0 {
		r.ScenarioEvery = 2
	}
	if r.CriticalMissMorale == 0 {
		r.CriticalMissMorale = 1
	}
	if len(r.Tiers) == 0 {
		r.Tiers = DefaultTiers()
	}
	if r.Resolution.Step == 0 {
		r.Resolution.Step = 1500 * time.Millisecond
	}
	if r.Resolution.Critical == 0 {
		r.Resolution.Critical = 2 * time.Second
	}
}

// Validate checks that the tier table is usable.
func (r Rules) Validate() error {
	if r.HandSize < 1 || r.MaxStack < 1 || r.ScenarioEvery < 1 {
		return fmt.Errorf("rules: hand_size, max_stack and scenario_every must be positive")
	}
	if len(r.Tiers) == 0 {
		return fmt.Errorf("rules: tiers must not be empty")
	}
	for i := 1; i < len(r.Tiers); i++ {
		if r.Tiers[i].MinDiff >= r.Tiers[i-1].MinDiff {
			return fmt.Errorf("rules: tier %q must have a lower min_diff than %q", r.Tiers[i].Tier, r.Tiers[i-1].Tier)
		}
	}
	for _, b := range r.Tiers {
		if b.Multiplier < 0 {
			return fmt.Errorf("rules: tier %q has a negative multiplier", b.Tier)
		}
	}
	return nil
}

// Band returns the tier band for a signed attack-minus-defense difference.
func (r Rules) Band(diff int) TierBand {
	for _, b := range r.Tiers {
		if diff >= b.MinDiff {
			return b
		}
	}
	return r.Tiers[len(r.Tiers)-1]
}

// LoadRules reads a YAML rules file. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}
