package scoring

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// TargetWeights set the relative importance of each enemy-selection factor.
type TargetWeights struct {
	HP             float64 `yaml:"hp"`
	Distance       float64 `yaml:"distance"`
	Threat         float64 `yaml:"threat"`
	Kill           float64 `yaml:"kill"`
	HitChance      float64 `yaml:"hit_chance"`
	Debuff         float64 `yaml:"debuff"`
	Specialization float64 `yaml:"specialization"`
}

// AllyWeights set the relative importance of each heal/buff recipient factor.
type AllyWeights struct {
	MissingHP float64 `yaml:"missing_hp"`
	Threat    float64 `yaml:"threat"`
	Role      float64 `yaml:"role"`
	Distance  float64 `yaml:"distance"`
}

// SequenceWeights combine the sequence optimizer's component scores.
type SequenceWeights struct {
	Offense    float64 `yaml:"offense"`
	Safety     float64 `yaml:"safety"`
	Efficiency float64 `yaml:"efficiency"`
	RoleFit    float64 `yaml:"role_fit"`
}

// Profile is one role's complete weight table.
type Profile struct {
	Target   TargetWeights   `yaml:"target"`
	Ally     AllyWeights     `yaml:"ally"`
	Sequence SequenceWeights `yaml:"sequence"`
	// MeleeBias and RangedBias are added to attack scores by ability reach.
	MeleeBias  float64 `yaml:"melee_bias"`
	RangedBias float64 `yaml:"ranged_bias"`
}

// Profiles maps each role to its weight table.
type Profiles map[situation.Role]Profile

// DefaultProfiles returns the built-in Tank, DPS, and Support tables.
func DefaultProfiles() Profiles {
	return Profiles{
		situation.RoleTank: {
			Target:     TargetWeights{HP: 0.15, Distance: 0.30, Threat: 0.25, Kill: 0.10, HitChance: 0.10, Debuff: 0.05, Specialization: 0.05},
			Ally:       AllyWeights{MissingHP: 0.30, Threat: 0.40, Role: 0.20, Distance: 0.10},
			Sequence:   SequenceWeights{Offense: 1.0, Safety: 0.3, Efficiency: 0.2, RoleFit: 0.3},
			MeleeBias:  8,
			RangedBias: 0,
		},
		situation.RoleDPS: {
			Target:     TargetWeights{HP: 0.25, Distance: 0.10, Threat: 0.10, Kill: 0.30, HitChance: 0.15, Debuff: 0.05, Specialization: 0.05},
			Ally:       AllyWeights{MissingHP: 0.40, Threat: 0.30, Role: 0.10, Distance: 0.20},
			Sequence:   SequenceWeights{Offense: 1.0, Safety: 0.5, Efficiency: 0.2, RoleFit: 0.3},
			MeleeBias:  2,
			RangedBias: 5,
		},
		situation.RoleSupport: {
			Target:     TargetWeights{HP: 0.20, Distance: 0.15, Threat: 0.30, Kill: 0.10, HitChance: 0.10, Debuff: 0.05, Specialization: 0.10},
			Ally:       AllyWeights{MissingHP: 0.50, Threat: 0.25, Role: 0.15, Distance: 0.10},
			Sequence:   SequenceWeights{Offense: 0.6, Safety: 0.8, Efficiency: 0.2, RoleFit: 0.4},
			MeleeBias:  0,
			RangedBias: 2,
		},
	}
}

// For returns the profile for role, falling back to the DPS profile.
func (p Profiles) For(role situation.Role) Profile {
	if prof, ok := p[role]; ok {
		return prof
	}
	return DefaultProfiles()[situation.RoleDPS]
}

type yamlProfileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads role overrides from a YAML file with a top-level
// `profiles:` mapping keyed by role name. Roles absent from the file keep
// their defaults.
//
// Postcondition: every returned profile has non-negative weights.
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scoring.LoadProfiles: reading %q: %w", path, err)
	}
	var f yamlProfileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("scoring.LoadProfiles: parsing %q: %w", path, err)
	}
	out := DefaultProfiles()
	var errs []error
	for name, prof := range f.Profiles {
		role := situation.ParseRole(name)
		if role.String() != strings.ToLower(name) {
			errs = append(errs, fmt.Errorf("unknown role %q", name))
			continue
		}
		if err := prof.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("role %q: %w", name, err))
			continue
		}
		out[role] = prof
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("scoring.LoadProfiles %q: %w", path, errors.Join(errs...))
	}
	return out, nil
}

// Validate rejects negative weights.
func (p Profile) Validate() error {
	ws := map[string]float64{
		"target.hp":             p.Target.HP,
		"target.distance":       p.Target.Distance,
		"target.threat":         p.Target.Threat,
		"target.kill":           p.Target.Kill,
		"target.hit_chance":     p.Target.HitChance,
		"target.debuff":         p.Target.Debuff,
		"target.specialization": p.Target.Specialization,
		"ally.missing_hp":       p.Ally.MissingHP,
		"ally.threat":           p.Ally.Threat,
		"ally.role":             p.Ally.Role,
		"ally.distance":         p.Ally.Distance,
		"sequence.offense":      p.Sequence.Offense,
		"sequence.safety":       p.Sequence.Safety,
		"sequence.efficiency":   p.Sequence.Efficiency,
		"sequence.role_fit":     p.Sequence.RoleFit,
	}
	var bad []string
	for k, v := range ws {
		if v < 0 {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("negative weights: %s", strings.Join(bad, ", "))
	}
	return nil
}
