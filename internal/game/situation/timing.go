package situation

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactician/internal/game/binding"
)

// AbilityTiming is the closed classification of when an ability is worth using.
type AbilityTiming int

const (
	TimingUnknown AbilityTiming = iota
	TimingAttack
	TimingPreAttackBuff
	TimingPermanentBuff
	TimingEmergencyBuff
	TimingHeal
	TimingDebuff
	TimingTaunt
	TimingPositional
	TimingReload
)

var timingNames = map[AbilityTiming]string{
	TimingUnknown:       "unknown",
	TimingAttack:        "attack",
	TimingPreAttackBuff: "pre_attack_buff",
	TimingPermanentBuff: "permanent_buff",
	TimingEmergencyBuff: "emergency_buff",
	TimingHeal:          "heal",
	TimingDebuff:        "debuff",
	TimingTaunt:         "taunt",
	TimingPositional:    "positional",
	TimingReload:        "reload",
}

// String returns the snake_case name used in content files.
func (t AbilityTiming) String() string {
	if s, ok := timingNames[t]; ok {
		return s
	}
	return fmt.Sprintf("timing(%d)", int(t))
}

// IsBuff reports whether t is one of the buff timings.
func (t AbilityTiming) IsBuff() bool {
	return t == TimingPreAttackBuff || t == TimingPermanentBuff || t == TimingEmergencyBuff
}

// ParseTiming returns the AbilityTiming named s.
func ParseTiming(s string) (AbilityTiming, error) {
	for t, name := range timingNames {
		if name == s {
			return t, nil
		}
	}
	return TimingUnknown, fmt.Errorf("situation.ParseTiming: unknown timing %q", s)
}

// Table classifies abilities into timings. Explicit entries come from content;
// everything else is derived once from the ability's capability flags and memoised.
//
// Table is safe for concurrent use.
type Table struct {
	mu        sync.Mutex
	explicit  map[string]AbilityTiming
	memo      map[string]AbilityTiming
	derivedBy int
}

// NewTable returns a Table with the given explicit classifications.
func NewTable(explicit map[string]AbilityTiming) *Table {
	t := &Table{explicit: make(map[string]AbilityTiming, len(explicit)), memo: make(map[string]AbilityTiming)}
	for id, timing := range explicit {
		t.explicit[id] = timing
	}
	return t
}

type yamlTimingFile struct {
	Timings map[string]string `yaml:"timings"`
}

// LoadTable reads explicit classifications from a YAML file with a top-level
// `timings:` mapping of ability ID to timing name.
//
// Postcondition: returns an error naming every unknown timing in the file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("situation.LoadTable: reading %q: %w", path, err)
	}
	var f yamlTimingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("situation.LoadTable: parsing %q: %w", path, err)
	}
	explicit := make(map[string]AbilityTiming, len(f.Timings))
	var errs []error
	for id, name := range f.Timings {
		timing, err := ParseTiming(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("ability %q: %w", id, err))
			continue
		}
		explicit[id] = timing
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("situation.LoadTable %q: %w", path, errors.Join(errs...))
	}
	return NewTable(explicit), nil
}

// Classify returns the timing of a.
//
// Postcondition: the same ability ID always yields the same timing for the life of the Table.
func (t *Table) Classify(a binding.Ability) AbilityTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timing, ok := t.explicit[a.ID]; ok {
		return timing
	}
	if timing, ok := t.memo[a.ID]; ok {
		return timing
	}
	timing := deriveTiming(a)
	t.memo[a.ID] = timing
	t.derivedBy++
	return timing
}

// Derived returns how many abilities were classified from capability flags.
func (t *Table) Derived() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.derivedBy
}

func deriveTiming(a binding.Ability) AbilityTiming {
	switch {
	case a.Reload:
		return TimingReload
	case a.HealAmount > 0:
		return TimingHeal
	case a.Taunt:
		return TimingTaunt
	case a.Damage:
		return TimingAttack
	case a.Debuff || a.Marker && a.TargetsEnemy:
		return TimingDebuff
	case a.Defensive:
		return TimingEmergencyBuff
	case a.PreAttack || a.GrantsAP > 0 || a.GrantsMP > 0:
		return TimingPreAttackBuff
	case a.EffectID != "" && a.Duration == 0:
		return TimingPermanentBuff
	case a.EffectID != "":
		return TimingPreAttackBuff
	case a.Marker || a.TargetsPoint:
		return TimingPositional
	default:
		return TimingUnknown
	}
}
