package arena

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/dice"
	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// yamlScenarioFile is the top-level YAML structure for scenario files.
type yamlScenarioFile struct {
	Scenario yamlScenario `yaml:"scenario"`
}

type yamlScenario struct {
	ID          string        `yaml:"id"`
	Description string        `yaml:"description"`
	Seed        uint64        `yaml:"seed"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	Latency     int           `yaml:"latency"`
	MaxRounds   int           `yaml:"max_rounds"`
	Blocked     [][2]int      `yaml:"blocked"`
	Cover       []yamlCover   `yaml:"cover"`
	Abilities   []yamlAbility `yaml:"abilities"`
	Units       []yamlUnit    `yaml:"units"`
}

type yamlCover struct {
	X     int     `yaml:"x"`
	Y     int     `yaml:"y"`
	Value float64 `yaml:"value"`
}

type yamlAbility struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	AP          float64  `yaml:"ap"`
	MP          float64  `yaml:"mp"`
	Range       float64  `yaml:"range"`
	Radius      float64  `yaml:"radius"`
	Targets     []string `yaml:"targets"`
	Roll        string   `yaml:"roll"`
	Accuracy    float64  `yaml:"accuracy"`
	Heal        float64  `yaml:"heal"`
	Effect      string   `yaml:"effect"`
	Duration    int      `yaml:"duration"`
	Debuff      bool     `yaml:"debuff"`
	Reload      bool     `yaml:"reload"`
	Taunt       bool     `yaml:"taunt"`
	Marker      bool     `yaml:"marker"`
	Defensive   bool     `yaml:"defensive"`
	PreAttack   bool     `yaml:"pre_attack"`
	GapCloser   bool     `yaml:"gap_closer"`
	Ultimate    bool     `yaml:"ultimate"`
	GrantsAP    float64  `yaml:"grants_ap"`
	GrantsMP    float64  `yaml:"grants_mp"`
	Description string   `yaml:"description"`
}

type yamlUnit struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Faction     string   `yaml:"faction"`
	Role        string   `yaml:"role"`
	Pos         [2]int   `yaml:"pos"`
	HP          float64  `yaml:"hp"`
	AP          float64  `yaml:"ap"`
	MP          float64  `yaml:"mp"`
	Ranged      bool     `yaml:"ranged"`
	AttackRange float64  `yaml:"attack_range"`
	Ammo        int      `yaml:"ammo"`
	Specialist  bool     `yaml:"specialist"`
	Initiative  int      `yaml:"initiative"`
	Controlled  *bool    `yaml:"controlled"`
	Abilities   []string `yaml:"abilities"`
}

// AbilitySpec is an ability plus the arena's resolution data.
type AbilitySpec struct {
	binding.Ability
	// Roll is the damage expression; only meaningful when Ability.Damage is set.
	Roll dice.Expression
	// Accuracy is the base hit probability before cover.
	Accuracy float64
}

// UnitSpec is a unit's starting state.
type UnitSpec struct {
	binding.Unit
	Initiative int
	Abilities  []string
}

// Scenario is a validated battlefield definition.
type Scenario struct {
	ID          string
	Description string
	Seed        uint64
	Width       int
	Height      int
	// Latency is how many Tick calls a command stays pending.
	Latency   int
	MaxRounds int
	Blocked   map[grid.Cell]bool
	Cover     map[grid.Cell]float64
	Abilities map[string]AbilitySpec
	Units     []UnitSpec
}

// LoadScenarioFromFile reads and validates a single scenario YAML file.
//
// Precondition: path must point to a valid YAML scenario file.
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes parses and validates a scenario from YAML bytes.
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var file yamlScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	scn, err := convertYAMLScenario(file.Scenario)
	if err != nil {
		return nil, fmt.Errorf("converting scenario %q: %w", file.Scenario.ID, err)
	}
	if err := scn.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario %q: %w", scn.ID, err)
	}
	return scn, nil
}

// LoadScenariosFromDir loads every *.yaml file in dir, sorted by ID.
func LoadScenariosFromDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}
	var out []*Scenario
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		scn, err := LoadScenarioFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading scenario from %s: %w", name, err)
		}
		out = append(out, scn)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func convertYAMLScenario(ys yamlScenario) (*Scenario, error) {
	scn := &Scenario{
		ID:          ys.ID,
		Description: ys.Description,
		Seed:        ys.Seed,
		Width:       ys.Width,
		Height:      ys.Height,
		Latency:     ys.Latency,
		MaxRounds:   ys.MaxRounds,
		Blocked:     make(map[grid.Cell]bool, len(ys.Blocked)),
		Cover:       make(map[grid.Cell]float64, len(ys.Cover)),
		Abilities:   make(map[string]AbilitySpec, len(ys.Abilities)),
	}
	if scn.MaxRounds == 0 {
		scn.MaxRounds = 30
	}
	for _, b := range ys.Blocked {
		scn.Blocked[grid.Cell{X: b[0], Y: b[1]}] = true
	}
	for _, c := range ys.Cover {
		scn.Cover[grid.Cell{X: c.X, Y: c.Y}] = c.Value
	}
	var errs []error
	for _, ya := range ys.Abilities {
		spec, err := convertAbility(ya)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := scn.Abilities[spec.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate ability %q", spec.ID))
			continue
		}
		scn.Abilities[spec.ID] = spec
	}
	for _, yu := range ys.Units {
		controlled := yu.Controlled == nil || *yu.Controlled
		scn.Units = append(scn.Units, UnitSpec{
			Unit: binding.Unit{
				ID:           yu.ID,
				Name:         yu.Name,
				Faction:      yu.Faction,
				Role:         yu.Role,
				Pos:          grid.Cell{X: yu.Pos[0], Y: yu.Pos[1]}.Center(),
				HP:           yu.HP,
				MaxHP:        yu.HP,
				AP:           yu.AP,
				MaxAP:        yu.AP,
				MP:           yu.MP,
				MaxMP:        yu.MP,
				Ranged:       yu.Ranged,
				AttackRange:  yu.AttackRange,
				Ammo:         yu.Ammo,
				MaxAmmo:      yu.Ammo,
				Specialist:   yu.Specialist,
				Controllable: controlled,
			},
			Initiative: yu.Initiative,
			Abilities:  yu.Abilities,
		})
	}
	return scn, errors.Join(errs...)
}

func convertAbility(ya yamlAbility) (AbilitySpec, error) {
	spec := AbilitySpec{
		Ability: binding.Ability{
			ID:          ya.ID,
			Name:        ya.Name,
			APCost:      ya.AP,
			MPCost:      ya.MP,
			Range:       ya.Range,
			AoERadius:   ya.Radius,
			HealAmount:  ya.Heal,
			EffectID:    ya.Effect,
			Debuff:      ya.Debuff,
			Reload:      ya.Reload,
			Taunt:       ya.Taunt,
			Marker:      ya.Marker,
			Defensive:   ya.Defensive,
			PreAttack:   ya.PreAttack,
			GapCloser:   ya.GapCloser,
			Ultimate:    ya.Ultimate,
			GrantsAP:    ya.GrantsAP,
			GrantsMP:    ya.GrantsMP,
			Duration:    ya.Duration,
			Description: ya.Description,
		},
		Accuracy: ya.Accuracy,
	}
	for _, t := range ya.Targets {
		switch t {
		case "enemy":
			spec.TargetsEnemy = true
		case "ally":
			spec.TargetsAlly = true
		case "self":
			spec.TargetsSelf = true
		case "point":
			spec.TargetsPoint = true
		default:
			return AbilitySpec{}, fmt.Errorf("ability %q: unknown target kind %q", ya.ID, t)
		}
	}
	if ya.Roll != "" {
		e, err := dice.Parse(ya.Roll)
		if err != nil {
			return AbilitySpec{}, fmt.Errorf("ability %q: %w", ya.ID, err)
		}
		spec.Roll = e
		spec.Damage = true
		if spec.Accuracy == 0 {
			spec.Accuracy = 0.85
		}
	}
	if spec.Accuracy == 0 {
		spec.Accuracy = 1
	}
	return spec, nil
}

// Validate checks the scenario invariants.
//
// Postcondition: Returns nil if valid, or an error joining every violation.
func (s *Scenario) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if s.Width < 2 || s.Height < 2 {
		errs = append(errs, fmt.Errorf("grid %dx%d is too small", s.Width, s.Height))
	}
	if s.Latency < 0 {
		errs = append(errs, errors.New("latency must not be negative"))
	}
	for id, ab := range s.Abilities {
		if ab.Accuracy < 0 || ab.Accuracy > 1 {
			errs = append(errs, fmt.Errorf("ability %q: accuracy must be in [0, 1]", id))
		}
		if ab.APCost < 0 || ab.MPCost < 0 {
			errs = append(errs, fmt.Errorf("ability %q: costs must not be negative", id))
		}
	}
	seen := make(map[string]bool)
	occupied := make(map[grid.Cell]string)
	factions := make(map[string]bool)
	for _, u := range s.Units {
		switch {
		case u.ID == "":
			errs = append(errs, errors.New("unit id must not be empty"))
			continue
		case seen[u.ID]:
			errs = append(errs, fmt.Errorf("duplicate unit %q", u.ID))
			continue
		}
		seen[u.ID] = true
		if u.Faction == "" {
			errs = append(errs, fmt.Errorf("unit %q: faction must not be empty", u.ID))
		}
		factions[u.Faction] = true
		if u.MaxHP <= 0 {
			errs = append(errs, fmt.Errorf("unit %q: hp must be positive", u.ID))
		}
		c := u.Pos.Cell()
		if c.X < 0 || c.Y < 0 || c.X >= s.Width || c.Y >= s.Height || s.Blocked[c] {
			errs = append(errs, fmt.Errorf("unit %q: position %d,%d is not walkable", u.ID, c.X, c.Y))
		}
		if other, ok := occupied[c]; ok {
			errs = append(errs, fmt.Errorf("unit %q: position shared with %q", u.ID, other))
		}
		occupied[c] = u.ID
		for _, ab := range u.Abilities {
			if _, ok := s.Abilities[ab]; !ok {
				errs = append(errs, fmt.Errorf("unit %q: unknown ability %q", u.ID, ab))
			}
		}
	}
	if len(factions) < 2 {
		errs = append(errs, errors.New("a scenario needs at least two factions"))
	}
	return errors.Join(errs...)
}
