package situation

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/spatial"
)

// ErrAnalysisFailed is returned when a Situation could not be built at all.
// Callers end the unit's turn.
var ErrAnalysisFailed = errors.New("situation: analysis failed")

// Config tunes the Analyzer.
type Config struct {
	// Padding is the number of cells kept around the combatants in the walkability window.
	Padding int
	// EdgeMargin triggers a window expansion when any unit comes this close to the edge.
	EdgeMargin       int
	CoverStampRadius float64
	Influence        spatial.InfluenceConfig
	Predictive       spatial.PredictiveConfig
	Cluster          spatial.ClusterConfig
	Phase            PhaseConfig
}

// DefaultConfig returns the analyzer tuning used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		Padding:          8,
		EdgeMargin:       3,
		CoverStampRadius: 6,
		Influence:        spatial.DefaultInfluenceConfig(),
		Predictive:       spatial.DefaultPredictiveConfig(),
		Cluster:          spatial.DefaultClusterConfig(),
		Phase:            DefaultPhaseConfig(),
	}
}

// Analyzer builds Situations from the engine binding. One Analyzer lives for
// one combat and owns that combat's walkability cache.
//
// Analyzer is not safe for concurrent use.
type Analyzer struct {
	b      binding.Binding
	table  *Table
	cfg    Config
	logger *zap.Logger
	walk   *grid.WalkabilityCache
}

// NewAnalyzer constructs an Analyzer.
//
// Precondition: b and table must not be nil.
func NewAnalyzer(b binding.Binding, table *Table, cfg Config, logger *zap.Logger) *Analyzer {
	if b == nil {
		panic("situation.NewAnalyzer: binding must not be nil")
	}
	if table == nil {
		panic("situation.NewAnalyzer: table must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{b: b, table: table, cfg: cfg, logger: logger.Named("situation")}
}

// Walkability returns the current walkability window, or nil before the first analysis.
func (a *Analyzer) Walkability() *grid.WalkabilityCache { return a.walk }

// Reset drops the combat-scoped walkability cache.
func (a *Analyzer) Reset() { a.walk = nil }

// Analyze builds a fresh Situation for unitID.
//
// Binding queries run serially on the calling goroutine; the pure map builds
// that follow run concurrently. A map whose build fails is left nil and the
// Situation is still returned.
//
// Postcondition: on error the Situation is nil and the error wraps ErrAnalysisFailed.
func (a *Analyzer) Analyze(unitID string, flags Flags, view blackboard.View) (sit *Situation, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis panicked", zap.String("unit", unitID), zap.Any("panic", r))
			sit, err = nil, fmt.Errorf("situation.Analyze %q: %w: panic: %v", unitID, ErrAnalysisFailed, r)
		}
	}()

	self, ok := a.b.Unit(unitID)
	if !ok {
		return nil, fmt.Errorf("situation.Analyze %q: %w: unit not found", unitID, ErrAnalysisFailed)
	}
	if self.Dead {
		return nil, fmt.Errorf("situation.Analyze %q: %w: unit is dead", unitID, ErrAnalysisFailed)
	}

	in := Input{Self: self, Flags: flags, Board: view, PhaseConfig: a.cfg.Phase}
	var living []grid.Point
	for _, u := range a.b.Units() {
		if u.Dead {
			continue
		}
		living = append(living, u.Pos)
		switch {
		case u.ID == self.ID:
		case u.Faction == self.Faction:
			in.Allies = append(in.Allies, u)
		default:
			in.Enemies = append(in.Enemies, u)
		}
	}

	for _, ab := range a.b.Abilities(unitID) {
		if !a.b.IsAbilityAvailable(unitID, ab.ID) {
			continue
		}
		if ab.APCost > self.AP || ab.MPCost > self.MP {
			continue
		}
		timing := a.table.Classify(ab)
		if timing == TimingUnknown {
			in.Unclassified = append(in.Unclassified, ab.ID)
			continue
		}
		in.Abilities = append(in.Abilities, Ability{Ability: ab, Timing: timing})
	}
	if len(in.Unclassified) > 0 {
		a.logger.Debug("unclassified abilities", zap.String("unit", unitID), zap.Strings("abilities", in.Unclassified))
	}

	for _, e := range in.Enemies {
		for _, ab := range in.Abilities {
			if ab.Timing != TimingAttack && ab.Timing != TimingDebuff {
				continue
			}
			if !a.b.CanUseAbilityOn(unitID, ab.ID, binding.UnitTarget(e.ID)) {
				continue
			}
			if chance := a.b.HitChance(unitID, ab.ID, e.ID); chance > 0 {
				in.Hittable = append(in.Hittable, Hit{TargetID: e.ID, AbilityID: ab.ID, Chance: chance})
			}
		}
	}
	in.Reachable = a.b.ReachableCells(unitID)

	movers := make([]spatial.Mover, 0, len(in.Enemies))
	enemyPos := make([]grid.Point, 0, len(in.Enemies))
	for _, e := range in.Enemies {
		mv := spatial.Mover{
			ID:             e.ID,
			Pos:            e.Pos,
			MP:             e.MP,
			AttackRange:    e.AttackRange,
			GapCloserRange: e.GapCloserRange,
		}
		for _, r := range a.b.ReachableCells(e.ID) {
			mv.Reach = append(mv.Reach, spatial.Step{Cell: r.Cell, Cost: r.Cost})
		}
		movers = append(movers, mv)
		enemyPos = append(enemyPos, e.Pos)
	}

	a.refreshWalkability(living)
	bounds := a.walk.Bounds()
	walk := a.walkableQuery()

	// Cover stamps query the binding, so they are built before the concurrent section.
	in.Cover = spatial.BuildCover(bounds, enemyPos, a.cfg.CoverStampRadius, a.b)

	enemies := toCombatants(in.Enemies)
	mates := toCombatants(in.Allies)
	// Area attacks never catch their caster, so clusters count teammates only.
	allies := append(mates[:len(mates):len(mates)], toCombatant(self))

	var g errgroup.Group
	g.Go(guard("influence", func() {
		in.Influence = spatial.BuildInfluence(bounds, enemies, allies, walk, a.cfg.Influence)
	}))
	g.Go(guard("predictive", func() {
		in.Predictive = spatial.BuildPredictive(bounds, movers, a.cfg.Predictive)
	}))
	g.Go(guard("clusters", func() {
		in.Clusters = spatial.DetectClusters(enemies, mates, a.cfg.Cluster)
	}))
	if err := g.Wait(); err != nil {
		a.logger.Warn("partial situation", zap.String("unit", unitID), zap.Error(err))
	}

	return Build(in), nil
}

// guard converts a panic inside a map build into an error so the remaining
// maps still complete.
func guard(name string, build func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("situation: building %s map: %v", name, r)
			}
		}()
		build()
		return nil
	}
}

func (a *Analyzer) refreshWalkability(positions []grid.Point) {
	switch {
	case a.walk == nil:
		a.walk = grid.NewWalkabilityCache(a.b, positions, a.cfg.Padding)
		a.logger.Debug("walkability window built",
			zap.Int("cells", a.walk.Recomputed()),
		)
	case a.walk.NeedsExpansion(positions, a.cfg.EdgeMargin):
		a.walk = a.walk.Expand(a.b, positions)
		a.logger.Debug("walkability window expanded",
			zap.Int("recomputed", a.walk.Recomputed()),
			zap.Int("area", a.walk.Bounds().Area()),
		)
	}
}

// walkableQuery answers from the current cache value; cells outside the window
// count as blocked. The value is captured so concurrent readers never observe a swap.
func (a *Analyzer) walkableQuery() grid.WalkableQuery {
	wc := a.walk
	return grid.WalkableFunc(func(c grid.Cell) bool {
		w, known := wc.Walkable(c)
		return known && w
	})
}

func toCombatant(u binding.Unit) spatial.Combatant {
	return spatial.Combatant{ID: u.ID, Pos: u.Pos, HPFraction: u.HPFraction(), Ranged: u.Ranged}
}

func toCombatants(us []binding.Unit) []spatial.Combatant {
	out := make([]spatial.Combatant, len(us))
	for i, u := range us {
		out[i] = toCombatant(u)
	}
	return out
}
