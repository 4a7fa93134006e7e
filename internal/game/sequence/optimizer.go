// Package sequence compares whole multi-step alternatives for one target:
// attacking in place, repositioning before attacking, or not attacking at all.
// Each alternative is simulated to its end state and scored on offense,
// safety, efficiency, and role fit.
package sequence

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/scoring"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// Kind identifies a sequence shape.
type Kind int

const (
	DirectAttack Kind = iota
	RetreatThenAttack
	ApproachThenAttack
	Skip
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case DirectAttack:
		return "direct_attack"
	case RetreatThenAttack:
		return "retreat_then_attack"
	case ApproachThenAttack:
		return "approach_then_attack"
	default:
		return "skip"
	}
}

// Candidate is one simulated alternative.
type Candidate struct {
	Kind Kind
	// MoveTo is meaningful only when HasMove is true.
	MoveTo   grid.Cell
	MoveCost float64
	HasMove  bool
	// Ability and TargetID are empty for Skip.
	Ability  situation.Ability
	TargetID string

	EndPos      grid.Point
	RemainingAP float64
	RemainingMP float64

	Offense    float64
	Safety     float64
	Efficiency float64
	RoleFit    float64
	Score      float64

	// Forced marks a Skip that was the only alternative: no attack could be
	// fired from any cell within budget, so scoring ruled nothing out.
	Forced bool
}

// IsAttack reports whether the candidate fires an ability.
func (c Candidate) IsAttack() bool { return c.Kind != Skip }

// offenseScale maps a raw attack score to the 0..1 offense component.
const offenseScale = 150.0

// Optimizer enumerates and scores sequences.
type Optimizer struct {
	oracle   binding.Oracle
	profiles scoring.Profiles
	cfg      scoring.Config
	logger   *zap.Logger
}

// NewOptimizer constructs an Optimizer.
//
// Precondition: oracle must not be nil.
func NewOptimizer(oracle binding.Oracle, profiles scoring.Profiles, cfg scoring.Config, logger *zap.Logger) *Optimizer {
	if oracle == nil {
		panic("sequence.NewOptimizer: oracle must not be nil")
	}
	if profiles == nil {
		profiles = scoring.DefaultProfiles()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{oracle: oracle, profiles: profiles, cfg: cfg, logger: logger.Named("sequence")}
}

// Enumerate returns every feasible alternative for attacking target with one
// of attacks, followed by the Skip alternative. Skip is always present.
//
// Postcondition: every attack alternative fires from a cell with line of
// sight to target and a positive estimated hit chance; DirectAttack is offered
// only when that cell is the unit's own.
func (o *Optimizer) Enumerate(sit *situation.Situation, target binding.Unit, attacks []situation.Ability) []Candidate {
	prof := o.profiles.For(sit.Role)
	selfPos := sit.Self.Pos
	var out []Candidate

	for _, ab := range attacks {
		if ab.APCost > sit.AP {
			continue
		}
		mpBudget := sit.MP - ab.MPCost
		if mpBudget < 0 {
			continue
		}
		clearShot := func(p grid.Point) bool {
			return inRange(p, target.Pos, ab) && o.oracle.HasLineOfSight(p, target.Pos)
		}
		fireFrom := func(kind Kind, c grid.Cell, cost float64) (Candidate, bool) {
			end := c.Center()
			hit := o.hitFrom(sit, ab, target, end)
			if hit.Value() <= 0 {
				return Candidate{}, false
			}
			return o.finish(sit, prof, Candidate{
				Kind: kind, Ability: ab, TargetID: target.ID,
				MoveTo: c, MoveCost: cost, HasMove: true, EndPos: end,
				RemainingAP: sit.AP - ab.APCost, RemainingMP: mpBudget - cost,
				Offense: o.offense(sit, ab, target, end, hit, prof),
			}), true
		}

		if hit := o.hitFrom(sit, ab, target, selfPos); clearShot(selfPos) && hit.Value() > 0 {
			out = append(out, o.finish(sit, prof, Candidate{
				Kind:        DirectAttack,
				Ability:     ab,
				TargetID:    target.ID,
				EndPos:      selfPos,
				RemainingAP: sit.AP - ab.APCost,
				RemainingMP: mpBudget,
				Offense:     o.offense(sit, ab, target, selfPos, hit, prof),
			}))
			if mpBudget <= 0 || sit.InDanger {
				here := sit.SafetyAt(selfPos)
				if c, cost, ok := o.bestCell(sit, mpBudget, clearShot,
					func(p grid.Point, _ float64) float64 { return sit.SafetyAt(p) }); ok && sit.SafetyAt(c.Center()) > here {
					if cand, ok := fireFrom(RetreatThenAttack, c, cost); ok {
						out = append(out, cand)
					}
				}
			}
			continue
		}

		// Out of range, or in range without a clear shot: reposition first.
		if c, cost, ok := o.bestCell(sit, mpBudget, clearShot,
			func(p grid.Point, cost float64) float64 { return sit.SafetyAt(p) - cost/math.Max(sit.MP, 1) }); ok {
			if cand, ok := fireFrom(ApproachThenAttack, c, cost); ok {
				out = append(out, cand)
			}
		}
	}

	skip := Candidate{Kind: Skip, EndPos: selfPos, RemainingAP: sit.AP, RemainingMP: sit.MP, Forced: len(out) == 0}
	if sit.InDanger {
		if c, cost, ok := o.bestCell(sit, sit.MP, func(grid.Point) bool { return true },
			func(p grid.Point, _ float64) float64 { return sit.SafetyAt(p) }); ok && sit.SafetyAt(c.Center()) > sit.SafetyAt(selfPos) {
			skip.MoveTo, skip.MoveCost, skip.HasMove, skip.EndPos = c, cost, true, c.Center()
			skip.RemainingMP = sit.MP - cost
		}
	}
	out = append(out, o.finish(sit, prof, skip))
	return out
}

// Best returns the highest-scoring alternative. Ties keep enumeration order,
// so an attack beats Skip on an exact tie.
func (o *Optimizer) Best(sit *situation.Situation, target binding.Unit, attacks []situation.Ability) Candidate {
	cands := o.Enumerate(sit, target, attacks)
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	o.logger.Debug("sequence chosen",
		zap.String("unit", sit.Self.ID),
		zap.String("target", target.ID),
		zap.Stringer("kind", best.Kind),
		zap.Float64("score", best.Score),
		zap.Int("alternatives", len(cands)),
	)
	return best
}

func (o *Optimizer) offense(sit *situation.Situation, ab situation.Ability, target binding.Unit, from grid.Point, hit scoring.Factor, prof scoring.Profile) float64 {
	in := scoring.AttackInput{
		Ability:   ab,
		Target:    target,
		From:      from,
		Damage:    o.oracle.PredictDamage(sit.Self.ID, ab.ID, target.ID),
		HitChance: hit,
	}
	s, _ := scoring.ScoreAttack(sit, in, prof, o.cfg)
	if s.Vetoed {
		return 0
	}
	return math.Min(1, s.Value/offenseScale)
}

// hitFrom estimates the chance to hit target with ab when firing from at.
// From the unit's own position it is the engine's prediction. Elsewhere it is
// zero without line of sight, otherwise the prediction rescaled by how exposed
// the target is from at relative to here; it is unknown when there is no shot
// from here to scale.
func (o *Optimizer) hitFrom(sit *situation.Situation, ab situation.Ability, target binding.Unit, at grid.Point) scoring.Factor {
	here := o.oracle.HitChance(sit.Self.ID, ab.ID, target.ID)
	if at == sit.Self.Pos {
		return scoring.Known(here)
	}
	if !o.oracle.HasLineOfSight(at, target.Pos) {
		return scoring.Known(0)
	}
	exposedHere := 1 - o.oracle.CoverAt(target.Pos, sit.Self.Pos)
	if here <= 0 || exposedHere <= 0 || !o.oracle.HasLineOfSight(sit.Self.Pos, target.Pos) {
		return scoring.Unknown()
	}
	return scoring.Known(here * (1 - o.oracle.CoverAt(target.Pos, at)) / exposedHere)
}

// finish fills the safety, efficiency, and role-fit components and the weighted score.
func (o *Optimizer) finish(sit *situation.Situation, prof scoring.Profile, c Candidate) Candidate {
	c.Safety = sit.SafetyAt(c.EndPos)
	if c.Kind == Skip {
		c.Efficiency = scoring.Neutral
	} else if total := sit.AP + sit.MP; total > 0 {
		c.Efficiency = (c.RemainingAP + c.RemainingMP) / total
	}
	c.RoleFit = roleFit(sit, c)

	vulnerability := 1 + (1 - sit.HPFraction)
	w := prof.Sequence
	c.Score = w.Offense*c.Offense + w.Safety*c.Safety*vulnerability + w.Efficiency*c.Efficiency + w.RoleFit*c.RoleFit
	return c
}

func roleFit(sit *situation.Situation, c Candidate) float64 {
	switch sit.Role {
	case situation.RoleTank:
		if c.Kind == Skip {
			return 0.1
		}
		if c.Ability.IsMelee() {
			return 1
		}
		return 0.6
	case situation.RoleSupport:
		if c.Kind == Skip {
			if sit.InDanger {
				return 0.7
			}
			return 0.4
		}
		return 0.5
	default:
		switch c.Kind {
		case Skip:
			return 0.2
		case RetreatThenAttack:
			if !c.Ability.IsMelee() {
				return 1
			}
		}
		return 0.9
	}
}

// bestCell returns the reachable cell within budget that satisfies ok and
// maximises value. Cells another unit has reserved as a move destination are skipped.
func (o *Optimizer) bestCell(sit *situation.Situation, budget float64, ok func(grid.Point) bool, value func(grid.Point, float64) float64) (grid.Cell, float64, bool) {
	var (
		best     grid.Cell
		bestCost float64
		bestVal  = math.Inf(-1)
		found    bool
	)
	self := sit.Self.Pos.Cell()
	for _, r := range sit.Reachable {
		if r.Cell == self || r.Cost > budget {
			continue
		}
		if sit.Board.ReservedByOther(blackboard.ReserveMove, blackboard.CellKey(r.Cell), sit.Self.ID) {
			continue
		}
		p := r.Cell.Center()
		if !ok(p) {
			continue
		}
		if v := value(p, r.Cost); v > bestVal {
			best, bestCost, bestVal, found = r.Cell, r.Cost, v, true
		}
	}
	return best, bestCost, found
}

// meleeReach is the distance at which a melee ability connects.
const meleeReach = 1.5

func inRange(from, to grid.Point, ab situation.Ability) bool {
	return from.Dist(to) <= math.Max(ab.Range, meleeReach)
}
