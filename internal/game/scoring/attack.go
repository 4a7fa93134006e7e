package scoring

import (
	"math"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// Config holds the fixed bonuses and penalties used by the evaluators.
type Config struct {
	BaseAttack float64
	// AoEHitBonus is added per enemy hit beyond the primary target.
	AoEHitBonus float64
	// FriendlyFirePenalty is subtracted per ally caught in a blast.
	FriendlyFirePenalty float64
	// MaxAlliesInAoE vetoes any blast that would catch more allies.
	MaxAlliesInAoE      int
	SharedTargetBonus   float64
	OpportunityPenalty  float64
	APEfficiencyWeight  float64
	HitChanceWeight     float64
	RangeFitBonus       float64
	PointBlankPenalty   float64
	ResourceBuffPerUnit float64
}

// DefaultConfig returns the evaluator tuning used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		BaseAttack:          10,
		AoEHitBonus:         15,
		FriendlyFirePenalty: 25,
		MaxAlliesInAoE:      0,
		SharedTargetBonus:   10,
		OpportunityPenalty:  15,
		APEfficiencyWeight:  10,
		HitChanceWeight:     10,
		RangeFitBonus:       5,
		PointBlankPenalty:   5,
		ResourceBuffPerUnit: 8,
	}
}

// AttackInput describes one attack option: an ability, its target, where the
// attacker will stand, and the engine's predictions.
type AttackInput struct {
	Ability situation.Ability
	Target  binding.Unit
	// From is where the attacker stands when it fires.
	From      grid.Point
	Damage    binding.DamageRange
	HitChance Factor
	// ExtraHits counts enemies other than Target inside the blast.
	ExtraHits int
	// AlliesHit counts allies inside the blast. The attacker is never caught by
	// its own blast and is not counted.
	AlliesHit int
}

// AttackBreakdown itemises an attack score.
type AttackBreakdown struct {
	Base         float64
	Damage       float64
	Kill         float64
	Efficiency   float64
	Hit          float64
	RangeFit     float64
	Role         float64
	Opportunity  float64
	AoE          float64
	FriendlyFire float64
	Shared       float64
}

// Total returns the sum of every term.
func (b AttackBreakdown) Total() float64 {
	return b.Base + b.Damage + b.Kill + b.Efficiency + b.Hit + b.RangeFit + b.Role +
		b.Opportunity + b.AoE + b.FriendlyFire + b.Shared
}

var (
	damageCurve     = Logistic(8, 0.5).Scale(0, 100)
	killBonusCurve  = Logistic(15, 0.8).Scale(0, 50)
	efficiencyCurve = Linear()
	hitCurve        = Quadratic()
)

// meleeReach is the distance within which an enemy threatens an opportunity attack.
const meleeReach = 1.5

// ScoreAttack rates one attack option.
//
// Postcondition: a blast catching more than cfg.MaxAlliesInAoE allies is vetoed.
func ScoreAttack(sit *situation.Situation, in AttackInput, prof Profile, cfg Config) (Score, AttackBreakdown) {
	var b AttackBreakdown
	if in.Target.Dead || in.Target.HP <= 0 {
		return veto("target dead"), b
	}
	if in.Ability.AoERadius > 0 && in.AlliesHit > cfg.MaxAlliesInAoE {
		return veto("friendly fire"), b
	}

	ratio := in.Damage.Average() / in.Target.HP
	b.Base = cfg.BaseAttack
	b.Damage = damageCurve.Evaluate(ratio)
	b.Kill = killBonusCurve.Evaluate(ratio)

	if sit.AP > 0 {
		b.Efficiency = cfg.APEfficiencyWeight * efficiencyCurve.Evaluate(1-in.Ability.APCost/sit.AP)
	} else {
		b.Efficiency = cfg.APEfficiencyWeight * Neutral
	}
	b.Hit = cfg.HitChanceWeight * hitCurve.Evaluate(in.HitChance.Value())

	dist := in.From.Dist(in.Target.Pos)
	if in.Ability.IsMelee() {
		if dist <= math.Max(in.Ability.Range, meleeReach) {
			b.RangeFit = cfg.RangeFitBonus
		}
		b.Role = prof.MeleeBias
	} else {
		switch {
		case dist < 2:
			b.RangeFit = -cfg.PointBlankPenalty
		case dist <= in.Ability.Range:
			b.RangeFit = cfg.RangeFitBonus
		}
		b.Role = prof.RangedBias
		if engaged(sit, in.From, in.Target.ID) {
			b.Opportunity = -cfg.OpportunityPenalty
		}
	}

	if in.Ability.AoERadius > 0 {
		b.AoE = float64(in.ExtraHits) * cfg.AoEHitBonus
		b.FriendlyFire = -float64(in.AlliesHit) * cfg.FriendlyFirePenalty
	}
	if sit.Board.HasSharedTarget && sit.Board.SharedTarget == in.Target.ID {
		b.Shared = cfg.SharedTargetBonus
	}

	return Score{Value: math.Max(0, b.Total())}, b
}

// engaged reports whether an enemy other than exclude stands in melee reach of p.
func engaged(sit *situation.Situation, p grid.Point, exclude string) bool {
	for _, e := range sit.Enemies {
		if e.ID != exclude && !e.Ranged && e.Pos.Dist(p) <= meleeReach {
			return true
		}
	}
	return false
}
