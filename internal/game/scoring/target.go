package scoring

import (
	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// distanceHorizon is the distance, in tiles, beyond which proximity contributes nothing.
const distanceHorizon = 20.0

// TargetEstimate carries the binding-derived predictions for one enemy.
type TargetEstimate struct {
	// DamageRatio is expected damage divided by the target's current HP.
	DamageRatio Factor
	HitChance   Factor
}

// TargetFactors is the normalised breakdown behind ScoreTarget.
type TargetFactors struct {
	HP             Factor
	Distance       Factor
	Threat         Factor
	Kill           Factor
	HitChance      Factor
	Debuff         Factor
	Specialization Factor
}

var killCurve = Logistic(15, 0.8)

// ThreatOf estimates how dangerous enemy is to self: its health scaled by
// whether it can reach self next turn. Unknown when enemy has no HP scale.
func ThreatOf(enemy, self binding.Unit) Factor {
	if enemy.MaxHP <= 0 {
		return Unknown()
	}
	reach := 0.5
	if enemy.Ranged || enemy.Pos.Dist(self.Pos) <= enemy.MP+enemy.AttackRange+enemy.GapCloserRange {
		reach = 1
	}
	return Known(enemy.HPFraction() * reach)
}

// Factors computes the target factors for enemy.
func Factors(sit *situation.Situation, enemy binding.Unit, est TargetEstimate) TargetFactors {
	f := TargetFactors{
		Distance:  Known(1 - enemy.Pos.Dist(sit.Self.Pos)/distanceHorizon),
		Threat:    ThreatOf(enemy, sit.Self),
		HitChance: est.HitChance,
		Debuff:    Known(0),
	}
	if enemy.MaxHP > 0 {
		f.HP = Known(1 - enemy.HPFraction())
	}
	if est.DamageRatio.IsKnown() {
		f.Kill = Known(killCurve.Evaluate(est.DamageRatio.Value()))
	}
	if len(enemy.Debuffs) > 0 {
		f.Debuff = Known(1)
	}
	if enemy.Specialist {
		f.Specialization = Known(1)
	} else {
		f.Specialization = Known(0)
	}
	return f
}

// ScoreTarget rates enemy as an attack target on a 0..100 scale plus the
// shared-target bonus from the team board.
func ScoreTarget(sit *situation.Situation, enemy binding.Unit, prof Profile, est TargetEstimate, cfg Config) float64 {
	f := Factors(sit, enemy, est)
	w := prof.Target
	sum := w.HP + w.Distance + w.Threat + w.Kill + w.HitChance + w.Debuff + w.Specialization
	if sum <= 0 {
		return 0
	}
	v := w.HP*f.HP.Value() +
		w.Distance*f.Distance.Value() +
		w.Threat*f.Threat.Value() +
		w.Kill*f.Kill.Value() +
		w.HitChance*f.HitChance.Value() +
		w.Debuff*f.Debuff.Value() +
		w.Specialization*f.Specialization.Value()
	score := 100 * v / sum
	if sit.Board.HasSharedTarget && sit.Board.SharedTarget == enemy.ID {
		score += cfg.SharedTargetBonus
	}
	return score
}

// ScoreAlly rates ally as a heal or buff recipient on a 0..100 scale.
func ScoreAlly(sit *situation.Situation, ally binding.Unit, prof Profile) float64 {
	w := prof.Ally
	sum := w.MissingHP + w.Threat + w.Role + w.Distance
	if sum <= 0 {
		return 0
	}
	missing := Unknown()
	if ally.MaxHP > 0 {
		missing = Known(1 - ally.HPFraction())
	}
	threat := Unknown()
	if sit.Influence != nil {
		t := sit.Influence.ThreatAt(ally.Pos)
		threat = Known(t / (1 + t))
	}
	var role float64
	switch situation.ParseRole(ally.Role) {
	case situation.RoleTank:
		role = 1
	case situation.RoleSupport:
		role = 0.8
	default:
		role = 0.6
	}
	dist := Known(1 - ally.Pos.Dist(sit.Self.Pos)/distanceHorizon)

	v := w.MissingHP*missing.Value() + w.Threat*threat.Value() + w.Role*role + w.Distance*dist.Value()
	return 100 * v / sum
}
