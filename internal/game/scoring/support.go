package scoring

import (
	"math"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// phaseMultipliers scales each timing category per combat phase. Missing
// entries default to 1.
var phaseMultipliers = map[situation.Phase]map[situation.AbilityTiming]float64{
	situation.PhaseOpening: {
		situation.TimingPermanentBuff: 1.5,
		situation.TimingPreAttackBuff: 1.2,
		situation.TimingEmergencyBuff: 0.6,
		situation.TimingHeal:          0.7,
		situation.TimingDebuff:        1.2,
		situation.TimingTaunt:         1.2,
	},
	situation.PhaseCleanup: {
		situation.TimingPermanentBuff: 0.3,
		situation.TimingPreAttackBuff: 0.8,
		situation.TimingEmergencyBuff: 0.8,
		situation.TimingHeal:          0.8,
		situation.TimingDebuff:        0.4,
		situation.TimingTaunt:         0.5,
	},
	situation.PhaseDesperate: {
		situation.TimingPermanentBuff: 0.5,
		situation.TimingPreAttackBuff: 0.7,
		situation.TimingEmergencyBuff: 1.5,
		situation.TimingHeal:          1.5,
		situation.TimingDebuff:        0.8,
		situation.TimingTaunt:         1.3,
	},
}

// PhaseMultiplier returns the scale applied to timing during phase.
func PhaseMultiplier(phase situation.Phase, timing situation.AbilityTiming) float64 {
	if m, ok := phaseMultipliers[phase][timing]; ok {
		return m
	}
	return 1
}

var (
	urgencyCurve       = InverseLogistic(10, 0.4)
	emergencyBuffCurve = InverseLogistic(12, 0.35)
)

// ScoreBuff rates casting a buff on target.
//
// Postcondition: vetoed when target already carries the buff's effect.
// Postcondition: a pre-attack buff scores near zero when no attack is available.
func ScoreBuff(sit *situation.Situation, ab situation.Ability, target binding.Unit, prof Profile, cfg Config) Score {
	if target.Dead {
		return veto("target dead")
	}
	if ab.EffectID != "" && target.HasEffect(ab.EffectID) {
		return veto("duplicate buff")
	}

	var v float64
	switch ab.Timing {
	case situation.TimingPreAttackBuff:
		if !sit.HasAttack {
			return Score{Value: 0.5, Reason: "no attack to amplify"}
		}
		v = 30
		if sit.HasHittableEnemy {
			v += 10
		}
		if sit.AP-ab.APCost < cheapestAttack(sit) {
			// The buff would leave nothing to spend it on this turn.
			v *= 0.2
		}
	case situation.TimingPermanentBuff:
		v = 25
	case situation.TimingEmergencyBuff:
		v = 50 * emergencyBuffCurve.Evaluate(target.HPFraction())
		if sit.InDanger {
			v += 10
		}
	default:
		v = 10
	}
	v += cfg.ResourceBuffPerUnit * (ab.GrantsAP + ab.GrantsMP)
	if target.ID != sit.Self.ID {
		v += 0.2 * ScoreAlly(sit, target, prof)
	}
	return Score{Value: v * PhaseMultiplier(sit.Phase, ab.Timing)}
}

// ScoreHeal rates casting a heal on target. Urgency rises smoothly as HP
// falls; healing beyond the missing HP is penalised.
//
// Postcondition: vetoed when target is at full HP or another unit reserved the heal.
func ScoreHeal(sit *situation.Situation, ab situation.Ability, target binding.Unit, prof Profile, cfg Config) Score {
	if target.Dead {
		return veto("target dead")
	}
	if target.MaxHP <= 0 || target.HP >= target.MaxHP {
		return veto("target at full health")
	}
	if sit.Board.ReservedByOther(blackboard.ReserveHeal, target.ID, sit.Self.ID) {
		return veto("heal reserved")
	}
	hp := target.HPFraction()
	v := 60 * urgencyCurve.Evaluate(hp)
	missing := target.MaxHP - target.HP
	if ab.HealAmount > missing && ab.HealAmount > 0 {
		v -= 20 * (ab.HealAmount - missing) / ab.HealAmount
	}
	if target.ID != sit.Self.ID {
		v += 0.2 * ScoreAlly(sit, target, prof)
	}
	return Score{Value: math.Max(0, v) * PhaseMultiplier(sit.Phase, situation.TimingHeal)}
}

// ScoreDebuff rates applying a debuff or taunt to an enemy.
//
// Postcondition: vetoed when the target already carries the effect, and for a
// taunt another unit has reserved.
func ScoreDebuff(sit *situation.Situation, ab situation.Ability, target binding.Unit, prof Profile, cfg Config) Score {
	if target.Dead {
		return veto("target dead")
	}
	if ab.EffectID != "" && target.HasEffect(ab.EffectID) {
		return veto("duplicate debuff")
	}
	threat := ThreatOf(target, sit.Self).Value()
	var v float64
	if ab.Timing == situation.TimingTaunt {
		if sit.Board.ReservedByOther(blackboard.ReserveTaunt, target.ID, sit.Self.ID) {
			return veto("taunt reserved")
		}
		v = 20 + 20*threat
		if sit.Role == situation.RoleTank {
			v += 15
		}
	} else {
		// Debuffs on nearly dead targets are wasted.
		v = (20 + 20*threat) * (0.25 + 0.75*target.HPFraction())
	}
	if sit.Board.HasSharedTarget && sit.Board.SharedTarget == target.ID {
		v += cfg.SharedTargetBonus / 2
	}
	return Score{Value: v * PhaseMultiplier(sit.Phase, ab.Timing)}
}

func cheapestAttack(sit *situation.Situation) float64 {
	best := math.Inf(1)
	for _, a := range sit.Attacks {
		best = math.Min(best, a.APCost)
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}
