package plan

import (
	"fmt"

	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// ReplanConfig holds the thresholds of the urgent and opportunistic triggers.
type ReplanConfig struct {
	// HPDropThreshold is the HP fraction lost since plan creation that forces an urgent replan.
	HPDropThreshold float64
	// RangedSafetyMargin is the distance a ranged unit keeps from the nearest enemy.
	RangedSafetyMargin float64
	// HittableIncrease is how many more hittable enemies count as a material change.
	HittableIncrease int
}

// DefaultReplanConfig returns the thresholds used when no configuration is supplied.
func DefaultReplanConfig() ReplanConfig {
	return ReplanConfig{HPDropThreshold: 0.25, RangedSafetyMargin: 3, HittableIncrease: 2}
}

// Urgency ranks replan triggers.
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyOpportunistic
	UrgencyUrgent
	UrgencyMust
)

// String returns the urgency's name.
func (u Urgency) String() string {
	switch u {
	case UrgencyOpportunistic:
		return "opportunistic"
	case UrgencyUrgent:
		return "urgent"
	case UrgencyMust:
		return "must"
	default:
		return "none"
	}
}

// Decision is the result of NeedsReplan.
type Decision struct {
	Needed  bool
	Urgency Urgency
	Reason  string
}

func replan(u Urgency, format string, args ...any) Decision {
	return Decision{Needed: true, Urgency: u, Reason: fmt.Sprintf(format, args...)}
}

// resourceEpsilon absorbs float noise when comparing AP and MP.
const resourceEpsilon = 1e-9

// NeedsReplan checks, in priority order, whether the remaining queue should be
// discarded and rebuilt against sit.
//
// Postcondition: for a PriorityCritical plan only UrgencyMust decisions are returned.
func (p *TurnPlan) NeedsReplan(sit *situation.Situation, cfg ReplanConfig) Decision {
	if d := p.mustReplan(sit); d.Needed {
		return d
	}
	if p.Priority == PriorityCritical {
		return Decision{}
	}

	start := p.Initial
	if drop := start.HPFraction - sit.HPFraction; drop >= cfg.HPDropThreshold && cfg.HPDropThreshold > 0 {
		return replan(UrgencyUrgent, "hp dropped %.2f since plan creation", drop)
	}
	if start.Ranged && sit.HasNearestEnemy && sit.NearestEnemyDist < cfg.RangedSafetyMargin && start.NearestEnemyDist >= cfg.RangedSafetyMargin {
		return replan(UrgencyUrgent, "enemy inside ranged safety margin (%.1f)", sit.NearestEnemyDist)
	}

	if sit.AP > start.AP+resourceEpsilon {
		return replan(UrgencyOpportunistic, "ap increased %.1f -> %.1f", start.AP, sit.AP)
	}
	if sit.MP > start.MP+resourceEpsilon {
		return replan(UrgencyOpportunistic, "mp increased %.1f -> %.1f", start.MP, sit.MP)
	}
	if sit.ZeroCostAttacks > start.ZeroCostAttacks {
		return replan(UrgencyOpportunistic, "new zero-cost attack")
	}
	if n := len(sit.Hittable); n > start.HittableCount && (start.HittableCount == 0 || n-start.HittableCount >= cfg.HittableIncrease) {
		return replan(UrgencyOpportunistic, "hittable enemies %d -> %d", start.HittableCount, n)
	}
	return Decision{}
}

func (p *TurnPlan) mustReplan(sit *situation.Situation) Decision {
	if len(sit.Enemies) == 0 && p.HasOffensiveQueued() {
		return replan(UrgencyMust, "all enemies dead")
	}
	next, ok := p.PeekNextAction()
	if !ok {
		return Decision{}
	}
	if next.AbilityID != "" && !sit.AbilityUsable(next.AbilityID) {
		return replan(UrgencyMust, "ability %q no longer usable", next.AbilityID)
	}
	if !next.TargetsUnit() {
		return Decision{}
	}
	id := next.Target.UnitID
	var valid bool
	switch next.Type {
	case ActionAttack, ActionDebuff:
		_, valid = sit.Enemy(id)
	case ActionHeal, ActionBuff, ActionSupport:
		_, valid = sit.Ally(id)
	default:
		valid = sit.UnitAlive(id)
	}
	if !valid {
		return replan(UrgencyMust, "target %q no longer valid", id)
	}
	return Decision{}
}
