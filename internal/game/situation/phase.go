package situation

import "strings"

// Role is the combat archetype that reweights scoring priorities.
type Role int

const (
	RoleDPS Role = iota
	RoleTank
	RoleSupport
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleTank:
		return "tank"
	case RoleSupport:
		return "support"
	default:
		return "dps"
	}
}

// ParseRole maps a role hint to a Role. Unknown and empty hints yield RoleDPS.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tank", "melee", "aggressive":
		return RoleTank
	case "support", "healer":
		return RoleSupport
	default:
		return RoleDPS
	}
}

// Phase is the detected stage of the combat.
type Phase int

const (
	PhaseMidgame Phase = iota
	PhaseOpening
	PhaseCleanup
	PhaseDesperate
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseCleanup:
		return "cleanup"
	case PhaseDesperate:
		return "desperate"
	default:
		return "midgame"
	}
}

// PhaseConfig holds the phase detection thresholds.
type PhaseConfig struct {
	DesperateAllyHP float64
	DesperateSelfHP float64
	// CleanupEnemies: at or below this many living enemies the phase is Cleanup.
	CleanupEnemies int
	// OpeningAPRatio: AP at or above this fraction of max counts as a fresh turn.
	OpeningAPRatio float64
}

// DefaultPhaseConfig returns the thresholds used when no configuration is supplied.
func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{
		DesperateAllyHP: 0.35,
		DesperateSelfHP: 0.25,
		CleanupEnemies:  1,
		OpeningAPRatio:  0.9,
	}
}

// DetectPhase classifies the combat stage. The checks run in priority order:
// Desperate, Cleanup, Opening, then Midgame.
func DetectPhase(cfg PhaseConfig, allyAvgHP, selfHP float64, enemies, actionsTaken int, ap, maxAP float64) Phase {
	switch {
	case allyAvgHP < cfg.DesperateAllyHP || selfHP < cfg.DesperateSelfHP:
		return PhaseDesperate
	case enemies <= cfg.CleanupEnemies:
		return PhaseCleanup
	case actionsTaken == 0 && maxAP > 0 && ap >= cfg.OpeningAPRatio*maxAP:
		return PhaseOpening
	default:
		return PhaseMidgame
	}
}
