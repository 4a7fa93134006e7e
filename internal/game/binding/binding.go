// Package binding declares the narrow read-only interface through which the
// decision core consumes the host game engine: roster, abilities, damage
// prediction, navigation, sight, and turn identity.
//
// The core never issues engine commands; it only reads through Binding.
package binding

import "github.com/cory-johannsen/tactician/internal/game/grid"

//go:generate go tool mockgen -destination=./mocks/binding_mock.go -package=mocks . Binding

// Unit is a read-only snapshot of one combatant as reported by the engine.
type Unit struct {
	ID      string
	Name    string
	Faction string
	// Role is the archetype hint ("tank", "dps", "support"); empty means unspecified.
	Role string
	Pos  grid.Point

	HP    float64
	MaxHP float64
	AP    float64
	MaxAP float64
	MP    float64
	MaxMP float64

	// Ranged is true when the unit's primary weapon is a ranged weapon.
	Ranged      bool
	AttackRange float64
	// GapCloserRange is the extra distance a charge/leap ability adds to a turn's
	// reach; zero when the unit has none.
	GapCloserRange float64
	// Specialist marks high-value targets (healers, casters).
	Specialist bool

	Ammo    int
	MaxAmmo int

	// Buffs and Debuffs are effect identifiers currently active on the unit.
	Buffs   []string
	Debuffs []string

	Dead         bool
	Controllable bool
}

// HPFraction returns HP / MaxHP in [0, 1]; 0 when MaxHP is not positive.
func (u Unit) HPFraction() float64 {
	if u.MaxHP <= 0 {
		return 0
	}
	f := u.HP / u.MaxHP
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// HasEffect reports whether id is among the unit's buffs or debuffs.
func (u Unit) HasEffect(id string) bool {
	for _, b := range u.Buffs {
		if b == id {
			return true
		}
	}
	for _, d := range u.Debuffs {
		if d == id {
			return true
		}
	}
	return false
}

// Ability is a static description of something a unit can do.
type Ability struct {
	ID     string
	Name   string
	APCost float64
	MPCost float64
	// Range is the maximum cast distance in tiles; values <= 1.5 are melee reach.
	Range float64
	// AoERadius is the blast radius for area abilities; zero for single target.
	AoERadius float64

	TargetsEnemy bool
	TargetsAlly  bool
	TargetsSelf  bool
	TargetsPoint bool

	// Effect describes the ability's capability and drives timing classification.
	Damage     bool
	HealAmount float64
	// EffectID is the buff/debuff identifier the ability applies, if any.
	EffectID    string
	Debuff      bool
	Reload      bool
	Taunt       bool
	Marker      bool
	Defensive   bool
	PreAttack   bool
	GapCloser   bool
	Ultimate    bool
	GrantsAP    float64
	GrantsMP    float64
	Duration    int
	Description string
}

// IsMelee reports whether the ability's reach is adjacent-only.
func (a Ability) IsMelee() bool { return a.Range <= 1.5 }

// Target identifies what an ability is aimed at: a unit or a point.
type Target struct {
	UnitID string
	Point  grid.Point
	// IsPoint is true when Point, not UnitID, is the aim.
	IsPoint bool
}

// UnitTarget returns a Target aimed at the unit with the given ID.
func UnitTarget(id string) Target { return Target{UnitID: id} }

// PointTarget returns a Target aimed at p.
func PointTarget(p grid.Point) Target { return Target{Point: p, IsPoint: true} }

// DamageRange is the engine's predicted damage window for one ability use.
type DamageRange struct {
	Min float64
	Max float64
}

// Average returns the midpoint of the range.
func (d DamageRange) Average() float64 { return (d.Min + d.Max) / 2 }

// Reachable is a tile a unit can end its movement on, with the movement cost to get there.
type Reachable struct {
	Cell grid.Cell
	Cost float64
}

// FailureReason classifies why the engine rejected or aborted a command.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureUnknown
	FailureDuplicateBuff
	FailureTargetUnreachable
	FailurePathBlocked
	FailureTargetInvalid
	FailureTargetDead
	FailureAbilityUnavailable
	FailureOutOfRange
	FailureNoResources
	FailureUnitIncapacitated
)

// String returns the snake_case name of r.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureDuplicateBuff:
		return "duplicate_buff"
	case FailureTargetUnreachable:
		return "target_unreachable"
	case FailurePathBlocked:
		return "path_blocked"
	case FailureTargetInvalid:
		return "target_invalid"
	case FailureTargetDead:
		return "target_dead"
	case FailureAbilityUnavailable:
		return "ability_unavailable"
	case FailureOutOfRange:
		return "out_of_range"
	case FailureNoResources:
		return "no_resources"
	case FailureUnitIncapacitated:
		return "unit_incapacitated"
	default:
		return "unknown"
	}
}

// CommandStatus reports the state of the most recent command issued for a unit.
type CommandStatus struct {
	// Pending is true while the host is still resolving the command.
	Pending bool
	// Failed is true when the command resolved unsuccessfully.
	Failed bool
	Reason FailureReason
	Detail string
}

// RosterQuery exposes unit membership and state.
type RosterQuery interface {
	// Units returns every unit in the combat, living or dead, in a stable order.
	Units() []Unit
	// Unit returns the unit with the given ID.
	Unit(id string) (Unit, bool)
}

// AbilityQuery exposes ability inventories and legality checks.
type AbilityQuery interface {
	Abilities(unitID string) []Ability
	IsAbilityAvailable(unitID, abilityID string) bool
	CanUseAbilityOn(unitID, abilityID string, target Target) bool
}

// PredictionQuery exposes damage and hit-chance prediction.
type PredictionQuery interface {
	PredictDamage(unitID, abilityID, targetID string) DamageRange
	// HitChance returns a probability in [0, 1].
	HitChance(unitID, abilityID, targetID string) float64
}

// NavigationQuery exposes the navigation grid.
type NavigationQuery interface {
	Walkable(c grid.Cell) bool
	// ReachableCells enumerates where the unit can end a move this turn.
	ReachableCells(unitID string) []Reachable
}

// SightQuery exposes line-of-sight and cover classification.
type SightQuery interface {
	HasLineOfSight(from, to grid.Point) bool
	// CoverAt returns the protection at `at` against fire from `from`:
	// 0 is fully exposed, 1 is full cover.
	CoverAt(at, from grid.Point) float64
}

// Oracle is the prediction and sight surface a planner consults when it
// weighs where to stand and whom to hit.
type Oracle interface {
	PredictionQuery
	SightQuery
}

// TurnQuery exposes round/turn identity and command resolution state.
type TurnQuery interface {
	ActingUnit() (unitID string, round int)
	CommandStatus(unitID string) CommandStatus
}

// Binding is the complete engine surface consumed by the decision core.
type Binding interface {
	RosterQuery
	AbilityQuery
	PredictionQuery
	NavigationQuery
	SightQuery
	TurnQuery
}
