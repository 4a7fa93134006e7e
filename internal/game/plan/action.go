// Package plan holds the ordered, resource-budgeted action queue built for one
// unit's turn and the predicate that decides when that queue is stale.
package plan

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
)

// ErrAlreadyExecuted is returned when an action's outcome is recorded twice.
var ErrAlreadyExecuted = errors.New("action already executed")

// ActionType is the kind of a planned action.
type ActionType int

const (
	ActionMove ActionType = iota
	ActionAttack
	ActionBuff
	ActionHeal
	ActionDebuff
	ActionReload
	ActionSupport
	ActionEndTurn
)

// String returns the action type's name.
func (t ActionType) String() string {
	switch t {
	case ActionMove:
		return "move"
	case ActionAttack:
		return "attack"
	case ActionBuff:
		return "buff"
	case ActionHeal:
		return "heal"
	case ActionDebuff:
		return "debuff"
	case ActionReload:
		return "reload"
	case ActionSupport:
		return "support"
	case ActionEndTurn:
		return "end_turn"
	default:
		return fmt.Sprintf("action(%d)", int(t))
	}
}

// IsOffensive reports whether the action is aimed at an enemy.
func (t ActionType) IsOffensive() bool {
	return t == ActionAttack || t == ActionDebuff
}

// FailurePolicy decides what a failed action does to the rest of its group.
type FailurePolicy int

const (
	// SkipAction drops only the failed action.
	SkipAction FailurePolicy = iota
	// PurgeGroup also drops every queued action sharing the failed action's group.
	PurgeGroup
)

// PlannedAction is one step of a turn plan.
//
// Invariant: the executed mark is set at most once.
type PlannedAction struct {
	ID        uuid.UUID
	Type      ActionType
	AbilityID string
	Target    binding.Target
	APCost    float64
	MPCost    float64
	Rationale string
	// Group ties dependent actions together, e.g. a move and the attack it sets up.
	Group     string
	OnFailure FailurePolicy
	// Claim is taken on the team board when the plan is adopted.
	Claim *Claim
	// Marks are strategic context keys recorded once the action succeeds.
	Marks []string

	executed  bool
	succeeded bool
}

// Claim is a blackboard reservation held by a planned action.
type Claim struct {
	Kind blackboard.ReservationKind
	Key  string
}

// NewAction returns an action of type t with a fresh ID.
func NewAction(t ActionType, rationale string) *PlannedAction {
	return &PlannedAction{ID: uuid.New(), Type: t, Rationale: rationale}
}

// MarkExecuted records the action's outcome.
//
// Postcondition: returns ErrAlreadyExecuted if an outcome was already recorded;
// the first outcome is kept.
func (a *PlannedAction) MarkExecuted(succeeded bool) error {
	if a.executed {
		return fmt.Errorf("plan.PlannedAction %s: %w", a.ID, ErrAlreadyExecuted)
	}
	a.executed, a.succeeded = true, succeeded
	return nil
}

// Executed reports whether an outcome has been recorded.
func (a *PlannedAction) Executed() bool { return a.executed }

// Succeeded reports whether the recorded outcome was a success.
func (a *PlannedAction) Succeeded() bool { return a.succeeded }

// TargetsUnit reports whether the action is aimed at a unit rather than a point or nothing.
func (a *PlannedAction) TargetsUnit() bool {
	return !a.Target.IsPoint && a.Target.UnitID != ""
}

// String returns a short human-readable description.
func (a *PlannedAction) String() string {
	switch {
	case a.Type == ActionMove:
		return fmt.Sprintf("move to %.1f,%.1f", a.Target.Point.X, a.Target.Point.Y)
	case a.Type == ActionEndTurn:
		return "end turn"
	case a.Target.IsPoint:
		return fmt.Sprintf("%s %s at %.1f,%.1f", a.Type, a.AbilityID, a.Target.Point.X, a.Target.Point.Y)
	default:
		return fmt.Sprintf("%s %s on %s", a.Type, a.AbilityID, a.Target.UnitID)
	}
}
