package plan

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// Strategy names the high-level intent a plan was built for.
type Strategy string

const (
	StrategyAttack    Strategy = "attack"
	StrategyRetreat   Strategy = "retreat"
	StrategyReload    Strategy = "reload"
	StrategySupport   Strategy = "support"
	StrategyEmergency Strategy = "emergency"
	StrategyEnd       Strategy = "end"
)

// Priority controls which replan triggers a plan honours.
type Priority int

const (
	PriorityNormal Priority = iota
	// PriorityCritical plans only replan on must-replan conditions.
	PriorityCritical
)

// String returns the priority's name.
func (p Priority) String() string {
	if p == PriorityCritical {
		return "critical"
	}
	return "normal"
}

// ParsePriority maps "critical" to PriorityCritical and anything else to PriorityNormal.
func ParsePriority(s string) Priority {
	if s == "critical" {
		return PriorityCritical
	}
	return PriorityNormal
}

// TurnPlan is the ordered action queue for one unit's turn.
//
// Invariant: the queue only shrinks, by dequeue, group purge, or cancel.
// Enqueue is for construction; once execution starts a plan is replaced, not extended.
type TurnPlan struct {
	ID       uuid.UUID
	UnitID   string
	Strategy Strategy
	Priority Priority
	// TargetID is the primary enemy the plan is built around; empty when none.
	TargetID string
	// Initial is the situation summary at creation, compared by NeedsReplan.
	Initial situation.Metrics

	queue     []*PlannedAction
	cancelled bool
}

// New returns an empty plan for unitID.
func New(unitID string, strategy Strategy, priority Priority, initial situation.Metrics) *TurnPlan {
	return &TurnPlan{
		ID:       uuid.New(),
		UnitID:   unitID,
		Strategy: strategy,
		Priority: priority,
		Initial:  initial,
	}
}

// Enqueue appends actions in order. Nil actions are ignored, as is anything
// enqueued after Cancel.
func (p *TurnPlan) Enqueue(actions ...*PlannedAction) {
	if p.cancelled {
		return
	}
	for _, a := range actions {
		if a != nil {
			p.queue = append(p.queue, a)
		}
	}
}

// GetNextAction removes and returns the head of the queue.
func (p *TurnPlan) GetNextAction() (*PlannedAction, bool) {
	if len(p.queue) == 0 {
		return nil, false
	}
	a := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return a, true
}

// PeekNextAction returns the head of the queue without removing it.
func (p *TurnPlan) PeekNextAction() (*PlannedAction, bool) {
	if len(p.queue) == 0 {
		return nil, false
	}
	return p.queue[0], true
}

// RemainingActionCount returns the number of queued actions.
func (p *TurnPlan) RemainingActionCount() int { return len(p.queue) }

// IsComplete reports whether the queue is empty.
func (p *TurnPlan) IsComplete() bool { return len(p.queue) == 0 }

// Cancel discards every queued action.
func (p *TurnPlan) Cancel() {
	p.queue = nil
	p.cancelled = true
}

// Cancelled reports whether Cancel was called.
func (p *TurnPlan) Cancelled() bool { return p.cancelled }

// PurgeGroup removes every queued action tagged with group and returns how
// many were removed. An empty group purges nothing.
func (p *TurnPlan) PurgeGroup(group string) int {
	if group == "" {
		return 0
	}
	kept := p.queue[:0]
	removed := 0
	for _, a := range p.queue {
		if a.Group == group {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(p.queue); i++ {
		p.queue[i] = nil
	}
	p.queue = kept
	return removed
}

// Actions returns a copy of the queue.
func (p *TurnPlan) Actions() []*PlannedAction {
	out := make([]*PlannedAction, len(p.queue))
	copy(out, p.queue)
	return out
}

// HasOffensiveQueued reports whether any queued action is aimed at an enemy.
func (p *TurnPlan) HasOffensiveQueued() bool {
	for _, a := range p.queue {
		if a.Type.IsOffensive() {
			return true
		}
	}
	return false
}
