// Package arena is a self-contained grid battlefield that implements the
// engine binding and executes the commands the orchestrator emits. It lets the
// decision core run whole combats without a host game.
package arena

import (
	"container/heap"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/dice"
	"github.com/cory-johannsen/tactician/internal/game/grid"
)

const (
	diagonalCost = math.Sqrt2
	losStep      = 0.25
	// coverReach is how close a cover cell must be to a unit to protect it.
	coverReach = 1.5
	// coverHitPenalty scales how much cover lowers hit chance.
	coverHitPenalty = 0.5
)

// Recorder receives combat outcomes. *blackboard.Blackboard satisfies it.
type Recorder interface {
	RecordDamage(sourceFaction, targetFaction string, amount float64)
	RecordKill(killerFaction, victimFaction string)
}

type unitState struct {
	binding.Unit
	initiative int
	abilities  []string
	// durations holds remaining turns per effect; negative means until combat end.
	durations    map[string]int
	usedUltimate map[string]bool
	status       binding.CommandStatus
	frames       int
}

func (u *unitState) snapshot() binding.Unit {
	out := u.Unit
	out.Buffs = append([]string(nil), u.Buffs...)
	out.Debuffs = append([]string(nil), u.Debuffs...)
	return out
}

// Arena is an in-memory battlefield built from a Scenario.
//
// Arena is safe for concurrent use.
type Arena struct {
	mu        sync.RWMutex
	bounds    grid.Rect
	blocked   map[grid.Cell]bool
	cover     map[grid.Cell]float64
	abilities map[string]AbilitySpec
	units     []*unitState
	index     map[string]*unitState
	latency   int
	turn      int
	round     int
	started   bool
	events    []Event

	roller   *dice.Roller
	recorder Recorder
	logger   *zap.Logger
}

// New builds an Arena from scn. recorder may be nil.
//
// Precondition: scn must be validated; roller must be non-nil.
// Postcondition: units are listed in scenario order until Start rolls initiative.
func New(scn *Scenario, roller *dice.Roller, recorder Recorder, logger *zap.Logger) *Arena {
	if scn == nil {
		panic("arena.New: scenario must not be nil")
	}
	if roller == nil {
		panic("arena.New: roller must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Arena{
		bounds:    grid.Rect{Max: grid.Cell{X: scn.Width, Y: scn.Height}},
		blocked:   scn.Blocked,
		cover:     scn.Cover,
		abilities: scn.Abilities,
		index:     make(map[string]*unitState, len(scn.Units)),
		latency:   scn.Latency,
		roller:    roller,
		recorder:  recorder,
		logger:    logger.Named("arena"),
	}
	for _, spec := range scn.Units {
		u := &unitState{
			Unit:         spec.Unit,
			initiative:   spec.Initiative,
			abilities:    append([]string(nil), spec.Abilities...),
			durations:    make(map[string]int),
			usedUltimate: make(map[string]bool),
		}
		for _, id := range u.abilities {
			if ab := a.abilities[id]; ab.GapCloser {
				u.GapCloserRange = math.Max(u.GapCloserRange, ab.Range)
			}
		}
		a.units = append(a.units, u)
		a.index[u.ID] = u
	}
	return a
}

// Units returns every unit in initiative order.
func (a *Arena) Units() []binding.Unit {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]binding.Unit, len(a.units))
	for i, u := range a.units {
		out[i] = u.snapshot()
	}
	return out
}

// Unit returns the unit with the given ID.
func (a *Arena) Unit(id string) (binding.Unit, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.index[id]
	if !ok {
		return binding.Unit{}, false
	}
	return u.snapshot(), true
}

// Abilities returns the unit's ability inventory in scenario order.
func (a *Arena) Abilities(unitID string) []binding.Ability {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.index[unitID]
	if !ok {
		return nil
	}
	out := make([]binding.Ability, 0, len(u.abilities))
	for _, id := range u.abilities {
		out = append(out, a.abilities[id].Ability)
	}
	return out
}

// IsAbilityAvailable reports whether the ability is off cooldown for the unit:
// known, not a spent ultimate, with ammunition for ranged attacks, and not a
// reload on a full magazine.
func (a *Arena) IsAbilityAvailable(unitID, abilityID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.index[unitID]
	if !ok {
		return false
	}
	spec, ok := a.spec(u, abilityID)
	if !ok {
		return false
	}
	return a.available(u, spec)
}

func (a *Arena) spec(u *unitState, abilityID string) (AbilitySpec, bool) {
	for _, id := range u.abilities {
		if id == abilityID {
			spec, ok := a.abilities[id]
			return spec, ok
		}
	}
	return AbilitySpec{}, false
}

func (a *Arena) available(u *unitState, spec AbilitySpec) bool {
	switch {
	case spec.Ultimate && u.usedUltimate[spec.ID]:
		return false
	case usesAmmo(u, spec) && u.Ammo <= 0:
		return false
	case spec.Reload && u.Ammo >= u.MaxAmmo:
		return false
	}
	return true
}

func usesAmmo(u *unitState, spec AbilitySpec) bool {
	return spec.Damage && !spec.IsMelee() && u.MaxAmmo > 0
}

// CanUseAbilityOn reports whether the unit could legally use the ability on target now.
func (a *Arena) CanUseAbilityOn(unitID, abilityID string, target binding.Target) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	reason, _ := a.check(unitID, abilityID, target)
	return reason == binding.FailureNone
}

// check validates a cast and returns the failure reason, FailureNone when legal.
func (a *Arena) check(unitID, abilityID string, target binding.Target) (binding.FailureReason, string) {
	u, ok := a.index[unitID]
	if !ok || u.Dead {
		return binding.FailureUnitIncapacitated, "caster cannot act"
	}
	spec, ok := a.spec(u, abilityID)
	if !ok || !a.available(u, spec) {
		return binding.FailureAbilityUnavailable, "ability unavailable"
	}
	if u.AP < spec.APCost || u.MP < spec.MPCost {
		return binding.FailureNoResources, "insufficient AP or MP"
	}
	if target.IsPoint {
		if !spec.TargetsPoint && spec.AoERadius <= 0 {
			return binding.FailureTargetInvalid, "ability cannot target a point"
		}
		if !a.bounds.Contains(target.Point.Cell()) {
			return binding.FailureTargetInvalid, "point is off the grid"
		}
		if u.Pos.Dist(target.Point) > spec.Range+1e-9 {
			return binding.FailureOutOfRange, "point out of range"
		}
		if !a.lineOfSight(u.Pos, target.Point) {
			return binding.FailureTargetUnreachable, "no line of sight"
		}
		if spec.GapCloser && !a.landable(u, target.Point.Cell()) {
			return binding.FailurePathBlocked, "landing cell occupied"
		}
		return binding.FailureNone, ""
	}
	t, ok := a.index[target.UnitID]
	if !ok {
		return binding.FailureTargetInvalid, "unknown target"
	}
	if t.Dead {
		return binding.FailureTargetDead, "target is dead"
	}
	switch {
	case t.ID == u.ID:
		if !spec.TargetsSelf && !spec.TargetsAlly {
			return binding.FailureTargetInvalid, "ability cannot target self"
		}
	case t.Faction == u.Faction:
		if !spec.TargetsAlly {
			return binding.FailureTargetInvalid, "ability cannot target allies"
		}
	default:
		if !spec.TargetsEnemy {
			return binding.FailureTargetInvalid, "ability cannot target enemies"
		}
	}
	if t.ID != u.ID {
		if u.Pos.Dist(t.Pos) > spec.Range+1e-9 {
			return binding.FailureOutOfRange, "target out of range"
		}
		if !a.lineOfSight(u.Pos, t.Pos) {
			return binding.FailureTargetUnreachable, "no line of sight"
		}
	}
	if spec.EffectID != "" && !spec.Debuff && !spec.Damage && t.HasEffect(spec.EffectID) {
		return binding.FailureDuplicateBuff, "effect already active"
	}
	return binding.FailureNone, ""
}

// PredictDamage returns the ability's damage window; zero for non-damaging abilities.
func (a *Arena) PredictDamage(unitID, abilityID, _ string) binding.DamageRange {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.index[unitID]
	if !ok {
		return binding.DamageRange{}
	}
	spec, ok := a.spec(u, abilityID)
	if !ok || !spec.Damage {
		return binding.DamageRange{}
	}
	return binding.DamageRange{Min: float64(spec.Roll.Min()), Max: float64(spec.Roll.Max())}
}

// HitChance returns the ability's accuracy reduced by the target's cover; zero
// without line of sight.
func (a *Arena) HitChance(unitID, abilityID, targetID string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hitChance(unitID, abilityID, targetID)
}

func (a *Arena) hitChance(unitID, abilityID, targetID string) float64 {
	u, ok := a.index[unitID]
	if !ok {
		return 0
	}
	t, ok := a.index[targetID]
	if !ok {
		return 0
	}
	spec, ok := a.spec(u, abilityID)
	if !ok {
		return 0
	}
	if u.ID != t.ID && !a.lineOfSight(u.Pos, t.Pos) {
		return 0
	}
	p := spec.Accuracy * (1 - coverHitPenalty*a.coverAt(t.Pos, u.Pos))
	return math.Max(0, math.Min(1, p))
}

// Walkable reports whether c is on the grid and not blocked.
func (a *Arena) Walkable(c grid.Cell) bool {
	return a.bounds.Contains(c) && !a.blocked[c]
}

// ReachableCells returns every cell the unit can end a move on with its
// remaining MP, including its own cell at cost zero. Cells held by other
// living units are impassable. Diagonal steps may not cut blocked corners.
func (a *Arena) ReachableCells(unitID string) []binding.Reachable {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.index[unitID]
	if !ok || u.Dead {
		return nil
	}
	costs := a.reachable(u)
	out := make([]binding.Reachable, 0, len(costs))
	for c, cost := range costs {
		out = append(out, binding.Reachable{Cell: c, Cost: cost})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		if out[i].Cell.Y != out[j].Cell.Y {
			return out[i].Cell.Y < out[j].Cell.Y
		}
		return out[i].Cell.X < out[j].Cell.X
	})
	return out
}

func (a *Arena) occupied(except string) map[grid.Cell]bool {
	occ := make(map[grid.Cell]bool, len(a.units))
	for _, o := range a.units {
		if !o.Dead && o.ID != except {
			occ[o.Pos.Cell()] = true
		}
	}
	return occ
}

// reachable runs Dijkstra from the unit's cell bounded by its MP.
func (a *Arena) reachable(u *unitState) map[grid.Cell]float64 {
	occ := a.occupied(u.ID)
	start := u.Pos.Cell()
	best := map[grid.Cell]float64{start: 0}
	pq := &cellQueue{{cell: start}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(cellCost)
		if cur.cost > best[cur.cell] {
			continue
		}
		for _, d := range grid.Directions {
			dx, dy := d.Offset()
			next := cur.cell.Add(dx, dy)
			if !a.Walkable(next) || occ[next] {
				continue
			}
			step := 1.0
			if d.Diagonal() {
				if !a.Walkable(cur.cell.Add(dx, 0)) || !a.Walkable(cur.cell.Add(0, dy)) {
					continue
				}
				step = diagonalCost
			}
			cost := cur.cost + step
			if cost > u.MP+1e-9 {
				continue
			}
			if prev, seen := best[next]; seen && prev <= cost {
				continue
			}
			best[next] = cost
			heap.Push(pq, cellCost{cell: next, cost: cost})
		}
	}
	return best
}

type cellCost struct {
	cell grid.Cell
	cost float64
}

type cellQueue []cellCost

func (q cellQueue) Len() int           { return len(q) }
func (q cellQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q cellQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *cellQueue) Push(x any)        { *q = append(*q, x.(cellCost)) }
func (q *cellQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// HasLineOfSight samples the segment from -> to and fails on any blocked cell
// strictly between the endpoints' cells.
func (a *Arena) HasLineOfSight(from, to grid.Point) bool {
	return a.lineOfSight(from, to)
}

func (a *Arena) lineOfSight(from, to grid.Point) bool {
	fc, tc := from.Cell(), to.Cell()
	steps := int(math.Ceil(from.Dist(to) / losStep))
	for i := 1; i < steps; i++ {
		c := from.Lerp(to, float64(i)/float64(steps)).Cell()
		if c == fc || c == tc {
			continue
		}
		if a.blocked[c] {
			return false
		}
	}
	return true
}

// CoverAt returns the strongest cover cell adjacent to at that sits between at
// and from.
func (a *Arena) CoverAt(at, from grid.Point) float64 {
	return a.coverAt(at, from)
}

func (a *Arena) coverAt(at, from grid.Point) float64 {
	best := 0.0
	exposure := from.Dist(at)
	for c, v := range a.cover {
		p := c.Center()
		if p.Dist(at) > coverReach || from.Dist(p) >= exposure {
			continue
		}
		best = math.Max(best, v)
	}
	return math.Min(best, 1)
}

// ActingUnit returns the unit whose turn it is and the current round.
func (a *Arena) ActingUnit() (string, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.started || len(a.units) == 0 {
		return "", a.round
	}
	return a.units[a.turn].ID, a.round
}

// CommandStatus reports the unit's most recent command.
func (a *Arena) CommandStatus(unitID string) binding.CommandStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.index[unitID]
	if !ok {
		return binding.CommandStatus{}
	}
	st := u.status
	st.Pending = u.frames > 0
	return st
}

// Events returns a copy of the combat log.
func (a *Arena) Events() []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Event(nil), a.events...)
}
