package arena

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// EventKind classifies an entry in the combat log.
type EventKind string

const (
	EventInitiative EventKind = "initiative"
	EventTurn       EventKind = "turn"
	EventCast       EventKind = "cast"
	EventMove       EventKind = "move"
	EventDamage     EventKind = "damage"
	EventMiss       EventKind = "miss"
	EventHeal       EventKind = "heal"
	EventEffect     EventKind = "effect"
	EventExpire     EventKind = "expire"
	EventKill       EventKind = "kill"
	EventFailure    EventKind = "failure"
)

// Effects the arena gives meaning to. Any other effect ID is tracked but inert.
const (
	// EffectMarked raises damage taken by a quarter.
	EffectMarked = "marked"
	// EffectGuarded halves damage taken.
	EffectGuarded = "guarded"
	// EffectEmpowered raises damage dealt by a quarter.
	EffectEmpowered = "empowered"
	EffectTaunted   = "taunted"
)

// Event is one line of the combat log.
type Event struct {
	Round   int
	Kind    EventKind
	Actor   string
	Target  string
	Ability string
	Amount  float64
	Detail  string
}

// String renders the event as a single log line.
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "r%d %s %s", e.Round, e.Kind, e.Actor)
	if e.Ability != "" {
		fmt.Fprintf(&b, " [%s]", e.Ability)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " -> %s", e.Target)
	}
	if e.Amount != 0 {
		fmt.Fprintf(&b, " %.0f", e.Amount)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

func (a *Arena) emit(e Event) {
	e.Round = a.round
	a.events = append(a.events, e)
	a.logger.Debug("event",
		zap.String("kind", string(e.Kind)),
		zap.String("actor", e.Actor),
		zap.String("target", e.Target),
		zap.String("ability", e.Ability),
		zap.Float64("amount", e.Amount),
		zap.String("detail", e.Detail),
	)
}

// Start rolls initiative (d20 plus the unit's bonus, ties broken by ID) and
// begins round 1 with the first living unit.
//
// Postcondition: ActingUnit reports a living unit, or "" when none remain.
func (a *Arena) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.units {
		roll := a.roller.Intn(20) + 1
		u.initiative += roll
		a.emit(Event{Kind: EventInitiative, Actor: u.ID, Amount: float64(u.initiative)})
	}
	sort.SliceStable(a.units, func(i, j int) bool {
		if a.units[i].initiative != a.units[j].initiative {
			return a.units[i].initiative > a.units[j].initiative
		}
		return a.units[i].ID < a.units[j].ID
	})
	a.started = true
	a.round = 1
	a.turn = 0
	if len(a.units) > 0 && a.units[0].Dead {
		a.advance()
		return
	}
	a.beginTurn()
}

// Round returns the current round; zero before Start.
func (a *Arena) Round() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.round
}

// EndTurn passes the turn to the next living unit, starting a new round when
// the order wraps.
func (a *Arena) EndTurn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	a.units[a.turn].frames = 0
	a.advance()
}

func (a *Arena) advance() {
	for range a.units {
		a.turn++
		if a.turn >= len(a.units) {
			a.turn = 0
			a.round++
		}
		if !a.units[a.turn].Dead {
			a.beginTurn()
			return
		}
	}
}

// beginTurn restores the acting unit's resources and ticks its effects.
func (a *Arena) beginTurn() {
	u := a.units[a.turn]
	u.AP, u.MP = u.MaxAP, u.MaxMP
	u.status = binding.CommandStatus{}
	u.frames = 0
	for id, left := range u.durations {
		if left < 0 {
			continue
		}
		left--
		if left > 0 {
			u.durations[id] = left
			continue
		}
		delete(u.durations, id)
		u.Buffs = without(u.Buffs, id)
		u.Debuffs = without(u.Debuffs, id)
		a.emit(Event{Kind: EventExpire, Actor: u.ID, Detail: id})
	}
	a.emit(Event{Kind: EventTurn, Actor: u.ID})
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// Winner returns the last faction standing. ok is false while two or more
// factions have living units.
func (a *Arena) Winner() (faction string, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	alive := make(map[string]bool)
	for _, u := range a.units {
		if !u.Dead {
			alive[u.Faction] = true
		}
	}
	if len(alive) > 1 {
		return "", false
	}
	for f := range alive {
		return f, true
	}
	return "", true
}

// Tick advances every pending command by one frame.
func (a *Arena) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.units {
		if u.frames > 0 {
			u.frames--
		}
	}
}

func (a *Arena) fail(u *unitState, abilityID string, reason binding.FailureReason, detail string) binding.CommandStatus {
	u.status = binding.CommandStatus{Failed: true, Reason: reason, Detail: detail}
	u.frames = a.latency
	a.emit(Event{Kind: EventFailure, Actor: u.ID, Ability: abilityID, Detail: reason.String()})
	return a.statusOf(u)
}

func (a *Arena) statusOf(u *unitState) binding.CommandStatus {
	st := u.status
	st.Pending = u.frames > 0
	return st
}

// Cast resolves abilityID from unitID against target. The outcome becomes
// visible through CommandStatus once the scenario latency has been ticked away.
//
// Postcondition: on success AP/MP are spent and effects applied; on failure
// nothing changes except the command status.
func (a *Arena) Cast(unitID, abilityID string, target binding.Target) binding.CommandStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.index[unitID]
	if !ok {
		return binding.CommandStatus{Failed: true, Reason: binding.FailureUnitIncapacitated, Detail: "unknown unit"}
	}
	if reason, detail := a.check(unitID, abilityID, target); reason != binding.FailureNone {
		return a.fail(u, abilityID, reason, detail)
	}
	spec := a.abilities[abilityID]
	u.AP -= spec.APCost
	u.MP -= spec.MPCost
	if usesAmmo(u, spec) {
		u.Ammo--
	}
	if spec.Ultimate {
		u.usedUltimate[spec.ID] = true
	}
	ev := Event{Kind: EventCast, Actor: u.ID, Ability: spec.ID, Target: target.UnitID}
	if target.IsPoint {
		c := target.Point.Cell()
		ev.Target = fmt.Sprintf("%d,%d", c.X, c.Y)
	}
	a.emit(ev)
	a.resolve(u, spec, target)
	u.status = binding.CommandStatus{}
	u.frames = a.latency
	return a.statusOf(u)
}

func (a *Arena) resolve(u *unitState, spec AbilitySpec, target binding.Target) {
	aim := target.Point
	if !target.IsPoint {
		aim = a.index[target.UnitID].Pos
	}
	var affected []*unitState
	if spec.AoERadius > 0 {
		for _, o := range a.units {
			if !o.Dead && o.ID != u.ID && o.Pos.Dist(aim) <= spec.AoERadius+1e-9 {
				affected = append(affected, o)
			}
		}
	} else if !target.IsPoint {
		affected = []*unitState{a.index[target.UnitID]}
	}

	if spec.GapCloser && target.IsPoint {
		u.Pos = target.Point.Cell().Center()
		a.emit(Event{Kind: EventMove, Actor: u.ID, Ability: spec.ID, Detail: "leap"})
	}
	for _, t := range affected {
		if spec.Damage {
			a.strike(u, t, spec)
		}
		if t.Dead {
			continue
		}
		if spec.HealAmount > 0 && t.Faction == u.Faction {
			healed := math.Min(spec.HealAmount, t.MaxHP-t.HP)
			t.HP += healed
			a.emit(Event{Kind: EventHeal, Actor: u.ID, Target: t.ID, Ability: spec.ID, Amount: healed})
		}
		if id := effectOf(spec); id != "" {
			a.applyEffect(u, t, spec, id)
		}
	}
	if spec.Reload {
		u.Ammo = u.MaxAmmo
	}
	u.AP += spec.GrantsAP
	u.MP += spec.GrantsMP
}

// effectOf returns the effect an ability leaves on its targets.
func effectOf(spec AbilitySpec) string {
	switch {
	case spec.EffectID != "":
		return spec.EffectID
	case spec.Taunt:
		return EffectTaunted
	case spec.Marker:
		return EffectMarked
	}
	return ""
}

func (a *Arena) applyEffect(u, t *unitState, spec AbilitySpec, id string) {
	hostile := spec.Debuff || spec.Taunt || spec.Marker || t.Faction != u.Faction
	if hostile {
		if !t.HasEffect(id) {
			t.Debuffs = append(t.Debuffs, id)
		}
	} else if !t.HasEffect(id) {
		t.Buffs = append(t.Buffs, id)
	}
	if spec.Duration > 0 {
		t.durations[id] = spec.Duration
	} else {
		t.durations[id] = -1
	}
	a.emit(Event{Kind: EventEffect, Actor: u.ID, Target: t.ID, Ability: spec.ID, Detail: id})
}

func (a *Arena) strike(u, t *unitState, spec AbilitySpec) {
	if !a.roller.Chance(a.hitChance(u.ID, spec.ID, t.ID)) {
		a.emit(Event{Kind: EventMiss, Actor: u.ID, Target: t.ID, Ability: spec.ID})
		return
	}
	dmg := float64(max(0, a.roller.Roll(spec.Roll).Total()))
	if u.HasEffect(EffectEmpowered) {
		dmg *= 1.25
	}
	if t.HasEffect(EffectMarked) {
		dmg *= 1.25
	}
	if t.HasEffect(EffectGuarded) {
		dmg /= 2
	}
	dmg = math.Ceil(dmg)
	dmg = math.Min(dmg, t.HP)
	t.HP -= dmg
	a.emit(Event{Kind: EventDamage, Actor: u.ID, Target: t.ID, Ability: spec.ID, Amount: dmg})
	if a.recorder != nil {
		a.recorder.RecordDamage(u.Faction, t.Faction, dmg)
	}
	if t.HP > 0 {
		return
	}
	t.HP = 0
	t.Dead = true
	t.frames = 0
	a.emit(Event{Kind: EventKill, Actor: u.ID, Target: t.ID, Ability: spec.ID})
	if a.recorder != nil {
		a.recorder.RecordKill(u.Faction, t.Faction)
	}
}

func (a *Arena) landable(u *unitState, c grid.Cell) bool {
	return a.Walkable(c) && !a.occupied(u.ID)[c]
}

// Move walks unitID to the cell containing dest along the cheapest path.
//
// Postcondition: on success the unit stands at the cell center and its MP is
// reduced by the path cost.
func (a *Arena) Move(unitID string, dest grid.Point) binding.CommandStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.index[unitID]
	if !ok {
		return binding.CommandStatus{Failed: true, Reason: binding.FailureUnitIncapacitated, Detail: "unknown unit"}
	}
	if u.Dead {
		return a.fail(u, "", binding.FailureUnitIncapacitated, "unit is dead")
	}
	c := dest.Cell()
	if !a.Walkable(c) {
		return a.fail(u, "", binding.FailurePathBlocked, "destination not walkable")
	}
	cost, ok := a.reachable(u)[c]
	if !ok {
		return a.fail(u, "", binding.FailurePathBlocked, "destination unreachable")
	}
	u.MP -= cost
	u.Pos = c.Center()
	u.status = binding.CommandStatus{}
	u.frames = a.latency
	a.emit(Event{Kind: EventMove, Actor: u.ID, Amount: cost, Detail: fmt.Sprintf("%d,%d", c.X, c.Y)})
	return a.statusOf(u)
}
