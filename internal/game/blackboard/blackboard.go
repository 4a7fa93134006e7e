// Package blackboard holds the combat-scoped state shared between units of
// the same faction: target votes, reservations, and the damage and kill
// bookkeeping behind team confidence.
//
// A Blackboard is constructed per combat and handed to the orchestrator. Turns
// are processed one unit at a time, so only the acting unit writes to it.
package blackboard

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// ReservationKind separates the one-shot reservation namespaces.
type ReservationKind int

const (
	ReserveTaunt ReservationKind = iota
	ReserveHeal
	ReserveMove
)

// String returns the reservation kind's name.
func (k ReservationKind) String() string {
	switch k {
	case ReserveTaunt:
		return "taunt"
	case ReserveHeal:
		return "heal"
	case ReserveMove:
		return "move"
	default:
		return fmt.Sprintf("reservation(%d)", int(k))
	}
}

// CellKey returns the reservation key for a move destination.
func CellKey(c grid.Cell) string { return fmt.Sprintf("%d,%d", c.X, c.Y) }

// Confidence blend weights.
const (
	weightAllyHP       = 0.30
	weightEnemyDeficit = 0.20
	weightNumeric      = 0.20
	weightMomentum     = 0.15
	weightDamageRatio  = 0.15
)

type vote struct {
	faction string
	target  string
}

type slot struct {
	kind ReservationKind
	key  string
}

type reservation struct {
	holder  string
	faction string
}

// Blackboard is the per-combat shared coordination state.
type Blackboard struct {
	votes        map[string]vote
	reservations map[slot]reservation
	dealt        map[string]float64
	taken        map[string]float64
	kills        map[string]int
	losses       map[string]int
	round        int
	logger       *zap.Logger
}

// New returns an empty Blackboard. A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Blackboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Blackboard{logger: logger.Named("blackboard")}
	b.Reset()
	return b
}

// Reset clears every field. Called on combat end.
func (b *Blackboard) Reset() {
	b.votes = make(map[string]vote)
	b.reservations = make(map[slot]reservation)
	b.dealt = make(map[string]float64)
	b.taken = make(map[string]float64)
	b.kills = make(map[string]int)
	b.losses = make(map[string]int)
	b.round = 0
}

// OnRoundStart clears the per-round fields: target votes and reservations.
func (b *Blackboard) OnRoundStart(round int) {
	b.round = round
	clear(b.votes)
	clear(b.reservations)
	b.logger.Debug("round start", zap.Int("round", round))
}

// Round returns the last round passed to OnRoundStart.
func (b *Blackboard) Round() int { return b.round }

// Vote records unitID's chosen target, replacing any earlier vote this round.
func (b *Blackboard) Vote(unitID, faction, targetID string) {
	if targetID == "" {
		delete(b.votes, unitID)
		return
	}
	b.votes[unitID] = vote{faction: faction, target: targetID}
}

// SharedTarget returns the plurality vote among faction's units. Ties go to
// the target with lower HP, then to the lower ID. Votes for units that are
// dead or missing from units are ignored.
func (b *Blackboard) SharedTarget(faction string, units []binding.Unit) (string, bool) {
	hp := make(map[string]float64, len(units))
	for _, u := range units {
		if !u.Dead {
			hp[u.ID] = u.HP
		}
	}
	tally := make(map[string]int)
	for _, v := range b.votes {
		if v.faction != faction {
			continue
		}
		if _, alive := hp[v.target]; !alive {
			continue
		}
		tally[v.target]++
	}
	if len(tally) == 0 {
		return "", false
	}
	targets := make([]string, 0, len(tally))
	for id := range tally {
		targets = append(targets, id)
	}
	sort.Slice(targets, func(i, j int) bool {
		a, c := targets[i], targets[j]
		if tally[a] != tally[c] {
			return tally[a] > tally[c]
		}
		if hp[a] != hp[c] {
			return hp[a] < hp[c]
		}
		return a < c
	})
	return targets[0], true
}

// Reserve claims (kind, key) for holder.
//
// Postcondition: returns false, leaving the reservation unchanged, when another holder owns it.
func (b *Blackboard) Reserve(kind ReservationKind, key, holder, faction string) bool {
	s := slot{kind: kind, key: key}
	if r, ok := b.reservations[s]; ok && r.holder != holder {
		return false
	}
	b.reservations[s] = reservation{holder: holder, faction: faction}
	b.logger.Debug("reserved",
		zap.Stringer("kind", kind),
		zap.String("key", key),
		zap.String("holder", holder),
	)
	return true
}

// IsReserved reports whether (kind, key) is held by someone other than by.
func (b *Blackboard) IsReserved(kind ReservationKind, key, by string) bool {
	r, ok := b.reservations[slot{kind: kind, key: key}]
	return ok && r.holder != by
}

// Release drops every reservation held by holder.
func (b *Blackboard) Release(holder string) {
	for s, r := range b.reservations {
		if r.holder == holder {
			delete(b.reservations, s)
		}
	}
}

// RecordDamage accumulates damage dealt by sourceFaction to targetFaction.
func (b *Blackboard) RecordDamage(sourceFaction, targetFaction string, amount float64) {
	if amount <= 0 {
		return
	}
	b.dealt[sourceFaction] += amount
	b.taken[targetFaction] += amount
}

// RecordKill credits a kill to killerFaction and a loss to victimFaction.
func (b *Blackboard) RecordKill(killerFaction, victimFaction string) {
	b.kills[killerFaction]++
	b.losses[victimFaction]++
}

// TeamAverageHP returns the mean HP fraction of faction's living units; 0 when none are alive.
func TeamAverageHP(faction string, units []binding.Unit) float64 {
	var sum float64
	n := 0
	for _, u := range units {
		if u.Faction == faction && !u.Dead {
			sum += u.HPFraction()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Confidence returns faction's 0..1 confidence: a weighted blend of ally HP,
// enemy HP deficit, numeric advantage, kill momentum, and damage ratio.
// Momentum and damage ratio are neutral (0.5) until something has been recorded.
func (b *Blackboard) Confidence(faction string, units []binding.Unit) float64 {
	allyHP := TeamAverageHP(faction, units)

	var enemySum float64
	allies, enemies := 0, 0
	for _, u := range units {
		if u.Dead {
			continue
		}
		if u.Faction == faction {
			allies++
		} else {
			enemies++
			enemySum += u.HPFraction()
		}
	}
	deficit := 1.0
	if enemies > 0 {
		deficit = 1 - enemySum/float64(enemies)
	}
	numeric := ratio(float64(allies), float64(enemies))
	momentum := ratio(float64(b.kills[faction]), float64(b.losses[faction]))
	damage := ratio(b.dealt[faction], b.taken[faction])

	c := weightAllyHP*allyHP +
		weightEnemyDeficit*deficit +
		weightNumeric*numeric +
		weightMomentum*momentum +
		weightDamageRatio*damage
	return max(0, min(1, c))
}

// ratio returns a/(a+b), or 0.5 when both are zero.
func ratio(a, b float64) float64 {
	if a+b <= 0 {
		return 0.5
	}
	return a / (a + b)
}

// View captures an immutable snapshot of faction's board for one decision cycle.
func (b *Blackboard) View(faction string, units []binding.Unit) View {
	v := View{
		Faction:       faction,
		TeamAverageHP: TeamAverageHP(faction, units),
		Confidence:    b.Confidence(faction, units),
		reserved:      make(map[slot]string),
	}
	v.SharedTarget, v.HasSharedTarget = b.SharedTarget(faction, units)
	for s, r := range b.reservations {
		if r.faction == faction {
			v.reserved[s] = r.holder
		}
	}
	return v
}
