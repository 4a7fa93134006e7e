package planner

import (
	"strings"

	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// Env is the fact sheet method guards are evaluated against. Field names are
// the identifiers available to When expressions.
type Env struct {
	HP               float64
	AllyHP           float64
	AP               float64
	MP               float64
	Confidence       float64
	NearestEnemyDist float64

	Role  string
	Phase string

	Enemies       int
	Allies        int
	Hittable      int
	Clusters      int
	WoundedAllies int
	Actions       int

	InDanger         bool
	Ranged           bool
	HasAttack        bool
	HasBuff          bool
	HasHeal          bool
	HasSelfHeal      bool
	HasEmergencyBuff bool
	HasDebuff        bool
	HasReload        bool
	HasPositional    bool
	HasUltimate      bool
	NeedsReload      bool
	SharedTarget     bool
	Moved            bool
	Attacked         bool

	Context map[string]string
}

// Has reports whether the strategic context holds key.
func (e Env) Has(key string) bool {
	_, ok := e.Context[key]
	return ok
}

// HasPrefix reports whether any strategic context key starts with prefix.
func (e Env) HasPrefix(prefix string) bool {
	for k := range e.Context {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// NewEnv summarises sit for guard evaluation. Allies below woundedHP count as wounded.
func NewEnv(sit *situation.Situation, ctx map[string]string, woundedHP float64) Env {
	e := Env{
		HP:               sit.HPFraction,
		AllyHP:           sit.AllyAvgHP,
		AP:               sit.AP,
		MP:               sit.MP,
		Confidence:       sit.Board.Confidence,
		NearestEnemyDist: sit.NearestEnemyDist,
		Role:             sit.Role.String(),
		Phase:            sit.Phase.String(),
		Enemies:          len(sit.Enemies),
		Allies:           len(sit.Allies),
		Hittable:         len(sit.Hittable),
		Actions:          sit.Flags.ActionsTaken,
		InDanger:         sit.InDanger,
		Ranged:           sit.Self.Ranged,
		HasAttack:        sit.HasAttack,
		HasBuff:          sit.HasBuff,
		HasHeal:          sit.HasHeal,
		HasDebuff:        sit.HasDebuff,
		HasReload:        sit.HasReload,
		HasPositional:    sit.HasPositional,
		NeedsReload:      sit.NeedsReload,
		SharedTarget:     sit.Board.HasSharedTarget,
		Moved:            sit.Flags.Moved,
		Attacked:         sit.Flags.Attacked,
		Context:          ctx,
	}
	if sit.NearestEnemyDist > 1e6 {
		e.NearestEnemyDist = 1e6
	}
	for _, c := range sit.Clusters {
		if c.Valid {
			e.Clusters++
		}
	}
	for _, a := range sit.Allies {
		if a.HPFraction() < woundedHP {
			e.WoundedAllies++
		}
	}
	for _, h := range sit.Heals {
		if h.TargetsSelf || h.TargetsAlly {
			e.HasSelfHeal = true
		}
	}
	for _, b := range sit.Buffs {
		if b.Timing == situation.TimingEmergencyBuff {
			e.HasEmergencyBuff = true
		}
	}
	for _, a := range sit.Attacks {
		if a.Ultimate {
			e.HasUltimate = true
		}
	}
	return e
}

// Facts returns the fact table handed to script hooks.
func (e Env) Facts() map[string]any {
	return map[string]any{
		"hp":             e.HP,
		"ally_hp":        e.AllyHP,
		"ap":             e.AP,
		"mp":             e.MP,
		"confidence":     e.Confidence,
		"nearest_enemy":  e.NearestEnemyDist,
		"role":           e.Role,
		"phase":          e.Phase,
		"enemies":        e.Enemies,
		"allies":         e.Allies,
		"hittable":       e.Hittable,
		"clusters":       e.Clusters,
		"wounded_allies": e.WoundedAllies,
		"actions":        e.Actions,
		"in_danger":      e.InDanger,
		"ranged":         e.Ranged,
		"has_attack":     e.HasAttack,
		"has_heal":       e.HasHeal,
		"has_buff":       e.HasBuff,
		"has_debuff":     e.HasDebuff,
		"needs_reload":   e.NeedsReload,
		"shared_target":  e.SharedTarget,
		"context":        e.Context,
	}
}
