// Package config provides Viper-based configuration loading for the decision
// core and its simulator host.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/tactician/internal/game/orchestrator"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/planner"
	"github.com/cory-johannsen/tactician/internal/game/scoring"
	"github.com/cory-johannsen/tactician/internal/game/situation"
	"github.com/cory-johannsen/tactician/internal/game/spatial"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Components overrides Level for named loggers, e.g. {"sequence": "debug"}
	// to trace every sequence choice while the rest stays at info.
	Components map[string]string `mapstructure:"components"`
}

// OrchestratorConfig holds the per-turn budgets.
type OrchestratorConfig struct {
	MaxActionsPerTurn      int `mapstructure:"max_actions_per_turn"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
	MaxReplans             int `mapstructure:"max_replans"`
	MaxFallbackReplans     int `mapstructure:"max_fallback_replans"`
	// WaitFrameBudget is the number of Waiting cycles tolerated per command.
	WaitFrameBudget int `mapstructure:"wait_frame_budget"`
}

// ReplanConfig holds the replan trigger thresholds.
type ReplanConfig struct {
	HPDropThreshold    float64 `mapstructure:"hp_drop_threshold"`
	RangedSafetyMargin float64 `mapstructure:"ranged_safety_margin"`
	HittableIncrease   int     `mapstructure:"hittable_increase"`
}

// PhaseConfig holds the combat phase detection thresholds.
type PhaseConfig struct {
	DesperateAllyHP float64 `mapstructure:"desperate_ally_hp"`
	DesperateSelfHP float64 `mapstructure:"desperate_self_hp"`
	CleanupEnemies  int     `mapstructure:"cleanup_enemies"`
	OpeningAPRatio  float64 `mapstructure:"opening_ap_ratio"`
}

// SpatialConfig holds the map-building tunables.
type SpatialConfig struct {
	Padding          int     `mapstructure:"padding"`
	EdgeMargin       int     `mapstructure:"edge_margin"`
	MeleeWeight      float64 `mapstructure:"melee_weight"`
	RangedWeight     float64 `mapstructure:"ranged_weight"`
	ContactRadius    float64 `mapstructure:"contact_radius"`
	SafeZoneRadius   float64 `mapstructure:"safe_zone_radius"`
	MaxSafeZones     int     `mapstructure:"max_safe_zones"`
	CoverStampRadius float64 `mapstructure:"cover_stamp_radius"`
	SafeThreshold    float64 `mapstructure:"safe_threshold"`
	DangerThreshold  float64 `mapstructure:"danger_threshold"`
	GapCloserBonus   float64 `mapstructure:"gap_closer_bonus"`
	Falloff          float64 `mapstructure:"falloff"`
}

// ClusterConfig holds the enemy clustering tunables.
type ClusterConfig struct {
	Radius           float64 `mapstructure:"radius"`
	MaxRadius        float64 `mapstructure:"max_radius"`
	MinSize          int     `mapstructure:"min_size"`
	BlastRadius      float64 `mapstructure:"blast_radius"`
	MaxAlliesInBlast int     `mapstructure:"max_allies_in_blast"`
	AllyPenalty      float64 `mapstructure:"ally_penalty"`
	// Samples is the AoE aim-search sample count.
	Samples int `mapstructure:"samples"`
}

// ScoringConfig holds the attack evaluator tunables exposed to operators.
type ScoringConfig struct {
	AoEHitBonus         float64 `mapstructure:"aoe_hit_bonus"`
	FriendlyFirePenalty float64 `mapstructure:"friendly_fire_penalty"`
	MaxAlliesInAoE      int     `mapstructure:"max_allies_in_aoe"`
	SharedTargetBonus   float64 `mapstructure:"shared_target_bonus"`
	WoundedHP           float64 `mapstructure:"wounded_hp"`
	MaxFollowUps        int     `mapstructure:"max_follow_ups"`
}

// ContentConfig names the data files the core loads at startup. Empty paths
// fall back to the built-in content.
type ContentConfig struct {
	Abilities  string `mapstructure:"abilities"`
	Strategies string `mapstructure:"strategies"`
	Scripts    string `mapstructure:"scripts"`
	Roles      string `mapstructure:"roles"`
	// ScriptInstructionLimit caps Lua opcodes per hook call; 0 uses the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Replan       ReplanConfig       `mapstructure:"replan"`
	Phase        PhaseConfig        `mapstructure:"phase"`
	Spatial      SpatialConfig      `mapstructure:"spatial"`
	Cluster      ClusterConfig      `mapstructure:"cluster"`
	Scoring      ScoringConfig      `mapstructure:"scoring"`
	Content      ContentConfig      `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateLogging(c.Logging),
		validateOrchestrator(c.Orchestrator),
		validateReplan(c.Replan),
		validatePhase(c.Phase),
		validateSpatial(c.Spatial),
		validateCluster(c.Cluster),
		validateScoring(c.Scoring),
		validateContent(c.Content),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func inUnit(name string, v float64) string {
	if v < 0 || v > 1 {
		return fmt.Sprintf("%s must be in [0, 1], got %g", name, v)
	}
	return ""
}

func collect(msgs ...string) []string {
	var out []string
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	for name, level := range l.Components {
		if name == "" {
			return errors.New("logging.components must not contain an empty component name")
		}
		if !validLevels[level] {
			return fmt.Errorf("logging.components.%s must be one of [debug, info, warn, error], got %q", name, level)
		}
	}
	return nil
}

func validateOrchestrator(o OrchestratorConfig) error {
	var errs []string
	if o.MaxActionsPerTurn < 1 {
		errs = append(errs, fmt.Sprintf("orchestrator.max_actions_per_turn must be >= 1, got %d", o.MaxActionsPerTurn))
	}
	if o.MaxConsecutiveFailures < 1 {
		errs = append(errs, fmt.Sprintf("orchestrator.max_consecutive_failures must be >= 1, got %d", o.MaxConsecutiveFailures))
	}
	if o.MaxReplans < 0 {
		errs = append(errs, fmt.Sprintf("orchestrator.max_replans must be >= 0, got %d", o.MaxReplans))
	}
	if o.MaxFallbackReplans < 0 {
		errs = append(errs, fmt.Sprintf("orchestrator.max_fallback_replans must be >= 0, got %d", o.MaxFallbackReplans))
	}
	if o.WaitFrameBudget < 1 {
		errs = append(errs, fmt.Sprintf("orchestrator.wait_frame_budget must be >= 1, got %d", o.WaitFrameBudget))
	}
	return joined(errs)
}

func validateReplan(r ReplanConfig) error {
	errs := collect(inUnit("replan.hp_drop_threshold", r.HPDropThreshold))
	if r.RangedSafetyMargin < 0 {
		errs = append(errs, "replan.ranged_safety_margin must not be negative")
	}
	if r.HittableIncrease < 1 {
		errs = append(errs, fmt.Sprintf("replan.hittable_increase must be >= 1, got %d", r.HittableIncrease))
	}
	return joined(errs)
}

func validatePhase(p PhaseConfig) error {
	errs := collect(
		inUnit("phase.desperate_ally_hp", p.DesperateAllyHP),
		inUnit("phase.desperate_self_hp", p.DesperateSelfHP),
		inUnit("phase.opening_ap_ratio", p.OpeningAPRatio),
	)
	if p.CleanupEnemies < 0 {
		errs = append(errs, "phase.cleanup_enemies must not be negative")
	}
	return joined(errs)
}

func validateSpatial(s SpatialConfig) error {
	errs := collect(
		inUnit("spatial.safe_threshold", s.SafeThreshold),
		inUnit("spatial.danger_threshold", s.DangerThreshold),
		inUnit("spatial.gap_closer_bonus", s.GapCloserBonus),
	)
	if s.Padding < 1 {
		errs = append(errs, fmt.Sprintf("spatial.padding must be >= 1, got %d", s.Padding))
	}
	if s.EdgeMargin < 0 || s.EdgeMargin >= s.Padding {
		errs = append(errs, fmt.Sprintf("spatial.edge_margin must be in [0, padding), got %d", s.EdgeMargin))
	}
	if s.SafeThreshold > s.DangerThreshold {
		errs = append(errs, "spatial.safe_threshold must not exceed spatial.danger_threshold")
	}
	if s.Falloff <= 0 {
		errs = append(errs, "spatial.falloff must be positive")
	}
	if s.ContactRadius <= 0 || s.SafeZoneRadius <= 0 || s.CoverStampRadius <= 0 {
		errs = append(errs, "spatial radii must be positive")
	}
	if s.MaxSafeZones < 0 {
		errs = append(errs, "spatial.max_safe_zones must not be negative")
	}
	return joined(errs)
}

func validateCluster(c ClusterConfig) error {
	var errs []string
	if c.Radius <= 0 {
		errs = append(errs, "cluster.radius must be positive")
	}
	if c.MaxRadius < c.Radius {
		errs = append(errs, "cluster.max_radius must be >= cluster.radius")
	}
	if c.MinSize < 2 {
		errs = append(errs, fmt.Sprintf("cluster.min_size must be >= 2, got %d", c.MinSize))
	}
	if c.BlastRadius <= 0 {
		errs = append(errs, "cluster.blast_radius must be positive")
	}
	if c.MaxAlliesInBlast < 0 {
		errs = append(errs, "cluster.max_allies_in_blast must not be negative")
	}
	if c.Samples < 1 {
		errs = append(errs, fmt.Sprintf("cluster.samples must be >= 1, got %d", c.Samples))
	}
	return joined(errs)
}

func validateScoring(s ScoringConfig) error {
	errs := collect(inUnit("scoring.wounded_hp", s.WoundedHP))
	if s.FriendlyFirePenalty < 0 {
		errs = append(errs, "scoring.friendly_fire_penalty must not be negative")
	}
	if s.MaxAlliesInAoE < 0 {
		errs = append(errs, "scoring.max_allies_in_aoe must not be negative")
	}
	if s.MaxFollowUps < 0 {
		errs = append(errs, "scoring.max_follow_ups must not be negative")
	}
	return joined(errs)
}

func validateContent(c ContentConfig) error {
	if c.ScriptInstructionLimit < 0 {
		return fmt.Errorf("content.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit)
	}
	if c.Scripts != "" && c.Strategies == "" {
		return errors.New("content.scripts requires content.strategies")
	}
	return nil
}

// AnalyzerConfig returns the situation analyzer tuning.
func (c Config) AnalyzerConfig() situation.Config {
	cfg := situation.DefaultConfig()
	cfg.Padding = c.Spatial.Padding
	cfg.EdgeMargin = c.Spatial.EdgeMargin
	cfg.CoverStampRadius = c.Spatial.CoverStampRadius
	cfg.Influence = spatial.InfluenceConfig{
		MeleeWeight:    c.Spatial.MeleeWeight,
		RangedWeight:   c.Spatial.RangedWeight,
		ContactRadius:  c.Spatial.ContactRadius,
		SafeZoneRadius: c.Spatial.SafeZoneRadius,
		MaxSafeZones:   c.Spatial.MaxSafeZones,
	}
	cfg.Predictive = spatial.PredictiveConfig{
		SafeThreshold:   c.Spatial.SafeThreshold,
		DangerThreshold: c.Spatial.DangerThreshold,
		GapCloserBonus:  c.Spatial.GapCloserBonus,
		Falloff:         c.Spatial.Falloff,
	}
	cfg.Cluster.Radius = c.Cluster.Radius
	cfg.Cluster.MaxRadius = c.Cluster.MaxRadius
	cfg.Cluster.MinSize = c.Cluster.MinSize
	cfg.Cluster.BlastRadius = c.Cluster.BlastRadius
	cfg.Cluster.MaxAlliesInBlast = c.Cluster.MaxAlliesInBlast
	cfg.Cluster.AllyPenalty = c.Cluster.AllyPenalty
	cfg.Phase = situation.PhaseConfig{
		DesperateAllyHP: c.Phase.DesperateAllyHP,
		DesperateSelfHP: c.Phase.DesperateSelfHP,
		CleanupEnemies:  c.Phase.CleanupEnemies,
		OpeningAPRatio:  c.Phase.OpeningAPRatio,
	}
	return cfg
}

// PlannerConfig returns the action-builder tuning.
func (c Config) PlannerConfig() planner.Config {
	cfg := planner.DefaultConfig()
	sc := scoring.DefaultConfig()
	sc.AoEHitBonus = c.Scoring.AoEHitBonus
	sc.FriendlyFirePenalty = c.Scoring.FriendlyFirePenalty
	sc.MaxAlliesInAoE = c.Scoring.MaxAlliesInAoE
	sc.SharedTargetBonus = c.Scoring.SharedTargetBonus
	cfg.Scoring = sc
	cfg.WoundedHP = c.Scoring.WoundedHP
	cfg.MaxFollowUps = c.Scoring.MaxFollowUps
	cfg.PlacementSamples = c.Cluster.Samples
	return cfg
}

// OrchestratorConfig returns the turn budgets and replan thresholds.
func (c Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		MaxActionsPerTurn:      c.Orchestrator.MaxActionsPerTurn,
		MaxConsecutiveFailures: c.Orchestrator.MaxConsecutiveFailures,
		MaxReplans:             c.Orchestrator.MaxReplans,
		MaxFallbackReplans:     c.Orchestrator.MaxFallbackReplans,
		WaitFrameBudget:        c.Orchestrator.WaitFrameBudget,
		Replan: plan.ReplanConfig{
			HPDropThreshold:    c.Replan.HPDropThreshold,
			RangedSafetyMargin: c.Replan.RangedSafetyMargin,
			HittableIncrease:   c.Replan.HittableIncrease,
		},
	}
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with TACTICIAN_ prefix
	v.SetEnvPrefix("TACTICIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// Default returns the validated built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("config.Default: built-in defaults are invalid: %v", err))
	}
	return cfg
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	oc := orchestrator.DefaultConfig()
	v.SetDefault("orchestrator.max_actions_per_turn", oc.MaxActionsPerTurn)
	v.SetDefault("orchestrator.max_consecutive_failures", oc.MaxConsecutiveFailures)
	v.SetDefault("orchestrator.max_replans", oc.MaxReplans)
	v.SetDefault("orchestrator.max_fallback_replans", oc.MaxFallbackReplans)
	v.SetDefault("orchestrator.wait_frame_budget", oc.WaitFrameBudget)

	v.SetDefault("replan.hp_drop_threshold", oc.Replan.HPDropThreshold)
	v.SetDefault("replan.ranged_safety_margin", oc.Replan.RangedSafetyMargin)
	v.SetDefault("replan.hittable_increase", oc.Replan.HittableIncrease)

	ac := situation.DefaultConfig()
	v.SetDefault("phase.desperate_ally_hp", ac.Phase.DesperateAllyHP)
	v.SetDefault("phase.desperate_self_hp", ac.Phase.DesperateSelfHP)
	v.SetDefault("phase.cleanup_enemies", ac.Phase.CleanupEnemies)
	v.SetDefault("phase.opening_ap_ratio", ac.Phase.OpeningAPRatio)

	v.SetDefault("spatial.padding", ac.Padding)
	v.SetDefault("spatial.edge_margin", ac.EdgeMargin)
	v.SetDefault("spatial.melee_weight", ac.Influence.MeleeWeight)
	v.SetDefault("spatial.ranged_weight", ac.Influence.RangedWeight)
	v.SetDefault("spatial.contact_radius", ac.Influence.ContactRadius)
	v.SetDefault("spatial.safe_zone_radius", ac.Influence.SafeZoneRadius)
	v.SetDefault("spatial.max_safe_zones", ac.Influence.MaxSafeZones)
	v.SetDefault("spatial.cover_stamp_radius", ac.CoverStampRadius)
	v.SetDefault("spatial.safe_threshold", ac.Predictive.SafeThreshold)
	v.SetDefault("spatial.danger_threshold", ac.Predictive.DangerThreshold)
	v.SetDefault("spatial.gap_closer_bonus", ac.Predictive.GapCloserBonus)
	v.SetDefault("spatial.falloff", ac.Predictive.Falloff)

	v.SetDefault("cluster.radius", ac.Cluster.Radius)
	v.SetDefault("cluster.max_radius", ac.Cluster.MaxRadius)
	v.SetDefault("cluster.min_size", ac.Cluster.MinSize)
	v.SetDefault("cluster.blast_radius", ac.Cluster.BlastRadius)
	v.SetDefault("cluster.max_allies_in_blast", ac.Cluster.MaxAlliesInBlast)
	v.SetDefault("cluster.ally_penalty", ac.Cluster.AllyPenalty)

	pc := planner.DefaultConfig()
	v.SetDefault("cluster.samples", pc.PlacementSamples)
	v.SetDefault("scoring.aoe_hit_bonus", pc.Scoring.AoEHitBonus)
	v.SetDefault("scoring.friendly_fire_penalty", pc.Scoring.FriendlyFirePenalty)
	v.SetDefault("scoring.max_allies_in_aoe", pc.Scoring.MaxAlliesInAoE)
	v.SetDefault("scoring.shared_target_bonus", pc.Scoring.SharedTargetBonus)
	v.SetDefault("scoring.wounded_hp", pc.WoundedHP)
	v.SetDefault("scoring.max_follow_ups", pc.MaxFollowUps)

	v.SetDefault("content.abilities", "")
	v.SetDefault("content.strategies", "")
	v.SetDefault("content.scripts", "")
	v.SetDefault("content.roles", "")
	v.SetDefault("content.script_instruction_limit", 0)
}
