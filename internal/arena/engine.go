package arena

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/tactician/internal/config"
	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/dice"
	"github.com/cory-johannsen/tactician/internal/game/orchestrator"
	"github.com/cory-johannsen/tactician/internal/game/planner"
	"github.com/cory-johannsen/tactician/internal/game/scoring"
	"github.com/cory-johannsen/tactician/internal/game/situation"
	"github.com/cory-johannsen/tactician/internal/scripting"
)

var _ binding.Binding = (*Arena)(nil)

// Content is the data the decision core is built from.
type Content struct {
	Timings  *situation.Table
	Profiles scoring.Profiles
	// Domains holds the loaded strategy domains; the built-in domain is used
	// as the fallback when none of them is role-less.
	Domains []*planner.Domain
	// Scripts is nil when no script directory is configured.
	Scripts *scripting.Manager
}

// Close releases the script VMs.
func (c *Content) Close() {
	if c.Scripts != nil {
		c.Scripts.Close()
	}
}

// LoadContent loads every configured content source concurrently. Empty
// paths fall back to the built-in content.
//
// Postcondition: on error no script VMs are left open.
func LoadContent(ctx context.Context, cfg config.ContentConfig, logger *zap.Logger) (*Content, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Content{
		Timings:  situation.NewTable(nil),
		Profiles: scoring.DefaultProfiles(),
	}
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Abilities != "" {
		g.Go(func() error {
			t, err := situation.LoadTable(cfg.Abilities)
			if err != nil {
				return err
			}
			c.Timings = t
			return ctx.Err()
		})
	}
	if cfg.Roles != "" {
		g.Go(func() error {
			p, err := scoring.LoadProfiles(cfg.Roles)
			if err != nil {
				return err
			}
			c.Profiles = p
			return ctx.Err()
		})
	}
	if cfg.Strategies != "" {
		g.Go(func() error {
			ds, err := planner.LoadDomains(cfg.Strategies)
			if err != nil {
				return err
			}
			c.Domains = ds
			return ctx.Err()
		})
	}
	if cfg.Scripts != "" {
		g.Go(func() error {
			m, err := loadScripts(cfg.Scripts, cfg.ScriptInstructionLimit, logger)
			if err != nil {
				return err
			}
			c.Scripts = m
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("arena.LoadContent: %w", err)
	}
	logger.Info("content loaded",
		zap.Int("domains", len(c.Domains)),
		zap.Bool("scripts", c.Scripts != nil),
	)
	return c, nil
}

// loadScripts loads dir's *.lua files as the global VM and each subdirectory
// as the scope of the domain it is named after.
func loadScripts(dir string, limit int, logger *zap.Logger) (*scripting.Manager, error) {
	m := scripting.NewManager(logger)
	if err := m.LoadGlobal(dir, limit); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("reading script dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadScope(e.Name(), filepath.Join(dir, e.Name()), limit); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

// Engine is a scenario arena with the full decision core attached.
type Engine struct {
	Arena        *Arena
	Board        *blackboard.Blackboard
	Orchestrator *orchestrator.Orchestrator
	Simulator    *Simulator
}

// NewEngine assembles the blackboard, analyzer, planners, and orchestrator
// over a fresh arena for scn. Damage rolls are seeded from the scenario.
//
// Precondition: scn and content must be non-nil.
// Postcondition: returns an error if a strategy domain cannot be registered.
func NewEngine(cfg config.Config, scn *Scenario, content *Content, logger *zap.Logger) (*Engine, error) {
	if scn == nil || content == nil {
		panic("arena.NewEngine: scenario and content must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	board := blackboard.New(logger)
	roller := dice.NewLoggedRoller(dice.NewSeededSource(scn.Seed), logger)
	a := New(scn, roller, board, logger)

	reg := planner.NewRegistry()
	var scripts planner.Predicates
	if content.Scripts != nil {
		scripts = content.Scripts
	}
	hasFallback := false
	for _, d := range content.Domains {
		if len(d.Roles) == 0 {
			hasFallback = true
		}
		if err := reg.Register(d, planner.Deps{
			Oracle:   a,
			Scripts:  scripts,
			Scope:    d.ID,
			Profiles: content.Profiles,
			Config:   cfg.PlannerConfig(),
			Logger:   logger,
		}); err != nil {
			return nil, fmt.Errorf("arena.NewEngine: %w", err)
		}
	}
	if !hasFallback {
		if err := reg.Register(planner.DefaultDomain(), planner.Deps{
			Oracle:   a,
			Profiles: content.Profiles,
			Config:   cfg.PlannerConfig(),
			Logger:   logger,
		}); err != nil {
			return nil, fmt.Errorf("arena.NewEngine: %w", err)
		}
	}

	analyzer := situation.NewAnalyzer(a, content.Timings, cfg.AnalyzerConfig(), logger)
	orch := orchestrator.New(a, analyzer, orchestrator.FromRegistry(reg), board, cfg.OrchestratorConfig(), logger)
	sim := NewSimulator(scn.ID, a, orch, SimConfig{MaxRounds: scn.MaxRounds}, logger)
	return &Engine{Arena: a, Board: board, Orchestrator: orch, Simulator: sim}, nil
}
