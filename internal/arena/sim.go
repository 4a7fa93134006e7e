package arena

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/orchestrator"
)

// Driver is the decision surface the simulator plays turns through.
// *orchestrator.Orchestrator satisfies it.
type Driver interface {
	OnTurnStart(unitID string)
	ProcessTurn(unitID string) orchestrator.ExecutionResult
	OnTurnEnd(unitID string)
	OnCombatEnd()
}

// SimConfig bounds a simulated combat.
type SimConfig struct {
	// MaxRounds ends the combat as a draw once exceeded.
	MaxRounds int
	// MaxCyclesPerTurn caps ProcessTurn calls within one turn.
	MaxCyclesPerTurn int
}

// DefaultSimConfig returns bounds suited to the bundled scenarios.
func DefaultSimConfig() SimConfig {
	return SimConfig{MaxRounds: 30, MaxCyclesPerTurn: 500}
}

// Report summarizes a finished combat.
type Report struct {
	Scenario string
	// Winner is the surviving faction; empty on a draw.
	Winner string
	// Rounds is the last round in which a turn was played.
	Rounds int
	Turns  int
	// Actions counts commands the driver issued.
	Actions int
	Events  []Event
}

// Simulator alternates turns on an Arena, forwarding the driver's commands.
type Simulator struct {
	arena    *Arena
	driver   Driver
	cfg      SimConfig
	scenario string
	logger   *zap.Logger
}

// NewSimulator wires driver to arena.
//
// Precondition: arena and driver must be non-nil.
func NewSimulator(scenario string, arena *Arena, driver Driver, cfg SimConfig, logger *zap.Logger) *Simulator {
	if arena == nil {
		panic("arena.NewSimulator: arena must not be nil")
	}
	if driver == nil {
		panic("arena.NewSimulator: driver must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultSimConfig().MaxRounds
	}
	if cfg.MaxCyclesPerTurn <= 0 {
		cfg.MaxCyclesPerTurn = DefaultSimConfig().MaxCyclesPerTurn
	}
	return &Simulator{arena: arena, driver: driver, cfg: cfg, scenario: scenario, logger: logger.Named("sim")}
}

// Run plays the combat to a winner, the round cap, or ctx cancellation.
//
// Postcondition: the driver's OnCombatEnd has been called exactly once.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	defer s.driver.OnCombatEnd()
	rep := Report{Scenario: s.scenario}
	s.arena.Start()
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(rep), fmt.Errorf("arena.Run: %w", err)
		}
		if winner, over := s.arena.Winner(); over {
			rep.Winner = winner
			break
		}
		unitID, round := s.arena.ActingUnit()
		if round > s.cfg.MaxRounds {
			s.logger.Info("round cap reached", zap.Int("rounds", s.cfg.MaxRounds))
			break
		}
		rep.Rounds = round
		if u, ok := s.arena.Unit(unitID); ok && u.Controllable {
			rep.Actions += s.playTurn(unitID)
		}
		rep.Turns++
		s.arena.EndTurn()
	}
	rep = s.finish(rep)
	s.logger.Info("combat finished",
		zap.String("scenario", rep.Scenario),
		zap.String("winner", rep.Winner),
		zap.Int("rounds", rep.Rounds),
		zap.Int("turns", rep.Turns),
	)
	return rep, nil
}

func (s *Simulator) finish(rep Report) Report {
	rep.Events = s.arena.Events()
	return rep
}

// playTurn runs decision cycles for one unit and returns how many commands it issued.
func (s *Simulator) playTurn(unitID string) int {
	s.driver.OnTurnStart(unitID)
	defer s.driver.OnTurnEnd(unitID)
	issued := 0
	for i := 0; i < s.cfg.MaxCyclesPerTurn; i++ {
		res := s.driver.ProcessTurn(unitID)
		switch res.Kind {
		case orchestrator.ResultCastAbility:
			s.arena.Cast(unitID, res.AbilityID, res.Target)
			issued++
		case orchestrator.ResultMoveTo:
			s.arena.Move(unitID, res.Target.Point)
			issued++
		case orchestrator.ResultWaiting:
			s.arena.Tick()
		case orchestrator.ResultEndTurn:
			s.logger.Debug("turn ended", zap.String("unit", unitID), zap.String("reason", res.Reason))
			return issued
		}
	}
	s.logger.Warn("turn cycle cap reached", zap.String("unit", unitID))
	return issued
}
