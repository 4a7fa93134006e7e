package planner

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/scoring"
	"github.com/cory-johannsen/tactician/internal/game/sequence"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// ErrNoPlan is returned when no root method applies.
var ErrNoPlan = errors.New("no applicable strategy")

// Predicates evaluates named script hooks against a fact table.
type Predicates interface {
	EvalPredicate(scope, hook string, facts map[string]any) (bool, error)
}

// Config tunes the action builders.
type Config struct {
	Scoring scoring.Config
	// WoundedHP is the HP fraction under which an ally is a heal candidate.
	WoundedHP float64
	// PlacementSamples and PlacementStep bound the area-effect aim search.
	PlacementSamples int
	PlacementStep    float64
	// MinAoEHits is the fewest enemies an area attack must catch.
	MinAoEHits int
	// MaxFollowUps bounds extra attacks queued after the first.
	MaxFollowUps int
}

// DefaultConfig returns the tuning used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		Scoring:          scoring.DefaultConfig(),
		WoundedHP:        0.6,
		PlacementSamples: 49,
		PlacementStep:    0.5,
		MinAoEHits:       2,
		MaxFollowUps:     3,
	}
}

// Deps carries a Planner's collaborators.
type Deps struct {
	// Oracle is required.
	Oracle binding.Oracle
	// Scripts evaluates Precondition hooks; when nil such methods never apply.
	Scripts Predicates
	// Scope names the script VM hooks are looked up in.
	Scope    string
	Profiles scoring.Profiles
	Config   Config
	Logger   *zap.Logger
}

// Planner evaluates one strategy domain and produces turn plans.
//
// Invariant: domain and oracle are never nil.
type Planner struct {
	domain    *Domain
	scripts   Predicates
	scope     string
	oracle    binding.Oracle
	profiles  scoring.Profiles
	optimizer *sequence.Optimizer
	cfg       Config
	logger    *zap.Logger
}

// NewPlanner validates domain and constructs a Planner.
//
// Precondition: domain and deps.Oracle must not be nil.
// Postcondition: returns the domain's validation error, if any.
func NewPlanner(domain *Domain, deps Deps) (*Planner, error) {
	if domain == nil {
		panic("planner.NewPlanner: domain must not be nil")
	}
	if deps.Oracle == nil {
		panic("planner.NewPlanner: oracle must not be nil")
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if deps.Profiles == nil {
		deps.Profiles = scoring.DefaultProfiles()
	}
	if deps.Config == (Config{}) {
		deps.Config = DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	logger := deps.Logger.Named("planner").With(zap.String("domain", domain.ID))
	return &Planner{
		domain:    domain,
		scripts:   deps.Scripts,
		scope:     deps.Scope,
		oracle:    deps.Oracle,
		profiles:  deps.Profiles,
		optimizer: sequence.NewOptimizer(deps.Oracle, deps.Profiles, deps.Config.Scoring, deps.Logger),
		cfg:       deps.Config,
		logger:    logger,
	}, nil
}

// Domain returns the planner's strategy domain.
func (p *Planner) Domain() *Domain { return p.domain }

// maxSteps guards against cyclic decompositions.
const maxSteps = 64

// Plan evaluates the domain against sit and returns a budgeted turn plan.
// ctx is the turn's strategic context; it is read, never written.
//
// Precondition: sit must not be nil.
// Postcondition: on success the plan's last action is an end-turn action and
// the summed AP and MP costs never exceed sit.AP and sit.MP.
// Postcondition: returns ErrNoPlan when no root method applies.
func (p *Planner) Plan(sit *situation.Situation, ctx map[string]string) (*plan.TurnPlan, error) {
	if sit == nil {
		return nil, fmt.Errorf("planner.Plan: %w: situation must not be nil", ErrNoPlan)
	}
	env := NewEnv(sit, ctx, p.cfg.WoundedHP)
	b := newBuild(p, sit, ctx)

	var (
		strategy plan.Strategy
		priority plan.Priority
		decided  bool
	)
	queue := []string{RootTask}
	for steps := 0; len(queue) > 0 && steps < maxSteps; steps++ {
		current := queue[0]
		queue = queue[1:]

		if op, ok := p.domain.OperatorByID(current); ok {
			b.run(op.Action)
			continue
		}

		m := p.findApplicableMethod(current, env)
		if m == nil {
			if current == RootTask {
				return nil, fmt.Errorf("planner.Plan %q: %w", sit.Self.ID, ErrNoPlan)
			}
			continue
		}
		if !decided && m.Strategy != "" {
			strategy, priority, decided = plan.Strategy(m.Strategy), plan.ParsePriority(m.Priority), true
		}
		next := make([]string, 0, len(m.Subtasks)+len(queue))
		next = append(next, m.Subtasks...)
		queue = append(next, queue...)
	}
	if !decided {
		strategy = plan.StrategyEnd
	}

	tp := plan.New(sit.Self.ID, strategy, priority, sit.Metrics())
	tp.TargetID = b.targetID
	tp.Enqueue(b.actions...)
	if last, ok := lastAction(b.actions); !ok || last.Type != plan.ActionEndTurn {
		tp.Enqueue(plan.NewAction(plan.ActionEndTurn, "turn complete"))
	}

	p.logger.Debug("plan built",
		zap.String("unit", sit.Self.ID),
		zap.String("strategy", string(strategy)),
		zap.Stringer("priority", priority),
		zap.String("target", tp.TargetID),
		zap.Int("actions", tp.RemainingActionCount()),
		zap.Float64("ap_left", b.budget.AP),
		zap.Float64("mp_left", b.budget.MP),
	)
	return tp, nil
}

func lastAction(actions []*plan.PlannedAction) (*plan.PlannedAction, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	return actions[len(actions)-1], true
}

// findApplicableMethod returns the first Method for taskID whose guards pass,
// or nil if none applies. Guard errors count as false.
func (p *Planner) findApplicableMethod(taskID string, env Env) *Method {
	for _, m := range p.domain.MethodsForTask(taskID) {
		if p.applies(m, env) {
			return m
		}
	}
	return nil
}

func (p *Planner) applies(m *Method, env Env) bool {
	if m.program != nil {
		out, err := vm.Run(m.program, env)
		if err != nil {
			p.logger.Warn("method guard failed", zap.String("method", m.ID), zap.Error(err))
			return false
		}
		if ok, _ := out.(bool); !ok {
			return false
		}
	}
	if m.Precondition == "" {
		return true
	}
	if p.scripts == nil {
		p.logger.Warn("script precondition without script host", zap.String("method", m.ID), zap.String("hook", m.Precondition))
		return false
	}
	ok, err := p.scripts.EvalPredicate(p.scope, m.Precondition, env.Facts())
	if err != nil {
		p.logger.Warn("script precondition failed", zap.String("method", m.ID), zap.String("hook", m.Precondition), zap.Error(err))
		return false
	}
	return ok
}
