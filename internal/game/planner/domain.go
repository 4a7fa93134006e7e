// Package planner builds turn plans by evaluating a Hierarchical Task Network
// (HTN) strategy domain against a situation.
//
// Tasks decompose into ordered methods; the first method whose guards pass is
// taken. Guards are expr expressions over Env or named script hooks. Leaf
// operators name action builders that append budgeted actions to the plan.
package planner

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactician/internal/game/plan"
)

// RootTask is the task every plan decomposes from.
const RootTask = "turn"

// Actions lists every operator action a domain may name.
var Actions = []string{
	"emergency_heal",
	"emergency_buff",
	"retreat",
	"reload",
	"heal_ally",
	"buff",
	"pre_attack_buff",
	"debuff",
	"mark",
	"aoe_attack",
	"attack",
	"ultimate",
	"approach",
	"end_turn",
}

var strategies = map[string]struct{}{
	string(plan.StrategyAttack):    {},
	string(plan.StrategyRetreat):   {},
	string(plan.StrategyReload):    {},
	string(plan.StrategySupport):   {},
	string(plan.StrategyEmergency): {},
	string(plan.StrategyEnd):       {},
}

// Task is an abstract goal that can be decomposed by methods.
//
// Precondition: ID must be non-empty.
type Task struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Method decomposes a task into an ordered list of subtasks or operator IDs.
//
// When is an expr expression over Env and Precondition a script hook name;
// either may be empty, and both must pass when both are set. Strategy and
// Priority, when set, fix the plan's strategy the first time the method is taken.
type Method struct {
	TaskID       string   `yaml:"task"`
	ID           string   `yaml:"id"`
	When         string   `yaml:"when"`
	Precondition string   `yaml:"precondition"`
	Strategy     string   `yaml:"strategy"`
	Priority     string   `yaml:"priority"`
	Subtasks     []string `yaml:"subtasks"`

	program  *vm.Program
	compiled string
}

// Operator is a primitive step naming the action builder that realises it.
//
// Precondition: ID and Action must be non-empty.
type Operator struct {
	ID     string `yaml:"id"`
	Action string `yaml:"action"`
}

// Domain holds a full strategy domain.
//
// Invariant: all Task, Method, and Operator IDs are unique within their slice.
type Domain struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	// Roles lists the roles this domain plans for; empty means the fallback domain.
	Roles     []string    `yaml:"roles"`
	Tasks     []*Task     `yaml:"tasks"`
	Methods   []*Method   `yaml:"methods"`
	Operators []*Operator `yaml:"operators"`
}

// Validate checks all required fields and cross-field constraints and compiles
// every When expression.
//
// Postcondition: nil return guarantees the root task exists, all IDs are
// unique, every subtask names a task or operator, every operator names a
// known action, and every method guard compiles to a boolean program.
func (d *Domain) Validate() error {
	if d.ID == "" {
		return errors.New("planner.Domain: ID must not be empty")
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("planner.Domain %q: must have at least one task", d.ID)
	}

	taskIDs := make(map[string]struct{}, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.ID == "" {
			return fmt.Errorf("planner.Domain %q: task has empty ID", d.ID)
		}
		if _, dup := taskIDs[t.ID]; dup {
			return fmt.Errorf("planner.Domain %q: duplicate task ID %q", d.ID, t.ID)
		}
		taskIDs[t.ID] = struct{}{}
	}
	if _, ok := taskIDs[RootTask]; !ok {
		return fmt.Errorf("planner.Domain %q: missing root task %q", d.ID, RootTask)
	}

	known := make(map[string]struct{}, len(Actions))
	for _, a := range Actions {
		known[a] = struct{}{}
	}
	operatorIDs := make(map[string]struct{}, len(d.Operators))
	for _, op := range d.Operators {
		if op.ID == "" || op.Action == "" {
			return fmt.Errorf("planner.Domain %q: operator missing ID or Action", d.ID)
		}
		if _, ok := known[op.Action]; !ok {
			return fmt.Errorf("planner.Domain %q operator %q: unknown action %q", d.ID, op.ID, op.Action)
		}
		if _, dup := operatorIDs[op.ID]; dup {
			return fmt.Errorf("planner.Domain %q: duplicate operator ID %q", d.ID, op.ID)
		}
		if _, clash := taskIDs[op.ID]; clash {
			return fmt.Errorf("planner.Domain %q: operator %q shadows a task", d.ID, op.ID)
		}
		operatorIDs[op.ID] = struct{}{}
	}

	methodIDs := make(map[string]struct{}, len(d.Methods))
	for _, m := range d.Methods {
		if m.TaskID == "" || m.ID == "" {
			return fmt.Errorf("planner.Domain %q: method missing TaskID or ID", d.ID)
		}
		if len(m.Subtasks) == 0 {
			return fmt.Errorf("planner.Domain %q method %q: subtasks must not be empty", d.ID, m.ID)
		}
		if _, dup := methodIDs[m.ID]; dup {
			return fmt.Errorf("planner.Domain %q: duplicate method ID %q", d.ID, m.ID)
		}
		methodIDs[m.ID] = struct{}{}
		if _, ok := taskIDs[m.TaskID]; !ok {
			return fmt.Errorf("planner.Domain %q method %q: TaskID %q references unknown task", d.ID, m.ID, m.TaskID)
		}
		for _, sub := range m.Subtasks {
			_, isTask := taskIDs[sub]
			_, isOp := operatorIDs[sub]
			if !isTask && !isOp {
				return fmt.Errorf("planner.Domain %q method %q: subtask %q is neither a task nor an operator", d.ID, m.ID, sub)
			}
		}
		if m.Strategy != "" {
			if _, ok := strategies[m.Strategy]; !ok {
				return fmt.Errorf("planner.Domain %q method %q: unknown strategy %q", d.ID, m.ID, m.Strategy)
			}
		}
		if m.Priority != "" && m.Priority != "normal" && m.Priority != "critical" {
			return fmt.Errorf("planner.Domain %q method %q: unknown priority %q", d.ID, m.ID, m.Priority)
		}
		// An unchanged, validated domain is read-only here.
		switch {
		case m.When == "":
			if m.program != nil {
				m.program, m.compiled = nil, ""
			}
		case m.program == nil || m.compiled != m.When:
			prog, err := expr.Compile(m.When, expr.Env(Env{}), expr.AsBool())
			if err != nil {
				return fmt.Errorf("planner.Domain %q method %q: compiling when: %w", d.ID, m.ID, err)
			}
			m.program, m.compiled = prog, m.When
		}
	}
	return nil
}

// OperatorByID returns the operator with the given ID, or false if not found.
func (d *Domain) OperatorByID(id string) (*Operator, bool) {
	for _, op := range d.Operators {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

// MethodsForTask returns all methods that decompose taskID, in declaration order.
func (d *Domain) MethodsForTask(taskID string) []*Method {
	var out []*Method
	for _, m := range d.Methods {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

// yamlDomainFile wraps the YAML top-level key.
type yamlDomainFile struct {
	Domain *Domain `yaml:"domain"`
}

// ParseDomain decodes and validates one domain document.
func ParseDomain(data []byte) (*Domain, error) {
	var f yamlDomainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("planner.ParseDomain: %w", err)
	}
	if f.Domain == nil {
		return nil, errors.New("planner.ParseDomain: missing top-level 'domain' key")
	}
	if err := f.Domain.Validate(); err != nil {
		return nil, err
	}
	return f.Domain, nil
}

// LoadDomains reads all *.yaml files from dir and returns parsed Domains.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns error if any YAML file fails to parse or validate.
// Postcondition: returns (nil, nil) if dir contains no .yaml files.
func LoadDomains(dir string) ([]*Domain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("planner.LoadDomains: reading %q: %w", dir, err)
	}
	var domains []*Domain
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("planner.LoadDomains: reading %s: %w", e.Name(), err)
		}
		d, err := ParseDomain(data)
		if err != nil {
			return nil, fmt.Errorf("planner.LoadDomains: %s: %w", e.Name(), err)
		}
		domains = append(domains, d)
	}
	return domains, nil
}

//go:embed default_domain.yaml
var defaultDomainFS embed.FS

// DefaultDomain returns a freshly parsed copy of the built-in domain. It uses
// no script hooks.
func DefaultDomain() *Domain {
	data, err := defaultDomainFS.ReadFile("default_domain.yaml")
	if err != nil {
		panic("planner.DefaultDomain: " + err.Error())
	}
	d, err := ParseDomain(data)
	if err != nil {
		panic("planner.DefaultDomain: " + err.Error())
	}
	return d
}
