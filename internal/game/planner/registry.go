package planner

import (
	"fmt"

	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// fallbackRole keys the planner used for roles with no dedicated domain.
const fallbackRole = ""

// Registry indexes Planners by role.
//
// Invariant: each role is registered at most once.
type Registry struct {
	planners map[string]*Planner
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{planners: make(map[string]*Planner)}
}

// Register builds a Planner for domain and stores it under each of the
// domain's roles, or as the fallback when it lists none.
//
// Precondition: domain must not be nil and deps.Predict must be set.
// Postcondition: returns error on validation failure or role collision; nothing
// is registered on error.
func (r *Registry) Register(domain *Domain, deps Deps) error {
	keys := []string{fallbackRole}
	if len(domain.Roles) > 0 {
		keys = keys[:0]
		for _, role := range domain.Roles {
			keys = append(keys, situation.ParseRole(role).String())
		}
	}
	for _, k := range keys {
		if _, exists := r.planners[k]; exists {
			return fmt.Errorf("planner.Registry: domain %q: role %q already registered", domain.ID, displayRole(k))
		}
	}
	p, err := NewPlanner(domain, deps)
	if err != nil {
		return fmt.Errorf("planner.Registry: %w", err)
	}
	for _, k := range keys {
		r.planners[k] = p
	}
	return nil
}

// PlannerFor returns the Planner for role, falling back to the role-less
// domain, or false if neither is registered.
func (r *Registry) PlannerFor(role situation.Role) (*Planner, bool) {
	if p, ok := r.planners[role.String()]; ok {
		return p, true
	}
	p, ok := r.planners[fallbackRole]
	return p, ok
}

func displayRole(k string) string {
	if k == fallbackRole {
		return "fallback"
	}
	return k
}
