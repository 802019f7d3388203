package lifecycle

import "github.com/entrhq/persona/pkg/persona"

// ResolveFunc locates an archetype.
type ResolveFunc func(archetype string) (*persona.Descriptor, error)

// Plan is the reconciled set of personas to load at session start.
type Plan struct {
	// ToLoad lists resolvable archetypes: auto-load entries first, then
	// handoff entries, without duplicates.
	ToLoad []string

	// Reasons labels every candidate, including missing ones.
	Reasons map[string]Reason

	// Missing lists candidates that did not resolve.
	Missing []string

	// Resolved holds the descriptor of each archetype in ToLoad.
	Resolved map[string]*persona.Descriptor
}

// MissingFor returns the missing archetypes with the given reason.
func (p Plan) MissingFor(reason Reason) []string {
	var out []string
	for _, a := range p.Missing {
		if p.Reasons[a] == reason {
			out = append(out, a)
		}
	}
	return out
}

// Reconcile merges auto-load configuration with handoff archetypes. An
// archetype in both is labeled auto. Each candidate is resolved on its own;
// failures go to Missing and never stop the others.
func Reconcile(autoLoad, handoff []string, resolve ResolveFunc) Plan {
	plan := Plan{
		Reasons:  make(map[string]Reason),
		Resolved: make(map[string]*persona.Descriptor),
	}

	var order []string
	add := func(list []string, reason Reason) {
		for _, a := range list {
			if a == "" {
				continue
			}
			if _, seen := plan.Reasons[a]; seen {
				continue
			}
			plan.Reasons[a] = reason
			order = append(order, a)
		}
	}
	add(autoLoad, ReasonAuto)
	add(handoff, ReasonRestored)

	for _, a := range order {
		d, err := resolve(a)
		if err != nil || d == nil {
			plan.Missing = append(plan.Missing, a)
			continue
		}
		plan.ToLoad = append(plan.ToLoad, a)
		plan.Resolved[a] = d
	}
	return plan
}
