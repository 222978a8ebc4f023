package main

import "fmt"

// ExecPolicy selects how the executor treats a spawned action.
type ExecPolicy string

const (
	// PolicyFireAndForget spawns and does not track completion.
	PolicyFireAndForget ExecPolicy = "fire_and_forget"
	// PolicyTracked spawns and asynchronously awaits completion, logging
	// spawn failures and non-zero exits.
	PolicyTracked ExecPolicy = "tracked"
)

func parsePolicy(s string) (ExecPolicy, error) {
	switch ExecPolicy(s) {
	case "":
		return PolicyFireAndForget, nil
	case PolicyFireAndForget, PolicyTracked:
		return ExecPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown execution policy: %q", s)
	}
}

// ActionDescriptor is one resolved, immutable action.
type ActionDescriptor struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Policy  ExecPolicy
}

type bindingKey struct {
	Kind     EventKind
	Modifier Modifier
}

func (k bindingKey) String() string {
	if k.Modifier == ModNone {
		return string(k.Kind)
	}
	return string(k.Kind) + "+" + string(k.Modifier)
}

// Resolver maps classified events to configured actions. The table is built
// once at startup and read-only afterwards, so it may be shared freely.
type Resolver struct {
	table map[bindingKey]ActionDescriptor
}

// newResolver builds the binding table from config entries. It owns binding
// validation: unknown kinds/modifiers/policies, empty commands, and duplicate
// (event, modifier) keys are all configuration errors.
func newResolver(bindings []BindingConfig) (*Resolver, error) {
	table := make(map[bindingKey]ActionDescriptor, len(bindings))

	for i, b := range bindings {
		kind, err := parseEventKind(b.On)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		mod, err := parseModifier(b.Modifier)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		policy, err := parsePolicy(b.Policy)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		if b.Command == "" {
			return nil, fmt.Errorf("bindings[%d]: command must not be empty", i)
		}

		key := bindingKey{Kind: kind, Modifier: mod}
		if _, dup := table[key]; dup {
			return nil, fmt.Errorf("bindings[%d]: duplicate binding for %s", i, key)
		}

		name := b.Name
		if name == "" {
			name = key.String()
		}

		table[key] = ActionDescriptor{
			Name:    name,
			Command: b.Command,
			Args:    b.Args,
			Env:     b.Env,
			Policy:  policy,
		}
	}

	return &Resolver{table: table}, nil
}

// Resolve looks up the action bound to an event. A miss is not an error;
// unbound events are simply dropped by the caller.
func (r *Resolver) Resolve(ev LogicalEvent) (ActionDescriptor, bool) {
	desc, ok := r.table[bindingKey{Kind: ev.Kind, Modifier: ev.Modifier}]
	return desc, ok
}
