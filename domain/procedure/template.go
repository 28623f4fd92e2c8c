package procedure

import "fmt"

// Template is a named, ordered list of actions bound to one phase by the
// agent spec. The controller runs the actions strictly in order.
type Template struct {
	name    string
	actions []Action
}

// NewTemplate creates a validated template. Action names must be unique
// within the template so history records attribute emissions unambiguously.
func NewTemplate(name string, actions ...Action) (*Template, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: template %q", ErrNoActions, name)
	}
	seen := make(map[string]struct{}, len(actions))
	ordered := make([]Action, len(actions))
	for i, a := range actions {
		if a == nil {
			return nil, fmt.Errorf("%w: template %q index %d", ErrNilAction, name, i)
		}
		if a.Name() == "" {
			return nil, fmt.Errorf("%w: template %q index %d", ErrEmptyName, name, i)
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("%w: %q in template %q", ErrDuplicateAction, a.Name(), name)
		}
		seen[a.Name()] = struct{}{}
		ordered[i] = a
	}
	return &Template{name: name, actions: ordered}, nil
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.name
}

// Actions returns the actions in execution order.
func (t *Template) Actions() []Action {
	out := make([]Action, len(t.actions))
	copy(out, t.actions)
	return out
}

// Len returns the number of actions.
func (t *Template) Len() int {
	return len(t.actions)
}
