// Package agentspec assembles the declarative definition of an agent: its
// phases, policies and procedures. Construction validates the whole spec
// once; a spec that constructs successfully cannot reference a phase it does
// not declare, hide a transition rule behind an earlier one, or gate its
// policies on facts that never outlive an iteration.
package agentspec

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/factrun/domain/phase"
	"github.com/felixgeelhaar/factrun/domain/policy"
	"github.com/felixgeelhaar/factrun/domain/procedure"
)

// Config carries everything an agent spec is built from.
type Config struct {
	// Name identifies the agent.
	Name string

	// Version labels this revision of the spec.
	Version string

	// Phases is the closed set of phases the agent can be in.
	Phases *phase.Set

	// Control is evaluated before every iteration and can preempt it.
	Control policy.Control

	// Transition derives the current phase from durable fact keys.
	Transition policy.Transition

	// Procedures binds each phase to the work performed in it.
	Procedures map[phase.Phase]*procedure.Template
}

// Spec is a validated, immutable agent definition.
type Spec struct {
	name       string
	version    string
	phases     *phase.Set
	control    policy.Control
	transition policy.Transition
	procedures map[phase.Phase]*procedure.Template
	warnings   []Issue
}

// New validates the config and builds the spec. All validators run; every
// error-severity issue is reported in one pass.
func New(cfg Config) (*Spec, error) {
	if cfg.Phases == nil {
		return nil, fmt.Errorf("%w: phases are required", ErrNilConfig)
	}

	issues := validate(cfg)

	var failures []string
	var warnings []Issue
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			failures = append(failures, issue.String())
		} else {
			warnings = append(warnings, issue)
		}
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(failures, "; "))
	}

	procedures := make(map[phase.Phase]*procedure.Template, len(cfg.Procedures))
	for p, tpl := range cfg.Procedures {
		procedures[p] = tpl
	}

	return &Spec{
		name:       cfg.Name,
		version:    cfg.Version,
		phases:     cfg.Phases,
		control:    cfg.Control,
		transition: cfg.Transition,
		procedures: procedures,
		warnings:   warnings,
	}, nil
}

// Name returns the agent name.
func (s *Spec) Name() string {
	return s.name
}

// Version returns the spec revision label.
func (s *Spec) Version() string {
	return s.version
}

// Phases returns the phase set.
func (s *Spec) Phases() *phase.Set {
	return s.phases
}

// Control returns the control policy.
func (s *Spec) Control() policy.Control {
	return s.control
}

// Transition returns the transition policy.
func (s *Spec) Transition() policy.Transition {
	return s.transition
}

// Procedure returns the template bound to the phase.
func (s *Spec) Procedure(p phase.Phase) (*procedure.Template, bool) {
	tpl, ok := s.procedures[p]
	return tpl, ok
}

// Warnings returns the non-fatal issues found at construction, for the
// runtime to surface.
func (s *Spec) Warnings() []Issue {
	out := make([]Issue, len(s.warnings))
	copy(out, s.warnings)
	return out
}
