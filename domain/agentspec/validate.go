package agentspec

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of the construction-time validators. Key, Action and
// Policy name the involved parts where applicable.
type Issue struct {
	Severity Severity
	Message  string
	Key      string
	Action   string
	Policy   string
}

// String renders the issue for error messages and logs.
func (i Issue) String() string {
	msg := i.Message
	if i.Key != "" {
		msg = fmt.Sprintf("%s (key %q)", msg, i.Key)
	}
	if i.Action != "" {
		msg = fmt.Sprintf("%s (action %q)", msg, i.Action)
	}
	if i.Policy != "" {
		msg = fmt.Sprintf("%s (policy %s)", msg, i.Policy)
	}
	return msg
}

func errIssue(message string) Issue {
	return Issue{Severity: SeverityError, Message: message}
}

func validate(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, validateIdentity(cfg)...)
	issues = append(issues, validatePhaseRefs(cfg)...)
	issues = append(issues, validateRuleOverlap(cfg)...)
	issues = append(issues, validateControlKeys(cfg)...)
	issues = append(issues, validateFactScopes(cfg)...)
	return issues
}

func validateIdentity(cfg Config) []Issue {
	var issues []Issue
	if cfg.Name == "" {
		issues = append(issues, errIssue("agent name is empty"))
	}
	if cfg.Version == "" {
		issues = append(issues, errIssue("agent version is empty"))
	}
	if cfg.Phases.Len() == 0 {
		issues = append(issues, errIssue("phase set is empty"))
	}
	return issues
}

// validatePhaseRefs checks that every phase the spec mentions belongs to its
// phase set and that every phase has a procedure.
func validatePhaseRefs(cfg Config) []Issue {
	var issues []Issue

	if cfg.Transition.Default.IsZero() {
		issues = append(issues, errIssue("transition policy has no default phase"))
	} else if !cfg.Phases.Contains(cfg.Transition.Default) {
		issues = append(issues, errIssue(
			fmt.Sprintf("transition default %q is not a declared phase", cfg.Transition.Default)))
	}

	derivable := map[phase.Phase]struct{}{cfg.Transition.Default: {}}
	for i, rule := range cfg.Transition.Rules {
		if err := rule.Validate(); err != nil {
			issues = append(issues, errIssue(fmt.Sprintf("rule %d: %v", i, err)))
			continue
		}
		if !cfg.Phases.Contains(rule.Enter) {
			issues = append(issues, errIssue(
				fmt.Sprintf("rule %d enters %q, not a declared phase", i, rule.Enter)))
		}
		derivable[rule.Enter] = struct{}{}
	}

	for p := range cfg.Procedures {
		if !cfg.Phases.Contains(p) {
			issues = append(issues, errIssue(
				fmt.Sprintf("procedure bound to %q, not a declared phase", p)))
		}
	}

	for _, p := range cfg.Phases.All() {
		tpl, ok := cfg.Procedures[p]
		if !ok || tpl == nil {
			issues = append(issues, errIssue(
				fmt.Sprintf("phase %q has no procedure", p)))
			continue
		}
		if _, reachable := derivable[p]; !reachable {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("phase %q can never be derived by the transition policy", p),
			})
		}
	}

	return issues
}

// validateRuleOverlap rejects rules that an earlier rule fully shadows. With
// first-match-wins evaluation a shadowed rule can never fire.
func validateRuleOverlap(cfg Config) []Issue {
	var issues []Issue
	rules := cfg.Transition.Rules
	for i := 0; i < len(rules); i++ {
		if rules[i].Validate() != nil {
			continue
		}
		for j := i + 1; j < len(rules); j++ {
			if rules[j].Validate() != nil {
				continue
			}
			if rules[i].Shadows(rules[j]) {
				issues = append(issues, errIssue(fmt.Sprintf(
					"rule %d (enter %s) is unreachable: shadowed by rule %d (enter %s)",
					j, rules[j].Enter, i, rules[i].Enter)))
			}
		}
	}
	return issues
}

func validateControlKeys(cfg Config) []Issue {
	if cfg.Control.CompletionKeys.Intersects(cfg.Control.FailureKeys) {
		shared := fact.KeySet{}
		for k := range cfg.Control.CompletionKeys {
			if cfg.Control.FailureKeys.Contains(k) {
				shared[k] = struct{}{}
			}
		}
		return []Issue{errIssue(fmt.Sprintf(
			"completion and failure keys overlap: %v", shared.Sorted()))}
	}
	return nil
}

// declaration records where a policy-visible key is emitted.
type declaration struct {
	action string
	scope  fact.Scope
}

// validateFactScopes cross-references every policy-referenced key against all
// declared emissions. A key declared iteration-scoped anywhere can never
// satisfy a policy that reads durable state, so referencing it is an error.
// A key no action declares is only a warning: it may arrive externally.
func validateFactScopes(cfg Config) []Issue {
	declared := map[string][]declaration{}
	for _, tpl := range cfg.Procedures {
		if tpl == nil {
			continue
		}
		for _, action := range tpl.Actions() {
			emits := action.Emits()
			if emits == nil {
				continue
			}
			for key, decl := range emits.Flatten() {
				declared[key] = append(declared[key], declaration{
					action: action.Name(),
					scope:  decl.Scope,
				})
			}
		}
	}

	referenced := map[string]fact.KeySet{
		"control":    cfg.Control.ReferencedKeys(),
		"transition": cfg.Transition.ReferencedKeys(),
	}

	var issues []Issue
	policies := make([]string, 0, len(referenced))
	for name := range referenced {
		policies = append(policies, name)
	}
	sort.Strings(policies)

	for _, policyName := range policies {
		for _, key := range referenced[policyName].Sorted() {
			decls, ok := declared[key]
			if !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Message:  "policy references a key no action declares",
					Key:      key,
					Policy:   policyName,
				})
				continue
			}
			for _, d := range decls {
				if d.scope == fact.ScopeIteration {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Message:  "policy references an iteration-scoped key",
						Key:      key,
						Action:   d.action,
						Policy:   policyName,
					})
				}
			}
		}
	}
	return issues
}
