package application

import "errors"

var (
	// ErrNilSpec indicates a controller created without an agent spec.
	ErrNilSpec = errors.New("controller requires an agent spec")

	// ErrNilStore indicates a controller created without a state store.
	ErrNilStore = errors.New("controller requires a state store")

	// ErrNoProcedure indicates the derived phase has no bound procedure.
	// Spec validation makes this unreachable for specs built through
	// agentspec.New; it guards against hand-assembled specs.
	ErrNoProcedure = errors.New("derived phase has no procedure")

	// ErrIterationBudget indicates the runner hit its iteration cap without
	// reaching a terminal outcome.
	ErrIterationBudget = errors.New("iteration budget exhausted")
)
