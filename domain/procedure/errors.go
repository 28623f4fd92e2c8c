package procedure

import "errors"

var (
	// ErrEmptyName indicates a template or action without a name.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrNoActions indicates a template created without actions.
	ErrNoActions = errors.New("template has no actions")

	// ErrNilAction indicates a nil entry in a template's action list.
	ErrNilAction = errors.New("template contains a nil action")

	// ErrDuplicateAction indicates two actions in one template share a name.
	ErrDuplicateAction = errors.New("duplicate action name")

	// ErrNoEmissionSpec indicates an emitting helper action built without a
	// declaration.
	ErrNoEmissionSpec = errors.New("action has no emission spec")
)
