package logging

import (
	"strings"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/factrun/domain/phase"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for engine logging.

// AgentID adds an agent ID field.
func AgentID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent_id", id)
	}
}

// SessionID adds a session ID field.
func SessionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("session_id", id)
	}
}

// Iteration adds an iteration number field.
func Iteration(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("iteration", n)
	}
}

// Phase adds a phase field.
func Phase(p phase.Phase) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("phase", p.Name())
	}
}

// PhaseName adds a phase field from a bare name.
func PhaseName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("phase", name)
	}
}

// Action adds an action name field.
func Action(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action", name)
	}
}

// Template adds a procedure template field.
func Template(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("template", name)
	}
}

// Outcome adds an iteration outcome field.
func Outcome(outcome string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("outcome", outcome)
	}
}

// Keys adds a comma-joined fact key list field.
func Keys(keys []string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("keys", strings.Join(keys, ","))
	}
}

// MissingKeys adds the unsatisfied key list of a paused session.
func MissingKeys(keys []string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("missing_keys", strings.Join(keys, ","))
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Attempt adds a retry attempt field.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
