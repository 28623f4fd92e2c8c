package state

import (
	"context"

	"github.com/felixgeelhaar/factrun/domain/fact"
)

// Store persists session state. A session is identified by agent and session
// IDs; the current durable facts form one overwritable record per session and
// the iteration records form an append-only history alongside it.
//
// Implementations must make Save atomic per session: the durable facts and
// the history record land together or not at all. Any conforming backend is
// behaviorally interchangeable with any other.
type Store interface {
	// Bootstrap seeds a session with initial durable facts. It is idempotent:
	// if the session already has saved state, the seed is ignored.
	Bootstrap(ctx context.Context, agentID, sessionID string, seed fact.Facts) error

	// Load returns the current durable facts. ErrNotFound when the session
	// has no saved state.
	Load(ctx context.Context, agentID, sessionID string) (fact.Facts, error)

	// Save atomically overwrites the durable facts and appends one iteration
	// record. The facts must all be durable-scoped.
	Save(ctx context.Context, agentID, sessionID string, durable fact.Facts, rec Record) error

	// History returns all iteration records in append order.
	History(ctx context.Context, agentID, sessionID string) ([]Record, error)
}

// ValidateIDs checks the session identifiers shared by all store methods.
func ValidateIDs(agentID, sessionID string) error {
	if agentID == "" || sessionID == "" {
		return ErrInvalidID
	}
	return nil
}
