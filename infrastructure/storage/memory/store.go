// Package memory provides an in-memory state store for tests and embedded
// use. Stored facts and records are deep-copied through their JSON encoding
// so callers can never mutate stored state through shared references.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
)

type session struct {
	durable fact.Facts
	history []state.Record
}

// Store is an in-memory implementation of state.Store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*session)}
}

func sessionKey(agentID, sessionID string) string {
	return agentID + "/" + sessionID
}

// Bootstrap seeds a session with initial durable facts. If the session
// already has state the seed is ignored.
func (s *Store) Bootstrap(ctx context.Context, agentID, sessionID string, seed fact.Facts) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return err
	}
	if err := state.ValidateDurable(seed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(agentID, sessionID)
	if _, exists := s.sessions[key]; exists {
		return nil
	}
	copied, err := copyFacts(seed)
	if err != nil {
		return err
	}
	s.sessions[key] = &session{durable: copied}
	return nil
}

// Load returns the session's current durable facts.
func (s *Store) Load(ctx context.Context, agentID, sessionID string) (fact.Facts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionKey(agentID, sessionID)]
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", state.ErrNotFound, agentID, sessionID)
	}
	return copyFacts(sess.durable)
}

// Save atomically overwrites the durable facts and appends one history
// record.
func (s *Store) Save(ctx context.Context, agentID, sessionID string, durable fact.Facts, rec state.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return err
	}
	if err := state.ValidateDurable(durable); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	copiedFacts, err := copyFacts(durable)
	if err != nil {
		return err
	}
	copiedRec, err := copyRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(agentID, sessionID)
	sess, exists := s.sessions[key]
	if !exists {
		sess = &session{}
		s.sessions[key] = sess
	}
	sess.durable = copiedFacts
	sess.history = append(sess.history, copiedRec)
	return nil
}

// History returns the session's records in append order.
func (s *Store) History(ctx context.Context, agentID, sessionID string) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionKey(agentID, sessionID)]
	if !exists {
		return nil, nil
	}
	records := make([]state.Record, 0, len(sess.history))
	for _, rec := range sess.history {
		copied, err := copyRecord(rec)
		if err != nil {
			return nil, err
		}
		records = append(records, copied)
	}
	return records, nil
}

func copyFacts(facts fact.Facts) (fact.Facts, error) {
	data, err := json.Marshal(facts)
	if err != nil {
		return nil, err
	}
	var copied fact.Facts
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, err
	}
	return copied, nil
}

func copyRecord(rec state.Record) (state.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return state.Record{}, err
	}
	var copied state.Record
	if err := json.Unmarshal(data, &copied); err != nil {
		return state.Record{}, err
	}
	return copied, nil
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
