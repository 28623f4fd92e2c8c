package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
)

// Store is a BadgerDB-backed implementation of state.Store.
//
// Key layout, all under the configured prefix:
//
//	state:<agent>/<session>            current durable facts (JSON)
//	seq:<agent>/<session>              history sequence counter (8 bytes, big-endian)
//	hist:<agent>/<session>:<seq>       one history record (JSON), seq big-endian
//
// Big-endian sequence suffixes keep history records in append order under
// badger's lexicographic key iteration.
type Store struct {
	db        *badger.DB
	keyPrefix string
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
}

// NewStore creates a BadgerDB state store with the given configuration.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// NewStoreFromDB creates a state store from an existing BadgerDB database.
func NewStoreFromDB(db *badger.DB, keyPrefix string) *Store {
	return &Store{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

// startGC runs value log garbage collection on a timer.
func (s *Store) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			case <-s.gcStop:
				return
			}
		}
	}()
}

func (s *Store) stateKey(agentID, sessionID string) []byte {
	return []byte(s.keyPrefix + "state:" + agentID + "/" + sessionID)
}

func (s *Store) seqKey(agentID, sessionID string) []byte {
	return []byte(s.keyPrefix + "seq:" + agentID + "/" + sessionID)
}

func (s *Store) histPrefix(agentID, sessionID string) []byte {
	return []byte(s.keyPrefix + "hist:" + agentID + "/" + sessionID + ":")
}

func (s *Store) histKey(agentID, sessionID string, seq uint64) []byte {
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, seq)
	return append(s.histPrefix(agentID, sessionID), seqBytes...)
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

	data, err := json.Marshal(seed)
	if err != nil {
		return err
	}

	key := s.stateKey(agentID, sessionID)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// Load returns the session's current durable facts.
func (s *Store) Load(ctx context.Context, agentID, sessionID string) (fact.Facts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	var facts fact.Facts
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.stateKey(agentID, sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", state.ErrNotFound, agentID, sessionID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &facts)
		})
	})
	if err != nil {
		return nil, err
	}

	return facts, nil
}

// Save overwrites the durable facts and appends one history record in a
// single transaction.
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

	factsData, err := json.Marshal(durable)
	if err != nil {
		return err
	}
	recData, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	seqKey := s.seqKey(agentID, sessionID)
	return s.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(seqKey)
		if err == nil {
			err = item.Value(func(val []byte) error {
				if len(val) == 8 {
					seq = binary.BigEndian.Uint64(val)
				}
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq++
		seqBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(seqBytes, seq)

		if err := txn.Set(s.stateKey(agentID, sessionID), factsData); err != nil {
			return err
		}
		if err := txn.Set(s.histKey(agentID, sessionID, seq), recData); err != nil {
			return err
		}
		return txn.Set(seqKey, seqBytes)
	})
}

// History returns the session's records in append order.
func (s *Store) History(ctx context.Context, agentID, sessionID string) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	prefix := s.histPrefix(agentID, sessionID)
	var records []state.Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec state.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	close(s.gcStop)
	s.gcWg.Wait()
	return s.db.Close()
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
