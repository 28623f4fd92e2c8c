package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
)

// Errors
var (
	ErrConnectionFailed = errors.New("redis: connection failed")
)

// Store is a Redis-backed implementation of state.Store. The current durable
// facts live in a string key and the history in a list key, both per
// (agent_id, session_id); Save writes both through a MULTI/EXEC pipeline.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// NewStore creates a Redis state store and verifies the connection.
func NewStore(ctx context.Context, cfg Config, opts ...ConfigOption) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return &Store{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// NewStoreFromClient creates a state store from an existing client.
func NewStoreFromClient(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) stateKey(agentID, sessionID string) string {
	return s.keyPrefix + "state:" + agentID + "/" + sessionID
}

func (s *Store) histKey(agentID, sessionID string) string {
	return s.keyPrefix + "hist:" + agentID + "/" + sessionID
}

// Bootstrap seeds a session with initial durable facts. SETNX keeps the first
// seed; later calls are no-ops.
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

	return s.client.SetNX(ctx, s.stateKey(agentID, sessionID), data, 0).Err()
}

// Load returns the session's current durable facts.
func (s *Store) Load(ctx context.Context, agentID, sessionID string) (fact.Facts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.stateKey(agentID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", state.ErrNotFound, agentID, sessionID)
	}
	if err != nil {
		return nil, err
	}

	var facts fact.Facts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, err
	}

	return facts, nil
}

// Save overwrites the durable facts and appends one history record
// atomically.
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

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.stateKey(agentID, sessionID), factsData, 0)
	pipe.RPush(ctx, s.histKey(agentID, sessionID), recData)
	_, err = pipe.Exec(ctx)
	return err
}

// History returns the session's records in append order.
func (s *Store) History(ctx context.Context, agentID, sessionID string) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	entries, err := s.client.LRange(ctx, s.histKey(agentID, sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]state.Record, 0, len(entries))
	for _, entry := range entries {
		var rec state.Record
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
