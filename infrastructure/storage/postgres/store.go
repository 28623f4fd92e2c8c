package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
)

// Store is a PostgreSQL-backed implementation of state.Store. The durable
// facts and history records are stored as JSONB; Save wraps both writes in
// one transaction.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// NewStore creates a PostgreSQL state store over an existing pool and
// migrates the schema.
func NewStore(ctx context.Context, pool *pgxpool.Pool, schema string) (*Store, error) {
	if schema == "" {
		schema = "public"
	}
	s := &Store{pool: pool, schema: schema}

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Connect dials the database from the configuration and builds a migrated
// store.
func ConnectStore(ctx context.Context, cfg Config, opts ...ConfigOption) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewStore(ctx, pool, cfg.Schema)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) sessionsTable() string {
	return fmt.Sprintf("%s.sessions", s.schema)
}

func (s *Store) historyTable() string {
	return fmt.Sprintf("%s.history", s.schema)
}

// migrate creates the sessions and history tables if they don't exist.
func (s *Store) migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			facts JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (agent_id, session_id)
		);
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			record JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_session ON %s (agent_id, session_id, seq);
	`, s.sessionsTable(), s.historyTable(), s.historyTable())

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
}

// Bootstrap seeds a session with initial durable facts. If the session row
// already exists the seed is ignored.
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

	query := fmt.Sprintf(`
		INSERT INTO %s (agent_id, session_id, facts)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id, session_id) DO NOTHING
	`, s.sessionsTable())

	_, err = s.pool.Exec(ctx, query, agentID, sessionID, data)
	return err
}

// Load returns the session's current durable facts.
func (s *Store) Load(ctx context.Context, agentID, sessionID string) (fact.Facts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT facts FROM %s WHERE agent_id = $1 AND session_id = $2",
		s.sessionsTable())

	var data []byte
	err := s.pool.QueryRow(ctx, query, agentID, sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	upsert := fmt.Sprintf(`
		INSERT INTO %s (agent_id, session_id, facts, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (agent_id, session_id)
		DO UPDATE SET facts = EXCLUDED.facts, updated_at = EXCLUDED.updated_at
	`, s.sessionsTable())
	if _, err := tx.Exec(ctx, upsert, agentID, sessionID, factsData); err != nil {
		return err
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (agent_id, session_id, iteration, record)
		VALUES ($1, $2, $3, $4)
	`, s.historyTable())
	if _, err := tx.Exec(ctx, insert, agentID, sessionID, rec.Iteration, recData); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// History returns the session's records in append order.
func (s *Store) History(ctx context.Context, agentID, sessionID string) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT record FROM %s WHERE agent_id = $1 AND session_id = $2 ORDER BY seq",
		s.historyTable())

	rows, err := s.pool.Query(ctx, query, agentID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []state.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec state.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
