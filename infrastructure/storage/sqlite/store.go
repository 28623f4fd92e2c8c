package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
)

// Store is a SQLite-backed implementation of state.Store. The current durable
// facts live in the sessions table, one row per (agent_id, session_id), and
// every iteration appends one row to the history table. Save writes both in a
// single transaction.
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite state store with the given configuration.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewStoreFromDB creates a state store from an existing database connection.
func NewStoreFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// migrate creates the sessions and history tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			facts TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (agent_id, session_id)
		);
		CREATE TABLE IF NOT EXISTS history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			record TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_session ON history(agent_id, session_id, seq);
	`

	if _, err := s.db.Exec(schema); err != nil {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (agent_id, session_id, facts, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (agent_id, session_id) DO NOTHING`,
		agentID, sessionID, string(data), time.Now().Unix(),
	)
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

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT facts FROM sessions WHERE agent_id = ? AND session_id = ?",
		agentID, sessionID,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", state.ErrNotFound, agentID, sessionID)
	}
	if err != nil {
		return nil, err
	}

	var facts fact.Facts
	if err := json.Unmarshal([]byte(data), &facts); err != nil {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (agent_id, session_id, facts, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (agent_id, session_id) DO UPDATE SET facts = excluded.facts, updated_at = excluded.updated_at`,
		agentID, sessionID, string(factsData), time.Now().Unix(),
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (agent_id, session_id, iteration, record)
		 VALUES (?, ?, ?, ?)`,
		agentID, sessionID, rec.Iteration, string(recData),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// History returns the session's records in append order.
func (s *Store) History(ctx context.Context, agentID, sessionID string) ([]state.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := state.ValidateIDs(agentID, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT record FROM history WHERE agent_id = ? AND session_id = ? ORDER BY seq",
		agentID, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []state.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec state.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
