// Package postgres provides a PostgreSQL-backed state store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	// Host is the database server host.
	Host string

	// Port is the database server port.
	Port int

	// Database is the database name.
	Database string

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// SSLMode is the SSL mode (disable, require, verify-ca, verify-full).
	SSLMode string

	// MaxConns is the maximum pool size.
	MaxConns int32

	// MinConns is the minimum pool size.
	MinConns int32

	// MaxConnLifetime is the maximum connection lifetime.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum idle time for connections.
	MaxConnIdleTime time.Duration

	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout time.Duration

	// Schema is the schema holding the state tables.
	Schema string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "factrun",
		User:            "postgres",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		Schema:          "public",
	}
}

// ConnectionString builds a keyword/value connection string.
func (c Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// ConfigOption configures the PostgreSQL connection.
type ConfigOption func(*Config)

// WithHost sets the database host.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort sets the database port.
func WithPort(port int) ConfigOption {
	return func(c *Config) {
		c.Port = port
	}
}

// WithDatabase sets the database name.
func WithDatabase(db string) ConfigOption {
	return func(c *Config) {
		c.Database = db
	}
}

// WithCredentials sets the user and password.
func WithCredentials(user, password string) ConfigOption {
	return func(c *Config) {
		c.User = user
		c.Password = password
	}
}

// WithSSLMode sets the SSL mode.
func WithSSLMode(mode string) ConfigOption {
	return func(c *Config) {
		c.SSLMode = mode
	}
}

// WithSchema sets the schema.
func WithSchema(schema string) ConfigOption {
	return func(c *Config) {
		c.Schema = schema
	}
}

// WithPoolLimits sets the pool size bounds.
func WithPoolLimits(minConns, maxConns int32) ConfigOption {
	return func(c *Config) {
		c.MinConns = minConns
		c.MaxConns = maxConns
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("postgres: connection failed")
	ErrMigrationFailed  = errors.New("postgres: migration failed")
)

// Connect builds a pgx pool from the configuration and verifies it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return pool, nil
}
