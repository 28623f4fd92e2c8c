package postgres

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("Host = %s, want localhost", cfg.Host)
	}
	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want 5432", cfg.Port)
	}
	if cfg.Database != "factrun" {
		t.Errorf("Database = %s, want factrun", cfg.Database)
	}
	if cfg.User != "postgres" {
		t.Errorf("User = %s, want postgres", cfg.User)
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("SSLMode = %s, want disable", cfg.SSLMode)
	}
	if cfg.MaxConns != 10 {
		t.Errorf("MaxConns = %d, want 10", cfg.MaxConns)
	}
	if cfg.MinConns != 2 {
		t.Errorf("MinConns = %d, want 2", cfg.MinConns)
	}
	if cfg.MaxConnLifetime != time.Hour {
		t.Errorf("MaxConnLifetime = %v, want %v", cfg.MaxConnLifetime, time.Hour)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, 10*time.Second)
	}
	if cfg.Schema != "public" {
		t.Errorf("Schema = %s, want public", cfg.Schema)
	}
}

func TestConfig_ConnectionString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "default config",
			config:   DefaultConfig(),
			expected: "host=localhost port=5432 dbname=factrun user=postgres password= sslmode=disable",
		},
		{
			name: "custom config",
			config: Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "myapp",
				User:     "appuser",
				Password: "secret123",
				SSLMode:  "require",
			},
			expected: "host=db.example.com port=5433 dbname=myapp user=appuser password=secret123 sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := tt.config.ConnectionString()
			if result != tt.expected {
				t.Errorf("ConnectionString() = %s, want %s", result, tt.expected)
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	opts := []ConfigOption{
		WithHost("custom.host.com"),
		WithPort(5433),
		WithDatabase("mydb"),
		WithCredentials("myuser", "mypassword"),
		WithSSLMode("require"),
		WithSchema("factrun"),
		WithPoolLimits(1, 5),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Host != "custom.host.com" {
		t.Errorf("Host = %s", cfg.Host)
	}
	if cfg.Port != 5433 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.Database != "mydb" {
		t.Errorf("Database = %s", cfg.Database)
	}
	if cfg.User != "myuser" || cfg.Password != "mypassword" {
		t.Errorf("credentials = %s/%s", cfg.User, cfg.Password)
	}
	if cfg.SSLMode != "require" {
		t.Errorf("SSLMode = %s", cfg.SSLMode)
	}
	if cfg.Schema != "factrun" {
		t.Errorf("Schema = %s", cfg.Schema)
	}
	if cfg.MinConns != 1 || cfg.MaxConns != 5 {
		t.Errorf("pool limits = %d/%d", cfg.MinConns, cfg.MaxConns)
	}
}
