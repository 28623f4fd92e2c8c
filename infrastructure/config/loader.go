// Package config loads runfiles: the file format that names an agent, picks a
// store backend, tunes the runner and seeds the session's durable facts.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/factrun/domain/fact"
)

// Errors
var (
	ErrConfigNotFound    = errors.New("config: file not found")
	ErrInvalidFormat     = errors.New("config: invalid format")
	ErrUnsupportedFormat = errors.New("config: unsupported format")
	ErrInvalidConfig     = errors.New("config: invalid configuration")
	ErrMissingEnv        = errors.New("config: missing environment variables")
)

// Format represents a configuration file format.
type Format string

const (
	// FormatYAML is the YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is the JSON format. YAML is a JSON superset, so the same
	// decoder handles both.
	FormatJSON Format = "json"
)

// File is a parsed runfile.
type File struct {
	Agent  AgentSection  `yaml:"agent"`
	Runner RunnerSection `yaml:"runner"`
	Store  StoreSection  `yaml:"store"`
	Seed   []SeedFact    `yaml:"seed"`
}

// AgentSection identifies the agent and session to run.
type AgentSection struct {
	ID      string `yaml:"id"`
	Session string `yaml:"session"`
	Version string `yaml:"version"`
}

// RunnerSection tunes the iteration loop.
type RunnerSection struct {
	MaxIterations          int      `yaml:"max_iterations"`
	RetryMaxAttempts       int      `yaml:"retry_max_attempts"`
	RetryInitialDelay      Duration `yaml:"retry_initial_delay"`
	RetryBackoffMultiplier float64  `yaml:"retry_backoff_multiplier"`
}

// Duration decodes "100ms" style strings, which yaml does not do for
// time.Duration on its own.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns the wrapped time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// StoreSection selects and configures the state store backend.
type StoreSection struct {
	Backend  string          `yaml:"backend"`
	SQLite   SQLiteSection   `yaml:"sqlite"`
	Badger   BadgerSection   `yaml:"badger"`
	Redis    RedisSection    `yaml:"redis"`
	Postgres PostgresSection `yaml:"postgres"`
}

// SQLiteSection configures the sqlite backend.
type SQLiteSection struct {
	DSN string `yaml:"dsn"`
}

// BadgerSection configures the badger backend.
type BadgerSection struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// RedisSection configures the redis backend.
type RedisSection struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresSection configures the postgres backend.
type PostgresSection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	Schema   string `yaml:"schema"`
}

// SeedFact is one durable fact seeded at bootstrap.
type SeedFact struct {
	Key   string `yaml:"key"`
	Scope string `yaml:"scope"`
	Value any    `yaml:"value"`
}

// Backends lists the supported store backend names.
func Backends() []string {
	return []string{"memory", "sqlite", "badger", "redis", "postgres"}
}

// Validate checks the runfile for structural problems.
func (f *File) Validate() error {
	var problems []string

	if f.Agent.ID == "" {
		problems = append(problems, "agent.id is empty")
	}
	if f.Agent.Session == "" {
		problems = append(problems, "agent.session is empty")
	}

	if f.Store.Backend != "" {
		known := false
		for _, b := range Backends() {
			if f.Store.Backend == b {
				known = true
				break
			}
		}
		if !known {
			problems = append(problems, fmt.Sprintf("store.backend %q is not one of %v", f.Store.Backend, Backends()))
		}
	}

	for i, seed := range f.Seed {
		if seed.Key == "" {
			problems = append(problems, fmt.Sprintf("seed[%d].key is empty", i))
			continue
		}
		scope, err := fact.ParseScope(seed.Scope)
		if err != nil {
			problems = append(problems, fmt.Sprintf("seed[%d] (%s): %v", i, seed.Key, err))
			continue
		}
		if !scope.IsDurable() {
			problems = append(problems, fmt.Sprintf("seed[%d] (%s): iteration scope cannot be seeded", i, seed.Key))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SeedFacts converts the seed section into a durable fact bundle.
func (f *File) SeedFacts() (fact.Facts, error) {
	facts := fact.Facts{}
	for _, seed := range f.Seed {
		scope, err := fact.ParseScope(seed.Scope)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed.Key, err)
		}
		value, err := fact.FromAny(seed.Value)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed.Key, err)
		}
		fc, err := fact.New(seed.Key, value, scope)
		if err != nil {
			return nil, err
		}
		if _, dup := facts[fc.Key]; dup {
			return nil, fmt.Errorf("%w: seed key %q appears twice", ErrInvalidConfig, fc.Key)
		}
		facts[fc.Key] = fc
	}
	return facts, nil
}

// Loader loads runfiles.
type Loader struct {
	// ExpandEnv enables environment variable expansion.
	ExpandEnv bool
	// StrictEnv fails if referenced env vars are missing.
	StrictEnv bool
	// Validate enables structural validation.
	Validate bool
}

// NewLoader creates a loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		ExpandEnv: true,
		StrictEnv: false,
		Validate:  true,
	}
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.ExpandEnv = enabled
	}
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.StrictEnv = enabled
	}
}

// WithValidation enables or disables structural validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Validate = enabled
	}
}

// NewLoaderWithOptions creates a loader with the specified options.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads a runfile from a path, picking the format from the
// extension.
func (l *Loader) LoadFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("accessing runfile: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening runfile: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return l.Load(f, FormatYAML)
	case ".json":
		return l.Load(f, FormatJSON)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Load loads a runfile from a reader.
func (l *Loader) Load(r io.Reader, format Format) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading runfile: %w", err)
	}

	if l.ExpandEnv {
		expander := &envExpander{strict: l.StrictEnv}
		expanded, err := expander.Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	var file File
	switch format {
	case FormatYAML, FormatJSON:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if l.Validate {
		if err := file.Validate(); err != nil {
			return nil, err
		}
	}

	return &file, nil
}
