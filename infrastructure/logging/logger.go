// Package logging is the engine's structured logging facade over bolt.
// Iteration boundaries, retries and watcher activity are logged through
// leveled events decorated with the typed fields in fields.go; the facade
// carries only the surface the engine uses.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

var (
	shared *bolt.Logger
	once   sync.Once
)

// Config configures the shared engine logger.
type Config struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string

	// JSON switches from console to JSON output.
	JSON bool

	// Output is the destination. Defaults to stderr so run results on stdout
	// stay machine-readable.
	Output io.Writer
}

// DefaultConfig returns console logging at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Output: os.Stderr}
}

func parseLevel(s string) bolt.Level {
	switch s {
	case "debug":
		return bolt.DEBUG
	case "warn":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

// Init configures the shared logger. Only the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		output := cfg.Output
		if output == nil {
			output = os.Stderr
		}

		var handler bolt.Handler
		if cfg.JSON {
			handler = bolt.NewJSONHandler(output)
		} else {
			handler = bolt.NewConsoleHandler(output)
		}

		shared = bolt.New(handler).SetLevel(parseLevel(cfg.Level))
	})
}

// Get returns the shared logger, initializing with defaults if necessary.
func Get() *bolt.Logger {
	if shared == nil {
		Init(DefaultConfig())
	}
	return shared
}

// LogEvent decorates a bolt event with Fields before sending it.
type LogEvent struct {
	event *bolt.Event
}

// Add applies a field and returns the event for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg sends the event with a message.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Debug starts a debug-level event.
func Debug() *LogEvent {
	return &LogEvent{event: Get().Debug()}
}

// Info starts an info-level event.
func Info() *LogEvent {
	return &LogEvent{event: Get().Info()}
}

// Warn starts a warn-level event.
func Warn() *LogEvent {
	return &LogEvent{event: Get().Warn()}
}

// Error starts an error-level event.
func Error() *LogEvent {
	return &LogEvent{event: Get().Error()}
}
