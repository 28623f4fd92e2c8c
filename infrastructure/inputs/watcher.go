// Package inputs delivers externally supplied facts to paused sessions. A
// Watcher observes a drop directory; every fact file written there is parsed
// and handed to a handler, which typically merges the facts into the
// session's durable state so the next iteration sees them.
package inputs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
	"github.com/felixgeelhaar/factrun/infrastructure/logging"
)

// Errors
var (
	ErrInvalidInput = errors.New("inputs: invalid input file")
)

// inputPhase names the pseudo phase recorded when external facts are merged
// into a session. It distinguishes input records from iteration records in
// the history.
const inputPhase = "EXTERNAL_INPUT"

// entry is one fact in an input file.
type entry struct {
	Key   string `yaml:"key"`
	Scope string `yaml:"scope"`
	Value any    `yaml:"value"`
}

// ParseFile reads a fact file (YAML or JSON list of {key, scope, value}) into
// a durable fact bundle.
func ParseFile(path string) (fact.Facts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}

	facts := fact.Facts{}
	for _, e := range entries {
		scope, err := fact.ParseScope(e.Scope)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrInvalidInput, path, e.Key, err)
		}
		if !scope.IsDurable() {
			return nil, fmt.Errorf("%w: %s: key %q is iteration-scoped", ErrInvalidInput, path, e.Key)
		}
		value, err := fact.FromAny(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrInvalidInput, path, e.Key, err)
		}
		fc, err := fact.New(e.Key, value, scope)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
		}
		facts[fc.Key] = fc
	}

	return facts, nil
}

// Handler receives the facts parsed from one input file.
type Handler func(ctx context.Context, facts fact.Facts) error

// StoreHandler returns a handler that merges incoming facts into the
// session's durable state. The merge is recorded in the history under the
// EXTERNAL_INPUT pseudo phase, so the audit trail shows where a fact came
// from.
func StoreHandler(store state.Store, agentID, sessionID string) Handler {
	return func(ctx context.Context, facts fact.Facts) error {
		durable, err := store.Load(ctx, agentID, sessionID)
		if err != nil {
			if !errors.Is(err, state.ErrNotFound) {
				return err
			}
			durable = fact.Facts{}
		}

		history, err := store.History(ctx, agentID, sessionID)
		if err != nil {
			return err
		}

		merged := durable.Merge(facts)
		rec, err := state.NewRecord(len(history)+1, inputPhase, map[string]fact.Facts{"external": facts})
		if err != nil {
			return err
		}
		return store.Save(ctx, agentID, sessionID, merged, rec)
	}
}

// Watcher watches a drop directory for fact files.
type Watcher struct {
	dir     string
	handler Handler
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over dir. Start begins delivery.
func NewWatcher(dir string, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("inputs: nil handler")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inputs: %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return &Watcher{dir: dir, handler: handler, watcher: fsw}, nil
}

// Start delivers input files until the context is cancelled or the watcher
// is closed. It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isFactFile(event.Name) {
				continue
			}
			w.deliver(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().
				Add(logging.Component("inputs")).
				Add(logging.ErrorField(err)).
				Msg("watch error")
		}
	}
}

func (w *Watcher) deliver(ctx context.Context, path string) {
	facts, err := ParseFile(path)
	if err != nil {
		logging.Warn().
			Add(logging.Component("inputs")).
			Add(logging.Str("file", path)).
			Add(logging.ErrorField(err)).
			Msg("ignoring invalid input file")
		return
	}
	if len(facts) == 0 {
		return
	}
	if err := w.handler(ctx, facts); err != nil {
		logging.Error().
			Add(logging.Component("inputs")).
			Add(logging.Str("file", path)).
			Add(logging.ErrorField(err)).
			Msg("applying input facts failed")
		return
	}
	logging.Info().
		Add(logging.Component("inputs")).
		Add(logging.Str("file", path)).
		Add(logging.Keys(facts.Keys())).
		Msg("input facts applied")
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isFactFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
