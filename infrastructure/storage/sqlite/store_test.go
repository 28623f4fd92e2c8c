package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/state"
	"github.com/felixgeelhaar/factrun/infrastructure/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	cfg := sqlite.Config{
		DSN:         "file:" + t.TempDir() + "/test.db?mode=rwc",
		AutoMigrate: true,
	}
	store, err := sqlite.NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sessionFacts(t *testing.T, pairs map[string]fact.Value) fact.Facts {
	t.Helper()
	facts := fact.Facts{}
	for k, v := range pairs {
		facts[k] = fact.MustNew(k, v, fact.ScopeSession)
	}
	return facts
}

func testRecord(t *testing.T, iteration int, phase string) state.Record {
	t.Helper()
	rec, err := state.NewRecord(iteration, phase, nil)
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	return rec
}

func TestNewStore(t *testing.T) {
	store := newTestStore(t)
	if store.DB() == nil {
		t.Fatal("expected database handle")
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "agent", "missing")
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	durable := sessionFacts(t, map[string]fact.Value{
		"goal":  fact.String("analyze repo"),
		"count": fact.Int(3),
	})

	if err := store.Save(ctx, "agent", "s1", durable, testRecord(t, 1, "WORKING")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "agent", "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(loaded))
	}
	if !loaded["goal"].Value.Equal(fact.String("analyze repo")) {
		t.Errorf("goal = %v", loaded["goal"].Value)
	}
	if loaded["goal"].Scope != fact.ScopeSession {
		t.Errorf("goal scope = %s", loaded["goal"].Scope)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sessionFacts(t, map[string]fact.Value{"step": fact.Int(1)})
	second := sessionFacts(t, map[string]fact.Value{"step": fact.Int(2)})

	if err := store.Save(ctx, "agent", "s1", first, testRecord(t, 1, "WORKING")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "agent", "s1", second, testRecord(t, 2, "WORKING")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "agent", "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n, _ := loaded["step"].Value.AsNumber(); n != 2 {
		t.Errorf("step = %v, want 2", loaded["step"].Value)
	}
}

func TestStore_SaveRejectsIterationFacts(t *testing.T) {
	store := newTestStore(t)

	bad := fact.Facts{
		"tmp": fact.MustNew("tmp", fact.Bool(true), fact.ScopeIteration),
	}
	err := store.Save(context.Background(), "agent", "s1", bad, testRecord(t, 1, "WORKING"))
	if !errors.Is(err, state.ErrNotDurable) {
		t.Fatalf("expected ErrNotDurable, got %v", err)
	}
}

func TestStore_HistoryAppendOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	durable := sessionFacts(t, map[string]fact.Value{"goal": fact.String("x")})
	for i := 1; i <= 3; i++ {
		if err := store.Save(ctx, "agent", "s1", durable, testRecord(t, i, "WORKING")); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	history, err := store.History(ctx, "agent", "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	for i, rec := range history {
		if rec.Iteration != i+1 {
			t.Errorf("history[%d].Iteration = %d, want %d", i, rec.Iteration, i+1)
		}
		if rec.Phase != "WORKING" {
			t.Errorf("history[%d].Phase = %s", i, rec.Phase)
		}
	}
}

func TestStore_HistoryEmptySession(t *testing.T) {
	store := newTestStore(t)

	history, err := store.History(context.Background(), "agent", "empty")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d records", len(history))
	}
}

func TestStore_BootstrapIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := sessionFacts(t, map[string]fact.Value{"goal": fact.String("first")})
	if err := store.Bootstrap(ctx, "agent", "s1", seed); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	other := sessionFacts(t, map[string]fact.Value{"goal": fact.String("second")})
	if err := store.Bootstrap(ctx, "agent", "s1", other); err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}

	loaded, err := store.Load(ctx, "agent", "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded["goal"].Value.Equal(fact.String("first")) {
		t.Errorf("seed overwritten: %v", loaded["goal"].Value)
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := sessionFacts(t, map[string]fact.Value{"who": fact.String("a")})
	b := sessionFacts(t, map[string]fact.Value{"who": fact.String("b")})

	if err := store.Save(ctx, "agent", "s1", a, testRecord(t, 1, "WORKING")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "agent", "s2", b, testRecord(t, 1, "WORKING")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "agent", "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded["who"].Value.Equal(fact.String("a")) {
		t.Errorf("s1 = %v", loaded["who"].Value)
	}

	history, err := store.History(ctx, "agent", "s2")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("s2 history length = %d, want 1", len(history))
	}
}

func TestStore_ValidatesIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Bootstrap(ctx, "", "s", fact.Facts{}); !errors.Is(err, state.ErrInvalidID) {
		t.Errorf("Bootstrap error = %v, want ErrInvalidID", err)
	}
	if _, err := store.Load(ctx, "a", ""); !errors.Is(err, state.ErrInvalidID) {
		t.Errorf("Load error = %v, want ErrInvalidID", err)
	}
}
