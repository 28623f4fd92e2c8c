package state

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/factrun/domain/fact"
)

func TestNewRecord(t *testing.T) {
	t.Parallel()

	emitted, _ := fact.NewFacts(
		fact.MustNew("said_hello", fact.Bool(true), fact.ScopeSession),
	)

	rec, err := NewRecord(1, "GREETING", map[string]fact.Facts{"say_hello": emitted})
	if err != nil {
		t.Fatalf("NewRecord error: %v", err)
	}
	if rec.ID == "" {
		t.Error("missing ID")
	}
	if rec.Timestamp.IsZero() || rec.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v, want non-zero UTC", rec.Timestamp)
	}

	if _, err := NewRecord(0, "GREETING", nil); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("iteration 0 error = %v, want ErrInvalidRecord", err)
	}
	if _, err := NewRecord(1, "", nil); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("empty phase error = %v, want ErrInvalidRecord", err)
	}
}

func TestRecordJSONRoundTrip(t *testing.T) {
	t.Parallel()

	emitted, _ := fact.NewFacts(
		fact.MustNew("analysis_ready", fact.Bool(true), fact.ScopeSession),
		fact.MustNew("notes", fact.String("n"), fact.ScopeIteration),
	)
	original, err := NewRecord(3, "WORKING", map[string]fact.Facts{"analyze": emitted})
	if err != nil {
		t.Fatalf("NewRecord error: %v", err)
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.ID != original.ID || decoded.Iteration != original.Iteration {
		t.Errorf("identity changed: %+v vs %+v", decoded, original)
	}
	if decoded.Phase != "WORKING" {
		t.Errorf("Phase = %q, want WORKING", decoded.Phase)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	got := decoded.ByAction["analyze"]
	for k, f := range emitted {
		d, ok := got[k]
		if !ok || d.Scope != f.Scope || !d.Value.Equal(f.Value) {
			t.Errorf("fact %q changed in round trip", k)
		}
	}
	if err := decoded.Validate(); err != nil {
		t.Errorf("decoded record invalid: %v", err)
	}
}

func TestRecordEmittedFacts(t *testing.T) {
	t.Parallel()

	a, _ := fact.NewFacts(fact.MustNew("x", fact.Int(1), fact.ScopeSession))
	b, _ := fact.NewFacts(fact.MustNew("y", fact.Int(2), fact.ScopeSession))
	rec, err := NewRecord(1, "WORKING", map[string]fact.Facts{"first": a, "second": b})
	if err != nil {
		t.Fatalf("NewRecord error: %v", err)
	}

	merged := rec.EmittedFacts()
	if len(merged) != 2 || !merged.KeySet().ContainsAll(fact.NewKeySet("x", "y")) {
		t.Errorf("EmittedFacts = %v", merged.Keys())
	}
}
