package procedure

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/factrun/domain/emission"
	"github.com/felixgeelhaar/factrun/domain/fact"
)

type mapSnapshot map[string]fact.Value

func (m mapSnapshot) Get(key string) (fact.Value, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapSnapshot) Has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m mapSnapshot) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func boolEmission(key string, scope fact.Scope) emission.Spec {
	return emission.Spec{
		key: emission.Emission{Scope: scope, Kind: fact.KindBool, Required: true},
	}
}

func TestNewAction(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error) {
		return map[string]fact.Value{"done": fact.Bool(true)}, nil
	}

	if _, err := NewAction("", boolEmission("done", fact.ScopeSession), noop); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name error = %v, want ErrEmptyName", err)
	}
	if _, err := NewAction("a", nil, noop); !errors.Is(err, ErrNoEmissionSpec) {
		t.Errorf("nil spec error = %v, want ErrNoEmissionSpec", err)
	}
	if _, err := NewAction("a", emission.Spec{}, noop); !errors.Is(err, emission.ErrEmptySpec) {
		t.Errorf("empty spec error = %v, want emission.ErrEmptySpec", err)
	}
}

func TestActionExecute(t *testing.T) {
	t.Parallel()

	t.Run("output built through declaration", func(t *testing.T) {
		t.Parallel()

		act, err := NewAction("mark_done", boolEmission("done", fact.ScopePersistent),
			func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error) {
				return map[string]fact.Value{"done": fact.Bool(true)}, nil
			})
		if err != nil {
			t.Fatalf("NewAction error: %v", err)
		}

		facts, err := act.Execute(context.Background(), mapSnapshot{})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		if f := facts["done"]; f.Scope != fact.ScopePersistent {
			t.Errorf("scope = %s, want persistent", f.Scope)
		}
	})

	t.Run("undeclared output rejected", func(t *testing.T) {
		t.Parallel()

		act, err := NewAction("leaky", boolEmission("done", fact.ScopeSession),
			func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error) {
				return map[string]fact.Value{"done": fact.Bool(true), "extra": fact.Int(1)}, nil
			})
		if err != nil {
			t.Fatalf("NewAction error: %v", err)
		}

		if _, err := act.Execute(context.Background(), mapSnapshot{}); !errors.Is(err, emission.ErrUndeclaredKey) {
			t.Fatalf("error = %v, want emission.ErrUndeclaredKey", err)
		}
	})

	t.Run("body error wrapped with action name", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		act, err := NewAction("fragile", boolEmission("done", fact.ScopeSession),
			func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error) {
				return nil, boom
			})
		if err != nil {
			t.Fatalf("NewAction error: %v", err)
		}

		_, err = act.Execute(context.Background(), mapSnapshot{})
		if !errors.Is(err, boom) {
			t.Fatalf("error = %v, want wrapped boom", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		act, err := NewAction("slow", boolEmission("done", fact.ScopeSession),
			func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error) {
				t.Fatal("body ran despite cancelled context")
				return nil, nil
			})
		if err != nil {
			t.Fatalf("NewAction error: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := act.Execute(ctx, mapSnapshot{}); !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})
}

func TestNewTemplate(t *testing.T) {
	t.Parallel()

	mk := func(name string) Action {
		act, err := NewAction(name, boolEmission("done", fact.ScopeSession),
			func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error) {
				return map[string]fact.Value{"done": fact.Bool(true)}, nil
			})
		if err != nil {
			t.Fatalf("NewAction error: %v", err)
		}
		return act
	}

	t.Run("preserves order", func(t *testing.T) {
		t.Parallel()

		tpl, err := NewTemplate("gather", mk("first"), mk("second"), mk("third"))
		if err != nil {
			t.Fatalf("NewTemplate error: %v", err)
		}
		got := tpl.Actions()
		for i, want := range []string{"first", "second", "third"} {
			if got[i].Name() != want {
				t.Errorf("action %d = %q, want %q", i, got[i].Name(), want)
			}
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		t.Parallel()

		if _, err := NewTemplate("gather", mk("same"), mk("same")); !errors.Is(err, ErrDuplicateAction) {
			t.Fatalf("error = %v, want ErrDuplicateAction", err)
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		t.Parallel()

		if _, err := NewTemplate("gather"); !errors.Is(err, ErrNoActions) {
			t.Fatalf("error = %v, want ErrNoActions", err)
		}
		if _, err := NewTemplate("", mk("a")); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("error = %v, want ErrEmptyName", err)
		}
		if _, err := NewTemplate("gather", nil); !errors.Is(err, ErrNilAction) {
			t.Fatalf("error = %v, want ErrNilAction", err)
		}
	})
}
