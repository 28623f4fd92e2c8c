package fact

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Facts is a key-unique bundle of facts, keyed by fully qualified key.
// The zero value is usable.
type Facts map[string]Fact

// NewFacts builds a bundle from the given facts. A duplicate key is an error.
func NewFacts(facts ...Fact) (Facts, error) {
	bundle := make(Facts, len(facts))
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, exists := bundle[f.Key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, f.Key)
		}
		bundle[f.Key] = f
	}
	return bundle, nil
}

// Merge returns a new bundle with the facts of both. On a shared key the fact
// from other wins.
func (fs Facts) Merge(other Facts) Facts {
	merged := make(Facts, len(fs)+len(other))
	for k, f := range fs {
		merged[k] = f
	}
	for k, f := range other {
		merged[k] = f
	}
	return merged
}

// Get returns the fact for key.
func (fs Facts) Get(key string) (Fact, bool) {
	f, ok := fs[key]
	return f, ok
}

// Keys returns the fact keys in lexicographic order.
func (fs Facts) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeySet returns the fact keys as a set.
func (fs Facts) KeySet() KeySet {
	s := make(KeySet, len(fs))
	for k := range fs {
		s[k] = struct{}{}
	}
	return s
}

// Scoped returns the facts carrying the given scope.
func (fs Facts) Scoped(scope Scope) Facts {
	out := make(Facts)
	for k, f := range fs {
		if f.Scope == scope {
			out[k] = f
		}
	}
	return out
}

// Durable returns the session and persistent scoped facts, the subset that
// survives the iteration.
func (fs Facts) Durable() Facts {
	out := make(Facts)
	for k, f := range fs {
		if f.Scope.IsDurable() {
			out[k] = f
		}
	}
	return out
}

// Clone returns a shallow copy of the bundle. Facts themselves are immutable
// values, so a shallow copy is a full copy.
func (fs Facts) Clone() Facts {
	out := make(Facts, len(fs))
	for k, f := range fs {
		out[k] = f
	}
	return out
}

// Validate checks every fact in the bundle and that map keys match fact keys.
func (fs Facts) Validate() error {
	for k, f := range fs {
		if k != f.Key {
			return fmt.Errorf("%w: bundle key %q holds fact %q", ErrDuplicateKey, k, f.Key)
		}
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON encodes the bundle as an object mapping key to fact. Keys are
// emitted sorted, so equal bundles encode identically.
func (fs Facts) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range fs.Keys() {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		fb, err := json.Marshal(fs[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, fb...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes a bundle and validates every fact.
func (fs *Facts) UnmarshalJSON(data []byte) error {
	var raw map[string]Fact
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	bundle := make(Facts, len(raw))
	for k, f := range raw {
		if f.Key == "" {
			f.Key = k
		}
		if k != f.Key {
			return fmt.Errorf("%w: bundle key %q holds fact %q", ErrDuplicateKey, k, f.Key)
		}
		if err := f.Validate(); err != nil {
			return err
		}
		bundle[k] = f
	}
	*fs = bundle
	return nil
}
