package fact

import "sort"

// KeySet is an unordered set of fact keys. Policies match on key sets, never
// on values.
type KeySet map[string]struct{}

// NewKeySet builds a key set from the given keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Contains reports whether the key is a member.
func (s KeySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// ContainsAll reports whether every key in other is a member.
func (s KeySet) ContainsAll(other KeySet) bool {
	for k := range other {
		if !s.Contains(k) {
			return false
		}
	}
	return true
}

// Intersects reports whether the sets share at least one key.
func (s KeySet) Intersects(other KeySet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if large.Contains(k) {
			return true
		}
	}
	return false
}

// Missing returns the keys of required that are not members, sorted.
func (s KeySet) Missing(required KeySet) []string {
	var missing []string
	for k := range required {
		if !s.Contains(k) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// Union returns a new set with the members of both sets.
func (s KeySet) Union(other KeySet) KeySet {
	out := make(KeySet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexicographic order.
func (s KeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of members.
func (s KeySet) Len() int {
	return len(s)
}
