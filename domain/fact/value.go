package fact

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the representation of a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindRecord
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Value is an immutable, JSON-representable value carried by a fact. The zero
// Value is invalid; use one of the constructors.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	rec  map[string]Value
}

// String constructs a string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number constructs a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Int constructs a numeric value from an integer.
func Int(n int) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

// Bool constructs a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// List constructs a list value. The elements are copied.
func List(elems ...Value) Value {
	list := make([]Value, len(elems))
	copy(list, elems)
	return Value{kind: KindList, list: list}
}

// Record constructs a record value. The entries are copied.
func Record(entries map[string]Value) Value {
	rec := make(map[string]Value, len(entries))
	for k, v := range entries {
		rec[k] = v
	}
	return Value{kind: KindRecord, rec: rec}
}

// FromAny converts a decoded JSON value into a Value. Supported inputs are
// string, bool, numeric types, json.Number, []any, map[string]any and Value
// itself. Nil and any other type are rejected.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Number(f), nil
	case []any:
		list := make([]Value, 0, len(x))
		for i, elem := range x {
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, fmt.Errorf("list element %d: %w", i, err)
			}
			list = append(list, ev)
		}
		return Value{kind: KindList, list: list}, nil
	case map[string]any:
		rec := make(map[string]Value, len(x))
		for k, elem := range x {
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, fmt.Errorf("record entry %q: %w", k, err)
			}
			rec[k] = ev
		}
		return Value{kind: KindRecord, rec: rec}, nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsValid reports whether the value was built by a constructor.
func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

// AsString returns the string representation and whether the value is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the numeric representation and whether the value is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean representation and whether the value is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsList returns a copy of the elements and whether the value is a list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	list := make([]Value, len(v.list))
	copy(list, v.list)
	return list, true
}

// AsRecord returns a copy of the entries and whether the value is a record.
func (v Value) AsRecord() (map[string]Value, bool) {
	if v.kind != KindRecord {
		return nil, false
	}
	rec := make(map[string]Value, len(v.rec))
	for k, e := range v.rec {
		rec[k] = e
	}
	return rec, true
}

// Equal reports whether two values have the same kind and contents.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.rec) != len(other.rec) {
			return false
		}
		for k, e := range v.rec {
			o, ok := other.rec[k]
			if !ok || !e.Equal(o) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}

// MarshalJSON encodes the value in its natural JSON form. Record keys are
// emitted in sorted order so encodings are stable.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindRecord:
		keys := make([]string, 0, len(v.rec))
		for k := range v.rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := v.rec[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	default:
		return nil, ErrInvalidValue
	}
}

// UnmarshalJSON decodes any JSON value except null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: null", ErrInvalidValue)
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
