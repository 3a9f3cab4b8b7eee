// Package value implements the universal runtime value carried across pins.
package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags the dynamic shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindMap
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Value is the tagged sum flowing through pins. It deliberately forbids
// silent widening between integer and float: callers must convert
// explicitly via AsInt/AsFloat.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	by     []byte
	arr    []Value
	m      map[string]Value
	schema string // struct schema name/ref, only set for KindStruct
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Int(v int64) Value          { return Value{kind: KindInt, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, by: v} }
func Array(v []Value) Value      { return Value{kind: KindArray, arr: v} }
func Map(v map[string]Value) Value {
	return Value{kind: KindMap, m: v}
}
func Struct(schema string, v map[string]Value) Value {
	return Value{kind: KindStruct, schema: schema, m: v}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) StructSchema() string { return v.schema }

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("value is %s, not bool", v.kind)
	}
	return v.b, nil
}

func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, fmt.Errorf("value is %s, not int", v.kind)
	}
	return v.i, nil
}

func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, fmt.Errorf("value is %s, not float", v.kind)
	}
	return v.f, nil
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("value is %s, not string", v.kind)
	}
	return v.s, nil
}

func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("value is %s, not bytes", v.kind)
	}
	return v.by, nil
}

func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, fmt.Errorf("value is %s, not array", v.kind)
	}
	return v.arr, nil
}

func (v Value) AsMap() (map[string]Value, error) {
	if v.kind != KindMap && v.kind != KindStruct {
		return nil, fmt.Errorf("value is %s, not map/struct", v.kind)
	}
	return v.m, nil
}

// Native converts a Value into a plain Go interface{} tree, suitable for
// JSON marshaling or handing to CEL/gjson.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Native()
		}
		return out
	case KindMap, KindStruct:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative builds a Value from a plain Go interface{} tree (e.g. the
// result of json.Unmarshal into interface{}). Integers that arrive as
// float64 (the json package's default) are kept as float; Go int and
// int64 become Int. Any other type (json.Number included) becomes Null.
func FromNative(n interface{}) Value {
	switch t := n.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []interface{}:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromNative(e)
		}
		return Array(arr)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromNative(e)
		}
		return Map(m)
	default:
		return Null()
	}
}

// Equal performs a structural comparison, used by pure-node caching and
// property tests (round-trip equality, P1).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		if len(a.by) != len(b.by) {
			return false
		}
		for i := range a.by {
			if a.by[i] != b.by[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap, KindStruct:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SortedKeys returns the map's keys in deterministic order, used when
// serializing or snapshotting for trace variable capture.
func (v Value) SortedKeys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// wireValue is the JSON wire format for Value (board/trace persistence):
// the kind tag is carried explicitly so round-tripping never has to
// guess, e.g. between an int pin default and a float one.
type wireValue struct {
	Kind   string      `json:"kind"`
	V      interface{} `json:"v,omitempty"`
	Schema string      `json:"schema,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindStruct:
		w.Schema = v.schema
		w.V = v.Native()
	case KindNull:
		// leave V nil
	default:
		w.V = v.Native()
	}
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "null", "":
		*v = Null()
	case "bool":
		b, _ := w.V.(bool)
		*v = Bool(b)
	case "int":
		n, _ := w.V.(float64)
		*v = Int(int64(n))
	case "float":
		n, _ := w.V.(float64)
		*v = Float(n)
	case "string":
		s, _ := w.V.(string)
		*v = String(s)
	case "bytes":
		s, _ := w.V.(string)
		by, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("value: decode bytes: %w", err)
		}
		*v = Bytes(by)
	case "array", "map":
		*v = FromNative(w.V)
	case "struct":
		native := FromNative(w.V)
		m, _ := native.AsMap()
		*v = Struct(w.Schema, m)
	default:
		return fmt.Errorf("value: unknown wire kind %q", w.Kind)
	}
	return nil
}
