// Package wire implements the canonical, deterministic encoding used for
// payload and transaction wire form: a string-keyed map of primitively
// typed values encodes to byte-identical output on every replica, which
// matters because signatures are computed over the encoded bytes.
package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedEncoding is returned when decoding fails because the input
// is not a structurally valid encoding produced by Encode.
var ErrMalformedEncoding = errors.New("wire: malformed encoding")

// Kind discriminates the primitive types a Value may hold.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindBytes
	KindBool
	KindMap
)

// Value is a closed sum over the types the Serialiser accepts: integers,
// strings, byte strings, booleans, and nested maps of the same kinds.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    []byte
	bo   bool
	m    Map
}

// Map is a string-keyed collection of Values — the unit the Serialiser
// encodes and decodes.
type Map map[string]Value

func Int(v int64) Value      { return Value{kind: KindInt, i: v} }
func String(v string) Value  { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value   { return Value{kind: KindBytes, b: append([]byte(nil), v...)} }
func Bool(v bool) Value      { return Value{kind: KindBool, bo: v} }
func MapValue(v Map) Value   { return Value{kind: KindMap, m: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsInt() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)  { return v.b, v.kind == KindBytes }
func (v Value) AsBool() (bool, bool)     { return v.bo, v.kind == KindBool }
func (v Value) AsMap() (Map, bool)       { return v.m, v.kind == KindMap }

// MarshalJSON renders a Value as a single-key object naming its kind, so
// that decoding never has to guess a string's intended type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(struct {
			I int64 `json:"i"`
		}{v.i})
	case KindString:
		return json.Marshal(struct {
			S string `json:"s"`
		}{v.s})
	case KindBytes:
		return json.Marshal(struct {
			B string `json:"b"`
		}{base64.StdEncoding.EncodeToString(v.b)})
	case KindBool:
		return json.Marshal(struct {
			T bool `json:"t"`
		}{v.bo})
	case KindMap:
		return json.Marshal(struct {
			M Map `json:"m"`
		}{v.m})
	default:
		return nil, fmt.Errorf("wire: value has unknown kind %d", v.kind)
	}
}

// UnmarshalJSON reverses MarshalJSON, rejecting objects that don't carry
// exactly one recognised type key.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: value object must carry exactly one type key, got %d", ErrMalformedEncoding, len(raw))
	}

	if msg, ok := raw["i"]; ok {
		var i int64
		if err := json.Unmarshal(msg, &i); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		*v = Int(i)
		return nil
	}
	if msg, ok := raw["s"]; ok {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		*v = String(s)
		return nil
	}
	if msg, ok := raw["b"]; ok {
		var encoded string
		if err := json.Unmarshal(msg, &encoded); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		*v = Bytes(decoded)
		return nil
	}
	if msg, ok := raw["t"]; ok {
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		*v = Bool(b)
		return nil
	}
	if msg, ok := raw["m"]; ok {
		var m Map
		if err := json.Unmarshal(msg, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		*v = MapValue(m)
		return nil
	}

	return fmt.Errorf("%w: value object carries no recognised type key", ErrMalformedEncoding)
}

// Encode canonically encodes m to bytes. Two structurally-equal maps
// always produce byte-identical output, regardless of construction order.
func Encode(m Map) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return canonicalize(raw)
}

// Decode parses bytes produced by Encode back into a Map. Decoding the
// encoding of any valid map yields the original map.
func Decode(data []byte) (Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return m, nil
}

// canonicalize re-orders object keys depth-first so that byte-identical
// output does not depend on the marshalling order Go happened to pick.
func canonicalize(raw []byte) ([]byte, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// Equal reports whether two Maps are structurally identical.
func (m Map) Equal(other Map) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || !v.equal(ov) {
			return false
		}
	}
	return true
}

func (v Value) equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == other.i
	case KindString:
		return v.s == other.s
	case KindBytes:
		if len(v.b) != len(other.b) {
			return false
		}
		for i := range v.b {
			if v.b[i] != other.b[i] {
				return false
			}
		}
		return true
	case KindBool:
		return v.bo == other.bo
	case KindMap:
		return v.m.Equal(other.m)
	default:
		return false
	}
}
