package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Params is an insertion-ordered string-keyed map of JSON values. Decoded
// numbers are kept as json.Number; use Int or Float to read them.
//
// Params values are never mutated in place: With returns a new Params, so a
// copied Response or Event never observes later writes.
type Params struct {
	keys   []string
	values map[string]any
}

func (p Params) Len() int {
	return len(p.keys)
}

func (p Params) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Keys returns parameter names in first-insertion order.
func (p Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// With returns a copy with name set to value. Reassigning an existing name
// keeps its original position.
func (p Params) With(name string, value any) Params {
	out := Params{
		keys:   make([]string, len(p.keys), len(p.keys)+1),
		values: make(map[string]any, len(p.values)+1),
	}
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = v
	}
	if _, exists := out.values[name]; !exists {
		out.keys = append(out.keys, name)
	}
	out.values[name] = value
	return out
}

// Int reads an integral numeric parameter. Fractional or non-numeric values
// report false.
func (p Params) Int(name string) (int64, bool) {
	switch v := p.values[name].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return integral(f)
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	}
	return 0, false
}

// Float reads any numeric parameter.
func (p Params) Float(name string) (float64, bool) {
	switch v := p.values[name].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if n, ok := p.Int(name); ok {
		return float64(n), true
	}
	return 0, false
}

func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Map returns an unordered copy.
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("envelope: parameter %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the document's key order. Duplicate keys resolve to
// the last value.
func (p *Params) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = Params{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("envelope: params must be an object")
	}
	out := Params{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("envelope: params key must be a string")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = out.With(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
