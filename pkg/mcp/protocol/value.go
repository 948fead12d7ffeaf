// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ValueKind identifies the JSON kind a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindArray
	KindObject
)

// Value is a dynamic JSON container used when a typed decode of params/result
// is deferred (e.g. forwarding an unrecognized notification, or logging a
// payload before its expected type is known). It preserves the original
// bytes, so re-marshaling is always lossless regardless of how far the
// value has been inspected.
type Value struct {
	raw  json.RawMessage
	kind ValueKind
}

// NewValue wraps a raw JSON value, classifying its kind eagerly so Kind()
// never needs to re-parse.
func NewValue(raw json.RawMessage) (Value, error) {
	v := Value{raw: append(json.RawMessage(nil), raw...)}
	if err := v.classify(); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (v *Value) classify() error {
	trimmed := bytes.TrimSpace(v.raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		v.kind = KindNull
		return nil
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("invalid JSON value: %s", trimmed)
	}
	switch trimmed[0] {
	case '{':
		v.kind = KindObject
	case '[':
		v.kind = KindArray
	case '"':
		v.kind = KindString
	case 't', 'f':
		v.kind = KindBool
	default:
		// Numeric: decide Int vs Double the way JSON-RPC wants — an Int
		// only when representable exactly, else Double.
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return fmt.Errorf("invalid JSON value: %w", err)
		}
		if f == math.Trunc(f) && !math.IsInf(f, 0) && f >= math.MinInt64 && f <= math.MaxInt64 {
			v.kind = KindInt
		} else {
			v.kind = KindDouble
		}
	}
	return nil
}

// Kind returns the JSON kind this value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is JSON null or empty.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer value and true if Kind() == KindInt.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	var i int64
	if err := json.Unmarshal(v.raw, &i); err == nil {
		return i, true
	}
	// A whole number written with a fraction or exponent ("1.0", "1e3")
	// does not decode into int64 directly.
	var f float64
	if err := json.Unmarshal(v.raw, &f); err != nil || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Double returns the float value and true if Kind() is KindInt or KindDouble.
func (v Value) Double() (float64, bool) {
	if v.kind != KindInt && v.kind != KindDouble {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v.raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// String returns the string value and true if Kind() == KindString.
func (v Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Bool returns the bool value and true if Kind() == KindBool.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(v.raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// Array returns the element values and true if Kind() == KindArray.
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(v.raw, &rawItems); err != nil {
		return nil, false
	}
	items := make([]Value, 0, len(rawItems))
	for _, raw := range rawItems {
		item, err := NewValue(raw)
		if err != nil {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

// Object returns the field values and true if Kind() == KindObject.
func (v Value) Object() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	var rawFields map[string]json.RawMessage
	if err := json.Unmarshal(v.raw, &rawFields); err != nil {
		return nil, false
	}
	fields := make(map[string]Value, len(rawFields))
	for k, raw := range rawFields {
		field, err := NewValue(raw)
		if err != nil {
			return nil, false
		}
		fields[k] = field
	}
	return fields, true
}

// Raw returns the original bytes, unmodified.
func (v Value) Raw() json.RawMessage { return v.raw }

// MarshalJSON implements json.Marshaler; it always returns the original bytes.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	nv, err := NewValue(data)
	if err != nil {
		return err
	}
	*v = nv
	return nil
}
