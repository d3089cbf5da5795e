// Package canonical produces a deterministic JSON encoding of opaque
// artifact-supplied values.
//
// The Furnace never interprets artifact state; it only measures and compares
// it. Both operations need a byte-stable encoding: T3 charges the serialized
// size of a compacted state against a byte budget, and T4 compares pre- and
// post-restart behavior byte-for-byte. Standard json.Marshal is not stable
// enough (HTML escaping, float round-tripping), so this package implements a
// canonical form:
//
//  1. Object keys sorted lexicographically by UTF-8 bytes
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings NFC normalized at the serialization boundary
//  4. Numbers preserved verbatim via json.Number (no float64 round-trip)
//  5. No insignificant whitespace
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Encode re-encodes raw JSON into canonical form.
// Returns an error if raw is not valid JSON or contains trailing data.
func Encode(raw []byte) ([]byte, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size returns the canonical serialized size of raw in bytes.
func Size(raw []byte) (int, error) {
	data, err := Encode(raw)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Equal reports whether two raw JSON documents are canonically identical.
func Equal(a, b []byte) (bool, error) {
	ca, err := Encode(a)
	if err != nil {
		return false, fmt.Errorf("left operand: %w", err)
	}
	cb, err := Encode(b)
	if err != nil {
		return false, fmt.Errorf("right operand: %w", err)
	}
	return bytes.Equal(ca, cb), nil
}

// decode parses raw JSON preserving number text via json.Number.
func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	// Reject trailing content after the first value.
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON: trailing data after value")
	}
	return v, nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		return encodeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k]); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// encodeString writes a JSON string with NFC normalization and no HTML
// escaping. Only control characters, backslash, and quote are escaped.
func encodeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false) // <, >, & must NOT be escaped
	if err := enc.Encode(normalized); err != nil {
		return err
	}

	out := tmp.Bytes()
	// json.Encoder adds a trailing newline, remove it.
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}
