package jsonutil

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape encodes v into JSON without escaping <, >, & into \u003c, etc.
// Generated JSX travels through these payloads, so HTML escaping would corrupt it.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation.
func MarshalNoEscapeIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Stringify renders v the way a prompt expects to see it: compact JSON,
// "null" for nil, and a best-effort "null" when v cannot be encoded.
func Stringify(v any) string {
	if v == nil {
		return "null"
	}
	b, err := MarshalNoEscape(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// DecodeObject parses data as a single JSON object. Numbers decode as float64.
// ok is false when data is not valid JSON or its top-level value is not an object.
func DecodeObject(data []byte) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}
