package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// MarshalJSON encodes the pair as {"key": ..., "value": ...}.
// Keys are NFC normalized at the serialization boundary so visually equal
// keys written by different tools compare equal on read.
func (p KVPair) MarshalJSON() ([]byte, error) {
	key, err := marshalString(norm.NFC.String(p.Key))
	if err != nil {
		return nil, err
	}
	val, err := marshalAnnotationValue(p.Value)
	if err != nil {
		return nil, fmt.Errorf("annotation %q: %w", p.Key, err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"key":`)
	buf.Write(key)
	buf.WriteString(`,"value":`)
	buf.Write(val)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a pair. Numbers without a fraction or exponent
// become Int; other numbers become Float.
func (p *KVPair) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal annotation: %w", err)
	}

	val, err := unmarshalAnnotationValue(raw.Value)
	if err != nil {
		return fmt.Errorf("annotation %q: %w", raw.Key, err)
	}
	p.Key = norm.NFC.String(raw.Key)
	p.Value = val
	return nil
}

func marshalAnnotationValue(v AnnotationValue) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("annotation value is required")
	case String:
		return marshalString(string(val))
	case Int:
		return []byte(val.String()), nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float %v cannot be encoded", f)
		}
		return []byte(val.String()), nil
	default:
		return nil, fmt.Errorf("unsupported annotation value type %T", v)
	}
}

func unmarshalAnnotationValue(data json.RawMessage) (AnnotationValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}

	switch val := v.(type) {
	case string:
		return String(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil && !bytes.ContainsAny([]byte(val), ".eE") {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode number %q: %w", val, err)
		}
		return Float(f), nil
	default:
		return nil, fmt.Errorf("annotation value must be string, int or float, got %T", v)
	}
}

// marshalString encodes s as a JSON string without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// json.Encoder adds trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalAnnotations encodes an ordered annotation list. A nil list encodes
// as "[]" so the column is never NULL. HTML characters are stored as written;
// json.Marshal would re-escape the output of KVPair.MarshalJSON.
func MarshalAnnotations(pairs []KVPair) (string, error) {
	if pairs == nil {
		pairs = []KVPair{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(pairs); err != nil {
		return "", fmt.Errorf("marshal annotations: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// UnmarshalAnnotations decodes an annotation column. Empty and NULL-ish
// values decode to an empty list.
func UnmarshalAnnotations(data string) ([]KVPair, error) {
	if data == "" || data == "null" {
		return []KVPair{}, nil
	}
	var pairs []KVPair
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	if pairs == nil {
		pairs = []KVPair{}
	}
	return pairs, nil
}
