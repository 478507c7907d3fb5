package ir

import (
	"strconv"
)

// AnnotationValue is a sealed interface over the value types an annotation
// may hold. Only String, Int and Float implement it.
type AnnotationValue interface {
	annotationValue() // Sealed - only these types implement it
	String() string
}

// String is a text annotation value.
type String string

func (String) annotationValue() {}

func (s String) String() string { return string(s) }

// Int is an integer annotation value.
type Int int64

func (Int) annotationValue() {}

func (n Int) String() string { return strconv.FormatInt(int64(n), 10) }

// Float is a real annotation value. It always encodes with a decimal point
// or exponent so it decodes back as Float, never Int.
type Float float64

func (Float) annotationValue() {}

func (f Float) String() string { return formatFloat(float64(f)) }

// KVPair is one ordered annotation entry.
type KVPair struct {
	Key   string          `json:"key"`
	Value AnnotationValue `json:"value"`
}

// KV builds a KVPair from a Go value. It panics on unsupported types and is
// meant for literals in tests and fixtures.
func KV(key string, value any) KVPair {
	v, err := toAnnotationValue(value)
	if err != nil {
		panic(err)
	}
	return KVPair{Key: key, Value: v}
}

// ValidateAnnotations checks that every pair has a key and a value.
func ValidateAnnotations(pairs []KVPair) error {
	for i, kv := range pairs {
		if kv.Key == "" {
			return Validationf("annotation %d: key is required", i)
		}
		if kv.Value == nil {
			return Validationf("annotation %q: value is required", kv.Key)
		}
	}
	return nil
}

// ParseAnnotationValue interprets s the way a command line would: integers
// become Int, other numbers Float, anything else String.
func ParseAnnotationValue(s string) AnnotationValue {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}

func toAnnotationValue(v any) (AnnotationValue, error) {
	switch val := v.(type) {
	case AnnotationValue:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	default:
		return nil, Validationf("unsupported annotation value type %T", v)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'n', 'N', 'I':
			return s
		}
	}
	return s + ".0"
}
