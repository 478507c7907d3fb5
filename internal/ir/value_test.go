package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationValueSealed(t *testing.T) {
	var _ AnnotationValue = String("test")
	var _ AnnotationValue = Int(42)
	var _ AnnotationValue = Float(1.5)
}

func TestKVPairMarshal(t *testing.T) {
	tests := []struct {
		name     string
		pair     KVPair
		expected string
	}{
		{"string", KV("s", "v"), `{"key":"s","value":"v"}`},
		{"int", KV("int", 42), `{"key":"int","value":42}`},
		{"negative int", KV("n", -7), `{"key":"n","value":-7}`},
		{"float", KV("f", 3.14), `{"key":"f","value":3.14}`},
		{"integral float", KV("baz", 1.0), `{"key":"baz","value":1.0}`},
		{"large float", KV("big", 1e21), `{"key":"big","value":1e+21}`},
		{"empty key", KV("", ""), `{"key":"","value":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.pair)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}

func TestKVPairUnmarshalKeepsNumericKind(t *testing.T) {
	tests := []struct {
		input    string
		expected AnnotationValue
	}{
		{`{"key":"k","value":42}`, Int(42)},
		{`{"key":"k","value":1.0}`, Float(1)},
		{`{"key":"k","value":3.14}`, Float(3.14)},
		{`{"key":"k","value":2e3}`, Float(2000)},
		{`{"key":"k","value":"42"}`, String("42")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var p KVPair
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			assert.Equal(t, "k", p.Key)
			assert.Equal(t, tt.expected, p.Value)
		})
	}
}

func TestKVPairUnmarshalRejectsOtherTypes(t *testing.T) {
	for _, input := range []string{
		`{"key":"k","value":true}`,
		`{"key":"k","value":null}`,
		`{"key":"k","value":[1]}`,
		`{"key":"k","value":{"a":1}}`,
	} {
		var p KVPair
		assert.Error(t, json.Unmarshal([]byte(input), &p), input)
	}
}

func TestKVPairKeysAreNFCNormalized(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	data, err := json.Marshal(KV(decomposed, "x"))
	require.NoError(t, err)
	assert.Equal(t, `{"key":"`+composed+`","value":"x"}`, string(data))

	var p KVPair
	require.NoError(t, json.Unmarshal([]byte(`{"key":"`+decomposed+`","value":1}`), &p))
	assert.Equal(t, composed, p.Key)
}

func TestKVPairMarshalRejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(KVPair{Key: "nan", Value: Float(math.NaN())})
	assert.Error(t, err)

	_, err = json.Marshal(KVPair{Key: "inf", Value: Float(math.Inf(1))})
	assert.Error(t, err)

	_, err = json.Marshal(KVPair{Key: "nil"})
	assert.Error(t, err)
}

func TestAnnotationsRoundTrip(t *testing.T) {
	pairs := []KVPair{KV("foo", "bar"), KV("baz", 1.0), KV("n", 3), KV("pi", 3.14)}

	encoded, err := MarshalAnnotations(pairs)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"key":"foo","value":"bar"},{"key":"baz","value":1.0},{"key":"n","value":3},{"key":"pi","value":3.14}]`,
		encoded)

	decoded, err := UnmarshalAnnotations(encoded)
	require.NoError(t, err)
	assert.Equal(t, pairs, decoded)
}

func TestAnnotationsKeepHTMLCharacters(t *testing.T) {
	pairs := []KVPair{KV("a<b", "x&y"), KV("tag", "<raw>")}

	encoded, err := MarshalAnnotations(pairs)
	require.NoError(t, err)
	assert.Equal(t, `[{"key":"a<b","value":"x&y"},{"key":"tag","value":"<raw>"}]`, encoded)
	assert.NotContains(t, encoded, `\u00`)

	decoded, err := UnmarshalAnnotations(encoded)
	require.NoError(t, err)
	assert.Equal(t, pairs, decoded)
}

func TestAnnotationsEmpty(t *testing.T) {
	encoded, err := MarshalAnnotations(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)

	for _, in := range []string{"", "null", "[]"} {
		decoded, err := UnmarshalAnnotations(in)
		require.NoError(t, err)
		assert.NotNil(t, decoded)
		assert.Empty(t, decoded)
	}

	_, err = UnmarshalAnnotations("{not json")
	assert.Error(t, err)
}

func TestParseAnnotationValue(t *testing.T) {
	assert.Equal(t, Int(12), ParseAnnotationValue("12"))
	assert.Equal(t, Float(1.5), ParseAnnotationValue("1.5"))
	assert.Equal(t, String("hello"), ParseAnnotationValue("hello"))
	assert.Equal(t, String(""), ParseAnnotationValue(""))
}

func TestKVPanicsOnUnsupportedType(t *testing.T) {
	assert.Panics(t, func() { KV("b", true) })
}
