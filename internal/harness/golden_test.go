package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result := RunWithGolden(t, s)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot_NoErrorsField(t *testing.T) {
	data, err := MarshalSnapshot("empty", NewResult())
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario_name": "empty",
  "pass": true,
  "steps": [],
  "measurements": [],
  "annotations": [],
  "schema_version": 0
}
`, string(data))
}

func TestCompareGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "x.golden")
	data := []byte("snapshot\n")

	err := CompareGolden(path, data, false)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, CompareGolden(path, data, true))
	require.NoError(t, CompareGolden(path, data, false))

	err = CompareGolden(path, []byte("changed\n"), false)
	assert.True(t, errors.Is(err, ErrGoldenMismatch), "got %v", err)
}
