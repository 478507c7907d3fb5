package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenariosDir = "../harness/testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeTest(t *testing.T, out string) (CLIResponse, TestResult) {
	t.Helper()
	var resp struct {
		CLIResponse
		Data  TestResult `json:"data"`
		Error *struct {
			Code    string     `json:"code"`
			Message string     `json:"message"`
			Details TestResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if resp.Error != nil {
		resp.CLIResponse.Error = &CLIError{Code: resp.Error.Code, Message: resp.Error.Message}
		return resp.CLIResponse, resp.Error.Details
	}
	return resp.CLIResponse, resp.Data
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	requireExit(t, err, ExitCommandError)
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandMalformedScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\nstepz: []\n"), 0o644))

	out, err := runTestCommand(t, "json", dir)
	requireExit(t, err, ExitCommandError)
	resp, _ := decodeTest(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReadFailed, resp.Error.Code)
}

func TestTestCommandGoldenPass(t *testing.T) {
	out, err := runTestCommand(t, "text", scenariosDir, "--golden", goldenDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ lineage_round_trip")
	assert.Contains(t, out, "✓ rejected_writes")
	assert.Contains(t, out, "✓ session_without_repetitions")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommandDefaultGoldenDir(t *testing.T) {
	// Without --golden, <scenarios-dir>/golden is used, which does not
	// exist here, so assertions alone decide.
	out, err := runTestCommand(t, "json", scenariosDir)
	require.NoError(t, err)
	resp, result := decodeTest(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, result.Passed)
	for _, s := range result.Scenarios {
		assert.Equal(t, "missing", s.Golden, s.Name)
	}
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runTestCommand(t, "json", scenariosDir, "--golden", goldenDir, "--filter", "lineage*")
	require.NoError(t, err)
	_, result := decodeTest(t, out)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "lineage_round_trip", result.Scenarios[0].Name)
	assert.Equal(t, "match", result.Scenarios[0].Golden)

	out, err = runTestCommand(t, "text", scenariosDir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios matched")

	_, err = runTestCommand(t, "text", scenariosDir, "--filter", "[")
	requireExit(t, err, ExitCommandError)
}

func TestTestCommandUpdate(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	out, err := runTestCommand(t, "json", scenariosDir, "--golden", golden, "--update")
	require.NoError(t, err)
	_, result := decodeTest(t, out)
	assert.Equal(t, 3, result.Passed)
	for _, s := range result.Scenarios {
		assert.Equal(t, "updated", s.Golden, s.Name)
		want, err := os.ReadFile(filepath.Join(goldenDir, s.Name+".golden"))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(golden, s.Name+".golden"))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), "regenerated %s matches the checked-in file", s.Name)
	}

	out, err = runTestCommand(t, "text", scenariosDir, "--golden", golden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "rejected_writes.golden"), []byte("{}\n"), 0o644))

	out, err := runTestCommand(t, "json", scenariosDir, "--golden", golden)
	requireExit(t, err, ExitFailure)
	resp, result := decodeTest(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Passed)

	out, err = runTestCommand(t, "text", scenariosDir, "--golden", golden)
	requireExit(t, err, ExitFailure)
	assert.Contains(t, out, "✗ rejected_writes")
	assert.Contains(t, out, "run with --update to regenerate")
	assert.Contains(t, out, "Test Summary: 2 passed, 1 failed, 3 total")
}
