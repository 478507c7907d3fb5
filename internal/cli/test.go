package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Golden string // golden directory, default <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r TestResult) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s", mark, s.Name)
		if s.Golden == "updated" {
			b.WriteString(" (golden updated)")
		}
		b.WriteString("\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\nTest Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 {
		b.WriteString("\n✓ All scenarios passed")
	}
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against fresh raster files",
		Long: `Run every scenario in a directory. Each scenario creates a raster file
in a temporary directory, executes its steps, checks its assertions and
compares the outcome with <scenarios-dir>/golden/<name>.golden when that
file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenarios, etc.)

Examples:
  grdb test ./scenarios
  grdb test ./scenarios --filter "lineage*"
  grdb test ./scenarios --update
  grdb test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid filter pattern", err)
		}
	}

	scenarios, err := harness.LoadScenarios(scenariosDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load scenarios", err)
	}

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}

	workDir, err := os.MkdirTemp("", "grdb-test-")
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "create work directory", err)
	}
	defer os.RemoveAll(workDir)

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		formatter.VerboseLog("Running scenario: %s", s.Name)

		sr := runScenario(opts, s, workDir, goldenDir, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if opts.Format == "json" {
			if err := formatter.Error(ErrCodeTestFailed, msg, result); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(formatter.Writer, result)
		}
		return NewExitError(ExitFailure, msg)
	}

	if result.Total == 0 && opts.Format != "json" {
		fmt.Fprintln(formatter.Writer, "No scenarios matched.")
		return nil
	}
	return formatter.Success(result)
}

// runScenario executes a single scenario and compares its snapshot.
func runScenario(opts *TestOptions, s *harness.Scenario, workDir, goldenDir string, cmd *cobra.Command) ScenarioResult {
	sr := ScenarioResult{Name: s.Name}

	result, err := harness.Run(cmd.Context(), s, workDir, harness.WithLogger(opts.logger()))
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	data, err := harness.MarshalSnapshot(s.Name, result)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}

	goldenPath := filepath.Join(goldenDir, s.Name+".golden")
	switch err := harness.CompareGolden(goldenPath, data, opts.Update); {
	case err == nil && opts.Update:
		sr.Golden = "updated"
	case err == nil:
		sr.Golden = "match"
	case errors.Is(err, os.ErrNotExist):
		// No golden file: assertions decide.
		sr.Golden = "missing"
	case errors.Is(err, harness.ErrGoldenMismatch):
		sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
	default:
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
	}

	sr.Errors = append(sr.Errors, result.Errors...)
	sr.Pass = len(sr.Errors) == 0
	return sr
}
