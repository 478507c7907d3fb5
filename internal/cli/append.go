package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/ir"
)

// AppendResult is the output of the append command.
type AppendResult struct {
	Path     string `json:"path"`
	Appended int    `json:"appended"`
}

func (r AppendResult) String() string {
	return fmt.Sprintf("Appended %d measurement(s) to %s", r.Appended, r.Path)
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <file> <measurements.json>",
		Short: "Append measurements to a raster file",
		Long: `Append a batch of measurements read from a JSON array. Use - to read
from stdin. The batch is written in one transaction: if any measurement
is rejected, nothing is written.

Each element has the shape
  {"pulse": {...}, "point": {"x": 1, "y": null, "z": 0},
   "variant": "sample", "reference": null, "annotations": [],
   "pass_number": null}
where a pulse may carry derived_from (stitch) or averaged_from lineage.

Examples:
  grdb append scan.grdb batch.json
  generate | grdb append scan.grdb -`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runAppend(opts *RootOptions, path, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := requireFile(formatter, path); err != nil {
		return err
	}

	data, err := readInput(cmd, input)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("read %s", input), err)
	}

	var measurements []ir.Measurement
	if err := json.Unmarshal(data, &measurements); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDecode, fmt.Sprintf("decode %s", input), err)
	}
	formatter.VerboseLog("Decoded %d measurement(s) from %s", len(measurements), input)

	if err := opts.repository(path).Append(cmd.Context(), measurements...); err != nil {
		return formatter.Report("append failed", err)
	}

	return formatter.Success(AppendResult{Path: path, Appended: len(measurements)})
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
