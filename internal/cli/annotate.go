package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/ir"
)

// AnnotateResult is the output of the annotate command.
type AnnotateResult struct {
	Path        string      `json:"path"`
	Annotations []ir.KVPair `json:"annotations"`
}

func (r AnnotateResult) String() string {
	if len(r.Annotations) == 0 {
		return fmt.Sprintf("Cleared annotations of %s", r.Path)
	}
	parts := make([]string, len(r.Annotations))
	for i, kv := range r.Annotations {
		parts[i] = kv.Key + "=" + kv.Value.String()
	}
	return fmt.Sprintf("Annotated %s: %s", r.Path, strings.Join(parts, " "))
}

// NewAnnotateCommand creates the annotate command.
func NewAnnotateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <file> [key=value...]",
		Short: "Replace the session annotations",
		Long: `Replace the session annotation list of a raster file. Pairs keep the
order given. Values that parse as integers are stored as integers, other
numbers as floats, everything else as strings. With no pairs the list is
cleared.

Examples:
  grdb annotate scan.grdb operator=kim run=7 gain=3.5
  grdb annotate scan.grdb`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runAnnotate(opts *RootOptions, path string, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	pairs, err := parsePairs(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid annotations", err)
	}

	if err := requireFile(formatter, path); err != nil {
		return err
	}

	if err := opts.repository(path).UpdateAnnotations(cmd.Context(), pairs); err != nil {
		return formatter.Report("annotate failed", err)
	}

	return formatter.Success(AnnotateResult{Path: path, Annotations: pairs})
}
