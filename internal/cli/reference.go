package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// SetReferenceOptions holds flags for the set-reference command.
type SetReferenceOptions struct {
	*RootOptions
	Ref   string
	Clear bool
}

// SetReferenceResult is the output of the set-reference command.
type SetReferenceResult struct {
	Path      string     `json:"path"`
	Updated   int        `json:"updated"`
	Reference *uuid.UUID `json:"reference"`
}

func (r SetReferenceResult) String() string {
	if r.Reference == nil {
		return fmt.Sprintf("Cleared the reference of %d pulse(s) in %s", r.Updated, r.Path)
	}
	return fmt.Sprintf("Pointed %d pulse(s) in %s at %s", r.Updated, r.Path, r.Reference)
}

// NewSetReferenceCommand creates the set-reference command.
func NewSetReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetReferenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-reference <file> <uuid>... (--ref <uuid> | --clear)",
		Short: "Point pulses at a reference pulse",
		Long: `Set or clear the reference pulse of one or more pulses. Every listed
uuid and the reference itself must exist in the file; otherwise nothing
is changed and the missing uuids are reported.

Examples:
  grdb set-reference scan.grdb 0190f1c2-... 0190f1c3-... --ref 0190f1c0-...
  grdb set-reference scan.grdb 0190f1c2-... --clear`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetReference(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ref, "ref", "", "uuid of the reference pulse")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "clear the reference instead")
	cmd.MarkFlagsMutuallyExclusive("ref", "clear")
	cmd.MarkFlagsOneRequired("ref", "clear")

	return cmd
}

func runSetReference(opts *SetReferenceOptions, path string, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ids, err := parseUUIDs(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid pulse uuid", err)
	}

	var ref *uuid.UUID
	if !opts.Clear {
		id, err := uuid.Parse(opts.Ref)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --ref", err)
		}
		ref = &id
	}

	if err := requireFile(formatter, path); err != nil {
		return err
	}

	if err := opts.repository(path).UpdateReference(cmd.Context(), ids, ref); err != nil {
		return formatter.Report("set reference failed", err)
	}

	return formatter.Success(SetReferenceResult{Path: path, Updated: len(ids), Reference: ref})
}
