package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/config"
	"github.com/roach88/grdb/internal/ir"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Session string
}

// CreateResult is the output of the create command.
type CreateResult struct {
	Path          string    `json:"path"`
	RasterID      uuid.UUID `json:"raster_id"`
	SchemaVersion int       `json:"schema_version"`
}

func (r CreateResult) String() string {
	return fmt.Sprintf("Created %s (raster %s, schema v%d)", r.Path, r.RasterID, r.SchemaVersion)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <file> --session <session.cue|session.yaml>",
		Short: "Create a raster file from a session definition",
		Long: `Create a new raster file holding the session described by a CUE or
YAML definition. The definition is checked against the session schema
before anything is written. An existing file is never overwritten.

A missing raster_id is generated.

Examples:
  grdb create scan.grdb --session session.cue
  grdb create scan.grdb --session session.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Session, "session", "s", "", "session definition file (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runCreate(opts *CreateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); err == nil {
		return formatter.Fail(ExitCommandError, ErrCodeFileExists, fmt.Sprintf("refusing to overwrite %s", path), nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("stat %s", path), err)
	}

	session, err := config.Load(opts.Session)
	if err != nil {
		return formatter.Report("invalid session definition", err)
	}
	formatter.VerboseLog("Loaded session from %s (serial %s)", opts.Session, session.Device.SerialNumber)

	id, err := opts.repository(path).Create(cmd.Context(), session)
	if err != nil {
		return formatter.Report("create failed", err)
	}

	return formatter.Success(CreateResult{
		Path:          path,
		RasterID:      id,
		SchemaVersion: ir.CurrentSchemaVersion,
	})
}
