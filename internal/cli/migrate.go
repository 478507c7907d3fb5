package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateResult is the output of the migrate command.
type MigrateResult struct {
	Path    string `json:"path"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Applied bool   `json:"applied"`
}

func (r MigrateResult) String() string {
	if !r.Applied {
		return fmt.Sprintf("%s is already at schema v%d", r.Path, r.To)
	}
	return fmt.Sprintf("Migrated %s from schema v%d to v%d", r.Path, r.From, r.To)
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <file>",
		Short: "Upgrade a raster file to the current layout",
		Long: `Upgrade a raster file written by an older version to the current
layout. Each step runs in its own transaction; a failed step leaves the
file at the last completed version. Files from a newer version are
refused.

Every other command migrates implicitly; this one only reports it.

Examples:
  grdb migrate old-scan.grdb`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runMigrate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := requireFile(formatter, path); err != nil {
		return err
	}

	m, err := opts.repository(path).Migrate(cmd.Context())
	if err != nil {
		return formatter.Report("migrate failed", err)
	}

	return formatter.Success(MigrateResult{Path: path, From: m.From, To: m.To, Applied: m.Applied()})
}
