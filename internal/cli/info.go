package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/ir"
)

// InfoResult is the output of the info command.
type InfoResult struct {
	Path          string     `json:"path"`
	SchemaVersion int        `json:"schema_version"`
	References    int        `json:"references"`
	Samples       int        `json:"samples"`
	Session       ir.Session `json:"session"`
}

func (r InfoResult) String() string {
	var b strings.Builder
	s := r.Session
	fmt.Fprintf(&b, "File:        %s (schema v%d)\n", r.Path, r.SchemaVersion)
	fmt.Fprintf(&b, "Raster:      %s\n", s.Metadata.RasterID)
	fmt.Fprintf(&b, "Device:      %s (firmware %s)\n", s.Device.SerialNumber, s.Device.FirmwareVersion)
	fmt.Fprintf(&b, "App:         %s\n", s.Metadata.AppVersion)
	fmt.Fprintf(&b, "Patterns:    %d, step size %g\n", len(s.Config.Patterns), s.Config.StepSize)
	if rep := s.Config.Repetitions; rep != nil {
		fmt.Fprintf(&b, "Passes:      %d every %gms\n", rep.Passes, rep.IntervalMillisecs)
	}
	if uc := s.Metadata.UserCoordinates; uc != nil {
		fmt.Fprintf(&b, "Coordinates: %s\n", uc.Name)
	}
	fmt.Fprintf(&b, "References:  %d\n", r.References)
	fmt.Fprintf(&b, "Samples:     %d", r.Samples)
	for _, kv := range s.Metadata.Annotations {
		fmt.Fprintf(&b, "\n  %s=%s", kv.Key, kv.Value)
	}
	return b.String()
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Show session metadata and pulse counts",
		Long: `Show the session stored in a raster file with the number of final
reference and sample pulses. Older files are upgraded to the current
layout first.

Examples:
  grdb info scan.grdb
  grdb info scan.grdb --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runInfo(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := requireFile(formatter, path); err != nil {
		return err
	}

	repo := opts.repository(path)
	md, err := repo.LoadMetadata(cmd.Context())
	if err != nil {
		return formatter.Report("load metadata failed", err)
	}
	version, err := repo.SchemaVersion(cmd.Context())
	if err != nil {
		return formatter.Report("read schema version failed", err)
	}

	return formatter.Success(InfoResult{
		Path:          path,
		SchemaVersion: version,
		References:    md.References,
		Samples:       md.Samples,
		Session:       md.Session,
	})
}
