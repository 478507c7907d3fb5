package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/devtools"
	"github.com/roach88/grdb/internal/pulsedb"
	"github.com/roach88/grdb/internal/testutil"
)

// fixtureEpoch is the first timestamp of a seeded fixture, in ms.
const fixtureEpoch = 1_600_000_000_000

// FixtureOptions holds flags for the fixture command.
type FixtureOptions struct {
	*RootOptions
	Seed     uint64
	Serial   string
	RasterID string
}

// FixtureResult is the output of the fixture command.
type FixtureResult struct {
	Path         string    `json:"path"`
	RasterID     uuid.UUID `json:"raster_id"`
	Measurements int       `json:"measurements"`
	References   int       `json:"references"`
	Samples      int       `json:"samples"`
}

func (r FixtureResult) String() string {
	return fmt.Sprintf("Wrote %s: raster %s, %d measurement(s) (%d reference, %d sample)",
		r.Path, r.RasterID, r.Measurements, r.References, r.Samples)
}

// NewFixtureCommand creates the fixture command.
func NewFixtureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FixtureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fixture <file>",
		Short: "Write a dummy raster file",
		Long: `Write a raster file holding a representative session and a set of
measurements covering every variant, point shape, annotation type and
lineage shape.

With --seed the file content (uuids, timestamps and signals) is
reproducible.

Examples:
  grdb fixture dummy.grdb
  grdb fixture dummy.grdb --seed 42 --serial 555-XYZ`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var gopts []devtools.Option
			if cmd.Flags().Changed("seed") {
				gopts = seededGenerator(opts.Seed)
			}
			return runFixture(opts, args[0], devtools.New(gopts...), cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "make the file reproducible")
	cmd.Flags().StringVar(&opts.Serial, "serial", devtools.DefaultSerialNumber, "device serial number")
	cmd.Flags().StringVar(&opts.RasterID, "raster-id", "", "raster id (generated when empty)")

	return cmd
}

func seededGenerator(seed uint64) []devtools.Option {
	return []devtools.Option{
		devtools.WithIDs(testutil.NewSeededUUIDs(seed)),
		devtools.WithClock(testutil.NewDeterministicClock(fixtureEpoch, 1)),
		devtools.WithSeed(seed),
	}
}

func runFixture(opts *FixtureOptions, path string, gen *devtools.Generator, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	rasterID := uuid.Nil
	if opts.RasterID != "" {
		id, err := uuid.Parse(opts.RasterID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --raster-id", err)
		}
		rasterID = id
	}

	if _, err := os.Stat(path); err == nil {
		return formatter.Fail(ExitCommandError, ErrCodeFileExists, fmt.Sprintf("refusing to overwrite %s", path), nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("stat %s", path), err)
	}

	repo := opts.repository(path)
	logger := pulsedb.WithLogger(opts.logger())
	session, written, err := gen.Database(cmd.Context(), path, opts.Serial, rasterID, logger)
	if err != nil {
		return formatter.Report("write fixture failed", err)
	}

	md, err := repo.LoadMetadata(cmd.Context())
	if err != nil {
		return formatter.Report("read back fixture failed", err)
	}

	return formatter.Success(FixtureResult{
		Path:         path,
		RasterID:     session.Metadata.RasterID,
		Measurements: len(written),
		References:   md.References,
		Samples:      md.Samples,
	})
}
