package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/grdb/internal/pulsedb"
)

// DefaultPageSize is the number of measurements list prints when neither
// --limit nor a configured page size is given.
const DefaultPageSize = 100

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // optional grdb.yaml
	PageSize int

	// Logger receives operation events. Nil means slog.Default().
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the grdb CLI.
//
// Settings resolve in order: flags, GRDB_* environment variables, the
// config file, defaults.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "grdb",
		Short: "grdb - raster file tool",
		Long: `Create, inspect and edit raster files: single-file stores of
terahertz pulse measurements with their stitch and averaging lineage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(v, opts); err != nil {
				return err
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.PageSize < 0 {
				return fmt.Errorf("invalid page size %d: must not be negative", opts.PageSize)
			}
			opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "settings file (default ./grdb.yaml if present)")
	cmd.PersistentFlags().IntVar(&opts.PageSize, "page-size", DefaultPageSize, "measurements listed per page")

	_ = v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("format", cmd.PersistentFlags().Lookup("format"))
	_ = v.BindPFlag("page_size", cmd.PersistentFlags().Lookup("page-size"))

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAnnotateCommand(opts))
	cmd.AddCommand(NewSetReferenceCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewFixtureCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadSettings merges the config file and environment into opts.
func loadSettings(v *viper.Viper, opts *RootOptions) error {
	v.SetEnvPrefix("GRDB")
	v.AutomaticEnv()

	if opts.Config != "" {
		v.SetConfigFile(opts.Config)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings %s: %w", opts.Config, err)
		}
	} else {
		v.SetConfigName("grdb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read settings: %w", err)
			}
		}
	}

	opts.Verbose = v.GetBool("verbose")
	opts.Format = v.GetString("format")
	opts.PageSize = v.GetInt("page_size")
	return nil
}

// newLogger returns a text logger on w at Info, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// repository opens the raster file at path with the command logger.
func (o *RootOptions) repository(path string) *pulsedb.Repository {
	return pulsedb.New(path, pulsedb.WithLogger(o.logger()))
}

// formatter returns an OutputFormatter for cmd. Verbose logs go to stderr
// to avoid corrupting JSON.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
