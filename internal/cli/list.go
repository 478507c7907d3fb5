package cli

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/grdb/internal/harness"
	"github.com/roach88/grdb/internal/ir"
	"github.com/roach88/grdb/internal/pulsedb"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Variant string
	Offset  int
	Limit   int
}

// ListResult is the output of the list command.
type ListResult struct {
	Path         string           `json:"path"`
	Offset       int              `json:"offset"`
	Limit        int              `json:"limit"`
	Variant      ir.Variant       `json:"variant,omitempty"`
	Measurements []ir.Measurement `json:"measurements"`
}

func (r ListResult) String() string {
	if len(r.Measurements) == 0 {
		return "No measurements."
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tVARIANT\tPOINT\tLINEAGE\tSAMPLES\tPASS\tREFERENCE")
	for _, m := range r.Measurements {
		pass, ref := "-", "-"
		if m.PassNumber != nil {
			pass = fmt.Sprint(*m.PassNumber)
		}
		if m.Reference != nil {
			ref = m.Reference.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			m.Pulse.UUID, m.Variant, formatPoint(m.Point), harness.Lineage(m.Pulse),
			len(m.Pulse.Signal), pass, ref)
	}
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

func formatPoint(p ir.Point3D) string {
	axis := func(v *float64) string {
		if v == nil {
			return "_"
		}
		return fmt.Sprintf("%g", *v)
	}
	return "(" + axis(p.X) + "," + axis(p.Y) + "," + axis(p.Z) + ")"
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <file>",
		Short: "List final measurements",
		Long: `List the final measurements of a raster file in the order they were
written, with their lineage rebuilt. Stitch segments and averaged sources
are never listed on their own.

Without --limit the configured page size is used; --limit 0 lists
everything.

Examples:
  grdb list scan.grdb
  grdb list scan.grdb --variant reference
  grdb list scan.grdb --offset 100 --limit 50 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				opts.Limit = opts.PageSize
			}
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", "", "only list this variant (reference|sample|noise|other)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "skip this many measurements")
	cmd.Flags().IntVar(&opts.Limit, "limit", DefaultPageSize, "list at most this many measurements (0 = all)")

	return cmd
}

func runList(opts *ListOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	page := pulsedb.Page{Offset: opts.Offset, Limit: opts.Limit}
	if opts.Variant != "" {
		v, err := ir.ParseVariant(opts.Variant)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --variant", err)
		}
		page.Variant = v
	}
	if page.Offset < 0 || page.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "--offset and --limit must not be negative", nil)
	}

	if err := requireFile(formatter, path); err != nil {
		return err
	}

	ms, err := opts.repository(path).LoadMeasurements(cmd.Context(), page)
	if err != nil {
		return formatter.Report("list failed", err)
	}
	formatter.VerboseLog("Loaded %d measurement(s) from %s", len(ms), path)
	if ms == nil {
		ms = []ir.Measurement{}
	}

	return formatter.Success(ListResult{
		Path:         path,
		Offset:       page.Offset,
		Limit:        page.Limit,
		Variant:      page.Variant,
		Measurements: ms,
	})
}
