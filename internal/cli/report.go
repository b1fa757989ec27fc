package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/render"
	"github.com/raysh454/darklens/internal/taxonomy"
)

func newTaxonomyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "List the dark patterns audits are scored against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := taxonomy.Default().Rules()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rules)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tPENALTY\tREGULATION")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Category, r.Severity, r.PenaltyWeight, r.RegulationCitation)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the rules as JSON")
	return cmd
}

func newReportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored audits",
	}
	cmd.AddCommand(
		newReportListCmd(opts),
		newReportShowCmd(opts),
		newReportCompareCmd(opts),
		newReportStatsCmd(opts),
		newReportPruneCmd(opts),
	)
	return cmd
}

func newReportListCmd(opts *options) *cobra.Command {
	var (
		target string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				recs, err := a.Orch.ListReports(ctx, target, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTARGET\tSCORE\tSTATUS\tVIOLATIONS\tCREATED")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
						r.ID, r.TargetKey, r.TrustScore, r.Status, r.TotalViolations, r.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "Only audits of this page")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum audits to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON")
	return cmd
}

func newReportShowCmd(opts *options) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored audit as JSON, markdown, html or xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != outputJSON {
				if _, _, ok := render.ContentType(format); !ok {
					return fmt.Errorf("unknown format %q", format)
				}
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				rec, err := a.Orch.GetReport(ctx, args[0])
				if err != nil {
					return err
				}

				var buf bytes.Buffer
				switch format {
				case outputJSON:
					err = writeJSON(&buf, rec.Report)
				case render.FormatHTML:
					var doc []byte
					if doc, err = render.HTML(rec.Report); err == nil {
						buf.Write(doc)
					}
				case render.FormatXLSX:
					err = render.XLSX(rec.Report, &buf)
				default:
					var md string
					if md, err = render.Markdown(rec.Report); err == nil {
						buf.WriteString(md)
					}
				}
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), out, buf.Bytes())
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", outputJSON, "json, markdown, html or xlsx")
	cmd.Flags().StringVarP(&out, "out", "O", "", "Write to this file instead of stdout")
	return cmd
}

func newReportCompareCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare <base-id> <head-id>",
		Short: "Show how a later audit differs from an earlier one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				d, err := a.Orch.CompareReports(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(w, d)
				}

				fmt.Fprintf(w, "%s: %d -> %d (%+d)\n", d.HeadTarget, d.BaseScore, d.HeadScore, d.Delta)
				if d.StatusChanged {
					fmt.Fprintf(w, "status: %s -> %s\n", d.BaseStatus, d.HeadStatus)
				}
				if !d.SameTarget {
					fmt.Fprintf(w, "warning: comparing different targets (%s, %s)\n", d.BaseTarget, d.HeadTarget)
				}
				for _, art := range d.NewlyFailed {
					fmt.Fprintf(w, "newly failed: %s\n", art)
				}
				for _, art := range d.Resolved {
					fmt.Fprintf(w, "resolved: %s\n", art)
				}
				if d.BreakdownDiff != "" {
					fmt.Fprintf(w, "\n%s", d.BreakdownDiff)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diff as JSON")
	return cmd
}

func newReportStatsCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats <target>",
		Short: "Summarise the trust score history of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				tr, err := a.Orch.TargetTrend(ctx, args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(w, tr)
				}

				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "target\t%s\n", tr.TargetKey)
				fmt.Fprintf(tw, "audits\t%d\n", tr.Count)
				fmt.Fprintf(tw, "latest\t%d (%s)\n", tr.LatestScore, tr.LatestStatus)
				fmt.Fprintf(tw, "change\t%+d\n", tr.Change)
				fmt.Fprintf(tw, "mean\t%.2f\n", tr.Mean)
				fmt.Fprintf(tw, "median\t%.2f\n", tr.Median)
				fmt.Fprintf(tw, "min / max\t%.0f / %.0f\n", tr.Min, tr.Max)
				fmt.Fprintf(tw, "std dev\t%.2f\n", tr.StdDev)
				fmt.Fprintf(tw, "compliant\t%.0f%%\n", tr.CompliantRatio*100)
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the trend as JSON")
	return cmd
}

func newReportPruneCmd(opts *options) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored audits older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				n, err := a.Orch.PruneReports(ctx, olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Minimum age of the audits to delete")
	return cmd
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
