package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/render"
	"github.com/raysh454/darklens/internal/utils"
)

const (
	outputJSON     = "json"
	outputMarkdown = "markdown"
)

func newAuditCmd(opts *options) *cobra.Command {
	var (
		output      string
		concurrency int
		failUnder   int
		crawl       bool
		crawlDepth  int
	)

	cmd := &cobra.Command{
		Use:   "audit <url>...",
		Short: "Capture, detect and score one or more pages",
		Example: `  darklens audit https://example.com
  darklens audit --output markdown --fail-under 80 shop.example.com blog.example.com
  darklens audit --crawl --crawl-depth 2 https://shop.example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.BatchConcurrency = concurrency
			}
			if cmd.Flags().Changed("crawl-depth") {
				crawl = true
				cfg.Crawl.MaxDepth = crawlDepth
			}

			return opts.runApp(cmd, cfg, func(ctx context.Context, a *app.Application) error {
				targets := args
				if crawl {
					var err error
					if targets, err = discoverAll(ctx, a.Orch, args); err != nil {
						return err
					}
				}
				recs, err := a.Orch.AuditBatch(ctx, targets)
				if err != nil {
					return err
				}
				if err := writeRecords(cmd.OutOrStdout(), recs, output); err != nil {
					return err
				}
				return checkThreshold(recs, failUnder)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "Output format: json or markdown")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Pages audited at once (0 uses the config value)")
	cmd.Flags().IntVar(&failUnder, "fail-under", 0, "Exit with status 3 if any trust score is below this value")
	cmd.Flags().BoolVar(&crawl, "crawl", false, "Also audit same-site pages linked from each url")
	cmd.Flags().IntVar(&crawlDepth, "crawl-depth", 1, "Link depth followed by --crawl (implies --crawl)")
	return cmd
}

func newScoreCmd(opts *options) *cobra.Command {
	var (
		target     string
		detections string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score detections produced elsewhere",
		Long: "Reads a JSON array of detections ({label, confidence, box_2d}) from a file, " +
			"or from stdin when the path is -, and stores the resulting audit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), detections)
			if err != nil {
				return err
			}
			dets, err := auditor.ParseDetections(data)
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				rec, err := a.Orch.Score(ctx, target, dets)
				if err != nil {
					return err
				}
				return writeRecords(cmd.OutOrStdout(), []*model.AuditRecord{rec}, output)
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Page the detections belong to")
	cmd.Flags().StringVarP(&detections, "detections", "d", "-", "Detections JSON file, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "Output format: json or markdown")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newCaptureCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "capture <url>",
		Short: "Capture a page screenshot into the export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				c, err := a.Orch.Capture(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), c)
			})
		},
	}
}

// discoverAll expands each root into its site's pages, dropping pages
// already reached from an earlier root.
func discoverAll(ctx context.Context, orch *app.Orchestrator, roots []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, root := range roots {
		pages, err := orch.DiscoverTargets(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			key, err := utils.CanonicalTarget(p)
			if err != nil || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func checkOutput(output string) error {
	switch output {
	case outputJSON, outputMarkdown:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want json or markdown)", output)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	return data, nil
}

func writeRecords(w io.Writer, recs []*model.AuditRecord, output string) error {
	if output == outputJSON {
		return writeJSON(w, recs)
	}
	docs := make([]string, 0, len(recs))
	for _, rec := range recs {
		md, err := render.Markdown(rec.Report)
		if err != nil {
			return err
		}
		docs = append(docs, md)
	}
	_, err := io.WriteString(w, strings.Join(docs, "\n---\n\n"))
	return err
}

func checkThreshold(recs []*model.AuditRecord, failUnder int) error {
	if failUnder <= 0 {
		return nil
	}
	var below []string
	for _, rec := range recs {
		if rec.TrustScore < failUnder {
			below = append(below, fmt.Sprintf("%s (%d)", rec.Target, rec.TrustScore))
		}
	}
	if len(below) > 0 {
		return fmt.Errorf("%w %d: %s", ErrBelowThreshold, failUnder, strings.Join(below, ", "))
	}
	return nil
}
