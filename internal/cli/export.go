package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pioj/pioj/internal/config"
	"github.com/pioj/pioj/internal/export"
	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/query"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Workstream string
	Days       int
	Type       string // "markdown" | "csv"
	Output     string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <definitions.cue>",
		Short: "Resolve a workstream and export its tickets",
		Long: `Resolve one workstream against the tracker and render the resulting
tickets as a markdown digest or a CSV table.

The digest includes ticket details and changelog entries from the last
--days days.

Example:
  pioj export ./team.cue -w "Active Bugs" --days 14 -o digest.md
  pioj export ./team.cue --type csv -o tickets.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Workstream, "workstream", "w", "", "workstream name (optional when the page has exactly one)")
	cmd.Flags().IntVar(&opts.Days, "days", 7, "changelog window in days")
	cmd.Flags().StringVar(&opts.Type, "type", "markdown", "document type (markdown|csv)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output file (default stdout)")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Type != "markdown" && opts.Type != "csv" {
		err := NewExitError(ExitCommandError, fmt.Sprintf("unknown document type %q", opts.Type))
		_ = formatter.Error(ErrCodeExport, err.Message, nil)
		return err
	}

	page, err := loadDefinitions(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return err
	}
	ws, err := selectWorkstream(page, opts.Workstream)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	client, err := newJiraClient(cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	ctx := cmd.Context()
	resolver := query.New(jira.NewGateway(client))
	outcome, err := resolver.Resolve(ctx, ws.Stack)
	if err != nil {
		_ = formatter.Error(ErrCodeResolve, err.Error(), nil)
		return WrapExitError(ExitFailure, "resolution failed", err)
	}

	formatter.VerboseLog("resolved %q: %d ticket(s)", ws.Name, len(outcome.Aggregate.Issues))

	exporter := export.New(detailsFetcher{client}, client.BaseURL())
	req := export.Request{
		Name:    ws.Name,
		Days:    opts.Days,
		Keys:    outcome.Aggregate.Keys(),
		Queries: ws.Stack,
	}

	var doc []byte
	switch opts.Type {
	case "markdown":
		md, err := exporter.Markdown(ctx, req)
		if err != nil {
			_ = formatter.Error(ErrCodeExport, err.Error(), nil)
			return WrapExitError(ExitFailure, "export failed", err)
		}
		doc = []byte(md)
	case "csv":
		doc, err = exporter.CSV(ctx, req)
		if err != nil {
			_ = formatter.Error(ErrCodeExport, err.Error(), nil)
			return WrapExitError(ExitFailure, "export failed", err)
		}
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(doc)
		return err
	}
	if err := os.WriteFile(opts.Output, doc, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	formatter.VerboseLog("wrote %s (%d bytes)", opts.Output, len(doc))
	return nil
}

// detailsFetcher adapts the tracker client to the exporter's fetch
// interface. One-shot commands skip the server's issue cache.
type detailsFetcher struct {
	client *jira.Client
}

func (f detailsFetcher) Details(ctx context.Context, key string) (jira.IssueDetails, error) {
	return f.client.GetIssueDetails(ctx, key)
}
