package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pioj/pioj/internal/config"
	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/query"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Workstream string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <definitions.cue>",
		Short: "Resolve a workstream's query stack against JIRA",
		Long: `Resolve one workstream's query stack against the live tracker and
print the per-step results and the aggregate issue set.

Tracker credentials come from JIRA_HOST, JIRA_TOKEN and JIRA_EMAIL.

Example:
  pioj resolve ./team.cue --workstream "Active Bugs"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Workstream, "workstream", "w", "", "workstream name (optional when the page has exactly one)")

	return cmd
}

func runResolve(opts *ResolveOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

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

	formatter.VerboseLog("resolving %q (%d steps) against %s", ws.Name, len(ws.Stack), client.BaseURL())

	resolver := query.New(jira.NewGateway(client))
	outcome, err := resolver.Resolve(cmd.Context(), ws.Stack)
	if err != nil {
		_ = formatter.Error(ErrCodeResolve, err.Error(), nil)
		return WrapExitError(ExitFailure, "resolution failed", err)
	}

	return outputOutcome(formatter, ws.Name, outcome)
}

func outputOutcome(formatter *OutputFormatter, name string, outcome query.Outcome) error {
	if formatter.Format == "json" {
		return formatter.Success(struct {
			Workstream string        `json:"workstream"`
			Outcome    query.Outcome `json:"outcome"`
		}{Workstream: name, Outcome: outcome})
	}

	fmt.Fprintf(formatter.Writer, "workstream %q\n", name)
	for i, step := range outcome.Steps {
		line := fmt.Sprintf("  %d. %s: %d issue(s)", i+1, step.SourceName, len(step.Issues))
		if step.Truncated {
			line += " [truncated]"
		}
		if step.Error != "" {
			line += " [error: " + step.Error + "]"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	if outcome.Cancelled {
		fmt.Fprintln(formatter.Writer, "  (cancelled before completion)")
	}

	agg := fmt.Sprintf("aggregate: %d issue(s)", len(outcome.Aggregate.Issues))
	if outcome.Aggregate.Truncated {
		agg += " [truncated]"
	}
	fmt.Fprintln(formatter.Writer, agg)
	if keys := outcome.Aggregate.Keys(); len(keys) > 0 {
		fmt.Fprintf(formatter.Writer, "  %s\n", strings.Join(keys, " "))
	}
	return nil
}
