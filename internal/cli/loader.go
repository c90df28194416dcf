package cli

import (
	"fmt"

	"github.com/pioj/pioj/internal/compiler"
	"github.com/pioj/pioj/internal/config"
	"github.com/pioj/pioj/internal/jira"
)

// loadDefinitions compiles a definition file for commands that go on
// to use it. Any failure is a command error; the validate command has
// its own, finer-grained reporting.
func loadDefinitions(path string) (*compiler.PageDef, error) {
	page, err := compiler.LoadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load definitions", err)
	}
	return page, nil
}

// selectWorkstream picks the workstream to operate on. An empty name
// is accepted when the page declares exactly one.
func selectWorkstream(page *compiler.PageDef, name string) (compiler.WorkstreamDef, error) {
	if name == "" {
		if len(page.Workstreams) == 1 {
			return page.Workstreams[0], nil
		}
		return compiler.WorkstreamDef{}, NewExitError(ExitCommandError,
			fmt.Sprintf("page %q has %d workstreams, pick one with --workstream",
				page.Title, len(page.Workstreams)))
	}
	for _, ws := range page.Workstreams {
		if ws.Name == name {
			return ws, nil
		}
	}
	return compiler.WorkstreamDef{}, NewExitError(ExitCommandError,
		fmt.Sprintf("workstream %q not found in page %q", name, page.Title))
}

// newJiraClient builds a tracker client from the environment,
// requiring credentials to be present.
func newJiraClient(cfg config.Config) (*jira.Client, error) {
	if err := cfg.RequireJira(); err != nil {
		return nil, WrapExitError(ExitCommandError, "JIRA not configured", err)
	}
	client, err := jira.NewClient(jira.Config{
		BaseURL:         cfg.JiraHost,
		Email:           cfg.JiraEmail,
		Token:           cfg.JiraToken,
		EstimationField: cfg.JiraEstimationField,
		SprintField:     cfg.JiraSprintField,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid JIRA configuration", err)
	}
	return client, nil
}
