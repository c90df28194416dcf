package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pioj/pioj/internal/compiler"
)

// ValidationIssue is one problem found in a definition file.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results for a definition file.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Page        string            `json:"page,omitempty"`
	Workstreams []string          `json:"workstreams,omitempty"`
	Errors      []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions.cue>",
		Short: "Validate a workstream definition file",
		Long: `Validate a CUE workstream definition file without touching the tracker.

Checks the page structure, every workstream's query stack, and all
binding references. Reports the first problem with its source position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("validating %s", path)

	page, err := compiler.LoadFile(path)
	if err != nil {
		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			return outputValidationFailure(formatter, cerr)
		}
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}

	result := ValidationResult{Valid: true, Page: page.Title}
	for _, ws := range page.Workstreams {
		result.Workstreams = append(result.Workstreams, ws.Name)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid: page %q, %d workstream(s)\n",
		path, page.Title, len(page.Workstreams))
	for _, name := range result.Workstreams {
		fmt.Fprintf(formatter.Writer, "  - %s\n", name)
	}
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, cerr *compiler.CompileError) error {
	issue := ValidationIssue{Field: cerr.Field, Message: cerr.Message}
	if cerr.Pos.IsValid() {
		issue.Line = cerr.Pos.Line()
	}

	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Errors: []ValidationIssue{issue}}
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: cerr.Field, Message: cerr.Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	if issue.Line > 0 {
		fmt.Fprintf(formatter.Writer, "  line %d\n", issue.Line)
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Field, issue.Message)
	return NewExitError(ExitFailure, "validation failed")
}
