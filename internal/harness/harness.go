// Package harness runs resolver conformance scenarios described in
// YAML: a query stack, a scripted gateway, and a golden outcome.
//
// Scenarios keep resolver behavior pinned down in a reviewable form:
// the YAML states what the tracker would answer, the golden file
// states exactly what the resolver must produce, including per-step
// errors and truncation flags.
package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pioj/pioj/internal/query"
)

// Scenario is one conformance case.
type Scenario struct {
	// Name uniquely identifies this scenario; the golden file is
	// testdata/golden/{Name}.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Stack is the query stack under test.
	Stack []query.Definition `yaml:"stack"`

	// Gateway scripts the tracker: each entry answers one exact JQL
	// string. A search for an unscripted JQL fails the scenario.
	Gateway []GatewayEntry `yaml:"gateway"`

	// ExpectError, when set, requires resolution to fail with an
	// error containing this substring.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// GatewayEntry scripts one search response.
type GatewayEntry struct {
	JQL       string           `yaml:"jql"`
	Issues    []query.IssueRef `yaml:"issues,omitempty"`
	Truncated bool             `yaml:"truncated,omitempty"`
	Error     string           `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Stack) == 0 {
		return fmt.Errorf("stack is required and must be non-empty")
	}
	for i, entry := range s.Gateway {
		if entry.JQL == "" {
			return fmt.Errorf("gateway[%d]: jql is required", i)
		}
		if entry.Error != "" && len(entry.Issues) > 0 {
			return fmt.Errorf("gateway[%d]: error and issues are mutually exclusive", i)
		}
	}
	return nil
}

// scriptedGateway answers searches from the scenario script and logs
// every call in order.
type scriptedGateway struct {
	entries map[string]GatewayEntry
	calls   []string
}

func newScriptedGateway(entries []GatewayEntry) *scriptedGateway {
	m := make(map[string]GatewayEntry, len(entries))
	for _, e := range entries {
		m[e.JQL] = e
	}
	return &scriptedGateway{entries: m}
}

func (g *scriptedGateway) Search(_ context.Context, jql string, _ int) (query.SearchResult, error) {
	g.calls = append(g.calls, jql)

	entry, ok := g.entries[jql]
	if !ok {
		return query.SearchResult{}, fmt.Errorf("unscripted search: %q", jql)
	}
	if entry.Error != "" {
		return query.SearchResult{}, fmt.Errorf("%s", entry.Error)
	}
	return query.SearchResult{Issues: entry.Issues, Truncated: entry.Truncated}, nil
}

// Result is what running a scenario produced: the gateway call log in
// order, the outcome, and the fatal error text if resolution failed.
type Result struct {
	Scenario string        `json:"scenario"`
	Calls    []string      `json:"calls"`
	Outcome  query.Outcome `json:"outcome"`
	Err      string        `json:"error,omitempty"`
}

// Run executes a scenario. Elapsed times are zeroed so results are
// deterministic and comparable against golden files.
func Run(scenario *Scenario) (*Result, error) {
	gw := newScriptedGateway(scenario.Gateway)
	resolver := query.New(gw)

	outcome, err := resolver.Resolve(context.Background(), scenario.Stack)

	result := &Result{
		Scenario: scenario.Name,
		Calls:    gw.calls,
		Outcome:  outcome,
	}
	for i := range result.Outcome.Steps {
		result.Outcome.Steps[i].Elapsed = 0
	}

	if err != nil {
		result.Err = err.Error()
		if scenario.ExpectError == "" {
			return result, fmt.Errorf("scenario %s: unexpected resolution error: %w", scenario.Name, err)
		}
		if !strings.Contains(result.Err, scenario.ExpectError) {
			return result, fmt.Errorf("scenario %s: error %q does not contain %q",
				scenario.Name, result.Err, scenario.ExpectError)
		}
		return result, nil
	}
	if scenario.ExpectError != "" {
		return result, fmt.Errorf("scenario %s: expected error containing %q, resolution succeeded",
			scenario.Name, scenario.ExpectError)
	}
	return result, nil
}
