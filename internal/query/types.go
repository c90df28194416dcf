package query

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxResults is the fixed per-query result cap imposed by the tracker's
// search API. Every gateway call is bounded by this value; a step whose
// underlying search hits the cap is marked truncated.
const MaxResults = 100

// Kind identifies how a step's expression is interpreted.
//
// This is a closed enum: the resolver dispatches with an exhaustive
// switch, so adding a new kind is a compile-time-checked decision
// point, never a string comparison.
type Kind int

const (
	// KindJQL treats the expression as a tracker query string with
	// optional embedded {binding} references.
	KindJQL Kind = iota

	// KindForEach iterates a prior binding's issues, expanding a
	// per-issue template into one gateway call per issue.
	KindForEach

	// KindSetOp combines two prior bindings with set algebra. No
	// gateway call is made.
	KindSetOp
)

// String returns the canonical name used in definition files and APIs.
func (k Kind) String() string {
	switch k {
	case KindJQL:
		return "jql"
	case KindForEach:
		return "foreach"
	case KindSetOp:
		return "setop"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a definition-file kind label to its Kind.
// Accepted labels: "jql", "foreach", "setop" (also "set_operation").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "jql", "JQL":
		return KindJQL, nil
	case "foreach", "FOREACH":
		return KindForEach, nil
	case "setop", "set_operation", "SET_OPERATION":
		return KindSetOp, nil
	default:
		return 0, fmt.Errorf("unknown query kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so Kind round-trips
// through JSON and YAML as its canonical label.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// MarshalYAML mirrors MarshalText for yaml.v3, which ignores the text
// interfaces.
func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var label string
	if err := node.Decode(&label); err != nil {
		return err
	}
	return k.UnmarshalText([]byte(label))
}

// Definition is one step in a workstream's query stack.
// Immutable once submitted to the resolver.
type Definition struct {
	// Name optionally binds the step's result under a user-chosen
	// name in addition to its positional queryN alias.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Kind selects the expression dialect.
	Kind Kind `json:"kind" yaml:"kind"`

	// Expression syntax depends on Kind:
	//   jql:     tracker query text, may embed {binding} references
	//   foreach: FOREACH {binding}: <template>
	//   setop:   {bindingA} <UNION|INTERSECT|SUBTRACT|XOR> {bindingB}
	Expression string `json:"expression" yaml:"expression"`
}

// IssueRef is the minimal issue projection the resolver needs: the key
// for identity and set algebra, the remaining fields for FOREACH
// placeholder substitution. The gateway supplies these from its richer
// issue objects.
type IssueRef struct {
	Key       string `json:"key" yaml:"key"`
	EpicKey   string `json:"epicKey,omitempty" yaml:"epicKey,omitempty"`
	ParentKey string `json:"parentKey,omitempty" yaml:"parentKey,omitempty"`
	Assignee  string `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Reporter  string `json:"reporter,omitempty" yaml:"reporter,omitempty"`
}

// Result is the outcome of one successfully-dispatched step.
// Produced exactly once per step and immutable after creation.
type Result struct {
	// SourceName is the binding the step is known by: the user name
	// when given, otherwise the positional queryN alias.
	SourceName string `json:"sourceName"`

	// Issues holds the step's matches, unique by key in first-seen
	// order. Kept as full refs so later FOREACH steps can iterate.
	Issues []IssueRef `json:"issues"`

	// Truncated reports that the result may be an incomplete view:
	// the underlying search (or any FOREACH iteration, or either
	// set-operation operand) hit the result cap.
	Truncated bool `json:"truncated"`

	// Elapsed is wall time spent producing the step.
	Elapsed time.Duration `json:"elapsedNs"`

	// Error is set when the gateway call for this step failed. The
	// step then carries no issues and resolution continued past it.
	Error string `json:"error,omitempty"`
}

// Keys returns the issue keys in result order.
func (r Result) Keys() []string {
	keys := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		keys[i] = is.Key
	}
	return keys
}

// Aggregate is the workstream-level view assembled from all steps:
// the deduplicated union of every step's issues in first-seen order,
// with the OR of every step's truncation flag.
type Aggregate struct {
	Issues    []IssueRef `json:"issues"`
	Truncated bool       `json:"truncated"`
}

// Keys returns the aggregate issue keys in first-seen order.
func (a Aggregate) Keys() []string {
	keys := make([]string, len(a.Issues))
	for i, is := range a.Issues {
		keys[i] = is.Key
	}
	return keys
}

// Outcome is what Resolve hands back to the caller: per-step results
// for inspection, the assembled workstream view, and whether the run
// was cut short by cancellation.
type Outcome struct {
	Steps     []Result  `json:"steps"`
	Aggregate Aggregate `json:"aggregate"`
	Cancelled bool      `json:"cancelled,omitempty"`
}

// ParseError reports a malformed expression or an unresolvable
// reference (unknown name, forward reference, self-reference, or a
// duplicate binding). It is fatal to the whole stack resolution: no
// step at or after Step is attempted.
type ParseError struct {
	// Step is the zero-based index of the offending definition.
	Step int

	// Ref is the offending reference or binding name, when one is
	// identifiable.
	Ref string

	// Message describes the problem.
	Message string
}

func (e *ParseError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("step %d: %s: %q", e.Step+1, e.Message, e.Ref)
	}
	return fmt.Sprintf("step %d: %s", e.Step+1, e.Message)
}
