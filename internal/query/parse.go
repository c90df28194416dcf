package query

import (
	"regexp"
	"strings"
)

// Expression grammar pieces shared by the resolver.
//
// References are written {name} where name is a binding: either a
// positional queryN alias or a user-supplied step name. In a JQL step
// every {token} is a binding reference and an unknown one is an error.
// Placeholder tokens ({issue}, {epic}, ...) use the same brace syntax
// but are only meaningful inside a FOREACH template, where the
// substitution engine leaves anything it does not recognize verbatim.

var (
	refPattern = regexp.MustCompile(`\{([^{}]+)\}`)

	// FOREACH {binding}: template
	forEachPattern = regexp.MustCompile(`(?is)^\s*FOREACH\s+\{([^{}]+)\}\s*:\s*(.*)$`)

	// {a} OP {b}. The operator is matched case-insensitively and
	// operand order is preserved verbatim (SUBTRACT is not
	// commutative).
	setOpPattern = regexp.MustCompile(`(?i)^\s*\{([^{}]+)\}\s+(UNION|INTERSECT|SUBTRACT|XOR)\s+\{([^{}]+)\}\s*$`)
)

// references returns the binding names referenced by a JQL expression,
// in order of appearance, without deduplication.
func references(expr string) []string {
	var refs []string
	for _, m := range refPattern.FindAllStringSubmatch(expr, -1) {
		refs = append(refs, strings.TrimSpace(m[1]))
	}
	return refs
}

// forEachExpr is a parsed FOREACH step: iterate the referenced
// binding's issues, expanding the template once per issue.
type forEachExpr struct {
	Ref      string
	Template string
}

// parseForEach parses "FOREACH {ref}: template". An empty template is
// rejected since it would issue blank searches.
func parseForEach(step int, expr string) (forEachExpr, *ParseError) {
	m := forEachPattern.FindStringSubmatch(expr)
	if m == nil {
		return forEachExpr{}, &ParseError{
			Step:    step,
			Message: "malformed FOREACH expression, want FOREACH {binding}: <template>",
		}
	}
	ref := strings.TrimSpace(m[1])
	template := strings.TrimSpace(m[2])
	if template == "" {
		return forEachExpr{}, &ParseError{
			Step:    step,
			Ref:     ref,
			Message: "FOREACH template is empty",
		}
	}
	return forEachExpr{Ref: ref, Template: template}, nil
}

// setOpExpr is a parsed SET_OPERATION step.
type setOpExpr struct {
	Op   Op
	RefA string
	RefB string
}

// parseSetOp parses "{a} OP {b}".
func parseSetOp(step int, expr string) (setOpExpr, *ParseError) {
	m := setOpPattern.FindStringSubmatch(expr)
	if m == nil {
		return setOpExpr{}, &ParseError{
			Step:    step,
			Message: "malformed set operation, want {bindingA} UNION|INTERSECT|SUBTRACT|XOR {bindingB}",
		}
	}
	op, err := ParseOp(strings.ToUpper(m[2]))
	if err != nil {
		// Unreachable while the pattern and ParseOp agree; kept so a
		// new operator added to one but not the other fails loudly.
		return setOpExpr{}, &ParseError{Step: step, Message: err.Error()}
	}
	return setOpExpr{
		Op:   op,
		RefA: strings.TrimSpace(m[1]),
		RefB: strings.TrimSpace(m[3]),
	}, nil
}
