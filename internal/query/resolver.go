package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SearchResult is a single bounded gateway response: matching issues
// and whether the search hit the result cap.
type SearchResult struct {
	Issues    []IssueRef
	Truncated bool
}

// Searcher executes one bounded text query against the tracker.
// Implemented by the Jira gateway (production) and scripted gateways
// (tests). An error means the call failed as a whole; Issues is never
// partially filled on error.
type Searcher interface {
	Search(ctx context.Context, jql string, maxResults int) (SearchResult, error)
}

// Resolver executes a workstream's query stack strictly in order,
// binding each step's result into an environment that later steps may
// reference, iterate with FOREACH, or combine with set algebra.
//
// Execution model:
//   - strictly sequential: step i+1 never starts before step i is
//     bound, since it may read the binding
//   - FOREACH iterations are sequential too, bounding outbound call
//     rate against the tracker
//   - the environment is owned by one Resolve call and discarded with
//     it; bindings are write-once
//
// Error model:
//   - ParseError (malformed expression, unresolvable reference,
//     duplicate binding) is fatal: Resolve returns the error and no
//     results
//   - a gateway failure is local to its step: the step's Result
//     carries the error with no issues, and resolution continues so
//     independent sibling steps stay inspectable
//   - cancellation is cooperative, checked between steps and between
//     FOREACH iterations, and yields the partial Outcome
type Resolver struct {
	gw         Searcher
	maxResults int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxResults overrides the per-search result cap. Used by tests;
// production keeps the tracker's fixed cap.
func WithMaxResults(n int) Option {
	return func(r *Resolver) {
		r.maxResults = n
	}
}

// New creates a Resolver over the given search gateway.
func New(gw Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		gw:         gw,
		maxResults: MaxResults,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// environment maps binding names (positional query1..N aliases and
// user-supplied names) to step results. Grows monotonically during one
// resolution; a binding is never rewritten.
type environment map[string]*Result

// bind writes a binding, rejecting rewrites.
func (env environment) bind(step int, name string, res *Result) *ParseError {
	if _, exists := env[name]; exists {
		return &ParseError{Step: step, Ref: name, Message: "duplicate binding"}
	}
	env[name] = res
	return nil
}

// lookup resolves a reference. A miss covers every illegal reference
// shape at once: unknown names, forward references, and
// self-references all share the property of not being bound yet.
func (env environment) lookup(step int, ref string) (*Result, *ParseError) {
	res, ok := env[ref]
	if !ok {
		return nil, &ParseError{Step: step, Ref: ref, Message: "unresolved reference"}
	}
	return res, nil
}

// Resolve executes the stack in order and returns per-step results
// plus the assembled workstream view. The returned error is non-nil
// only for a *ParseError; gateway failures are recorded per step and
// cancellation is reported via Outcome.Cancelled.
func (r *Resolver) Resolve(ctx context.Context, defs []Definition) (Outcome, error) {
	env := make(environment, len(defs)*2)
	steps := make([]Result, 0, len(defs))

	for i, def := range defs {
		if ctx.Err() != nil {
			slog.Info("resolution cancelled", "step", i+1, "completed", len(steps))
			return Outcome{Steps: steps, Aggregate: Assemble(steps), Cancelled: true}, nil
		}

		alias := fmt.Sprintf("query%d", i+1)
		name := alias
		if def.Name != "" {
			name = def.Name
		}

		start := time.Now()
		var (
			res       Result
			cancelled bool
			perr      *ParseError
		)
		switch def.Kind {
		case KindJQL:
			res, perr = r.resolveJQL(ctx, i, def.Expression, env)
		case KindForEach:
			res, cancelled, perr = r.resolveForEach(ctx, i, def.Expression, env)
		case KindSetOp:
			res, perr = r.resolveSetOp(i, def.Expression, env)
		default:
			panic(fmt.Sprintf("query: unhandled kind %d", int(def.Kind)))
		}
		if perr != nil {
			slog.Warn("stack resolution failed",
				"step", i+1,
				"kind", def.Kind.String(),
				"ref", perr.Ref,
				"reason", perr.Message,
			)
			return Outcome{}, perr
		}
		if cancelled {
			// The in-progress step is discarded: a partially
			// iterated FOREACH is not a valid binding.
			slog.Info("resolution cancelled mid-step", "step", i+1, "completed", len(steps))
			return Outcome{Steps: steps, Aggregate: Assemble(steps), Cancelled: true}, nil
		}

		res.SourceName = name
		res.Elapsed = time.Since(start)

		if err := env.bind(i, alias, &res); err != nil {
			return Outcome{}, err
		}
		if name != alias {
			if err := env.bind(i, name, &res); err != nil {
				return Outcome{}, err
			}
		}
		steps = append(steps, res)

		slog.Debug("step resolved",
			"step", i+1,
			"binding", name,
			"kind", def.Kind.String(),
			"issues", len(res.Issues),
			"truncated", res.Truncated,
			"error", res.Error,
			"elapsed", res.Elapsed,
		)
	}

	return Outcome{Steps: steps, Aggregate: Assemble(steps)}, nil
}

// resolveJQL splices referenced bindings into the query text and runs
// one bounded search.
func (r *Resolver) resolveJQL(ctx context.Context, step int, expr string, env environment) (Result, *ParseError) {
	jql := expr
	for _, ref := range references(expr) {
		bound, perr := env.lookup(step, ref)
		if perr != nil {
			return Result{}, perr
		}
		jql = replaceRef(jql, ref, spliceBinding(bound.Keys()))
	}

	sr, err := r.gw.Search(ctx, jql, r.maxResults)
	if err != nil {
		return gatewayFailure(err), nil
	}
	return Result{Issues: dedupeRefs(sr.Issues), Truncated: sr.Truncated}, nil
}

// resolveForEach runs one search per issue in the referenced binding,
// unioning the per-iteration results in first-seen order. Truncation
// is the OR of every iteration's flag. An empty binding yields an
// empty, non-truncated result with zero gateway calls.
func (r *Resolver) resolveForEach(ctx context.Context, step int, expr string, env environment) (res Result, cancelled bool, perr *ParseError) {
	fe, perr := parseForEach(step, expr)
	if perr != nil {
		return Result{}, false, perr
	}
	bound, perr := env.lookup(step, fe.Ref)
	if perr != nil {
		return Result{}, false, perr
	}

	var (
		issues    []IssueRef
		seen      = make(map[string]bool)
		truncated bool
	)
	for _, issue := range bound.Issues {
		if ctx.Err() != nil {
			return Result{}, true, nil
		}

		jql := Substitute(fe.Template, issue)
		sr, err := r.gw.Search(ctx, jql, r.maxResults)
		if err != nil {
			// One failed iteration fails the whole step: a
			// partial union would silently misrepresent the
			// iteration's semantics.
			return gatewayFailure(err), false, nil
		}
		truncated = truncated || sr.Truncated
		for _, found := range sr.Issues {
			if !seen[found.Key] {
				seen[found.Key] = true
				issues = append(issues, found)
			}
		}
	}

	return Result{Issues: issues, Truncated: truncated}, false, nil
}

// resolveSetOp combines two bindings with set algebra. No gateway call
// is made. Truncation is the OR of the operand flags: the computed set
// is exact over what was fetched, but a truncated operand means it is
// only a bound on the true answer and callers must still be warned.
func (r *Resolver) resolveSetOp(step int, expr string, env environment) (Result, *ParseError) {
	so, perr := parseSetOp(step, expr)
	if perr != nil {
		return Result{}, perr
	}
	a, perr := env.lookup(step, so.RefA)
	if perr != nil {
		return Result{}, perr
	}
	b, perr := env.lookup(step, so.RefB)
	if perr != nil {
		return Result{}, perr
	}

	keys := Apply(so.Op, a.Keys(), b.Keys())

	// Materialize refs for the surviving keys so the set result can
	// itself feed a later FOREACH. First-seen wins: a's ref, then b's.
	byKey := make(map[string]IssueRef, len(a.Issues)+len(b.Issues))
	for _, is := range b.Issues {
		byKey[is.Key] = is
	}
	for _, is := range a.Issues {
		byKey[is.Key] = is
	}
	issues := make([]IssueRef, len(keys))
	for i, k := range keys {
		issues[i] = byKey[k]
	}

	return Result{Issues: issues, Truncated: a.Truncated || b.Truncated}, nil
}

// gatewayFailure is the per-step record of a failed tracker call:
// empty issues, not truncated, error attached.
func gatewayFailure(err error) Result {
	return Result{Error: err.Error()}
}

// replaceRef replaces every {ref} occurrence (whitespace-tolerant
// inside the braces) with the replacement text.
func replaceRef(expr, ref, replacement string) string {
	return refPattern.ReplaceAllStringFunc(expr, func(token string) string {
		if trimBraces(token) == ref {
			return replacement
		}
		return token
	})
}

func trimBraces(token string) string {
	return strings.TrimSpace(token[1 : len(token)-1])
}

// dedupeRefs drops duplicate keys, keeping first-seen order.
func dedupeRefs(issues []IssueRef) []IssueRef {
	seen := make(map[string]bool, len(issues))
	out := make([]IssueRef, 0, len(issues))
	for _, is := range issues {
		if !seen[is.Key] {
			seen[is.Key] = true
			out = append(out, is)
		}
	}
	return out
}
