// Package query implements the workstream query-stack resolver.
//
// A workstream is an ordered stack of query definitions against the
// tracker's search API. Later steps may reference earlier steps'
// results by name, iterate over them with FOREACH, or combine them
// with set algebra. Resolution turns the stack into a deduplicated,
// truncation-aware result set under the tracker's fixed per-query cap.
//
// ARCHITECTURE:
//
// Sequential-by-construction evaluation:
// Steps execute strictly in stack order, each binding its result into
// a write-once environment under a positional alias (query1..queryN)
// and an optional user name. References are forward-only, so the stack
// is a DAG without any graph building or topological sort - the "no
// step may reference a later step or itself" invariant is enforced as
// an explicit lookup failure, never assumed.
//
// Step dispatch is an exhaustive switch over a closed Kind enum:
//
//	jql      substitute {binding} references, one bounded search
//	foreach  one bounded search per issue of a prior binding,
//	         results unioned in first-seen order
//	setop    UNION | INTERSECT | SUBTRACT | XOR over two bindings,
//	         no search at all
//
// ERROR MODEL:
//
// ParseError (bad expression, unresolved/duplicate binding) aborts the
// whole resolution with zero results. A gateway failure stays local to
// its step so sibling steps remain inspectable. Truncation is a
// warning, not an error. Cancellation yields the partial outcome.
//
// The package is deliberately free of tracker specifics beyond JQL
// text splicing: the Searcher interface is the only boundary, and the
// quoting/escaping policy lives behind Substitute so it is testable
// independent of resolver control flow.
package query
