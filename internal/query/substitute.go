package query

import "strings"

// EmptyMatchFragment is a JQL clause that is syntactically valid and
// matches no issue. It stands in for references to empty bindings and
// for missing epic/parent placeholders, so the surrounding query still
// parses instead of erroring on a nonexistent key.
const EmptyMatchFragment = "issuekey = EMPTY"

// Substitute expands the FOREACH placeholders in template from one
// issue's fields:
//
//	{issue}    issue key, unquoted
//	{epic}     epic key, unquoted; EMPTY when the issue has none
//	{parent}   parent key, unquoted; EMPTY when the issue has none
//	{assignee} assignee display name, quoted
//	{reporter} reporter display name, quoted
//
// Key-valued placeholders insert raw keys; free-text values are
// wrapped in JQL string quotes. Unrecognized {tokens} pass through
// verbatim since they may be literal tracker syntax, not an error.
func Substitute(template string, issue IssueRef) string {
	return refPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.TrimSpace(token[1 : len(token)-1])
		switch strings.ToLower(name) {
		case "issue":
			return issue.Key
		case "epic":
			return keyOrEmpty(issue.EpicKey)
		case "parent":
			return keyOrEmpty(issue.ParentKey)
		case "assignee":
			return quoteJQL(issue.Assignee)
		case "reporter":
			return quoteJQL(issue.Reporter)
		default:
			return token
		}
	})
}

// keyOrEmpty returns the key, or the JQL EMPTY literal when the issue
// lacks the relationship, so clauses like `"Epic Link" = {epic}`
// degrade to a match-nothing comparison instead of a parse failure.
func keyOrEmpty(key string) string {
	if key == "" {
		return "EMPTY"
	}
	return key
}

// quoteJQL wraps a free-text value in JQL double quotes, escaping
// embedded quotes and backslashes.
func quoteJQL(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// spliceBinding replaces one {ref} occurrence's text with a membership
// clause over the binding's keys: `issue in (K1,K2,...)`, or the
// never-matching fragment when the binding is empty.
func spliceBinding(keys []string) string {
	if len(keys) == 0 {
		return EmptyMatchFragment
	}
	return "issue in (" + strings.Join(keys, ",") + ")"
}
