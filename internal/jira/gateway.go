package jira

import (
	"context"

	"github.com/pioj/pioj/internal/query"
)

// Gateway adapts the client to the resolver's Searcher boundary,
// projecting full issues down to the minimal refs the core needs.
type Gateway struct {
	client *Client
}

// NewGateway wraps a client for use by the query resolver.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// Search implements query.Searcher.
func (g *Gateway) Search(ctx context.Context, jql string, maxResults int) (query.SearchResult, error) {
	issues, truncated, err := g.client.SearchIssues(ctx, jql, maxResults)
	if err != nil {
		return query.SearchResult{}, err
	}
	refs := make([]query.IssueRef, len(issues))
	for i, is := range issues {
		refs[i] = ProjectRef(is)
	}
	return query.SearchResult{Issues: refs, Truncated: truncated}, nil
}

// ProjectRef reduces an issue to the resolver's projection. Display
// defaults ("Unassigned", "Unknown") are stripped back to empty so
// FOREACH substitution quotes real names only.
func ProjectRef(is Issue) query.IssueRef {
	ref := query.IssueRef{
		Key:       is.Key,
		EpicKey:   is.EpicKey,
		ParentKey: is.ParentKey,
	}
	if is.Assignee != "Unassigned" {
		ref.Assignee = is.Assignee
	}
	if is.Reporter != "Unknown" {
		ref.Reporter = is.Reporter
	}
	return ref
}
