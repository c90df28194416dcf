package export

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/query"
)

// fixtureFetcher serves canned details and fails on demand.
type fixtureFetcher struct {
	details map[string]jira.IssueDetails
}

func (f *fixtureFetcher) Details(_ context.Context, key string) (jira.IssueDetails, error) {
	d, ok := f.details[key]
	if !ok {
		return jira.IssueDetails{}, fmt.Errorf("issue %s unavailable", key)
	}
	return d, nil
}

func testExporter() *Exporter {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	fetch := &fixtureFetcher{details: map[string]jira.IssueDetails{
		"OPS-1": {
			Key:         "OPS-1",
			Summary:     "Fix the widget",
			Status:      "In Progress",
			Assignee:    "Dana Reyes",
			Priority:    "High",
			Estimation:  "5",
			Sprint:      "Sprint 12",
			Description: "The widget renders upside down.",
			Changes: []jira.ChangeEntry{
				{
					Date:   time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
					Author: "Dana Reyes",
					Field:  "status",
					From:   "To Do",
					To:     "In Progress",
				},
				{
					Date:   time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
					Author: "Dana Reyes",
					Field:  "assignee",
					From:   "None",
					To:     "Dana Reyes",
				},
			},
			Comments: []jira.CommentEntry{
				{
					Date:   time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC),
					Author: "Sam Ortiz",
					Body:   "Flipping the transform fixes it.",
				},
			},
		},
		"OPS-2": {
			Key:      "OPS-2",
			Summary:  "Update docs",
			Status:   "To Do",
			Assignee: "Unassigned",
			Priority: "None",
			Changes:  []jira.ChangeEntry{},
			Comments: []jira.CommentEntry{},
		},
	}}

	return New(fetch, "https://example.atlassian.net").
		WithClock(func() time.Time { return now })
}

func exportRequest() Request {
	return Request{
		Name: "Sprint focus",
		Days: 7,
		Keys: []string{"OPS-1", "OPS-2", "OPS-3"},
		Queries: []query.Definition{
			{Name: "mine", Kind: query.KindJQL, Expression: `assignee = currentUser()`},
			{Kind: query.KindForEach, Expression: `FOREACH {mine}: parent = {issue}`},
		},
	}
}

func TestMarkdownExport(t *testing.T) {
	e := testExporter()

	md, err := e.Markdown(context.Background(), exportRequest())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "markdown_basic", []byte(md))
}

func TestCSVExport(t *testing.T) {
	e := testExporter()

	out, err := e.CSV(context.Background(), exportRequest())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "csv_basic", out)
}

func TestMarkdownExport_NoTickets(t *testing.T) {
	_, err := testExporter().Markdown(context.Background(), Request{Days: 7})
	assert.Error(t, err)
}

func TestMarkdownExport_DefaultsName(t *testing.T) {
	e := testExporter()

	md, err := e.Markdown(context.Background(), Request{Days: 7, Keys: []string{"OPS-2"}})
	require.NoError(t, err)
	assert.Contains(t, md, "# Workstream\n")
}

func TestMarkdownExport_TruncatesDescription(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	long := ""
	for i := 0; i < 60; i++ {
		long += "0123456789"
	}
	fetch := &fixtureFetcher{details: map[string]jira.IssueDetails{
		"OPS-9": {Key: "OPS-9", Summary: "Long", Status: "To Do",
			Assignee: "Unassigned", Priority: "None", Description: long},
	}}
	e := New(fetch, "https://example.atlassian.net").
		WithClock(func() time.Time { return now })

	md, err := e.Markdown(context.Background(), Request{Days: 7, Keys: []string{"OPS-9"}})
	require.NoError(t, err)
	assert.Contains(t, md, long[:descriptionLimit]+"...")
	assert.NotContains(t, md, long)
}

func TestCSVExport_AllFetchesFailed(t *testing.T) {
	e := New(&fixtureFetcher{}, "https://example.atlassian.net")

	_, err := e.CSV(context.Background(), Request{Days: 7, Keys: []string{"GONE-1"}})
	assert.Error(t, err)
}

func TestMarkdownExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testExporter().Markdown(ctx, exportRequest())
	assert.Error(t, err)
}
