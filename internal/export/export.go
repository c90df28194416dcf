// Package export renders a workstream's resolved tickets into
// shareable documents: a markdown digest with per-ticket changelogs,
// and a CSV table for spreadsheets.
package export

import (
	"context"
	"time"

	"github.com/pioj/pioj/internal/jira"
	"github.com/pioj/pioj/internal/query"
)

// DetailsFetcher supplies issue details per key. Implemented by the
// server's cache-through fetch and by canned fixtures in tests.
type DetailsFetcher interface {
	Details(ctx context.Context, key string) (jira.IssueDetails, error)
}

// Request describes one export: which tickets, how far back the
// changelog window reaches, and the stack that produced them (rendered
// into the document header when present).
type Request struct {
	Name    string
	Days    int
	Keys    []string
	Queries []query.Definition
}

// Exporter renders export documents. BrowseURL is the tracker base
// URL used for ticket links; now is injectable for deterministic
// output in tests.
type Exporter struct {
	fetch     DetailsFetcher
	browseURL string
	now       func() time.Time
}

// New creates an Exporter. browseURL is the Jira base URL without a
// trailing slash.
func New(fetch DetailsFetcher, browseURL string) *Exporter {
	return &Exporter{fetch: fetch, browseURL: browseURL, now: time.Now}
}

// WithClock overrides the export timestamp source.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

func (e *Exporter) cutoff(days int) time.Time {
	return e.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}
