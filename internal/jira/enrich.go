package jira

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// EnrichIssues fills the derived fields a bare search cannot: epic and
// parent names that parsed as raw keys (link custom fields carry only
// the key) and the last status transition for in-flight tickets
// (search responses have no changelog). Lookups are best effort; a
// failed fetch keeps the unenriched value.
func (c *Client) EnrichIssues(ctx context.Context, issues []Issue) {
	summaries := make(map[string]string)
	summaryOf := func(key string) string {
		if s, ok := summaries[key]; ok {
			return s
		}
		s := c.fetchSummary(ctx, key)
		summaries[key] = s
		return s
	}

	for i := range issues {
		if k := issues[i].EpicKey; k != "" && issues[i].EpicName == k {
			issues[i].EpicName = summaryOf(k)
		}
		if k := issues[i].ParentKey; k != "" && issues[i].ParentName == k {
			issues[i].ParentName = summaryOf(k)
		}
		if issues[i].StatusChangeDate == nil && inFlight(issues[i]) {
			issues[i].StatusChangeDate = c.fetchStatusChange(ctx, issues[i].Key)
		}
	}
}

// inFlight reports whether a ticket is actively being worked, the set
// whose age-in-status the board surfaces.
func inFlight(is Issue) bool {
	return is.StatusCategory == "indeterminate" ||
		strings.Contains(strings.ToLower(is.Status), "review")
}

func (c *Client) fetchSummary(ctx context.Context, key string) string {
	q := url.Values{}
	q.Set("fields", "summary")

	var w wireIssue
	if err := c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(key), q, &w); err != nil {
		slog.Debug("summary lookup failed", "issue", key, "error", err)
		return key
	}
	if s := fieldString(w.Fields, "summary"); s != "" {
		return s
	}
	return key
}

func (c *Client) fetchStatusChange(ctx context.Context, key string) *time.Time {
	q := url.Values{}
	q.Set("fields", "status")
	q.Set("expand", "changelog")

	var w wireIssue
	if err := c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(key), q, &w); err != nil {
		slog.Debug("changelog lookup failed", "issue", key, "error", err)
		return nil
	}
	return lastStatusChange(w.Changelog)
}
