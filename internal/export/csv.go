package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
)

// csvHeader is the fixed column layout of the CSV export.
var csvHeader = []string{
	"key", "summary", "status", "assignee", "priority",
	"estimation", "sprint", "recent_changes", "recent_comments", "url",
}

// CSV renders one row per ticket with counts of recent activity in
// the export window. Tickets whose fetch fails are skipped; the error
// from the last failed fetch is returned alongside the rendered rows
// only if every fetch failed.
func (e *Exporter) CSV(ctx context.Context, req Request) ([]byte, error) {
	if len(req.Keys) == 0 {
		return nil, fmt.Errorf("csv export: no tickets provided")
	}

	cutoff := e.cutoff(req.Days)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv export: %w", err)
	}

	written := 0
	var lastErr error
	for _, key := range req.Keys {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("csv export: %w", err)
		}

		details, err := e.fetch.Details(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}

		recent := details.FilterByAge(cutoff)
		row := []string{
			details.Key,
			details.Summary,
			details.Status,
			details.Assignee,
			details.Priority,
			details.Estimation,
			details.Sprint,
			strconv.Itoa(len(recent.Changes)),
			strconv.Itoa(len(recent.Comments)),
			fmt.Sprintf("%s/browse/%s", e.browseURL, details.Key),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("csv export: %w", err)
		}
		written++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv export: %w", err)
	}
	if written == 0 && lastErr != nil {
		return nil, fmt.Errorf("csv export: all fetches failed: %w", lastErr)
	}
	return buf.Bytes(), nil
}
