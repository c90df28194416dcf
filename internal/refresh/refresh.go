// Package refresh re-resolves workstream query stacks and persists
// the outcomes as snapshots.
//
// Refresh-all is strictly sequential with a minimum start-to-start
// delay between workstreams, bounding the request rate against the
// tracker. Cancellation stops between workstreams (and, via the
// resolver, between steps) and keeps every snapshot saved so far.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pioj/pioj/internal/query"
	"github.com/pioj/pioj/internal/store"
)

// Runner drives resolutions and snapshot writes.
type Runner struct {
	store    *store.Store
	resolver *query.Resolver
	delay    time.Duration

	// sleep waits for the pacing delay or cancellation. Replaced in
	// tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Runner. delay is the minimum start-to-start spacing
// between workstream resolutions during RefreshAll.
func New(st *store.Store, resolver *query.Resolver, delay time.Duration) *Runner {
	return &Runner{
		store:    st,
		resolver: resolver,
		delay:    delay,
		sleep:    sleepCtx,
	}
}

// Item is the outcome of refreshing one workstream.
type Item struct {
	WorkstreamID string `json:"workstream_id"`
	Name         string `json:"name"`
	Issues       int    `json:"issues"`
	Truncated    bool   `json:"truncated"`
	Cancelled    bool   `json:"cancelled,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Report summarizes a RefreshAll run. Cancelled is set when the run
// stopped early; Items then covers only the workstreams that were
// attempted.
type Report struct {
	Items     []Item `json:"items"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// RefreshWorkstream resolves one workstream's stack and saves the
// snapshot keyed by the stack's hash. A ParseError is returned to the
// caller (the stored stack is unusable until edited) and no snapshot
// is written. A cancelled resolution saves its partial outcome.
func (r *Runner) RefreshWorkstream(ctx context.Context, ws store.Workstream) (store.Snapshot, error) {
	hash, err := query.StackHash(ws.Stack)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("refresh %s: %w", ws.ID, err)
	}

	outcome, err := r.resolver.Resolve(ctx, ws.Stack)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("refresh %s: %w", ws.ID, err)
	}

	if err := r.store.SaveSnapshot(ctx, ws.ID, hash, outcome); err != nil {
		return store.Snapshot{}, fmt.Errorf("refresh %s: %w", ws.ID, err)
	}

	slog.Info("workstream refreshed",
		"workstream", ws.ID,
		"name", ws.Name,
		"issues", len(outcome.Aggregate.Issues),
		"truncated", outcome.Aggregate.Truncated,
		"cancelled", outcome.Cancelled,
	)

	return store.Snapshot{
		WorkstreamID: ws.ID,
		StackHash:    hash,
		Outcome:      outcome,
	}, nil
}

// RefreshAll refreshes every stored workstream in page order. One
// workstream's failure is recorded and does not stop the rest.
func (r *Runner) RefreshAll(ctx context.Context) (Report, error) {
	streams, err := r.store.AllWorkstreams(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("refresh all: %w", err)
	}

	var report Report
	var lastStart time.Time
	for i, ws := range streams {
		if i > 0 {
			// Pacing is start-to-start: a slow resolution already
			// consumed part or all of the delay.
			if err := r.sleep(ctx, r.delay-time.Since(lastStart)); err != nil {
				report.Cancelled = true
				return report, nil
			}
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			return report, nil
		}
		lastStart = time.Now()

		item := Item{WorkstreamID: ws.ID, Name: ws.Name}
		snap, err := r.RefreshWorkstream(ctx, ws)
		if err != nil {
			item.Error = err.Error()
			slog.Warn("workstream refresh failed", "workstream", ws.ID, "error", err)
		} else {
			item.Issues = len(snap.Outcome.Aggregate.Issues)
			item.Truncated = snap.Outcome.Aggregate.Truncated
			item.Cancelled = snap.Outcome.Cancelled
		}
		report.Items = append(report.Items, item)

		if item.Cancelled {
			report.Cancelled = true
			return report, nil
		}
	}

	return report, nil
}

// sleepCtx waits d or until the context is cancelled, whichever comes
// first. Zero and negative delays return immediately.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
