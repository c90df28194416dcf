package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pioj/pioj/internal/query"
)

// Snapshot is the persisted outcome of a workstream's last resolution.
//
// StackHash ties the snapshot to the exact stack it was resolved from.
// When the stored stack is later edited, the hash no longer matches and
// readers see Stale=true until the next refresh.
type Snapshot struct {
	WorkstreamID string        `json:"workstream_id"`
	StackHash    string        `json:"stack_hash"`
	ResolvedAt   time.Time     `json:"resolved_at"`
	Stale        bool          `json:"stale"`
	Outcome      query.Outcome `json:"outcome"`
}

// SaveSnapshot upserts the resolution outcome for a workstream.
// One snapshot per workstream; a refresh replaces the previous one.
func (s *Store) SaveSnapshot(ctx context.Context, workstreamID, stackHash string, outcome query.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("save snapshot: marshal outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workstream_results
		(workstream_id, stack_hash, resolved_at, cancelled, truncated, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workstream_id) DO UPDATE SET
			stack_hash = excluded.stack_hash,
			resolved_at = excluded.resolved_at,
			cancelled = excluded.cancelled,
			truncated = excluded.truncated,
			payload = excluded.payload
	`,
		workstreamID,
		stackHash,
		s.timestamp(),
		boolInt(outcome.Cancelled),
		boolInt(outcome.Aggregate.Truncated),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the last resolution outcome for a workstream.
// currentHash is the hash of the workstream's stored stack; a snapshot
// resolved from a different stack is returned with Stale=true rather
// than withheld.
func (s *Store) GetSnapshot(ctx context.Context, workstreamID, currentHash string) (Snapshot, error) {
	var (
		snap       Snapshot
		resolvedAt string
		payload    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT workstream_id, stack_hash, resolved_at, payload
		FROM workstream_results WHERE workstream_id = ?
	`, workstreamID).Scan(&snap.WorkstreamID, &snap.StackHash, &resolvedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot for workstream %s: %w", workstreamID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	if snap.ResolvedAt, err = parseTimestamp(resolvedAt); err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Outcome); err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: unmarshal outcome: %w", err)
	}
	snap.Stale = snap.StackHash != currentHash
	return snap, nil
}

// DeleteSnapshot removes the stored outcome for a workstream.
// Missing snapshots are not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, workstreamID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM workstream_results WHERE workstream_id = ?
	`, workstreamID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
