package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pioj/pioj/internal/jira"
)

// DefaultCacheTTL is how long a cached issue-detail payload stays
// fresh before the next request goes back to Jira.
const DefaultCacheTTL = time.Hour

// GetCachedDetails returns cached issue details if an entry exists and
// is younger than ttl. A missing or expired entry returns ok=false,
// never an error.
func (s *Store) GetCachedDetails(ctx context.Context, issueKey string, ttl time.Duration) (jira.IssueDetails, bool, error) {
	var fetchedAt, payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT fetched_at, payload FROM issue_cache WHERE issue_key = ?
	`, issueKey).Scan(&fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return jira.IssueDetails{}, false, nil
	}
	if err != nil {
		return jira.IssueDetails{}, false, fmt.Errorf("get cached details: %w", err)
	}

	at, err := parseTimestamp(fetchedAt)
	if err != nil {
		return jira.IssueDetails{}, false, fmt.Errorf("get cached details: %w", err)
	}
	if s.now().UTC().Sub(at) >= ttl {
		return jira.IssueDetails{}, false, nil
	}

	var details jira.IssueDetails
	if err := json.Unmarshal([]byte(payload), &details); err != nil {
		return jira.IssueDetails{}, false, fmt.Errorf("get cached details: unmarshal: %w", err)
	}
	return details, true, nil
}

// PutCachedDetails upserts the cache entry for an issue, resetting its
// age.
func (s *Store) PutCachedDetails(ctx context.Context, details jira.IssueDetails) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("put cached details: marshal: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO issue_cache (issue_key, fetched_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(issue_key) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			payload = excluded.payload
	`, details.Key, s.timestamp(), string(payload))
	if err != nil {
		return fmt.Errorf("put cached details: %w", err)
	}
	return nil
}

// PruneCache deletes cache entries older than ttl and returns how many
// were removed.
func (s *Store) PruneCache(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-ttl).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM issue_cache WHERE fetched_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune cache: rows affected: %w", err)
	}
	return n, nil
}
