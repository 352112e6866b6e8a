// ABOUTME: Append-only audit log of handled requests
// ABOUTME: Records user, classified kind, query text, and verdict

package store

import (
	"context"
	"fmt"
	"time"
)

// LogQuery appends one handled request to the audit trail.
func (s *SQLiteStore) LogQuery(ctx context.Context, entry *QueryLogEntry) error {
	query := `
		INSERT INTO query_log (id, user_id, kind, query, verdict, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Kind,
		entry.Query,
		entry.Verdict,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting query log entry: %w", err)
	}

	s.logger.Debug("logged query", "id", entry.ID, "user_id", entry.UserID, "verdict", entry.Verdict)
	return nil
}

// CountUserQueries returns the total number of logged requests for a user.
func (s *SQLiteStore) CountUserQueries(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM query_log WHERE user_id = ?`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting user queries: %w", err)
	}

	return count, nil
}

// GetQueryStats returns aggregate counts of handled requests by verdict.
func (s *SQLiteStore) GetQueryStats(ctx context.Context) (*QueryStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN verdict = 'result' THEN 1 ELSE 0 END), 0) as results,
			COALESCE(SUM(CASE WHEN verdict = 'cooldown' THEN 1 ELSE 0 END), 0) as cooldown,
			COALESCE(SUM(CASE WHEN verdict = 'quota' THEN 1 ELSE 0 END), 0) as quota
		FROM query_log
	`

	var stats QueryStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Results,
		&stats.Cooldown,
		&stats.Quota,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}

	return &stats, nil
}
