// ABOUTME: Quota ledger persistence with atomic check-and-increment
// ABOUTME: One row per (user_id, day); a new day key is the quota reset

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ConsumeQuota charges one request against the (userID, day) record.
// The record is created with count 1 on first use. Once count has
// reached limit the call returns false and leaves the row untouched.
//
// The whole check-then-increment runs as a single upsert so two
// concurrent requests can never both take the last slot: the insert and
// the conditional increment are one statement, and RETURNING only yields
// a row when the charge actually happened.
func (s *SQLiteStore) ConsumeQuota(ctx context.Context, userID int64, day string, limit int) (bool, error) {
	query := `
		INSERT INTO quota (user_id, day, count)
		VALUES (?, ?, 1)
		ON CONFLICT(user_id, day) DO UPDATE SET
			count = count + 1
		WHERE quota.count < ?
		RETURNING count
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, userID, day, limit).Scan(&count)
	if err == sql.ErrNoRows {
		// Conditional update did not fire: the day's quota is exhausted.
		s.logger.Debug("quota exhausted", "user_id", userID, "day", day, "limit", limit)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consuming quota: %w", err)
	}

	s.logger.Debug("quota charged", "user_id", userID, "day", day, "count", count)
	return true, nil
}

// QuotaCount returns the number of requests charged to (userID, day).
// A missing record counts as zero.
func (s *SQLiteStore) QuotaCount(ctx context.Context, userID int64, day string) (int64, error) {
	query := `SELECT count FROM quota WHERE user_id = ? AND day = ?`

	var count int64
	err := s.db.QueryRowContext(ctx, query, userID, day).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying quota: %w", err)
	}

	return count, nil
}
