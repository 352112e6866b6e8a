// ABOUTME: User records with first-contact creation
// ABOUTME: Users are created lazily with a role and never deleted

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureUser creates the user with the given role if it does not exist
// and returns the stored record. The operation is idempotent: for an
// existing user the stored role wins and the passed role is ignored,
// so a role assigned at first contact is immutable here.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userID int64, role Role, now time.Time) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("ensuring user: invalid role %q", role)
	}

	query := `
		INSERT INTO users (user_id, role, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		userID,
		role,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("ensuring user: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		s.logger.Info("created user", "user_id", userID, "role", role)
	}

	return s.GetUser(ctx, userID)
}

// GetUser retrieves a user by id. Returns ErrNotFound if the user has
// never been seen.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `SELECT user_id, role, created_at FROM users WHERE user_id = ?`

	var user User
	var roleStr, createdAtStr string

	err := s.db.QueryRowContext(ctx, query, userID).Scan(&user.ID, &roleStr, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.Role = Role(roleStr)
	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}
