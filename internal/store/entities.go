// ABOUTME: Dedup cache persistence keyed by (kind, value)
// ABOUTME: Atomic upsert that counts hits and replaces the payload

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertEntity records one sighting of (kind, value). A new key is
// inserted with hits 1 and first_seen = last_seen = now; an existing key
// has hits incremented by exactly one, last_seen advanced, and the
// payload replaced (not merged) with the supplied one.
//
// The insert and increment are a single statement, so concurrent
// first sightings of the same key cannot produce two rows: one caller
// wins the insert and every other caller lands on the increment path.
func (s *SQLiteStore) UpsertEntity(ctx context.Context, kind, value, payload string, now time.Time) (*EntityUpsert, error) {
	query := `
		INSERT INTO entities (kind, value, hits, payload, first_seen, last_seen)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(kind, value) DO UPDATE SET
			hits = hits + 1,
			payload = excluded.payload,
			last_seen = excluded.last_seen
		RETURNING hits, first_seen, last_seen
	`

	ts := now.UTC().Format(time.RFC3339)

	var hits int64
	var firstSeenStr, lastSeenStr string
	err := s.db.QueryRowContext(ctx, query, kind, value, payload, ts, ts).Scan(&hits, &firstSeenStr, &lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("upserting entity: %w", err)
	}

	firstSeen, err := time.Parse(time.RFC3339, firstSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	lastSeen, err := time.Parse(time.RFC3339, lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}

	// Hits can only be 1 straight after the insert path; the update path
	// always increments past it.
	up := &EntityUpsert{
		IsNew:     hits == 1,
		Hits:      hits,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}
	if !up.IsNew {
		up.HistoryHits = hits - 1
	}

	s.logger.Debug("upserted entity", "kind", kind, "value", value, "hits", hits, "is_new", up.IsNew)
	return up, nil
}

// GetEntity retrieves a dedup-cache row. Returns ErrNotFound if the key
// has never been seen.
func (s *SQLiteStore) GetEntity(ctx context.Context, kind, value string) (*Entity, error) {
	query := `
		SELECT kind, value, hits, payload, first_seen, last_seen
		FROM entities
		WHERE kind = ? AND value = ?
	`

	row := s.db.QueryRowContext(ctx, query, kind, value)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// TopEntities returns the most frequently seen entities, hottest first.
// If limit is 0 or negative, a default limit of 20 is used.
func (s *SQLiteStore) TopEntities(ctx context.Context, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT kind, value, hits, payload, first_seen, last_seen
		FROM entities
		ORDER BY hits DESC, last_seen DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}

	return entities, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntity scans a single entity row.
func scanEntity(row scanner) (*Entity, error) {
	var entity Entity
	var firstSeenStr, lastSeenStr string

	err := row.Scan(
		&entity.Kind,
		&entity.Value,
		&entity.Hits,
		&entity.Payload,
		&firstSeenStr,
		&lastSeenStr,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity row: %w", err)
	}

	entity.FirstSeen, err = time.Parse(time.RFC3339, firstSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	entity.LastSeen, err = time.Parse(time.RFC3339, lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}

	return &entity, nil
}
