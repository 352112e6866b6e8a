// ABOUTME: Store interface and data types for gatekeeper persistence
// ABOUTME: Defines User, Entity, QueryLogEntry structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Role is the privilege level assigned to a user at first contact.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

// ValidRoles lists all roles a user can hold.
var ValidRoles = []Role{RoleUser, RoleAdmin, RoleOwner}

// Privileged reports whether the role bypasses quota accounting.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// User is a front-end identity known to the gatekeeper. Users are created
// on first contact and never deleted; the role only changes through
// administrative action.
type User struct {
	ID        int64
	Role      Role
	CreatedAt time.Time
}

// Entity is a dedup-cache row: one classified value and its cumulative
// hit count. The payload is the last-seen associated data, replaced whole
// on every hit.
type Entity struct {
	Kind      string
	Value     string
	Hits      int64
	Payload   string
	FirstSeen time.Time
	LastSeen  time.Time
}

// EntityUpsert is the outcome of recording one sighting of an entity.
// For a brand-new key IsNew is true and Hits is 1. For an existing key
// IsNew is false, Hits is the post-increment count, and HistoryHits is
// the count before this sighting (what callers report as prior history).
type EntityUpsert struct {
	IsNew       bool
	Hits        int64
	HistoryHits int64
	FirstSeen   time.Time
	LastSeen    time.Time
}

// QueryLogEntry is one handled request in the append-only audit trail.
type QueryLogEntry struct {
	ID        string
	UserID    int64
	Kind      string
	Query     string
	Verdict   string
	CreatedAt time.Time
}

// QueryStats aggregates the audit trail by verdict.
type QueryStats struct {
	Total    int64
	Results  int64
	Cooldown int64
	Quota    int64
}

// Day formats a timestamp as the UTC calendar-date key used by the quota
// ledger. Two instants on the same UTC date share a key; midnight rolls
// the key over, which is what resets quota.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Store defines the persistence operations the gatekeeper needs.
type Store interface {
	// Users
	EnsureUser(ctx context.Context, userID int64, role Role, now time.Time) (*User, error)
	GetUser(ctx context.Context, userID int64) (*User, error)

	// Quota ledger. ConsumeQuota atomically charges one request against
	// the (userID, day) record, creating it on first use. It returns
	// false, without mutating anything, once the record has reached limit.
	ConsumeQuota(ctx context.Context, userID int64, day string, limit int) (bool, error)
	QuotaCount(ctx context.Context, userID int64, day string) (int64, error)

	// Dedup cache. UpsertEntity atomically inserts or bumps the
	// (kind, value) row, replacing the payload and advancing last_seen.
	UpsertEntity(ctx context.Context, kind, value, payload string, now time.Time) (*EntityUpsert, error)
	GetEntity(ctx context.Context, kind, value string) (*Entity, error)
	TopEntities(ctx context.Context, limit int) ([]*Entity, error)

	// Query log (audit trail)
	LogQuery(ctx context.Context, entry *QueryLogEntry) error
	CountUserQueries(ctx context.Context, userID int64) (int64, error)
	GetQueryStats(ctx context.Context) (*QueryStats, error)

	// Close releases any resources held by the store
	Close() error
}
