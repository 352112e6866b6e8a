// Package store provides persistent storage for the gatekeeper using SQLite.
//
// # Architecture
//
// SQLiteStore implements the Store interface and owns three durable tables
// plus an audit log:
//
//   - users: first-contact user records with an immutable role
//   - quota: per-user per-day request counters (the quota ledger)
//   - entities: the dedup cache keyed by (kind, value) with hit counts
//   - query_log: append-only record of handled requests
//
// # Atomicity
//
// The quota ledger and dedup cache are mutated with single upsert
// statements (INSERT ... ON CONFLICT ... DO UPDATE ... RETURNING), so the
// check-then-act sequences the gatekeeper relies on cannot lose updates
// under concurrent callers. On top of that the store is opened as a single
// writer (one pooled connection, WAL, busy_timeout), which serializes all
// writes the way an embedded single-process store should.
//
// # Day keys
//
// Quota records are keyed by a UTC calendar-date string. A new day means a
// new key, which is how quota resets without any scheduled job.
//
// # Error Handling
//
// ErrNotFound is returned for missing rows. All other failures are wrapped
// with operation context. Quota exhaustion is not an error: ConsumeQuota
// reports it through its boolean result.
//
// All methods accept context.Context; callers bound persistence calls with
// a timeout.
package store
