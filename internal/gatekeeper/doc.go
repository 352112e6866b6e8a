// Package gatekeeper orchestrates the request pipeline between a
// message front end and persisted storage: first-contact user creation,
// the in-memory cooldown gate, the per-day quota ledger, text
// classification, and the deduplicating hit-counting entity cache.
//
// One call does everything:
//
//	verdict, err := gk.Handle(ctx, userID, role, text, time.Now())
//
// Cooldown and quota denials are normal verdicts, not errors; an error
// from Handle always means a storage fault. The caller decides whether
// to retry the whole call — the gatekeeper never retries internally.
//
// Known bounded inconsistency: if the cache upsert fails after quota was
// already charged, that request consumed a quota slot without producing
// a cache record. This is accepted rather than coordinating a
// distributed transaction across the two tables.
package gatekeeper
