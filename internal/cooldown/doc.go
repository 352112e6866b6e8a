// Package cooldown provides a per-user short-window rate gate used to
// absorb rapid-fire resubmissions before they reach quota accounting.
// State is process-local and intentionally not persisted: losing it on
// restart only forgives one cooldown window per user.
package cooldown
