// ABOUTME: Gatekeeper pipeline: user bookkeeping, cooldown, quota, classify, cache
// ABOUTME: Produces a Verdict per request and records it in the audit log

package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osintkit/gatekeeper/internal/classify"
	"github.com/osintkit/gatekeeper/internal/cooldown"
	"github.com/osintkit/gatekeeper/internal/metrics"
	"github.com/osintkit/gatekeeper/internal/store"
)

// StorageError wraps a persistence failure so callers can distinguish
// system faults from the expected cooldown/quota denials, which are
// verdicts rather than errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Options configures a Gatekeeper.
type Options struct {
	// DailyLimit is the quota ceiling for non-privileged users.
	DailyLimit int
	// OwnerUserID grants the owner role at first contact. Zero disables it.
	OwnerUserID int64
	// StorageTimeout bounds every persistence call. Zero means 5s.
	StorageTimeout time.Duration
}

// payload is the associated data stored with every cache sighting.
type payload struct {
	Kind      classify.Kind `json:"kind"`
	Value     string        `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
}

// Gatekeeper runs the request pipeline. It owns its cooldown gate state
// but holds no long-lived copies of persisted records; construct one per
// process and share it across callers.
type Gatekeeper struct {
	store   store.Store
	gate    *cooldown.Gate
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Gatekeeper. The metrics instance may be nil to disable
// instrumentation.
func New(st store.Store, gate *cooldown.Gate, opts Options, logger *slog.Logger, m *metrics.Metrics) *Gatekeeper {
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	return &Gatekeeper{
		store:   st,
		gate:    gate,
		opts:    opts,
		logger:  logger.With("component", "gatekeeper"),
		metrics: m,
	}
}

// Handle runs one request through the pipeline and returns its verdict:
//
//  1. ensure the user exists (owner role for the configured owner id)
//  2. cooldown gate — denial never touches storage or quota
//  3. quota ledger — privileged roles bypass, cooldown still applies
//  4. classify the trimmed text
//  5. upsert the (kind, value) cache entry
//
// The first failing gate short-circuits. Storage faults propagate as
// *StorageError without any internal retry.
func (g *Gatekeeper) Handle(ctx context.Context, userID int64, role store.Role, text string, now time.Time) (*Verdict, error) {
	text = strings.TrimSpace(text)

	user, err := g.ensureUser(ctx, userID, now)
	if err != nil {
		g.countOutcome("error")
		return nil, err
	}

	role = effectiveRole(role, user.Role)

	// Cooldown runs before quota so bursts never consume quota slots.
	// It applies to privileged roles too; only quota is bypassed.
	if !g.gate.Allow(userID, now) {
		verdict := blocked(BlockCooldown)
		g.finish(ctx, userID, "", text, verdict, now)
		return verdict, nil
	}

	if !role.Privileged() {
		callCtx, cancel := g.storageCtx(ctx)
		ok, err := g.store.ConsumeQuota(callCtx, userID, store.Day(now), g.opts.DailyLimit)
		cancel()
		if err != nil {
			g.countOutcome("error")
			return nil, &StorageError{Op: "consume quota", Err: err}
		}
		if !ok {
			verdict := blocked(BlockQuota)
			g.finish(ctx, userID, "", text, verdict, now)
			return verdict, nil
		}
	}

	kind := classify.Classify(text)

	body, err := json.Marshal(payload{Kind: kind, Value: text, Timestamp: now.UTC()})
	if err != nil {
		g.countOutcome("error")
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	callCtx, cancel := g.storageCtx(ctx)
	up, err := g.store.UpsertEntity(callCtx, string(kind), text, string(body), now)
	cancel()
	if err != nil {
		// Quota was already charged for this request; the missed cache
		// write is an accepted bounded leak, not rolled back.
		g.countOutcome("error")
		return nil, &StorageError{Op: "upsert entity", Err: err}
	}

	verdict := &Verdict{
		Kind:      kind,
		Value:     text,
		IsNew:     up.IsNew,
		Hits:      up.Hits,
		FirstSeen: up.FirstSeen,
		LastSeen:  up.LastSeen,
	}
	if !up.IsNew {
		verdict.Hits = up.HistoryHits
	}

	if g.metrics != nil {
		if up.IsNew {
			g.metrics.EntitiesNewTotal.Inc()
		} else {
			g.metrics.CacheHitsTotal.Inc()
		}
	}

	g.finish(ctx, userID, string(kind), text, verdict, now)
	return verdict, nil
}

// ensureUser creates the user on first contact. The configured owner id
// gets the owner role; everyone else starts as a plain user.
func (g *Gatekeeper) ensureUser(ctx context.Context, userID int64, now time.Time) (*store.User, error) {
	role := store.RoleUser
	if g.opts.OwnerUserID != 0 && userID == g.opts.OwnerUserID {
		role = store.RoleOwner
	}

	callCtx, cancel := g.storageCtx(ctx)
	defer cancel()

	user, err := g.store.EnsureUser(callCtx, userID, role, now)
	if err != nil {
		return nil, &StorageError{Op: "ensure user", Err: err}
	}
	return user, nil
}

// effectiveRole picks the more privileged of the caller-supplied role and
// the stored one. The front end is trusted (authenticating it is out of
// scope here), and a stored owner grant survives a front end that only
// says "user".
func effectiveRole(supplied, stored store.Role) store.Role {
	rank := func(r store.Role) int {
		switch r {
		case store.RoleOwner:
			return 2
		case store.RoleAdmin:
			return 1
		default:
			return 0
		}
	}
	if rank(supplied) > rank(stored) {
		return supplied
	}
	return stored
}

// finish records the verdict in the audit log and metrics. Audit
// failures are logged and swallowed: the verdict already stands.
func (g *Gatekeeper) finish(ctx context.Context, userID int64, kind, text string, verdict *Verdict, now time.Time) {
	g.countOutcome(verdict.outcome())

	entry := &store.QueryLogEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Query:     text,
		Verdict:   verdict.outcome(),
		CreatedAt: now,
	}

	callCtx, cancel := g.storageCtx(ctx)
	defer cancel()

	if err := g.store.LogQuery(callCtx, entry); err != nil {
		g.logger.Warn("failed to write query log entry", "user_id", userID, "error", err)
		return
	}

	g.logger.Debug("handled request",
		"user_id", userID,
		"verdict", verdict.outcome(),
		"kind", kind,
	)
}

func (g *Gatekeeper) countOutcome(outcome string) {
	if g.metrics != nil {
		g.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// storageCtx bounds a persistence call with the configured timeout.
func (g *Gatekeeper) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.opts.StorageTimeout)
}
