// ABOUTME: Tests for the gatekeeper pipeline
// ABOUTME: Covers the end-to-end verdict flow, gate ordering, and role bypass

package gatekeeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osintkit/gatekeeper/internal/classify"
	"github.com/osintkit/gatekeeper/internal/cooldown"
	"github.com/osintkit/gatekeeper/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGatekeeper wires a gatekeeper to a temp SQLite store with a 2s
// cooldown window and the given options.
func newTestGatekeeper(t *testing.T, opts Options) (*Gatekeeper, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gate := cooldown.New(2 * time.Second)
	t.Cleanup(gate.Close)

	if opts.DailyLimit == 0 {
		opts.DailyLimit = 10
	}
	return New(st, gate, opts, testLogger(), nil), st
}

func TestHandle_EndToEnd(t *testing.T) {
	gk, st := newTestGatekeeper(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	// First-time user, fresh value.
	verdict, err := gk.Handle(ctx, 1, store.RoleUser, "test@test.com", base)
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
	assert.Equal(t, classify.KindEmail, verdict.Kind)
	assert.Equal(t, "test@test.com", verdict.Value)
	assert.True(t, verdict.IsNew)
	assert.Equal(t, int64(1), verdict.Hits)

	// Immediate resend trips the cooldown gate before anything else.
	verdict, err = gk.Handle(ctx, 1, store.RoleUser, "test@test.com", base.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
	assert.Equal(t, BlockCooldown, verdict.Reason)

	// The cooldown denial must not have charged quota.
	count, err := st.QuotaCount(ctx, 1, store.Day(base))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Past the window: quota charges, the cache reports prior history.
	verdict, err = gk.Handle(ctx, 1, store.RoleUser, "test@test.com", base.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
	assert.False(t, verdict.IsNew)
	assert.Equal(t, int64(1), verdict.Hits, "reported hits are the pre-increment history")

	entity, err := st.GetEntity(ctx, "email", "test@test.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entity.Hits, "stored hits reflect both sightings")
}

func TestHandle_QuotaExhaustion(t *testing.T) {
	gk, st := newTestGatekeeper(t, Options{DailyLimit: 3})
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	// Space the calls out so the cooldown gate never interferes.
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Second)
		verdict, err := gk.Handle(ctx, 1, store.RoleUser, "bob", at)
		require.NoError(t, err)
		require.False(t, verdict.Blocked, "call %d should pass", i+1)
	}

	verdict, err := gk.Handle(ctx, 1, store.RoleUser, "bob", base.Add(40*time.Second))
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
	assert.Equal(t, BlockQuota, verdict.Reason)

	count, err := st.QuotaCount(ctx, 1, store.Day(base))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "denied call must not move the counter")
}

func TestHandle_PrivilegedBypassesQuota(t *testing.T) {
	for _, role := range []store.Role{store.RoleAdmin, store.RoleOwner} {
		t.Run(string(role), func(t *testing.T) {
			gk, st := newTestGatekeeper(t, Options{DailyLimit: 1})
			ctx := context.Background()
			base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

			for i := 0; i < 5; i++ {
				at := base.Add(time.Duration(i) * 10 * time.Second)
				verdict, err := gk.Handle(ctx, 9, role, "bob", at)
				require.NoError(t, err)
				require.False(t, verdict.Blocked)
			}

			// Bypass means no QuotaRecord is ever created or touched.
			count, err := st.QuotaCount(ctx, 9, store.Day(base))
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	}
}

func TestHandle_PrivilegedStillCoolsDown(t *testing.T) {
	gk, _ := newTestGatekeeper(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	verdict, err := gk.Handle(ctx, 9, store.RoleAdmin, "bob", base)
	require.NoError(t, err)
	require.False(t, verdict.Blocked)

	verdict, err = gk.Handle(ctx, 9, store.RoleAdmin, "bob", base.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
	assert.Equal(t, BlockCooldown, verdict.Reason)
}

func TestHandle_OwnerUserID(t *testing.T) {
	gk, st := newTestGatekeeper(t, Options{DailyLimit: 1, OwnerUserID: 777})
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	// Front end only claims "user", but the configured owner id wins.
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Second)
		verdict, err := gk.Handle(ctx, 777, store.RoleUser, "bob", at)
		require.NoError(t, err)
		require.False(t, verdict.Blocked)
	}

	user, err := st.GetUser(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, store.RoleOwner, user.Role)
}

func TestHandle_TrimsWhitespace(t *testing.T) {
	gk, st := newTestGatekeeper(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	verdict, err := gk.Handle(ctx, 1, store.RoleUser, "  a@b.com \n", base)
	require.NoError(t, err)
	assert.Equal(t, classify.KindEmail, verdict.Kind)
	assert.Equal(t, "a@b.com", verdict.Value)

	_, err = st.GetEntity(ctx, "email", "a@b.com")
	assert.NoError(t, err, "cache key uses the trimmed value")
}

func TestHandle_WritesQueryLog(t *testing.T) {
	gk, st := newTestGatekeeper(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	_, err := gk.Handle(ctx, 1, store.RoleUser, "bob", base)
	require.NoError(t, err)
	_, err = gk.Handle(ctx, 1, store.RoleUser, "bob", base.Add(time.Second))
	require.NoError(t, err)

	stats, err := st.GetQueryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Results)
	assert.Equal(t, int64(1), stats.Cooldown)
}

// failingStore wraps a real store and fails the entity upsert.
type failingStore struct {
	store.Store
}

var errBoom = errors.New("disk on fire")

func (f *failingStore) UpsertEntity(ctx context.Context, kind, value, payload string, now time.Time) (*store.EntityUpsert, error) {
	return nil, errBoom
}

func TestHandle_StorageErrorPropagates(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gate := cooldown.New(2 * time.Second)
	t.Cleanup(gate.Close)

	gk := New(&failingStore{Store: st}, gate, Options{DailyLimit: 10}, testLogger(), nil)

	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	_, err = gk.Handle(context.Background(), 1, store.RoleUser, "bob", base)
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.ErrorIs(t, err, errBoom)

	// The documented bounded leak: quota was charged even though the
	// cache write failed.
	count, err := st.QuotaCount(context.Background(), 1, store.Day(base))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEffectiveRole(t *testing.T) {
	tests := []struct {
		supplied, stored, want store.Role
	}{
		{store.RoleUser, store.RoleUser, store.RoleUser},
		{store.RoleAdmin, store.RoleUser, store.RoleAdmin},
		{store.RoleUser, store.RoleOwner, store.RoleOwner},
		{store.RoleAdmin, store.RoleOwner, store.RoleOwner},
		{store.RoleOwner, store.RoleAdmin, store.RoleOwner},
	}
	for _, tt := range tests {
		got := effectiveRole(tt.supplied, tt.stored)
		assert.Equal(t, tt.want, got, "supplied=%s stored=%s", tt.supplied, tt.stored)
	}
}
