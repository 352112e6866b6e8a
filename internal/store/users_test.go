// ABOUTME: Tests for user persistence
// ABOUTME: Covers first-contact creation, idempotency, and role immutability

package store

import (
	"context"
	"testing"
	"time"
)

func TestEnsureUser_CreatesOnFirstContact(t *testing.T) {
	store := newTestStore(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	user, err := store.EnsureUser(ctx, 100, RoleUser, now)
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	if user.ID != 100 {
		t.Errorf("ID mismatch: got %d, want 100", user.ID)
	}
	if user.Role != RoleUser {
		t.Errorf("Role mismatch: got %q, want %q", user.Role, RoleUser)
	}
	if !user.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", user.CreatedAt, now)
	}
}

func TestEnsureUser_Idempotent(t *testing.T) {
	store := newTestStore(t)

	ctx := context.Background()
	first := time.Now().UTC().Truncate(time.Second)

	if _, err := store.EnsureUser(ctx, 100, RoleOwner, first); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	// Second call with a different role must not overwrite anything.
	user, err := store.EnsureUser(ctx, 100, RoleUser, first.Add(time.Hour))
	if err != nil {
		t.Fatalf("EnsureUser failed on second call: %v", err)
	}

	if user.Role != RoleOwner {
		t.Errorf("stored role changed: got %q, want %q", user.Role, RoleOwner)
	}
	if !user.CreatedAt.Equal(first) {
		t.Errorf("created_at changed: got %v, want %v", user.CreatedAt, first)
	}
}

func TestEnsureUser_InvalidRole(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.EnsureUser(context.Background(), 1, Role("root"), time.Now()); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), 999)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRole_Privileged(t *testing.T) {
	if RoleUser.Privileged() {
		t.Error("user role should not be privileged")
	}
	if !RoleAdmin.Privileged() {
		t.Error("admin role should be privileged")
	}
	if !RoleOwner.Privileged() {
		t.Error("owner role should be privileged")
	}
}
