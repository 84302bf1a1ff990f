package rbackit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestUserIDContext tests user ID storage and retrieval
func TestUserIDContext(t *testing.T) {
	t.Run("Set and get", func(t *testing.T) {
		ctx := WithUserID(context.Background(), 42)
		id, ok := UserIDFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
	})

	t.Run("Not set", func(t *testing.T) {
		id, ok := UserIDFromContext(context.Background())
		assert.False(t, ok)
		assert.Equal(t, int64(0), id)
	})

	t.Run("MustUserIDFromContext panics when missing", func(t *testing.T) {
		assert.Panics(t, func() {
			MustUserIDFromContext(context.Background())
		})
	})

	t.Run("MustUserIDFromContext returns when set", func(t *testing.T) {
		ctx := WithUserID(context.Background(), 7)
		assert.Equal(t, int64(7), MustUserIDFromContext(ctx))
	})
}

// TestActorIDContext tests actor ID with user ID fallback
func TestActorIDContext(t *testing.T) {
	t.Run("Explicit actor", func(t *testing.T) {
		ctx := WithUserID(context.Background(), 42)
		ctx = WithActorID(ctx, 99)
		assert.Equal(t, int64(99), GetActorID(ctx))
	})

	t.Run("Falls back to user ID", func(t *testing.T) {
		ctx := WithUserID(context.Background(), 42)
		assert.Equal(t, int64(42), GetActorID(ctx))
	})

	t.Run("Nothing set", func(t *testing.T) {
		assert.Equal(t, int64(0), GetActorID(context.Background()))
	})
}

// TestRequestMetadataContext tests IP, user agent and request ID helpers
func TestRequestMetadataContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithIPAddress(ctx, "192.168.1.1")
	ctx = WithUserAgent(ctx, "test-agent/1.0")
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, "192.168.1.1", GetIPAddress(ctx))
	assert.Equal(t, "test-agent/1.0", GetUserAgent(ctx))
	assert.Equal(t, "req-123", GetRequestID(ctx))

	empty := context.Background()
	assert.Equal(t, "", GetIPAddress(empty))
	assert.Equal(t, "", GetUserAgent(empty))
	assert.Equal(t, "", GetRequestID(empty))
}

// TestAuditContext tests bulk audit context round-trip
func TestAuditContext(t *testing.T) {
	ac := AuditContext{
		ActorID:   7,
		IPAddress: "10.0.0.1",
		UserAgent: "cli/2.0",
		RequestID: "req-456",
	}

	ctx := WithAuditContext(context.Background(), ac)
	got := GetAuditContext(ctx)
	assert.Equal(t, ac, got)
}

// TestServiceContext tests service attachment to context
func TestServiceContext(t *testing.T) {
	t.Run("Set and get", func(t *testing.T) {
		svc := NewService(nil)
		ctx := WithService(context.Background(), svc)
		assert.Same(t, svc, ServiceFromContext(ctx))
	})

	t.Run("Not set", func(t *testing.T) {
		assert.Nil(t, ServiceFromContext(context.Background()))
	})
}

// TestAuditEntryToModel tests context metadata propagation into audit rows
func TestAuditEntryToModel(t *testing.T) {
	ctx := WithAuditContext(context.Background(), AuditContext{
		ActorID:   7,
		IPAddress: "10.0.0.1",
		UserAgent: "cli/2.0",
		RequestID: "req-789",
	})

	entry := &AuditEntry{
		Action:       AuditActionGranted,
		RoleID:       2,
		PermissionID: 3,
	}
	model := entry.ToModel(ctx)

	assert.Equal(t, "granted", model.Action)
	assert.Equal(t, int64(7), model.ActorID)
	assert.Equal(t, int64(2), model.RoleID)
	assert.Equal(t, int64(3), model.PermissionID)
	assert.Equal(t, "10.0.0.1", model.IPAddress)
	assert.Equal(t, "cli/2.0", model.UserAgent)
	assert.Equal(t, "req-789", model.RequestID)
	assert.False(t, model.Timestamp.IsZero())
}
