package rbackit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNodeIsRoot tests root detection
func TestNodeIsRoot(t *testing.T) {
	root := Node{ID: RootID, Lft: 0, Rght: 1, Title: "root"}
	assert.True(t, root.IsRoot())

	child := Node{ID: 2, Lft: 1, Rght: 2, Title: "admin"}
	assert.False(t, child.IsRoot())
}

// TestAuditActions tests the action constants used in audit rows
func TestAuditActions(t *testing.T) {
	tests := []struct {
		action AuditAction
		want   string
	}{
		{AuditActionGranted, "granted"},
		{AuditActionRevoked, "revoked"},
		{AuditActionAssigned, "assigned"},
		{AuditActionUnassigned, "unassigned"},
		{AuditActionReset, "reset"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, string(tt.action))
	}
}

// TestBootstrapConstants tests the fixed points reset converges to
func TestBootstrapConstants(t *testing.T) {
	assert.Equal(t, int64(1), RootID)
	assert.Equal(t, int64(1), BootstrapUserID)
}

// TestPoolConfigs tests the predefined pool configurations
func TestPoolConfigs(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		c := DefaultPoolConfig()
		assert.Equal(t, 25, c.MaxOpenConnections)
		assert.Equal(t, 10, c.MaxIdleConnections)
		assert.Equal(t, 30*time.Minute, c.ConnectionMaxLifetime)
		assert.Equal(t, 5*time.Minute, c.ConnectionMaxIdleTime)
	})

	t.Run("High performance", func(t *testing.T) {
		c := HighPerformancePoolConfig()
		assert.Greater(t, c.MaxOpenConnections, DefaultPoolConfig().MaxOpenConnections)
		assert.Greater(t, c.MaxIdleConnections, DefaultPoolConfig().MaxIdleConnections)
	})
}

// TestSplitPath tests path component extraction
func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/org/eng/backend", []string{"org", "eng", "backend"}},
		{"/org/eng/", []string{"org", "eng"}},
		{"/", nil},
		{"", nil},
		{"//org//eng", []string{"org", "eng"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, splitPath(tt.path), "path %q", tt.path)
	}
}
