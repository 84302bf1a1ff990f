package rbackit

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Node is a single entry in a role or permission hierarchy.
//
// Position in the tree is encoded as a nested-set interval [Lft, Rght]:
// A is an ancestor of B exactly when A.Lft <= B.Lft and B.Rght <= A.Rght.
// The interval columns are owned by the hierarchy store; callers only ever
// mutate Title and Description.
//
// Node carries no table binding of its own: the same shape backs both the
// role and the permission tables, selected by the store that owns it.
type Node struct {
	ID          int64  `bun:"id,pk,autoincrement"`
	Lft         int64  `bun:"lft,notnull"`
	Rght        int64  `bun:"rght,notnull"`
	Title       string `bun:"title,notnull"`
	Description string `bun:"description,nullzero"`
}

// IsRoot reports whether this node is the hierarchy root.
func (n *Node) IsRoot() bool {
	return n.ID == RootID
}

// NodeDepth is a Node annotated with its depth relative to the node a
// descendant query started from (1 for direct children).
type NodeDepth struct {
	ID          int64  `bun:"id"`
	Lft         int64  `bun:"lft"`
	Rght        int64  `bun:"rght"`
	Title       string `bun:"title"`
	Description string `bun:"description"`
	Depth       int    `bun:"depth"`
}

// Grant is a direct role-permission edge.
// Inherited coverage is computed from the trees at query time; only direct
// edges are stored.
type Grant struct {
	bun.BaseModel `bun:"table:rbac_rolepermissions,alias:rp"`

	RoleID         int64 `bun:"roleid,pk"`
	PermissionID   int64 `bun:"permissionid,pk"`
	AssignmentDate int64 `bun:"assignmentdate,notnull"`
}

// UserRole links a caller-defined user id to a role.
// User id 0 is conventionally the guest; user 1 is the bootstrap user that
// holds the root role after a reset. RBACKit itself models no user entity.
type UserRole struct {
	bun.BaseModel `bun:"table:rbac_userroles,alias:ur"`

	UserID         int64 `bun:"userid,pk"`
	RoleID         int64 `bun:"roleid,pk"`
	AssignmentDate int64 `bun:"assignmentdate,notnull"`
}

// RootID is the well-known id of each hierarchy's root node. Role and
// permission roots live in independent id spaces, each starting at 1.
const RootID int64 = 1

// BootstrapUserID is the user re-assigned the root role after
// ResetAssignments or ResetAll.
const BootstrapUserID int64 = 1

// AuditLog records grant, assignment and reset operations for compliance
// and debugging.
type AuditLog struct {
	bun.BaseModel `bun:"table:rbac_audit_log,alias:al"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// What action was performed
	Action string `bun:"action,notnull"` // "granted", "revoked", "assigned", "unassigned", "reset"

	// Actor performing the action, from context; zero when unknown
	ActorID int64 `bun:"actor_id"`

	// Target of the action; zero when the field does not apply
	RoleID       int64 `bun:"role_id"`
	PermissionID int64 `bun:"permission_id"`
	TargetUserID int64 `bun:"target_user_id"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionGranted    AuditAction = "granted"
	AuditActionRevoked    AuditAction = "revoked"
	AuditActionAssigned   AuditAction = "assigned"
	AuditActionUnassigned AuditAction = "unassigned"
	AuditActionReset      AuditAction = "reset"
)

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	Action       AuditAction
	ActorID      int64
	RoleID       int64
	PermissionID int64
	TargetUserID int64
	IPAddress    string
	UserAgent    string
	RequestID    string
}

// ToModel converts an AuditEntry to an AuditLog model, filling actor and
// request metadata from the context when the entry leaves them unset.
func (e *AuditEntry) ToModel(ctx context.Context) *AuditLog {
	ac := GetAuditContext(ctx)
	if e.ActorID == 0 {
		e.ActorID = ac.ActorID
	}
	if e.IPAddress == "" {
		e.IPAddress = ac.IPAddress
	}
	if e.UserAgent == "" {
		e.UserAgent = ac.UserAgent
	}
	if e.RequestID == "" {
		e.RequestID = ac.RequestID
	}

	return &AuditLog{
		Action:       string(e.Action),
		ActorID:      e.ActorID,
		RoleID:       e.RoleID,
		PermissionID: e.PermissionID,
		TargetUserID: e.TargetUserID,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		RequestID:    e.RequestID,
		Timestamp:    time.Now(),
	}
}

// PoolConfig holds connection pool settings applied through PoolService.
type PoolConfig struct {
	MaxOpenConnections    int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	ConnectionMaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool settings suitable for most deployments.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConnections:    25,
		MaxIdleConnections:    10,
		ConnectionMaxLifetime: 30 * time.Minute,
		ConnectionMaxIdleTime: 5 * time.Minute,
	}
}

// HighPerformancePoolConfig returns pool settings for high-throughput
// deployments where the database can absorb more connections.
func HighPerformancePoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConnections:    100,
		MaxIdleConnections:    50,
		ConnectionMaxLifetime: time.Hour,
		ConnectionMaxIdleTime: 15 * time.Minute,
	}
}
