package rbackit

import (
	"context"
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// Service is the entry point to RBACKit. It owns the two hierarchies, the
// grant and assignment relations, and the access decision logic. All
// database operations go through dbkit with chainable error wrapping.
//
// Error Handling:
// Structural and decision errors carry rbackit sentinels (ErrNodeNotFound,
// ErrInvalidReference, ErrPermissionNotFound, ...) and can be classified
// with errors.Is or the Is* helpers. Storage failures wrap the dbkit error
// so dbkit.IsDuplicate / dbkit.IsNotFound keep working through the chain.
//
// Example error handling:
//
//	_, err := service.Roles().Add(ctx, parentID, "editor", "")
//	if err != nil {
//	    if rbackit.IsNodeNotFound(err) {
//	        // parent does not exist
//	    }
//	    var e *rbackit.Error
//	    if errors.As(err, &e) {
//	        fmt.Printf("hierarchy=%s node=%d\n", e.Hierarchy, e.NodeID)
//	    }
//	}
type Service struct {
	db          dbkit.IDB
	prefix      string
	roles       *RoleCatalog
	permissions *PermissionCatalog
	users       *UserManager
	txMonitor   *transactionMonitor
}

// ServiceOption configures a Service at construction time.
type ServiceOption func(*Service)

// WithTablePrefix overrides the default "rbac_" table prefix. The prefix
// must be a plain identifier (letters, digits, underscore); anything else
// panics since a bad prefix would end up interpolated into SQL.
func WithTablePrefix(prefix string) ServiceOption {
	return func(s *Service) {
		if !validPrefix(prefix) {
			panic(fmt.Sprintf("rbackit: invalid table prefix %q", prefix))
		}
		s.prefix = prefix
	}
}

// NewService creates a new RBACKit service.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := rbackit.NewService(db)
func NewService(db dbkit.IDB, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		prefix:    DefaultTablePrefix,
		txMonitor: newTransactionMonitor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.roles = newRoleCatalog(s, s.txMonitor)
	s.permissions = newPermissionCatalog(s, s.txMonitor)
	s.users = newUserManager(s)
	return s
}

// Roles returns the role hierarchy catalog.
func (s *Service) Roles() *RoleCatalog {
	return s.roles
}

// Permissions returns the permission hierarchy catalog.
func (s *Service) Permissions() *PermissionCatalog {
	return s.permissions
}

// Users returns the user-role assignment manager.
func (s *Service) Users() *UserManager {
	return s.users
}

// table renders a prefixed table name. The prefix is validated at
// construction, so the result is safe to interpolate.
func (s *Service) table(name string) string {
	return s.prefix + name
}

// ResetAll wipes both hierarchies and both relations, then re-seeds the
// bootstrap state: a root role, a root permission, root granted root, and
// user 1 assigned the root role. Requires confirm.
func (s *Service) ResetAll(ctx context.Context, confirm bool) error {
	if !confirm {
		return NewError(ErrConfirmationRequired, "pass confirm=true to reset all RBAC state")
	}

	err := s.Transaction(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		for _, tbl := range []string{s.table("rolepermissions"), s.table("userroles")} {
			if _, err := tx.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s", tbl)).Exec(ctx); err != nil {
				return dbkit.WithErr1(err, "ResetAll").Err()
			}
		}

		if err := s.roles.store.resetOn(ctx, tx); err != nil {
			return err
		}
		if err := s.permissions.store.resetOn(ctx, tx); err != nil {
			return err
		}

		_, err := tx.NewRaw(
			fmt.Sprintf(`INSERT INTO %s (roleid, permissionid, assignmentdate)
                 VALUES (?, ?, EXTRACT(EPOCH FROM now())::BIGINT)`, s.table("rolepermissions")),
			RootID, RootID,
		).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "ResetAllRootGrant").Err()
		}

		_, err = tx.NewRaw(
			fmt.Sprintf(`INSERT INTO %s (userid, roleid, assignmentdate)
                 VALUES (?, ?, EXTRACT(EPOCH FROM now())::BIGINT)`, s.table("userroles")),
			BootstrapUserID, RootID,
		).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "ResetAllBootstrapAssignment").Err()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{Action: AuditActionReset})
	return nil
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// audit records an entry in the audit log. Audit failures never fail the
// operation being audited; the entry is dropped when the insert errors.
func (s *Service) audit(ctx context.Context, entry *AuditEntry) {
	model := entry.ToModel(ctx)
	_, _ = s.db.NewInsert().
		Model(model).
		ModelTableExpr(s.table("audit_log") + " AS al").
		Exec(ctx)
}

// GetAuditLog retrieves audit log entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditLog, error) {
	var logs []AuditLog
	q := s.db.NewSelect().
		Model(&logs).
		ModelTableExpr(s.table("audit_log") + " AS al")
	if filter.ActorID != 0 {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetUserID != 0 {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.RoleID != 0 {
		q = q.Where("role_id = ?", filter.RoleID)
	}
	if filter.PermissionID != 0 {
		q = q.Where("permission_id = ?", filter.PermissionID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}
