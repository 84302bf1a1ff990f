package rbackit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE-PERMISSION GRANTS
// ============================================================================

// Grant records a direct role-permission edge. Both arguments are mixed
// references (id, path or title). Returns true when the edge was created
// and false when the exact pair already existed; the repeat is not an
// error. Fails with ErrInvalidReference when either side does not resolve.
//
// Example:
//
//	created, err := service.Grant(ctx, "/org/eng", "/deploy")
func (s *Service) Grant(ctx context.Context, role, permission string) (bool, error) {
	roleID, permID, err := s.resolvePair(ctx, role, permission)
	if err != nil {
		return false, err
	}
	return s.GrantByID(ctx, roleID, permID)
}

// GrantByID is Grant for already-resolved ids.
func (s *Service) GrantByID(ctx context.Context, roleID, permissionID int64) (bool, error) {
	if roleID <= 0 || permissionID <= 0 {
		return false, NewError(ErrInvalidReference, "role and permission ids must be positive")
	}

	// The assignment timestamp comes from the database clock so it is
	// monotonic across application instances.
	res, err := s.db.NewRaw(
		fmt.Sprintf(`INSERT INTO %s (roleid, permissionid, assignmentdate)
             VALUES (?, ?, EXTRACT(EPOCH FROM now())::BIGINT)
             ON CONFLICT (roleid, permissionid) DO NOTHING`, s.table("rolepermissions")),
		roleID, permissionID,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "CreateGrant").Err(); err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, StorageError(err, "failed to read grant result")
	}
	if rows == 0 {
		return false, nil
	}

	s.audit(ctx, &AuditEntry{
		Action:       AuditActionGranted,
		RoleID:       roleID,
		PermissionID: permissionID,
	})
	return true, nil
}

// Revoke removes a direct role-permission edge. Returns true when an edge
// was removed and false when the pair was not granted.
func (s *Service) Revoke(ctx context.Context, role, permission string) (bool, error) {
	roleID, permID, err := s.resolvePair(ctx, role, permission)
	if err != nil {
		return false, err
	}
	return s.RevokeByID(ctx, roleID, permID)
}

// RevokeByID is Revoke for already-resolved ids.
func (s *Service) RevokeByID(ctx context.Context, roleID, permissionID int64) (bool, error) {
	if roleID <= 0 || permissionID <= 0 {
		return false, NewError(ErrInvalidReference, "role and permission ids must be positive")
	}

	res, err := s.db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE roleid = ? AND permissionid = ?", s.table("rolepermissions")),
		roleID, permissionID,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "DeleteGrant").Err(); err != nil {
		return false, err
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	s.audit(ctx, &AuditEntry{
		Action:       AuditActionRevoked,
		RoleID:       roleID,
		PermissionID: permissionID,
	})
	return true, nil
}

// PermissionsOfRole returns the permissions directly granted to a role.
// Inherited coverage is not expanded here; use Checker for decisions.
func (s *Service) PermissionsOfRole(ctx context.Context, role string) ([]Node, error) {
	roleID, err := s.roles.Resolve(ctx, role)
	if err != nil {
		return nil, err
	}

	qry := fmt.Sprintf(`SELECT p.id, p.lft, p.rght, p.title, COALESCE(p.description, '') AS description
          FROM %s rp
          JOIN %s p ON p.id = rp.permissionid
         WHERE rp.roleid = ?
      ORDER BY p.id`, s.table("rolepermissions"), s.table("permissions"))

	nodes := make([]Node, 0)
	err = s.db.NewRaw(qry, roleID).Scan(ctx, &nodes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, dbkit.WithErr1(err, "PermissionsOfRole").Err()
	}
	return nodes, nil
}

// PermissionIDsOfRole returns only the ids of the permissions directly
// granted to a role.
func (s *Service) PermissionIDsOfRole(ctx context.Context, role string) ([]int64, error) {
	nodes, err := s.PermissionsOfRole(ctx, role)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// RolesOfPermission returns the roles a permission is directly granted to.
func (s *Service) RolesOfPermission(ctx context.Context, permission string) ([]Node, error) {
	permID, err := s.permissions.Resolve(ctx, permission)
	if err != nil {
		return nil, err
	}

	qry := fmt.Sprintf(`SELECT r.id, r.lft, r.rght, r.title, COALESCE(r.description, '') AS description
          FROM %s rp
          JOIN %s r ON r.id = rp.roleid
         WHERE rp.permissionid = ?
      ORDER BY r.id`, s.table("rolepermissions"), s.table("roles"))

	nodes := make([]Node, 0)
	err = s.db.NewRaw(qry, permID).Scan(ctx, &nodes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, dbkit.WithErr1(err, "RolesOfPermission").Err()
	}
	return nodes, nil
}

// RoleIDsOfPermission returns only the ids of the roles a permission is
// directly granted to.
func (s *Service) RoleIDsOfPermission(ctx context.Context, permission string) ([]int64, error) {
	nodes, err := s.RolesOfPermission(ctx, permission)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// ResetGrants clears the grant relation and re-establishes its bootstrap
// fixed point: the root role granted the root permission. Requires confirm.
func (s *Service) ResetGrants(ctx context.Context, confirm bool) error {
	if !confirm {
		return NewError(ErrConfirmationRequired, "pass confirm=true to reset grants")
	}

	err := s.Transaction(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		_, err := tx.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s", s.table("rolepermissions"))).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "ResetGrants").Err()
		}

		_, err = tx.NewRaw(
			fmt.Sprintf(`INSERT INTO %s (roleid, permissionid, assignmentdate)
                 VALUES (?, ?, EXTRACT(EPOCH FROM now())::BIGINT)`, s.table("rolepermissions")),
			RootID, RootID,
		).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "ResetGrantsBootstrap").Err()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{Action: AuditActionReset})
	return nil
}

// resolvePair resolves a role and a permission reference, mapping a failed
// resolution to ErrInvalidReference as grant operations require both sides.
func (s *Service) resolvePair(ctx context.Context, role, permission string) (int64, int64, error) {
	roleID, err := s.roles.Resolve(ctx, role)
	if err != nil {
		if IsNodeNotFound(err) {
			return 0, 0, NewError(ErrInvalidReference, "role does not resolve").WithReference(role)
		}
		return 0, 0, err
	}
	permID, err := s.permissions.Resolve(ctx, permission)
	if err != nil {
		if IsNodeNotFound(err) {
			return 0, 0, NewError(ErrInvalidReference, "permission does not resolve").WithReference(permission)
		}
		return 0, 0, err
	}
	return roleID, permID, nil
}
