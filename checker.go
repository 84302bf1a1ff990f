package rbackit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// Check decides whether a user holds a permission. The permission is a
// mixed reference (id, path or title). The decision is fully closed over
// both hierarchies: a role assignment covers every role in that role's
// subtree, and a role granted a permission also holds everything beneath
// that permission.
func (s *Service) Check(ctx context.Context, userID int64, permission string) (bool, error) {
	if userID < 0 {
		return false, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}

	permID, err := s.permissions.Resolve(ctx, permission)
	if err != nil {
		if IsNodeNotFound(err) || errors.Is(err, ErrInvalidReference) {
			return false, NewError(ErrPermissionNotFound, "permission not found").
				WithReference(permission)
		}
		return false, err
	}

	return s.checkByID(ctx, userID, permID)
}

// CheckByID is Check with an already resolved permission id.
func (s *Service) CheckByID(ctx context.Context, userID, permissionID int64) (bool, error) {
	if userID < 0 {
		return false, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}
	ok, err := s.permissions.store.exists(ctx, permissionID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, NewError(ErrPermissionNotFound, "permission not found").
			WithNode(permissionID)
	}
	return s.checkByID(ctx, userID, permissionID)
}

// CheckFromContext is Check with the user id taken from the request
// context. Fails with ErrUserNotProvided when no user is attached.
func (s *Service) CheckFromContext(ctx context.Context, permission string) (bool, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return false, NewError(ErrUserNotProvided, "no user id in context")
	}
	return s.Check(ctx, userID, permission)
}

func (s *Service) checkByID(ctx context.Context, userID, permissionID int64) (bool, error) {
	// Left side: every role reachable downward from the user's direct
	// assignments. Right side: every permission reachable downward from
	// a grant. Access exists when the requested permission falls inside
	// a granted permission's interval.
	qry := fmt.Sprintf(`SELECT 1
          FROM %s AS tur
          JOIN %[2]s trdirect ON trdirect.id = tur.roleid
          JOIN %[2]s tr ON tr.lft BETWEEN trdirect.lft AND trdirect.rght
          JOIN %[3]s trel ON trel.roleid = tr.id
          JOIN %[4]s tpgrant ON tpgrant.id = trel.permissionid
          JOIN %[4]s tp ON tp.lft BETWEEN tpgrant.lft AND tpgrant.rght
         WHERE tur.userid = ?
           AND tp.id = ?
         LIMIT 1`,
		s.table("userroles"), s.table("roles"),
		s.table("rolepermissions"), s.table("permissions"))

	var found int
	err := s.db.NewRaw(qry, userID, permissionID).Scan(ctx, &found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return false, nil
		}
		return false, dbkit.WithErr1(err, "CheckAccess").Err()
	}
	return true, nil
}

// RoleHasPermission reports whether a role effectively holds a permission:
// true when any descendant of the role carries a grant on the permission or
// on one of its ancestors. Both arguments are mixed references. Fails with
// ErrPermissionNotFound when the permission does not resolve.
func (s *Service) RoleHasPermission(ctx context.Context, role, permission string) (bool, error) {
	roleID, err := s.roles.Resolve(ctx, role)
	if err != nil {
		return false, err
	}
	permID, err := s.permissions.Resolve(ctx, permission)
	if err != nil {
		if IsNodeNotFound(err) || errors.Is(err, ErrInvalidReference) {
			return false, NewError(ErrPermissionNotFound, "permission not found").
				WithReference(permission)
		}
		return false, err
	}
	return s.roleHasPermissionByID(ctx, roleID, permID)
}

func (s *Service) roleHasPermissionByID(ctx context.Context, roleID, permissionID int64) (bool, error) {
	qry := fmt.Sprintf(`SELECT 1
          FROM %[1]s trdirect
          JOIN %[1]s tr ON tr.lft BETWEEN trdirect.lft AND trdirect.rght
          JOIN %[2]s trel ON trel.roleid = tr.id
          JOIN %[3]s tpgrant ON tpgrant.id = trel.permissionid
          JOIN %[3]s tp ON tp.lft BETWEEN tpgrant.lft AND tpgrant.rght
         WHERE trdirect.id = ?
           AND tp.id = ?
         LIMIT 1`,
		s.table("roles"), s.table("rolepermissions"), s.table("permissions"))

	var found int
	err := s.db.NewRaw(qry, roleID, permissionID).Scan(ctx, &found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return false, nil
		}
		return false, dbkit.WithErr1(err, "RoleHasPermission").Err()
	}
	return true, nil
}

// RoleGrants returns the ids of every permission a role effectively holds:
// direct grants on the role or any of its descendants, each expanded to the
// full subtree beneath the granted permission. Results are deduplicated and
// sorted by id.
func (s *Service) RoleGrants(ctx context.Context, role string) ([]int64, error) {
	roleID, err := s.roles.Resolve(ctx, role)
	if err != nil {
		return nil, err
	}

	qry := fmt.Sprintf(`SELECT DISTINCT tp.id
          FROM %[1]s troot
          JOIN %[1]s tr ON tr.lft BETWEEN troot.lft AND troot.rght
          JOIN %[2]s trel ON trel.roleid = tr.id
          JOIN %[3]s tpgrant ON tpgrant.id = trel.permissionid
          JOIN %[3]s tp ON tp.lft BETWEEN tpgrant.lft AND tpgrant.rght
         WHERE troot.id = ?
      ORDER BY tp.id`,
		s.table("roles"), s.table("rolepermissions"), s.table("permissions"))

	var ids []int64
	err = s.db.NewRaw(qry, roleID).Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, dbkit.WithErr1(err, "RoleGrants").Err()
	}
	return ids, nil
}
