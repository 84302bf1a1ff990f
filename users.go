package rbackit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// UserManager owns the user-role assignment relation. User ids are
// caller-defined; RBACKit models no user entity of its own. By convention
// id 0 is the guest and id 1 the bootstrap user, but neither is
// special-cased outside of reset.
type UserManager struct {
	svc *Service
}

func newUserManager(svc *Service) *UserManager {
	return &UserManager{svc: svc}
}

// Assign gives a user a role. The role is a mixed reference (id, path or
// title). Returns true when the assignment was created, false when the
// exact pair already existed.
func (u *UserManager) Assign(ctx context.Context, role string, userID int64) (bool, error) {
	if userID < 0 {
		return false, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}

	roleID, err := u.svc.roles.Resolve(ctx, role)
	if err != nil {
		return false, err
	}

	res, err := u.svc.db.NewRaw(
		fmt.Sprintf(`INSERT INTO %s (userid, roleid, assignmentdate)
             VALUES (?, ?, EXTRACT(EPOCH FROM now())::BIGINT)
             ON CONFLICT (userid, roleid) DO NOTHING`, u.svc.table("userroles")),
		userID, roleID,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "CreateUserAssignment").Err(); err != nil {
		return false, err
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	u.svc.audit(ctx, &AuditEntry{
		Action:       AuditActionAssigned,
		RoleID:       roleID,
		TargetUserID: userID,
	})
	return true, nil
}

// Unassign removes a role from a user. Returns true when an assignment was
// removed.
func (u *UserManager) Unassign(ctx context.Context, role string, userID int64) (bool, error) {
	if userID < 0 {
		return false, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}

	roleID, err := u.svc.roles.Resolve(ctx, role)
	if err != nil {
		return false, err
	}

	res, err := u.svc.db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE userid = ? AND roleid = ?", u.svc.table("userroles")),
		userID, roleID,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "DeleteUserAssignment").Err(); err != nil {
		return false, err
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	u.svc.audit(ctx, &AuditEntry{
		Action:       AuditActionUnassigned,
		RoleID:       roleID,
		TargetUserID: userID,
	})
	return true, nil
}

// HasRole reports whether a user holds a role, directly or through a more
// senior assignment: an assignment to any ancestor of the role counts.
func (u *UserManager) HasRole(ctx context.Context, role string, userID int64) (bool, error) {
	if userID < 0 {
		return false, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}

	roleID, err := u.svc.roles.Resolve(ctx, role)
	if err != nil {
		return false, err
	}

	qry := fmt.Sprintf(`SELECT 1
          FROM %s AS tur
          JOIN %[2]s trdirect ON trdirect.id = tur.roleid
          JOIN %[2]s tr ON tr.lft BETWEEN trdirect.lft AND trdirect.rght
         WHERE tur.userid = ?
           AND tr.id = ?
         LIMIT 1`, u.svc.table("userroles"), u.svc.table("roles"))

	var found int
	err = u.svc.db.NewRaw(qry, userID, roleID).Scan(ctx, &found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return false, nil
		}
		return false, dbkit.WithErr1(err, "UserHasRole").Err()
	}
	return true, nil
}

// Roles returns the roles directly assigned to a user, without hierarchy
// expansion. A user with no assignments yields nil, distinct from an empty
// slice: nil means no assignment rows exist at all.
func (u *UserManager) Roles(ctx context.Context, userID int64) ([]Node, error) {
	if userID < 0 {
		return nil, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}

	qry := fmt.Sprintf(`SELECT r.id, r.lft, r.rght, r.title, COALESCE(r.description, '') AS description
          FROM %s ur
          JOIN %s r ON r.id = ur.roleid
         WHERE ur.userid = ?
      ORDER BY r.id`, u.svc.table("userroles"), u.svc.table("roles"))

	var nodes []Node
	err := u.svc.db.NewRaw(qry, userID).Scan(ctx, &nodes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, dbkit.WithErr1(err, "UserRoles").Err()
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes, nil
}

// RoleCount returns the number of roles directly assigned to a user.
func (u *UserManager) RoleCount(ctx context.Context, userID int64) (int, error) {
	if userID < 0 {
		return 0, NewError(ErrUserNotProvided, "a user id is required").WithUser(userID)
	}

	return dbkit.Count[UserRole](ctx, u.svc.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.ModelTableExpr(u.svc.table("userroles") + " AS ur").
			Where("ur.userid = ?", userID)
	})
}

// ResetAssignments clears the user-role relation and re-establishes its
// bootstrap fixed point: user 1 holding the root role. Requires confirm.
func (u *UserManager) ResetAssignments(ctx context.Context, confirm bool) error {
	if !confirm {
		return NewError(ErrConfirmationRequired, "pass confirm=true to reset user assignments")
	}

	err := u.svc.Transaction(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		_, err := tx.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s", u.svc.table("userroles"))).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "ResetUserAssignments").Err()
		}

		_, err = tx.NewRaw(
			fmt.Sprintf(`INSERT INTO %s (userid, roleid, assignmentdate)
                 VALUES (?, ?, EXTRACT(EPOCH FROM now())::BIGINT)`, u.svc.table("userroles")),
			BootstrapUserID, RootID,
		).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "ResetUserAssignmentsBootstrap").Err()
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.svc.audit(ctx, &AuditEntry{Action: AuditActionReset, TargetUserID: BootstrapUserID})
	return nil
}
