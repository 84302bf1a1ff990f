package rbackit

import (
	"context"
	"fmt"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// RoleCatalog manages the role hierarchy. Roles model seniority: a role
// inherits every permission granted to any of its descendants, so the
// broadest role sits at the root and the most junior roles at the leaves.
//
// Deleting a role also clears its grants and user assignments; deleting a
// subtree clears them for every removed role.
type RoleCatalog struct {
	catalog
}

func newRoleCatalog(svc *Service, monitor *transactionMonitor) *RoleCatalog {
	rc := &RoleCatalog{}
	rc.store = newHierarchyStore(svc.db, "roles", svc.table("roles"), monitor)
	rc.svc = svc
	rc.unassign = rc.unassignRelations
	rc.clearRelations = rc.clearAllRelations
	return rc
}

// unassignRelations drops grants and user assignments for the given roles.
func (rc *RoleCatalog) unassignRelations(ctx context.Context, db dbkit.IDB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE roleid IN (?)", rc.svc.table("rolepermissions")),
		bun.In(ids),
	).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "RoleUnassignPermissions").Err()
	}

	_, err = db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE roleid IN (?)", rc.svc.table("userroles")),
		bun.In(ids),
	).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "RoleUnassignUsers").Err()
	}

	return nil
}

// clearAllRelations empties both relations referencing the role hierarchy.
func (rc *RoleCatalog) clearAllRelations(ctx context.Context, db dbkit.IDB) error {
	_, err := db.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s", rc.svc.table("rolepermissions"))).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "RoleResetGrants").Err()
	}
	_, err = db.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s", rc.svc.table("userroles"))).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "RoleResetUserAssignments").Err()
	}
	return nil
}

// UnassignPermissions removes every grant held by a role and returns how
// many were removed.
func (rc *RoleCatalog) UnassignPermissions(ctx context.Context, id int64) (int, error) {
	res, err := rc.svc.db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE roleid = ?", rc.svc.table("rolepermissions")),
		id,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "RoleUnassignPermissions").Err(); err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}

// UnassignUsers removes every user assignment of a role and returns how
// many were removed.
func (rc *RoleCatalog) UnassignUsers(ctx context.Context, id int64) (int, error) {
	res, err := rc.svc.db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE roleid = ?", rc.svc.table("userroles")),
		id,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "RoleUnassignUsers").Err(); err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}
