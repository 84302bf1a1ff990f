package rbackit

import (
	"context"
	"fmt"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// PermissionCatalog manages the permission hierarchy. Permissions model
// specificity: granting a permission implies every finer-grained permission
// beneath it, so coarse capabilities sit near the root.
//
// Deleting a permission also clears its grants; deleting a subtree clears
// them for every removed permission.
type PermissionCatalog struct {
	catalog
}

func newPermissionCatalog(svc *Service, monitor *transactionMonitor) *PermissionCatalog {
	pc := &PermissionCatalog{}
	pc.store = newHierarchyStore(svc.db, "permissions", svc.table("permissions"), monitor)
	pc.svc = svc
	pc.unassign = pc.unassignRelations
	pc.clearRelations = pc.clearAllRelations
	return pc
}

// unassignRelations drops grants referencing the given permissions.
func (pc *PermissionCatalog) unassignRelations(ctx context.Context, db dbkit.IDB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE permissionid IN (?)", pc.svc.table("rolepermissions")),
		bun.In(ids),
	).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "PermissionUnassignRoles").Err()
	}
	return nil
}

// clearAllRelations empties the grant relation referencing the permission
// hierarchy.
func (pc *PermissionCatalog) clearAllRelations(ctx context.Context, db dbkit.IDB) error {
	_, err := db.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s", pc.svc.table("rolepermissions"))).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "PermissionResetGrants").Err()
	}
	return nil
}

// UnassignRoles removes every grant of a permission and returns how many
// were removed.
func (pc *PermissionCatalog) UnassignRoles(ctx context.Context, id int64) (int, error) {
	res, err := pc.svc.db.NewRaw(
		fmt.Sprintf("DELETE FROM %s WHERE permissionid = ?", pc.svc.table("rolepermissions")),
		id,
	).Exec(ctx)
	if err = dbkit.WithErr(res, err, "PermissionUnassignRoles").Err(); err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}
