package rbackit

import (
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an
// extension to Service. Table names honor the service's table prefix.
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension.
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// Migrations returns all database migrations required for RBACKit.
// Use dbkit.Migrate(ctx, service.Migrations()) to run migrations.
// Use dbkit.MigrationStatus(ctx, service.Migrations()) to check status.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	roles := ms.table("roles")
	permissions := ms.table("permissions")
	rolePerms := ms.table("rolepermissions")
	userRoles := ms.table("userroles")
	auditLog := ms.table("audit_log")

	nestedSet := func(tbl string) string {
		return fmt.Sprintf(`
                CREATE TABLE IF NOT EXISTS %[1]s (
                    id BIGSERIAL PRIMARY KEY,
                    lft BIGINT NOT NULL,
                    rght BIGINT NOT NULL,
                    title TEXT NOT NULL,
                    description TEXT
                );
                CREATE INDEX IF NOT EXISTS %[1]s_lft_idx ON %[1]s (lft);
                CREATE INDEX IF NOT EXISTS %[1]s_rght_idx ON %[1]s (rght);
                CREATE INDEX IF NOT EXISTS %[1]s_title_idx ON %[1]s (title)`, tbl)
	}

	return []dbkit.Migration{
		{
			ID:          "rbackit-001",
			Description: "Create roles hierarchy table",
			SQL:         nestedSet(roles),
		},
		{
			ID:          "rbackit-002",
			Description: "Create permissions hierarchy table",
			SQL:         nestedSet(permissions),
		},
		{
			ID:          "rbackit-003",
			Description: "Create role-permission grants table",
			SQL: fmt.Sprintf(`
                CREATE TABLE IF NOT EXISTS %[1]s (
                    roleid BIGINT NOT NULL,
                    permissionid BIGINT NOT NULL,
                    assignmentdate BIGINT NOT NULL,
                    PRIMARY KEY (roleid, permissionid)
                );
                CREATE INDEX IF NOT EXISTS %[1]s_permissionid_idx ON %[1]s (permissionid)`, rolePerms),
		},
		{
			ID:          "rbackit-004",
			Description: "Create user-role assignments table",
			SQL: fmt.Sprintf(`
                CREATE TABLE IF NOT EXISTS %[1]s (
                    userid BIGINT NOT NULL,
                    roleid BIGINT NOT NULL,
                    assignmentdate BIGINT NOT NULL,
                    PRIMARY KEY (userid, roleid)
                );
                CREATE INDEX IF NOT EXISTS %[1]s_roleid_idx ON %[1]s (roleid)`, userRoles),
		},
		{
			ID:          "rbackit-005",
			Description: "Create audit log table",
			SQL: fmt.Sprintf(`
                CREATE TABLE IF NOT EXISTS %s (
                    id BIGSERIAL PRIMARY KEY,
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id BIGINT NOT NULL DEFAULT 0,
                    action TEXT NOT NULL,
                    role_id BIGINT NOT NULL DEFAULT 0,
                    permission_id BIGINT NOT NULL DEFAULT 0,
                    target_user_id BIGINT NOT NULL DEFAULT 0,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT
                )`, auditLog),
		},
		{
			ID:          "rbackit-006",
			Description: "Seed root nodes and bootstrap assignments",
			SQL: fmt.Sprintf(`
                INSERT INTO %[1]s (lft, rght, title, description)
                SELECT 0, 1, 'root', 'root'
                 WHERE NOT EXISTS (SELECT 1 FROM %[1]s);
                INSERT INTO %[2]s (lft, rght, title, description)
                SELECT 0, 1, 'root', 'root'
                 WHERE NOT EXISTS (SELECT 1 FROM %[2]s);
                INSERT INTO %[3]s (roleid, permissionid, assignmentdate)
                SELECT 1, 1, EXTRACT(EPOCH FROM now())::BIGINT
                 WHERE NOT EXISTS (SELECT 1 FROM %[3]s);
                INSERT INTO %[4]s (userid, roleid, assignmentdate)
                SELECT 1, 1, EXTRACT(EPOCH FROM now())::BIGINT
                 WHERE NOT EXISTS (SELECT 1 FROM %[4]s)`,
				roles, permissions, rolePerms, userRoles),
		},
	}
}
