// Package rbackit provides hierarchical role-based access control backed by
// a relational database.
//
// RBACKit maintains two independent trees, one of roles and one of
// permissions, stored as nested sets. Roles model seniority: a role inherits
// every permission granted to any of its descendants. Permissions model
// specificity: granting a broad permission implies every finer permission
// beneath it. Users are linked to roles through a flat assignment table,
// and the access decision closes over both trees.
//
// # Core Concepts
//
// Role: a node in the role tree. Every tree has a single root node with
// id 1 and title "root". Ancestor roles are the senior ones: "/org"
// inherits every permission granted to "/org/eng" or "/org/eng/backend".
//
// Permission: a node in the permission tree. A role granted "/files"
// also passes checks for "/files/upload": the coarse grant covers every
// permission in its subtree.
//
// Grant: a direct role-permission edge. Inheritance is resolved at query
// time from the two trees; grants themselves stay flat.
//
// Reference: most operations accept an id (int64), a slash path
// ("/org/eng") or a bare title ("eng"). Bare titles resolve to the lowest
// matching id when the title is duplicated.
//
// # Basic Usage
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := rbackit.NewService(db)
//
//	// Run migrations once at startup.
//	_, _ = db.Migrate(ctx, rbackit.NewMigrationService(service).Migrations())
//
//	// Build the trees.
//	service.Roles().AddPath(ctx, "/org/eng/backend", nil)
//	service.Permissions().AddPath(ctx, "/write/deploy", nil)
//
//	// Grant and assign.
//	service.Grant(ctx, "/org/eng/backend", "/write")
//	service.Users().Assign(ctx, "/org/eng", 42)
//
//	// Decide.
//	ok, err := service.Check(ctx, 42, "/write/deploy") // true: eng covers backend's grant on /write
//
// # Destructive Operations
//
// Reset, ResetGrants, ResetAssignments and ResetAll clear persisted state
// and require an explicit confirm argument; they fail with
// ErrConfirmationRequired otherwise. After a reset the bootstrap state is
// restored: each tree holds only its root node, the root role is granted
// the root permission, and user 1 holds the root role.
//
// # Error Handling
//
// All database operations go through dbkit's error wrapping, so failures
// carry the operation name and classify with dbkit.IsNotFound and
// dbkit.IsDuplicate. Domain failures use sentinel errors (ErrNodeNotFound,
// ErrInvalidTitle, ...) wrapped in *Error with node and user context
// attached; they match with errors.Is.
package rbackit
