package rbackit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *dbkit.Tx) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context, tx *dbkit.Tx) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx *dbkit.Tx) error) error
}

// HierarchyManager defines the operations shared by both catalogs
type HierarchyManager interface {
	Add(ctx context.Context, title, description string, parentID int64) (int64, error)
	AddPath(ctx context.Context, path string, descriptions []string) (int, error)
	Remove(ctx context.Context, id int64, recursive bool) (bool, error)
	Rename(ctx context.Context, id int64, title, description *string) error
	Resolve(ctx context.Context, reference string) (int64, error)
	PathOf(ctx context.Context, id int64) (string, error)
	TitleOf(ctx context.Context, id int64) (string, error)
	DescriptionOf(ctx context.Context, id int64) (string, error)
	Get(ctx context.Context, id int64) (*Node, error)
	Children(ctx context.Context, id int64) ([]Node, error)
	Descendants(ctx context.Context, id int64) ([]NodeDepth, error)
	Depth(ctx context.Context, id int64) (int, error)
	Parent(ctx context.Context, id int64) (*Node, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context, confirm bool) error
}

// AccessChecker defines the permission decision interface
type AccessChecker interface {
	Check(ctx context.Context, userID int64, permission string) (bool, error)
	CheckByID(ctx context.Context, userID, permissionID int64) (bool, error)
	CheckFromContext(ctx context.Context, permission string) (bool, error)
	RoleHasPermission(ctx context.Context, role, permission string) (bool, error)
	RoleGrants(ctx context.Context, role string) ([]int64, error)
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	OptimizeConnectionPool() error
	ResetConnectionPool() error
}

// TransactionMonitor defines the transaction monitoring interface
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}
