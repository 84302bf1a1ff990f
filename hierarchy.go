package rbackit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// hierarchyStore owns one nested-set tree (roles or permissions). It is the
// only writer of the lft/rght columns; catalogs delegate every structural
// operation here.
//
// Structural mutations touch a range of rows beyond the node being changed,
// so they always run inside a serializable transaction: a half-applied
// interval shift corrupts ancestor queries for the whole tree, not just the
// mutated subtree.
type hierarchyStore struct {
	db      dbkit.IDB
	name    string // "roles" or "permissions", for error context
	table   string // prefixed table name
	monitor *transactionMonitor
}

func newHierarchyStore(db dbkit.IDB, name, table string, monitor *transactionMonitor) *hierarchyStore {
	return &hierarchyStore{
		db:      db,
		name:    name,
		table:   table,
		monitor: monitor,
	}
}

// mutate runs fn inside a serializable transaction, recording the outcome in
// the transaction monitor. When the store already operates on a transaction
// a savepoint is used instead.
func (h *hierarchyStore) mutate(ctx context.Context, fn func(ctx context.Context, tx *dbkit.Tx) error) error {
	start := time.Now()
	var err error

	switch db := h.db.(type) {
	case *dbkit.Tx:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, tx)
		})
	case *dbkit.DBKit:
		err = db.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(tx *dbkit.Tx) error {
			return fn(ctx, tx)
		})
	default:
		err = NewError(ErrStorage, "structural mutations require a dbkit.DBKit or dbkit.Tx instance")
	}

	if h.monitor != nil {
		h.monitor.recordTransaction(time.Since(start), err == nil)
	}

	return err
}

// InsertChild places a new node under parentID and returns its id.
// The parent's interval widens by 2 and every interval at or beyond the
// insertion point shifts right, all within one transaction.
func (h *hierarchyStore) InsertChild(ctx context.Context, parentID int64, title, description string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, NewError(ErrInvalidTitle, "title must not be empty").WithHierarchy(h.name)
	}

	var id int64

	err := h.mutate(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		var lft, rght int64
		err := tx.NewRaw(fmt.Sprintf("SELECT lft, rght FROM %s WHERE id = ?", h.table), parentID).Scan(ctx, &lft, &rght)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
				return NewError(ErrNodeNotFound, "parent does not exist").
					WithHierarchy(h.name).
					WithNode(parentID)
			}
			return dbkit.WithErr1(err, "HierarchyInsertChild").Err()
		}

		// The new node takes over the parent's right edge; everything at or
		// beyond it moves over by 2.
		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET rght = rght + 2 WHERE rght >= ?", h.table), rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyShiftRight").Err()
		}
		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET lft = lft + 2 WHERE lft > ?", h.table), rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyShiftLeft").Err()
		}

		err = tx.NewRaw(
			fmt.Sprintf("INSERT INTO %s (lft, rght, title, description) VALUES (?, ?, ?, ?) RETURNING id", h.table),
			rght, rght+1, title, nullIfBlank(description),
		).Scan(ctx, &id)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyInsertNode").Err()
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// DeleteCollapsing removes exactly one node and reparents its direct
// children to the node's former parent, keeping their relative order.
// Returns false without error when the id does not exist; the root is never
// deleted.
func (h *hierarchyStore) DeleteCollapsing(ctx context.Context, id int64) (bool, error) {
	if id == RootID {
		return false, nil
	}

	deleted := false

	err := h.mutate(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		var lft, rght int64
		err := tx.NewRaw(fmt.Sprintf("SELECT lft, rght FROM %s WHERE id = ?", h.table), id).Scan(ctx, &lft, &rght)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
				return nil
			}
			return dbkit.WithErr1(err, "HierarchyDeleteCollapsing").Err()
		}

		res, err := tx.NewRaw(fmt.Sprintf("DELETE FROM %s WHERE id = ?", h.table), id).Exec(ctx)
		if err = dbkit.WithErr(res, err, "HierarchyDeleteNode").Err(); err != nil {
			return err
		}

		// Children climb one level: their intervals contract into the gap
		// left by the deleted node, then everything beyond closes up by 2.
		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET lft = lft - 1, rght = rght - 1 WHERE lft BETWEEN ? AND ?", h.table), lft, rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyCollapseChildren").Err()
		}
		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET lft = lft - 2 WHERE lft > ?", h.table), rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyTightenLeft").Err()
		}
		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET rght = rght - 2 WHERE rght > ?", h.table), rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyTightenRight").Err()
		}

		deleted = true
		return nil
	})

	return deleted, err
}

// DeleteSubtree removes a node and all of its descendants, returning the
// ids that were removed. Returns nil, false without error when the id does
// not exist; the root is never deleted.
func (h *hierarchyStore) DeleteSubtree(ctx context.Context, id int64) ([]int64, bool, error) {
	if id == RootID {
		return nil, false, nil
	}

	var removed []int64

	err := h.mutate(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		var lft, rght, width int64
		err := tx.NewRaw(fmt.Sprintf("SELECT lft, rght, rght - lft + 1 FROM %s WHERE id = ?", h.table), id).Scan(ctx, &lft, &rght, &width)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
				return nil
			}
			return dbkit.WithErr1(err, "HierarchyDeleteSubtree").Err()
		}

		err = tx.NewRaw(fmt.Sprintf("DELETE FROM %s WHERE lft BETWEEN ? AND ? RETURNING id", h.table), lft, rght).Scan(ctx, &removed)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyDeleteSubtreeNodes").Err()
		}

		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET lft = lft - ? WHERE lft > ?", h.table), width, rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyTightenLeft").Err()
		}
		_, err = tx.NewRaw(fmt.Sprintf("UPDATE %s SET rght = rght - ? WHERE rght > ?", h.table), width, rght).Exec(ctx)
		if err != nil {
			return dbkit.WithErr1(err, "HierarchyTightenRight").Err()
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return removed, len(removed) > 0, nil
}

// Children returns the direct children of a node in left-to-right order.
// A node without children (or an unknown id) yields an empty slice.
func (h *hierarchyStore) Children(ctx context.Context, id int64) ([]Node, error) {
	qry := fmt.Sprintf(`SELECT c.id, c.lft, c.rght, c.title, COALESCE(c.description, '') AS description
          FROM %[1]s p
          JOIN %[1]s c ON c.lft BETWEEN p.lft AND p.rght
         WHERE p.id = ?
           AND c.id != ?
           AND (SELECT COUNT(*)
                  FROM %[1]s n
                 WHERE c.lft BETWEEN n.lft AND n.rght
                   AND n.lft BETWEEN p.lft AND p.rght) <= 2
      ORDER BY c.lft`, h.table)

	nodes := make([]Node, 0)
	err := h.db.NewRaw(qry, id, id).Scan(ctx, &nodes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, dbkit.WithErr1(err, "HierarchyChildren").Err()
	}
	return nodes, nil
}

// Descendants returns every strict descendant of a node annotated with its
// depth relative to that node (1 for direct children), in left-to-right
// order. A leaf (or an unknown id) yields an empty slice.
func (h *hierarchyStore) Descendants(ctx context.Context, id int64) ([]NodeDepth, error) {
	qry := fmt.Sprintf(`SELECT node.id, node.lft, node.rght, node.title,
               COALESCE(node.description, '') AS description,
               (COUNT(parent.id) - (sub.innerdepth + 1)) AS depth
          FROM %[1]s AS node,
               %[1]s AS parent,
               %[1]s AS sub_parent,
               (SELECT node.id, COUNT(parent.id) - 1 AS innerdepth
                  FROM %[1]s AS node,
                       %[1]s AS parent
                 WHERE node.lft BETWEEN parent.lft AND parent.rght
                   AND node.id = ?
                 GROUP BY node.id) AS sub
         WHERE node.lft BETWEEN parent.lft AND parent.rght
           AND node.lft BETWEEN sub_parent.lft AND sub_parent.rght
           AND sub_parent.id = sub.id
         GROUP BY node.id, node.lft, node.rght, node.title, node.description, sub.innerdepth
        HAVING COUNT(parent.id) - (sub.innerdepth + 1) >= 1
      ORDER BY node.lft`, h.table)

	nodes := make([]NodeDepth, 0)
	err := h.db.NewRaw(qry, id).Scan(ctx, &nodes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, dbkit.WithErr1(err, "HierarchyDescendants").Err()
	}
	return nodes, nil
}

// Depth returns a node's distance from the root; 0 for the root itself.
func (h *hierarchyStore) Depth(ctx context.Context, id int64) (int, error) {
	qry := fmt.Sprintf(`SELECT COUNT(parent.id) - 1
          FROM %[1]s AS node,
               %[1]s AS parent
         WHERE node.lft BETWEEN parent.lft AND parent.rght
           AND node.id = ?
         GROUP BY node.id`, h.table)

	var depth int
	err := h.db.NewRaw(qry, id).Scan(ctx, &depth)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return 0, NewError(ErrNodeNotFound, "node does not exist").
				WithHierarchy(h.name).
				WithNode(id)
		}
		return 0, dbkit.WithErr1(err, "HierarchyDepth").Err()
	}
	return depth, nil
}

// Parent returns the immediate parent of a node, or nil for the root.
func (h *hierarchyStore) Parent(ctx context.Context, id int64) (*Node, error) {
	qry := fmt.Sprintf(`SELECT parent.id, parent.lft, parent.rght, parent.title,
               COALESCE(parent.description, '') AS description
          FROM %[1]s AS node,
               %[1]s AS parent
         WHERE node.lft BETWEEN parent.lft AND parent.rght
           AND node.id = ?
           AND parent.id != node.id
      ORDER BY parent.lft DESC
         LIMIT 1`, h.table)

	var parent Node
	err := h.db.NewRaw(qry, id).Scan(ctx, &parent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			// Every node except the root has an ancestor, so no rows means
			// either the root or a dangling id.
			exists, exErr := h.exists(ctx, id)
			if exErr != nil {
				return nil, exErr
			}
			if exists {
				return nil, nil
			}
			return nil, NewError(ErrNodeNotFound, "node does not exist").
				WithHierarchy(h.name).
				WithNode(id)
		}
		return nil, dbkit.WithErr1(err, "HierarchyParent").Err()
	}
	return &parent, nil
}

// Get fetches a single node by id.
func (h *hierarchyStore) Get(ctx context.Context, id int64) (*Node, error) {
	var node Node
	err := h.db.NewRaw(
		fmt.Sprintf("SELECT id, lft, rght, title, COALESCE(description, '') AS description FROM %s WHERE id = ?", h.table),
		id,
	).Scan(ctx, &node)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return nil, NewError(ErrNodeNotFound, "node does not exist").
				WithHierarchy(h.name).
				WithNode(id)
		}
		return nil, dbkit.WithErr1(err, "HierarchyGet").Err()
	}
	return &node, nil
}

// Rename applies a partial update to title and/or description. Nil fields
// stay unchanged; both nil is a successful no-op. A blank description is
// stored as NULL.
func (h *hierarchyStore) Rename(ctx context.Context, id int64, title, description *string) error {
	if title == nil && description == nil {
		return nil
	}

	var (
		set    []string
		params []interface{}
	)

	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return NewError(ErrInvalidTitle, "title must not be empty").
				WithHierarchy(h.name).
				WithNode(id)
		}
		set = append(set, "title = ?")
		params = append(params, t)
	}
	if description != nil {
		set = append(set, "description = ?")
		params = append(params, nullIfBlank(*description))
	}
	params = append(params, id)

	qry := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", h.table, strings.Join(set, ", "))
	res, err := h.db.NewRaw(qry, params...).Exec(ctx)
	if err = dbkit.WithErr(res, err, "HierarchyRename").Err(); err != nil {
		return err
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return NewError(ErrNodeNotFound, "node does not exist").
			WithHierarchy(h.name).
			WithNode(id)
	}
	return nil
}

// Count returns the total number of nodes, root included.
func (h *hierarchyStore) Count(ctx context.Context) (int, error) {
	var count int
	err := h.db.NewRaw(fmt.Sprintf("SELECT COUNT(*) FROM %s", h.table)).Scan(ctx, &count)
	if err != nil {
		return 0, dbkit.WithErr1(err, "HierarchyCount").Err()
	}
	return count, nil
}

// exists reports whether a node id is present.
func (h *hierarchyStore) exists(ctx context.Context, id int64) (bool, error) {
	return dbkit.Exists[Node](ctx, h.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.ModelTableExpr(h.table + " AS n").Where("n.id = ?", id)
	})
}

// resetOn empties the tree and reseeds the root node on the given
// connection or transaction. Sequence restart keeps the root at id 1.
// Callers clear relations referencing this hierarchy in the same
// transaction; confirmation is checked before this is reached.
func (h *hierarchyStore) resetOn(ctx context.Context, db dbkit.IDB) error {
	_, err := db.NewRaw(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", h.table)).Exec(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "HierarchyReset").Err()
	}

	var rootID int64
	err = db.NewRaw(
		fmt.Sprintf("INSERT INTO %s (lft, rght, title, description) VALUES (?, ?, ?, ?) RETURNING id", h.table),
		0, 1, "root", "root",
	).Scan(ctx, &rootID)
	if err != nil {
		return dbkit.WithErr1(err, "HierarchySeedRoot").Err()
	}
	if rootID != RootID {
		return NewError(ErrStorage, fmt.Sprintf("root reseeded with id %d, want %d", rootID, RootID)).WithHierarchy(h.name)
	}
	return nil
}

// nullIfBlank maps blank strings to NULL, matching the stored form of an
// absent description.
func nullIfBlank(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
