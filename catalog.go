package rbackit

import (
	"context"
	"strings"

	"github.com/fernandezvara/dbkit"
)

// catalog is the shared behavior of the role and permission catalogs: a
// domain vocabulary over one hierarchyStore instance. Relation cleanup on
// delete and reset differs per catalog and is supplied by the owner.
type catalog struct {
	store *hierarchyStore
	svc   *Service

	// unassign removes every relation row referencing the given node ids.
	// Runs inside the same transaction as the structural delete.
	unassign func(ctx context.Context, db dbkit.IDB, ids []int64) error

	// clearRelations empties every relation referencing this hierarchy.
	// Runs inside the reset transaction.
	clearRelations func(ctx context.Context, db dbkit.IDB) error
}

// Add creates a new entry under parentID and returns its id. A parentID of
// zero means the hierarchy root.
func (c *catalog) Add(ctx context.Context, title, description string, parentID int64) (int64, error) {
	if parentID == 0 {
		parentID = RootID
	}
	return c.store.InsertChild(ctx, parentID, title, description)
}

// AddPath creates every missing component of a slash path and returns the
// number of nodes created. Existing components are reused, never duplicated
// as siblings. Descriptions apply positionally to the path components;
// missing entries mean an empty description.
func (c *catalog) AddPath(ctx context.Context, path string, descriptions []string) (int, error) {
	if len(path) == 0 || path[0] != '/' {
		return 0, NewError(ErrInvalidReference, "path must start with /").
			WithHierarchy(c.store.name).
			WithReference(path)
	}

	parts := splitPath(path)
	parent := RootID
	current := ""
	created := 0

	for i, part := range parts {
		description := ""
		if i < len(descriptions) {
			description = descriptions[i]
		}

		current += "/" + part

		id, err := c.store.PathID(ctx, current)
		switch {
		case err == nil:
			parent = id
		case IsNodeNotFound(err):
			id, err = c.store.InsertChild(ctx, parent, part, description)
			if err != nil {
				return created, err
			}
			parent = id
			created++
		default:
			return created, err
		}
	}

	return created, nil
}

// Remove deletes a node. When recursive is false its direct children are
// reparented to the node's former parent; when true the entire subtree goes.
// Relations referencing any removed node are cleared in the same
// transaction. Returns false without error for the root or an unknown id.
func (c *catalog) Remove(ctx context.Context, id int64, recursive bool) (bool, error) {
	if id == RootID {
		return false, nil
	}

	removed := false

	err := c.store.mutate(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		txStore := c.store.withDB(tx)

		var (
			ids []int64
			ok  bool
			err error
		)
		if recursive {
			ids, ok, err = txStore.DeleteSubtree(ctx, id)
		} else {
			ok, err = txStore.DeleteCollapsing(ctx, id)
			ids = []int64{id}
		}
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := c.unassign(ctx, tx, ids); err != nil {
			return err
		}

		removed = true
		return nil
	})

	return removed, err
}

// Rename applies a partial update; nil fields are left unchanged, both nil
// is a no-op success.
func (c *catalog) Rename(ctx context.Context, id int64, title, description *string) error {
	return c.store.Rename(ctx, id, title, description)
}

// Resolve maps an id, slash path or bare title to a node id.
func (c *catalog) Resolve(ctx context.Context, reference string) (int64, error) {
	return c.store.Resolve(ctx, reference)
}

// PathOf renders the slash path of a node; the root renders as "/".
func (c *catalog) PathOf(ctx context.Context, id int64) (string, error) {
	return c.store.Path(ctx, id)
}

// TitleOf returns a node's title.
func (c *catalog) TitleOf(ctx context.Context, id int64) (string, error) {
	node, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return node.Title, nil
}

// DescriptionOf returns a node's description; empty when unset.
func (c *catalog) DescriptionOf(ctx context.Context, id int64) (string, error) {
	node, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return node.Description, nil
}

// Get fetches a single node by id.
func (c *catalog) Get(ctx context.Context, id int64) (*Node, error) {
	return c.store.Get(ctx, id)
}

// Children returns the direct children of a node in left-to-right order.
func (c *catalog) Children(ctx context.Context, id int64) ([]Node, error) {
	return c.store.Children(ctx, id)
}

// Descendants returns all strict descendants of a node, each annotated
// with its depth relative to that node.
func (c *catalog) Descendants(ctx context.Context, id int64) ([]NodeDepth, error) {
	return c.store.Descendants(ctx, id)
}

// Depth returns a node's distance from the root; 0 for the root.
func (c *catalog) Depth(ctx context.Context, id int64) (int, error) {
	return c.store.Depth(ctx, id)
}

// Parent returns the immediate parent of a node, or nil for the root.
func (c *catalog) Parent(ctx context.Context, id int64) (*Node, error) {
	return c.store.Parent(ctx, id)
}

// Count returns the total number of nodes, root included.
func (c *catalog) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// Reset destroys every node in this hierarchy together with every grant or
// assignment referencing it, then recreates the root node. Requires
// confirm; fails with ErrConfirmationRequired otherwise.
func (c *catalog) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return NewError(ErrConfirmationRequired, "pass confirm=true to reset the hierarchy").
			WithHierarchy(c.store.name)
	}

	err := c.store.mutate(ctx, func(ctx context.Context, tx *dbkit.Tx) error {
		if err := c.clearRelations(ctx, tx); err != nil {
			return err
		}
		return c.store.resetOn(ctx, tx)
	})
	if err != nil {
		return err
	}

	c.svc.audit(ctx, &AuditEntry{Action: AuditActionReset})
	return nil
}

// withDB returns a store bound to another connection or transaction.
func (h *hierarchyStore) withDB(db dbkit.IDB) *hierarchyStore {
	return &hierarchyStore{
		db:      db,
		name:    h.name,
		table:   h.table,
		monitor: h.monitor,
	}
}

// splitPath breaks "/a/b/c" into its components, tolerating a trailing
// slash.
func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
