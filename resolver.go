package rbackit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fernandezvara/dbkit"
)

// Reference addressing: every public operation that names a role or
// permission accepts one of three forms in a single string.
//
//   - a numeric id ("42"), used verbatim without an existence check;
//     dangling ids surface as a not-found downstream;
//   - a slash path ("/org/eng"), resolved against the ancestor title
//     chain with the root excluded;
//   - a bare title ("eng"), resolved to the lowest matching id when the
//     title is duplicated.

// Resolve maps a mixed reference to a node id.
func (h *hierarchyStore) Resolve(ctx context.Context, reference string) (int64, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return 0, NewError(ErrInvalidReference, "empty reference").WithHierarchy(h.name)
	}

	if id, err := strconv.ParseInt(reference, 10, 64); err == nil {
		return id, nil
	}

	if strings.HasPrefix(reference, "/") {
		return h.PathID(ctx, reference)
	}

	return h.TitleID(ctx, reference)
}

// TitleID returns the id of the node carrying a title. Titles are not
// unique; the lowest id wins, deterministically.
func (h *hierarchyStore) TitleID(ctx context.Context, title string) (int64, error) {
	var id int64
	err := h.db.NewRaw(
		fmt.Sprintf("SELECT id FROM %s WHERE title = ? ORDER BY id LIMIT 1", h.table),
		title,
	).Scan(ctx, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return 0, NewError(ErrNodeNotFound, "no node with this title").
				WithHierarchy(h.name).
				WithReference(title)
		}
		return 0, dbkit.WithErr1(err, "HierarchyTitleID").Err()
	}
	return id, nil
}

// PathID returns the id of the node addressed by a slash path. The path
// names every ancestor title below the root, in descending order; "/" is
// the root itself.
func (h *hierarchyStore) PathID(ctx context.Context, path string) (int64, error) {
	if !strings.HasPrefix(path, "/") {
		return 0, NewError(ErrInvalidReference, "path must start with /").
			WithHierarchy(h.name).
			WithReference(path)
	}

	full := "root" + strings.TrimSuffix(path, "/")
	if full == "root" {
		return RootID, nil
	}
	parts := strings.Split(full, "/")

	// A node matches when the titles of its ancestor chain (self included,
	// ordered by lft) concatenate to the requested path.
	qry := fmt.Sprintf(`SELECT node.id
          FROM %[1]s AS node,
               %[1]s AS parent
         WHERE node.lft BETWEEN parent.lft AND parent.rght
           AND node.title = ?
         GROUP BY node.id
        HAVING STRING_AGG(parent.title, '/' ORDER BY parent.lft) = ?`, h.table)

	var id int64
	err := h.db.NewRaw(qry, parts[len(parts)-1], full).Scan(ctx, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbkit.IsNotFound(err) {
			return 0, NewError(ErrNodeNotFound, "no node at this path").
				WithHierarchy(h.name).
				WithReference(path)
		}
		return 0, dbkit.WithErr1(err, "HierarchyPathID").Err()
	}
	return id, nil
}

// Path renders the slash path of a node: the titles of its ancestors from
// (but excluding) the root down to the node itself. The root renders as "/".
func (h *hierarchyStore) Path(ctx context.Context, id int64) (string, error) {
	qry := fmt.Sprintf(`SELECT parent.title
          FROM %[1]s AS node,
               %[1]s AS parent
         WHERE node.lft BETWEEN parent.lft AND parent.rght
           AND node.id = ?
      ORDER BY parent.lft`, h.table)

	var titles []string
	err := h.db.NewRaw(qry, id).Scan(ctx, &titles)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", dbkit.WithErr1(err, "HierarchyPath").Err()
	}
	if len(titles) == 0 {
		return "", NewError(ErrNodeNotFound, "node does not exist").
			WithHierarchy(h.name).
			WithNode(id)
	}
	if len(titles) == 1 {
		return "/", nil
	}
	return "/" + strings.Join(titles[1:], "/"), nil
}
