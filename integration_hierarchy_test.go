package rbackit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHierarchyInsertAndLookup tests basic tree construction against a real database
func TestHierarchyInsertAndLookup(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.GetService()
	ctx := h.GetContext()

	adminID, err := svc.Roles().Add(ctx, "admin", "administrators", 0)
	require.NoError(t, err)
	assert.Greater(t, adminID, int64(1))

	opsID, err := svc.Roles().Add(ctx, "ops", "", adminID)
	require.NoError(t, err)

	t.Run("Get returns stored fields", func(t *testing.T) {
		node, err := svc.Roles().Get(ctx, adminID)
		require.NoError(t, err)
		assert.Equal(t, "admin", node.Title)
		assert.Equal(t, "administrators", node.Description)
		assert.False(t, node.IsRoot())
	})

	t.Run("Depth counts edges from root", func(t *testing.T) {
		depth, err := svc.Roles().Depth(ctx, RootID)
		require.NoError(t, err)
		assert.Equal(t, 0, depth)

		depth, err = svc.Roles().Depth(ctx, opsID)
		require.NoError(t, err)
		assert.Equal(t, 2, depth)
	})

	t.Run("Parent walks one level up", func(t *testing.T) {
		parent, err := svc.Roles().Parent(ctx, opsID)
		require.NoError(t, err)
		require.NotNil(t, parent)
		assert.Equal(t, adminID, parent.ID)

		parent, err = svc.Roles().Parent(ctx, RootID)
		require.NoError(t, err)
		assert.Nil(t, parent)
	})

	t.Run("Unknown id fails with node not found", func(t *testing.T) {
		_, err := svc.Roles().Get(ctx, 99999)
		assert.True(t, IsNodeNotFound(err))

		_, err = svc.Roles().Depth(ctx, 99999)
		assert.True(t, IsNodeNotFound(err))

		_, err = svc.Roles().Parent(ctx, 99999)
		assert.True(t, IsNodeNotFound(err))
	})

	t.Run("Empty title is rejected", func(t *testing.T) {
		_, err := svc.Roles().Add(ctx, "   ", "", 0)
		assert.True(t, IsInvalidTitle(err))
	})

	t.Run("Missing parent is rejected", func(t *testing.T) {
		_, err := svc.Roles().Add(ctx, "orphan", "", 99999)
		assert.True(t, IsNodeNotFound(err))
	})
}

// TestHierarchyChildrenAndDescendants tests subtree queries
func TestHierarchyChildrenAndDescendants(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.SetupOrgTree()
	ctx := h.GetContext()

	orgID := h.MustRoleID("/org")
	engID := h.MustRoleID("/org/eng")

	t.Run("Children are direct only, in insertion order", func(t *testing.T) {
		children, err := svc.Roles().Children(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "eng", children[0].Title)
		assert.Equal(t, "sales", children[1].Title)
	})

	t.Run("Leaf has no children", func(t *testing.T) {
		children, err := svc.Roles().Children(ctx, h.MustRoleID("/org/sales"))
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("Descendants carry relative depth", func(t *testing.T) {
		desc, err := svc.Roles().Descendants(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, desc, 4)

		byTitle := map[string]int{}
		for _, d := range desc {
			byTitle[d.Title] = d.Depth
		}
		assert.Equal(t, 1, byTitle["eng"])
		assert.Equal(t, 2, byTitle["backend"])
		assert.Equal(t, 2, byTitle["frontend"])
		assert.Equal(t, 1, byTitle["sales"])
	})

	t.Run("Descendants of a mid node are relative to it", func(t *testing.T) {
		desc, err := svc.Roles().Descendants(ctx, engID)
		require.NoError(t, err)
		require.Len(t, desc, 2)
		assert.Equal(t, 1, desc[0].Depth)
		assert.Equal(t, 1, desc[1].Depth)
	})

	t.Run("Count includes the root", func(t *testing.T) {
		count, err := svc.Roles().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, count)
	})
}

// TestHierarchyPaths tests path resolution in both directions
func TestHierarchyPaths(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.SetupOrgTree()
	ctx := h.GetContext()

	t.Run("PathOf inverts AddPath", func(t *testing.T) {
		id := h.MustRoleID("/org/eng/backend")
		path, err := svc.Roles().PathOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "/org/eng/backend", path)
	})

	t.Run("Root path is a single slash", func(t *testing.T) {
		path, err := svc.Roles().PathOf(ctx, RootID)
		require.NoError(t, err)
		assert.Equal(t, "/", path)
	})

	t.Run("Slash resolves to the root", func(t *testing.T) {
		id, err := svc.Roles().Resolve(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, RootID, id)
	})

	t.Run("Trailing slash is tolerated", func(t *testing.T) {
		id, err := svc.Roles().Resolve(ctx, "/org/eng/")
		require.NoError(t, err)
		assert.Equal(t, h.MustRoleID("/org/eng"), id)
	})

	t.Run("Numeric reference is taken verbatim", func(t *testing.T) {
		id, err := svc.Roles().Resolve(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), id) // "2" is an id, never a title or path
	})

	t.Run("Title resolves to lowest id on duplicates", func(t *testing.T) {
		// Two nodes titled "qa" in different subtrees
		first, err := svc.Roles().Add(ctx, "qa", "", h.MustRoleID("/org/eng"))
		require.NoError(t, err)
		_, err = svc.Roles().Add(ctx, "qa", "", h.MustRoleID("/org/sales"))
		require.NoError(t, err)

		id, err := svc.Roles().Resolve(ctx, "qa")
		require.NoError(t, err)
		assert.Equal(t, first, id)
	})

	t.Run("Unknown path fails", func(t *testing.T) {
		_, err := svc.Roles().Resolve(ctx, "/org/missing")
		assert.True(t, IsNodeNotFound(err))
	})

	t.Run("Empty reference fails", func(t *testing.T) {
		_, err := svc.Roles().Resolve(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidReference)
	})
}

// TestHierarchyAddPath tests multi-component creation
func TestHierarchyAddPath(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.GetService()
	ctx := h.GetContext()

	t.Run("Creates all missing components", func(t *testing.T) {
		created, err := svc.Roles().AddPath(ctx, "/a/b/c", nil)
		require.NoError(t, err)
		assert.Equal(t, 3, created)
	})

	t.Run("Reuses existing components", func(t *testing.T) {
		created, err := svc.Roles().AddPath(ctx, "/a/b/d", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, created)
	})

	t.Run("Fully existing path creates nothing", func(t *testing.T) {
		created, err := svc.Roles().AddPath(ctx, "/a/b/c", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, created)
	})

	t.Run("Descriptions apply positionally", func(t *testing.T) {
		_, err := svc.Roles().AddPath(ctx, "/x/y", []string{"level x", "level y"})
		require.NoError(t, err)

		desc, err := svc.Roles().DescriptionOf(ctx, h.MustRoleID("/x/y"))
		require.NoError(t, err)
		assert.Equal(t, "level y", desc)
	})

	t.Run("Path must start with a slash", func(t *testing.T) {
		_, err := svc.Roles().AddPath(ctx, "a/b", nil)
		assert.ErrorIs(t, err, ErrInvalidReference)
	})
}

// TestHierarchyRename tests partial updates
func TestHierarchyRename(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.GetService()
	ctx := h.GetContext()

	id, err := svc.Roles().Add(ctx, "editor", "can edit", 0)
	require.NoError(t, err)

	strPtr := func(s string) *string { return &s }

	t.Run("Title only, description preserved", func(t *testing.T) {
		require.NoError(t, svc.Roles().Rename(ctx, id, strPtr("writer"), nil))

		node, err := svc.Roles().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "writer", node.Title)
		assert.Equal(t, "can edit", node.Description)
	})

	t.Run("Description only, title preserved", func(t *testing.T) {
		require.NoError(t, svc.Roles().Rename(ctx, id, nil, strPtr("can write")))

		node, err := svc.Roles().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "writer", node.Title)
		assert.Equal(t, "can write", node.Description)
	})

	t.Run("Both nil is a no-op success", func(t *testing.T) {
		assert.NoError(t, svc.Roles().Rename(ctx, id, nil, nil))
	})

	t.Run("Empty title is rejected", func(t *testing.T) {
		err := svc.Roles().Rename(ctx, id, strPtr(""), nil)
		assert.True(t, IsInvalidTitle(err))
	})

	t.Run("Unknown id fails", func(t *testing.T) {
		err := svc.Roles().Rename(ctx, 99999, strPtr("ghost"), nil)
		assert.True(t, IsNodeNotFound(err))
	})
}

// TestHierarchyRemove tests both delete modes and relation cleanup
func TestHierarchyRemove(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.SetupOrgTree()
	ctx := h.GetContext()

	t.Run("Collapsing delete reparents children", func(t *testing.T) {
		engID := h.MustRoleID("/org/eng")
		removed, err := svc.Roles().Remove(ctx, engID, false)
		require.NoError(t, err)
		assert.True(t, removed)

		// backend and frontend climb to /org
		id, err := svc.Roles().Resolve(ctx, "/org/backend")
		require.NoError(t, err)
		h.AssertDepth("/org/backend", 2)

		parent, err := svc.Roles().Parent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, h.MustRoleID("/org"), parent.ID)
	})

	t.Run("Subtree delete removes everything below", func(t *testing.T) {
		orgID := h.MustRoleID("/org")
		before, err := svc.Roles().Count(ctx)
		require.NoError(t, err)

		removed, err := svc.Roles().Remove(ctx, orgID, true)
		require.NoError(t, err)
		assert.True(t, removed)

		after, err := svc.Roles().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before-4, after) // org, backend, frontend, sales

		_, err = svc.Roles().Resolve(ctx, "/org")
		assert.True(t, IsNodeNotFound(err))
	})

	t.Run("Root is never removed", func(t *testing.T) {
		removed, err := svc.Roles().Remove(ctx, RootID, true)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("Unknown id removes nothing", func(t *testing.T) {
		removed, err := svc.Roles().Remove(ctx, 99999, false)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("Delete clears grants and assignments", func(t *testing.T) {
		roleID, err := svc.Roles().Add(ctx, "temp", "", 0)
		require.NoError(t, err)
		permID, err := svc.Permissions().Add(ctx, "temp-perm", "", 0)
		require.NoError(t, err)

		_, err = svc.GrantByID(ctx, roleID, permID)
		require.NoError(t, err)
		_, err = svc.Users().Assign(ctx, "temp", 77)
		require.NoError(t, err)

		_, err = svc.Roles().Remove(ctx, roleID, false)
		require.NoError(t, err)

		roles, err := svc.Users().Roles(ctx, 77)
		require.NoError(t, err)
		assert.Nil(t, roles)

		ids, err := svc.RoleIDsOfPermission(ctx, "temp-perm")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

// TestHierarchyReset tests the per-hierarchy reset and its guard
func TestHierarchyReset(t *testing.T) {
	h := NewTestDataHelper(t)
	if h == nil {
		return
	}
	defer h.Cleanup()

	svc := h.SetupOrgTree()
	ctx := h.GetContext()

	t.Run("Reset without confirm is refused", func(t *testing.T) {
		err := svc.Roles().Reset(ctx, false)
		assert.True(t, IsConfirmationRequired(err))

		count, err := svc.Roles().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, count)
	})

	t.Run("Reset leaves only the root", func(t *testing.T) {
		require.NoError(t, svc.Roles().Reset(ctx, true))

		count, err := svc.Roles().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		root, err := svc.Roles().Get(ctx, RootID)
		require.NoError(t, err)
		assert.Equal(t, "root", root.Title)
		assert.Equal(t, int64(0), root.Lft)
		assert.Equal(t, int64(1), root.Rght)
	})

	t.Run("New inserts reuse the reset tree", func(t *testing.T) {
		id, err := svc.Roles().Add(ctx, "fresh", "", 0)
		require.NoError(t, err)

		depth, err := svc.Roles().Depth(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})
}

// TestNestedSetInvariants tests interval integrity after a mutation mix
func TestNestedSetInvariants(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	svc, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	_, err = svc.Roles().AddPath(ctx, "/a/b/c", nil)
	require.NoError(t, err)
	_, err = svc.Roles().AddPath(ctx, "/a/d", nil)
	require.NoError(t, err)

	bID, err := svc.Roles().Resolve(ctx, "/a/b")
	require.NoError(t, err)
	_, err = svc.Roles().Remove(ctx, bID, false)
	require.NoError(t, err)

	// After any mix of inserts and deletes the intervals must tile exactly:
	// root spans [0, 2n-1] for n nodes and every node has an odd width gap.
	count, err := svc.Roles().Count(ctx)
	require.NoError(t, err)

	root, err := svc.Roles().Get(ctx, RootID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), root.Lft)
	assert.Equal(t, int64(2*count-1), root.Rght)

	desc, err := svc.Roles().Descendants(ctx, RootID)
	require.NoError(t, err)
	assert.Len(t, desc, count-1)
	for _, d := range desc {
		assert.Greater(t, d.Rght, d.Lft, "node %s", d.Title)
		assert.Equal(t, int64(1), (d.Rght-d.Lft)%2, "node %s has even interval", d.Title)
	}

	require.NoError(t, svc.ResetAll(ctx, true))
}
