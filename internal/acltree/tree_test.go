package acltree

import (
	"testing"

	"github.com/opensync/syftsync/internal/permspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_DefaultDenyEverywhere(t *testing.T) {
	tree := NewTree()
	tree.AddFile(permspec.NewFile("", permspec.NewRule(permspec.AllFiles, permspec.Everyone)))

	assert.False(t, tree.HasPermission("alice/inbox/file.txt", User{Email: "bob@example.com"}, permspec.Read))
}

func TestTree_DeeperFileOverridesShallowerGlob(t *testing.T) {
	tree := NewTree()
	tree.AddFile(permspec.NewFile("alice", permspec.NewRule(permspec.AllFiles, permspec.Everyone)))
	tree.AddFile(permspec.NewFile("alice/public", permspec.NewRule(permspec.AllFiles, permspec.Everyone, permspec.Read)))

	assert.True(t, tree.HasPermission("alice/public/readme.txt", User{Email: "bob@example.com"}, permspec.Read))
	assert.False(t, tree.HasPermission("alice/private.txt", User{Email: "bob@example.com"}, permspec.Read))
}

func TestTree_PermissionHierarchy(t *testing.T) {
	tree := NewTree()
	tree.AddFile(permspec.NewFile("alice", permspec.NewRule(permspec.AllFiles, "bob@example.com", permspec.Admin)))

	u := User{Email: "bob@example.com"}
	assert.True(t, tree.HasPermission("alice/f.txt", u, permspec.Admin))
	assert.True(t, tree.HasPermission("alice/f.txt", u, permspec.Write))
	assert.True(t, tree.HasPermission("alice/f.txt", u, permspec.Read))
}

func TestTree_OwnerBypassesRules(t *testing.T) {
	tree := NewTree()
	tree.AddFile(permspec.NewFile("alice", permspec.NewRule(permspec.AllFiles, permspec.Everyone)))

	owner := User{Email: "alice@example.com", IsOwner: true}
	assert.True(t, tree.HasPermission("alice/secret.txt", owner, permspec.Admin))
}

func TestTree_TerminalRuleStopsDeeperInheritance(t *testing.T) {
	tree := NewTree()
	tree.AddFile(permspec.NewFile("alice", permspec.NewRule(permspec.AllFiles, permspec.Everyone, permspec.Read)))

	terminalRule := permspec.NewRule(permspec.AllFiles, permspec.Everyone)
	terminalRule.Terminal = true
	tree.AddFile(permspec.NewFile("alice/locked", terminalRule))

	tree.AddFile(permspec.NewFile("alice/locked/sub", permspec.NewRule(permspec.AllFiles, permspec.Everyone, permspec.Read)))

	u := User{Email: "bob@example.com"}
	assert.False(t, tree.HasPermission("alice/locked/sub/f.txt", u, permspec.Read))
}

func TestRuleCache_InvalidatesOnNodeVersionChange(t *testing.T) {
	tree := NewTree()
	tree.AddFile(permspec.NewFile("alice", permspec.NewRule(permspec.AllFiles, permspec.Everyone)))

	cache := NewRuleCache(64)
	u := "bob@example.com"

	perms := cache.PermissionsFor(tree, "alice/f.txt", u)
	assert.Empty(t, perms)

	tree.AddFile(permspec.NewFile("alice", permspec.NewRule(permspec.AllFiles, permspec.Everyone, permspec.Read)))

	perms = cache.PermissionsFor(tree, "alice/f.txt", u)
	require.Len(t, perms, 1)
	assert.True(t, perms[permspec.Read])
}
