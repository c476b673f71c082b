package acltree

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opensync/syftsync/internal/permspec"
)

type cacheEntry struct {
	rules     []*MergedRule
	versions  []uint8
	pathDepth int
}

// RuleCache memoizes MergedRules lookups so that a directory scan touching
// many paths under the same subtree doesn't re-walk the tree for each one.
// Entries are invalidated the moment any node visited on the original walk
// bumps its version (a permission file changed on disk and was re-added).
type RuleCache struct {
	lru *lru.Cache[string, cacheEntry]
}

// NewRuleCache returns a cache bounded to size entries.
func NewRuleCache(size int) *RuleCache {
	c, _ := lru.New[string, cacheEntry](size)
	return &RuleCache{lru: c}
}

// PermissionsFor returns the cached (or freshly computed and cached) union
// of permissions path grants to user.
func (c *RuleCache) PermissionsFor(t *Tree, path, user string) map[permspec.Permission]bool {
	rules := c.mergedRules(t, path)
	perms := make(map[permspec.Permission]bool, 3)
	for _, mr := range rules {
		if !mr.Rule.AppliesTo(user) {
			continue
		}
		for _, p := range mr.Rule.Permissions {
			perms[p] = true
		}
	}
	return perms
}

func (c *RuleCache) mergedRules(t *Tree, path string) []*MergedRule {
	if entry, ok := c.lru.Get(path); ok && c.stillValid(t, path, entry) {
		return entry.rules
	}

	rules := t.MergedRules(path)
	c.lru.Add(path, cacheEntry{rules: rules, versions: t.walkVersions(path)})
	return rules
}

func (c *RuleCache) stillValid(t *Tree, path string, entry cacheEntry) bool {
	current := t.walkVersions(path)
	if len(current) != len(entry.versions) {
		return false
	}
	for i := range current {
		if current[i] != entry.versions[i] {
			return false
		}
	}
	return true
}

// walkVersions returns the version counter of every node visited while
// resolving path, in root-to-leaf order.
func (t *Tree) walkVersions(path string) []uint8 {
	parts := splitPath(path)
	versions := make([]uint8, 0, len(parts)+1)

	current := t.root
	versions = append(versions, current.Version())
	for i := 0; i < len(parts); i++ {
		current.mu.RLock()
		child, ok := current.children[parts[i]]
		current.mu.RUnlock()
		if !ok {
			break
		}
		current = child
		versions = append(versions, current.Version())
	}
	return versions
}
