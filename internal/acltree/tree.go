package acltree

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/opensync/syftsync/internal/permspec"
)

// Tree is the merge of every permission file from a datasite root down to
// any target path inside it.
type Tree struct {
	root *Node
}

// NewTree returns an empty tree rooted at the datasite root.
func NewTree() *Tree {
	return &Tree{root: newNode("", 0)}
}

func splitPath(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == "." || clean == "/" {
		return nil
	}
	clean = strings.TrimPrefix(clean, "/")
	return strings.Split(clean, "/")
}

// AddFile registers or replaces the permission file at file.Dir, creating
// intermediate nodes as needed.
func (t *Tree) AddFile(file *permspec.File) {
	parts := splitPath(file.Dir)

	current := t.root
	depth := uint8(0)
	built := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		depth++
		if built == "" {
			built = part
		} else {
			built = built + "/" + part
		}

		current.mu.Lock()
		if current.children == nil {
			current.children = make(map[string]*Node)
		}
		child, ok := current.children[part]
		if !ok {
			child = newNode(built, depth)
			current.children[part] = child
		}
		current.mu.Unlock()
		current = child
	}

	current.Set(file.Rules)
}

// RemoveFile drops the permission file (and its node's rules) at dir.
func (t *Tree) RemoveFile(dir string) {
	parts := splitPath(dir)
	current := t.root
	for _, part := range parts {
		if part == "" {
			continue
		}
		current.mu.RLock()
		child, ok := current.children[part]
		current.mu.RUnlock()
		if !ok {
			return
		}
		current = child
	}
	current.Set(nil)
}

// MergedRule is one rule contributed by a permission file along the walk
// from root to a target path, resolved to its full (directory-joined) glob.
type MergedRule struct {
	FullGlob string
	Rule     *permspec.Rule
}

// MergedRules walks the tree from the root to path, collecting every rule
// whose full glob matches path. A rule declared deeper in the tree replaces
// an ancestor's rule of the identical full glob and user (override,
// rule-for-rule); rules with distinct globs or users accumulate. A matched Terminal rule stops the walk from
// descending into deeper permission files.
func (t *Tree) MergedRules(path string) []*MergedRule {
	path = filepath.ToSlash(filepath.Clean(path))
	parts := splitPath(path)

	merged := make(map[string]*MergedRule)
	order := make([]string, 0, 8)

	current := t.root
	terminal := false

	for i := 0; ; i++ {
		for _, rule := range current.rulesSnapshot() {
			full := joinGlob(current.path, rule.PathGlob)
			ok, _ := doublestar.Match(full, path)
			if !ok {
				continue
			}
			key := full + "\x00" + rule.User
			if _, seen := merged[key]; !seen {
				order = append(order, key)
			}
			merged[key] = &MergedRule{FullGlob: full, Rule: rule}
			if rule.Terminal {
				terminal = true
			}
		}

		if terminal || i >= len(parts) {
			break
		}

		current.mu.RLock()
		child, ok := current.children[parts[i]]
		current.mu.RUnlock()
		if !ok {
			break
		}
		current = child
	}

	result := make([]*MergedRule, 0, len(order))
	for _, glob := range order {
		result = append(result, merged[glob])
	}
	return result
}

func joinGlob(dir, glob string) string {
	if dir == "" {
		return glob
	}
	return dir + "/" + glob
}

// PermissionsFor returns the union of permissions path grants to user,
// across every matching, applicable rule along the tree walk.
func (t *Tree) PermissionsFor(path, user string) map[permspec.Permission]bool {
	perms := make(map[permspec.Permission]bool, 3)
	for _, mr := range t.MergedRules(path) {
		if !mr.Rule.AppliesTo(user) {
			continue
		}
		for _, p := range mr.Rule.Permissions {
			perms[p] = true
		}
	}
	return perms
}

// HasPermission reports whether user has at least `level` access to path.
// Permissions are hierarchical: admin implies write implies read.
func (t *Tree) HasPermission(path string, u User, level permspec.Permission) bool {
	if u.IsOwner {
		return true
	}

	perms := t.PermissionsFor(path, u.Email)
	switch level {
	case permspec.Admin:
		return perms[permspec.Admin]
	case permspec.Write:
		return perms[permspec.Admin] || perms[permspec.Write]
	case permspec.Read:
		return perms[permspec.Admin] || perms[permspec.Write] || perms[permspec.Read]
	default:
		return false
	}
}
