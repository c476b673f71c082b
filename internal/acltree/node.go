package acltree

import (
	"sort"
	"strings"
	"sync"

	"github.com/opensync/syftsync/internal/permspec"
)

// Node is one path component in the tree. It holds the rules declared by
// the permission file at its own directory, pre-sorted by glob specificity.
type Node struct {
	mu       sync.RWMutex
	path     string
	rules    []*permspec.Rule
	children map[string]*Node
	depth    uint8
	version  uint8
}

func newNode(path string, depth uint8) *Node {
	return &Node{path: path, depth: depth}
}

// Set replaces the node's rules, pre-sorted by glob specificity (most
// specific first), and bumps the version counter so cached lookups that
// traversed this node are invalidated.
func (n *Node) Set(rules []*permspec.Rule) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rules = sortBySpecificity(rules)
	n.version++
}

// Version returns the node's current version, used by RuleCache to detect
// staleness without re-walking the tree.
func (n *Node) Version() uint8 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

func (n *Node) rulesSnapshot() []*permspec.Rule {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rules
}

func globSpecificityScore(glob string) int {
	switch glob {
	case permspec.AllFiles:
		return -100
	case "**/*":
		return -99
	}

	score := len(glob)*2 + strings.Count(glob, "/")*10
	for i, c := range glob {
		switch c {
		case '*':
			if i == 0 {
				score -= 20
			} else {
				score -= 10
			}
		case '?', '!', '[', '{':
			score -= 2
		}
	}
	return score
}

func sortBySpecificity(rules []*permspec.Rule) []*permspec.Rule {
	clone := append([]*permspec.Rule(nil), rules...)
	sort.SliceStable(clone, func(i, j int) bool {
		return globSpecificityScore(clone[i].PathGlob) > globSpecificityScore(clone[j].PathGlob)
	})
	return clone
}
