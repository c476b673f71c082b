// Package permspec implements the permission-rule file format: a JSON array
// of {path, user, permissions} objects living at a well-known filename in a
// directory, governing that directory and its descendants.
package permspec

// Permission is one of the capabilities a rule can grant.
type Permission string

const (
	Admin Permission = "admin"
	Read  Permission = "read"
	Write Permission = "write"
)

// Everyone is the user token that grants a permission to any caller.
const Everyone = "*"

// Rule grants a set of permissions over files matching PathGlob to User.
// A Terminal rule, once matched, stops permission inheritance for anything
// below it in the tree.
type Rule struct {
	PathGlob    string       `json:"path"`
	User        string       `json:"user"`
	Permissions []Permission `json:"permissions"`
	Terminal    bool         `json:"terminal,omitempty"`
}

// NewRule builds a Rule from a glob, a user (or Everyone), and permissions.
func NewRule(pathGlob, user string, permissions ...Permission) *Rule {
	return &Rule{
		PathGlob:    pathGlob,
		User:        user,
		Permissions: permissions,
	}
}

// Grants reports whether the rule lists the given permission.
func (r *Rule) Grants(p Permission) bool {
	for _, perm := range r.Permissions {
		if perm == p {
			return true
		}
	}
	return false
}

// AppliesTo reports whether the rule's user matches the given email.
func (r *Rule) AppliesTo(user string) bool {
	return r.User == Everyone || r.User == user
}
