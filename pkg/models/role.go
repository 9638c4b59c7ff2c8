package models

import "strings"

// Role is the member role enumeration shared by workspace-level and
// project-level memberships. The same set of values is used at both scopes,
// but a workspace role and a project role are independent facts about a user.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// roleRank fixes the total order owner > admin > member > viewer.
// Every privilege comparison in the system goes through AtLeast; do not
// compare roles by hand elsewhere.
var roleRank = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
	RoleViewer: 0,
}

// AtLeast reports whether `have` grants at least the privilege of `need`.
func (have Role) AtLeast(need Role) bool {
	return roleRank[have] >= roleRank[need]
}

// Valid reports whether r is one of the known role values.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// ParseRole normalizes a wire value into a Role, reporting whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}
