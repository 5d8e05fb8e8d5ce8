package entity

import "slices"

// Permission is a named capability on an entity.
type Permission string

const (
	PermUpdate            Permission = "UPDATE"
	PermDelete            Permission = "DELETE"
	PermChangePermissions Permission = "CHANGE_PERMISSIONS"
	PermChangeSettings    Permission = "CHANGE_SETTINGS"
	PermCreate            Permission = "CREATE"
	PermDownload          Permission = "DOWNLOAD"
	PermRead              Permission = "READ"
	PermModerate          Permission = "MODERATE"
)

// AdminPermissions returns the full set of capabilities that makes a user a
// project administrator.
func AdminPermissions() []Permission {
	return []Permission{
		PermUpdate, PermDelete, PermChangePermissions, PermChangeSettings,
		PermCreate, PermDownload, PermRead, PermModerate,
	}
}

// SamePermissions reports whether a and b hold exactly the same capabilities,
// ignoring order and duplicates.
func SamePermissions(a, b []Permission) bool {
	as := slices.Compact(slices.Sorted(slices.Values(a)))
	bs := slices.Compact(slices.Sorted(slices.Values(b)))
	return slices.Equal(as, bs)
}

// IsAdminSet reports whether perms is exactly the administrator set.
func IsAdminSet(perms []Permission) bool {
	return SamePermissions(perms, AdminPermissions())
}

// UserProfile identifies an authenticated user.
type UserProfile struct {
	OwnerID  string
	UserName string
}

// ACL is the access control list attached to an entity.
type ACL struct {
	EntityID string
	Entries  []ACLEntry
}

// ACLEntry grants a principal (user or team) a set of capabilities.
type ACLEntry struct {
	PrincipalID string
	AccessTypes []Permission
}

// TeamMember is one member of a team.
type TeamMember struct {
	TeamID   string
	OwnerID  string
	UserName string
}
