// Package entity contains the core business objects of the project.
package entity

// Role represents the side of the marketplace a session participates as.
type Role string

const (
	// RoleVendor indicates a produce vendor session.
	RoleVendor Role = "vendor"
	// RoleConsumer indicates a consumer session.
	RoleConsumer Role = "consumer"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleVendor, RoleConsumer:
		return true
	default:
		return false
	}
}

// Counterparty returns the opposite role: vendors match consumers and
// consumers match vendors.
func (r Role) Counterparty() Role {
	if r == RoleVendor {
		return RoleConsumer
	}

	return RoleVendor
}

// PermissionScope identifies which location permission is being requested.
type PermissionScope string

const (
	// ScopeForeground is the permission required for any tracking.
	ScopeForeground PermissionScope = "foreground"
	// ScopeBackground is the secondary permission requested for vendor sessions.
	ScopeBackground PermissionScope = "background"
)
