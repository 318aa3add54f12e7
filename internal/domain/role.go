package domain

// Role is a closed enumeration of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRoles returns the set of valid roles.
func ValidRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// IsValidRole checks whether the given string names a valid role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}
