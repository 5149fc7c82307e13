package models

// Role is a user's role within their company.
type Role string

// Role constants.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
)

// ValidRoles contains all valid role values.
var ValidRoles = []Role{RoleAdmin, RoleManager, RoleOperator}

// IsValidRole checks if the given role is valid.
func IsValidRole(role Role) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a login identity belonging to exactly one company.
// Username is unique within the company.
type User struct {
	TenantRecord
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}
