package model

// UserRole is the dashboard role stored in the auth provider's app metadata.
type UserRole string

const (
	RolePending UserRole = "pending"
	RoleUser    UserRole = "user"
	RoleAdmin   UserRole = "admin"
)

// ParseUserRole maps a raw metadata value to a role. Anything unrecognized,
// including an absent value, is treated as pending.
func ParseUserRole(s string) UserRole {
	switch r := UserRole(s); r {
	case RoleUser, RoleAdmin:
		return r
	default:
		return RolePending
	}
}

// Approved reports whether the role grants dashboard access.
func (r UserRole) Approved() bool {
	return r == RoleUser || r == RoleAdmin
}

// Approval is the resolved access state of one user.
type Approval struct {
	UserID     string   `json:"user_id"`
	Email      string   `json:"email,omitempty"`
	Role       UserRole `json:"role"`
	IsApproved bool     `json:"is_approved"`
}
