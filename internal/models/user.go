package models

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsActive     bool   `json:"is_active"`
	Role         Role   `json:"role"`
}

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

var roleRank = map[Role]int{
	RoleMember: 1,
	RoleAdmin:  2,
}

// IsValidRole reports whether the role is one of the known tiers.
func IsValidRole(role Role) bool {
	_, ok := roleRank[role]
	return ok
}

// HasAtLeast reports whether role meets or exceeds the required tier.
func HasAtLeast(role, required Role) bool {
	return roleRank[role] >= roleRank[required]
}
