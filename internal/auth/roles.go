package auth

// Role represents a dashboard user role.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// NormalizeRole validates and normalizes a role string, defaulting unknown
// input to student.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent, RoleStaff, RoleAdmin:
		return Role(value), true
	default:
		return RoleStudent, false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleStudent:
		return 1
	case RoleStaff:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
