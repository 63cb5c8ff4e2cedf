package user

type Role string

const (
	RoleAdmin    Role = "admin"    // Back-office staff - manages attendance, never seeded
	RoleEmployee Role = "employee" // Regular employee
)

// IsAdmin checks if the role carries admin privileges
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
