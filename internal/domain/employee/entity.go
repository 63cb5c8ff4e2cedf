package employee

import "github.com/cmlabs-hris/shift-attendance-go/internal/domain/user"

// Employee is read-only here; it is owned by the employee management service.
type Employee struct {
	ID         string
	UserID     *string
	FullName   string
	Department *string
	Status     EmploymentStatus
	Role       *user.Role
}

type EmploymentStatus string

const (
	EmploymentStatusActive   EmploymentStatus = "active"
	EmploymentStatusInactive EmploymentStatus = "inactive"
)

// Eligible reports whether the employee takes part in seeding and finalization:
// active, linked to an account, and not an admin.
func (e Employee) Eligible() bool {
	if e.Status != EmploymentStatusActive || e.UserID == nil || e.Role == nil {
		return false
	}
	return !e.Role.IsAdmin()
}
