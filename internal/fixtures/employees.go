package fixtures

import (
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/user"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func strPtr(s string) *string        { return &s }
func rolePtr(r user.Role) *user.Role { return &r }

// ==========================================
// DEVELOPMENT ROSTER
// ==========================================

// DevEmployees is the roster loaded into the in-memory store. It covers
// every eligibility case: night-shift staff, an admin, an inactive
// employee and one without an account.
func DevEmployees() []employee.Employee {
	return []employee.Employee{
		{
			ID:         "emp-001",
			UserID:     strPtr("user-001"),
			FullName:   "Ayesha Khan",
			Department: strPtr("Support"),
			Status:     employee.EmploymentStatusActive,
			Role:       rolePtr(user.RoleEmployee),
		},
		{
			ID:         "emp-002",
			UserID:     strPtr("user-002"),
			FullName:   "Bilal Ahmed",
			Department: strPtr("Support"),
			Status:     employee.EmploymentStatusActive,
			Role:       rolePtr(user.RoleEmployee),
		},
		{
			ID:         "emp-003",
			UserID:     strPtr("user-003"),
			FullName:   "Fatima Malik",
			Department: strPtr("Operations"),
			Status:     employee.EmploymentStatusActive,
			Role:       rolePtr(user.RoleEmployee),
		},
		{
			ID:         "emp-004",
			UserID:     strPtr("user-004"),
			FullName:   "Hamza Siddiqui",
			Department: strPtr("Operations"),
			Status:     employee.EmploymentStatusActive,
			Role:       rolePtr(user.RoleEmployee),
		},
		{
			ID:         "emp-005",
			UserID:     strPtr("user-005"),
			FullName:   "Sana Iqbal",
			Department: strPtr("Operations"),
			Status:     employee.EmploymentStatusActive,
			Role:       rolePtr(user.RoleAdmin),
		},
		{
			ID:         "emp-006",
			UserID:     strPtr("user-006"),
			FullName:   "Usman Tariq",
			Department: strPtr("Support"),
			Status:     employee.EmploymentStatusInactive,
			Role:       rolePtr(user.RoleEmployee),
		},
		{
			ID:         "emp-007",
			FullName:   "Zainab Raza",
			Department: strPtr("Support"),
			Status:     employee.EmploymentStatusActive,
		},
	}
}
