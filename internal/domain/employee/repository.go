package employee

import "context"

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)

	// ListEligible returns active, linked, non-admin employees, optionally
	// restricted to one department.
	ListEligible(ctx context.Context, department *string) ([]Employee, error)
}
