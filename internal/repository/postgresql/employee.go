package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `e.id::text, e.user_id::text, e.full_name, e.department, e.employment_status, u.role`

func scanEmployee(row rowScanner) (employee.Employee, error) {
	var (
		emp    employee.Employee
		status string
		role   *string
	)
	if err := row.Scan(&emp.ID, &emp.UserID, &emp.FullName, &emp.Department, &status, &role); err != nil {
		return employee.Employee{}, err
	}
	emp.Status = employee.EmploymentStatus(status)
	if role != nil {
		r := user.Role(*role)
		emp.Role = &r
	}
	return emp, nil
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT ` + employeeColumns + `
		FROM employees e
		LEFT JOIN users u ON u.id = e.user_id
		WHERE e.id::text = $1 AND e.deleted_at IS NULL
	`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee by ID %s: %w", id, err)
	}
	return emp, nil
}

// ListEligible implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListEligible(ctx context.Context, department *string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT ` + employeeColumns + `
		FROM employees e
		JOIN users u ON u.id = e.user_id
		WHERE e.deleted_at IS NULL
		  AND e.employment_status = $1
		  AND u.role <> $2
	`
	args := []interface{}{string(employee.EmploymentStatusActive), string(user.RoleAdmin)}
	if department != nil && *department != "" {
		query += " AND e.department = $3"
		args = append(args, *department)
	}
	query += " ORDER BY e.full_name, e.id"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}
