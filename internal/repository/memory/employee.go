// Package memory holds in-process repositories used when STORE_DRIVER=memory
// and by service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
)

type EmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]employee.Employee
}

func NewEmployeeRepository(employees ...employee.Employee) *EmployeeRepository {
	r := &EmployeeRepository{employees: make(map[string]employee.Employee, len(employees))}
	for _, emp := range employees {
		r.employees[emp.ID] = emp
	}
	return r
}

// Put adds or replaces an employee.
func (r *EmployeeRepository) Put(emp employee.Employee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employees[emp.ID] = emp
}

// GetByID implements employee.EmployeeRepository.
func (r *EmployeeRepository) GetByID(_ context.Context, id string) (employee.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	emp, ok := r.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

// ListEligible implements employee.EmployeeRepository.
func (r *EmployeeRepository) ListEligible(_ context.Context, department *string) ([]employee.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []employee.Employee
	for _, emp := range r.employees {
		if !emp.Eligible() {
			continue
		}
		if department != nil && *department != "" && (emp.Department == nil || *emp.Department != *department) {
			continue
		}
		out = append(out, emp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// lookup tolerates a nil repository.
func (r *EmployeeRepository) lookup(id string) (employee.Employee, bool) {
	if r == nil {
		return employee.Employee{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	emp, ok := r.employees[id]
	return emp, ok
}
