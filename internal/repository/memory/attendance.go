package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/google/uuid"
)

type shiftKey struct {
	employeeID string
	shiftDate  shift.Date
}

// AttendanceRepository keeps records in maps guarded by one mutex. The
// (employee, shift date) index plays the role of the unique constraint.
type AttendanceRepository struct {
	mu        sync.Mutex
	byID      map[string]attendance.Attendance
	byShift   map[shiftKey]string
	employees *EmployeeRepository
	now       func() time.Time
}

// NewAttendanceRepository joins employee name and department from employees,
// which may be nil.
func NewAttendanceRepository(employees *EmployeeRepository) *AttendanceRepository {
	return &AttendanceRepository{
		byID:      make(map[string]attendance.Attendance),
		byShift:   make(map[shiftKey]string),
		employees: employees,
		now:       time.Now,
	}
}

var _ attendance.AttendanceRepository = (*AttendanceRepository)(nil)

func (r *AttendanceRepository) withEmployee(att attendance.Attendance) attendance.Attendance {
	if emp, ok := r.employees.lookup(att.EmployeeID); ok {
		name := emp.FullName
		att.EmployeeName = &name
		att.Department = emp.Department
	}
	return att
}

func validClockOrder(att attendance.Attendance) error {
	if att.ClockOut == nil {
		return nil
	}
	if att.ClockIn == nil {
		return attendance.ErrClockOutWithoutIn
	}
	if att.ClockOut.Before(*att.ClockIn) {
		return attendance.ErrInvalidClockOrder
	}
	return nil
}

// InsertIfAbsent implements attendance.AttendanceRepository.
func (r *AttendanceRepository) InsertIfAbsent(_ context.Context, rec attendance.Attendance) (attendance.InsertResult, error) {
	if err := validClockOrder(rec); err != nil {
		return attendance.InsertResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := shiftKey{employeeID: rec.EmployeeID, shiftDate: rec.ShiftDate}
	if id, ok := r.byShift[key]; ok {
		return attendance.InsertResult{Record: r.byID[id], Created: false}, nil
	}

	now := r.now()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.EmployeeName = nil
	rec.Department = nil

	r.byID[rec.ID] = rec
	r.byShift[key] = rec.ID
	return attendance.InsertResult{Record: rec, Created: true}, nil
}

// ClaimPlaceholder implements attendance.AttendanceRepository.
func (r *AttendanceRepository) ClaimPlaceholder(_ context.Context, id string, clockIn time.Time, status attendance.Status) (attendance.Attendance, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	att, ok := r.byID[id]
	if !ok || att.ClockIn != nil {
		return attendance.Attendance{}, false, nil
	}

	in := clockIn
	att.ClockIn = &in
	att.Status = status
	att.UpdatedAt = r.now()
	r.byID[id] = att
	return att, true, nil
}

// FindOpenSession implements attendance.AttendanceRepository.
func (r *AttendanceRepository) FindOpenSession(ctx context.Context, employeeID string, shiftDate shift.Date) (*attendance.Attendance, error) {
	att, err := r.GetByEmployeeAndDate(ctx, employeeID, shiftDate)
	if err != nil || att == nil || !att.IsOpen() {
		return nil, err
	}
	return att, nil
}

// GetByEmployeeAndDate implements attendance.AttendanceRepository.
func (r *AttendanceRepository) GetByEmployeeAndDate(_ context.Context, employeeID string, shiftDate shift.Date) (*attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byShift[shiftKey{employeeID: employeeID, shiftDate: shiftDate}]
	if !ok {
		return nil, nil
	}
	att := r.byID[id]
	return &att, nil
}

// GetByID implements attendance.AttendanceRepository.
func (r *AttendanceRepository) GetByID(_ context.Context, id string) (attendance.Attendance, error) {
	r.mu.Lock()
	att, ok := r.byID[id]
	r.mu.Unlock()

	if !ok {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	return r.withEmployee(att), nil
}

// UpdateByID implements attendance.AttendanceRepository.
func (r *AttendanceRepository) UpdateByID(_ context.Context, id string, patch attendance.Patch) (attendance.Attendance, error) {
	if patch.IsEmpty() {
		return attendance.Attendance{}, fmt.Errorf("no updatable fields provided for attendance update")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	att, ok := r.byID[id]
	if !ok {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	if patch.RequireOpen && !att.IsOpen() {
		return attendance.Attendance{}, attendance.ErrSessionClosed
	}

	if patch.Status != nil {
		att.Status = *patch.Status
	}
	if patch.ClockIn != nil {
		in := *patch.ClockIn
		att.ClockIn = &in
	}
	if patch.ClockOut != nil {
		out := *patch.ClockOut
		att.ClockOut = &out
	}
	if patch.AppendNote != nil {
		if att.Notes == "" {
			att.Notes = *patch.AppendNote
		} else {
			att.Notes += "\n" + *patch.AppendNote
		}
	}
	if patch.AutoClockedOut != nil {
		att.AutoClockedOut = *patch.AutoClockedOut
	}
	if err := validClockOrder(att); err != nil {
		return attendance.Attendance{}, err
	}

	att.UpdatedAt = r.now()
	r.byID[id] = att
	return att, nil
}

func (r *AttendanceRepository) matches(att attendance.Attendance, filter attendance.Filter) bool {
	if filter.EmployeeID != nil && *filter.EmployeeID != "" && att.EmployeeID != *filter.EmployeeID {
		return false
	}
	if filter.Status != nil && *filter.Status != "" && att.Status != *filter.Status {
		return false
	}
	if filter.OpenOnly && !att.IsOpen() {
		return false
	}
	if filter.Department != nil && *filter.Department != "" {
		if att.Department == nil || *att.Department != *filter.Department {
			return false
		}
	}
	return true
}

func (r *AttendanceRepository) selectRange(start, end shift.Date, filter attendance.Filter) []attendance.Attendance {
	r.mu.Lock()
	snapshot := make([]attendance.Attendance, 0, len(r.byID))
	for _, att := range r.byID {
		if att.ShiftDate.Before(start) || att.ShiftDate.After(end) {
			continue
		}
		snapshot = append(snapshot, att)
	}
	r.mu.Unlock()

	out := make([]attendance.Attendance, 0, len(snapshot))
	for _, att := range snapshot {
		att = r.withEmployee(att)
		if r.matches(att, filter) {
			out = append(out, att)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ShiftDate != b.ShiftDate {
			return a.ShiftDate.Before(b.ShiftDate)
		}
		an, bn := nameOf(a), nameOf(b)
		if an != bn {
			return an < bn
		}
		return a.EmployeeID < b.EmployeeID
	})
	return out
}

func nameOf(att attendance.Attendance) string {
	if att.EmployeeName == nil {
		return "\uffff"
	}
	return *att.EmployeeName
}

// ListByShiftDate implements attendance.AttendanceRepository.
func (r *AttendanceRepository) ListByShiftDate(_ context.Context, shiftDate shift.Date, filter attendance.Filter) ([]attendance.Attendance, error) {
	return r.selectRange(shiftDate, shiftDate, filter), nil
}

// ListByDateRange implements attendance.AttendanceRepository.
func (r *AttendanceRepository) ListByDateRange(_ context.Context, start, end shift.Date, filter attendance.Filter) ([]attendance.Attendance, error) {
	return r.selectRange(start, end, filter), nil
}

// AggregateStatusCounts implements attendance.AttendanceRepository.
func (r *AttendanceRepository) AggregateStatusCounts(_ context.Context, start, end shift.Date, filter attendance.Filter) (attendance.StatusCounts, error) {
	counts := attendance.StatusCounts{ByStatus: make(map[attendance.Status]int, len(attendance.Statuses))}
	for _, att := range r.selectRange(start, end, filter) {
		counts.ByStatus[att.Status]++
		counts.Total++
		if att.AutoMarked {
			counts.AutoMarked++
		}
		if att.AutoClockedOut {
			counts.AutoClockedOut++
		}
	}
	return counts, nil
}

// BulkUpdate implements attendance.AttendanceRepository. Every item is
// validated against a working copy before anything is written.
func (r *AttendanceRepository) BulkUpdate(_ context.Context, items []attendance.BulkUpdateItem) (attendance.BulkUpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result attendance.BulkUpdateResult
	staged := make(map[string]attendance.Attendance)
	now := r.now()

	for _, item := range items {
		att, ok := staged[item.ID]
		if !ok {
			att, ok = r.byID[item.ID]
		}
		if !ok {
			continue
		}
		result.MatchedCount++

		next := att
		next.Status = item.Status
		if item.ClockIn != nil {
			in := *item.ClockIn
			next.ClockIn = &in
		}
		if item.ClockOut != nil {
			out := *item.ClockOut
			next.ClockOut = &out
		}
		if next.Status == att.Status && timeEqual(next.ClockIn, att.ClockIn) && timeEqual(next.ClockOut, att.ClockOut) {
			continue
		}
		if err := validClockOrder(next); err != nil {
			return attendance.BulkUpdateResult{}, fmt.Errorf("attendance %s: %w", item.ID, err)
		}

		next.UpdatedAt = now
		staged[item.ID] = next
		result.ModifiedCount++
	}

	for id, att := range staged {
		r.byID[id] = att
	}
	return result, nil
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
