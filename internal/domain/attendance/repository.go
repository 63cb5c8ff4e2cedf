package attendance

import (
	"context"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
)

// AttendanceRepository is the attendance store. Uniqueness of
// (employee, shift date) is enforced by the store itself; callers never
// check-then-insert.
type AttendanceRepository interface {
	// InsertIfAbsent creates rec unless a record already exists for its
	// (EmployeeID, ShiftDate). A duplicate is reported through
	// InsertResult.Created, never as an error.
	InsertIfAbsent(ctx context.Context, rec Attendance) (InsertResult, error)

	// ClaimPlaceholder sets clock_in and status on a record whose clock_in is
	// still unset. claimed is false when another writer got there first.
	ClaimPlaceholder(ctx context.Context, id string, clockIn time.Time, status Status) (rec Attendance, claimed bool, err error)

	// FindOpenSession returns the record with clock_in set and clock_out unset, or nil.
	FindOpenSession(ctx context.Context, employeeID string, shiftDate shift.Date) (*Attendance, error)

	// GetByEmployeeAndDate returns the record for the shift, or nil.
	GetByEmployeeAndDate(ctx context.Context, employeeID string, shiftDate shift.Date) (*Attendance, error)

	GetByID(ctx context.Context, id string) (Attendance, error)

	// UpdateByID applies patch to the record scoped by id.
	UpdateByID(ctx context.Context, id string, patch Patch) (Attendance, error)

	ListByShiftDate(ctx context.Context, shiftDate shift.Date, filter Filter) ([]Attendance, error)
	ListByDateRange(ctx context.Context, start, end shift.Date, filter Filter) ([]Attendance, error)

	// AggregateStatusCounts tallies statuses between start and end inclusive.
	AggregateStatusCounts(ctx context.Context, start, end shift.Date, filter Filter) (StatusCounts, error)

	// BulkUpdate applies every item atomically.
	BulkUpdate(ctx context.Context, items []BulkUpdateItem) (BulkUpdateResult, error)
}
