package attendance

import (
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
)

type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
	StatusHalfDay Status = "Half-day"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusHalfDay}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay:
		return true
	}
	return false
}

// AutoClockOutNote is appended to a record closed by shift finalization.
const AutoClockOutNote = "auto-clocked-out at shift end"

// Attendance is one record per (employee, shift date).
type Attendance struct {
	ID             string
	EmployeeID     string
	ShiftDate      shift.Date
	ClockIn        *time.Time
	ClockOut       *time.Time
	Status         Status
	AutoMarked     bool
	AutoClockedOut bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// DTO
	EmployeeName *string
	Department   *string
}

// IsOpen reports a started session that has not been closed.
func (a Attendance) IsOpen() bool {
	return a.ClockIn != nil && a.ClockOut == nil
}

// Worked returns clock-out minus clock-in, or zero for an incomplete session.
func (a Attendance) Worked() time.Duration {
	if a.ClockIn == nil || a.ClockOut == nil {
		return 0
	}
	return a.ClockOut.Sub(*a.ClockIn)
}

// InsertResult tags the outcome of an insert-if-absent. Created is false when
// a record for the same (employee, shift date) already existed; Record is then
// the existing one.
type InsertResult struct {
	Record  Attendance
	Created bool
}

// Patch lists the fields an update may touch. Nil fields are left alone.
type Patch struct {
	Status         *Status
	ClockIn        *time.Time
	ClockOut       *time.Time
	AppendNote     *string
	AutoClockedOut *bool

	// RequireOpen restricts the update to a session with clock_in set and
	// clock_out unset.
	RequireOpen bool
}

func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.ClockIn == nil && p.ClockOut == nil && p.AppendNote == nil && p.AutoClockedOut == nil
}

// Filter narrows list and aggregate queries.
type Filter struct {
	EmployeeID *string
	Department *string
	Status     *Status
	OpenOnly   bool
}

// StatusCounts is the per-status tally over a set of records.
type StatusCounts struct {
	ByStatus       map[Status]int
	AutoMarked     int
	AutoClockedOut int
	Total          int
}

type BulkUpdateItem struct {
	ID       string
	Status   Status
	ClockIn  *time.Time
	ClockOut *time.Time
}

type BulkUpdateResult struct {
	MatchedCount  int `json:"matchedCount"`
	ModifiedCount int `json:"modifiedCount"`
}
