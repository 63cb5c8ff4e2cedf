package attendance

import (
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/validator"
)

// ========================================
// CLOCKING DTOs
// ========================================

type EmployeeSummary struct {
	ID         string  `json:"id"`
	FullName   string  `json:"fullName"`
	Department *string `json:"department,omitempty"`
}

type ClockInResponse struct {
	ID        string          `json:"id"`
	ShiftDate shift.Date      `json:"shiftDate"`
	ClockIn   time.Time       `json:"clockIn"`
	Status    Status          `json:"status"`
	Employee  EmployeeSummary `json:"employee"`
}

type ClockOutResponse struct {
	ID          string     `json:"id"`
	ShiftDate   shift.Date `json:"shiftDate"`
	ClockIn     time.Time  `json:"clockIn"`
	ClockOut    time.Time  `json:"clockOut"`
	HoursWorked float64    `json:"hoursWorked"`
}

type StatusResponse struct {
	ShiftDate    *shift.Date         `json:"shiftDate,omitempty"`
	IsClockedIn  bool                `json:"isClockedIn"`
	IsClockedOut bool                `json:"isClockedOut"`
	Record       *AttendanceResponse `json:"record"`
}

type WindowInfoResponse struct {
	IsWithinWindow    bool      `json:"isWithinWindow"`
	AllowedWindow     string    `json:"allowedWindow"`
	CurrentTime       time.Time `json:"currentTime"`
	NextAvailableTime time.Time `json:"nextAvailableTime"`
}

type AttendanceResponse struct {
	ID             string     `json:"id"`
	EmployeeID     string     `json:"employeeId"`
	EmployeeName   *string    `json:"employeeName,omitempty"`
	Department     *string    `json:"department,omitempty"`
	ShiftDate      shift.Date `json:"shiftDate"`
	ClockIn        *time.Time `json:"clockIn"`
	ClockOut       *time.Time `json:"clockOut"`
	HoursWorked    *float64   `json:"hoursWorked,omitempty"`
	Status         Status     `json:"status"`
	AutoMarked     bool       `json:"autoMarked"`
	AutoClockedOut bool       `json:"autoClockedOut"`
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ========================================
// ADMIN DTOs
// ========================================

type AttendanceFilter struct {
	Date       *string `json:"date,omitempty"`       // YYYY-MM-DD
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Department *string `json:"department,omitempty"`
	Status     *string `json:"status,omitempty"`

	// Resolved by Validate
	From shift.Date `json:"-"`
	To   shift.Date `json:"-"`
}

// HasDates reports whether the caller picked a date or a range.
func (f *AttendanceFilter) HasDates() bool {
	return f.Date != nil || f.StartDate != nil || f.EndDate != nil
}

func (f *AttendanceFilter) Validate() error {
	var errs validator.ValidationErrors

	parse := func(field string, value *string) shift.Date {
		if value == nil {
			return shift.Date{}
		}
		d, err := shift.ParseDate(*value)
		if err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   field,
				Message: field + " must be in YYYY-MM-DD format",
			})
		}
		return d
	}

	if f.Date != nil && (f.StartDate != nil || f.EndDate != nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date cannot be combined with start_date/end_date",
		})
	}

	if f.Date != nil {
		d := parse("date", f.Date)
		f.From, f.To = d, d
	} else {
		f.From = parse("start_date", f.StartDate)
		f.To = parse("end_date", f.EndDate)
		if f.StartDate != nil && f.EndDate == nil {
			f.To = f.From
		}
		if f.EndDate != nil && f.StartDate == nil {
			f.From = f.To
		}
		if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: ErrInvalidDateRange.Error(),
			})
		}
	}

	if f.Status != nil && !Status(*f.Status).Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "status",
			Message: ErrInvalidStatus.Error(),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateAttendanceRequest struct {
	ID       string     `json:"-" validate:"required"`
	Status   *string    `json:"status,omitempty" validate:"omitempty,oneof=Present Absent Late Half-day"`
	ClockIn  *time.Time `json:"clockIn,omitempty"`
	ClockOut *time.Time `json:"clockOut,omitempty"`
}

func (r *UpdateAttendanceRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if r.Status == nil && r.ClockIn == nil && r.ClockOut == nil {
		return validator.ValidationErrors{{
			Field:   "status",
			Message: "at least one of status, clockIn, clockOut is required",
		}}
	}
	return nil
}

type BulkUpdateItemRequest struct {
	ID       string     `json:"id" validate:"required"`
	Status   string     `json:"status" validate:"required,oneof=Present Absent Late Half-day"`
	ClockIn  *time.Time `json:"clockIn,omitempty"`
	ClockOut *time.Time `json:"clockOut,omitempty"`
}

type BulkUpdateRequest struct {
	Items []BulkUpdateItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

func (r *BulkUpdateRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	for _, item := range r.Items {
		if item.ClockOut != nil && item.ClockIn != nil && item.ClockOut.Before(*item.ClockIn) {
			return validator.ValidationErrors{{
				Field:   "items",
				Message: "record " + item.ID + ": " + ErrInvalidClockOrder.Error(),
			}}
		}
	}
	return nil
}

type SummaryResponse struct {
	From           shift.Date `json:"from"`
	To             shift.Date `json:"to"`
	Present        int        `json:"Present"`
	Absent         int        `json:"Absent"`
	Late           int        `json:"Late"`
	HalfDay        int        `json:"Half-day"`
	AutoMarked     int        `json:"autoMarked"`
	AutoClockedOut int        `json:"autoClockedOut"`
	TotalEmployees int        `json:"totalEmployees"`
}
