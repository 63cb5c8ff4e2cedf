package attendance

import (
	"errors"
	"time"
)

// Attendance domain errors
var (
	// Clocking errors
	ErrAlreadyClockedIn  = errors.New("you have already clocked in for this shift")
	ErrAlreadyClockedOut = errors.New("you have already clocked out for this shift")
	ErrNoActiveSession   = errors.New("no active attendance session for this shift")
	ErrOutsideWindow     = errors.New("attendance is only allowed inside the shift window")

	// General errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrSessionClosed      = errors.New("attendance session is no longer open")
	ErrInvalidClockOrder  = errors.New("clock out must not be before clock in")
	ErrClockOutWithoutIn  = errors.New("clock out requires a clock in")
	ErrInvalidStatus      = errors.New("status must be one of Present, Absent, Late, Half-day")
	ErrInvalidDateRange   = errors.New("end date must not be before start date")
)

// OutsideWindowError carries enough context for a client to render a countdown.
type OutsideWindowError struct {
	CurrentTime       time.Time
	AllowedWindow     string
	NextAvailableTime time.Time
}

func (e *OutsideWindowError) Error() string {
	return ErrOutsideWindow.Error()
}

func (e *OutsideWindowError) Is(target error) bool {
	return target == ErrOutsideWindow
}
