package response

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/cron"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var outside *attendance.OutsideWindowError
	if errors.As(err, &outside) {
		Fail(w, http.StatusForbidden, CodeOutsideWindow, outside.Error(), map[string]string{
			"currentTime":       outside.CurrentTime.Format(time.RFC3339),
			"allowedWindow":     outside.AllowedWindow,
			"nextAvailableTime": outside.NextAvailableTime.Format(time.RFC3339),
		})
		return
	}

	switch {
	// Clocking errors
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		Fail(w, http.StatusBadRequest, CodeAlreadyClockedIn, err.Error(), nil)
	case errors.Is(err, attendance.ErrAlreadyClockedOut):
		Fail(w, http.StatusBadRequest, CodeAlreadyClockedOut, err.Error(), nil)
	case errors.Is(err, attendance.ErrNoActiveSession):
		Fail(w, http.StatusBadRequest, CodeNoActiveSession, err.Error(), nil)
	case errors.Is(err, attendance.ErrOutsideWindow):
		Fail(w, http.StatusForbidden, CodeOutsideWindow, err.Error(), nil)

	// Record errors
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, attendance.ErrInvalidClockOrder),
		errors.Is(err, attendance.ErrClockOutWithoutIn),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, attendance.ErrInvalidDateRange):
		Fail(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)

	// Auth errors
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrAdminPrivilegeRequired),
		errors.Is(err, user.ErrEmployeeLinkRequired):
		Forbidden(w, err.Error())

	// Job errors
	case errors.Is(err, cron.ErrJobRunning):
		Conflict(w, "Job is already running")
	case errors.Is(err, cron.ErrUnknownJob):
		NotFound(w, "Job not found")
	case errors.Is(err, cron.ErrNoRunRecorded):
		NotFound(w, "No run recorded for this job")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
