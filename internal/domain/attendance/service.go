package attendance

import (
	"context"
)

// AttendanceService defines business logic for attendance operations
type AttendanceService interface {
	// ClockIn starts the caller's session for the current shift
	ClockIn(ctx context.Context, employeeID string) (ClockInResponse, error)

	// ClockOut closes the caller's open session for the current shift
	ClockOut(ctx context.Context, employeeID string) (ClockOutResponse, error)

	// GetStatus reports the caller's record for the current shift
	GetStatus(ctx context.Context, employeeID string) (StatusResponse, error)

	// GetWindowInfo describes the attendance window relative to now
	GetWindowInfo(ctx context.Context) WindowInfoResponse

	// ListAttendance retrieves records with the employee projection joined (admin)
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]AttendanceResponse, error)

	// UpdateAttendance edits a record (admin) - for fixing wrong data
	UpdateAttendance(ctx context.Context, req UpdateAttendanceRequest) (AttendanceResponse, error)

	// BulkUpdate edits many records in one transaction (admin)
	BulkUpdate(ctx context.Context, req BulkUpdateRequest) (BulkUpdateResult, error)

	// Summary counts statuses against the eligible headcount (admin)
	Summary(ctx context.Context, filter AttendanceFilter) (SummaryResponse, error)
}
