package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
)

// Config carries the clocking policy.
type Config struct {
	Window *shift.Window

	// LateAfter is the grace period after the window opens. A clock-in later
	// than OpensAt+LateAfter is Late. Zero disables Late.
	LateAfter time.Duration

	// BypassWindow lets clock-in/out through during the daytime gap. Only
	// honoured in development; the caller decides.
	BypassWindow bool
}

type Option func(*AttendanceServiceImpl)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *AttendanceServiceImpl) { a.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *AttendanceServiceImpl) { a.metrics = m }
}

type AttendanceServiceImpl struct {
	attendance.AttendanceRepository
	employee.EmployeeRepository

	window       *shift.Window
	lateAfter    time.Duration
	bypassWindow bool
	now          func() time.Time
	metrics      *metrics.Metrics
}

func NewAttendanceService(
	cfg Config,
	attendanceRepo attendance.AttendanceRepository,
	employeeRepo employee.EmployeeRepository,
	opts ...Option,
) attendance.AttendanceService {
	a := &AttendanceServiceImpl{
		AttendanceRepository: attendanceRepo,
		EmployeeRepository:   employeeRepo,
		window:               cfg.Window,
		lateAfter:            cfg.LateAfter,
		bypassWindow:         cfg.BypassWindow,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// shiftDateFor resolves the shift an interactive action at now belongs to.
func (a *AttendanceServiceImpl) shiftDateFor(now time.Time) (shift.Date, error) {
	if d, ok := a.window.ShiftDateOf(now); ok {
		return d, nil
	}
	if a.bypassWindow {
		return a.window.OpeningShiftDate(now), nil
	}
	return shift.Date{}, &attendance.OutsideWindowError{
		CurrentTime:       now.In(a.window.Location),
		AllowedWindow:     a.window.String(),
		NextAvailableTime: a.window.NextOpen(now),
	}
}

func (a *AttendanceServiceImpl) statusAt(now time.Time, d shift.Date) attendance.Status {
	if a.lateAfter > 0 && now.After(a.window.OpensAt(d).Add(a.lateAfter)) {
		return attendance.StatusLate
	}
	return attendance.StatusPresent
}

func clockOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, attendance.ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		return "already_clocked_in"
	case errors.Is(err, attendance.ErrAlreadyClockedOut):
		return "already_clocked_out"
	case errors.Is(err, attendance.ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return "employee_not_found"
	default:
		return "error"
	}
}

// ClockIn implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ClockIn(ctx context.Context, employeeID string) (resp attendance.ClockInResponse, err error) {
	defer func() { a.metrics.RecordClock("clock_in", clockOutcome(err)) }()

	now := a.now()

	shiftDate, err := a.shiftDateFor(now)
	if err != nil {
		return attendance.ClockInResponse{}, err
	}

	emp, err := a.EmployeeRepository.GetByID(ctx, employeeID)
	if err != nil {
		return attendance.ClockInResponse{}, err
	}
	// Only the population seeding and finalization cover may clock in.
	if !emp.Eligible() {
		return attendance.ClockInResponse{}, employee.ErrEmployeeNotFound
	}

	status := a.statusAt(now, shiftDate)
	clockIn := now

	res, err := a.AttendanceRepository.InsertIfAbsent(ctx, attendance.Attendance{
		EmployeeID: employeeID,
		ShiftDate:  shiftDate,
		ClockIn:    &clockIn,
		Status:     status,
	})
	if err != nil {
		return attendance.ClockInResponse{}, fmt.Errorf("failed to record clock in: %w", err)
	}

	rec := res.Record
	if !res.Created {
		rec, err = a.claimExisting(ctx, res.Record, clockIn, status)
		if err != nil {
			return attendance.ClockInResponse{}, err
		}
	}

	return attendance.ClockInResponse{
		ID:        rec.ID,
		ShiftDate: rec.ShiftDate,
		ClockIn:   *rec.ClockIn,
		Status:    rec.Status,
		Employee: attendance.EmployeeSummary{
			ID:         emp.ID,
			FullName:   emp.FullName,
			Department: emp.Department,
		},
	}, nil
}

// claimExisting handles the duplicate branch of a clock-in. Only a seeded
// placeholder can be taken over, and only through the conditional claim.
func (a *AttendanceServiceImpl) claimExisting(ctx context.Context, existing attendance.Attendance, clockIn time.Time, status attendance.Status) (attendance.Attendance, error) {
	if err := conflictOf(existing); err != nil {
		return attendance.Attendance{}, err
	}

	claimed, ok, err := a.AttendanceRepository.ClaimPlaceholder(ctx, existing.ID, clockIn, status)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to claim absence placeholder: %w", err)
	}
	if ok {
		return claimed, nil
	}

	// Someone else claimed it first; report what they left behind.
	current, err := a.AttendanceRepository.GetByID(ctx, existing.ID)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to re-read attendance after lost claim: %w", err)
	}
	if err := conflictOf(current); err != nil {
		return attendance.Attendance{}, err
	}
	return attendance.Attendance{}, fmt.Errorf("failed to claim absence placeholder %s", existing.ID)
}

func conflictOf(rec attendance.Attendance) error {
	switch {
	case rec.ClockOut != nil:
		return attendance.ErrAlreadyClockedOut
	case rec.ClockIn != nil:
		return attendance.ErrAlreadyClockedIn
	}
	return nil
}

// ClockOut implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ClockOut(ctx context.Context, employeeID string) (resp attendance.ClockOutResponse, err error) {
	defer func() { a.metrics.RecordClock("clock_out", clockOutcome(err)) }()

	now := a.now()

	shiftDate, err := a.shiftDateFor(now)
	if err != nil {
		return attendance.ClockOutResponse{}, err
	}

	open, err := a.AttendanceRepository.FindOpenSession(ctx, employeeID, shiftDate)
	if err != nil {
		return attendance.ClockOutResponse{}, fmt.Errorf("failed to find open session: %w", err)
	}
	if open == nil {
		return attendance.ClockOutResponse{}, attendance.ErrNoActiveSession
	}

	clockOut := now
	updated, err := a.AttendanceRepository.UpdateByID(ctx, open.ID, attendance.Patch{
		ClockOut:    &clockOut,
		RequireOpen: true,
	})
	if err != nil {
		if errors.Is(err, attendance.ErrSessionClosed) {
			return attendance.ClockOutResponse{}, attendance.ErrAlreadyClockedOut
		}
		if errors.Is(err, attendance.ErrInvalidClockOrder) {
			return attendance.ClockOutResponse{}, err
		}
		return attendance.ClockOutResponse{}, fmt.Errorf("failed to record clock out: %w", err)
	}

	worked := updated.Worked()
	a.metrics.RecordSession(worked)

	return attendance.ClockOutResponse{
		ID:          updated.ID,
		ShiftDate:   updated.ShiftDate,
		ClockIn:     *updated.ClockIn,
		ClockOut:    *updated.ClockOut,
		HoursWorked: roundHours(worked),
	}, nil
}

// GetStatus implements attendance.AttendanceService. In the daytime gap it
// reports the shift that most recently ended.
func (a *AttendanceServiceImpl) GetStatus(ctx context.Context, employeeID string) (attendance.StatusResponse, error) {
	now := a.now()

	shiftDate, ok := a.window.ShiftDateOf(now)
	if !ok {
		if a.bypassWindow {
			shiftDate = a.window.OpeningShiftDate(now)
		} else {
			shiftDate = a.window.CurrentOrLastShiftDate(now)
		}
	}

	rec, err := a.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, shiftDate)
	if err != nil {
		return attendance.StatusResponse{}, fmt.Errorf("failed to get attendance status: %w", err)
	}

	resp := attendance.StatusResponse{ShiftDate: &shiftDate}
	if rec != nil {
		resp.IsClockedIn = rec.ClockIn != nil
		resp.IsClockedOut = rec.ClockOut != nil
		mapped := mapAttendanceToResponse(*rec)
		resp.Record = &mapped
	}
	return resp, nil
}

// GetWindowInfo implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetWindowInfo(_ context.Context) attendance.WindowInfoResponse {
	now := a.now().In(a.window.Location)
	return attendance.WindowInfoResponse{
		IsWithinWindow:    a.window.Contains(now),
		AllowedWindow:     a.window.String(),
		CurrentTime:       now,
		NextAvailableTime: a.window.NextOpen(now),
	}
}

// resolveRange fills From/To, defaulting to the running or last shift.
func (a *AttendanceServiceImpl) resolveRange(filter *attendance.AttendanceFilter) (attendance.Filter, error) {
	if err := filter.Validate(); err != nil {
		return attendance.Filter{}, err
	}
	if !filter.HasDates() {
		d := a.window.CurrentOrLastShiftDate(a.now())
		filter.From, filter.To = d, d
	}

	var f attendance.Filter
	f.Department = filter.Department
	if filter.Status != nil {
		s := attendance.Status(*filter.Status)
		f.Status = &s
	}
	return f, nil
}

// ListAttendance implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ListAttendance(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.AttendanceResponse, error) {
	f, err := a.resolveRange(&filter)
	if err != nil {
		return nil, err
	}

	attendances, err := a.AttendanceRepository.ListByDateRange(ctx, filter.From, filter.To, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}

	responses := make([]attendance.AttendanceResponse, 0, len(attendances))
	for _, att := range attendances {
		responses = append(responses, mapAttendanceToResponse(att))
	}
	return responses, nil
}

// UpdateAttendance implements attendance.AttendanceService.
// This allows admins to fix wrong clock times or statuses.
func (a *AttendanceServiceImpl) UpdateAttendance(ctx context.Context, req attendance.UpdateAttendanceRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	existing, err := a.AttendanceRepository.GetByID(ctx, req.ID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	clockIn, clockOut := existing.ClockIn, existing.ClockOut
	if req.ClockIn != nil {
		clockIn = req.ClockIn
	}
	if req.ClockOut != nil {
		clockOut = req.ClockOut
	}
	if clockOut != nil && clockIn == nil {
		return attendance.AttendanceResponse{}, attendance.ErrClockOutWithoutIn
	}
	if clockOut != nil && clockOut.Before(*clockIn) {
		return attendance.AttendanceResponse{}, attendance.ErrInvalidClockOrder
	}

	patch := attendance.Patch{ClockIn: req.ClockIn, ClockOut: req.ClockOut}
	if req.Status != nil {
		s := attendance.Status(*req.Status)
		patch.Status = &s
	}

	updated, err := a.AttendanceRepository.UpdateByID(ctx, req.ID, patch)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) || errors.Is(err, attendance.ErrInvalidClockOrder) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance: %w", err)
	}
	updated.EmployeeName = existing.EmployeeName
	updated.Department = existing.Department

	return mapAttendanceToResponse(updated), nil
}

// BulkUpdate implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) BulkUpdate(ctx context.Context, req attendance.BulkUpdateRequest) (attendance.BulkUpdateResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.BulkUpdateResult{}, err
	}

	items := make([]attendance.BulkUpdateItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, attendance.BulkUpdateItem{
			ID:       item.ID,
			Status:   attendance.Status(item.Status),
			ClockIn:  item.ClockIn,
			ClockOut: item.ClockOut,
		})
	}

	result, err := a.AttendanceRepository.BulkUpdate(ctx, items)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidClockOrder) || errors.Is(err, attendance.ErrClockOutWithoutIn) {
			return attendance.BulkUpdateResult{}, err
		}
		return attendance.BulkUpdateResult{}, fmt.Errorf("failed to bulk update attendances: %w", err)
	}
	return result, nil
}

// Summary implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) Summary(ctx context.Context, filter attendance.AttendanceFilter) (attendance.SummaryResponse, error) {
	f, err := a.resolveRange(&filter)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}

	counts, err := a.AttendanceRepository.AggregateStatusCounts(ctx, filter.From, filter.To, f)
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to aggregate attendances: %w", err)
	}

	eligible, err := a.EmployeeRepository.ListEligible(ctx, filter.Department)
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to count eligible employees: %w", err)
	}

	return attendance.SummaryResponse{
		From:           filter.From,
		To:             filter.To,
		Present:        counts.ByStatus[attendance.StatusPresent],
		Absent:         counts.ByStatus[attendance.StatusAbsent],
		Late:           counts.ByStatus[attendance.StatusLate],
		HalfDay:        counts.ByStatus[attendance.StatusHalfDay],
		AutoMarked:     counts.AutoMarked,
		AutoClockedOut: counts.AutoClockedOut,
		TotalEmployees: len(eligible),
	}, nil
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

// mapAttendanceToResponse converts an Attendance entity to AttendanceResponse
func mapAttendanceToResponse(att attendance.Attendance) attendance.AttendanceResponse {
	var hoursWorked *float64
	if att.ClockIn != nil && att.ClockOut != nil {
		h := roundHours(att.Worked())
		hoursWorked = &h
	}

	return attendance.AttendanceResponse{
		ID:             att.ID,
		EmployeeID:     att.EmployeeID,
		EmployeeName:   att.EmployeeName,
		Department:     att.Department,
		ShiftDate:      att.ShiftDate,
		ClockIn:        att.ClockIn,
		ClockOut:       att.ClockOut,
		HoursWorked:    hoursWorked,
		Status:         att.Status,
		AutoMarked:     att.AutoMarked,
		AutoClockedOut: att.AutoClockedOut,
		Notes:          att.Notes,
		CreatedAt:      att.CreatedAt,
		UpdatedAt:      att.UpdatedAt,
	}
}
