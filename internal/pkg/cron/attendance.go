package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
)

const (
	SeedJobName     = "seed-absences"
	FinalizeJobName = "finalize-shift"
)

// ItemFailure is one record or employee a batch could not process.
type ItemFailure struct {
	EmployeeID string `json:"employeeId"`
	RecordID   string `json:"recordId,omitempty"`
	Error      string `json:"error"`
}

type SeedResult struct {
	ShiftDate      shift.Date    `json:"shiftDate"`
	TotalEligible  int           `json:"totalEligible"`
	Created        int           `json:"created"`
	AlreadyPresent int           `json:"alreadyPresent"`
	Errors         int           `json:"errors"`
	Failures       []ItemFailure `json:"failures,omitempty"`
}

// ShiftSummary tallies every record of one shift.
type ShiftSummary struct {
	Counts         map[attendance.Status]int `json:"counts"`
	AutoMarked     int                       `json:"autoMarked"`
	AutoClockedOut int                       `json:"autoClockedOut"`
	Total          int                       `json:"total"`
}

type FinalizeResult struct {
	ShiftDate    shift.Date    `json:"shiftDate"`
	OpenSessions int           `json:"openSessions"`
	Closed       int           `json:"closed"`
	Skipped      int           `json:"skipped"`
	Errors       int           `json:"errors"`
	Failures     []ItemFailure `json:"failures,omitempty"`
	Summary      ShiftSummary  `json:"summary"`
}

type AttendanceJobs struct {
	attendanceRepo attendance.AttendanceRepository
	employeeRepo   employee.EmployeeRepository
	window         *shift.Window
	minWork        time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

func NewAttendanceJobs(
	attendanceRepo attendance.AttendanceRepository,
	employeeRepo employee.EmployeeRepository,
	window *shift.Window,
	minWork time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *AttendanceJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceJobs{
		attendanceRepo: attendanceRepo,
		employeeRepo:   employeeRepo,
		window:         window,
		minWork:        minWork,
		logger:         logger,
		metrics:        m,
	}
}

// RegisterJobs schedules seeding at window start and finalization at finalizeAt.
func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, finalizeAt shift.TimeOfDay) {
	scheduler.AddDailyJob(SeedJobName, j.window.Start, func(ctx context.Context, firedAt time.Time) (any, error) {
		return j.SeedAbsences(ctx, firedAt)
	})
	scheduler.AddDailyJob(FinalizeJobName, finalizeAt, func(ctx context.Context, firedAt time.Time) (any, error) {
		return j.FinalizeShift(ctx, firedAt)
	})
}

// SeedAbsences creates an auto-marked Absent placeholder for every eligible
// employee of the shift opening at trigger. Rerunning it for the same shift
// creates nothing new.
func (j *AttendanceJobs) SeedAbsences(ctx context.Context, trigger time.Time) (SeedResult, error) {
	result := SeedResult{ShiftDate: j.window.OpeningShiftDate(trigger)}

	employees, err := j.employeeRepo.ListEligible(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to list eligible employees: %w", err)
	}
	result.TotalEligible = len(employees)

	for _, emp := range employees {
		res, err := j.attendanceRepo.InsertIfAbsent(ctx, attendance.Attendance{
			EmployeeID: emp.ID,
			ShiftDate:  result.ShiftDate,
			Status:     attendance.StatusAbsent,
			AutoMarked: true,
		})
		if err != nil {
			result.Errors++
			result.Failures = append(result.Failures, ItemFailure{EmployeeID: emp.ID, Error: err.Error()})
			j.logger.Warn("Cron: failed to seed absence", "employee_id", emp.ID, "shift_date", result.ShiftDate, "error", err)
			continue
		}
		if res.Created {
			result.Created++
		} else {
			result.AlreadyPresent++
		}
	}

	j.metrics.AddJobItems(SeedJobName, "created", result.Created)
	j.metrics.AddJobItems(SeedJobName, "already_present", result.AlreadyPresent)
	j.metrics.AddJobItems(SeedJobName, "error", result.Errors)

	return result, nil
}

// FinalizeShift closes the sessions left open on the shift that ended
// before trigger, then summarises that shift. The clock-out written is the
// shift's canonical close instant, never trigger itself.
func (j *AttendanceJobs) FinalizeShift(ctx context.Context, trigger time.Time) (FinalizeResult, error) {
	shiftDate := j.window.ClosingShiftDate(trigger)
	result := FinalizeResult{ShiftDate: shiftDate}

	open, err := j.attendanceRepo.ListByShiftDate(ctx, shiftDate, attendance.Filter{OpenOnly: true})
	if err != nil {
		return result, fmt.Errorf("failed to list open sessions: %w", err)
	}
	result.OpenSessions = len(open)

	closeAt := j.window.ClosesAt(shiftDate)
	note := attendance.AutoClockOutNote
	autoClockedOut := true

	for _, rec := range open {
		if rec.ClockIn == nil {
			continue
		}
		// Too fresh to close, or clocked in after the canonical close.
		if trigger.Sub(*rec.ClockIn) < j.minWork || closeAt.Before(*rec.ClockIn) {
			result.Skipped++
			continue
		}

		_, err := j.attendanceRepo.UpdateByID(ctx, rec.ID, attendance.Patch{
			ClockOut:       &closeAt,
			AppendNote:     &note,
			AutoClockedOut: &autoClockedOut,
			RequireOpen:    true,
		})
		if err != nil {
			if errors.Is(err, attendance.ErrSessionClosed) {
				// The employee clocked out while the sweep ran.
				result.Skipped++
				continue
			}
			result.Errors++
			result.Failures = append(result.Failures, ItemFailure{EmployeeID: rec.EmployeeID, RecordID: rec.ID, Error: err.Error()})
			j.logger.Warn("Cron: failed to auto clock out", "attendance_id", rec.ID, "employee_id", rec.EmployeeID, "error", err)
			continue
		}
		result.Closed++
	}

	j.metrics.AddJobItems(FinalizeJobName, "closed", result.Closed)
	j.metrics.AddJobItems(FinalizeJobName, "skipped", result.Skipped)
	j.metrics.AddJobItems(FinalizeJobName, "error", result.Errors)

	counts, err := j.attendanceRepo.AggregateStatusCounts(ctx, shiftDate, shiftDate, attendance.Filter{})
	if err != nil {
		return result, fmt.Errorf("failed to summarise shift %s: %w", shiftDate, err)
	}
	result.Summary = ShiftSummary{
		Counts:         make(map[attendance.Status]int, len(attendance.Statuses)),
		AutoMarked:     counts.AutoMarked,
		AutoClockedOut: counts.AutoClockedOut,
		Total:          counts.Total,
	}
	for _, s := range attendance.Statuses {
		result.Summary.Counts[s] = counts.ByStatus[s]
	}

	return result, nil
}
