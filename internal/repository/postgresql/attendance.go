package postgresql

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the attendances table and its indexes if missing.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply attendance schema: %w", err)
	}
	return nil
}

const (
	returningColumns = `id, employee_id, shift_date, clock_in, clock_out, status,
		auto_marked, auto_clocked_out, notes, created_at, updated_at`

	selectColumns = `a.id, a.employee_id, a.shift_date, a.clock_in, a.clock_out, a.status,
		a.auto_marked, a.auto_clocked_out, a.notes, a.created_at, a.updated_at,
		e.full_name AS employee_name, e.department`

	fromJoined = `FROM attendances a
		LEFT JOIN employees e ON e.id::text = a.employee_id`

	pgUniqueViolation       = "23505"
	pgCheckViolation        = "23514"
	pgInvalidTextRepresent  = "22P02"
	maxInsertIfAbsentRounds = 3
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row rowScanner, withEmployee bool) (attendance.Attendance, error) {
	var (
		att       attendance.Attendance
		shiftDate time.Time
		status    string
	)
	dest := []any{
		&att.ID, &att.EmployeeID, &shiftDate, &att.ClockIn, &att.ClockOut, &status,
		&att.AutoMarked, &att.AutoClockedOut, &att.Notes, &att.CreatedAt, &att.UpdatedAt,
	}
	if withEmployee {
		dest = append(dest, &att.EmployeeName, &att.Department)
	}
	if err := row.Scan(dest...); err != nil {
		return attendance.Attendance{}, err
	}
	att.ShiftDate = shift.DateOf(shiftDate)
	att.Status = attendance.Status(status)
	return att, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// InsertIfAbsent implements attendance.AttendanceRepository.
func (a *attendanceRepository) InsertIfAbsent(ctx context.Context, rec attendance.Attendance) (attendance.InsertResult, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendances (employee_id, shift_date, clock_in, clock_out, status, auto_marked, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (employee_id, shift_date) DO NOTHING
		RETURNING ` + returningColumns

	// The conflicting row can disappear between the insert and the read
	// (administrative delete), so retry a bounded number of times.
	for round := 0; round < maxInsertIfAbsentRounds; round++ {
		created, err := scanAttendance(q.QueryRow(ctx, query,
			rec.EmployeeID,
			rec.ShiftDate.Time(),
			rec.ClockIn,
			rec.ClockOut,
			string(rec.Status),
			rec.AutoMarked,
			rec.Notes,
		), false)
		if err == nil {
			return attendance.InsertResult{Record: created, Created: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			if pgCode(err) == pgCheckViolation {
				return attendance.InsertResult{}, attendance.ErrInvalidClockOrder
			}
			return attendance.InsertResult{}, fmt.Errorf("failed to insert attendance: %w", err)
		}

		existing, err := a.GetByEmployeeAndDate(ctx, rec.EmployeeID, rec.ShiftDate)
		if err != nil {
			return attendance.InsertResult{}, err
		}
		if existing != nil {
			return attendance.InsertResult{Record: *existing, Created: false}, nil
		}
	}

	return attendance.InsertResult{}, fmt.Errorf("failed to insert attendance: conflicting record vanished %d times", maxInsertIfAbsentRounds)
}

// ClaimPlaceholder implements attendance.AttendanceRepository.
func (a *attendanceRepository) ClaimPlaceholder(ctx context.Context, id string, clockIn time.Time, status attendance.Status) (attendance.Attendance, bool, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendances
		SET clock_in = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND clock_in IS NULL
		RETURNING ` + returningColumns

	att, err := scanAttendance(q.QueryRow(ctx, query, id, clockIn, string(status)), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, false, nil
		}
		return attendance.Attendance{}, false, fmt.Errorf("failed to claim attendance placeholder: %w", err)
	}
	return att, true, nil
}

// FindOpenSession implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindOpenSession(ctx context.Context, employeeID string, shiftDate shift.Date) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + returningColumns + `
		FROM attendances
		WHERE employee_id = $1
		  AND shift_date = $2
		  AND clock_in IS NOT NULL
		  AND clock_out IS NULL
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, shiftDate.Time()), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return &att, nil
}

// GetByEmployeeAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID string, shiftDate shift.Date) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + returningColumns + `
		FROM attendances
		WHERE employee_id = $1 AND shift_date = $2
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, shiftDate.Time()), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by employee and date: %w", err)
	}
	return &att, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + selectColumns + ` ` + fromJoined + ` WHERE a.id = $1`

	att, err := scanAttendance(q.QueryRow(ctx, query, id), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidTextRepresent {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance by ID: %w", err)
	}
	return att, nil
}

// UpdateByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) UpdateByID(ctx context.Context, id string, patch attendance.Patch) (attendance.Attendance, error) {
	if patch.IsEmpty() {
		return attendance.Attendance{}, fmt.Errorf("no updatable fields provided for attendance update")
	}

	q := GetQuerier(ctx, a.db)

	updates := make([]string, 0)
	args := make([]interface{}, 0)
	argIdx := 1

	if patch.Status != nil {
		updates = append(updates, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*patch.Status))
		argIdx++
	}
	if patch.ClockIn != nil {
		updates = append(updates, fmt.Sprintf("clock_in = $%d", argIdx))
		args = append(args, *patch.ClockIn)
		argIdx++
	}
	if patch.ClockOut != nil {
		updates = append(updates, fmt.Sprintf("clock_out = $%d", argIdx))
		args = append(args, *patch.ClockOut)
		argIdx++
	}
	if patch.AppendNote != nil {
		updates = append(updates, fmt.Sprintf("notes = CASE WHEN notes = '' THEN $%d ELSE notes || E'\\n' || $%d END", argIdx, argIdx))
		args = append(args, *patch.AppendNote)
		argIdx++
	}
	if patch.AutoClockedOut != nil {
		updates = append(updates, fmt.Sprintf("auto_clocked_out = $%d", argIdx))
		args = append(args, *patch.AutoClockedOut)
		argIdx++
	}

	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	where := fmt.Sprintf("id = $%d", argIdx)
	if patch.RequireOpen {
		where += " AND clock_in IS NOT NULL AND clock_out IS NULL"
	}

	query := "UPDATE attendances SET " + strings.Join(updates, ", ") +
		" WHERE " + where + " RETURNING " + returningColumns

	att, err := scanAttendance(q.QueryRow(ctx, query, args...), false)
	if err == nil {
		return att, nil
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if !patch.RequireOpen {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		if _, getErr := a.GetByID(ctx, id); getErr != nil {
			return attendance.Attendance{}, getErr
		}
		return attendance.Attendance{}, attendance.ErrSessionClosed
	case pgCode(err) == pgInvalidTextRepresent:
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	case pgCode(err) == pgCheckViolation:
		return attendance.Attendance{}, attendance.ErrInvalidClockOrder
	default:
		return attendance.Attendance{}, fmt.Errorf("failed to update attendance: %w", err)
	}
}

// buildFilter appends filter predicates to a WHERE clause whose first free
// placeholder is argIdx.
func buildFilter(where string, args []interface{}, filter attendance.Filter) (string, []interface{}) {
	argIdx := len(args) + 1

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		where += fmt.Sprintf(" AND a.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.Department != nil && *filter.Department != "" {
		where += fmt.Sprintf(" AND e.department = $%d", argIdx)
		args = append(args, *filter.Department)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		where += fmt.Sprintf(" AND a.status = $%d", argIdx)
		args = append(args, string(*filter.Status))
	}
	if filter.OpenOnly {
		where += " AND a.clock_in IS NOT NULL AND a.clock_out IS NULL"
	}
	return where, args
}

func (a *attendanceRepository) list(ctx context.Context, where string, args []interface{}) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + selectColumns + ` ` + fromJoined + `
		WHERE ` + where + `
		ORDER BY a.shift_date, e.full_name NULLS LAST, a.employee_id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return attendances, nil
}

// ListByShiftDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByShiftDate(ctx context.Context, shiftDate shift.Date, filter attendance.Filter) ([]attendance.Attendance, error) {
	where, args := buildFilter("a.shift_date = $1", []interface{}{shiftDate.Time()}, filter)
	return a.list(ctx, where, args)
}

// ListByDateRange implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByDateRange(ctx context.Context, start, end shift.Date, filter attendance.Filter) ([]attendance.Attendance, error) {
	where, args := buildFilter("a.shift_date BETWEEN $1 AND $2", []interface{}{start.Time(), end.Time()}, filter)
	return a.list(ctx, where, args)
}

// AggregateStatusCounts implements attendance.AttendanceRepository.
func (a *attendanceRepository) AggregateStatusCounts(ctx context.Context, start, end shift.Date, filter attendance.Filter) (attendance.StatusCounts, error) {
	q := GetQuerier(ctx, a.db)

	where, args := buildFilter("a.shift_date BETWEEN $1 AND $2", []interface{}{start.Time(), end.Time()}, filter)
	query := `
		SELECT a.status,
			   COUNT(*),
			   COUNT(*) FILTER (WHERE a.auto_marked),
			   COUNT(*) FILTER (WHERE a.auto_clocked_out)
		` + fromJoined + `
		WHERE ` + where + `
		GROUP BY a.status`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return attendance.StatusCounts{}, fmt.Errorf("failed to aggregate attendance: %w", err)
	}
	defer rows.Close()

	counts := attendance.StatusCounts{ByStatus: make(map[attendance.Status]int, len(attendance.Statuses))}
	for rows.Next() {
		var (
			status                          string
			total, autoMarked, autoClockOut int
		)
		if err := rows.Scan(&status, &total, &autoMarked, &autoClockOut); err != nil {
			return attendance.StatusCounts{}, fmt.Errorf("failed to scan attendance aggregate: %w", err)
		}
		counts.ByStatus[attendance.Status(status)] = total
		counts.AutoMarked += autoMarked
		counts.AutoClockedOut += autoClockOut
		counts.Total += total
	}
	if err := rows.Err(); err != nil {
		return attendance.StatusCounts{}, fmt.Errorf("failed to iterate attendance aggregate: %w", err)
	}

	return counts, nil
}

// BulkUpdate implements attendance.AttendanceRepository.
func (a *attendanceRepository) BulkUpdate(ctx context.Context, items []attendance.BulkUpdateItem) (attendance.BulkUpdateResult, error) {
	var result attendance.BulkUpdateResult

	err := WithTransaction(ctx, a.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, a.db)

		for _, item := range items {
			var (
				status            string
				clockIn, clockOut *time.Time
			)
			err := q.QueryRow(ctx,
				`SELECT status, clock_in, clock_out FROM attendances WHERE id = $1 FOR UPDATE`,
				item.ID,
			).Scan(&status, &clockIn, &clockOut)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidTextRepresent {
					continue
				}
				return fmt.Errorf("failed to lock attendance %s: %w", item.ID, err)
			}
			result.MatchedCount++

			newIn, newOut := clockIn, clockOut
			if item.ClockIn != nil {
				newIn = item.ClockIn
			}
			if item.ClockOut != nil {
				newOut = item.ClockOut
			}
			if status == string(item.Status) && timePtrEqual(clockIn, newIn) && timePtrEqual(clockOut, newOut) {
				continue
			}

			if _, err := q.Exec(ctx,
				`UPDATE attendances SET status = $2, clock_in = $3, clock_out = $4, updated_at = NOW() WHERE id = $1`,
				item.ID, string(item.Status), newIn, newOut,
			); err != nil {
				if pgCode(err) == pgCheckViolation {
					return fmt.Errorf("attendance %s: %w", item.ID, attendance.ErrInvalidClockOrder)
				}
				return fmt.Errorf("failed to update attendance %s: %w", item.ID, err)
			}
			result.ModifiedCount++
		}
		return nil
	})
	if err != nil {
		return attendance.BulkUpdateResult{}, err
	}

	return result, nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
