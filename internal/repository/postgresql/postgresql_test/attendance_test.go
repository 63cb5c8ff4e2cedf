package postgresql_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/cmlabs-hris/shift-attendance-go/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pkt = time.FixedZone("PKT", 5*3600)

func TestAttendanceRepository_InsertIfAbsent(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewAttendanceRepository(setup.DB)

	empID, err := setup.InsertEmployee(ctx, "Ayesha Khan", "Support", "active", "employee")
	require.NoError(t, err)

	d := shift.Date{Year: 2025, Month: time.March, Day: 10}

	t.Run("concurrent inserts create exactly one record", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			ids     = map[string]struct{}{}
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := repo.InsertIfAbsent(ctx, attendance.Attendance{
					EmployeeID: empID,
					ShiftDate:  d,
					Status:     attendance.StatusAbsent,
					AutoMarked: true,
				})
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				if res.Created {
					created++
				}
				ids[res.Record.ID] = struct{}{}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Len(t, ids, 1)
	})

	t.Run("claim placeholder only once", func(t *testing.T) {
		existing, err := repo.GetByEmployeeAndDate(ctx, empID, d)
		require.NoError(t, err)
		require.NotNil(t, existing)

		clockIn := time.Date(2025, 3, 10, 22, 0, 0, 0, pkt)
		rec, claimed, err := repo.ClaimPlaceholder(ctx, existing.ID, clockIn, attendance.StatusPresent)
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.True(t, rec.ClockIn.Equal(clockIn))
		assert.True(t, rec.AutoMarked)

		_, claimed, err = repo.ClaimPlaceholder(ctx, existing.ID, clockIn.Add(time.Minute), attendance.StatusPresent)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("require open rejects closed session", func(t *testing.T) {
		open, err := repo.FindOpenSession(ctx, empID, d)
		require.NoError(t, err)
		require.NotNil(t, open)

		out := time.Date(2025, 3, 11, 5, 0, 0, 0, pkt)
		closed, err := repo.UpdateByID(ctx, open.ID, attendance.Patch{ClockOut: &out, RequireOpen: true})
		require.NoError(t, err)
		assert.True(t, closed.ClockOut.Equal(out))

		_, err = repo.UpdateByID(ctx, open.ID, attendance.Patch{ClockOut: &out, RequireOpen: true})
		assert.ErrorIs(t, err, attendance.ErrSessionClosed)
	})

	t.Run("note append and check constraint", func(t *testing.T) {
		rec, err := repo.GetByEmployeeAndDate(ctx, empID, d)
		require.NoError(t, err)

		note := attendance.AutoClockOutNote
		updated, err := repo.UpdateByID(ctx, rec.ID, attendance.Patch{AppendNote: &note})
		require.NoError(t, err)
		assert.Equal(t, note, updated.Notes)

		updated, err = repo.UpdateByID(ctx, rec.ID, attendance.Patch{AppendNote: &note})
		require.NoError(t, err)
		assert.Equal(t, note+"\n"+note, updated.Notes)

		early := time.Date(2025, 3, 10, 19, 0, 0, 0, pkt)
		_, err = repo.UpdateByID(ctx, rec.ID, attendance.Patch{ClockOut: &early})
		assert.ErrorIs(t, err, attendance.ErrInvalidClockOrder)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)
	})
}

func TestAttendanceRepository_ListAndAggregate(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewAttendanceRepository(setup.DB)
	employees := postgresql.NewEmployeeRepository(setup.DB)

	support, err := setup.InsertEmployee(ctx, "Bilal Ahmed", "Support", "active", "employee")
	require.NoError(t, err)
	ops, err := setup.InsertEmployee(ctx, "Sana Malik", "Ops", "active", "employee")
	require.NoError(t, err)
	_, err = setup.InsertEmployee(ctx, "Admin", "Ops", "active", "admin")
	require.NoError(t, err)
	_, err = setup.InsertEmployee(ctx, "Former", "Ops", "inactive", "employee")
	require.NoError(t, err)

	eligible, err := employees.ListEligible(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, eligible, 2)

	dept := "Ops"
	eligible, err = employees.ListEligible(ctx, &dept)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, ops, eligible[0].ID)

	_, err = employees.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	d1 := shift.Date{Year: 2025, Month: time.March, Day: 10}
	d2 := d1.AddDays(1)
	in := time.Date(2025, 3, 10, 23, 0, 0, 0, pkt)

	for _, rec := range []attendance.Attendance{
		{EmployeeID: support, ShiftDate: d1, ClockIn: &in, Status: attendance.StatusLate},
		{EmployeeID: ops, ShiftDate: d1, Status: attendance.StatusAbsent, AutoMarked: true},
		{EmployeeID: ops, ShiftDate: d2, Status: attendance.StatusAbsent, AutoMarked: true},
	} {
		_, err := repo.InsertIfAbsent(ctx, rec)
		require.NoError(t, err)
	}

	list, err := repo.ListByShiftDate(ctx, d1, attendance.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bilal Ahmed", *list[0].EmployeeName)

	list, err = repo.ListByDateRange(ctx, d1, d2, attendance.Filter{Department: &dept})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	open, err := repo.ListByShiftDate(ctx, d1, attendance.Filter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, support, open[0].EmployeeID)

	counts, err := repo.AggregateStatusCounts(ctx, d1, d2, attendance.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, counts.ByStatus[attendance.StatusAbsent])
	assert.Equal(t, 1, counts.ByStatus[attendance.StatusLate])
	assert.Equal(t, 2, counts.AutoMarked)
	assert.Equal(t, 3, counts.Total)

	res, err := repo.BulkUpdate(ctx, []attendance.BulkUpdateItem{
		{ID: open[0].ID, Status: attendance.StatusPresent},
		{ID: open[0].ID, Status: attendance.StatusPresent},
		{ID: "00000000-0000-0000-0000-000000000000", Status: attendance.StatusPresent},
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.BulkUpdateResult{MatchedCount: 2, ModifiedCount: 1}, res)
}
