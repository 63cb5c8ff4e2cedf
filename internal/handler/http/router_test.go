package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/cron"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/cmlabs-hris/shift-attendance-go/internal/repository/memory"
	attendanceService "github.com/cmlabs-hris/shift-attendance-go/internal/service/attendance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

var pkt = time.FixedZone("PKT", 5*3600)

type fixedClock struct{ now *time.Time }

func (c fixedClock) Now() time.Time                         { return *c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return make(chan time.Time) }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	now           time.Time
	handler       http.Handler
	store         *memory.AttendanceRepository
	employeeToken string
	adminToken    string
}

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T, scheduler JobScheduler, runs RunReader) *testServer {
	t.Helper()

	w, err := shift.NewWindow(shift.TimeOfDay{Hour: 18}, shift.TimeOfDay{Hour: 5, Minute: 30}, pkt)
	require.NoError(t, err)

	staff := user.RoleEmployee
	employees := memory.NewEmployeeRepository(
		employee.Employee{ID: "emp-a", UserID: strPtr("u-a"), FullName: "Ayesha Khan", Department: strPtr("Support"), Status: employee.EmploymentStatusActive, Role: &staff},
		employee.Employee{ID: "emp-b", UserID: strPtr("u-b"), FullName: "Bilal Ahmed", Department: strPtr("Ops"), Status: employee.EmploymentStatusActive, Role: &staff},
	)

	ts := &testServer{now: time.Date(2025, time.March, 10, 22, 0, 0, 0, pkt)}
	ts.store = memory.NewAttendanceRepository(employees)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := attendanceService.NewAttendanceService(
		attendanceService.Config{Window: w, LateAfter: 4 * time.Hour},
		ts.store,
		employees,
		attendanceService.WithClock(func() time.Time { return ts.now }),
		attendanceService.WithMetrics(m),
	)

	if scheduler == nil {
		s := cron.NewScheduler(pkt, cron.WithClock(fixedClock{now: &ts.now}), cron.WithLogger(logger), cron.WithMetrics(m))
		cron.NewAttendanceJobs(ts.store, employees, w, 30*time.Minute, logger, m).
			RegisterJobs(s, shift.TimeOfDay{Hour: 6, Minute: 30})
		scheduler = s
	}

	jwtService := jwt.NewJWTService(handlerTestSecret, time.Hour)
	ts.employeeToken, _, err = jwtService.GenerateAccessToken("u-a", strPtr("emp-a"), user.RoleEmployee)
	require.NoError(t, err)
	ts.adminToken, _, err = jwtService.GenerateAccessToken("admin-1", nil, user.RoleAdmin)
	require.NoError(t, err)

	ts.handler = NewRouter(
		logger,
		jwtService,
		NewAttendanceHandler(svc),
		NewJobHandler(scheduler, runs),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestWindowIsPublic(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	code, env := ts.do(t, http.MethodGet, "/api/v1/attendance/window", "", nil)
	require.Equal(t, http.StatusOK, code)

	var info struct {
		IsWithinWindow bool   `json:"isWithinWindow"`
		AllowedWindow  string `json:"allowedWindow"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.True(t, info.IsWithinWindow)
	assert.Equal(t, "18:00 - 05:30 (PKT)", info.AllowedWindow)
}

func TestClockingRequiresEmployeeToken(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	code, _ := ts.do(t, http.MethodPost, "/api/v1/attendance/clock-in", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := ts.do(t, http.MethodPost, "/api/v1/attendance/clock-in", ts.adminToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestClockInOutFlow(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	code, env := ts.do(t, http.MethodPost, "/api/v1/attendance/clock-in", ts.employeeToken, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	var in struct {
		ShiftDate string `json:"shiftDate"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &in))
	assert.Equal(t, "2025-03-10", in.ShiftDate)
	assert.Equal(t, "Present", in.Status)

	code, env = ts.do(t, http.MethodPost, "/api/v1/attendance/clock-in", ts.employeeToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ALREADY_CLOCKED_IN", env.Error.Code)

	ts.now = time.Date(2025, time.March, 11, 4, 0, 0, 0, pkt)
	code, env = ts.do(t, http.MethodPost, "/api/v1/attendance/clock-out", ts.employeeToken, nil)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		HoursWorked float64 `json:"hoursWorked"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 6.0, out.HoursWorked)

	// The closed session is no longer open.
	code, env = ts.do(t, http.MethodPost, "/api/v1/attendance/clock-out", ts.employeeToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NO_ACTIVE_SESSION", env.Error.Code)

	code, env = ts.do(t, http.MethodGet, "/api/v1/attendance/status", ts.employeeToken, nil)
	require.Equal(t, http.StatusOK, code)
	var status struct {
		IsClockedIn  bool `json:"isClockedIn"`
		IsClockedOut bool `json:"isClockedOut"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.IsClockedIn)
	assert.True(t, status.IsClockedOut)
}

func TestClockOutWithoutSession(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	code, env := ts.do(t, http.MethodPost, "/api/v1/attendance/clock-out", ts.employeeToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NO_ACTIVE_SESSION", env.Error.Code)
}

func TestClockInOutsideWindow(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.now = time.Date(2025, time.March, 10, 10, 0, 0, 0, pkt)

	code, env := ts.do(t, http.MethodPost, "/api/v1/attendance/clock-in", ts.employeeToken, nil)
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "OUTSIDE_WINDOW", env.Error.Code)
	assert.Equal(t, "18:00 - 05:30 (PKT)", env.Error.Details["allowedWindow"])
	assert.Equal(t, "2025-03-10T18:00:00+05:00", env.Error.Details["nextAvailableTime"])
	assert.Equal(t, "2025-03-10T10:00:00+05:00", env.Error.Details["currentTime"])
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	t.Run("employee token is rejected", func(t *testing.T) {
		code, env := ts.do(t, http.MethodGet, "/api/v1/admin/attendance", ts.employeeToken, nil)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "FORBIDDEN", env.Error.Code)
	})

	t.Run("seed then list", func(t *testing.T) {
		ts.now = time.Date(2025, time.March, 10, 18, 0, 0, 0, pkt)
		code, env := ts.do(t, http.MethodPost, "/api/v1/admin/attendance/seed", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, code)

		var seeded cron.SeedResult
		require.NoError(t, json.Unmarshal(env.Data, &seeded))
		assert.Equal(t, 2, seeded.TotalEligible)
		assert.Equal(t, 2, seeded.Created)

		ts.now = time.Date(2025, time.March, 10, 19, 0, 0, 0, pkt)
		code, env = ts.do(t, http.MethodGet, "/api/v1/admin/attendance?date=2025-03-10&status=Absent", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, code)

		var records []struct {
			EmployeeID string `json:"employeeId"`
			AutoMarked bool   `json:"autoMarked"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &records))
		require.Len(t, records, 2)
		assert.Equal(t, "emp-a", records[0].EmployeeID)
		assert.True(t, records[0].AutoMarked)
	})

	t.Run("summary", func(t *testing.T) {
		code, env := ts.do(t, http.MethodGet, "/api/v1/admin/attendance/summary?date=2025-03-10", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, code)

		var summary struct {
			Absent         int `json:"Absent"`
			TotalEmployees int `json:"totalEmployees"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Equal(t, 2, summary.Absent)
		assert.Equal(t, 2, summary.TotalEmployees)
	})

	t.Run("manual finalization", func(t *testing.T) {
		code, env := ts.do(t, http.MethodPost, "/api/v1/admin/attendance/finalize", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, code)

		var finalized cron.FinalizeResult
		require.NoError(t, json.Unmarshal(env.Data, &finalized))
		assert.Equal(t, "2025-03-09", finalized.ShiftDate.String())
		assert.Zero(t, finalized.OpenSessions)
	})

	t.Run("invalid filter", func(t *testing.T) {
		code, env := ts.do(t, http.MethodGet, "/api/v1/admin/attendance?date=2025-13-01", ts.adminToken, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Details, "date")
	})

	t.Run("update missing record", func(t *testing.T) {
		code, env := ts.do(t, http.MethodPatch, "/api/v1/admin/attendance/missing", ts.adminToken, map[string]string{"status": "Present"})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("bulk update rejects empty batch", func(t *testing.T) {
		code, env := ts.do(t, http.MethodPost, "/api/v1/admin/attendance/bulk", ts.adminToken, map[string]any{"items": []any{}})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("job info", func(t *testing.T) {
		code, env := ts.do(t, http.MethodGet, "/api/v1/admin/jobs/"+cron.SeedJobName, ts.adminToken, nil)
		require.Equal(t, http.StatusOK, code)

		var job JobResponse
		require.NoError(t, json.Unmarshal(env.Data, &job))
		assert.Equal(t, cron.SeedJobName, job.Name)
		assert.True(t, job.NextRun.Equal(time.Date(2025, time.March, 11, 18, 0, 0, 0, pkt)))
		assert.Nil(t, job.LastRun)

		code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/jobs/unknown", ts.adminToken, nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

type busyScheduler struct{}

func (busyScheduler) Trigger(context.Context, string) (any, error) { return nil, cron.ErrJobRunning }
func (busyScheduler) NextRun(string) (time.Time, error)           { return time.Time{}, nil }

type stubRuns struct{ run cron.Run }

func (s stubRuns) LastRun(context.Context, string) (cron.Run, error) { return s.run, nil }
func (s stubRuns) History(context.Context, string, int) ([]cron.Run, error) {
	return []cron.Run{s.run}, nil
}

func TestTriggerWhileRunning(t *testing.T) {
	ts := newTestServer(t, busyScheduler{}, nil)

	code, env := ts.do(t, http.MethodPost, "/api/v1/admin/attendance/seed", ts.adminToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestJobInfoWithRecordedRun(t *testing.T) {
	run := cron.Run{Job: cron.FinalizeJobName, Trigger: cron.TriggerSchedule}
	ts := newTestServer(t, nil, stubRuns{run: run})

	code, env := ts.do(t, http.MethodGet, "/api/v1/admin/jobs/"+cron.FinalizeJobName+"?history=5", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, code)

	var job JobResponse
	require.NoError(t, json.Unmarshal(env.Data, &job))
	require.NotNil(t, job.LastRun)
	assert.Equal(t, cron.TriggerSchedule, job.LastRun.Trigger)
	assert.Len(t, job.History, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.do(t, http.MethodPost, "/api/v1/attendance/clock-in", ts.employeeToken, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "attendance_clock_events_total")
}
