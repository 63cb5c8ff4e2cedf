package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/config"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/shift-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/shift-attendance-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/shift-attendance-go/internal/handler/http"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/cron"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/shift-attendance-go/internal/repository/memory"
	"github.com/cmlabs-hris/shift-attendance-go/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/shift-attendance-go/internal/service/attendance"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	logFormat := httplog.SchemaECS.Concise(!cfg.IsDevelopment())
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "shift-attendance"),
		slog.String("env", cfg.App.Env),
	)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	window, err := cfg.Window()
	if err != nil {
		return err
	}

	var (
		attendanceRepo attendance.AttendanceRepository
		employeeRepo   employee.EmployeeRepository
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := postgresql.EnsureSchema(ctx, db); err != nil {
			return err
		}
		attendanceRepo = postgresql.NewAttendanceRepository(db)
		employeeRepo = postgresql.NewEmployeeRepository(db)
	case config.StoreDriverMemory:
		employees := memory.NewEmployeeRepository(fixtures.DevEmployees()...)
		attendanceRepo = memory.NewAttendanceRepository(employees)
		employeeRepo = employees
		logger.Warn("Using in-memory store; records are lost on restart")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var (
		sinks    []cron.RunSink
		recorder *cron.JobRunRecorder
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		recorder = cron.NewJobRunRecorder(rdb, cfg.Redis.HistorySize)
		sinks = append(sinks, recorder)
	}

	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
		defer ch.Close()

		if _, err := ch.QueueDeclare(cfg.RabbitMQ.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", cfg.RabbitMQ.Queue, err)
		}
		sinks = append(sinks, cron.NewResultPublisher(ch, cfg.RabbitMQ.Queue, cfg.RabbitMQ.PublishTimeout))
	}

	svc := attendanceService.NewAttendanceService(
		attendanceService.Config{
			Window:       window,
			LateAfter:    cfg.Attendance.LateAfter,
			BypassWindow: cfg.BypassWindow(),
		},
		attendanceRepo,
		employeeRepo,
		attendanceService.WithMetrics(m),
	)
	if cfg.BypassWindow() {
		logger.Warn("Attendance window check is bypassed (development only)")
	}

	scheduler := cron.NewScheduler(window.Location,
		cron.WithLogger(logger),
		cron.WithMetrics(m),
		cron.WithSinks(sinks...),
	)
	jobs := cron.NewAttendanceJobs(attendanceRepo, employeeRepo, window, cfg.Attendance.MinWorkThreshold, logger, m)
	jobs.RegisterJobs(scheduler, cfg.Attendance.FinalizationTrigger)
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	// A nil *JobRunRecorder must not become a non-nil RunReader.
	var runs appHTTP.RunReader
	if recorder != nil {
		runs = recorder
	}

	router := appHTTP.NewRouter(
		logger,
		JWTService,
		appHTTP.NewAttendanceHandler(svc),
		appHTTP.NewJobHandler(scheduler, runs),
		promhttp.Handler(),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server running", "port", cfg.App.Port, "window", window.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
