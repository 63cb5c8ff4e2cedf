package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	App        AppConfig
	Store      StoreConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Attendance AttendanceConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int    `env:"APP_PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"shift_attendance"`
	SSLMode  string `env:"DB_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns int32  `env:"DB_MIN_CONNS" envDefault:"5"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string        `env:"JWT_SECRET_KEY"`
	AccessExpiration time.Duration `env:"JWT_ACCESS_EXPIRATION_TIME" envDefault:"1h"`
}

// AttendanceConfig is the shift policy.
type AttendanceConfig struct {
	Timezone            string          `env:"ATTENDANCE_TZ" envDefault:"Asia/Karachi"`
	WindowStart         shift.TimeOfDay `env:"WINDOW_START" envDefault:"18:00"`
	WindowEnd           shift.TimeOfDay `env:"WINDOW_END" envDefault:"05:30"`
	FinalizationTrigger shift.TimeOfDay `env:"FINALIZATION_TRIGGER" envDefault:"06:30"`
	MinWorkThreshold    time.Duration   `env:"MIN_WORK_THRESHOLD" envDefault:"30m"`
	LateAfter           time.Duration   `env:"LATE_AFTER" envDefault:"4h"`
	BypassWindowInDev   bool            `env:"BYPASS_WINDOW_IN_DEV" envDefault:"false"`
}

// RedisConfig is optional; an empty Addr disables job run recording.
type RedisConfig struct {
	Addr        string `env:"REDIS_ADDR"`
	Password    string `env:"REDIS_PASSWORD"`
	DB          int    `env:"REDIS_DB" envDefault:"0"`
	HistorySize int    `env:"REDIS_JOB_HISTORY" envDefault:"20"`
}

// RabbitMQConfig is optional; an empty DSN disables result publishing.
type RabbitMQConfig struct {
	DSN            string        `env:"RABBITMQ_DSN"`
	Queue          string        `env:"RABBITMQ_QUEUE" envDefault:"attendance_job_results"`
	PublishTimeout time.Duration `env:"RABBITMQ_PUBLISH_TIMEOUT" envDefault:"5s"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.Store.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	w, err := c.Window()
	if err != nil {
		return err
	}
	// Finalization closes sessions at the window end, so it must run after it.
	trigger := c.Attendance.FinalizationTrigger
	if w.Contains(shift.Date{Year: 2000, Month: time.January, Day: 1}.At(trigger, w.Location)) {
		return fmt.Errorf("FINALIZATION_TRIGGER %s must fall outside the attendance window %s", trigger, w)
	}
	if c.Attendance.MinWorkThreshold < 0 {
		return fmt.Errorf("MIN_WORK_THRESHOLD must not be negative")
	}
	if c.Attendance.LateAfter < 0 {
		return fmt.Errorf("LATE_AFTER must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// BypassWindow reports whether the window check is skipped. The flag is
// ignored outside development.
func (c *Config) BypassWindow() bool {
	return c.Attendance.BypassWindowInDev && c.IsDevelopment()
}

// Location loads ATTENDANCE_TZ.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Attendance.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_TZ %q: %w", c.Attendance.Timezone, err)
	}
	return loc, nil
}

// Window builds the attendance window in the configured timezone.
func (c *Config) Window() (*shift.Window, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	w, err := shift.NewWindow(c.Attendance.WindowStart, c.Attendance.WindowEnd, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_START/WINDOW_END: %w", err)
	}
	return w, nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
