package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/shift-attendance-go/internal/repository/postgresql"
)

// fixtureSchema stands in for the tables owned by the employee service.
const fixtureSchema = `
CREATE TABLE IF NOT EXISTS users (
    id   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    role TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS employees (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id           UUID NULL REFERENCES users (id),
    full_name         TEXT NOT NULL,
    department        TEXT NULL,
    employment_status TEXT NOT NULL,
    deleted_at        TIMESTAMPTZ NULL
);
`

// TestDatabaseSetup wraps a connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and skips the test when it
// is not set.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 10, MinConns: 1})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if _, err := db.Exec(ctx, fixtureSchema); err != nil {
		t.Fatalf("failed to create fixture tables: %v", err)
	}
	if err := postgresql.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("%v", err)
	}

	setup := &TestDatabaseSetup{DB: db}
	if err := setup.TruncateAllTables(ctx); err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables empties every table the tests touch.
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"attendances", "employees", "users"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// InsertEmployee adds a linked employee with the given role and returns its id.
func (s *TestDatabaseSetup) InsertEmployee(ctx context.Context, name, department, status, role string) (string, error) {
	var userID, employeeID string
	if err := s.DB.QueryRow(ctx, `INSERT INTO users (role) VALUES ($1) RETURNING id::text`, role).Scan(&userID); err != nil {
		return "", err
	}
	err := s.DB.QueryRow(ctx,
		`INSERT INTO employees (user_id, full_name, department, employment_status) VALUES ($1, $2, $3, $4) RETURNING id::text`,
		userID, name, department, status,
	).Scan(&employeeID)
	return employeeID, err
}

func (s *TestDatabaseSetup) Close() {
	s.DB.Close()
}
