package remote

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/whattodo/core/internal/infrastructure/database"
	"github.com/whattodo/core/internal/infrastructure/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps one JSONB row per remote path.
type PostgresStore struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgresStore creates a store over db. The schema is managed by the
// embedded migrations; see MigrateUp.
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresStore{db: db, logger: log.WithComponent("remote-postgres")}
}

// Get returns the document stored at path, or nil when there is none.
func (s *PostgresStore) Get(ctx context.Context, path string) (map[string]any, error) {
	const query = `SELECT body FROM remote_records WHERE path = $1`

	start := time.Now()
	var body []byte
	err := s.db.DB.GetContext(ctx, &body, query, path)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.LogDatabaseQuery(query, since(start), nil)
		return nil, nil
	}
	s.logger.LogDatabaseQuery(query, since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get remote record: %w", err)
	}

	var value map[string]any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("failed to decode remote record: %w", err)
	}
	return value, nil
}

// Set stores value at path, replacing what was there.
func (s *PostgresStore) Set(ctx context.Context, path string, value map[string]any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode remote record: %w", err)
	}

	query := `
		INSERT INTO remote_records (path, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (path) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`

	start := time.Now()
	_, err = s.db.DB.ExecContext(ctx, query, path, body)
	s.logger.LogDatabaseQuery(query, since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set remote record: %w", err)
	}
	return nil
}

func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func newMigrate(db *database.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies pending migrations, or steps of them when steps > 0. It
// reports whether anything changed.
func MigrateUp(db *database.DB, steps int) (bool, error) {
	m, err := newMigrate(db)
	if err != nil {
		return false, err
	}

	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	return migrationResult(err)
}

// MigrateDown rolls back all migrations, or steps of them when steps > 0.
func MigrateDown(db *database.DB, steps int) (bool, error) {
	m, err := newMigrate(db)
	if err != nil {
		return false, err
	}

	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	return migrationResult(err)
}

// MigrationVersion returns the applied schema version and whether the last
// migration failed halfway.
func MigrationVersion(db *database.DB) (uint, bool, error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func migrationResult(err error) (bool, error) {
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration failed: %w", err)
	}
	return true, nil
}
