package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// Supported database types
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config selects and locates the submission database
type Config struct {
	Type string `yaml:"type"` // sqlite or postgres
	Path string `yaml:"path"` // sqlite file, ":memory:" for tests
	URL  string `yaml:"url"`  // postgres DSN
}

// Open connects to the configured database and brings its schema up to date
func Open(cfg Config, logger *zap.Logger) (*sqlx.DB, error) {
	switch cfg.Type {
	case DriverSQLite, "":
		return NewSQLiteDB(cfg.Path, logger)
	case DriverPostgres:
		db, err := NewPostgresDB(cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		if err := MigrateDB(db, logger); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// NewSQLiteDB opens a SQLite database and creates the schema
func NewSQLiteDB(path string, logger *zap.Logger) (*sqlx.DB, error) {
	if path == "" {
		path = "moderation.db"
	}

	db, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("SQLite database initialized", zap.String("db_path", path))
	return db, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	submission_type TEXT NOT NULL,
	text_content TEXT,
	image_url TEXT,
	original_image_url TEXT,
	image_description TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	stage TEXT,
	summary TEXT,
	reasoning TEXT,
	toxicity REAL,
	nsfw_text BOOLEAN NOT NULL DEFAULT 0,
	nsfw_image BOOLEAN NOT NULL DEFAULT 0,
	violence BOOLEAN NOT NULL DEFAULT 0,
	image_replaced_by_ai BOOLEAN NOT NULL DEFAULT 0,
	technical_analysis TEXT,
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at);
`

// NewPostgresDB establishes a new connection to the PostgreSQL database.
func NewPostgresDB(dataSourceName string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect(DriverPostgres, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("Successfully connected to the database!")
	return db, nil
}

// MigrateDB runs the embedded PostgreSQL migrations.
func MigrateDB(db *sqlx.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "moderation", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully")
	return nil
}
