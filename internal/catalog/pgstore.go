package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresStore keeps the catalog in the books table. Order is the
// BIGSERIAL id.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, applies pending migrations and returns the store.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := openDB(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(databaseURL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// openDB opens a PostgreSQL connection pool and verifies connectivity.
func openDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("catalog: DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: open postgres: %w", err)
	}

	// Conservative pool defaults.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: ping postgres: %w", err)
	}
	return db, nil
}

// RunMigrations applies the embedded schema migrations. It uses its own
// connection because closing the migrator closes the underlying pool.
func RunMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("catalog: open migrations db: %w", err)
	}

	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("catalog: migration source: %w", err)
	}
	drv, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("catalog: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("catalog: migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("catalog: migrate up: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, author, file) VALUES ($1, $2, $3)`,
		rec.Title, rec.Author, rec.File)
	if err != nil {
		return fmt.Errorf("catalog: postgres insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	return queryRecords(ctx, s.db, `SELECT title, author, file FROM books ORDER BY id`)
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) Close() error { return s.db.Close() }
