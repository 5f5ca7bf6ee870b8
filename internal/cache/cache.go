package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Path           string
	MigrationsPath string
}

// Store is the SQLite-backed local mirror of tracked devices. One
// reconciliation cycle mutates it through a single transaction; the store
// itself has no internal locking and expects a single writer.
type Store struct {
	db             *sql.DB
	migrationsPath string
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.Path)
	if cfg.Path == ":memory:" {
		connStr = ":memory:"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// SQLite supports a single writer; one connection also keeps the
	// in-memory variant on the same database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying cache connection: %w", err)
	}

	store := &Store{db: db, migrationsPath: cfg.MigrationsPath}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	slog.InfoContext(ctx, "Running cache migrations...", "path", s.migrationsPath)
	driver, err := migsqlite.WithInstance(s.db, &migsqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(
		"file://"+s.migrationsPath,
		"sqlite3", driver,
	)
	if err != nil {
		return err
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
