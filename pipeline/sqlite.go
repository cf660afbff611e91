package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig describes where and how records are stored.
type SQLiteConfig[T any] struct {
	// Path is the database file, created if missing.
	Path string
	// Schema is executed once at open, typically a CREATE TABLE IF NOT
	// EXISTS statement.
	Schema string
	// Insert is the parameterized INSERT statement used per record.
	Insert string
	// Args converts a record into the Insert bind arguments.
	Args func(T) []any
}

// SQLite writes records into a SQLite database file. The connection pool is
// capped at one connection since SQLite supports a single writer; WAL mode
// keeps readers usable while the crawl runs.
type SQLite[T any] struct {
	cfg SQLiteConfig[T]
	db  *sql.DB
}

// NewSQLite builds the exporter.
func NewSQLite[T any](cfg SQLiteConfig[T]) *SQLite[T] {
	return &SQLite[T]{cfg: cfg}
}

// Name implements spinneret.Exporter.
func (*SQLite[T]) Name() string { return "sqlite" }

// Open connects, enables WAL, and applies the schema.
func (s *SQLite[T]) Open(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.cfg.Path+"?mode=rwc")
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if s.cfg.Schema != "" {
		if _, err := db.ExecContext(ctx, s.cfg.Schema); err != nil {
			_ = db.Close()
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	s.db = db
	return nil
}

// Write inserts one record.
func (s *SQLite[T]) Write(ctx context.Context, item T) error {
	if _, err := s.db.ExecContext(ctx, s.cfg.Insert, s.cfg.Args(item)...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite[T]) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
