package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool and target table.
type PostgresConfig[T any] struct {
	DSN             string
	Table           string
	Columns         []string
	Args            func(T) []any
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres writes records into a Postgres table, one INSERT per record.
type Postgres[T any] struct {
	cfg    PostgresConfig[T]
	pool   execCloser
	insert string
}

// NewPostgres builds the exporter. The pool is created on Open.
func NewPostgres[T any](cfg PostgresConfig[T]) (*Postgres[T], error) {
	insert, err := buildInsert(cfg.Table, cfg.Columns)
	if err != nil {
		return nil, err
	}
	return &Postgres[T]{cfg: cfg, insert: insert}, nil
}

// NewPostgresWithPool constructs an exporter from an existing pool
// (primarily for testing). Open becomes a no-op.
func NewPostgresWithPool[T any](pool execCloser, cfg PostgresConfig[T]) (*Postgres[T], error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	insert, err := buildInsert(cfg.Table, cfg.Columns)
	if err != nil {
		return nil, err
	}
	return &Postgres[T]{cfg: cfg, pool: pool, insert: insert}, nil
}

func buildInsert(table string, columns []string) (string, error) {
	if !validIdent.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		if !validIdent.MatchString(col) {
			return "", fmt.Errorf("invalid column name %q", col)
		}
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	), nil
}

// Name implements spinneret.Exporter.
func (*Postgres[T]) Name() string { return "postgres" }

// Open creates the connection pool unless one was injected.
func (p *Postgres[T]) Open(ctx context.Context) error {
	if p.pool != nil {
		return nil
	}
	if p.cfg.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	if p.cfg.MaxConns > 0 {
		poolCfg.MaxConns = p.cfg.MaxConns
	}
	if p.cfg.MinConns > 0 {
		poolCfg.MinConns = p.cfg.MinConns
	}
	if p.cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = p.cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	p.pool = pool
	return nil
}

// Write inserts one record.
func (p *Postgres[T]) Write(ctx context.Context, item T) error {
	if p.pool == nil {
		return fmt.Errorf("postgres exporter is not open")
	}
	if _, err := p.pool.Exec(ctx, p.insert, p.cfg.Args(item)...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres[T]) Close(context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
