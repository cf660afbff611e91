package pipeline

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteExport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawl.db")
	exp := NewSQLite(SQLiteConfig[article]{
		Path:   path,
		Schema: `CREATE TABLE IF NOT EXISTS articles (url TEXT PRIMARY KEY, title TEXT)`,
		Insert: `INSERT INTO articles (url, title) VALUES (?, ?)`,
		Args:   func(a article) []any { return []any{a.URL, a.Title} },
	})

	ctx := context.Background()
	require.NoError(t, exp.Open(ctx))
	require.NoError(t, exp.Write(ctx, article{URL: "https://example.com/1", Title: "one"}))
	require.NoError(t, exp.Write(ctx, article{URL: "https://example.com/2", Title: "two"}))
	require.NoError(t, exp.Close(ctx))

	db, err := sql.Open("sqlite", path+"?mode=ro")
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count))
	require.Equal(t, 2, count)

	var title string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT title FROM articles WHERE url = ?`, "https://example.com/1").Scan(&title))
	require.Equal(t, "one", title)
}

func TestSQLiteDuplicateKeySurfacesError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawl.db")
	exp := NewSQLite(SQLiteConfig[article]{
		Path:   path,
		Schema: `CREATE TABLE IF NOT EXISTS articles (url TEXT PRIMARY KEY, title TEXT)`,
		Insert: `INSERT INTO articles (url, title) VALUES (?, ?)`,
		Args:   func(a article) []any { return []any{a.URL, a.Title} },
	})

	ctx := context.Background()
	require.NoError(t, exp.Open(ctx))
	defer func() { require.NoError(t, exp.Close(ctx)) }()

	item := article{URL: "https://example.com/1", Title: "one"}
	require.NoError(t, exp.Write(ctx, item))
	require.Error(t, exp.Write(ctx, item))
}
