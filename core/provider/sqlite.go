package provider

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
	"github.com/sushant-115/infinitygrid/pkg/logger"
)

// rowsSchema stores one collection. pos only orders the rows; the position a
// client sees is the row's rank, so gaps left by deletes don't matter.
const rowsSchema = `
CREATE TABLE IF NOT EXISTS rows (
    pos   INTEGER PRIMARY KEY,
    value TEXT NOT NULL
);
`

// SQLite serves rows from a SQLite table. Each Fetch reads the count and the
// requested rows in one transaction so the page is self-consistent.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ datasource.Provider[string] = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path string, l *zap.Logger) (*SQLite, error) {
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open row database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to row database: %w", err)
	}
	if _, err := db.Exec(rowsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create row schema: %w", err)
	}

	return &SQLite{db: db, logger: logger.OrNop(l).Named("sqlite_provider")}, nil
}

// Fetch implements datasource.Provider.
func (s *SQLite) Fetch(ctx context.Context, r span.Range) (datasource.Page[string], error) {
	if s.isClosed() {
		return datasource.Page[string]{}, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return datasource.Page[string]{}, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM rows").Scan(&total); err != nil {
		return datasource.Page[string]{}, fmt.Errorf("failed to count rows: %w", err)
	}

	start, n := clip(r, total)
	data := make([]string, 0, n)
	if n > 0 {
		rows, err := tx.QueryContext(ctx, "SELECT value FROM rows ORDER BY pos LIMIT ? OFFSET ?", n, start)
		if err != nil {
			return datasource.Page[string]{}, fmt.Errorf("failed to query rows %s: %w", r, err)
		}
		defer rows.Close()
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return datasource.Page[string]{}, fmt.Errorf("failed to scan row: %w", err)
			}
			data = append(data, v)
		}
		if err := rows.Err(); err != nil {
			return datasource.Page[string]{}, fmt.Errorf("failed to read rows %s: %w", r, err)
		}
	}

	s.logger.Debug("rows read", zap.Stringer("range", r), zap.Int("total", total), zap.Int("returned", len(data)))
	return datasource.Page[string]{TotalLength: total, Start: start, Data: data}, nil
}

// Append adds values after the last row in one transaction.
func (s *SQLite) Append(ctx context.Context, values ...string) error {
	if s.isClosed() {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(pos), -1) + 1 FROM rows").Scan(&next); err != nil {
		return fmt.Errorf("failed to find append position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO rows (pos, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare append: %w", err)
	}
	defer stmt.Close()

	for i, v := range values {
		if _, err := stmt.ExecContext(ctx, next+int64(i), v); err != nil {
			return fmt.Errorf("failed to append row %d: %w", next+int64(i), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// Truncate keeps the first n rows and deletes the rest.
func (s *SQLite) Truncate(ctx context.Context, n int) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM rows WHERE pos NOT IN (SELECT pos FROM rows ORDER BY pos LIMIT ?)", max(n, 0))
	if err != nil {
		return fmt.Errorf("failed to truncate rows to %d: %w", n, err)
	}
	return nil
}

// Len returns the number of rows.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rows").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (s *SQLite) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}
