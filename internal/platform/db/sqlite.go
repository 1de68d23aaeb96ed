package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the common interface satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// Timestamps are stored as fixed-width UTC text so that they sort
// lexically; dates are stored as YYYY-MM-DD.
const (
	SQLiteDateLayout = "2006-01-02"
	SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

func SQLiteTime(t time.Time) string {
	return t.UTC().Format(SQLiteTimeLayout)
}

func ParseSQLiteTime(value string) (time.Time, error) {
	return time.Parse(SQLiteTimeLayout, value)
}

func SQLiteDate(t time.Time) string {
	return t.Format(SQLiteDateLayout)
}

func ParseSQLiteDate(value string) (time.Time, error) {
	return time.Parse(SQLiteDateLayout, value)
}

// NullSQLiteTime parses an optional timestamp column.
func NullSQLiteTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := ParseSQLiteTime(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
