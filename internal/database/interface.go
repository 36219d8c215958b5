package database

import "context"

// DB is what the asset catalog needs from a SQL engine. Postgres and MySQL
// each provide one; callers never import the driver packages.
type DB interface {
	Ping(ctx context.Context) error
	Close()

	// Dialect is the placeholder style statements must be written in.
	Dialect() Dialect

	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow runs a statement expected to yield at most one row. A missing
	// row surfaces from Row.Scan as a not-found error.
	QueryRow(ctx context.Context, sql string, args ...any) (Row, error)

	// Exec runs a statement and reports how many rows it affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// TableExists reports whether table exists in the connection's default
	// schema.
	TableExists(ctx context.Context, table string) (bool, error)
}

// Rows is a result set. Close it even when iteration fails.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}
