// Package mysql implements database.DB for MySQL on database/sql and
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/hydrahub/internal/database"
	"github.com/koustreak/hydrahub/internal/errs"
)

// Driver runs statements on a database/sql pool. Safe for concurrent use.
type Driver struct {
	db *sql.DB
}

var _ database.DB = (*Driver)(nil)

// New opens a pool for cfg and pings it once before returning. parseTime is
// always on so DATETIME columns scan into time.Time.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql DSN", err)
	}
	mc.ParseTime = true
	if cfg.ConnectTimeout > 0 {
		mc.Timeout = cfg.ConnectTimeout
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql DSN", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{db: db}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	return mapError(d.db.PingContext(ctx), "ping failed")
}

func (d *Driver) Close() { _ = d.db.Close() }

func (d *Driver) Dialect() database.Dialect { return database.DialectMySQL }

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return rowSet{rows}, nil
}

// QueryRow defers every error to Scan, matching database/sql.
func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	return row{d.db.QueryRowContext(ctx, query, args...)}, nil
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "failed to read affected rows")
	}
	return n, nil
}

// TableExists looks table up in the connection's current database.
func (d *Driver) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`

	var n int
	if err := d.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, mapError(err, "failed to look up table "+table)
	}
	return n > 0, nil
}

type rowSet struct{ *sql.Rows }

func (r rowSet) Close() { _ = r.Rows.Close() }

func (r rowSet) Scan(dest ...any) error {
	return mapError(r.Rows.Scan(dest...), "failed to scan row")
}

func (r rowSet) Err() error {
	return mapError(r.Rows.Err(), "row iteration failed")
}

type row struct{ *sql.Row }

func (r row) Scan(dest ...any) error {
	return mapError(r.Row.Scan(dest...), "failed to scan row")
}

// Server error numbers with their own kind. Anything else the server
// reports is a failed query.
var errorKinds = map[uint16]errs.ErrKind{
	1040: errs.ErrKindConnectionFailed, // too many connections
	1044: errs.ErrKindConnectionFailed, // db access denied
	1045: errs.ErrKindConnectionFailed, // access denied for user
	1046: errs.ErrKindConnectionFailed, // no database selected
	1049: errs.ErrKindConnectionFailed, // unknown database
	1203: errs.ErrKindConnectionFailed, // user has too many connections
	1062: errs.ErrKindConflict,         // duplicate entry
	1142: errs.ErrKindPermissionDenied, // table access denied
	1143: errs.ErrKindPermissionDenied, // column access denied
	1216: errs.ErrKindInvalidInput,     // no referenced parent row
	1452: errs.ErrKindInvalidInput,     // foreign key constraint fails
}

// mapError returns nil for a nil err, so callers can pass results straight
// through.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return classify(err, msg)
}

func classify(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case errors.Is(err, sql.ErrNoRows):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	kind, ok := errorKinds[myErr.Number]
	if !ok {
		kind = errs.ErrKindQueryFailed
	}
	return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, myErr.Message), err)
}
