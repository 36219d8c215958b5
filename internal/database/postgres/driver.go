// Package postgres implements database.DB for PostgreSQL on pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/hydrahub/internal/database"
	"github.com/koustreak/hydrahub/internal/errs"
)

// Driver runs statements on a pgxpool. Safe for concurrent use.
type Driver struct {
	pool *pgxpool.Pool
}

var _ database.DB = (*Driver)(nil)

// New opens a pool for cfg and pings it once before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open postgres pool", err)
	}

	d := &Driver{pool: pool}
	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

func poolConfig(cfg *database.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres DSN", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	return pc, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	return mapError(d.pool.Ping(ctx), "ping failed")
}

func (d *Driver) Close() { d.pool.Close() }

func (d *Driver) Dialect() database.Dialect { return database.DialectPostgres }

func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return rowSet{rows}, nil
}

// QueryRow defers every error to Scan, matching pgx.
func (d *Driver) QueryRow(ctx context.Context, sql string, args ...any) (database.Row, error) {
	return row{d.pool.QueryRow(ctx, sql, args...)}, nil
}

func (d *Driver) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

// TableExists resolves table against the session search_path, so it sees
// the same table unqualified statements would.
func (d *Driver) TableExists(ctx context.Context, table string) (bool, error) {
	var found bool
	err := d.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&found)
	if err != nil {
		return false, mapError(err, "failed to look up table "+table)
	}
	return found, nil
}

type rowSet struct{ pgx.Rows }

func (r rowSet) Scan(dest ...any) error {
	return mapError(r.Rows.Scan(dest...), "failed to scan row")
}

func (r rowSet) Err() error {
	return mapError(r.Rows.Err(), "row iteration failed")
}

type row struct{ pgx.Row }

func (r row) Scan(dest ...any) error {
	return mapError(r.Row.Scan(dest...), "failed to scan row")
}

// SQLSTATE codes with their own kind. Classes 08 (connection exception)
// and 57 (operator intervention) are matched by prefix.
var sqlStateKinds = map[string]errs.ErrKind{
	"23505": errs.ErrKindConflict,         // unique_violation
	"23503": errs.ErrKindInvalidInput,     // foreign_key_violation
	"22P02": errs.ErrKindInvalidInput,     // invalid_text_representation
	"23514": errs.ErrKindInvalidInput,     // check_violation
	"42501": errs.ErrKindPermissionDenied, // insufficient_privilege
}

// mapError returns nil for a nil err, so callers can pass results straight
// through. It returns error rather than *errs.Error for that reason.
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
	case errors.Is(err, pgx.ErrNoRows):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	msg = fmt.Sprintf("%s: %s", msg, pgErr.Message)
	if kind, ok := sqlStateKinds[pgErr.Code]; ok {
		return errs.Wrap(kind, msg, err)
	}
	if class := pgErr.Code[:min(2, len(pgErr.Code))]; class == "08" || class == "57" {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
