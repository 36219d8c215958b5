package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"canceled wrapped", fmt.Errorf("query: %w", context.Canceled), errs.ErrKindTimeout},
		{"no rows", pgx.ErrNoRows, errs.ErrKindNotFound},
		{"unique", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, errs.ErrKindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, errs.ErrKindInvalidInput},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, errs.ErrKindInvalidInput},
		{"check", &pgconn.PgError{Code: "23514"}, errs.ErrKindInvalidInput},
		{"privilege", &pgconn.PgError{Code: "42501"}, errs.ErrKindPermissionDenied},
		{"connection class", &pgconn.PgError{Code: "08006"}, errs.ErrKindConnectionFailed},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, errs.ErrKindConnectionFailed},
		{"syntax", &pgconn.PgError{Code: "42601"}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "op failed")
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, mapError(nil, "noop"))
	assert.True(t, errs.IsNotFound(mapError(pgx.ErrNoRows, "get")))
}

func TestMapError_IncludesServerMessage(t *testing.T) {
	got := classify(&pgconn.PgError{Code: "23505", Message: "duplicate key value"}, "insert failed")
	assert.Equal(t, "insert failed: duplicate key value", got.Message)
}
