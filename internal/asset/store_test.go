package asset

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/hydrahub/internal/database"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assetID = "5f0c7a9e-8f43-4b8e-9a53-1d2e3f4a5b6c"

var stamp = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type call struct {
	sql  string
	args []any
}

// fakeDB records statements and answers queries from a fixed row set.
type fakeDB struct {
	dialect  database.Dialect
	tables   map[string]bool
	rows     [][]any
	affected int64
	execErr  error

	execs   []call
	queries []call
	lastCtx context.Context
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}
func (f *fakeDB) Dialect() database.Dialect  { return f.dialect }

func (f *fakeDB) TableExists(_ context.Context, table string) (bool, error) {
	return f.tables[table], nil
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	f.execs = append(f.execs, call{sql, args})
	f.lastCtx = ctx
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.affected, nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	f.queries = append(f.queries, call{sql, args})
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) (database.Row, error) {
	f.queries = append(f.queries, call{sql, args})
	if len(f.rows) == 0 {
		return fakeRow(nil), nil
	}
	return fakeRow(f.rows[0]), nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool             { r.pos++; return r.pos < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error { return assign(r.rows[r.pos], dest) }
func (r *fakeRows) Close()                 {}
func (r *fakeRows) Err() error             { return nil }

type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if r == nil {
		return errs.New(errs.ErrKindNotFound, "no rows in result set")
	}
	return assign(r, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func row(id, path string, created time.Time) []any {
	return []any{id, path, "OBJECT", "hydra-data", "point-cloud", "owner-1", created, created}
}

func newStore(db *fakeDB) *Store {
	s := NewStore(db, nil)
	s.now = func() time.Time { return stamp }
	s.newID = func() string { return assetID }
	return s
}

func validInput() CreateInput {
	return CreateInput{
		Path:            "raw/site-a.laz",
		StorageType:     StorageObject,
		StorageLocation: "hydra-data",
		AssetType:       "point-cloud",
		OwnerUUID:       "owner-1",
	}
}

func TestStore_EnsureSchema(t *testing.T) {
	db := &fakeDB{tables: map[string]bool{}}
	require.NoError(t, newStore(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, `CREATE TABLE IF NOT EXISTS "data_assets"`)
	assert.Contains(t, db.execs[0].sql, "TIMESTAMPTZ")

	db = &fakeDB{tables: map[string]bool{Table: true}}
	require.NoError(t, newStore(db).EnsureSchema(context.Background()))
	assert.Empty(t, db.execs)
}

func TestStore_EnsureSchema_MySQL(t *testing.T) {
	db := &fakeDB{dialect: database.DialectMySQL, tables: map[string]bool{}}
	require.NoError(t, newStore(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS `data_assets`")
	assert.Contains(t, db.execs[0].sql, "DATETIME(6)")
	assert.NotContains(t, db.execs[0].sql, `"`)
}

func TestStore_Create(t *testing.T) {
	db := &fakeDB{affected: 1}
	got, err := newStore(db).Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, &Asset{
		ID:              assetID,
		Path:            "raw/site-a.laz",
		StorageType:     StorageObject,
		StorageLocation: "hydra-data",
		AssetType:       "point-cloud",
		OwnerUUID:       "owner-1",
		DateCreated:     stamp,
		DateModified:    stamp,
	}, got)

	require.Len(t, db.execs, 1)
	assert.True(t, strings.HasPrefix(db.execs[0].sql, `INSERT INTO "data_assets" ("id", "path",`))
	assert.Equal(t, []any{assetID, "raw/site-a.laz", "OBJECT", "hydra-data", "point-cloud", "owner-1", stamp, stamp}, db.execs[0].args)
}

func TestStore_CreateValidates(t *testing.T) {
	db := &fakeDB{}
	in := validInput()
	in.Path = " "
	in.StorageType = "FILE"

	_, err := newStore(db).Create(context.Background(), in)
	require.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, []errs.Issue{
		{Field: "path", Message: "must not be empty"},
		{Field: "storage_type", Message: "must be OBJECT or TABLE"},
	}, errs.IssuesOf(err))
	assert.Empty(t, db.execs)
}

func TestStore_CreateConflict(t *testing.T) {
	db := &fakeDB{execErr: errs.New(errs.ErrKindConflict, "duplicate key")}

	_, err := newStore(db).Create(context.Background(), validInput())
	assert.True(t, errs.IsConflict(err))
}

func TestStore_List(t *testing.T) {
	later := stamp.Add(time.Hour)
	db := &fakeDB{rows: [][]any{
		row("b", "raw/b.laz", later),
		row("a", "raw/a.laz", stamp),
	}}

	got, err := newStore(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, StorageObject, got[0].StorageType)
	assert.Equal(t, later, got[0].DateCreated)

	require.Len(t, db.queries, 1)
	assert.True(t, strings.HasSuffix(db.queries[0].sql, `FROM "data_assets" ORDER BY "date_created" DESC`))
}

func TestStore_ListEmpty(t *testing.T) {
	got, err := newStore(&fakeDB{}).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_Get(t *testing.T) {
	db := &fakeDB{rows: [][]any{row(assetID, "raw/a.laz", stamp)}}

	got, err := newStore(db).Get(context.Background(), assetID)
	require.NoError(t, err)
	assert.Equal(t, "raw/a.laz", got.Path)
	assert.Equal(t, []any{assetID}, db.queries[0].args)
	assert.Contains(t, db.queries[0].sql, `WHERE "id" = $1`)
}

func TestStore_GetMissing(t *testing.T) {
	db := &fakeDB{}

	_, err := newStore(db).Get(context.Background(), assetID)
	assert.True(t, errs.IsNotFound(err))

	_, err = newStore(db).Get(context.Background(), "not-a-uuid")
	assert.True(t, errs.IsNotFound(err))
	assert.Len(t, db.queries, 1)
}

func TestStore_Update(t *testing.T) {
	db := &fakeDB{affected: 1, rows: [][]any{row(assetID, "raw/renamed.laz", stamp)}}
	path := "raw/renamed.laz"

	got, err := newStore(db).Update(context.Background(), assetID, UpdateInput{Path: &path})
	require.NoError(t, err)
	assert.Equal(t, "raw/renamed.laz", got.Path)

	require.Len(t, db.execs, 1)
	assert.Equal(t, `UPDATE "data_assets" SET "path" = $1, "date_modified" = $2 WHERE "id" = $3`, db.execs[0].sql)
	assert.Equal(t, []any{"raw/renamed.laz", stamp, assetID}, db.execs[0].args)
}

func TestStore_UpdateMissing(t *testing.T) {
	db := &fakeDB{affected: 0}

	_, err := newStore(db).Update(context.Background(), assetID, UpdateInput{})
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_UpdateValidates(t *testing.T) {
	db := &fakeDB{affected: 1}
	bad := StorageType("FILE")

	_, err := newStore(db).Update(context.Background(), assetID, UpdateInput{StorageType: &bad})
	assert.True(t, errs.IsInvalidInput(err))
	assert.Empty(t, db.execs)
}

func TestStore_Delete(t *testing.T) {
	db := &fakeDB{affected: 1, rows: [][]any{row(assetID, "raw/a.laz", stamp)}}

	got, err := newStore(db).Delete(context.Background(), assetID)
	require.NoError(t, err)
	assert.Equal(t, assetID, got.ID)
	require.Len(t, db.execs, 1)
	assert.Equal(t, `DELETE FROM "data_assets" WHERE "id" = $1`, db.execs[0].sql)
}

func TestStore_DeleteMissing(t *testing.T) {
	_, err := newStore(&fakeDB{}).Delete(context.Background(), assetID)
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateInput_IsZero(t *testing.T) {
	assert.True(t, UpdateInput{}.IsZero())
	owner := "o"
	assert.False(t, UpdateInput{OwnerUUID: &owner}.IsZero())
}

func TestStore_QueryTimeout(t *testing.T) {
	db := &fakeDB{affected: 1}
	s := newStore(db).WithQueryTimeout(2 * time.Second)

	_, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	deadline, ok := db.lastCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)

	_, err = newStore(db).Create(context.Background(), validInput())
	require.NoError(t, err)
	_, ok = db.lastCtx.Deadline()
	assert.False(t, ok)
}
