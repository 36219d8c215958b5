package asset

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/hydrahub/internal/database"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/logger"
)

// Table is the catalog table name.
const Table = "data_assets"

var columns = []string{
	"id", "path", "storage_type", "storage_location",
	"asset_type", "owner_uuid", "date_created", "date_modified",
}

const postgresDDL = `CREATE TABLE IF NOT EXISTS "data_assets" (
	"id"               VARCHAR(36)  PRIMARY KEY,
	"path"             TEXT         NOT NULL,
	"storage_type"     VARCHAR(16)  NOT NULL,
	"storage_location" TEXT         NOT NULL,
	"asset_type"       VARCHAR(255) NOT NULL,
	"owner_uuid"       VARCHAR(64)  NOT NULL,
	"date_created"     TIMESTAMPTZ  NOT NULL,
	"date_modified"    TIMESTAMPTZ  NOT NULL
)`

// mysqlDDL is postgresDDL with backtick quoting and DATETIME columns.
var mysqlDDL = strings.NewReplacer(`"`, "`", "TIMESTAMPTZ", "DATETIME(6)").Replace(postgresDDL)

// Store reads and writes the catalog through a database.DB.
// It is safe for concurrent use.
type Store struct {
	db      database.DB
	dialect database.Dialect
	log     *logger.Logger

	now     func() time.Time
	newID   func() string
	timeout time.Duration
}

// NewStore creates a Store. log may be nil.
func NewStore(db database.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		db:      db,
		dialect: db.Dialect(),
		log:     log.Component("assets"),
		// Both engines store microseconds.
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: func() string { return uuid.NewString() },
	}
}

// WithQueryTimeout bounds every catalog call by d. Zero leaves the
// caller's context alone.
func (s *Store) WithQueryTimeout(d time.Duration) *Store {
	s.timeout = d
	return s
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureSchema creates the catalog table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	exists, err := s.db.TableExists(ctx, Table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ddl := postgresDDL
	if s.dialect == database.DialectMySQL {
		ddl = mysqlDDL
	}
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return err
	}
	s.log.Info("created table " + Table)
	return nil
}

// List returns every asset, newest first.
func (s *Store) List(ctx context.Context) ([]Asset, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sql, args, err := database.Select(Table, s.dialect).
		Columns(columns...).
		OrderBy("date_created", database.Desc).
		Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]Asset, 0)
	for rows.Next() {
		var a Asset
		if err := scan(rows, &a); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

// Get returns the asset with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Asset, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.New(errs.ErrKindNotFound, "data asset "+id+" does not exist")
	}

	sql, args, err := database.Select(Table, s.dialect).
		Columns(columns...).
		Where("id", "=", id).
		Build()
	if err != nil {
		return nil, err
	}

	row, err := s.db.QueryRow(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var a Asset
	if err := scan(row, &a); err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "data asset "+id+" does not exist", err)
		}
		return nil, err
	}
	return &a, nil
}

// Create validates in, assigns an id and timestamps, and inserts the row.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Asset, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	a := &Asset{
		ID:              s.newID(),
		Path:            in.Path,
		StorageType:     in.StorageType,
		StorageLocation: in.StorageLocation,
		AssetType:       in.AssetType,
		OwnerUUID:       in.OwnerUUID,
		DateCreated:     now,
		DateModified:    now,
	}

	sql, args, err := database.Insert(Table, s.dialect).
		Set("id", a.ID).
		Set("path", a.Path).
		Set("storage_type", string(a.StorageType)).
		Set("storage_location", a.StorageLocation).
		Set("asset_type", a.AssetType).
		Set("owner_uuid", a.OwnerUUID).
		Set("date_created", a.DateCreated).
		Set("date_modified", a.DateModified).
		Build()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return nil, err
	}

	s.log.InfoWith("created data asset", map[string]interface{}{
		"id":           a.ID,
		"path":         a.Path,
		"storage_type": string(a.StorageType),
	})
	return a, nil
}

// Update applies the set fields of in and bumps date_modified. An empty
// update still bumps date_modified.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (*Asset, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.New(errs.ErrKindNotFound, "data asset "+id+" does not exist")
	}

	b := database.Update(Table, s.dialect)
	if in.Path != nil {
		b.Set("path", *in.Path)
	}
	if in.StorageType != nil {
		b.Set("storage_type", string(*in.StorageType))
	}
	if in.StorageLocation != nil {
		b.Set("storage_location", *in.StorageLocation)
	}
	if in.AssetType != nil {
		b.Set("asset_type", *in.AssetType)
	}
	if in.OwnerUUID != nil {
		b.Set("owner_uuid", *in.OwnerUUID)
	}
	sql, args, err := b.Set("date_modified", s.now()).Where("id", "=", id).Build()
	if err != nil {
		return nil, err
	}

	n, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errs.New(errs.ErrKindNotFound, "data asset "+id+" does not exist")
	}

	s.log.Info("updated data asset " + id)
	return s.Get(ctx, id)
}

// Delete removes the asset and returns it as it was.
func (s *Store) Delete(ctx context.Context, id string) (*Asset, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sql, args, err := database.Delete(Table, s.dialect).Where("id", "=", id).Build()
	if err != nil {
		return nil, err
	}
	n, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errs.New(errs.ErrKindNotFound, "data asset "+id+" does not exist")
	}

	s.log.Info("deleted data asset " + id)
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner, a *Asset) error {
	var storageType string
	err := row.Scan(
		&a.ID, &a.Path, &storageType, &a.StorageLocation,
		&a.AssetType, &a.OwnerUUID, &a.DateCreated, &a.DateModified,
	)
	if err != nil {
		return err
	}
	a.StorageType = StorageType(storageType)
	a.DateCreated = a.DateCreated.UTC()
	a.DateModified = a.DateModified.UTC()
	return nil
}
