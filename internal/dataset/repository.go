package dataset

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/koustreak/hydrahub/internal/logger"
)

// Prefix is the key prefix every dataset document is stored under.
const Prefix = "datasets/"

// ObjectKey returns the object key a dataset is stored at. Every '/' in
// key becomes '_', so "a/b" and "a_b" share one document.
func ObjectKey(key string) string {
	return Prefix + strings.ReplaceAll(key, "/", "_") + ".json"
}

// Repository stores datasets through a Gateway.
//
// Writes replace whole documents. AddQuery is a read-modify-write with no
// concurrency control; concurrent appends to one dataset may lose one.
type Repository struct {
	gw  *filestore.Gateway
	log *logger.Logger

	// now stamps list defaults when neither the document nor the listing
	// carries a time.
	now func() time.Time
}

// NewRepository creates a Repository. log may be nil.
func NewRepository(gw *filestore.Gateway, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.Nop()
	}
	return &Repository{
		gw:  gw,
		log: log.Component("datasets"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create validates d and writes it, replacing any dataset stored at the
// same object key.
func (r *Repository) Create(ctx context.Context, d *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return r.save(ctx, ObjectKey(d.Key), d)
}

// save writes d to path. Callers pass the path they resolved d from, never
// one derived from d's own fields.
func (r *Repository) save(ctx context.Context, path string, d *Dataset) error {
	if d.Queries == nil {
		d.Queries = []Query{}
	}

	if err := r.gw.WriteJSON(ctx, path, d); err != nil {
		r.log.ErrorWith("failed to save dataset", err, map[string]interface{}{
			"key":  d.Key,
			"path": path,
		})
		return err
	}

	r.log.InfoWith("saved dataset", map[string]interface{}{
		"key":     d.Key,
		"path":    path,
		"queries": len(d.Queries),
	})
	return nil
}

// Get reads the dataset stored for key. A document that is not valid JSON
// or does not fit the Dataset shape is a malformed-content error.
func (r *Repository) Get(ctx context.Context, key string) (*Dataset, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errs.Invalid(errs.Issue{Field: "key", Message: "must not be empty"})
	}

	var d Dataset
	if err := r.gw.ReadJSON(ctx, ObjectKey(key), &d); err != nil {
		return nil, err
	}
	if d.Queries == nil {
		d.Queries = []Query{}
	}
	r.log.Debug("retrieved dataset " + key)
	return &d, nil
}

// storedDataset is a dataset document before defaults are applied.
type storedDataset struct {
	Key         *string         `json:"key"`
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	CreatedAt   *time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt"`
	Queries     json.RawMessage `json:"queries"`
}

// List returns every readable dataset. Documents that are missing, not
// JSON, or carry fields of the wrong type are logged and skipped. Missing
// fields are filled in: key and name from the object key, description as
// empty, timestamps from the object's modification time, queries as empty.
func (r *Repository) List(ctx context.Context) ([]Dataset, error) {
	objects, err := r.gw.ListObjects(ctx, Prefix, true)
	if err != nil {
		return nil, err
	}

	datasets := make([]Dataset, 0, len(objects))
	skipped := 0
	for _, obj := range objects {
		if obj.IsDir || !strings.HasSuffix(obj.Key, ".json") {
			continue
		}

		var stored storedDataset
		if err := r.gw.ReadJSON(ctx, obj.Key, &stored); err != nil {
			if errs.IsMalformed(err) || errs.IsNotFound(err) {
				r.log.WarnWith("skipping unreadable dataset document", err, map[string]interface{}{
					"path": obj.Key,
				})
				skipped++
				continue
			}
			return nil, err
		}

		d, err := r.withDefaults(stored, obj)
		if err != nil {
			r.log.WarnWith("skipping dataset document with invalid queries", err, map[string]interface{}{
				"path": obj.Key,
			})
			skipped++
			continue
		}
		datasets = append(datasets, d)
	}

	r.log.InfoWith("listed datasets", map[string]interface{}{
		"count":   len(datasets),
		"skipped": skipped,
	})
	return datasets, nil
}

func (r *Repository) withDefaults(s storedDataset, obj filestore.ObjectInfo) (Dataset, error) {
	fallbackKey := strings.TrimPrefix(obj.Key, Prefix)
	fallbackKey = strings.ReplaceAll(fallbackKey[:len(fallbackKey)-len(".json")], "/", "_")

	fallbackTime := obj.LastModified
	if fallbackTime.IsZero() {
		fallbackTime = r.now()
	}

	d := Dataset{
		Key:       deref(s.Key, fallbackKey),
		Name:      deref(s.Name, fallbackKey),
		CreatedAt: deref(s.CreatedAt, fallbackTime),
		UpdatedAt: deref(s.UpdatedAt, fallbackTime),
		Queries:   []Query{},
	}
	d.Description = deref(s.Description, "")

	// Anything but an array is treated as no queries; an array that does
	// not decode is a broken document.
	if q := strings.TrimSpace(string(s.Queries)); strings.HasPrefix(q, "[") {
		if err := json.Unmarshal(s.Queries, &d.Queries); err != nil {
			return Dataset{}, errs.Wrap(errs.ErrKindMalformedContent, "queries do not decode", err)
		}
	}
	return d, nil
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// AddQuery appends q to the dataset stored for key and saves the whole
// document back to the same object. UpdatedAt is left as it was. The
// stored document is not re-validated, only q is; a document without its
// own key gets key written into it.
func (r *Repository) AddQuery(ctx context.Context, key string, q Query) (*Dataset, error) {
	if key == "" {
		return nil, errs.Invalid(errs.Issue{Field: "datasetKey", Message: "must not be empty"})
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	d, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.Key == "" {
		d.Key = key
	}
	d.Queries = append(d.Queries, q)

	if err := r.save(ctx, ObjectKey(key), d); err != nil {
		return nil, err
	}
	r.log.InfoWith("added query to dataset", map[string]interface{}{
		"key":     key,
		"type":    string(q.Type),
		"exclude": q.Exclude,
		"queries": len(d.Queries),
	})
	return d, nil
}
