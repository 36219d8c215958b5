// Package meta resolves the JSON sidecar documents attached to an object.
//
// A sidecar for object key K lives at "meta/K.<meta_key>.json". Any number
// of sidecars may exist per object, one per meta_key.
package meta

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/koustreak/hydrahub/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Prefix is the key prefix under which every sidecar is stored.
const Prefix = "meta/"

const defaultConcurrency = 8

// Entry is one parsed sidecar.
type Entry struct {
	FileKey         string         `json:"file_key"`
	FilePath        string         `json:"file_path"`
	MetaPath        string         `json:"meta_path"`
	MetaKey         string         `json:"meta_key"`
	MetaValueString string         `json:"meta_value_string"`
	MetaValueMap    map[string]any `json:"meta_value_map"`
}

// Resolver finds and decodes sidecars through a Gateway.
type Resolver struct {
	gw          *filestore.Gateway
	log         *logger.Logger
	concurrency int
}

// NewResolver creates a Resolver. log may be nil.
func NewResolver(gw *filestore.Gateway, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{gw: gw, log: log.Component("meta"), concurrency: defaultConcurrency}
}

// SidecarPath returns where the metaKey sidecar of key is stored.
func SidecarPath(key, metaKey string) string {
	return Prefix + filestore.NormalizeKey(key) + "." + metaKey + ".json"
}

// Get returns the sidecars of key in listing order.
//
// Sidecars that vanish between listing and reading, or that do not hold a
// JSON object, are logged and skipped. Backend failures, on the listing or
// on any read, fail the whole call.
func (r *Resolver) Get(ctx context.Context, key string) ([]Entry, error) {
	key = filestore.NormalizeKey(key)
	if key == "" {
		return nil, errs.Invalid(errs.Issue{Field: "file_key", Message: "must not be empty"})
	}

	base := Prefix + key + "."
	objects, err := r.gw.ListObjects(ctx, Prefix+key, true)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		path    string
		metaKey string
	}
	var candidates []candidate
	for _, obj := range objects {
		if obj.IsDir {
			continue
		}
		if metaKey, ok := parseMetaKey(base, obj.Key); ok {
			candidates = append(candidates, candidate{path: obj.Key, metaKey: metaKey})
		}
	}

	results := make([]*Entry, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			var value map[string]any
			if err := r.gw.ReadJSON(gctx, c.path, &value); err != nil {
				if errs.IsMalformed(err) || errs.IsNotFound(err) {
					r.log.WarnWith("skipping unreadable sidecar", err, map[string]interface{}{
						"file_key":  key,
						"meta_path": c.path,
					})
					return nil
				}
				return err
			}
			if value == nil {
				r.log.WarnWith("skipping sidecar that is not a json object", nil, map[string]interface{}{
					"file_key":  key,
					"meta_path": c.path,
				})
				return nil
			}

			encoded, err := json.Marshal(value)
			if err != nil {
				return errs.Wrap(errs.ErrKindMalformedContent, "failed to re-encode sidecar "+c.path, err)
			}
			results[i] = &Entry{
				FileKey:         key,
				FilePath:        key,
				MetaPath:        c.path,
				MetaKey:         c.metaKey,
				MetaValueString: string(encoded),
				MetaValueMap:    value,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(results))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}

	r.log.InfoWith("resolved sidecars", map[string]interface{}{
		"file_key": key,
		"listed":   len(objects),
		"returned": len(entries),
	})
	return entries, nil
}

// parseMetaKey extracts <meta_key> from "<base><meta_key>.json". The
// meta_key must be non-empty and contain neither '.' nor '/'.
func parseMetaKey(base, objectKey string) (string, bool) {
	rest, ok := strings.CutPrefix(objectKey, base)
	if !ok {
		return "", false
	}
	metaKey, ok := strings.CutSuffix(rest, ".json")
	if !ok || metaKey == "" || strings.ContainsAny(metaKey, "./") {
		return "", false
	}
	return metaKey, true
}
