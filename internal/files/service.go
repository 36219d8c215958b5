// Package files turns raw object listings into the views the dashboard
// shows: filtered and sorted file listings, bounded previews, signed
// download URLs and storage totals.
package files

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/koustreak/hydrahub/internal/logger"
)

// Entry is one row of a file listing.
type Entry struct {
	Key          string         `json:"key"`
	Name         string         `json:"name"`
	Size         int64          `json:"size"`
	LastModified time.Time      `json:"lastModified"`
	Metadata     map[string]any `json:"metadata"`
	// RawSource is the backend's object description, kept for debugging.
	RawSource string `json:"rawSource"`
}

// ListOptions selects and orders a listing.
type ListOptions struct {
	Path      string
	Recursive bool
	Filter    *Filter
	Sort      *Sort
}

// DefaultListOptions lists the whole bucket recursively.
func DefaultListOptions() ListOptions {
	return ListOptions{Recursive: true}
}

// Stats is the rollup of a listing.
type Stats struct {
	FileCount int   `json:"fileCount"`
	TotalSize int64 `json:"totalSize"`
}

// Options configures which extensions are previewable and the defaults
// applied when a request leaves the preview limit or URL expiry unset.
type Options struct {
	TextExtensions  []string
	ImageExtensions []string

	DefaultLimit         int // bytes; 0 means DefaultPreviewLimit
	DefaultExpirySeconds int // 0 means DefaultExpirySeconds
}

// DefaultOptions returns the extension sets the dashboard ships with.
func DefaultOptions() Options {
	return Options{
		TextExtensions: []string{"txt", "json"},
		ImageExtensions: []string{
			"jpg", "jpeg", "png", "gif", "webp", "avif", "bmp",
			"tif", "tiff", "svg", "ico", "heic", "heif",
		},
		DefaultLimit:         DefaultPreviewLimit,
		DefaultExpirySeconds: DefaultExpirySeconds,
	}
}

// Service answers file queries against one bucket.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	gw    *filestore.Gateway
	log   *logger.Logger
	text  map[string]bool
	image map[string]bool

	defaultLimit  int
	defaultExpiry int
}

// New creates a Service. log may be nil.
func New(gw *filestore.Gateway, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		gw:            gw,
		log:           log.Component("files"),
		text:          extensionSet(opts.TextExtensions),
		image:         extensionSet(opts.ImageExtensions),
		defaultLimit:  clampLimit(opts.DefaultLimit),
		defaultExpiry: ClampExpiry(opts.DefaultExpirySeconds),
	}
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return set
}

// List returns the objects under opts.Path, filtered and sorted as asked.
// Storage failures are returned unchanged; there are no partial results.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	objects, err := s.gw.ListObjects(ctx, opts.Path, opts.Recursive)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		e := toEntry(obj)
		if opts.Filter.Match(e) {
			entries = append(entries, e)
		}
	}
	entries = opts.Sort.apply(entries)

	s.log.InfoWith("listed files", map[string]interface{}{
		"path":     opts.Path,
		"objects":  len(objects),
		"returned": len(entries),
	})
	return entries, nil
}

func toEntry(obj filestore.ObjectInfo) Entry {
	raw, _ := json.Marshal(obj)
	size := obj.Size
	if size < 0 {
		size = 0
	}
	return Entry{
		Key:          obj.Key,
		Name:         obj.Key,
		Size:         size,
		LastModified: obj.LastModified,
		Metadata:     map[string]any{},
		RawSource:    string(raw),
	}
}

// Stats counts the objects under path and sums their sizes. Virtual
// directory entries are not objects and are not counted; unknown sizes
// count as zero.
func (s *Service) Stats(ctx context.Context, path string, recursive bool) (*Stats, error) {
	objects, err := s.gw.ListObjects(ctx, path, recursive)
	if err != nil {
		return nil, err
	}

	st := &Stats{}
	for _, obj := range objects {
		if obj.IsDir {
			continue
		}
		st.FileCount++
		if obj.Size > 0 {
			st.TotalSize += obj.Size
		}
	}

	s.log.InfoWith("computed storage stats", map[string]interface{}{
		"path":       path,
		"recursive":  recursive,
		"file_count": st.FileCount,
		"total_size": humanize.Bytes(uint64(st.TotalSize)),
	})
	return st, nil
}
