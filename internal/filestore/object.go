package filestore

import (
	"io"
	"time"
)

// ObjectInfo is what a listing or stat reports about one key. Keys ending
// in "/" are virtual directories with IsDir set and no size.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"` // -1 when the backend did not say
	ContentType  string    `json:"contentType,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified"`
	IsDir        bool      `json:"isDir,omitempty"`
}

// Object streams one object's body. Close it when done.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions selects what ListObjects returns.
type ListOptions struct {
	// Prefix limits the listing to keys starting with it. Empty lists the
	// whole bucket.
	Prefix string

	// Recursive lists every key below Prefix. Otherwise the listing stops
	// at the next "/" and each common prefix comes back as an IsDir entry.
	Recursive bool

	// Limit stops the listing after this many entries; 0 lists everything.
	Limit int
}

type PutOptions struct {
	// ContentType defaults to application/octet-stream.
	ContentType string
}

// IsDirKey reports whether key names a virtual directory.
func IsDirKey(key string) bool {
	return key != "" && key[len(key)-1] == '/'
}
