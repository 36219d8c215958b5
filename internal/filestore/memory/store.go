// Package memory provides an in-process filestore.Store. It backs local
// runs without an object store and the tests of every package above
// filestore.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
)

type entry struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Store keeps objects in maps keyed by bucket and key.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*entry

	// Now stamps writes. Tests replace it for deterministic timestamps.
	Now func() time.Time
	// Fail, if set, is consulted before every operation; a non-nil result
	// is returned as the operation's error.
	Fail func(op, bucket, key string) error
}

// New returns an empty store with the given buckets created.
func New(buckets ...string) *Store {
	s := &Store{
		buckets: make(map[string]map[string]*entry),
		Now:     func() time.Time { return time.Now().UTC() },
	}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]*entry)
	}
	return s
}

// Ensure Store satisfies the interface.
var _ filestore.Store = (*Store)(nil)

func (s *Store) fail(op, bucket, key string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, bucket, key)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "ping failed", err)
	}
	return s.fail("ping", "", "")
}

func (s *Store) Close() error { return nil }

// ListObjects returns keys in lexical order, as S3 does.
func (s *Store) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to list objects", err)
	}
	if err := s.fail("list", bucket, opts.Prefix); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "bucket "+bucket+" does not exist")
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	results := make([]filestore.ObjectInfo, 0, len(keys))
	seenDirs := make(map[string]bool)
	for _, k := range keys {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
		if !opts.Recursive {
			rest := k[len(opts.Prefix):]
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				dir := opts.Prefix + rest[:i+1]
				if !seenDirs[dir] {
					seenDirs[dir] = true
					results = append(results, filestore.ObjectInfo{Key: dir, IsDir: true})
				}
				continue
			}
		}
		results = append(results, info(k, objects[k]))
	}
	return results, nil
}

func (s *Store) lookup(bucket, key string) (*entry, error) {
	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "bucket "+bucket+" does not exist")
	}
	e, ok := objects[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "object "+key+" does not exist")
	}
	return e, nil
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	if err := s.fail("get", bucket, key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	meta := info(key, e)
	return &object{Reader: bytes.NewReader(e.data), ctx: ctx, info: &meta}, nil
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	if err := s.fail("stat", bucket, key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	meta := info(key, e)
	return &meta, nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	if err := s.fail("put", bucket, key); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read upload body", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("declared size %d, got %d bytes", size, len(data)))
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "bucket "+bucket+" does not exist")
	}
	e := &entry{data: data, contentType: contentType, modified: s.Now()}
	objects[key] = e
	meta := info(key, e)
	return &meta, nil
}

// PresignGetURL returns a memory:// URL carrying the expiry; it is only
// meaningful to tests and local runs.
func (s *Store) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := s.fail("presign", bucket, key); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"X-Amz-Expires": {fmt.Sprint(int(ttl.Seconds()))}}.Encode(),
	}
	return u.String(), nil
}

// Put is a convenience for seeding objects.
func (s *Store) Put(bucket, key string, data []byte) {
	_, _ = s.PutObject(context.Background(), bucket, key, bytes.NewReader(data), int64(len(data)), filestore.PutOptions{})
}

// PutAt seeds an object with an explicit modification time.
func (s *Store) PutAt(bucket, key string, data []byte, modified time.Time) {
	s.Put(bucket, key, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.buckets[bucket][key]; ok {
		e.modified = modified
	}
}

func info(key string, e *entry) filestore.ObjectInfo {
	sum := md5.Sum(e.data)
	return filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(e.data)),
		ContentType:  e.contentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: e.modified,
		IsDir:        filestore.IsDirKey(key),
	}
}

// object fails reads once the context it was opened with is done, the way
// a network stream would.
type object struct {
	*bytes.Reader
	ctx  context.Context
	info *filestore.ObjectInfo
}

func (o *object) Read(p []byte) (int, error) {
	if err := o.ctx.Err(); err != nil {
		return 0, errs.Wrap(errs.ErrKindTimeout, "failed to read object", err)
	}
	return o.Reader.Read(p)
}

func (o *object) Close() error                { return nil }
func (o *object) Info() *filestore.ObjectInfo { return o.info }
