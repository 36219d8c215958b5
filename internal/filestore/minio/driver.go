// Package minio implements filestore.Store on minio-go, the provider
// hydrahub runs against by default.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New builds a client for cfg and checks that the configured bucket
// exists before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	lookup := miniogo.BucketLookupAuto
	if cfg.PathStyle {
		lookup = miniogo.BucketLookupPath
	}

	client, err := miniogo.New(host, &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// splitEndpoint accepts either host:port or a URL. minio-go wants a bare
// host, so a scheme, when present, decides TLS instead of useSSL.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return endpoint, useSSL
	}
}

// Ping checks that the configured bucket exists. Without a bucket it only
// checks that the server answers.
func (d *Driver) Ping(ctx context.Context) error {
	if d.bucket == "" {
		if _, err := d.client.ListBuckets(ctx); err != nil {
			return mapError(err, "ping failed")
		}
		return nil
	}

	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.New(errs.ErrKindNotFound, "bucket "+d.bucket+" does not exist")
	}
	return nil
}

// Close is a no-op; the SDK client keeps no connections that need closing.
func (d *Driver) Close() error {
	return nil
}

// ListObjects drains the SDK listing channel, which follows continuation
// tokens on its own. Non-recursive listings yield one entry per common
// prefix, keyed with its trailing "/".
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	// Leaving the loop early must stop the SDK's producer goroutine.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]filestore.ObjectInfo, 0)
	for obj := range d.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Recursive,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		results = append(results, toInfo(obj))
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

// GetObject opens key for streaming. minio-go opens lazily, so the object
// is stat'ed up front to surface a missing key here rather than on the
// first Read. The caller must Close the result.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to get object")
	}

	info := toInfo(stat)
	info.Key = key
	return &object{obj: obj, info: &info}, nil
}

func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	info := toInfo(stat)
	return &info, nil
}

// PutObject uploads size bytes from r to key, replacing any existing object.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	up, err := d.client.PutObject(ctx, bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         up.Size,
		ContentType:  contentType,
		ETag:         up.ETag,
		LastModified: time.Now().UTC(),
	}, nil
}

// PresignGetURL signs a GET for key valid for ttl. The object need not
// exist yet.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to presign "+key)
	}
	return u.String(), nil
}

func toInfo(obj miniogo.ObjectInfo) filestore.ObjectInfo {
	return filestore.ObjectInfo{
		Key:          obj.Key,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		ETag:         obj.ETag,
		LastModified: obj.LastModified.UTC(),
		IsDir:        filestore.IsDirKey(obj.Key),
	}
}

// object maps read errors so a stream failing halfway reports the same
// kinds as a failed Get.
type object struct {
	obj  *miniogo.Object
	info *filestore.ObjectInfo
}

func (o *object) Read(p []byte) (int, error) {
	n, err := o.obj.Read(p)
	if err != nil && err != io.EOF {
		return n, mapError(err, "failed to read object")
	}
	return n, err
}

func (o *object) Close() error                { return o.obj.Close() }
func (o *object) Info() *filestore.ObjectInfo { return o.info }
