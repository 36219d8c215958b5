// Package filestore is hydrahub's view of object storage: a Store that each
// provider (minio, s3, memory) implements and a Gateway that binds a Store
// to one bucket and instruments every call. Services only
// ever hold a Gateway.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	gw := filestore.NewGateway(store, cfg.Bucket, filestore.GatewayOptions{Timeout: cfg.Timeout})
//	objects, err := gw.ListObjects(ctx, "datasets/", true)
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is a storage provider. Every call names its bucket; the Gateway
// pins that to the one bucket hydrahub serves. Failures come back as
// *errs.Error with the provider's error classified into a kind.
type Store interface {
	// Ping checks the provider answers and, where it can, that the
	// configured bucket exists.
	Ping(ctx context.Context) error
	Close() error

	// ListObjects follows continuation tokens until the listing ends or
	// opts.Limit is hit. A prefix matching nothing is an empty slice.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject fails with a not-found kind for a missing key before any
	// byte is read.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PutObject writes size bytes from r, replacing whatever was at key.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	// PresignGetURL signs a credential-free download link valid for ttl.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
