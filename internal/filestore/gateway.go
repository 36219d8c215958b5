package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/logger"
)

// Observer is told about every storage call a Gateway makes.
type Observer func(op string, took time.Duration, err error)

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// Timeout bounds each call. For Open it bounds only opening the object,
	// not reading it. Zero means no per-call deadline.
	Timeout time.Duration

	// StreamTimeout bounds the life of a handle returned by Open. Zero means
	// the stream lives as long as the caller's context.
	StreamTimeout time.Duration

	// Logger receives debug traces of storage calls. Nil means no logging.
	Logger *logger.Logger

	// Observer, if set, is invoked after every call (used for metrics).
	Observer Observer
}

// Gateway is the bucket-bound entry point to object storage used by every
// core component. It normalizes keys, bounds each call with a timeout and
// speaks JSON for the documents hydrahub persists.
//
// A Gateway holds no mutable state and is safe for concurrent use.
type Gateway struct {
	store    Store
	bucket   string
	timeout  time.Duration
	stream   time.Duration
	log      *logger.Logger
	observer Observer
}

// NewGateway binds store to bucket.
func NewGateway(store Store, bucket string, opts GatewayOptions) *Gateway {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{
		store:    store,
		bucket:   bucket,
		timeout:  opts.Timeout,
		stream:   opts.StreamTimeout,
		log:      log.Component("objectstore"),
		observer: opts.Observer,
	}
}

// Bucket returns the bucket this gateway is bound to.
func (g *Gateway) Bucket() string {
	return g.bucket
}

// Ping checks the backend is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := g.store.Ping(ctx)
	g.observe("ping", start, err)
	return err
}

// ListObjects returns every object under prefix. Leading slashes on prefix
// are ignored. The result is fully materialized.
func (g *Gateway) ListObjects(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	prefix = NormalizeKey(prefix)
	start := time.Now()
	objects, err := g.store.ListObjects(ctx, g.bucket, ListOptions{Prefix: prefix, Recursive: recursive})
	g.observe("list", start, err)
	if err != nil {
		return nil, err
	}

	g.log.DebugWith("listed objects", map[string]interface{}{
		"prefix":    prefix,
		"recursive": recursive,
		"count":     len(objects),
	})
	return objects, nil
}

// ReadJSON reads the whole object at path and decodes it into dst.
// A missing object yields a not-found error; bytes that are not UTF-8
// JSON (or do not fit dst) yield a malformed-content error.
func (g *Gateway) ReadJSON(ctx context.Context, path string, dst any) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	path = NormalizeKey(path)
	start := time.Now()
	data, err := g.readAll(ctx, path)
	g.observe("get", start, err)
	if err != nil {
		return err
	}

	if !utf8.Valid(data) {
		return errs.New(errs.ErrKindMalformedContent, "object "+path+" is not valid UTF-8")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errs.Wrap(errs.ErrKindMalformedContent, "object "+path+" is not valid JSON", err)
	}
	return nil
}

func (g *Gateway) readAll(ctx context.Context, path string) ([]byte, error) {
	obj, err := g.store.GetObject(ctx, g.bucket, path)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, readError(err, "failed to read object "+path)
	}
	return data, nil
}

// WriteJSON marshals value and stores it at path with content type
// application/json, replacing whatever was there. The path is used as
// given apart from leading-slash normalization; no suffix is appended.
func (g *Gateway) WriteJSON(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "value is not JSON-encodable", err)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	path = NormalizeKey(path)
	start := time.Now()
	_, err = g.store.PutObject(ctx, g.bucket, path, bytes.NewReader(data), int64(len(data)), PutOptions{
		ContentType: "application/json",
	})
	g.observe("put", start, err)
	if err != nil {
		return err
	}

	g.log.DebugWith("wrote json object", map[string]interface{}{
		"path":  path,
		"bytes": len(data),
	})
	return nil
}

// PresignedReadURL returns a signed GET URL for key valid for ttl.
// ttl is passed through untouched; callers clamp it.
func (g *Gateway) PresignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	u, err := g.store.PresignGetURL(ctx, g.bucket, NormalizeKey(key), ttl)
	g.observe("presign", start, err)
	return u, err
}

// Open returns a streaming handle to key. The per-call timeout covers only
// opening the object. Reads are bounded by StreamTimeout and the caller's
// context, and the handle's context is released when it is closed.
func (g *Gateway) Open(ctx context.Context, key string) (Object, error) {
	var cancel context.CancelFunc
	if g.stream > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.stream)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	var timer *time.Timer
	if g.timeout > 0 {
		timer = time.AfterFunc(g.timeout, cancel)
	}

	start := time.Now()
	obj, err := g.store.GetObject(ctx, g.bucket, NormalizeKey(key))
	// A timer that can no longer be stopped has already cancelled ctx.
	if timer != nil && !timer.Stop() && err == nil {
		obj.Close()
		err = errs.New(errs.ErrKindTimeout, "timed out opening "+key)
	}
	g.observe("get", start, err)
	if err != nil {
		cancel()
		return nil, err
	}
	return &boundObject{Object: obj, cancel: cancel}, nil
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) observe(op string, start time.Time, err error) {
	if g.observer != nil {
		g.observer(op, time.Since(start), err)
	}
}

// NormalizeKey strips leading slashes so keys never start with "/".
func NormalizeKey(key string) string {
	return strings.TrimLeft(key, "/")
}

// readError classifies a failure that happened while streaming a body.
func readError(err error, msg string) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// boundObject releases the gateway deadline together with the stream.
type boundObject struct {
	Object
	cancel context.CancelFunc
}

func (o *boundObject) Close() error {
	defer o.cancel()
	return o.Object.Close()
}
