// Package s3 provides an AWS S3 / S3-compatible implementation of
// filestore.Store built on aws-sdk-go-v2.
//
// Usage:
//
//	cfg := &filestore.Config{
//		Provider:  filestore.ProviderS3,
//		Endpoint:  "https://minio.example.com",
//		Region:    "us-east-1",
//		PathStyle: true,
//		Bucket:    "hydra-data",
//	}
//	store, err := s3.New(ctx, cfg)
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
)

// defaultRegion is used when none is configured; S3-compatible stores
// ignore it but the signer needs one.
const defaultRegion = "us-east-1"

// Driver is an S3 implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

// New builds an S3 client from cfg and pings the configured bucket.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	// Static keys when configured, otherwise the default credential chain.
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to load aws config", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	d := &Driver{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// endpointURL turns a bare host:port into a URL using the SSL setting.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// Ping checks the configured bucket is reachable with HeadBucket, or lists
// buckets when no bucket is configured.
func (d *Driver) Ping(ctx context.Context) error {
	if d.bucket == "" {
		_, err := d.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
		if err != nil {
			return mapError(err, "ping failed")
		}
		return nil
	}

	_, err := d.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(d.bucket)})
	if err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK client holds nothing to release.
func (d *Driver) Close() error {
	return nil
}

// ListObjects pages through ListObjectsV2 until the listing is exhausted.
// With a delimiter, common prefixes come back as IsDir entries ahead of the
// page's objects.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if !opts.Recursive {
		input.Delimiter = aws.String("/")
	}

	results := make([]filestore.ObjectInfo, 0)
	pager := awss3.NewListObjectsV2Paginator(d.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}

		for _, cp := range page.CommonPrefixes {
			results = append(results, filestore.ObjectInfo{
				Key:   aws.ToString(cp.Prefix),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			results = append(results, filestore.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				ETag:         etag(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
				IsDir:        filestore.IsDirKey(key),
			})
		}

		if opts.Limit > 0 && len(results) >= opts.Limit {
			return results[:opts.Limit], nil
		}
	}

	return results, nil
}

// GetObject streams the object body. Unlike minio-go, the SDK fails here
// for a missing key, so no separate stat is needed.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}

	return &object{
		ReadCloser: out.Body,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         size,
			ContentType:  aws.ToString(out.ContentType),
			ETag:         etag(out.ETag),
			LastModified: aws.ToTime(out.LastModified),
		},
	}, nil
}

// StatObject returns metadata for the object at key via HeadObject.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         etag(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// PutObject uploads size bytes from r to key, replacing any existing object.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := d.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  contentType,
		ETag:         etag(out.ETag),
		LastModified: time.Now().UTC(),
	}, nil
}

// PresignGetURL signs a GET for key valid for ttl.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, fmt.Sprintf("failed to presign %s", key))
	}
	return req.URL, nil
}

// etag strips the quotes S3 puts around entity tags.
func etag(v *string) string {
	return strings.Trim(aws.ToString(v), `"`)
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
