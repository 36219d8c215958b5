package filestore

import "time"

// Provider names a Store implementation.
type Provider string

const (
	ProviderMinIO  Provider = "minio"
	ProviderS3     Provider = "s3"
	ProviderMemory Provider = "memory"
)

// DefaultBucket holds datasets, sidecars and user files unless configured
// otherwise.
const DefaultBucket = "hydra-data"

// Config is everything a provider needs to connect.
type Config struct {
	Provider Provider

	// Endpoint is host:port ("localhost:9000") or a URL
	// ("https://minio.example.com"). A URL scheme overrides UseSSL.
	// ProviderS3 leaves it empty to talk to AWS itself.
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region only matters to AWS; the S3 driver falls back to us-east-1.
	Region string

	// PathStyle forces path-style bucket addressing. Most S3-compatible
	// stores other than AWS need it.
	PathStyle bool

	Bucket string

	// Timeout bounds each storage call made through a Gateway.
	Timeout time.Duration
}

// DefaultConfig targets a local MinIO over plain HTTP.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    DefaultBucket,
		Timeout:   30 * time.Second,
	}
}
