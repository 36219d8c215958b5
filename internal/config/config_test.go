package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/hydrahub/internal/database"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, filestore.ProviderMinIO, cfg.Storage.Provider)
	assert.Equal(t, "hydra-data", cfg.Storage.Bucket)
	assert.Equal(t, 30*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Server.StreamTimeout)
	assert.Equal(t, 10000, cfg.Preview.DefaultLimit)
	assert.Equal(t, 300, cfg.Preview.DefaultExpirySeconds)
	assert.Nil(t, cfg.DatabaseConfig())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  addr: ":9090"
  shutdown_timeout: 5s
  stream_timeout: 30m
log:
  level: debug
  format: console
storage:
  provider: s3
  endpoint: https://objects.example.com
  region: eu-central-1
  path_style: true
  timeout: 10s
database:
  driver: mysql
  dsn: hydra:hydra@tcp(localhost:3306)/hydra
  max_conns: 4
  min_conns: 1
preview:
  text_extensions: [txt, json, csv]
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Server.StreamTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	fs := cfg.FilestoreConfig()
	assert.Equal(t, filestore.ProviderS3, fs.Provider)
	assert.Equal(t, "eu-central-1", fs.Region)
	assert.True(t, fs.PathStyle)
	assert.Equal(t, "hydra-data", fs.Bucket)
	assert.Equal(t, 10*time.Second, fs.Timeout)

	db := cfg.DatabaseConfig()
	require.NotNil(t, db)
	assert.Equal(t, database.DriverMySQL, db.Driver)
	assert.Equal(t, int32(4), db.MaxConns)

	opts := cfg.FilesOptions()
	assert.Equal(t, []string{"txt", "json", "csv"}, opts.TextExtensions)
	assert.Contains(t, opts.ImageExtensions, "png")

	lc := cfg.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "console", lc.Format)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("storage:\n  bucketname: oops\n"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"HYDRA_ADDR":               ":7000",
		"HYDRA_LOG_LEVEL":          "warn",
		"HYDRA_LOG_FORMAT":         "console",
		"HYDRA_STORAGE_PROVIDER":   "memory",
		"HYDRA_STORAGE_ENDPOINT":   "minio:9000",
		"HYDRA_STORAGE_ACCESS_KEY": "ak",
		"HYDRA_STORAGE_SECRET_KEY": "sk",
		"HYDRA_STORAGE_BUCKET":     "other",
		"HYDRA_STORAGE_REGION":     "us-west-2",
		"HYDRA_STORAGE_USE_SSL":    "true",
		"HYDRA_DATABASE_DRIVER":    "postgres",
		"HYDRA_DATABASE_DSN":       "postgres://localhost/hydra",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, StorageConfig{
		Provider:  filestore.ProviderMemory,
		Endpoint:  "minio:9000",
		AccessKey: "ak",
		SecretKey: "sk",
		UseSSL:    true,
		Region:    "us-west-2",
		Bucket:    "other",
		Timeout:   30 * time.Second,
	}, cfg.Storage)
	assert.Equal(t, "postgres://localhost/hydra", cfg.DatabaseConfig().DSN)
}

func TestApplyEnv_BadBool(t *testing.T) {
	err := Default().ApplyEnv(env(map[string]string{"HYDRA_STORAGE_USE_SSL": "maybe"}))
	require.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, "HYDRA_STORAGE_USE_SSL", errs.IssuesOf(err)[0].Field)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Server.StreamTimeout = -time.Second
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Storage.Provider = "gcs"
	cfg.Storage.Bucket = ""
	cfg.Database.DSN = "x"
	cfg.Database.Driver = "sqlite"
	cfg.Preview.DefaultLimit = 20000
	cfg.Preview.DefaultExpirySeconds = 10

	err := cfg.Validate()
	require.True(t, errs.IsInvalidInput(err))

	fields := make([]string, 0)
	for _, is := range errs.IssuesOf(err) {
		fields = append(fields, is.Field)
	}
	assert.Equal(t, []string{
		"server.addr",
		"server.stream_timeout",
		"log.level",
		"log.format",
		"storage.provider",
		"storage.bucket",
		"database.driver",
		"preview.default_limit",
		"preview.default_expiry_seconds",
	}, fields)
}

func TestValidate_MinIONeedsEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Storage.Endpoint = ""

	err := cfg.Validate()
	require.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, "storage.endpoint", errs.IssuesOf(err)[0].Field)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydrahub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  provider: memory\n"), 0o600))
	t.Setenv("HYDRA_STORAGE_BUCKET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filestore.ProviderMemory, cfg.Storage.Provider)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errs.IsInvalidInput(err))
}
