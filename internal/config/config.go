// Package config resolves procurecore settings from the process environment,
// optionally seeded from .env files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// StorageDriver identifies the write-through sink backing the store.
type StorageDriver string

const (
	StorageNone     StorageDriver = "none"     // in-memory only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // one JSON file per collection
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageS3       StorageDriver = "s3"       // S3-compatible bucket
)

// Environment variable names.
const (
	EnvStorageDriver    = "PROCURECORE_STORAGE_DRIVER"
	EnvFileDir          = "PROCURECORE_FILE_DIR"
	EnvSQLitePath       = "PROCURECORE_SQLITE_PATH"
	EnvPostgresDSN      = "PROCURECORE_POSTGRES_DSN"
	EnvS3Bucket         = "PROCURECORE_S3_BUCKET"
	EnvS3Region         = "PROCURECORE_S3_REGION"
	EnvS3Endpoint       = "PROCURECORE_S3_ENDPOINT"
	EnvS3PathStyle      = "PROCURECORE_S3_PATH_STYLE"
	EnvS3Prefix         = "PROCURECORE_S3_PREFIX"
	EnvLogLevel         = "PROCURECORE_LOG_LEVEL"
	EnvLogFormat        = "PROCURECORE_LOG_FORMAT"
	EnvMetricsNamespace = "PROCURECORE_METRICS_NAMESPACE"
)

// Defaults applied when a variable is unset.
const (
	DefaultFileDir          = "./data"
	DefaultSQLitePath       = "./procurecore.db"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsNamespace = "procurecore"
)

// S3 holds bucket settings for the s3 driver.
type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	Prefix    string
}

// Config is the resolved runtime configuration.
type Config struct {
	StorageDriver    StorageDriver
	FileDir          string
	SQLitePath       string
	PostgresDSN      string
	S3               S3
	LogLevel         string
	LogFormat        string
	MetricsNamespace string
}

// Load reads .env files (missing files are ignored), then resolves and
// validates the configuration from the process environment. Variables
// already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else {
		for _, f := range files {
			if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	cfg := FromLookup(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromLookup resolves a Config using lookup, applying defaults.
func FromLookup(lookup func(string) (string, bool)) Config {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	return Config{
		StorageDriver: StorageDriver(strings.ToLower(get(EnvStorageDriver, string(StorageNone)))),
		FileDir:       get(EnvFileDir, DefaultFileDir),
		SQLitePath:    get(EnvSQLitePath, DefaultSQLitePath),
		PostgresDSN:   get(EnvPostgresDSN, ""),
		S3: S3{
			Bucket:    get(EnvS3Bucket, ""),
			Region:    get(EnvS3Region, ""),
			Endpoint:  get(EnvS3Endpoint, ""),
			PathStyle: strings.EqualFold(get(EnvS3PathStyle, "false"), "true"),
			Prefix:    get(EnvS3Prefix, ""),
		},
		LogLevel:         strings.ToLower(get(EnvLogLevel, DefaultLogLevel)),
		LogFormat:        strings.ToLower(get(EnvLogFormat, DefaultLogFormat)),
		MetricsNamespace: get(EnvMetricsNamespace, DefaultMetricsNamespace),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageNone, StorageFile, StorageSQLite, StoragePostgres:
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%s required for s3 driver", EnvS3Bucket)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
