package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envVars lists every variable WithEnv reads. Unset variables leave the
// current value alone, so WithEnv can be combined with other options.
type envVars struct {
	Port        string `env:"PORT"`
	Environment string `env:"ENVIRONMENT"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBSchema    string `env:"DB_SCHEMA"`

	StorageURL           string `env:"STORAGE_URL"`
	S3Region             string `env:"S3_REGION"`
	S3Endpoint           string `env:"S3_ENDPOINT"`
	S3AccessKeyID        string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle       string `env:"S3_USE_PATH_STYLE"`
	S3CreateBucketIfMiss string `env:"S3_CREATE_BUCKET"`

	SearchURL   string `env:"SEARCH_URL"`
	MeiliAPIKey string `env:"MEILI_API_KEY"`
	MeiliIndex  string `env:"MEILI_INDEX"`

	RedisURL string `env:"REDIS_URL"`

	JWTSecret      string `env:"JWT_SECRET"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES"`

	FFmpegPath            string        `env:"FFMPEG_PATH"`
	TranscodeConcurrency  int           `env:"TRANSCODE_CONCURRENCY"`
	TranscodeQueueTimeout time.Duration `env:"TRANSCODE_QUEUE_TIMEOUT"`
	TranscodeTimeout      time.Duration `env:"TRANSCODE_TIMEOUT"`
	TempDir               string        `env:"TEMP_DIR"`
	IndexTimeout          time.Duration `env:"SEARCH_INDEX_TIMEOUT"`

	TracingExporter string `env:"TRACING_EXPORTER"`
	OTLPEndpoint    string `env:"OTLP_ENDPOINT"`
}

// WithEnv applies environment variable overrides.
//
// Backends are chosen by URL:
//
//	DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//	STORAGE_URL  - "memory://" (default), "file:///path/to/data" or "s3://bucket"
//	SEARCH_URL   - "memory://" (default) or a Meilisearch "http(s)://host:port"
//	REDIS_URL    - "memory://" (default), "redis://..." or "host:port"
//
// S3 credentials and endpoint come from S3_* variables; the transcoder from
// FFMPEG_PATH and TRANSCODE_*.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envVars
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		setString(&c.Port, env.Port)
		setString(&c.Environment, env.Environment)
		setString(&c.DBSchema, env.DBSchema)
		setString(&c.JWTSecret, env.JWTSecret)
		setString(&c.Transcode.Command, env.FFmpegPath)
		setString(&c.Transcode.TempDir, env.TempDir)
		setString(&c.TracingExporter, env.TracingExporter)
		setString(&c.OTLPEndpoint, env.OTLPEndpoint)
		setString(&c.SearchAPIKey, env.MeiliAPIKey)
		setString(&c.SearchIndexUID, env.MeiliIndex)

		if env.MaxUploadBytes != 0 {
			c.MaxUploadBytes = env.MaxUploadBytes
		}
		if env.TranscodeConcurrency != 0 {
			c.Transcode.Concurrency = env.TranscodeConcurrency
		}
		if env.TranscodeQueueTimeout != 0 {
			c.Transcode.QueueTimeout = env.TranscodeQueueTimeout
		}
		if env.TranscodeTimeout != 0 {
			c.Transcode.Timeout = env.TranscodeTimeout
		}
		if env.IndexTimeout != 0 {
			c.IndexTimeout = env.IndexTimeout
		}

		if err := applyDatabaseURL(env.DatabaseURL, c); err != nil {
			return err
		}
		if err := applyStorageEnv(env, c); err != nil {
			return err
		}
		if err := applySearchURL(env.SearchURL, c); err != nil {
			return err
		}
		return applyRedisURL(env.RedisURL, c)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyDatabaseURL auto-detects the metadata store from the URL scheme
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "":
		return nil
	case dbURL == "memory" || dbURL == "memory://":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

// applyStorageEnv configures the blob store from STORAGE_URL and S3_*
func applyStorageEnv(env envVars, c *ServerConfig) error {
	storageURL := env.StorageURL
	switch {
	case storageURL == "":
		return nil
	case storageURL == "memory" || storageURL == "memory://":
		c.StorageType = "memory"
		return nil
	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.StorageType = "fs"
		c.StorageDir = path
		return nil
	case strings.HasPrefix(storageURL, "s3://"):
		u, err := url.Parse(storageURL)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}

		c.StorageType = "s3"
		c.S3.Bucket = u.Host
		if c.S3.Region == "" {
			c.S3.Region = "us-east-1"
		}
		setString(&c.S3.Region, u.Query().Get("region"))
		setString(&c.S3.Region, env.S3Region)
		setString(&c.S3.Endpoint, env.S3Endpoint)
		setString(&c.S3.AccessKeyID, env.S3AccessKeyID)
		setString(&c.S3.SecretAccessKey, env.S3SecretAccessKey)

		if err := setBool(&c.S3.UsePathStyle, "S3_USE_PATH_STYLE", env.S3UsePathStyle); err != nil {
			return err
		}
		return setBool(&c.S3.CreateBucketIfNotExist, "S3_CREATE_BUCKET", env.S3CreateBucketIfMiss)
	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
	}
}

func applySearchURL(searchURL string, c *ServerConfig) error {
	switch {
	case searchURL == "":
		return nil
	case searchURL == "memory" || searchURL == "memory://":
		c.SearchType = "memory"
		c.SearchURL = ""
	case strings.HasPrefix(searchURL, "http://"), strings.HasPrefix(searchURL, "https://"):
		c.SearchType = "meili"
		c.SearchURL = searchURL
	default:
		return fmt.Errorf("unsupported SEARCH_URL format: %s (use 'memory://' or 'http(s)://...')", searchURL)
	}
	return nil
}

func applyRedisURL(redisURL string, c *ServerConfig) error {
	switch {
	case redisURL == "":
		return nil
	case redisURL == "memory" || redisURL == "memory://":
		c.ViewsType = "memory"
		c.RedisURL = ""
	case strings.Contains(redisURL, "://") && !strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://"):
		return fmt.Errorf("unsupported REDIS_URL format: %s (use 'memory://', 'redis://...' or host:port)", redisURL)
	default:
		c.ViewsType = "redis"
		c.RedisURL = redisURL
	}
	return nil
}

func setBool(dst *bool, key, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = parsed
	return nil
}
