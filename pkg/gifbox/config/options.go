package config

import (
	"fmt"
	"time"

	s3storage "github.com/gifbox/api/pkg/gifbox/storage/s3"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the metadata store
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMemoryStorage keeps blobs in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores blobs under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.StorageDir = baseDir
		return nil
	}
}

// WithS3Storage stores blobs in an S3-compatible bucket
func WithS3Storage(cfg s3storage.Config) Option {
	return func(c *ServerConfig) error {
		if cfg.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		c.StorageType = "s3"
		c.S3 = cfg
		return nil
	}
}

// WithMeiliSearch mirrors posts into a Meilisearch index
func WithMeiliSearch(host, apiKey string) Option {
	return func(c *ServerConfig) error {
		if host == "" {
			return fmt.Errorf("meilisearch host cannot be empty")
		}
		c.SearchType = "meili"
		c.SearchURL = host
		c.SearchAPIKey = apiKey
		return nil
	}
}

// WithRedisViews counts views in Redis
func WithRedisViews(redisURL string) Option {
	return func(c *ServerConfig) error {
		if redisURL == "" {
			return fmt.Errorf("redis url cannot be empty")
		}
		c.ViewsType = "redis"
		c.RedisURL = redisURL
		return nil
	}
}

// WithJWTSecret sets the HMAC key used to verify session tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithMaxUploadBytes sets the upload body ceiling
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithTranscoder configures the external converter
func WithTranscoder(command string, concurrency int, queueTimeout, timeout time.Duration) Option {
	return func(c *ServerConfig) error {
		if command == "" {
			return fmt.Errorf("transcoder command cannot be empty")
		}
		c.Transcode.Command = command
		c.Transcode.Concurrency = concurrency
		c.Transcode.QueueTimeout = queueTimeout
		c.Transcode.Timeout = timeout
		return nil
	}
}

// WithTracing selects the span exporter: none, stdout or otlp
func WithTracing(exporter, endpoint string) Option {
	return func(c *ServerConfig) error {
		c.TracingExporter = exporter
		c.OTLPEndpoint = endpoint
		return nil
	}
}
