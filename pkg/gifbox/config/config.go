package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/gifbox/api/pkg/gifbox/repo/memory"
	repopg "github.com/gifbox/api/pkg/gifbox/repo/postgres"
	"github.com/gifbox/api/pkg/gifbox/search/meili"
	searchmemory "github.com/gifbox/api/pkg/gifbox/search/memory"
	fsstorage "github.com/gifbox/api/pkg/gifbox/storage/fs"
	memorystorage "github.com/gifbox/api/pkg/gifbox/storage/memory"
	s3storage "github.com/gifbox/api/pkg/gifbox/storage/s3"
	"github.com/gifbox/api/pkg/gifbox/transcode"
	viewsmemory "github.com/gifbox/api/pkg/gifbox/views/memory"
	viewsredis "github.com/gifbox/api/pkg/gifbox/views/redis"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		DatabaseType:   "memory",
		DBSchema:       "gifbox",
		StorageType:    "memory",
		SearchType:     "memory",
		SearchIndexUID: meili.DefaultIndexUID,
		ViewsType:      "memory",
		MaxUploadBytes: 20 << 20,
		Transcode: TranscodeConfig{
			Command:      "ffmpeg",
			QueueTimeout: 2 * time.Second,
			Timeout:      2 * time.Minute,
		},
		IndexTimeout:    10 * time.Second,
		TracingExporter: "none",
	}
}

// ServerConfig represents server configuration for the gifbox service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Metadata store
	DatabaseType string // "memory", "postgres"
	DatabaseURL  string
	DBSchema     string // Postgres schema to use (default: gifbox)

	// Blob store
	StorageType string // "memory", "fs", "s3"
	StorageDir  string // fs only
	S3          s3storage.Config

	// Search index
	SearchType     string // "memory", "meili"
	SearchURL      string
	SearchAPIKey   string
	SearchIndexUID string

	// View counter
	ViewsType string // "memory", "redis"
	RedisURL  string

	JWTSecret      string
	MaxUploadBytes int64
	Transcode      TranscodeConfig
	IndexTimeout   time.Duration

	TracingExporter string // "none", "stdout", "otlp"
	OTLPEndpoint    string
}

// TranscodeConfig configures the external converter
type TranscodeConfig struct {
	Command      string
	Concurrency  int // 0 means one per CPU
	QueueTimeout time.Duration
	Timeout      time.Duration
	TempDir      string
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.StorageDir == "" {
			return errors.New("storage directory is required for fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	switch c.SearchType {
	case "memory":
	case "meili":
		if c.SearchURL == "" {
			return errors.New("search url is required for meilisearch")
		}
	default:
		return fmt.Errorf("unsupported search type: %s", c.SearchType)
	}

	switch c.ViewsType {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("redis url is required for redis view counts")
		}
	default:
		return fmt.Errorf("unsupported views type: %s", c.ViewsType)
	}

	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("jwt secret is required in production")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got: %d", c.MaxUploadBytes)
	}
	if c.Transcode.Concurrency < 0 {
		return fmt.Errorf("transcode concurrency cannot be negative, got: %d", c.Transcode.Concurrency)
	}
	if c.Transcode.QueueTimeout < 0 {
		return fmt.Errorf("transcode queue timeout cannot be negative, got: %s", c.Transcode.QueueTimeout)
	}

	switch c.TracingExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", c.TracingExporter)
	}

	return nil
}

// BuildService creates a Service from the configuration. The returned
// cleanup releases connections and must be called after the last request.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (gifbox.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	closers = append(closers, closeRepo)

	store, err := c.buildBlobStore(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	transcoder, err := transcode.New(transcode.Config{
		Command:      c.Transcode.Command,
		Concurrency:  c.Transcode.Concurrency,
		QueueTimeout: c.Transcode.QueueTimeout,
		Timeout:      c.Transcode.Timeout,
		TempDir:      c.Transcode.TempDir,
		Logger:       logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build transcoder: %w", err)
	}

	index, err := c.buildSearchIndex(ctx, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build search index: %w", err)
	}

	views, closeViews, err := c.buildViewCounter(ctx, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build view counter: %w", err)
	}
	closers = append(closers, closeViews)

	svc, err := gifbox.New(
		gifbox.WithRepository(repo),
		gifbox.WithBlobStore(store),
		gifbox.WithTranscoder(transcoder),
		gifbox.WithSearchIndex(index),
		gifbox.WithViewCounter(views),
		gifbox.WithLogger(logger),
		gifbox.WithIndexTimeout(c.IndexTimeout),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (gifbox.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		if schema != "" {
			cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
				_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
				return err
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}

		if schema != "" {
			if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize())); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to create schema %s: %w", schema, err)
			}
		}

		repo := repopg.NewWithPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildBlobStore creates a BlobStore based on the configuration
func (c *ServerConfig) buildBlobStore(ctx context.Context) (gifbox.BlobStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.StorageDir})
	case "s3":
		return s3storage.New(ctx, c.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}

// buildSearchIndex creates the search index. A failed index setup is logged
// only; index writes are best-effort anyway.
func (c *ServerConfig) buildSearchIndex(ctx context.Context, logger *slog.Logger) (gifbox.SearchIndex, error) {
	switch c.SearchType {
	case "memory":
		return searchmemory.New(), nil
	case "meili":
		index, err := meili.New(meili.Config{
			Host:     c.SearchURL,
			APIKey:   c.SearchAPIKey,
			IndexUID: c.SearchIndexUID,
		})
		if err != nil {
			return nil, err
		}

		ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := index.EnsureIndex(ensureCtx); err != nil {
			logger.Warn("search index setup failed, continuing", "error", err)
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unsupported search type: %s", c.SearchType)
	}
}

// buildViewCounter creates the view counter. Like the search index, a Redis
// that fails the initial ping only degrades view counts.
func (c *ServerConfig) buildViewCounter(ctx context.Context, logger *slog.Logger) (gifbox.ViewCounter, func(), error) {
	switch c.ViewsType {
	case "memory":
		return viewsmemory.New(), func() {}, nil
	case "redis":
		opts, err := viewsredis.ParseOptions(c.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, view counts degraded", "error", err)
		}
		return viewsredis.New(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported views type: %s", c.ViewsType)
	}
}
