package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements gifbox.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Schema creates the tables used by the repository. Users are owned by the
// account subsystem; the table is declared here so a fresh database works.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id              UUID PRIMARY KEY,
	username        TEXT NOT NULL UNIQUE,
	display_name    TEXT NOT NULL,
	email           TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	verified        BOOLEAN NOT NULL DEFAULT FALSE,
	avatar          JSONB,
	followers       UUID[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS users_avatar_file_name_idx ON users ((avatar->>'fileName'));

CREATE TABLE IF NOT EXISTS posts (
	id                 UUID PRIMARY KEY,
	title              TEXT NOT NULL,
	slug               TEXT NOT NULL,
	author_id          UUID NOT NULL,
	tags               TEXT[] NOT NULL DEFAULT '{}',
	private            BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL,
	file_id            UUID NOT NULL,
	file_name          TEXT NOT NULL,
	file_original_name TEXT NOT NULL DEFAULT '',
	file_extension     TEXT NOT NULL DEFAULT 'webp',
	file_bucket        TEXT NOT NULL CHECK (file_bucket IN ('posts', 'avatars')),
	file_mime_type     TEXT NOT NULL DEFAULT 'image/webp',
	file_upload_date   TIMESTAMPTZ NOT NULL,
	file_author        UUID NOT NULL,
	file_size          BIGINT NOT NULL,
	file_hash          TEXT NOT NULL,
	CONSTRAINT posts_file_name_key UNIQUE (file_name)
);

CREATE INDEX IF NOT EXISTS posts_author_id_idx ON posts (author_id);
`

// EnsureSchema applies Schema. Every statement is idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s violates %s", gifbox.ErrMetadataConflict, operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%s violates check %s", operation, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Post operations

const postColumns = `
	id, title, slug, author_id, tags, private, created_at,
	file_id, file_name, file_original_name, file_extension, file_bucket,
	file_mime_type, file_upload_date, file_author, file_size, file_hash`

func (r *Repository) CreatePost(ctx context.Context, post *gifbox.Post) error {
	query := `INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	f := post.File
	_, err := r.db.Exec(ctx, query,
		post.ID, post.Title, post.Slug, post.Author, tags, post.Private, post.CreatedAt,
		f.ID, f.FileName, f.OriginalFileName, f.Extension, string(f.Bucket),
		f.MimeType, f.UploadDate, f.Author, f.Size, f.ContentHash)
	if err != nil {
		return r.handlePostgresError("create post", err)
	}

	return nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*gifbox.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return r.getPost(ctx, "get post", query, id)
}

func (r *Repository) GetPostByFileName(ctx context.Context, fileName string) (*gifbox.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE file_name = $1`
	return r.getPost(ctx, "get post by file name", query, fileName)
}

func (r *Repository) getPost(ctx context.Context, operation, query string, arg interface{}) (*gifbox.Post, error) {
	var post gifbox.Post
	var bucket string
	f := &post.File
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&post.ID, &post.Title, &post.Slug, &post.Author, &post.Tags, &post.Private, &post.CreatedAt,
		&f.ID, &f.FileName, &f.OriginalFileName, &f.Extension, &bucket,
		&f.MimeType, &f.UploadDate, &f.Author, &f.Size, &f.ContentHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gifbox.ErrPostNotFound
		}
		return nil, r.handlePostgresError(operation, err)
	}
	f.Bucket = gifbox.Bucket(bucket)

	return &post, nil
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return gifbox.ErrPostNotFound
	}
	return nil
}

// User operations

const userColumns = `
	id, username, display_name, email, hashed_password, description,
	verified, avatar, followers, created_at`

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*gifbox.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, "get user", query, id)
}

func (r *Repository) GetUserByAvatarFileName(ctx context.Context, fileName string) (*gifbox.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE avatar->>'fileName' = $1 LIMIT 1`
	return r.getUser(ctx, "get user by avatar", query, fileName)
}

func (r *Repository) getUser(ctx context.Context, operation, query string, arg interface{}) (*gifbox.User, error) {
	var user gifbox.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email, &user.HashedPassword,
		&user.Description, &user.Verified, &user.Avatar, &user.Followers, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gifbox.ErrUserNotFound
		}
		return nil, r.handlePostgresError(operation, err)
	}

	return &user, nil
}
