package gifbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultIndexTimeout        = 10 * time.Second
	defaultCompensationTimeout = 15 * time.Second
)

// service implements the Service interface
type service struct {
	repository  Repository
	blobStore   BlobStore
	transcoder  Transcoder
	searchIndex SearchIndex
	views       ViewCounter
	logger      *slog.Logger

	indexTimeout        time.Duration
	compensationTimeout time.Duration

	syncer *searchSyncer
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithTranscoder sets the transcoder used to produce canonical bytes
func WithTranscoder(t Transcoder) Option {
	return func(s *service) {
		s.transcoder = t
	}
}

// WithSearchIndex sets the search index mirrored on create and delete
func WithSearchIndex(index SearchIndex) Option {
	return func(s *service) {
		s.searchIndex = index
	}
}

// WithViewCounter sets the view counter used on the read path
func WithViewCounter(views ViewCounter) Option {
	return func(s *service) {
		s.views = views
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithIndexTimeout bounds each asynchronous search index write
func WithIndexTimeout(d time.Duration) Option {
	return func(s *service) {
		s.indexTimeout = d
	}
}

// WithCompensationTimeout bounds the blob delete issued after a failed insert
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *service) {
		s.compensationTimeout = d
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		indexTimeout:        defaultIndexTimeout,
		compensationTimeout: defaultCompensationTimeout,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.transcoder == nil {
		return nil, fmt.Errorf("transcoder is required")
	}
	if s.searchIndex == nil {
		s.searchIndex = NewNoopSearchIndex()
	}
	if s.views == nil {
		s.views = NewNoopViewCounter()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.indexTimeout <= 0 {
		s.indexTimeout = defaultIndexTimeout
	}
	if s.compensationTimeout <= 0 {
		s.compensationTimeout = defaultCompensationTimeout
	}

	s.syncer = newSearchSyncer(s.searchIndex, s.logger, s.indexTimeout)

	return s, nil
}

// Post operations

func (s *service) CreatePost(ctx context.Context, req CreatePostRequest) (view *PostView, err error) {
	ctx, span := startSpan(ctx, "gifbox.CreatePost", attribute.String("author_id", req.AuthorID.String()))
	defer func() {
		recordOutcome("create", err)
		endSpan(span, err)
	}()

	req.Title = strings.TrimSpace(req.Title)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	tags := NormalizeTags(req.Tags)

	mediaType, err := DetectMediaType(req.Data)
	if err != nil {
		return nil, err
	}

	author, err := s.repository.GetUser(ctx, req.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("resolve author %s: %w", req.AuthorID, err)
	}

	canonical, err := s.transcoder.Transcode(ctx, req.Data)
	if err != nil {
		s.logger.Info("transcode rejected upload",
			"author_id", req.AuthorID,
			"media_type", mediaType,
			"declared_type", req.DeclaredType,
			"error", err)
		return nil, err
	}

	now := time.Now().UTC()
	post := &Post{
		ID:     uuid.New(),
		Title:  req.Title,
		Slug:   MakeSlug(req.Title),
		Author: author.ID,
		Tags:   tags,
		File: FileInformation{
			ID:               uuid.New(),
			FileName:         NewStorageName(),
			OriginalFileName: req.FileName,
			Extension:        CanonicalExtension,
			Bucket:           BucketPosts,
			MimeType:         CanonicalMimeType,
			UploadDate:       now,
			Author:           author.ID,
			Size:             int64(len(canonical)),
			ContentHash:      Digest(canonical),
		},
		CreatedAt: now,
	}
	span.SetAttributes(attribute.String("post_id", post.ID.String()))

	if err := s.blobStore.Put(ctx, post.File.Bucket, post.File.FileName, canonical, post.File.MimeType); err != nil {
		return nil, &PostError{PostID: post.ID, Op: "create", Err: err}
	}

	if err := s.repository.CreatePost(ctx, post); err != nil {
		s.compensateBlob(ctx, post)
		return nil, &PostError{PostID: post.ID, Op: "create", Err: err}
	}

	s.syncer.upsert(post.SearchDocument())

	return newPostView(post, author.Projection(), 0), nil
}

// compensateBlob removes the blob written for a post whose record could not
// be inserted. It runs even if the request has been cancelled.
func (s *service) compensateBlob(ctx context.Context, post *Post) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	if err := s.blobStore.Delete(ctx, post.File.Bucket, post.File.FileName); err != nil {
		OrphanedBlobs.Inc()
		s.logger.Warn("orphaned blob after failed metadata insert",
			"post_id", post.ID,
			"bucket", post.File.Bucket,
			"file_name", post.File.FileName,
			"error", err)
	}
}

func (s *service) DeletePost(ctx context.Context, req DeletePostRequest) (err error) {
	ctx, span := startSpan(ctx, "gifbox.DeletePost", attribute.String("post_id", req.PostID.String()))
	defer func() {
		recordOutcome("delete", err)
		endSpan(span, err)
	}()

	post, err := s.repository.GetPost(ctx, req.PostID)
	if err != nil {
		return &PostError{PostID: req.PostID, Op: "delete", Err: err}
	}

	if post.Author != req.RequesterID {
		return &PostError{PostID: req.PostID, Op: "delete", Err: ErrPermissionDenied}
	}

	// Blob first: a record must never point at a blob that is already gone.
	if err := s.blobStore.Delete(ctx, post.File.Bucket, post.File.FileName); err != nil {
		return &PostError{PostID: post.ID, Op: "delete", Err: err}
	}

	if err := s.repository.DeletePost(ctx, post.ID); err != nil {
		return &PostError{PostID: post.ID, Op: "delete", Err: err}
	}

	s.syncer.remove(post.ID.String())

	return nil
}

func (s *service) GetPost(ctx context.Context, id uuid.UUID) (*PostView, error) {
	post, err := s.repository.GetPost(ctx, id)
	if err != nil {
		return nil, &PostError{PostID: id, Op: "get", Err: err}
	}

	author, err := s.resolveAuthor(ctx, post.Author, nil)
	if err != nil {
		return nil, &PostError{PostID: id, Op: "get", Err: err}
	}

	views, err := s.views.Increment(ctx, post.ID)
	if err != nil {
		s.logger.Warn("failed to count view", "post_id", post.ID, "error", err)
		views = 0
	}

	return newPostView(post, author, views), nil
}

func (s *service) SearchPosts(ctx context.Context, req SearchPostsRequest) (*SearchPage, error) {
	ctx, span := startSpan(ctx, "gifbox.SearchPosts")
	var err error
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	q := SearchQuery{
		Text:          strings.TrimSpace(req.Query),
		Sort:          req.Sort,
		Offset:        req.Offset,
		Limit:         limit,
		CreatedAfter:  req.CreatedAfter,
		CreatedBefore: req.CreatedBefore,
	}
	if req.Author != nil {
		q.Author = req.Author.String()
	}

	hits, err := s.searchIndex.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query search index: %w", err)
	}

	page := &SearchPage{
		Hits:               make([]*PostView, 0, len(hits.IDs)),
		EstimatedTotalHits: hits.EstimatedTotalHits,
		Approximate:        hits.Approximate,
		Offset:             req.Offset,
		Limit:              limit,
	}

	authors := make(map[uuid.UUID]*Author)
	for _, rawID := range hits.IDs {
		id, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			StaleSearchHits.Inc()
			continue
		}

		post, getErr := s.repository.GetPost(ctx, id)
		if errors.Is(getErr, ErrPostNotFound) {
			StaleSearchHits.Inc()
			s.logger.Debug("dropping stale search hit", "post_id", id)
			continue
		}
		if getErr != nil {
			err = fmt.Errorf("resolve search hit %s: %w", id, getErr)
			return nil, err
		}
		if post.Private {
			continue
		}

		author, authorErr := s.resolveAuthor(ctx, post.Author, authors)
		if authorErr != nil {
			err = authorErr
			return nil, err
		}

		views, viewErr := s.views.Fetch(ctx, post.ID)
		if viewErr != nil {
			s.logger.Warn("failed to fetch views", "post_id", post.ID, "error", viewErr)
			views = 0
		}

		page.Hits = append(page.Hits, newPostView(post, author, views))
	}

	return page, nil
}

// resolveAuthor returns the public projection of a post's author, or nil
// when the account no longer exists.
func (s *service) resolveAuthor(ctx context.Context, id uuid.UUID, cache map[uuid.UUID]*Author) (*Author, error) {
	if a, ok := cache[id]; ok {
		return a, nil
	}

	user, err := s.repository.GetUser(ctx, id)
	var author *Author
	switch {
	case errors.Is(err, ErrUserNotFound):
	case err != nil:
		return nil, fmt.Errorf("resolve author %s: %w", id, err)
	default:
		author = user.Projection()
	}

	if cache != nil {
		cache[id] = author
	}
	return author, nil
}

// File reads

func (s *service) OpenPostFile(ctx context.Context, fileName string) (*FileObject, error) {
	post, err := s.repository.GetPostByFileName(ctx, fileName)
	if errors.Is(err, ErrPostNotFound) {
		return nil, fmt.Errorf("%w: %s is not attached to a post", ErrFileNotFound, fileName)
	}
	if err != nil {
		return nil, err
	}

	return s.readBlob(ctx, post.File)
}

func (s *service) OpenAvatarFile(ctx context.Context, fileName string) (*FileObject, error) {
	user, err := s.repository.GetUserByAvatarFileName(ctx, fileName)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: avatar %s is not in use", ErrFileNotFound, fileName)
	}
	if err != nil {
		return nil, err
	}
	if user.Avatar == nil {
		return nil, fmt.Errorf("%w: avatar %s is not in use", ErrFileNotFound, fileName)
	}

	return s.readBlob(ctx, *user.Avatar)
}

func (s *service) readBlob(ctx context.Context, info FileInformation) (*FileObject, error) {
	data, err := s.blobStore.Get(ctx, info.Bucket, info.FileName)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: blob %s/%s is missing", ErrFileNotFound, info.Bucket, info.FileName)
	}
	if err != nil {
		return nil, err
	}

	return &FileObject{Info: info, Data: data}, nil
}

func (s *service) Flush(ctx context.Context) error {
	return s.syncer.flush(ctx)
}

func recordOutcome(op string, err error) {
	PipelineOperations.WithLabelValues(op, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	var verr *ValidationError
	var serr *StorageError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr), errors.Is(err, ErrInvalidMediaType), errors.Is(err, ErrNoFileProvided):
		return "invalid"
	case errors.Is(err, ErrTranscodeFailure):
		return "transcode_failed"
	case errors.Is(err, ErrTranscoderBusy):
		return "busy"
	case errors.Is(err, ErrTranscodeTimeout):
		return "timeout"
	case errors.Is(err, ErrPostNotFound), errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "forbidden"
	case errors.As(err, &serr):
		return "storage_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
