package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps a create request body.
const DefaultMaxUploadBytes int64 = 20 << 20

// Handler serves the post and file endpoints on top of gifbox.Service
type Handler struct {
	service        gifbox.Service
	tokens         *jwtauth.JWTAuth
	maxUploadBytes int64
	logger         *slog.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithMaxUploadBytes sets the request body ceiling for uploads
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxUploadBytes = n
	}
}

// WithHandlerLogger sets the logger used for request-level failures
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler. tokens verifies bearer tokens on the
// authenticated routes.
func NewHandler(service gifbox.Service, tokens *jwtauth.JWTAuth, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:        service,
		tokens:         tokens,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r. Routes are added in a group, so r may
// already carry other routes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware, TracingMiddleware)

		r.Get("/", h.Status)

		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokens), RequireSession)
			r.With(RequestSizeLimitMiddleware(h.maxUploadBytes)).Post("/post/new", h.CreatePost)
			r.Delete("/post/{id}", h.DeletePost)
		})

		r.Post("/post/search", h.SearchPosts)
		r.Get("/post/{id}", h.GetPost)

		r.Get("/file/posts/{file}", h.ServePostFile)
		r.Get("/file/avatars/{file}", h.ServeAvatarFile)
	})
}

// Routes returns a standalone router with every route mounted
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Status reports liveness
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// CreatePost accepts a multipart upload with a file part and title/tags fields
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	authorID, _ := SessionUserID(r.Context())

	req, err := readCreateForm(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		h.logger.Info("Malformed upload", "error", err)
		writeErrorMessage(w, r, http.StatusBadRequest, "Malformed multipart body")
		return
	}
	req.AuthorID = authorID

	view, err := h.service.CreatePost(r.Context(), *req)
	if err != nil {
		h.writeError(w, r, "create", err)
		return
	}

	h.logger.Info("Post created", "post_id", view.ID, "file_name", view.File.FileName)
	render.JSON(w, r, view)
}

func readCreateForm(r *http.Request) (*gifbox.CreatePostRequest, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	req := &gifbox.CreatePostRequest{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, err
		}

		switch part.FormName() {
		case "file":
			req.Data = data
			req.FileName = part.FileName()
			req.DeclaredType = part.Header.Get("Content-Type")
		case "title":
			req.Title = string(data)
		case "tags", "tags[]":
			req.Tags = append(req.Tags, string(data))
		}
	}
	return req, nil
}

// DeletePost removes a post owned by the session user
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := SessionUserID(r.Context())

	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Post not found")
		return
	}

	err = h.service.DeletePost(r.Context(), gifbox.DeletePostRequest{
		PostID:      postID,
		RequesterID: requesterID,
	})
	if err != nil {
		h.writeError(w, r, "delete", err)
		return
	}

	h.logger.Info("Post deleted", "post_id", postID)
	render.JSON(w, r, map[string]bool{"success": true})
}

// GetPost returns a post with its author and view count
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMessage(w, r, http.StatusNotFound, "Post not found")
		return
	}

	view, err := h.service.GetPost(r.Context(), postID)
	if err != nil {
		h.writeError(w, r, "get", err)
		return
	}

	render.JSON(w, r, view)
}

// SearchPosts queries public posts
func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	var req gifbox.SearchPostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	page, err := h.service.SearchPosts(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "search", err)
		return
	}

	render.JSON(w, r, page)
}
