package api

import (
	"errors"
	"net/http"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/go-chi/render"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// writeError maps service errors to a status and a client-safe message.
// Anything unrecognised is logged in full and reported as a bare 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := classify(op, err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeErrorMessage(w, r, status, message)
}

func classify(op string, err error) (int, string) {
	var verr *gifbox.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, gifbox.ErrNoFileProvided):
		return http.StatusBadRequest, "No file provided"
	case errors.Is(err, gifbox.ErrInvalidMediaType):
		return http.StatusBadRequest, "Invalid file type"
	case errors.Is(err, gifbox.ErrTranscodeFailure):
		return http.StatusBadRequest, "Not a valid source file"
	case errors.Is(err, gifbox.ErrTranscoderBusy):
		return http.StatusServiceUnavailable, "Server is busy, try again later"
	case errors.Is(err, gifbox.ErrTranscodeTimeout):
		return http.StatusServiceUnavailable, "Conversion took too long, try again later"
	case errors.Is(err, gifbox.ErrUserNotFound) && op == "create":
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, gifbox.ErrPermissionDenied):
		return http.StatusBadRequest, "You are not the author of this post"
	case errors.Is(err, gifbox.ErrPostNotFound) && op == "delete":
		return http.StatusBadRequest, "Post not found"
	case errors.Is(err, gifbox.ErrPostNotFound):
		return http.StatusNotFound, "Post not found"
	case errors.Is(err, gifbox.ErrFileNotFound):
		return http.StatusNotFound, "File not found"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
