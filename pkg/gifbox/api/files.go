package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/go-chi/chi/v5"
)

const fileMaxAge = 365 * 24 * time.Hour

// ServePostFile streams a post's canonical file
func (h *Handler) ServePostFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.service.OpenPostFile)
}

// ServeAvatarFile streams a user's avatar
func (h *Handler) ServeAvatarFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.service.OpenAvatarFile)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, open func(context.Context, string) (*gifbox.FileObject, error)) {
	obj, err := open(r.Context(), chi.URLParam(r, "file"))
	if err != nil {
		h.writeError(w, r, "file", err)
		return
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == obj.Info.ContentHash {
		w.Header().Set("ETag", obj.Info.ContentHash)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeFile(w, obj)
}

func writeFile(w http.ResponseWriter, obj *gifbox.FileObject) {
	info := obj.Info
	header := w.Header()
	header.Set("Content-Type", info.MimeType)
	header.Set("Content-Length", strconv.Itoa(len(obj.Data)))
	header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.FileName))
	header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(fileMaxAge.Seconds())))
	header.Set("Expires", time.Now().Add(fileMaxAge).UTC().Format(http.TimeFormat))
	header.Set("Last-Modified", info.UploadDate.UTC().Format(http.TimeFormat))
	header.Set("ETag", info.ContentHash)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
