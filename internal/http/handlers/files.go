package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Files serves stored artifacts by key under /files/. Keys are sanitized by
// the store, so traversal attempts fail with not found.
func (a *App) Files(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	data, err := a.Blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("file read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read file")
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
