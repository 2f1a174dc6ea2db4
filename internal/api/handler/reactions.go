package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/priyadarshi7/ZenLearn/internal/api/response"
	"github.com/priyadarshi7/ZenLearn/internal/artifact"
)

// ReactionOpener defines what the download handler needs from the artifact store.
type ReactionOpener interface {
	OpenReaction(name string) (*os.File, error)
}

// NewReactionsHandler returns an http.HandlerFunc for GET /reactions/{filename}.
func NewReactionsHandler(artifacts ReactionOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "filename")

		f, err := artifacts.OpenReaction(name)
		if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, artifact.ErrInvalidName) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "File not found", nil)
			return
		}
		if err != nil {
			slog.Error("opening reaction", "name", name, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read file", nil)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read file", nil)
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}
