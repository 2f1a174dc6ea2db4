package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/priyadarshi7/ZenLearn/internal/api/response"
	"github.com/priyadarshi7/ZenLearn/internal/tracker"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// Processor defines what the synchronous process handler needs from the tracker.
type Processor interface {
	Process(ctx context.Context, work tracker.Work) (*models.ReactionResult, error)
}

// NewProcessHandler returns an http.HandlerFunc for POST /process.
// The pipeline runs inside the request.
func NewProcessHandler(svc Processor, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		work, cleanup, ok := readClip(w, r, maxBytes)
		if !ok {
			return
		}
		defer cleanup()

		result, err := svc.Process(r.Context(), work)
		switch {
		case err == nil:
			response.JSON(w, result)
		case errors.Is(err, tracker.ErrUnsupportedFormat):
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Only MP3 files are supported", nil)
		case errors.Is(err, tracker.ErrUploadStorage):
			slog.Error("storing upload", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store upload", nil)
		case errors.Is(err, tracker.ErrStageTimeout):
			response.Error(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", err.Error(), nil)
		default:
			response.Error(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), nil)
		}
	}
}
