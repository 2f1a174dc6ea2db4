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

// Submitter defines what the upload handler needs from the tracker.
// The job must not start before dispatch is called.
type Submitter interface {
	Submit(ctx context.Context, work tracker.Work) (job *models.Job, dispatch func(), err error)
}

type uploadResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewUploadHandler returns an http.HandlerFunc for POST /upload.
func NewUploadHandler(svc Submitter, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		work, cleanup, ok := readClip(w, r, maxBytes)
		if !ok {
			return
		}
		defer cleanup()

		job, dispatch, err := svc.Submit(r.Context(), work)
		switch {
		case errors.Is(err, tracker.ErrUnsupportedFormat):
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Only MP3 files are supported", nil)
			return
		case errors.Is(err, tracker.ErrQueueFull), errors.Is(err, tracker.ErrShuttingDown):
			w.Header().Set("Retry-After", "30")
			response.Error(w, http.StatusServiceUnavailable, "QUEUE_FULL", "Server is busy, try again later", nil)
			return
		case err != nil:
			slog.Error("submitting job", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to accept upload", nil)
			return
		}

		response.JSON(w, uploadResponse{
			JobID:   job.ID.String(),
			Status:  job.Status,
			Message: "File uploaded successfully. Processing started.",
		})
		if err := http.NewResponseController(w).Flush(); err != nil {
			slog.Debug("flushing upload response", "job_id", job.ID, "error", err)
		}
		dispatch()
	}
}
