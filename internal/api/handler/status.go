package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/priyadarshi7/ZenLearn/internal/api/response"
	"github.com/priyadarshi7/ZenLearn/internal/tracker"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

// StatusReader defines what the status handlers need from the tracker.
type StatusReader interface {
	GetStatus(ctx context.Context, id string) (*models.Job, error)
}

// NewStatusHandler returns an http.HandlerFunc for GET /status/{job_id}.
func NewStatusHandler(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.GetStatus(r.Context(), chi.URLParam(r, "job_id"))
		if errors.Is(err, tracker.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			slog.Error("getting job status", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read job status", nil)
			return
		}

		response.JSON(w, job)
	}
}
