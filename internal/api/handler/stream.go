package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/priyadarshi7/ZenLearn/internal/api/response"
	"github.com/priyadarshi7/ZenLearn/internal/events"
	"github.com/priyadarshi7/ZenLearn/internal/tracker"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Subscriber is the part of the event bus the stream handler uses.
type Subscriber interface {
	Subscribe(jobID uuid.UUID) (<-chan events.Event, func())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewStatusStreamHandler returns an http.HandlerFunc for GET /ws/status/{job_id}.
// It sends the current job, then every later status, and closes once the job is terminal.
func NewStatusStreamHandler(svc StatusReader, bus Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "job_id")
		ctx := r.Context()

		job, err := svc.GetStatus(ctx, id)
		if errors.Is(err, tracker.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read job status", nil)
			return
		}

		updates, unsubscribe := bus.Subscribe(job.ID)
		defer unsubscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "job_id", job.ID, "error", err)
			return
		}
		defer conn.Close()

		// Re-read after subscribing so a change in between is not lost.
		if latest, err := svc.GetStatus(ctx, id); err == nil {
			job = latest
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		lastRank := models.StatusRank(job.Status)
		if err := writeJob(conn, job); err != nil {
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for !models.IsTerminal(job.Status) {
			select {
			case <-closed:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if models.StatusRank(ev.Status) <= lastRank {
					continue
				}
				latest, err := svc.GetStatus(ctx, id)
				if err != nil || models.StatusRank(latest.Status) <= lastRank {
					continue
				}
				job = latest
				lastRank = models.StatusRank(job.Status)
				if err := writeJob(conn, job); err != nil {
					return
				}
			}
		}

		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job "+job.Status),
			time.Now().Add(writeWait))
	}
}

func writeJob(conn *websocket.Conn, job *models.Job) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(job)
}
