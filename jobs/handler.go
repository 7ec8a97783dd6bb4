package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/rentroll/internal/platform/httpx"
	"github.com/odyssey-erp/rentroll/internal/rent"
)

// QueueInspector reports queue depth for the health endpoint.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// RentEnqueuer schedules a rent run on the queue.
type RentEnqueuer interface {
	EnqueueRentGenerate(ctx context.Context, date string) (*asynq.TaskInfo, error)
}

// Handler exposes HTTP endpoints for job observability and manual triggers.
type Handler struct {
	inspector QueueInspector
	rent      *RentGenerateJob
	enqueuer  RentEnqueuer
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector QueueInspector, rentJob *RentGenerateJob, enqueuer RentEnqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, rent: rentJob, enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/rent/runs", h.triggerRent)
}

type healthResponse struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, healthResponse{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	resp := healthResponse{Queue: QueueDefault}
	if info != nil {
		resp.Queue = info.Queue
		resp.Pending = info.Pending
		resp.Active = info.Active
		resp.Retry = info.Retry
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type rentRunRequest struct {
	Date  string `json:"date"`
	Async bool   `json:"async"`
}

type rentEnqueued struct {
	TaskID string    `json:"task_id"`
	Queue  string    `json:"queue"`
	Date   string    `json:"date,omitempty"`
	At     time.Time `json:"enqueued_at"`
}

// triggerRent runs the generator inline and returns the run summary, or
// enqueues it when async is requested.
func (h *Handler) triggerRent(w http.ResponseWriter, r *http.Request) {
	var req rentRunRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if h.rent == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Rent Generator Unavailable", "")
		return
	}
	at, err := h.rent.RunDate(req.Date)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	if req.Async {
		if h.enqueuer == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
			return
		}
		info, err := h.enqueuer.EnqueueRentGenerate(r.Context(), req.Date)
		if err != nil {
			h.logger.Error("enqueue rent run", slog.Any("error", err))
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
			return
		}
		httpx.JSON(w, http.StatusAccepted, rentEnqueued{TaskID: info.ID, Queue: info.Queue, Date: req.Date, At: time.Now().UTC()})
		return
	}

	summary, err := h.rent.RunOnce(r.Context(), at)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, summary)
	case errors.Is(err, rent.ErrValidation):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
	}
}
