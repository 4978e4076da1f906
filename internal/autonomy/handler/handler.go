package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"permitpulse/internal/autonomy"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/httputil"
	"permitpulse/pkg/requestcontext"
)

// Service is the autonomy controller as seen by HTTP.
type Service interface {
	Status(ctx context.Context) (*autonomy.Status, error)
	LatestSLOSummary(ctx context.Context) ([]*autonomy.SLOMetric, error)
	DailyMaintenance(ctx context.Context) (*autonomy.MaintenanceSummary, error)
	IngestCity(ctx context.Context, city id.CityCode) (autonomy.CityResult, error)
	RunOpsCycle(ctx context.Context) (*autonomy.OpsCycle, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the read-only system views.
func (h *Handler) Register(r chi.Router) {
	r.Get("/system/autonomy-status", h.HandleStatus)
	r.Get("/system/slo", h.HandleSLO)
}

// RegisterOperator mounts the trigger endpoints. The caller is expected to wrap
// r with operator authentication.
func (h *Handler) RegisterOperator(r chi.Router) {
	r.Get("/internal/cron/daily-maintenance", h.HandleDailyMaintenance)
	r.Post("/internal/cron/daily-maintenance", h.HandleDailyMaintenance)
	r.Post("/internal/ingestion/{city}", h.HandleIngestCity)
	r.Post("/internal/ops/cycle", h.HandleOpsCycle)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.service.Status(ctx)
	if err != nil {
		h.fail(ctx, w, "autonomy status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

type sloResponse struct {
	Metrics []*autonomy.SLOMetric `json:"metrics"`
}

func (h *Handler) HandleSLO(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metrics, err := h.service.LatestSLOSummary(ctx)
	if err != nil {
		h.fail(ctx, w, "slo summary failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sloResponse{Metrics: metrics})
}

func (h *Handler) HandleDailyMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "daily maintenance triggered",
		"request_id", requestcontext.RequestID(ctx),
		"operator", requestcontext.Operator(ctx),
	)
	summary, err := h.service.DailyMaintenance(ctx)
	if err != nil {
		h.fail(ctx, w, "daily maintenance failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleIngestCity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	city, err := id.ParseCityCode(chi.URLParam(r, "city"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown city"))
		return
	}
	result, err := h.service.IngestCity(ctx, city)
	if err != nil {
		h.fail(ctx, w, "city ingestion failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleOpsCycle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycle, err := h.service.RunOpsCycle(ctx)
	if err != nil {
		h.fail(ctx, w, "ops cycle failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cycle)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
