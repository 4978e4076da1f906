package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"permitpulse/internal/alerts"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/httputil"
	"permitpulse/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, orgID id.OrganizationID, limit int) ([]*alerts.Alert, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/alerts", h.HandleList)
}

// HandleList handles GET /alerts. The organization comes from the resolution
// middleware; unscoped requests see every organization's alerts.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	out, err := h.service.List(ctx, requestcontext.OrganizationID(ctx), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list alerts failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
