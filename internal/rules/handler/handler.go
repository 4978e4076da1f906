package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/httputil"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	Active(ctx context.Context, city id.CityCode) (*rules.Snapshot, error)
}

// Handler serves the published ruleset for a city.
type Handler struct {
	snapshots SnapshotReader
	logger    *slog.Logger
}

func New(snapshots SnapshotReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{snapshots: snapshots, logger: logger}
}

// Register mounts rule endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/cities/{city}/rules/latest", h.HandleLatest)
}

// HandleLatest handles GET /cities/{city}/rules/latest.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	city, err := id.ParseCityCode(chi.URLParam(r, "city"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.snapshots.Active(ctx, city)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no active ruleset for "+city.String()))
		return
	case errors.Is(err, sentinel.ErrInvariant):
		h.logger.ErrorContext(ctx, "snapshot invariant violated",
			"request_id", requestcontext.RequestID(ctx),
			"city_code", city,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "ruleset state is inconsistent"))
		return
	case err != nil:
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ruleset"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, snap)
}
