package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"permitpulse/internal/decision"
	"permitpulse/internal/organization"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/httputil"
	"permitpulse/pkg/requestcontext"
)

// Service defines the interface for decision operations.
type Service interface {
	Check(ctx context.Context, req decision.CheckRequest) (*decision.AddressCheck, error)
	Get(ctx context.Context, checkID id.CheckID) (*decision.AddressCheck, error)
	Trace(ctx context.Context, checkID id.CheckID) (*decision.DecisionTrace, error)
}

// Organizations loads the organization resolved by middleware.
type Organizations interface {
	Get(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error)
}

// Handler wires address check endpoints to the decision service.
type Handler struct {
	service Service
	orgs    Organizations
	logger  *slog.Logger
}

// New constructs a decision handler with its dependencies.
func New(service Service, orgs Organizations, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		orgs:    orgs,
		logger:  logger,
	}
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/address-checks", h.HandleCheck)
	r.Get("/address-checks/{id}", h.HandleGet)
	r.Get("/address-checks/{id}/trace", h.HandleTrace)
}

// HandleCheck handles POST /address-checks requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var org *organization.Organization
	if orgID := requestcontext.OrganizationID(ctx); !orgID.IsNil() {
		loaded, err := h.orgs.Get(ctx, orgID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load organization",
				"request_id", requestID,
				"organization_id", orgID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		org = loaded
	}

	check, err := h.service.Check(ctx, decision.CheckRequest{
		Address:      req.Address,
		CityCode:     req.ParsedCity(),
		Context:      req.Context,
		Organization: org,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeQuotaExceeded) {
			h.logger.InfoContext(ctx, "address check over quota",
				"request_id", requestID,
				"city_code", req.ParsedCity(),
			)
		} else {
			h.logger.ErrorContext(ctx, "address check failed",
				"request_id", requestID,
				"city_code", req.ParsedCity(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "address checked",
		"request_id", requestID,
		"check_id", check.ID,
		"city_code", check.CityCode,
		"result_grade", check.ResultGrade,
		"decision_mode", check.DecisionMode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCheck(check))
}

// HandleGet handles GET /address-checks/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checkID, err := id.ParseCheckID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "address check not found"))
		return
	}
	check, err := h.service.Get(ctx, checkID)
	if err != nil {
		h.logFailure(ctx, "get address check failed", checkID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCheck(check))
}

// HandleTrace handles GET /address-checks/{id}/trace.
func (h *Handler) HandleTrace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checkID, err := id.ParseCheckID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "decision trace not found"))
		return
	}
	t, err := h.service.Trace(ctx, checkID)
	if err != nil {
		h.logFailure(ctx, "get decision trace failed", checkID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) logFailure(ctx context.Context, msg string, checkID id.CheckID, err error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"check_id", checkID,
		"error", err,
	)
}
