// Package decision grades an address against its city's active ruleset and
// records the verdict with a trace of the clauses that produced it.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/decision/metrics"
	"permitpulse/internal/decision/ports"
	"permitpulse/internal/organization"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

const (
	tracerName       = "permitpulse/decision"
	maxAddressLength = 255
	// DefaultConfidenceThreshold is the minimum confidence for an AUTO_CONFIDENT verdict.
	DefaultConfidenceThreshold = 0.8
)

// Service runs address checks.
type Service struct {
	store     Store
	snapshots ports.SnapshotReader
	events    ports.EventRecorder
	engine    *Engine
	quotas    map[string]int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEvents appends a decision_loop event for every check.
func WithEvents(events ports.EventRecorder) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithConfidenceThreshold(threshold float64) Option {
	return func(s *Service) {
		s.engine = NewEngine(threshold)
	}
}

// WithPlanQuotas sets monthly check allowances per lowercased plan name.
func WithPlanQuotas(quotas map[string]int) Option {
	return func(s *Service) {
		s.quotas = quotas
	}
}

func NewService(store Store, snapshots ports.SnapshotReader, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("decision store is required")
	}
	if snapshots == nil {
		return nil, errors.New("snapshot reader is required")
	}
	s := &Service{
		store:     store,
		snapshots: snapshots,
		engine:    NewEngine(DefaultConfidenceThreshold),
		quotas: map[string]int{
			string(organization.PlanStarter): 30,
			string(organization.PlanPro):     200,
			string(organization.PlanTeam):    1000,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check grades req and persists the verdict. It fails with quota_exceeded,
// creating nothing, when the organization has used its monthly allowance.
// A city without an active ruleset is not an error: the verdict is UNDETERMINED.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*AddressCheck, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveCheckLatency(time.Since(start))
	}()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "decision.Check",
		trace.WithAttributes(attribute.String("city_code", req.CityCode.String())),
	)
	defer span.End()

	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if len(req.Address) > maxAddressLength {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("address must be at most %d characters", maxAddressLength))
	}
	if !req.CityCode.IsSupported() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported city_code %q", req.CityCode))
	}

	if err := s.enforceQuota(ctx, req.Organization); err != nil {
		span.SetStatus(codes.Error, "quota")
		return nil, err
	}

	check, err := s.evaluate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check failed")
		s.recordEvent(ctx, autonomy.OutcomeDegraded, map[string]any{
			"city_code": req.CityCode.String(),
			"error":     err.Error(),
		})
		return nil, err
	}

	outcome := autonomy.OutcomeHealthy
	if check.DecisionMode != ModeAutoConfident {
		outcome = autonomy.OutcomeDegraded
	}
	s.recordEvent(ctx, outcome, map[string]any{
		"check_id":  check.ID.String(),
		"city_code": check.CityCode.String(),
	})
	s.metrics.IncrementOutcome(check.CityCode.String(), string(check.ResultGrade), string(check.DecisionMode))
	span.SetAttributes(
		attribute.String("result_grade", string(check.ResultGrade)),
		attribute.String("decision_mode", string(check.DecisionMode)),
	)
	return check, nil
}

// enforceQuota counts checks since the start of the current UTC month. The
// count and the later insert are not atomic, so concurrent checks may overshoot.
func (s *Service) enforceQuota(ctx context.Context, org *organization.Organization) error {
	if org == nil {
		return nil
	}
	now := requestcontext.Now(ctx).UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	used, err := s.store.CountSince(ctx, org.ID, monthStart)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count monthly checks")
	}
	if used >= org.MonthlyQuota(s.quotas) {
		s.metrics.IncrementQuotaRejection(string(org.Plan))
		s.logger.InfoContext(ctx, "address check rejected by quota",
			"organization_id", org.ID,
			"plan", org.Plan,
			"used", used,
		)
		return dErrors.New(dErrors.CodeQuotaExceeded, fmt.Sprintf("Monthly quota exceeded for plan '%s'", org.Plan))
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, req CheckRequest) (*AddressCheck, error) {
	snapshot, err := s.snapshots.Active(ctx, req.CityCode)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		snapshot = nil
	case errors.Is(err, sentinel.ErrInvariant):
		s.logger.ErrorContext(ctx, "multiple active snapshots for city",
			"city_code", req.CityCode,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, fmt.Sprintf("multiple active snapshots for %s", req.CityCode))
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active snapshot")
	}

	outcome := s.engine.Evaluate(snapshot, rules.Facts(req.Context))
	now := requestcontext.Now(ctx)

	check := &AddressCheck{
		ID:              id.NewCheckID(),
		Address:         req.Address,
		CityCode:        req.CityCode,
		ResultGrade:     outcome.Grade,
		DecisionMode:    outcome.Mode,
		BlockerFlags:    outcome.Blockers,
		RequiredActions: outcome.Actions,
		Evidence:        outcome.Evidence,
		Confidence:      outcome.Confidence,
		CreatedAt:       now,
		Provenance:      provenanceOf(snapshot),
	}
	if req.Organization != nil {
		orgID := req.Organization.ID
		check.OrganizationID = &orgID
	}
	if snapshot != nil {
		snapID := snapshot.ID
		check.SnapshotID = &snapID
	}

	digest, err := EvidenceDigest(check.Evidence)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to digest evidence")
	}
	decisionTrace := &DecisionTrace{
		AddressCheckID: check.ID,
		SnapshotID:     check.SnapshotID,
		RuleIDs:        outcome.RuleIDs,
		Confidence:     outcome.Confidence,
		EvidenceDigest: digest,
		GeneratedAt:    now,
	}

	if err := s.store.Save(ctx, check, decisionTrace); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save address check")
	}
	return check, nil
}

// Get returns a stored check with its provenance.
func (s *Service) Get(ctx context.Context, checkID id.CheckID) (*AddressCheck, error) {
	check, err := s.store.Get(ctx, checkID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "address check not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load address check")
	}
	check.Provenance = Provenance{SnapshotID: check.SnapshotID, SourceURLs: []string{}}
	if check.SnapshotID == nil {
		return check, nil
	}
	snapshot, err := s.snapshots.Get(ctx, *check.SnapshotID)
	switch {
	case err == nil:
		check.Provenance = provenanceOf(snapshot)
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load check snapshot")
	}
	return check, nil
}

// Trace returns the decision trace recorded for a check.
func (s *Service) Trace(ctx context.Context, checkID id.CheckID) (*DecisionTrace, error) {
	t, err := s.store.Trace(ctx, checkID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "decision trace not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decision trace")
	}
	return t, nil
}

func provenanceOf(snapshot *rules.Snapshot) Provenance {
	if snapshot == nil {
		return Provenance{SourceURLs: []string{}}
	}
	snapID := snapshot.ID
	checksum := snapshot.Checksum
	urls := append([]string{}, snapshot.SourceURLs...)
	return Provenance{SnapshotID: &snapID, Checksum: &checksum, SourceURLs: urls}
}

func (s *Service) recordEvent(ctx context.Context, outcome autonomy.Outcome, details map[string]any) {
	if s.events == nil {
		return
	}
	event := &autonomy.Event{
		EventType:   autonomy.EventTypeDecision,
		Trigger:     autonomy.TriggerAddressChecks,
		ActionTaken: autonomy.ActionEvaluateAddress,
		Outcome:     outcome,
		Details:     details,
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record decision event",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
