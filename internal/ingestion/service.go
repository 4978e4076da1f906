// Package ingestion runs the per-city data loop: fetch the source page, extract
// clauses, gate them, and publish a new ruleset version or hold the previous one.
// Every cycle appends exactly one data_loop event.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/ingestion/metrics"
	"permitpulse/internal/ingestion/ports"
	"permitpulse/internal/rules"
	"permitpulse/internal/rules/validation"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

const tracerName = "permitpulse/ingestion"

// Service is safe for concurrent use. Concurrent cycles for the same city share
// one execution.
type Service struct {
	fetcher   ports.Fetcher
	extractor ports.Extractor
	gate      *validation.Gate
	snapshots ports.SnapshotStore
	events    ports.EventRecorder
	alerts    ports.AlertBroadcaster
	archive   ports.Archive
	logger    *slog.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group
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

// WithAlerts broadcasts a rule_update alert after each publication.
func WithAlerts(alerts ports.AlertBroadcaster) Option {
	return func(s *Service) {
		s.alerts = alerts
	}
}

// WithArchive stores every fetched document by checksum. Archive failures are logged only.
func WithArchive(archive ports.Archive) Option {
	return func(s *Service) {
		s.archive = archive
	}
}

func NewService(
	fetcher ports.Fetcher,
	extractor ports.Extractor,
	gate *validation.Gate,
	snapshots ports.SnapshotStore,
	events ports.EventRecorder,
	opts ...Option,
) (*Service, error) {
	switch {
	case fetcher == nil:
		return nil, errors.New("fetcher is required")
	case extractor == nil:
		return nil, errors.New("extractor is required")
	case gate == nil:
		return nil, errors.New("validation gate is required")
	case snapshots == nil:
		return nil, errors.New("snapshot store is required")
	case events == nil:
		return nil, errors.New("event recorder is required")
	}
	s := &Service{
		fetcher:   fetcher,
		extractor: extractor,
		gate:      gate,
		snapshots: snapshots,
		events:    events,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IngestCity runs one cycle and returns the snapshot now in effect for the city,
// which is nil when the city has never had a valid publication. Collaborator
// failures are absorbed: the previous snapshot is marked STALE and returned.
// Only an invariant violation in the store is returned as an error.
func (s *Service) IngestCity(ctx context.Context, city id.CityCode) (*rules.Snapshot, error) {
	v, err, shared := s.group.Do(city.String(), func() (any, error) {
		return s.ingest(ctx, city)
	})
	if shared {
		s.logger.DebugContext(ctx, "joined in-flight ingestion", "city_code", city)
	}
	if err != nil {
		return nil, err
	}
	snap, _ := v.(*rules.Snapshot)
	return snap, nil
}

func (s *Service) ingest(ctx context.Context, city id.CityCode) (*rules.Snapshot, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingestion.IngestCity",
		trace.WithAttributes(attribute.String("city_code", city.String())),
	)
	defer span.End()
	defer func() {
		s.metrics.ObserveCycle(city.String(), time.Since(start))
	}()

	previous, err := s.snapshots.Active(ctx, city)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		previous = nil
	case errors.Is(err, sentinel.ErrInvariant):
		s.logger.ErrorContext(ctx, "multiple active snapshots for city",
			"city_code", city,
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invariant violation")
		s.record(ctx, city, autonomy.ActionFallbackPrevious, autonomy.OutcomeDegraded, map[string]any{
			"error":     err.Error(),
			"city_code": city.String(),
		})
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, fmt.Sprintf("multiple active snapshots for %s", city))
	default:
		return s.fallback(ctx, span, city, nil, fmt.Errorf("load active snapshot: %w", err)), nil
	}

	snap, err := s.cycle(ctx, city, previous)
	if err != nil {
		return s.fallback(ctx, span, city, previous, err), nil
	}
	return snap, nil
}

func (s *Service) cycle(ctx context.Context, city id.CityCode, previous *rules.Snapshot) (*rules.Snapshot, error) {
	doc, err := s.fetcher.Fetch(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	draft := s.extractor.Extract(ctx, *doc)
	s.archiveDocument(ctx, draft.Checksum, doc)

	var prev *validation.Previous
	if previous != nil {
		count, err := s.snapshots.ClauseCount(ctx, previous.ID)
		if err != nil {
			return nil, fmt.Errorf("count previous clauses: %w", err)
		}
		prev = &validation.Previous{SnapshotID: previous.ID, ClauseCount: count}
	}
	verdict := s.gate.Evaluate(city, draft, prev)

	if previous != nil && previous.Checksum == draft.Checksum {
		s.record(ctx, city, autonomy.ActionSkipSameChecksum, autonomy.OutcomeStable, map[string]any{
			"city_code": city.String(),
			"checksum":  draft.Checksum,
		})
		return previous, nil
	}

	if !verdict.Valid {
		if previous != nil {
			if err := s.snapshots.MarkStale(ctx, previous.ID); err != nil {
				return nil, fmt.Errorf("mark previous stale: %w", err)
			}
			previous.Status = rules.SnapshotStatusStale
		}
		s.logger.WarnContext(ctx, "draft rejected; holding previous snapshot",
			"city_code", city,
			"reasons", verdict.Reasons,
			"validation_score", verdict.ValidationScore,
		)
		s.record(ctx, city, autonomy.ActionHoldPrevious, autonomy.OutcomeDegraded, map[string]any{
			"city_code":        city.String(),
			"reasons":          verdict.Reasons,
			"validation_score": verdict.ValidationScore,
		})
		return previous, nil
	}

	published, err := s.snapshots.Publish(ctx, newSnapshot(ctx, city, draft, verdict))
	if err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	s.metrics.SetPublishedVersion(city.String(), published.Version)
	s.logger.InfoContext(ctx, "published rule snapshot",
		"city_code", city,
		"version", published.Version,
		"clauses", len(published.Clauses),
		"validation_score", verdict.ValidationScore,
	)
	s.broadcast(ctx, city, published.Version)
	s.record(ctx, city, autonomy.ActionPublishSnapshot, autonomy.OutcomeHealthy, map[string]any{
		"city_code": city.String(),
		"version":   published.Version,
		"score":     verdict.ValidationScore,
	})
	return published, nil
}

func newSnapshot(ctx context.Context, city id.CityCode, draft *rules.Draft, verdict validation.Result) *rules.Snapshot {
	now := requestcontext.Now(ctx).UTC()
	clauses := make([]rules.Clause, 0, len(draft.Clauses))
	for _, c := range draft.Clauses {
		clauses = append(clauses, c.ToClause())
	}
	return &rules.Snapshot{
		CityCode:        city,
		Checksum:        draft.Checksum,
		Status:          rules.SnapshotStatusActive,
		ValidationScore: verdict.ValidationScore,
		SourceURLs:      draft.SourceURLs,
		ParsedPayload: rules.ParsedPayload{
			ParserTraces: draft.ParserTraces,
			ClauseCount:  len(clauses),
		},
		EffectiveDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		PublishedAt:   now,
		Clauses:       clauses,
	}
}

// fallback marks the previous snapshot STALE and returns it.
func (s *Service) fallback(ctx context.Context, span trace.Span, city id.CityCode, previous *rules.Snapshot, cause error) *rules.Snapshot {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "ingestion failed")
	s.logger.WarnContext(ctx, "ingestion failed; falling back to previous snapshot",
		"city_code", city,
		"error", cause,
	)
	if previous != nil {
		if err := s.snapshots.MarkStale(ctx, previous.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark previous snapshot stale",
				"city_code", city,
				"snapshot_id", previous.ID,
				"error", err,
			)
		} else {
			previous.Status = rules.SnapshotStatusStale
		}
	}
	s.record(ctx, city, autonomy.ActionFallbackPrevious, autonomy.OutcomeDegraded, map[string]any{
		"error":     cause.Error(),
		"city_code": city.String(),
	})
	return previous
}

func (s *Service) broadcast(ctx context.Context, city id.CityCode, version int) {
	if s.alerts == nil {
		return
	}
	if _, err := s.alerts.BroadcastRuleUpdate(ctx, city, version); err != nil {
		s.logger.ErrorContext(ctx, "failed to broadcast rule update",
			"city_code", city,
			"version", version,
			"error", err,
		)
	}
}

func (s *Service) archiveDocument(ctx context.Context, checksum string, doc *rules.RawDocument) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, checksum, doc); err != nil {
		s.logger.WarnContext(ctx, "failed to archive source document",
			"city_code", doc.CityCode,
			"checksum", checksum,
			"error", err,
		)
	}
}

func (s *Service) record(ctx context.Context, city id.CityCode, action string, outcome autonomy.Outcome, details map[string]any) {
	s.metrics.IncrementOutcome(city.String(), action)
	event := &autonomy.Event{
		EventType:   autonomy.EventTypeData,
		Trigger:     autonomy.IngestTrigger(city),
		ActionTaken: action,
		Outcome:     outcome,
		Details:     details,
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record ingestion event",
			"city_code", city,
			"action", action,
			"error", err,
		)
	}
}
