// Package service runs the autonomy control loops: it records loop events,
// computes SLOs, rolls back degraded events and drives daily maintenance.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/autonomy/metrics"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/requestcontext"
)

const (
	recentEventsLimit    = 20
	recentRollbacksLimit = 10

	DefaultAvailabilityTarget = 99.9
	DefaultAutoRecoveryTarget = 95.0
	DefaultSLOWindow          = 24 * time.Hour
	DefaultRecoveryLookback   = 10 * time.Minute
	DefaultConcurrency        = 3
)

// Targets are the SLO thresholds and windows.
type Targets struct {
	Availability     float64
	AutoRecovery     float64
	Window           time.Duration
	RecoveryLookback time.Duration
}

// DefaultTargets returns the production SLO targets.
func DefaultTargets() Targets {
	return Targets{
		Availability:     DefaultAvailabilityTarget,
		AutoRecovery:     DefaultAutoRecoveryTarget,
		Window:           DefaultSLOWindow,
		RecoveryLookback: DefaultRecoveryLookback,
	}
}

// Service is the autonomy controller.
type Service struct {
	store       Store
	snapshots   Snapshots
	ingestor    Ingestor
	claimer     Claimer
	feed        Feed
	topic       string
	cities      []id.CityCode
	targets     Targets
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
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

// WithIngestor enables IngestAll and DailyMaintenance.
func WithIngestor(ingestor Ingestor) Option {
	return func(s *Service) {
		s.ingestor = ingestor
	}
}

// WithClaimer adds a cross-process claim on rollback trigger keys.
func WithClaimer(claimer Claimer) Option {
	return func(s *Service) {
		s.claimer = claimer
	}
}

// WithFeed mirrors every recorded event to topic.
func WithFeed(feed Feed, topic string) Option {
	return func(s *Service) {
		s.feed = feed
		s.topic = topic
	}
}

// WithCities sets the cities swept by IngestAll, in result order.
func WithCities(cities []id.CityCode) Option {
	return func(s *Service) {
		s.cities = cities
	}
}

func WithTargets(targets Targets) Option {
	return func(s *Service) {
		s.targets = targets
	}
}

// WithConcurrency bounds how many cities are ingested at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(store Store, snapshots Snapshots, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("autonomy store is required")
	}
	if snapshots == nil {
		return nil, errors.New("snapshot reader is required")
	}
	s := &Service{
		store:       store,
		snapshots:   snapshots,
		cities:      id.SupportedCities(),
		targets:     DefaultTargets(),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record appends a loop event, assigning its ID and timestamp when unset.
func (s *Service) Record(ctx context.Context, event *autonomy.Event) error {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record autonomy event")
	}
	if s.feed != nil {
		s.feed.Publish(ctx, s.topic, string(event.EventType), event)
	}
	return nil
}

// Status returns the operator view: active snapshot per city, recent events and
// rollbacks, and cities whose active snapshot is no longer trusted.
func (s *Service) Status(ctx context.Context) (*autonomy.Status, error) {
	snapshots, err := s.snapshots.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active snapshots")
	}
	status := &autonomy.Status{
		CitySnapshots: make(map[id.CityCode]autonomy.CitySnapshotStatus, len(snapshots)),
		StaleCities:   []id.CityCode{},
	}
	for _, snap := range snapshots {
		if _, seen := status.CitySnapshots[snap.CityCode]; seen {
			continue
		}
		status.CitySnapshots[snap.CityCode] = autonomy.CitySnapshotStatus{
			SnapshotID:      snap.ID,
			Version:         snap.Version,
			Status:          string(snap.Status),
			ValidationScore: snap.ValidationScore,
			PublishedAt:     snap.PublishedAt,
		}
		if snap.Status != rules.SnapshotStatusActive {
			status.StaleCities = append(status.StaleCities, snap.CityCode)
		}
	}

	status.RecentEvents, err = s.store.ListEvents(ctx, autonomy.EventFilter{}, recentEventsLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list autonomy events")
	}
	status.RecentRollbacks, err = s.store.RecentRollbacks(ctx, recentRollbacksLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rollbacks")
	}
	if status.RecentEvents == nil {
		status.RecentEvents = []*autonomy.Event{}
	}
	if status.RecentRollbacks == nil {
		status.RecentRollbacks = []*autonomy.RollbackEvent{}
	}
	return status, nil
}

// LatestSLOSummary returns the newest value of each SLO metric.
func (s *Service) LatestSLOSummary(ctx context.Context) ([]*autonomy.SLOMetric, error) {
	metrics, err := s.store.LatestSLOMetrics(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load SLO metrics")
	}
	if metrics == nil {
		metrics = []*autonomy.SLOMetric{}
	}
	return metrics, nil
}

// RunOpsCycle records SLOs and then runs recovery.
func (s *Service) RunOpsCycle(ctx context.Context) (*autonomy.OpsCycle, error) {
	slos, err := s.RecordSLOMetrics(ctx)
	if err != nil {
		return nil, err
	}
	recovery, err := s.RunRecovery(ctx)
	if err != nil {
		return nil, err
	}
	return &autonomy.OpsCycle{Metrics: slos, Recovery: recovery}, nil
}
