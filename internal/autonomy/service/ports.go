package service

import (
	"context"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Store persists events, rollbacks and SLO history.
type Store interface {
	AppendEvent(ctx context.Context, event *autonomy.Event) error
	CountEvents(ctx context.Context, filter autonomy.EventFilter) (int, error)
	ListEvents(ctx context.Context, filter autonomy.EventFilter, limit int) ([]*autonomy.Event, error)
	RollbackExists(ctx context.Context, triggerKey string) (bool, error)
	InsertRollbackIfAbsent(ctx context.Context, rb *autonomy.RollbackEvent) (bool, error)
	RecentRollbacks(ctx context.Context, limit int) ([]*autonomy.RollbackEvent, error)
	AppendSLOMetric(ctx context.Context, metric *autonomy.SLOMetric) error
	LatestSLOMetrics(ctx context.Context) ([]*autonomy.SLOMetric, error)
}

// Snapshots reads the active rulesets.
type Snapshots interface {
	Active(ctx context.Context, city id.CityCode) (*rules.Snapshot, error)
	ListActive(ctx context.Context) ([]*rules.Snapshot, error)
}

// Ingestor runs one ingestion cycle for a city.
type Ingestor interface {
	IngestCity(ctx context.Context, city id.CityCode) (*rules.Snapshot, error)
}

// Claimer hands out short-lived exclusive claims across processes.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Feed forwards recorded events to an external change log.
type Feed interface {
	Publish(ctx context.Context, topic, key string, v any)
}
