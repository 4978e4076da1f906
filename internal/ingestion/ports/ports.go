// Package ports declares the collaborators the ingestion loop depends on, so the
// service can be driven by HTTP fetchers and Postgres in production and by mocks in tests.
package ports

import (
	"context"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Fetcher retrieves the current source document for a city.
type Fetcher interface {
	Fetch(ctx context.Context, city id.CityCode) (*rules.RawDocument, error)
}

// Extractor turns a fetched document into a scored draft. It never fails; a
// broken model pass degrades to the heuristic clauses.
type Extractor interface {
	Extract(ctx context.Context, doc rules.RawDocument) *rules.Draft
}

// Archive keeps raw source documents keyed by content checksum.
type Archive interface {
	Put(ctx context.Context, checksum string, doc *rules.RawDocument) error
}

// SnapshotStore is the versioned ruleset store.
type SnapshotStore interface {
	Active(ctx context.Context, city id.CityCode) (*rules.Snapshot, error)
	Publish(ctx context.Context, snap *rules.Snapshot) (*rules.Snapshot, error)
	MarkStale(ctx context.Context, snapID id.SnapshotID) error
	ClauseCount(ctx context.Context, snapID id.SnapshotID) (int, error)
}

// EventRecorder appends control-loop events.
type EventRecorder interface {
	Record(ctx context.Context, event *autonomy.Event) error
}

// AlertBroadcaster notifies every organization of a new ruleset version.
type AlertBroadcaster interface {
	BroadcastRuleUpdate(ctx context.Context, city id.CityCode, version int) (int, error)
}
