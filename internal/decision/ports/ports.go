// Package ports declares what the decision service needs from other contexts.
package ports

import (
	"context"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// SnapshotReader reads the active ruleset for a city.
type SnapshotReader interface {
	// Active returns sentinel.ErrNotFound when the city has no active snapshot.
	Active(ctx context.Context, city id.CityCode) (*rules.Snapshot, error)
	Get(ctx context.Context, snapID id.SnapshotID) (*rules.Snapshot, error)
}

// EventRecorder appends decision_loop events.
type EventRecorder interface {
	Record(ctx context.Context, event *autonomy.Event) error
}
