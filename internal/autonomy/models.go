// Package autonomy records control-loop outcomes and drives self-healing: SLO
// computation, rollback of degraded events, scheduled ingestion and maintenance.
package autonomy

import (
	"time"

	id "permitpulse/pkg/domain"
)

// EventType names the control loop that produced an event.
type EventType string

const (
	EventTypeData     EventType = "data_loop"
	EventTypeDecision EventType = "decision_loop"
	EventTypeOps      EventType = "ops_loop"
)

// Outcome is the health reported by a loop step.
type Outcome string

const (
	OutcomeHealthy  Outcome = "healthy"
	OutcomeDegraded Outcome = "degraded"
	OutcomeStable   Outcome = "stable"
)

// Triggers and actions written by the loops.
const (
	TriggerAddressChecks    = "api:address_checks"
	TriggerDailyMaintenance = "api:daily_maintenance"
	TriggerDailyIngestion   = "schedule:daily_city_ingestion"

	ActionEvaluateAddress  = "evaluate_address"
	ActionSkipSameChecksum = "skip_publish_same_checksum"
	ActionHoldPrevious     = "hold_previous_snapshot"
	ActionPublishSnapshot  = "publish_new_snapshot"
	ActionFallbackPrevious = "fallback_to_previous_snapshot"
	ActionIngestAllCities  = "ingest_all_cities"
	ActionAutoRollback     = "auto_rollback"
	ActionDailyMaintenance = "daily_maintenance_cycle"
)

// IngestTrigger is the trigger recorded for a city's ingestion cycle.
func IngestTrigger(city id.CityCode) string {
	return "ingest:" + city.String()
}

// Event is an append-only record of one control-loop step.
type Event struct {
	ID          id.EventID     `json:"id"`
	EventType   EventType      `json:"event_type"`
	Trigger     string         `json:"trigger"`
	ActionTaken string         `json:"action_taken"`
	Outcome     Outcome        `json:"outcome"`
	Details     map[string]any `json:"details"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CityCode returns details.city_code, or NYC when absent.
func (e *Event) CityCode() id.CityCode {
	if raw, ok := e.Details["city_code"].(string); ok && raw != "" {
		return id.CityCode(raw)
	}
	return id.CityNYC
}

// RollbackEvent records an automatic recovery for one degraded event. TriggerKey
// is unique, so each degraded event is handled at most once.
type RollbackEvent struct {
	ID              id.RollbackID  `json:"id"`
	TriggerKey      string         `json:"trigger_key"`
	FailedRelease   string         `json:"failed_release"`
	FallbackRelease string         `json:"fallback_release"`
	Reason          string         `json:"reason"`
	Metadata        map[string]any `json:"metadata"`
	RecoveredAt     time.Time      `json:"recovered_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

// RollbackKey is the dedup key for a degraded event.
func RollbackKey(eventID id.EventID) string {
	return "event:" + eventID.String()
}

// FallbackRelease names the snapshot a rollback falls back to.
func FallbackRelease(snapID *id.SnapshotID) string {
	if snapID == nil || snapID.IsNil() {
		return "snapshot:none"
	}
	return "snapshot:" + snapID.String()
}

// SLOStatus is healthy when a metric meets its target.
type SLOStatus string

const (
	SLOStatusHealthy  SLOStatus = "healthy"
	SLOStatusBreached SLOStatus = "breached"
)

const (
	MetricAPIAvailability  = "api_availability"
	MetricAutoRecoveryRate = "auto_recovery_rate"
)

// SLOMetric is one computed SLO value over a window. History is retained.
type SLOMetric struct {
	ID          id.MetricID `json:"id"`
	MetricName  string      `json:"metric_name"`
	MetricValue float64     `json:"metric_value"`
	TargetValue float64     `json:"target_value"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
	Status      SLOStatus   `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// EventFilter selects events for counting and listing. Zero fields match anything.
type EventFilter struct {
	EventType   EventType
	Outcome     Outcome
	ActionTaken string
	Since       time.Time
}

// Matches reports whether e satisfies the filter.
func (f EventFilter) Matches(e *Event) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.ActionTaken != "" && e.ActionTaken != f.ActionTaken {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// RecoveryResult summarizes one recovery cycle.
type RecoveryResult struct {
	ActionsExecuted int `json:"actions_executed"`
	CheckedEvents   int `json:"checked_events"`
}

// CitySnapshotStatus is the status view of a city's active snapshot.
type CitySnapshotStatus struct {
	SnapshotID      id.SnapshotID `json:"snapshot_id"`
	Version         int           `json:"version"`
	Status          string        `json:"status"`
	ValidationScore float64       `json:"validation_score"`
	PublishedAt     time.Time     `json:"published_at"`
}

// Status is the read-only operator view of the autonomy system.
type Status struct {
	CitySnapshots   map[id.CityCode]CitySnapshotStatus `json:"city_snapshots"`
	RecentEvents    []*Event                           `json:"recent_autonomy_events"`
	RecentRollbacks []*RollbackEvent                   `json:"recent_rollbacks"`
	StaleCities     []id.CityCode                      `json:"stale_cities"`
}

// CityResult is the per-city outcome of an ingestion sweep.
type CityResult struct {
	CityCode   id.CityCode    `json:"city_code"`
	SnapshotID *id.SnapshotID `json:"snapshot_id"`
	Status     string         `json:"status"`
}

// StatusMissing marks a city for which no snapshot exists after ingestion.
const StatusMissing = "missing"

// MaintenanceSummary is the result of a daily maintenance cycle.
type MaintenanceSummary struct {
	StartedAt          time.Time    `json:"started_at"`
	FinishedAt         time.Time    `json:"finished_at"`
	CitiesProcessed    []CityResult `json:"cities_processed"`
	SnapshotsPublished int          `json:"snapshots_published"`
	SLOMetricsCount    int          `json:"slo_metrics_count"`
	RecoveryActions    int          `json:"recovery_actions"`
	Status             Outcome      `json:"status"`
}

// IngestionSweep is the result of ingesting every configured city.
type IngestionSweep struct {
	Results []CityResult `json:"results"`
}

// OpsCycle is the result of one SLO evaluation plus recovery pass.
type OpsCycle struct {
	Metrics  []*SLOMetric   `json:"metrics"`
	Recovery RecoveryResult `json:"recovery"`
}
