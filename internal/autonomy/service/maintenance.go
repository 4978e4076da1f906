package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/requestcontext"
)

// IngestCity runs one ingestion cycle and reports it as a city result.
func (s *Service) IngestCity(ctx context.Context, city id.CityCode) (autonomy.CityResult, error) {
	if s.ingestor == nil {
		return autonomy.CityResult{}, dErrors.New(dErrors.CodeInternal, "ingestion is not configured")
	}
	snap, err := s.ingestor.IngestCity(ctx, city)
	if err != nil {
		return autonomy.CityResult{CityCode: city, Status: autonomy.StatusMissing}, err
	}
	return cityResult(city, snap), nil
}

// IngestAll ingests every configured city and records the sweep as a
// data_loop event. Results keep configured city order.
func (s *Service) IngestAll(ctx context.Context) (*autonomy.IngestionSweep, error) {
	results, err := s.ingestCities(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Record(ctx, &autonomy.Event{
		EventType:   autonomy.EventTypeData,
		Trigger:     autonomy.TriggerDailyIngestion,
		ActionTaken: autonomy.ActionIngestAllCities,
		Outcome:     autonomy.OutcomeHealthy,
		Details:     map[string]any{"results": resultDetails(results)},
	}); err != nil {
		return nil, err
	}
	return &autonomy.IngestionSweep{Results: results}, nil
}

// DailyMaintenance ingests every city, records SLOs, runs recovery and appends
// an ops_loop event carrying the summary.
func (s *Service) DailyMaintenance(ctx context.Context) (*autonomy.MaintenanceSummary, error) {
	started := time.Now()
	summary := &autonomy.MaintenanceSummary{StartedAt: requestcontext.Now(ctx)}

	results, err := s.ingestCities(ctx)
	if err != nil {
		return nil, err
	}
	summary.CitiesProcessed = results
	for _, r := range results {
		if r.Status == string(rules.SnapshotStatusActive) {
			summary.SnapshotsPublished++
		}
	}

	slos, err := s.RecordSLOMetrics(ctx)
	if err != nil {
		return nil, err
	}
	summary.SLOMetricsCount = len(slos)

	recovery, err := s.RunRecovery(ctx)
	if err != nil {
		return nil, err
	}
	summary.RecoveryActions = recovery.ActionsExecuted

	summary.Status = MaintenanceStatus(results)
	summary.FinishedAt = summary.StartedAt.Add(time.Since(started))

	if err := s.Record(ctx, &autonomy.Event{
		EventType:   autonomy.EventTypeOps,
		Trigger:     autonomy.TriggerDailyMaintenance,
		ActionTaken: autonomy.ActionDailyMaintenance,
		Outcome:     summary.Status,
		Details:     summaryDetails(summary),
	}); err != nil {
		return nil, err
	}
	s.metrics.ObserveMaintenance(string(summary.Status), time.Since(started))
	s.logger.InfoContext(ctx, "daily maintenance finished",
		"status", summary.Status,
		"snapshots_published", summary.SnapshotsPublished,
		"recovery_actions", summary.RecoveryActions,
	)
	return summary, nil
}

// MaintenanceStatus is degraded when any city ended FAILED, STALE or missing.
func MaintenanceStatus(results []autonomy.CityResult) autonomy.Outcome {
	for _, r := range results {
		switch r.Status {
		case string(rules.SnapshotStatusFailed), string(rules.SnapshotStatusStale), autonomy.StatusMissing:
			return autonomy.OutcomeDegraded
		}
	}
	return autonomy.OutcomeHealthy
}

func (s *Service) ingestCities(ctx context.Context) ([]autonomy.CityResult, error) {
	if s.ingestor == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "ingestion is not configured")
	}
	results := make([]autonomy.CityResult, len(s.cities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, city := range s.cities {
		g.Go(func() error {
			result, err := s.IngestCity(gctx, city)
			if err != nil {
				s.logger.ErrorContext(gctx, "city ingestion failed", "city_code", city, "error", err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func cityResult(city id.CityCode, snap *rules.Snapshot) autonomy.CityResult {
	if snap == nil {
		return autonomy.CityResult{CityCode: city, Status: autonomy.StatusMissing}
	}
	snapID := snap.ID
	return autonomy.CityResult{CityCode: city, SnapshotID: &snapID, Status: string(snap.Status)}
}

func resultDetails(results []autonomy.CityResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		var snapID any
		if r.SnapshotID != nil {
			snapID = r.SnapshotID.String()
		}
		out = append(out, map[string]any{
			"city_code":   r.CityCode.String(),
			"snapshot_id": snapID,
			"status":      r.Status,
		})
	}
	return out
}

func summaryDetails(summary *autonomy.MaintenanceSummary) map[string]any {
	return map[string]any{
		"started_at":          summary.StartedAt.Format(time.RFC3339Nano),
		"finished_at":         summary.FinishedAt.Format(time.RFC3339Nano),
		"cities_processed":    resultDetails(summary.CitiesProcessed),
		"snapshots_published": summary.SnapshotsPublished,
		"slo_metrics_count":   summary.SLOMetricsCount,
		"recovery_actions":    summary.RecoveryActions,
		"status":              string(summary.Status),
	}
}
