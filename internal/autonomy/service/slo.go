package service

import (
	"context"
	"math"

	"permitpulse/internal/autonomy"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/requestcontext"
)

// RecordSLOMetrics computes availability and auto-recovery over the trailing
// window and appends both as new history rows.
func (s *Service) RecordSLOMetrics(ctx context.Context) ([]*autonomy.SLOMetric, error) {
	now := requestcontext.Now(ctx)
	windowStart := now.Add(-s.targets.Window)

	count := func(filter autonomy.EventFilter) (int, error) {
		filter.Since = windowStart
		return s.store.CountEvents(ctx, filter)
	}

	checks, err := count(autonomy.EventFilter{EventType: autonomy.EventTypeDecision})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count decision events")
	}
	failed, err := count(autonomy.EventFilter{EventType: autonomy.EventTypeDecision, Outcome: autonomy.OutcomeDegraded})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count degraded decision events")
	}
	recoveries, err := count(autonomy.EventFilter{EventType: autonomy.EventTypeOps, ActionTaken: autonomy.ActionAutoRollback})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count rollback events")
	}
	incidents, err := count(autonomy.EventFilter{EventType: autonomy.EventTypeOps, Outcome: autonomy.OutcomeDegraded})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count ops incidents")
	}

	values := []struct {
		name   string
		value  float64
		target float64
	}{
		{autonomy.MetricAPIAvailability, Availability(checks, failed), s.targets.Availability},
		{autonomy.MetricAutoRecoveryRate, RecoveryRate(recoveries, incidents), s.targets.AutoRecovery},
	}

	out := make([]*autonomy.SLOMetric, 0, len(values))
	for _, v := range values {
		metric := &autonomy.SLOMetric{
			ID:          id.NewMetricID(),
			MetricName:  v.name,
			MetricValue: v.value,
			TargetValue: v.target,
			WindowStart: windowStart,
			WindowEnd:   now,
			Status:      autonomy.SLOStatusHealthy,
			CreatedAt:   now,
		}
		if v.value < v.target {
			metric.Status = autonomy.SLOStatusBreached
		}
		if err := s.store.AppendSLOMetric(ctx, metric); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store SLO metric")
		}
		s.metrics.SetSLOValue(v.name, v.value)
		if metric.Status == autonomy.SLOStatusBreached {
			s.logger.WarnContext(ctx, "slo breached", "metric", v.name, "value", v.value, "target", v.target)
		}
		out = append(out, metric)
	}
	return out, nil
}

// Availability is the percentage of decision events that were not degraded.
func Availability(total, degraded int) float64 {
	if total < 1 {
		total = 1
	}
	return round3(float64(total-degraded) / float64(total) * 100)
}

// RecoveryRate is rollbacks per ops incident as a percentage, or 100 when there
// were no incidents.
func RecoveryRate(recoveries, incidents int) float64 {
	if incidents == 0 {
		return 100
	}
	return round3(float64(recoveries) / float64(incidents) * 100)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
