package service

import (
	"context"
	"errors"
	"fmt"

	"permitpulse/internal/autonomy"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

// RunRecovery rolls back every degraded event from the lookback window that has
// no rollback yet, newest first. Each degraded event is handled at most once.
func (s *Service) RunRecovery(ctx context.Context) (autonomy.RecoveryResult, error) {
	now := requestcontext.Now(ctx)
	degraded, err := s.store.ListEvents(ctx, autonomy.EventFilter{
		Outcome: autonomy.OutcomeDegraded,
		Since:   now.Add(-s.targets.RecoveryLookback),
	}, 0)
	if err != nil {
		return autonomy.RecoveryResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list degraded events")
	}

	result := autonomy.RecoveryResult{CheckedEvents: len(degraded)}
	for _, event := range degraded {
		handled, err := s.recover(ctx, event)
		if err != nil {
			return result, err
		}
		if handled {
			result.ActionsExecuted++
		}
	}
	s.metrics.IncrementRollbacks(result.ActionsExecuted)
	if result.ActionsExecuted > 0 {
		s.logger.InfoContext(ctx, "recovery cycle executed rollbacks",
			"actions_executed", result.ActionsExecuted,
			"checked_events", result.CheckedEvents,
		)
	}
	return result, nil
}

// recover reports whether a rollback was recorded for event by this call.
func (s *Service) recover(ctx context.Context, event *autonomy.Event) (bool, error) {
	key := autonomy.RollbackKey(event.ID)
	exists, err := s.store.RollbackExists(ctx, key)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rollback")
	}
	if exists {
		return false, nil
	}

	if s.claimer != nil {
		claimed, err := s.claimer.Claim(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "rollback claim unavailable, relying on unique trigger key",
				"trigger_key", key, "error", err)
		case !claimed:
			return false, nil
		}
	}

	inserted, err := s.rollback(ctx, event, key)
	if err != nil || !inserted {
		s.release(ctx, key)
	}
	return inserted, err
}

func (s *Service) rollback(ctx context.Context, event *autonomy.Event, key string) (bool, error) {
	city := event.CityCode()
	var fallback *id.SnapshotID
	active, err := s.snapshots.Active(ctx, city)
	switch {
	case err == nil:
		fallback = &active.ID
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		s.logger.WarnContext(ctx, "fallback snapshot lookup failed", "city_code", city, "error", err)
	}

	now := requestcontext.Now(ctx)
	rb := &autonomy.RollbackEvent{
		ID:              id.NewRollbackID(),
		TriggerKey:      key,
		FailedRelease:   event.Trigger,
		FallbackRelease: autonomy.FallbackRelease(fallback),
		Reason:          fmt.Sprintf("Auto rollback due to degraded event %s", event.ID),
		Metadata:        map[string]any{"trigger_key": key, "event_type": string(event.EventType)},
		RecoveredAt:     now,
		CreatedAt:       now,
	}
	inserted, err := s.store.InsertRollbackIfAbsent(ctx, rb)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rollback")
	}
	if !inserted {
		return false, nil
	}

	if err := s.Record(ctx, &autonomy.Event{
		EventType:   autonomy.EventTypeOps,
		Trigger:     event.Trigger,
		ActionTaken: autonomy.ActionAutoRollback,
		Outcome:     autonomy.OutcomeHealthy,
		Details:     map[string]any{"trigger_event_id": event.ID.String()},
	}); err != nil {
		return true, err
	}
	s.logger.InfoContext(ctx, "auto rollback recorded",
		"trigger_key", key,
		"failed_release", rb.FailedRelease,
		"fallback_release", rb.FallbackRelease,
	)
	return true, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if s.claimer == nil {
		return
	}
	if err := s.claimer.Release(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "rollback claim release failed", "trigger_key", key, "error", err)
	}
}
