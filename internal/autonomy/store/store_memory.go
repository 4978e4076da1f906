// Package store persists autonomy events, rollback records and SLO history.
package store

import (
	"context"
	"sort"
	"sync"

	"permitpulse/internal/autonomy"
)

// InMemoryStore keeps the autonomy log in process.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []*autonomy.Event
	rollbacks []*autonomy.RollbackEvent
	byKey     map[string]*autonomy.RollbackEvent
	metrics   []*autonomy.SLOMetric
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byKey: make(map[string]*autonomy.RollbackEvent)}
}

func (s *InMemoryStore) AppendEvent(_ context.Context, event *autonomy.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(event))
	return nil
}

func (s *InMemoryStore) CountEvents(_ context.Context, filter autonomy.EventFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events {
		if filter.Matches(e) {
			n++
		}
	}
	return n, nil
}

// ListEvents returns matching events newest first. limit <= 0 means no limit.
func (s *InMemoryStore) ListEvents(_ context.Context, filter autonomy.EventFilter, limit int) ([]*autonomy.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*autonomy.Event
	for _, e := range s.events {
		if filter.Matches(e) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) RollbackExists(_ context.Context, triggerKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[triggerKey]
	return ok, nil
}

// InsertRollbackIfAbsent stores rb unless its trigger key was already recorded.
func (s *InMemoryStore) InsertRollbackIfAbsent(_ context.Context, rb *autonomy.RollbackEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[rb.TriggerKey]; ok {
		return false, nil
	}
	stored := cloneRollback(rb)
	s.byKey[rb.TriggerKey] = stored
	s.rollbacks = append(s.rollbacks, stored)
	return true, nil
}

func (s *InMemoryStore) RecentRollbacks(_ context.Context, limit int) ([]*autonomy.RollbackEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*autonomy.RollbackEvent, 0, len(s.rollbacks))
	for _, rb := range s.rollbacks {
		out = append(out, cloneRollback(rb))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendSLOMetric(_ context.Context, metric *autonomy.SLOMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *metric
	s.metrics = append(s.metrics, &m)
	return nil
}

// LatestSLOMetrics returns the newest metric per name, ordered by name.
func (s *InMemoryStore) LatestSLOMetrics(_ context.Context) ([]*autonomy.SLOMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]*autonomy.SLOMetric)
	for _, m := range s.metrics {
		cur, ok := latest[m.MetricName]
		if !ok || m.WindowEnd.After(cur.WindowEnd) || (m.WindowEnd.Equal(cur.WindowEnd) && m.CreatedAt.After(cur.CreatedAt)) {
			latest[m.MetricName] = m
		}
	}
	out := make([]*autonomy.SLOMetric, 0, len(latest))
	for _, m := range latest {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricName < out[j].MetricName })
	return out, nil
}

func cloneEvent(e *autonomy.Event) *autonomy.Event {
	out := *e
	out.Details = cloneMap(e.Details)
	return &out
}

func cloneRollback(rb *autonomy.RollbackEvent) *autonomy.RollbackEvent {
	out := *rb
	out.Metadata = cloneMap(rb.Metadata)
	return &out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
