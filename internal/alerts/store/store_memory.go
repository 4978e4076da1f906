// Package store persists alerts.
package store

import (
	"context"
	"sort"
	"sync"

	"permitpulse/internal/alerts"
	id "permitpulse/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	alerts []*alerts.Alert
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) CreateBatch(_ context.Context, batch []*alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range batch {
		c := *a
		c.ImpactedListingIDs = append([]string{}, a.ImpactedListingIDs...)
		s.alerts = append(s.alerts, &c)
	}
	return nil
}

// List returns alerts newest first. A nil orgID lists every organization's alerts.
func (s *InMemoryStore) List(_ context.Context, orgID id.OrganizationID, limit int) ([]*alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*alerts.Alert
	for _, a := range s.alerts {
		if !orgID.IsNil() && a.OrganizationID != orgID {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
