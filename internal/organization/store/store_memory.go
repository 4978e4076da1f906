// Package store persists organizations.
package store

import (
	"context"
	"sort"
	"sync"

	"permitpulse/internal/organization"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
)

// InMemoryStore keeps organizations in process.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.OrganizationID]*organization.Organization
	bySlug map[string]id.OrganizationID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.OrganizationID]*organization.Organization),
		bySlug: make(map[string]id.OrganizationID),
	}
}

// Create stores org, returning ErrConflict when the slug is taken.
func (s *InMemoryStore) Create(_ context.Context, org *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySlug[org.Slug]; taken {
		return sentinel.ErrConflict
	}
	stored := *org
	s.byID[org.ID] = &stored
	s.bySlug[org.Slug] = org.ID
	return nil
}

func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.bySlug[slug]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	org := *s.byID[orgID]
	return &org, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.byID[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *org
	return &out, nil
}

// List returns every organization ordered by slug.
func (s *InMemoryStore) List(_ context.Context) ([]*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*organization.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		o := *org
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
