// Package store persists address checks and their decision traces.
package store

import (
	"context"
	"sync"
	"time"

	"permitpulse/internal/decision"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	checks map[id.CheckID]*decision.AddressCheck
	traces map[id.CheckID]*decision.DecisionTrace
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		checks: make(map[id.CheckID]*decision.AddressCheck),
		traces: make(map[id.CheckID]*decision.DecisionTrace),
	}
}

func (s *InMemoryStore) Save(_ context.Context, check *decision.AddressCheck, trace *decision.DecisionTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checks[check.ID]; exists {
		return sentinel.ErrConflict
	}
	s.checks[check.ID] = cloneCheck(check)
	t := *trace
	t.RuleIDs = append([]string{}, trace.RuleIDs...)
	s.traces[check.ID] = &t
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, checkID id.CheckID) (*decision.AddressCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	check, ok := s.checks[checkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCheck(check), nil
}

func (s *InMemoryStore) Trace(_ context.Context, checkID id.CheckID) (*decision.DecisionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[checkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *t
	out.RuleIDs = append([]string{}, t.RuleIDs...)
	return &out, nil
}

func (s *InMemoryStore) CountSince(_ context.Context, orgID id.OrganizationID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.checks {
		if c.OrganizationID != nil && *c.OrganizationID == orgID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func cloneCheck(in *decision.AddressCheck) *decision.AddressCheck {
	out := *in
	out.BlockerFlags = append([]string{}, in.BlockerFlags...)
	out.RequiredActions = append([]string{}, in.RequiredActions...)
	out.Evidence = append([]decision.Evidence{}, in.Evidence...)
	out.Provenance.SourceURLs = append([]string{}, in.Provenance.SourceURLs...)
	return &out
}
