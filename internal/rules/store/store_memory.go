// Package store persists rule snapshots and their clauses.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

// InMemoryStore keeps snapshots in process. Publish holds the write lock for the
// whole deactivate-and-insert sequence, so readers never see two active snapshots.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[id.SnapshotID]*rules.Snapshot
	byCity    map[id.CityCode][]id.SnapshotID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[id.SnapshotID]*rules.Snapshot),
		byCity:    make(map[id.CityCode][]id.SnapshotID),
	}
}

// Active returns the highest-version active snapshot for city.
func (s *InMemoryStore) Active(_ context.Context, city id.CityCode) (*rules.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*rules.Snapshot
	for _, snapID := range s.byCity[city] {
		if snap := s.snapshots[snapID]; snap.IsActive {
			active = append(active, snap)
		}
	}
	switch len(active) {
	case 0:
		return nil, sentinel.ErrNotFound
	case 1:
		return cloneSnapshot(active[0]), nil
	default:
		return nil, fmt.Errorf("city %s has %d active snapshots: %w", city, len(active), sentinel.ErrInvariant)
	}
}

// ListActive returns every active snapshot ordered by city code.
func (s *InMemoryStore) ListActive(_ context.Context) ([]*rules.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*rules.Snapshot
	for _, snap := range s.snapshots {
		if snap.IsActive {
			out = append(out, cloneSnapshot(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CityCode != out[j].CityCode {
			return out[i].CityCode < out[j].CityCode
		}
		return out[i].Version > out[j].Version
	})
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, snapID id.SnapshotID) (*rules.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

// Publish deactivates the city's active snapshot, assigns the next version and
// stores snap as the only active snapshot.
func (s *InMemoryStore) Publish(ctx context.Context, snap *rules.Snapshot) (*rules.Snapshot, error) {
	if err := checkClauseIDs(snap.Clauses); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	maxVersion := 0
	for _, snapID := range s.byCity[snap.CityCode] {
		existing := s.snapshots[snapID]
		if existing.IsActive {
			existing.IsActive = false
			existing.UpdatedAt = now
		}
		if existing.Version > maxVersion {
			maxVersion = existing.Version
		}
	}

	stored := cloneSnapshot(snap)
	if stored.ID.IsNil() {
		stored.ID = id.NewSnapshotID()
	}
	stored.Version = maxVersion + 1
	stored.IsActive = true
	stored.ParsedPayload.ClauseCount = len(stored.Clauses)
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.snapshots[stored.ID] = stored
	s.byCity[stored.CityCode] = append(s.byCity[stored.CityCode], stored.ID)
	return cloneSnapshot(stored), nil
}

// checkClauseIDs rejects a snapshot that repeats a clause id, matching the
// (snapshot_id, clause_id) primary key in Postgres.
func checkClauseIDs(clauses []rules.Clause) error {
	seen := make(map[string]struct{}, len(clauses))
	for _, c := range clauses {
		if _, dup := seen[c.ClauseID]; dup {
			return fmt.Errorf("clause id %q repeated in snapshot: %w", c.ClauseID, sentinel.ErrConflict)
		}
		seen[c.ClauseID] = struct{}{}
	}
	return nil
}

// MarkStale flags a snapshot as no longer trusted without deactivating it.
func (s *InMemoryStore) MarkStale(ctx context.Context, snapID id.SnapshotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[snapID]
	if !ok {
		return sentinel.ErrNotFound
	}
	snap.Status = rules.SnapshotStatusStale
	snap.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) ClauseCount(_ context.Context, snapID id.SnapshotID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return len(snap.Clauses), nil
}

// ForceActive flips the active flag directly. It exists so tests can construct
// states Publish never produces.
func (s *InMemoryStore) ForceActive(snapID id.SnapshotID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snapshots[snapID]; ok {
		snap.IsActive = active
	}
}

func cloneSnapshot(in *rules.Snapshot) *rules.Snapshot {
	out := *in
	out.SourceURLs = append([]string(nil), in.SourceURLs...)
	out.ParsedPayload.ParserTraces = append([]string(nil), in.ParsedPayload.ParserTraces...)
	out.Clauses = append([]rules.Clause(nil), in.Clauses...)
	return &out
}
