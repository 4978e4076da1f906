package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

type SnapshotStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestSnapshotStoreSuite(t *testing.T) {
	suite.Run(t, new(SnapshotStoreSuite))
}

func (s *SnapshotStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func (s *SnapshotStoreSuite) newSnapshot(city id.CityCode, checksum string, clauses ...rules.Clause) *rules.Snapshot {
	return &rules.Snapshot{
		CityCode:        city,
		Checksum:        checksum,
		Status:          rules.SnapshotStatusActive,
		ValidationScore: 0.9,
		SourceURLs:      []string{"https://example.test/" + string(city)},
		Clauses:         clauses,
	}
}

func (s *SnapshotStoreSuite) TestPublish() {
	s.Run("first publish is version 1 and active", func() {
		snap, err := s.store.Publish(s.ctx, s.newSnapshot(id.CityNYC, "a", rules.Clause{ClauseID: "c1"}))
		s.Require().NoError(err)
		s.Equal(1, snap.Version)
		s.True(snap.IsActive)
		s.Equal(1, snap.ParsedPayload.ClauseCount)

		active, err := s.store.Active(s.ctx, id.CityNYC)
		s.Require().NoError(err)
		s.Equal(snap.ID, active.ID)
	})

	s.Run("second publish deactivates the first", func() {
		first, err := s.store.Get(s.ctx, s.mustActive(id.CityNYC).ID)
		s.Require().NoError(err)

		second, err := s.store.Publish(s.ctx, s.newSnapshot(id.CityNYC, "b"))
		s.Require().NoError(err)
		s.Equal(2, second.Version)

		old, err := s.store.Get(s.ctx, first.ID)
		s.Require().NoError(err)
		s.False(old.IsActive)
		s.Equal(second.ID, s.mustActive(id.CityNYC).ID)
	})

	s.Run("versions are per city", func() {
		la, err := s.store.Publish(s.ctx, s.newSnapshot(id.CityLA, "x"))
		s.Require().NoError(err)
		s.Equal(1, la.Version)
	})
}

func (s *SnapshotStoreSuite) TestPublishRejectsRepeatedClauseID() {
	previous, err := s.store.Publish(s.ctx, s.newSnapshot(id.CityNYC, "a", rules.Clause{ClauseID: "c1"}))
	s.Require().NoError(err)

	_, err = s.store.Publish(s.ctx, s.newSnapshot(id.CityNYC, "b",
		rules.Clause{ClauseID: "dup"},
		rules.Clause{ClauseID: "dup"},
	))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	active := s.mustActive(id.CityNYC)
	s.Equal(previous.ID, active.ID)
	s.Equal(1, active.Version)
}

func (s *SnapshotStoreSuite) TestActive() {
	s.Run("missing city returns ErrNotFound", func() {
		_, err := s.store.Active(s.ctx, id.CitySF)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("two active snapshots is an invariant violation", func() {
		first, err := s.store.Publish(s.ctx, s.newSnapshot(id.CitySF, "a"))
		s.Require().NoError(err)
		_, err = s.store.Publish(s.ctx, s.newSnapshot(id.CitySF, "b"))
		s.Require().NoError(err)
		s.store.ForceActive(first.ID, true)

		_, err = s.store.Active(s.ctx, id.CitySF)
		s.ErrorIs(err, sentinel.ErrInvariant)
	})
}

func (s *SnapshotStoreSuite) TestMarkStale() {
	snap, err := s.store.Publish(s.ctx, s.newSnapshot(id.CityNYC, "a"))
	s.Require().NoError(err)

	s.Require().NoError(s.store.MarkStale(s.ctx, snap.ID))

	stale := s.mustActive(id.CityNYC)
	s.Equal(rules.SnapshotStatusStale, stale.Status)
	s.True(stale.IsActive, "stale snapshots stay active until replaced")

	s.ErrorIs(s.store.MarkStale(s.ctx, id.NewSnapshotID()), sentinel.ErrNotFound)
}

func (s *SnapshotStoreSuite) TestListActiveAndClauseCount() {
	_, err := s.store.Publish(s.ctx, s.newSnapshot(id.CitySF, "s", rules.Clause{ClauseID: "a"}, rules.Clause{ClauseID: "b"}))
	s.Require().NoError(err)
	_, err = s.store.Publish(s.ctx, s.newSnapshot(id.CityLA, "l"))
	s.Require().NoError(err)

	active, err := s.store.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(id.CityLA, active[0].CityCode)
	s.Equal(id.CitySF, active[1].CityCode)

	count, err := s.store.ClauseCount(s.ctx, active[1].ID)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *SnapshotStoreSuite) TestReturnedSnapshotsAreCopies() {
	snap, err := s.store.Publish(s.ctx, s.newSnapshot(id.CityNYC, "a", rules.Clause{ClauseID: "c1"}))
	s.Require().NoError(err)
	snap.Clauses[0].ClauseID = "mutated"
	snap.SourceURLs[0] = "mutated"

	again := s.mustActive(id.CityNYC)
	s.Equal("c1", again.Clauses[0].ClauseID)
	s.NotEqual("mutated", again.SourceURLs[0])
}

func (s *SnapshotStoreSuite) mustActive(city id.CityCode) *rules.Snapshot {
	snap, err := s.store.Active(s.ctx, city)
	s.Require().NoError(err)
	return snap
}
