package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/ingestion/ports/mocks"
	"permitpulse/internal/rules"
	"permitpulse/internal/rules/extractor"
	"permitpulse/internal/rules/store"
	"permitpulse/internal/rules/validation"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

var fixedNow = time.Date(2026, 5, 17, 9, 30, 0, 0, time.UTC)

type IngestionServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	fetcher   *mocks.MockFetcher
	extractor *mocks.MockExtractor
	snapshots *mocks.MockSnapshotStore
	events    *mocks.MockEventRecorder
	alerts    *mocks.MockAlertBroadcaster
	archive   *mocks.MockArchive
	service   *Service
	ctx       context.Context
}

func TestIngestionServiceSuite(t *testing.T) {
	suite.Run(t, new(IngestionServiceSuite))
}

func (s *IngestionServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.extractor = mocks.NewMockExtractor(s.ctrl)
	s.snapshots = mocks.NewMockSnapshotStore(s.ctrl)
	s.events = mocks.NewMockEventRecorder(s.ctrl)
	s.alerts = mocks.NewMockAlertBroadcaster(s.ctrl)
	s.archive = mocks.NewMockArchive(s.ctrl)

	svc, err := NewService(s.fetcher, s.extractor, validation.New(validation.DefaultConfig()), s.snapshots, s.events,
		WithAlerts(s.alerts),
		WithArchive(s.archive),
	)
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
}

func (s *IngestionServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *IngestionServiceSuite) doc() *rules.RawDocument {
	return &rules.RawDocument{CityCode: id.CityNYC, SourceURL: "https://nyc.test", Content: "register"}
}

func draft(checksum string, confidences ...float64) *rules.Draft {
	d := &rules.Draft{CityCode: id.CityNYC, Checksum: checksum, SourceURLs: []string{"https://nyc.test"}, ParserTraces: []string{"rule_based"}}
	sum := 0.0
	for i, c := range confidences {
		d.Clauses = append(d.Clauses, rules.ClauseDraft{
			ClauseID:        "clause-" + string(rune('a'+i)),
			Category:        "requirement",
			RequirementText: "text",
			Confidence:      rules.Float(c),
		})
		sum += c
	}
	if len(confidences) > 0 {
		d.ValidationScore = sum / float64(len(confidences))
	}
	return d
}

func previousSnapshot(checksum string) *rules.Snapshot {
	return &rules.Snapshot{
		ID:       id.NewSnapshotID(),
		CityCode: id.CityNYC,
		Version:  3,
		Checksum: checksum,
		Status:   rules.SnapshotStatusActive,
		IsActive: true,
	}
}

func (s *IngestionServiceSuite) expectEvent(action string, outcome autonomy.Outcome, check func(*autonomy.Event)) {
	s.events.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *autonomy.Event) error {
		s.Equal(autonomy.EventTypeData, e.EventType)
		s.Equal("ingest:NYC", e.Trigger)
		s.Equal(action, e.ActionTaken)
		s.Equal(outcome, e.Outcome)
		if check != nil {
			check(e)
		}
		return nil
	})
}

func (s *IngestionServiceSuite) TestFirstValidIngestionPublishes() {
	d := draft("sum-1", 0.85, 0.82)
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrNotFound)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(s.doc(), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), *s.doc()).Return(d)
	s.archive.EXPECT().Put(gomock.Any(), "sum-1", gomock.Any()).Return(nil)
	s.snapshots.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, snap *rules.Snapshot) (*rules.Snapshot, error) {
		s.Equal(rules.SnapshotStatusActive, snap.Status)
		s.Equal("sum-1", snap.Checksum)
		s.Len(snap.Clauses, 2)
		s.Equal(time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC), snap.EffectiveDate)
		s.Equal(fixedNow, snap.PublishedAt)
		out := *snap
		out.ID = id.NewSnapshotID()
		out.Version = 1
		out.IsActive = true
		return &out, nil
	})
	s.alerts.EXPECT().BroadcastRuleUpdate(gomock.Any(), id.CityNYC, 1).Return(2, nil)
	s.expectEvent(autonomy.ActionPublishSnapshot, autonomy.OutcomeHealthy, func(e *autonomy.Event) {
		s.Equal(1, e.Details["version"])
		s.InDelta(0.835, e.Details["score"].(float64), 1e-9)
	})

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Equal(1, snap.Version)
}

func (s *IngestionServiceSuite) TestSameChecksumSkipsPublication() {
	prev := previousSnapshot("sum-1")
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(prev, nil)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(s.doc(), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(draft("sum-1", 0.85))
	s.archive.EXPECT().Put(gomock.Any(), "sum-1", gomock.Any()).Return(nil)
	s.snapshots.EXPECT().ClauseCount(gomock.Any(), prev.ID).Return(1, nil)
	s.expectEvent(autonomy.ActionSkipSameChecksum, autonomy.OutcomeStable, func(e *autonomy.Event) {
		s.Equal("sum-1", e.Details["checksum"])
	})

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Equal(prev.ID, snap.ID)
}

func (s *IngestionServiceSuite) TestInvalidDraftHoldsPrevious() {
	prev := previousSnapshot("sum-1")
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(prev, nil)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(s.doc(), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(draft("sum-2", 0.3))
	s.archive.EXPECT().Put(gomock.Any(), "sum-2", gomock.Any()).Return(nil)
	s.snapshots.EXPECT().ClauseCount(gomock.Any(), prev.ID).Return(1, nil)
	s.snapshots.EXPECT().MarkStale(gomock.Any(), prev.ID).Return(nil)
	s.expectEvent(autonomy.ActionHoldPrevious, autonomy.OutcomeDegraded, func(e *autonomy.Event) {
		s.Equal([]string{"low_validation_score"}, e.Details["reasons"])
	})

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Equal(prev.ID, snap.ID)
	s.Equal(rules.SnapshotStatusStale, snap.Status)
}

func (s *IngestionServiceSuite) TestInvalidDraftWithoutPreviousReturnsNil() {
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrNotFound)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(s.doc(), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(draft("sum-2"))
	s.archive.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.expectEvent(autonomy.ActionHoldPrevious, autonomy.OutcomeDegraded, func(e *autonomy.Event) {
		s.Equal([]string{"no_clauses", "low_validation_score"}, e.Details["reasons"])
	})

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Nil(snap)
}

func (s *IngestionServiceSuite) TestFetchFailureFallsBack() {
	prev := previousSnapshot("sum-1")
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(prev, nil)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(nil, errors.New("connection reset"))
	s.snapshots.EXPECT().MarkStale(gomock.Any(), prev.ID).Return(nil)
	s.expectEvent(autonomy.ActionFallbackPrevious, autonomy.OutcomeDegraded, func(e *autonomy.Event) {
		s.Contains(e.Details["error"], "connection reset")
		s.Equal("NYC", e.Details["city_code"])
	})

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Equal(prev.ID, snap.ID)
	s.Equal(rules.SnapshotStatusStale, snap.Status)
}

func (s *IngestionServiceSuite) TestPublishFailureFallsBack() {
	prev := previousSnapshot("sum-1")
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(prev, nil)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(s.doc(), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(draft("sum-2", 0.8))
	s.archive.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("bucket missing"))
	s.snapshots.EXPECT().ClauseCount(gomock.Any(), prev.ID).Return(1, nil)
	s.snapshots.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil, errors.New("tx aborted"))
	s.snapshots.EXPECT().MarkStale(gomock.Any(), prev.ID).Return(nil)
	s.expectEvent(autonomy.ActionFallbackPrevious, autonomy.OutcomeDegraded, nil)

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Equal(prev.ID, snap.ID)
}

func (s *IngestionServiceSuite) TestBroadcastFailureKeepsPublication() {
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrNotFound)
	s.fetcher.EXPECT().Fetch(gomock.Any(), id.CityNYC).Return(s.doc(), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(draft("sum-1", 0.9))
	s.archive.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.snapshots.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, snap *rules.Snapshot) (*rules.Snapshot, error) {
		out := *snap
		out.Version = 1
		return &out, nil
	})
	s.alerts.EXPECT().BroadcastRuleUpdate(gomock.Any(), id.CityNYC, 1).Return(0, errors.New("db down"))
	s.expectEvent(autonomy.ActionPublishSnapshot, autonomy.OutcomeHealthy, nil)

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().NoError(err)
	s.Equal(1, snap.Version)
}

func (s *IngestionServiceSuite) TestInvariantViolationIsReturned() {
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrInvariant)
	s.expectEvent(autonomy.ActionFallbackPrevious, autonomy.OutcomeDegraded, nil)

	snap, err := s.service.IngestCity(s.ctx, id.CityNYC)
	s.Require().Error(err)
	s.Nil(snap)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	require.Error(t, err)
}

// The tests below run the real extractor, gate and in-memory store.

type pageFetcher struct {
	mu    sync.Mutex
	pages map[id.CityCode]string
	err   error
	calls int
}

func (f *pageFetcher) set(city id.CityCode, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[city] = content
}

func (f *pageFetcher) Fetch(_ context.Context, city id.CityCode) (*rules.RawDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rules.RawDocument{CityCode: city, SourceURL: "https://" + city.String() + ".test", Content: f.pages[city]}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*autonomy.Event
}

func (l *eventLog) Record(_ context.Context, e *autonomy.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.ActionTaken)
	}
	return out
}

func newFlow(t *testing.T) (*Service, *pageFetcher, *store.InMemoryStore, *eventLog) {
	t.Helper()
	fetcher := &pageFetcher{pages: map[id.CityCode]string{}}
	snapshots := store.NewInMemory()
	events := &eventLog{}
	svc, err := NewService(fetcher, extractor.New(), validation.New(validation.DefaultConfig()), snapshots, events)
	require.NoError(t, err)
	return svc, fetcher, snapshots, events
}

func TestIngestCity_Flow(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), fixedNow)

	t.Run("publish then skip identical content", func(t *testing.T) {
		svc, fetcher, snapshots, events := newFlow(t)
		fetcher.set(id.CityNYC, "<p>Hosts must register. Primary residence only.</p>")

		first, err := svc.IngestCity(ctx, id.CityNYC)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Version)
		assert.InDelta(t, 0.835, first.ValidationScore, 1e-9)

		second, err := svc.IngestCity(ctx, id.CityNYC)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		active, err := snapshots.Active(ctx, id.CityNYC)
		require.NoError(t, err)
		assert.Equal(t, 1, active.Version)
		assert.Equal(t, []string{autonomy.ActionPublishSnapshot, autonomy.ActionSkipSameChecksum}, events.actions())
	})

	t.Run("changed content publishes next version", func(t *testing.T) {
		svc, fetcher, _, _ := newFlow(t)
		fetcher.set(id.CityLA, "<p>register</p>")
		_, err := svc.IngestCity(ctx, id.CityLA)
		require.NoError(t, err)

		fetcher.set(id.CityLA, "<p>register and pay tax</p>")
		snap, err := svc.IngestCity(ctx, id.CityLA)
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Version)
	})

	t.Run("unmatched page publishes the manual review fallback", func(t *testing.T) {
		svc, fetcher, _, _ := newFlow(t)
		fetcher.set(id.CitySF, "<p>Nothing relevant here.</p>")

		snap, err := svc.IngestCity(ctx, id.CitySF)
		require.NoError(t, err)
		require.Len(t, snap.Clauses, 1)
		assert.Equal(t, "fallback-manual-review-block", snap.Clauses[0].ClauseID)
		assert.InDelta(t, 0.5, snap.ValidationScore, 1e-9)
	})

	t.Run("fetch failure marks previous stale", func(t *testing.T) {
		svc, fetcher, snapshots, events := newFlow(t)
		fetcher.set(id.CityNYC, "<p>register</p>")
		_, err := svc.IngestCity(ctx, id.CityNYC)
		require.NoError(t, err)

		fetcher.err = errors.New("timeout")
		snap, err := svc.IngestCity(ctx, id.CityNYC)
		require.NoError(t, err)
		assert.Equal(t, rules.SnapshotStatusStale, snap.Status)

		active, err := snapshots.Active(ctx, id.CityNYC)
		require.NoError(t, err)
		assert.Equal(t, rules.SnapshotStatusStale, active.Status)
		assert.Equal(t, autonomy.ActionFallbackPrevious, events.actions()[1])
	})

	t.Run("at most one active snapshot under concurrent cycles", func(t *testing.T) {
		svc, fetcher, snapshots, _ := newFlow(t)
		fetcher.set(id.CityNYC, "<p>register</p>")

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.IngestCity(ctx, id.CityNYC)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		active, err := snapshots.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)
		assert.Equal(t, 1, active[0].Version)
	})
}
