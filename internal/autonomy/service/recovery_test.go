package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/autonomy/service/mocks"
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

type RecoverySuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	snapshots *mocks.MockSnapshots
	claimer   *mocks.MockClaimer
	service   *Service
	ctx       context.Context
	event     *autonomy.Event
}

func TestRecoverySuite(t *testing.T) {
	suite.Run(t, new(RecoverySuite))
}

func (s *RecoverySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.snapshots = mocks.NewMockSnapshots(s.ctrl)
	s.claimer = mocks.NewMockClaimer(s.ctrl)
	svc, err := New(s.store, s.snapshots, WithClaimer(s.claimer))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
	s.event = &autonomy.Event{
		ID:          id.NewEventID(),
		EventType:   autonomy.EventTypeDecision,
		Trigger:     autonomy.TriggerAddressChecks,
		ActionTaken: autonomy.ActionEvaluateAddress,
		Outcome:     autonomy.OutcomeDegraded,
		Details:     map[string]any{},
		CreatedAt:   fixedNow.Add(-time.Minute),
	}
}

func (s *RecoverySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RecoverySuite) expectDegraded() {
	s.store.EXPECT().ListEvents(gomock.Any(), autonomy.EventFilter{
		Outcome: autonomy.OutcomeDegraded,
		Since:   fixedNow.Add(-10 * time.Minute),
	}, 0).Return([]*autonomy.Event{s.event}, nil)
	s.store.EXPECT().RollbackExists(gomock.Any(), autonomy.RollbackKey(s.event.ID)).Return(false, nil)
}

func (s *RecoverySuite) TestClaimHeldElsewhereSkipsEvent() {
	s.expectDegraded()
	s.claimer.EXPECT().Claim(gomock.Any(), autonomy.RollbackKey(s.event.ID)).Return(false, nil)

	result, err := s.service.RunRecovery(s.ctx)
	s.Require().NoError(err)
	s.Equal(autonomy.RecoveryResult{ActionsExecuted: 0, CheckedEvents: 1}, result)
}

func (s *RecoverySuite) TestClaimErrorFallsBackToUniqueKey() {
	snapID := id.NewSnapshotID()
	s.expectDegraded()
	s.claimer.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(&rules.Snapshot{ID: snapID}, nil)
	s.store.EXPECT().InsertRollbackIfAbsent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rb *autonomy.RollbackEvent) (bool, error) {
			s.Equal("snapshot:"+snapID.String(), rb.FallbackRelease)
			s.Equal(autonomy.TriggerAddressChecks, rb.FailedRelease)
			s.Equal(fixedNow, rb.RecoveredAt)
			return true, nil
		})
	s.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.RunRecovery(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.ActionsExecuted)
}

func (s *RecoverySuite) TestLostInsertRaceReleasesClaim() {
	s.expectDegraded()
	s.claimer.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(true, nil)
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrNotFound)
	s.store.EXPECT().InsertRollbackIfAbsent(gomock.Any(), gomock.Any()).Return(false, nil)
	s.claimer.EXPECT().Release(gomock.Any(), autonomy.RollbackKey(s.event.ID)).Return(nil)

	result, err := s.service.RunRecovery(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, result.ActionsExecuted)
}

func (s *RecoverySuite) TestInsertFailureIsInternal() {
	s.expectDegraded()
	s.claimer.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(true, nil)
	s.snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrNotFound)
	s.store.EXPECT().InsertRollbackIfAbsent(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))
	s.claimer.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.RunRecovery(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
