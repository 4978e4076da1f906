package decision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"permitpulse/internal/autonomy"
	"permitpulse/internal/decision"
	"permitpulse/internal/decision/ports/mocks"
	decisionstore "permitpulse/internal/decision/store"
	"permitpulse/internal/organization"
	"permitpulse/internal/rules"
	rulestore "permitpulse/internal/rules/store"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

var checkTime = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type DecisionServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	events    *mocks.MockEventRecorder
	snapshots *rulestore.InMemoryStore
	checks    *decisionstore.InMemoryStore
	service   *decision.Service
	ctx       context.Context
}

func TestDecisionServiceSuite(t *testing.T) {
	suite.Run(t, new(DecisionServiceSuite))
}

func (s *DecisionServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.events = mocks.NewMockEventRecorder(s.ctrl)
	s.snapshots = rulestore.NewInMemory()
	s.checks = decisionstore.NewInMemory()
	svc, err := decision.NewService(s.checks, s.snapshots, decision.WithEvents(s.events))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), checkTime)
}

func (s *DecisionServiceSuite) publish(status rules.SnapshotStatus, score float64) *rules.Snapshot {
	snap, err := s.snapshots.Publish(s.ctx, &rules.Snapshot{
		CityCode:        id.CityNYC,
		Checksum:        "sum-1",
		Status:          status,
		ValidationScore: score,
		SourceURLs:      []string{"https://nyc.test"},
		Clauses: []rules.Clause{{
			ClauseID: "primary-residence",
			Category: rules.CategoryProhibition,
			Condition: rules.NewExpression(rules.Not{Term: rules.Predicate{
				Field: "property.is_primary_residence", Op: rules.OpEq, Value: true,
			}}),
			RequirementText: "Only primary residences may be rented short-term.",
			Confidence:      0.9,
		}},
	})
	s.Require().NoError(err)
	return snap
}

func (s *DecisionServiceSuite) expectEvent(outcome autonomy.Outcome) {
	s.events.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *autonomy.Event) error {
		s.Equal(autonomy.EventTypeDecision, e.EventType)
		s.Equal(autonomy.TriggerAddressChecks, e.Trigger)
		s.Equal(autonomy.ActionEvaluateAddress, e.ActionTaken)
		s.Equal(outcome, e.Outcome)
		return nil
	})
}

func request(primary bool) decision.CheckRequest {
	return decision.CheckRequest{
		Address:  "1 Main St",
		CityCode: id.CityNYC,
		Context:  map[string]any{"property": map[string]any{"is_primary_residence": primary}},
	}
}

func (s *DecisionServiceSuite) TestNoSnapshot() {
	s.expectEvent(autonomy.OutcomeDegraded)

	check, err := s.service.Check(s.ctx, request(true))
	s.Require().NoError(err)
	s.Equal(decision.GradeUndetermined, check.ResultGrade)
	s.Equal(decision.ModeAutoConservative, check.DecisionMode)
	s.Equal([]string{"no_active_snapshot"}, check.BlockerFlags)
	s.Zero(check.Confidence)
	s.Nil(check.Provenance.SnapshotID)
	s.Empty(check.Provenance.SourceURLs)

	trace, err := s.service.Trace(s.ctx, check.ID)
	s.Require().NoError(err)
	s.Nil(trace.SnapshotID)
	s.Empty(trace.RuleIDs)
}

func (s *DecisionServiceSuite) TestConfidentCheckPersistsTrace() {
	snap := s.publish(rules.SnapshotStatusActive, 0.9)
	s.expectEvent(autonomy.OutcomeHealthy)

	check, err := s.service.Check(s.ctx, request(false))
	s.Require().NoError(err)
	s.Equal(decision.GradeRed, check.ResultGrade)
	s.Equal(decision.ModeAutoConfident, check.DecisionMode)
	s.Equal(checkTime, check.CreatedAt)
	s.Require().NotNil(check.Provenance.Checksum)
	s.Equal("sum-1", *check.Provenance.Checksum)

	trace, err := s.service.Trace(s.ctx, check.ID)
	s.Require().NoError(err)
	s.Equal(snap.ID, *trace.SnapshotID)
	s.Equal([]string{"primary-residence"}, trace.RuleIDs)
	digest, err := decision.EvidenceDigest(check.Evidence)
	s.Require().NoError(err)
	s.Equal(digest, trace.EvidenceDigest)

	loaded, err := s.service.Get(s.ctx, check.ID)
	s.Require().NoError(err)
	s.Equal(check.ResultGrade, loaded.ResultGrade)
	s.Equal(snap.ID, *loaded.Provenance.SnapshotID)
	s.Equal([]string{"https://nyc.test"}, loaded.Provenance.SourceURLs)
}

func (s *DecisionServiceSuite) TestStaleSnapshotIsConservative() {
	snap := s.publish(rules.SnapshotStatusActive, 0.9)
	s.Require().NoError(s.snapshots.MarkStale(s.ctx, snap.ID))
	s.expectEvent(autonomy.OutcomeDegraded)

	check, err := s.service.Check(s.ctx, request(true))
	s.Require().NoError(err)
	s.Equal(decision.GradeUndetermined, check.ResultGrade)
	s.Equal(decision.ModeAutoConservative, check.DecisionMode)
}

func (s *DecisionServiceSuite) TestQuota() {
	org := &organization.Organization{ID: id.NewOrganizationID(), Plan: organization.PlanStarter}
	s.events.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).Times(30)

	req := request(true)
	req.Organization = org
	for i := 0; i < 29; i++ {
		_, err := s.service.Check(s.ctx, req)
		s.Require().NoError(err)
	}

	// the 30th check still fits the allowance
	_, err := s.service.Check(s.ctx, req)
	s.Require().NoError(err)

	_, err = s.service.Check(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

	n, err := s.checks.CountSince(s.ctx, org.ID, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(30, n)
}

func (s *DecisionServiceSuite) TestQuotaResetsEachMonth() {
	org := &organization.Organization{ID: id.NewOrganizationID(), Plan: "Enterprise"}
	s.events.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	req := request(true)
	req.Organization = org
	lastMonth := requestcontext.WithTime(context.Background(), time.Date(2026, 5, 31, 23, 59, 0, 0, time.UTC))
	for i := 0; i < 30; i++ {
		_, err := s.service.Check(lastMonth, req)
		s.Require().NoError(err)
	}

	_, err := s.service.Check(s.ctx, req)
	s.Require().NoError(err)
}

func (s *DecisionServiceSuite) TestUnscopedChecksAreUnlimited() {
	s.events.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).Times(35)
	for i := 0; i < 35; i++ {
		_, err := s.service.Check(s.ctx, request(true))
		s.Require().NoError(err)
	}
}

func (s *DecisionServiceSuite) TestValidation() {
	_, err := s.service.Check(s.ctx, decision.CheckRequest{Address: "  ", CityCode: id.CityNYC})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Check(s.ctx, decision.CheckRequest{Address: "x", CityCode: "XX"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *DecisionServiceSuite) TestGetUnknown() {
	_, err := s.service.Get(s.ctx, id.NewCheckID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DecisionServiceSuite) TestInvariantViolationIsRecorded() {
	snapshots := mocks.NewMockSnapshotReader(s.ctrl)
	svc, err := decision.NewService(s.checks, snapshots, decision.WithEvents(s.events))
	s.Require().NoError(err)

	snapshots.EXPECT().Active(gomock.Any(), id.CityNYC).Return(nil, sentinel.ErrInvariant)
	s.expectEvent(autonomy.OutcomeDegraded)

	_, err = svc.Check(s.ctx, request(true))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *DecisionServiceSuite) TestEventFailureDoesNotFailCheck() {
	s.events.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("events down"))

	_, err := s.service.Check(s.ctx, request(true))
	s.Require().NoError(err)
}
