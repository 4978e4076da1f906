package organization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"permitpulse/internal/organization"
	"permitpulse/internal/organization/store"
	dErrors "permitpulse/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	service *organization.Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	svc, err := organization.NewService(store.NewInMemory())
	s.Require().NoError(err)
	s.service = svc
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestCreate() {
	s.Run("defaults plan to starter", func() {
		org, err := s.service.Create(s.ctx, organization.CreateRequest{Name: "Acme", Slug: "Acme"})
		s.Require().NoError(err)
		s.Equal("acme", org.Slug)
		s.Equal(organization.PlanStarter, org.Plan)
	})

	s.Run("rejects duplicate slug", func() {
		_, err := s.service.Create(s.ctx, organization.CreateRequest{Name: "Acme 2", Slug: "acme"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects invalid email", func() {
		_, err := s.service.Create(s.ctx, organization.CreateRequest{Name: "B", Slug: "b", BillingEmail: "nope"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestResolve() {
	created, err := s.service.Create(s.ctx, organization.CreateRequest{Name: "Host Co", Slug: "host-co", Plan: "pro"})
	s.Require().NoError(err)

	s.Run("finds by slug case-insensitively", func() {
		org, err := s.service.Resolve(s.ctx, " HOST-CO ")
		s.Require().NoError(err)
		s.Require().NotNil(org)
		s.Equal(created.ID, org.ID)
	})

	s.Run("unknown slug resolves to nil", func() {
		org, err := s.service.Resolve(s.ctx, "missing")
		s.Require().NoError(err)
		s.Nil(org)
	})

	s.Run("empty slug resolves to nil", func() {
		org, err := s.service.Resolve(s.ctx, "")
		s.Require().NoError(err)
		s.Nil(org)
	})
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := organization.NewService(nil)
	s.Error(err)
}
