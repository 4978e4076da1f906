package organization

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/requestcontext"
)

// Store persists organizations.
type Store interface {
	Create(ctx context.Context, org *Organization) error
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	FindByID(ctx context.Context, orgID id.OrganizationID) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}

// Service manages organizations and resolves them for requests.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("organization store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateRequest holds the fields for a new organization.
type CreateRequest struct {
	Name         string
	Slug         string
	BillingEmail string
	Plan         Plan
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 120 {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required and must be at most 120 characters")
	}
	slug, err := NormalizeSlug(req.Slug)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(req.BillingEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "billing_email is invalid")
		}
	}
	plan := Plan(strings.ToLower(strings.TrimSpace(string(req.Plan))))
	if plan == "" {
		plan = PlanStarter
	}

	now := requestcontext.Now(ctx)
	org := &Organization{
		ID:           id.NewOrganizationID(),
		Name:         name,
		Slug:         slug,
		BillingEmail: email,
		Plan:         plan,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "slug already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}
	s.logger.InfoContext(ctx, "organization created", "organization_id", org.ID, "slug", org.Slug, "plan", org.Plan)
	return org, nil
}

// Resolve looks up an organization by slug. An unknown slug resolves to nil
// without error so the request proceeds unscoped.
func (s *Service) Resolve(ctx context.Context, slug string) (*Organization, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, nil
	}
	org, err := s.store.FindBySlug(ctx, slug)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.DebugContext(ctx, "unknown organization slug", "slug", slug)
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve organization")
	}
	return org, nil
}

func (s *Service) Get(ctx context.Context, orgID id.OrganizationID) (*Organization, error) {
	org, err := s.store.FindByID(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org, nil
}

func (s *Service) List(ctx context.Context) ([]*Organization, error) {
	orgs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	return orgs, nil
}

// OrganizationIDs lists every organization ID; alert broadcasts fan out over it.
func (s *Service) OrganizationIDs(ctx context.Context) ([]id.OrganizationID, error) {
	orgs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]id.OrganizationID, 0, len(orgs))
	for _, org := range orgs {
		ids = append(ids, org.ID)
	}
	return ids, nil
}
