package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/requestcontext"
)

// Store persists alerts.
type Store interface {
	CreateBatch(ctx context.Context, batch []*Alert) error
	List(ctx context.Context, orgID id.OrganizationID, limit int) ([]*Alert, error)
}

// Recipients lists every organization ID that receives broadcasts.
type Recipients interface {
	OrganizationIDs(ctx context.Context) ([]id.OrganizationID, error)
}

// Feed forwards created alerts to an external change log.
type Feed interface {
	Publish(ctx context.Context, topic, key string, v any)
}

// Service creates and lists alerts.
type Service struct {
	store      Store
	recipients Recipients
	feed       Feed
	topic      string
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithFeed mirrors every created alert to topic.
func WithFeed(feed Feed, topic string) Option {
	return func(s *Service) {
		s.feed = feed
		s.topic = topic
	}
}

func NewService(store Store, recipients Recipients, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("alert store is required")
	}
	if recipients == nil {
		return nil, errors.New("alert recipients are required")
	}
	s := &Service{store: store, recipients: recipients, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BroadcastRuleUpdate tells every organization that city's rules moved to version.
// It returns the number of alerts created.
func (s *Service) BroadcastRuleUpdate(ctx context.Context, city id.CityCode, version int) (int, error) {
	orgIDs, err := s.recipients.OrganizationIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list alert recipients: %w", err)
	}
	if len(orgIDs) == 0 {
		return 0, nil
	}

	now := requestcontext.Now(ctx)
	message := fmt.Sprintf("%s regulatory rules were updated to version %d.", city, version)
	batch := make([]*Alert, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		batch = append(batch, &Alert{
			ID:                 id.NewAlertID(),
			OrganizationID:     orgID,
			CityCode:           city,
			ChangeType:         ChangeTypeRuleUpdate,
			ImpactedListingIDs: []string{},
			Severity:           SeverityMedium,
			Message:            message,
			Status:             StatusNew,
			CreatedAt:          now,
		})
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("create alerts: %w", err)
	}

	if s.feed != nil {
		for _, a := range batch {
			s.feed.Publish(ctx, s.topic, a.OrganizationID.String(), a)
		}
	}
	s.logger.InfoContext(ctx, "rule update alerts created",
		"city_code", city,
		"version", version,
		"alerts", len(batch),
	)
	return len(batch), nil
}

// List returns the newest alerts, scoped to orgID unless it is nil.
func (s *Service) List(ctx context.Context, orgID id.OrganizationID, limit int) ([]*Alert, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	out, err := s.store.List(ctx, orgID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list alerts")
	}
	if out == nil {
		out = []*Alert{}
	}
	return out, nil
}
