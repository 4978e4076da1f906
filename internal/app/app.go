// Package app builds the service graph shared by the HTTP server and the
// operator CLI from one Config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"permitpulse/internal/alerts"
	alertshandler "permitpulse/internal/alerts/handler"
	alertstore "permitpulse/internal/alerts/store"
	autonomyhandler "permitpulse/internal/autonomy/handler"
	autonomymetrics "permitpulse/internal/autonomy/metrics"
	autonomysvc "permitpulse/internal/autonomy/service"
	autonomystore "permitpulse/internal/autonomy/store"
	"permitpulse/internal/decision"
	decisionhandler "permitpulse/internal/decision/handler"
	decisionmetrics "permitpulse/internal/decision/metrics"
	decisionstore "permitpulse/internal/decision/store"
	httpapi "permitpulse/internal/http"
	"permitpulse/internal/ingestion"
	"permitpulse/internal/ingestion/adapters/archive"
	"permitpulse/internal/ingestion/adapters/fetcher"
	"permitpulse/internal/ingestion/adapters/openai"
	ingestionmetrics "permitpulse/internal/ingestion/metrics"
	ingestionports "permitpulse/internal/ingestion/ports"
	jwttoken "permitpulse/internal/jwt_token"
	"permitpulse/internal/organization"
	orgmiddleware "permitpulse/internal/organization/middleware"
	orgstore "permitpulse/internal/organization/store"
	"permitpulse/internal/platform/config"
	"permitpulse/internal/platform/kafka"
	"permitpulse/internal/platform/metrics"
	"permitpulse/internal/platform/middleware"
	"permitpulse/internal/platform/postgres"
	"permitpulse/internal/platform/redis"
	"permitpulse/internal/rules"
	"permitpulse/internal/rules/extractor"
	ruleshandler "permitpulse/internal/rules/handler"
	rulestore "permitpulse/internal/rules/store"
	"permitpulse/internal/rules/validation"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/changefeed"
	"permitpulse/pkg/platform/circuit"
)

type snapshotStore interface {
	ingestionports.SnapshotStore
	Get(ctx context.Context, snapID id.SnapshotID) (*rules.Snapshot, error)
	ListActive(ctx context.Context) ([]*rules.Snapshot, error)
}

type stores struct {
	snapshots     snapshotStore
	decisions     decision.Store
	organizations organization.Store
	alerts        alerts.Store
	autonomy      autonomysvc.Store
}

// App holds the constructed services and the infrastructure they share.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Organizations *organization.Service
	Alerts        *alerts.Service
	Decision      *decision.Service
	Ingestion     *ingestion.Service
	Autonomy      *autonomysvc.Service
	Snapshots     ruleshandler.SnapshotReader
	Tokens        *jwttoken.JWTService

	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
	feed     *changefeed.Publisher
}

// Build connects the optional infrastructure and wires every service. Postgres,
// Redis, Kafka, the archive bucket and the model key are each optional; without
// a database URL the stores are in-memory.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	db, err := postgres.OpenAndMigrate(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	st := newStores(db)
	if db == nil {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if a.producer, err = kafka.New(cfg.Kafka); err != nil {
		return nil, err
	}
	if a.producer != nil {
		if err := a.producer.EnsureTopics(ctx, 1, 1, cfg.Kafka.AlertsTopic, cfg.Kafka.EventsTopic); err != nil {
			logger.Warn("change feed topic bootstrap failed", "error", err)
		}
		a.feed = changefeed.New(a.producer,
			changefeed.WithLogger(logger),
			changefeed.WithMetrics(changefeed.NewMetrics()),
		)
	}

	a.Organizations, err = organization.NewService(st.organizations, organization.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	alertOpts := []alerts.Option{alerts.WithLogger(logger)}
	autonomyOpts := []autonomysvc.Option{
		autonomysvc.WithLogger(logger),
		autonomysvc.WithCities(cfg.Policy.CityCodes()),
		autonomysvc.WithConcurrency(cfg.Policy.MaintenanceConcurrency),
		autonomysvc.WithTargets(autonomysvc.Targets{
			Availability:     cfg.Policy.SLO.AvailabilityTarget,
			AutoRecovery:     cfg.Policy.SLO.AutoRecoveryTarget,
			Window:           cfg.Policy.SLO.Window,
			RecoveryLookback: cfg.Policy.SLO.RecoveryLookback,
		}),
	}
	if a.feed != nil {
		alertOpts = append(alertOpts, alerts.WithFeed(a.feed, cfg.Kafka.AlertsTopic))
		autonomyOpts = append(autonomyOpts, autonomysvc.WithFeed(a.feed, cfg.Kafka.EventsTopic))
	}
	if a.redis != nil {
		autonomyOpts = append(autonomyOpts, autonomysvc.WithClaimer(autonomystore.NewRedisClaimer(a.redis.Client, cfg.Redis.ClaimTTL)))
	}

	a.Alerts, err = alerts.NewService(st.alerts, a.Organizations, alertOpts...)
	if err != nil {
		return nil, err
	}

	// Loop events are recorded through a controller without an ingestor so the
	// ingestion service can depend on it.
	events, err := autonomysvc.New(st.autonomy, st.snapshots, autonomyOpts...)
	if err != nil {
		return nil, err
	}

	a.Ingestion, err = buildIngestion(ctx, cfg, logger, st.snapshots, events, a.Alerts)
	if err != nil {
		return nil, err
	}

	a.Autonomy, err = autonomysvc.New(st.autonomy, st.snapshots,
		append(autonomyOpts,
			autonomysvc.WithIngestor(a.Ingestion),
			autonomysvc.WithMetrics(autonomymetrics.New()),
		)...)
	if err != nil {
		return nil, err
	}

	a.Decision, err = decision.NewService(st.decisions, st.snapshots,
		decision.WithLogger(logger),
		decision.WithMetrics(decisionmetrics.New()),
		decision.WithEvents(events),
		decision.WithConfidenceThreshold(cfg.Policy.ConfidenceThreshold),
		decision.WithPlanQuotas(cfg.Policy.PlanQuotas),
	)
	if err != nil {
		return nil, err
	}

	a.Snapshots = st.snapshots
	a.Tokens = OperatorTokens(cfg)
	ok = true
	return a, nil
}

// OperatorTokens returns the operator token service, or nil when no signing key
// is configured.
func OperatorTokens(cfg config.Config) *jwttoken.JWTService {
	if cfg.Operator.JWTSigningKey == "" {
		return nil
	}
	return jwttoken.NewJWTService(cfg.Operator.JWTSigningKey, jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
}

func newStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			snapshots:     rulestore.NewInMemory(),
			decisions:     decisionstore.NewInMemory(),
			organizations: orgstore.NewInMemory(),
			alerts:        alertstore.NewInMemory(),
			autonomy:      autonomystore.NewInMemory(),
		}
	}
	return stores{
		snapshots:     rulestore.NewPostgres(db),
		decisions:     decisionstore.NewPostgres(db),
		organizations: orgstore.NewPostgres(db),
		alerts:        alertstore.NewPostgres(db),
		autonomy:      autonomystore.NewPostgres(db),
	}
}

func buildIngestion(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	snapshots ingestionports.SnapshotStore,
	events ingestionports.EventRecorder,
	broadcaster ingestionports.AlertBroadcaster,
) (*ingestion.Service, error) {
	extractorOpts := []extractor.Option{extractor.WithLogger(logger)}
	if cfg.Model.APIKey != "" {
		model, err := openai.New(cfg.Model.APIKey,
			openai.WithBaseURL(cfg.Model.BaseURL),
			openai.WithModel(cfg.Model.Model),
			openai.WithTimeout(cfg.Model.Timeout),
			openai.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		extractorOpts = append(extractorOpts,
			extractor.WithModel(model),
			extractor.WithBreaker(circuit.New("model-extraction",
				circuit.WithFailureThreshold(3),
				circuit.WithCooldown(5*time.Minute),
			)),
		)
	}

	gate := validation.New(validation.Config{
		MaxGrowthRatio: cfg.Policy.Gate.MaxGrowthRatio,
		MinShrinkRatio: cfg.Policy.Gate.MinShrinkRatio,
		ScoreFloor:     cfg.Policy.Gate.ScoreFloor,
	})

	opts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithMetrics(ingestionmetrics.New()),
		ingestion.WithAlerts(broadcaster),
	}
	store, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, ingestion.WithArchive(store))
	}

	return ingestion.NewService(
		fetcher.New(cfg.Policy, cfg.Policy.FetchTimeout, fetcher.WithRate(cfg.Policy.FetchRatePerSecond)),
		extractor.New(extractorOpts...),
		gate,
		snapshots,
		events,
		opts...,
	)
}

// Router builds the HTTP surface.
func (a *App) Router() http.Handler {
	var validator middleware.OperatorValidator
	if a.Tokens != nil {
		validator = a.Tokens
	}
	autonomy := autonomyhandler.New(a.Autonomy, a.Logger)
	return httpapi.NewRouter(httpapi.Config{
		Logger:        a.Logger,
		Metrics:       metrics.New(),
		OrgResolution: orgmiddleware.ResolveOrganization(a.Organizations, a.Logger),
		OperatorAuth:  middleware.RequireOperator(a.Config.Operator.CronSharedSecret, validator, a.Logger),
		Public: []httpapi.RouteRegistrar{
			decisionhandler.New(a.Decision, a.Organizations, a.Logger),
			ruleshandler.New(a.Snapshots, a.Logger),
			alertshandler.New(a.Alerts, a.Logger),
			autonomy,
		},
		Operator: []httpapi.OperatorRegistrar{autonomy},
		Health:   a.healthChecks(),
	})
}

func (a *App) healthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.producer != nil {
		checks["kafka"] = a.producer.Ping
	}
	return checks
}

// RunBackground flushes the change feed until ctx ends.
func (a *App) RunBackground(ctx context.Context) error {
	return a.feed.Run(ctx)
}

// Flush pushes pending change feed messages; the CLI calls it before exiting.
func (a *App) Flush(ctx context.Context) error {
	return a.feed.Flush(ctx)
}

// Close releases infrastructure connections.
func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
