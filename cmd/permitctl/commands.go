package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"permitpulse/internal/app"
	"permitpulse/internal/organization"
	"permitpulse/internal/platform/config"
	"permitpulse/internal/platform/logger"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/requestcontext"
)

type options struct {
	logLevel string
	timeout  time.Duration
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "permitctl",
		Short:         "Operate the PermitPulse control loops",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Overall command timeout")

	cmd.AddCommand(
		ingestCmd(opts),
		ingestAllCmd(opts),
		opsCycleCmd(opts),
		maintenanceCmd(opts),
		statusCmd(opts),
		orgCmd(opts),
		tokenCmd(),
	)
	return cmd
}

func ingestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <city>",
		Short: "Run one ingestion cycle for a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city, err := id.ParseCityCode(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Autonomy.IngestCity(ctx, city)
			})
		},
	}
}

func ingestAllCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-all",
		Short: "Ingest every configured city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Autonomy.IngestAll(ctx)
			})
		},
	}
}

func opsCycleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ops-cycle",
		Short: "Record SLO metrics and run automatic recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Autonomy.RunOpsCycle(ctx)
			})
		},
	}
}

func maintenanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "maintenance",
		Short: "Run the daily maintenance cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Autonomy.DailyMaintenance(ctx)
			})
		},
	}
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show active snapshots, recent events and rollbacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Autonomy.Status(ctx)
			})
		},
	}
}

func orgCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	var req organization.CreateRequest
	var plan string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Plan = organization.Plan(plan)
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Organizations.Create(ctx, req)
			})
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "Display name")
	create.Flags().StringVar(&req.Slug, "slug", "", "URL-safe slug sent as X-Org-Slug")
	create.Flags().StringVar(&req.BillingEmail, "billing-email", "", "Billing contact")
	create.Flags().StringVar(&plan, "plan", string(organization.PlanStarter), "Plan (starter, pro, team)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("slug")

	list := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) (any, error) {
				return a.Organizations.List(ctx)
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint an operator token for the internal trigger endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			tokens := app.OperatorTokens(cfg)
			if tokens == nil {
				return fmt.Errorf("OPERATOR_JWT_SIGNING_KEY is not set")
			}
			token, err := tokens.GenerateOperatorToken(args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

// withApp builds the service graph, runs fn with one pinned "now", prints the
// result as JSON and flushes the change feed.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app.App) (any, error)) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), true, opts.logLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("cleanup failed", "error", err)
		}
	}()

	ctx = requestcontext.WithTime(ctx, time.Now().UTC())
	result, err := fn(ctx, a)
	if flushErr := a.Flush(ctx); flushErr != nil {
		log.Warn("change feed flush incomplete", "error", flushErr)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
