package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"NewsIngestor/internal/app"
	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "newsingestor",
		Short:        "Scheduled news feed ingestion",
		Long:         "newsingestor reads publisher feeds on a schedule, normalizes and classifies articles and stores them without duplicates.",
		SilenceUsage: true,
		Version:      version,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler, queue workers and admin HTTP server",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				return a.Serve(ctx)
			}),
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Process queued ingestion jobs",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				return a.RunWorker(ctx)
			}),
		},
		&cobra.Command{
			Use:   "scheduler",
			Short: "Enqueue ingestion on the configured interval",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				return a.RunScheduler(ctx)
			}),
		},
		&cobra.Command{
			Use:   "enqueue",
			Short: "Queue one ingestion job and exit",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				job, err := a.Enqueue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", job.ID, job.Name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "run-once",
			Short: "Queue one ingestion job and work it to completion",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				job, err := a.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s %s after %d attempt(s)\n", job.ID, job.State, job.Attempts)
				if job.State == domain.JobFailed {
					return fmt.Errorf("job failed: %s", job.LastError)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Upsert the configured categories and sources",
			RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.Application) error {
				res, err := a.Seed(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories and %d sources\n", res.Categories, res.Sources)
				return nil
			}),
		},
	)
	return root
}

type appFunc func(ctx context.Context, cmd *cobra.Command, a *app.Application) error

// withApp loads config, builds the application and applies the schema before fn runs.
func withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("starting: %w", err)
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn("close", "error", err)
			}
		}()

		if err := a.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		return fn(ctx, cmd, a)
	}
}
