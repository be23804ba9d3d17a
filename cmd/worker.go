package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that writes scheduled CSV backups into
backup.dir and periodically rebuilds the search index`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Backup.Dir == "" && !cfg.Elastic.Enabled {
		return errors.New("nothing to do: set backup.dir or enable elastic")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return errors.Wrap(err, "failed to create scheduler")
		}

		if err := scheduleJobs(ctx, scheduler, app); err != nil {
			return err
		}

		log.Info().
			Str("backup_dir", cfg.Backup.Dir).
			Dur("backup_interval", cfg.Backup.Interval).
			Dur("reindex_interval", cfg.Backup.ReindexInterval).
			Msg("Starting scheduler")
		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func scheduleJobs(ctx context.Context, scheduler gocron.Scheduler, app *application) error {
	if cfg.Backup.Dir != "" && cfg.Backup.Interval > 0 {
		_, err := scheduler.NewJob(
			gocron.DurationJob(cfg.Backup.Interval),
			gocron.NewTask(func() {
				jobCtx, done := app.tracer.StartBackground(ctx, "worker.backup")
				path, count, err := app.events.WriteSnapshot(jobCtx)
				done(err)
				if err != nil {
					log.Error().Err(err).Msg("Scheduled backup failed")
					return
				}
				log.Info().Str("path", path).Int("events", count).Msg("Scheduled backup written")
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule backup job")
		}
	}

	if cfg.Elastic.Enabled && cfg.Backup.ReindexInterval > 0 {
		_, err := scheduler.NewJob(
			gocron.DurationJob(cfg.Backup.ReindexInterval),
			gocron.NewTask(func() {
				start := time.Now()
				jobCtx, done := app.tracer.StartBackground(ctx, "worker.reindex")
				count, err := app.events.Reindex(jobCtx)
				done(err)
				if err != nil {
					log.Error().Err(err).Msg("Scheduled reindex failed")
					return
				}
				log.Info().Int("events", count).Dur("took", time.Since(start)).Msg("Search index rebuilt")
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule reindex job")
		}
	}

	return nil
}
