package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/djeeyo/nmreggae/internal/api"
	"github.com/djeeyo/nmreggae/internal/auth"
	"github.com/djeeyo/nmreggae/internal/database"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP server for the public calendar and the admin endpoints`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := database.Migrate(app.db); err != nil {
		return err
	}

	authenticator, err := auth.NewAuthenticator(cfg.Admin)
	if err != nil {
		return errors.Wrap(err, "failed to initialize admin authentication")
	}

	server := api.NewServer(cfg, api.Dependencies{
		Events:  app.events,
		Auth:    authenticator,
		Tracer:  app.tracer,
		Metrics: app.metrics,
		DBPing: func(ctx context.Context) error {
			return database.Ping(ctx, app.db)
		},
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("API server stopped")
	return nil
}
