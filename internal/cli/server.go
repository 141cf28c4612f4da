package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lol-trivia-service/internal/app"
	"lol-trivia-service/internal/config"
	"lol-trivia-service/internal/gateway"
	rediscache "lol-trivia-service/internal/infra/redis"
	transport "lol-trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	if b.memory != nil {
		seedSamplePlayers(b.memory)
	}

	svcCfg := app.ServiceConfig{
		Game:   gameConfig(cfg),
		Logger: logger,
	}
	if cfg.Riot.APIKey != "" {
		freshness := config.TTLDuration(cfg.Game.StatsFreshness, 24*time.Hour)
		svcCfg.Syncer = app.NewSyncer(newRiotClient(cfg), b.stats, freshness, logger)
	} else {
		logger.Warn("riot.apiKey not set, games start from stored stats only")
	}
	if b.redis != nil {
		marker := rediscache.NewSessionMarker(b.redis, config.TTLDuration(cfg.Redis.SessionTTL, 2*time.Hour))
		clearStaleMarkers(ctx, marker, logger)
		svcCfg.Marker = marker
	}

	genOpts := []app.GeneratorOption{app.WithMasteryOptions(cfg.Game.MasteryOptions)}
	if cfg.Game.Seed != 0 {
		genOpts = append(genOpts, app.WithSeed(cfg.Game.Seed))
	}
	generator := app.NewGenerator(b.stats, genOpts...)

	hub := gateway.NewHub(64, logger)
	service := app.NewTriviaService(b.store, generator, hub, svcCfg)
	defer service.Close()

	wsHandler := transport.NewWSHandler(service, logger)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, wsHandler, logger),
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		logger.Error("server failed", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// clearStaleMarkers drops markers left by a previous process; its games died with it.
func clearStaleMarkers(ctx context.Context, marker *rediscache.SessionMarker, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ids, err := marker.Active(ctx)
	if err != nil {
		logger.Warn("list session markers", "err", err)
		return
	}
	for _, id := range ids {
		if err := marker.Clear(ctx, id); err != nil {
			logger.Warn("clear stale session marker", "lobby_id", id, "err", err)
		}
	}
	if len(ids) > 0 {
		logger.Info("cleared stale session markers", "count", len(ids))
	}
}
