package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"lol-trivia-service/internal/app"
	"lol-trivia-service/internal/config"
)

// NewSyncCmd fetches player stats from the Riot API into the configured store.
func NewSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <gameName#tagLine>...",
		Short: "Fetch player stats from the Riot API and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout(), *configPath, args)
		},
	}
}

func runSync(ctx context.Context, out io.Writer, configPath string, riotIDs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.Riot.APIKey == "" {
		return fmt.Errorf("riot api key not configured (riot.apiKey or RIOT_API_KEY)")
	}
	if cfg.Postgres.URL == "" {
		logger.Warn("postgres url not configured, synced stats are discarded on exit")
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	syncer := app.NewSyncer(newRiotClient(cfg), b.stats, 0, logger)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var failed int
	for _, id := range riotIDs {
		p, err := syncer.SyncPlayer(ctx, id)
		if err != nil {
			logger.Error("sync failed", "riot_id", id, "err", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s\trank=%s\tupdated=%s\n", p.ID, p.Rank, p.UpdatedAt.Format(time.RFC3339))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d players failed to sync", failed, len(riotIDs))
	}
	return nil
}
