package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"lol-trivia-service/internal/domain"
)

// StatsProvider fetches fresh statistics for an account from the game API.
type StatsProvider interface {
	FetchPlayerStats(ctx context.Context, riotID string) (domain.PlayerStats, error)
}

// PlayerWriter persists fetched statistics.
type PlayerWriter interface {
	SavePlayerStats(ctx context.Context, stats domain.PlayerStats) (domain.Player, error)
}

// Syncer refreshes roster statistics before a game starts.
type Syncer struct {
	provider  StatsProvider
	writer    PlayerWriter
	freshness time.Duration
	limit     int
	now       func() time.Time
	logger    *slog.Logger
}

func NewSyncer(provider StatsProvider, writer PlayerWriter, freshness time.Duration, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		provider:  provider,
		writer:    writer,
		freshness: freshness,
		limit:     4,
		now:       time.Now,
		logger:    logger,
	}
}

// SyncRoster refreshes every player whose stored stats are older than the freshness window.
// The first failure cancels the remaining fetches.
func (s *Syncer) SyncRoster(ctx context.Context, roster []domain.Player) error {
	start := time.Now()
	defer func() { rosterSyncDuration.Observe(time.Since(start).Seconds()) }()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, p := range roster {
		if s.fresh(p) {
			s.logger.Debug("player stats fresh, skipping sync", "riot_id", p.ID)
			continue
		}
		riotID := p.ID
		g.Go(func() error {
			_, err := s.SyncPlayer(ctx, riotID)
			return err
		})
	}
	return g.Wait()
}

// SyncPlayer fetches and stores one player's stats regardless of freshness.
func (s *Syncer) SyncPlayer(ctx context.Context, riotID string) (domain.Player, error) {
	stats, err := s.provider.FetchPlayerStats(ctx, riotID)
	if err != nil {
		return domain.Player{}, fmt.Errorf("fetch stats for %s: %w", riotID, err)
	}
	player, err := s.writer.SavePlayerStats(ctx, stats)
	if err != nil {
		return domain.Player{}, fmt.Errorf("save stats for %s: %w", riotID, err)
	}
	s.logger.Info("player synced", "riot_id", riotID, "masteries", len(stats.Masteries), "games", stats.GamesAnalyzed)
	return player, nil
}

func (s *Syncer) fresh(p domain.Player) bool {
	if p.UpdatedAt.IsZero() || s.freshness <= 0 {
		return false
	}
	return s.now().Sub(p.UpdatedAt) < s.freshness
}
