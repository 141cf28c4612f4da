package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"lol-trivia-service/internal/app"
	"lol-trivia-service/internal/config"
	"lol-trivia-service/internal/domain"
	"lol-trivia-service/internal/infra/memory"
	pgstore "lol-trivia-service/internal/infra/postgres"
	rediscache "lol-trivia-service/internal/infra/redis"
	"lol-trivia-service/internal/infra/riot"
)

// statsCache is the read-through layer the generator and syncer share.
type statsCache interface {
	app.StatsReader
	app.PlayerWriter
}

// backends holds the storage chosen by configuration.
type backends struct {
	store  app.Store
	stats  statsCache
	redis  *redis.Client
	pool   *pgxpool.Pool
	memory *memory.Store
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// openBackends connects Postgres and Redis when configured and falls back to process memory.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		b.store = pgstore.NewStore(pool)
		logger.Info("using postgres store")
	} else {
		b.memory = memory.NewStore()
		b.store = b.memory
		logger.Info("using in-memory store")
	}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.stats = rediscache.NewStatsCache(b.redis, b.store, cacheTTL)
		logger.Info("caching stats in redis", "addr", cfg.Redis.Addr, "ttl", cacheTTL)
	} else {
		b.stats = memory.NewStatsCache(b.store, cacheTTL)
	}
	return b, nil
}

func newRiotClient(cfg config.Config) *riot.Client {
	return riot.NewClient(cfg.Riot.APIKey,
		riot.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.Riot.Timeout, 10*time.Second)}),
		riot.WithAccountRegion(cfg.Riot.AccountRegion),
		riot.WithMatchCount(cfg.Riot.MatchCount),
	)
}

func gameConfig(cfg config.Config) app.GameConfig {
	d := app.DefaultGameConfig()
	return app.GameConfig{
		MaxRounds:        cfg.Game.MaxRounds,
		RoundSeconds:     cfg.Game.RoundSeconds,
		TickInterval:     config.TTLDuration(cfg.Game.TickInterval, d.TickInterval),
		InterRoundDelay:  config.TTLDuration(cfg.Game.InterRoundDelay, d.InterRoundDelay),
		PointsPerCorrect: cfg.Game.PointsPerCorrect,
	}
}

func intPtr(v int) *int { return &v }

// seedSamplePlayers gives a store-less local run something to ask about.
func seedSamplePlayers(s *memory.Store) {
	s.SeedPlayer(domain.Player{ID: "Faker#KR1", Region: "kr", Rank: "CHALLENGER", MostKills: intPtr(17), MostDeaths: intPtr(6)},
		domain.ChampionMastery{ChampionID: 7, ChampionName: "LeBlanc", Points: 812000},
		domain.ChampionMastery{ChampionID: 61, ChampionName: "Orianna", Points: 455000},
		domain.ChampionMastery{ChampionID: 134, ChampionName: "Syndra", Points: 390000},
		domain.ChampionMastery{ChampionID: 268, ChampionName: "Azir", Points: 101000},
		domain.ChampionMastery{ChampionID: 99, ChampionName: "Lux", Points: 2300},
	)
	s.SeedPlayer(domain.Player{ID: "Doublelift#NA1", Region: "na1", Rank: "MASTER", MostKills: intPtr(21), MostDeaths: intPtr(9)},
		domain.ChampionMastery{ChampionID: 51, ChampionName: "Caitlyn", Points: 640000},
		domain.ChampionMastery{ChampionID: 222, ChampionName: "Jinx", Points: 380000},
		domain.ChampionMastery{ChampionID: 236, ChampionName: "Lucian", Points: 210000},
		domain.ChampionMastery{ChampionID: 22, ChampionName: "Ashe", Points: 88000},
		domain.ChampionMastery{ChampionID: 412, ChampionName: "Thresh", Points: 1500},
	)
	s.SeedPlayer(domain.Player{ID: "Caps#EUW1", Region: "euw1", Rank: "GRANDMASTER", MostKills: intPtr(14), MostDeaths: intPtr(11)},
		domain.ChampionMastery{ChampionID: 105, ChampionName: "Fizz", Points: 530000},
		domain.ChampionMastery{ChampionID: 238, ChampionName: "Zed", Points: 270000},
		domain.ChampionMastery{ChampionID: 245, ChampionName: "Ekko", Points: 199000},
		domain.ChampionMastery{ChampionID: 84, ChampionName: "Akali", Points: 64000},
		domain.ChampionMastery{ChampionID: 25, ChampionName: "Morgana", Points: 900},
	)
}
