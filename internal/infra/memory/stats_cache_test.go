package memory

import (
	"context"
	"testing"
	"time"

	"lol-trivia-service/internal/domain"
)

func TestStatsCacheCaches(t *testing.T) {
	backend := &countingBackend{StatsBackend: seededStore()}
	cache := NewStatsCache(backend, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetTopMasteries(ctx, "Faker#KR1", 4, domain.Descending); err != nil {
		t.Fatalf("get masteries: %v", err)
	}
	if _, err := cache.GetTopMasteries(ctx, "Faker#KR1", 4, domain.Descending); err != nil {
		t.Fatalf("get masteries 2: %v", err)
	}
	if backend.masteryCalls != 1 {
		t.Fatalf("expected backend once, got %d", backend.masteryCalls)
	}

	if _, err := cache.GetTopMasteries(ctx, "Faker#KR1", 4, domain.Ascending); err != nil {
		t.Fatalf("get masteries asc: %v", err)
	}
	if backend.masteryCalls != 2 {
		t.Fatalf("expected a separate entry per order, got %d calls", backend.masteryCalls)
	}
}

func TestStatsCacheInvalidatesOnSave(t *testing.T) {
	backend := &countingBackend{StatsBackend: seededStore()}
	cache := NewStatsCache(backend, time.Minute)
	ctx := context.Background()

	v, err := cache.GetPlayerStat(ctx, "Faker#KR1", domain.StatMostKills)
	if err != nil || v.Number != 12 {
		t.Fatalf("expected 12 kills, got %+v err=%v", v, err)
	}

	kills := 20
	if _, err := cache.SavePlayerStats(ctx, domain.PlayerStats{RiotID: "Faker#KR1", GameName: "Faker", TagLine: "KR1", MostKills: &kills}); err != nil {
		t.Fatalf("save: %v", err)
	}

	v, err = cache.GetPlayerStat(ctx, "Faker#KR1", domain.StatMostKills)
	if err != nil || v.Number != 20 {
		t.Fatalf("expected refreshed 20 kills, got %+v err=%v", v, err)
	}
	if backend.statCalls != 2 {
		t.Fatalf("expected backend hit after invalidation, got %d calls", backend.statCalls)
	}
}

func TestStatsCacheDoesNotCacheErrors(t *testing.T) {
	backend := &countingBackend{StatsBackend: NewStore()}
	cache := NewStatsCache(backend, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetPlayerStat(context.Background(), "Nobody#NA1", domain.StatRank); err != domain.ErrPlayerNotFound {
			t.Fatalf("expected ErrPlayerNotFound, got %v", err)
		}
	}
	if backend.statCalls != 2 {
		t.Fatalf("expected errors to bypass the cache, got %d calls", backend.statCalls)
	}
}

type countingBackend struct {
	StatsBackend
	statCalls    int
	masteryCalls int
}

func (b *countingBackend) GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error) {
	b.statCalls++
	return b.StatsBackend.GetPlayerStat(ctx, riotID, field)
}

func (b *countingBackend) GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error) {
	b.masteryCalls++
	return b.StatsBackend.GetTopMasteries(ctx, riotID, n, order)
}

func seededStore() *Store {
	kills := 12
	s := NewStore()
	s.SeedPlayer(domain.Player{ID: "Faker#KR1", MostKills: &kills, Rank: "CHALLENGER"},
		domain.ChampionMastery{ChampionID: 7, ChampionName: "LeBlanc", Points: 900000},
		domain.ChampionMastery{ChampionID: 4, ChampionName: "Twisted Fate", Points: 300000},
		domain.ChampionMastery{ChampionID: 61, ChampionName: "Orianna", Points: 500000},
	)
	return s
}
