package memory

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lol-trivia-service/internal/domain"
)

// StatsBackend is the store a cache reads through to.
type StatsBackend interface {
	GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error)
	GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error)
	SavePlayerStats(ctx context.Context, stats domain.PlayerStats) (domain.Player, error)
}

// StatsCache caches stat lookups with a TTL so a game does not hit the database every round.
type StatsCache struct {
	backend StatsBackend
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedEntry
}

type cachedEntry struct {
	value     any
	expiresAt time.Time
}

func NewStatsCache(backend StatsBackend, ttl time.Duration) *StatsCache {
	return &StatsCache{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedEntry),
	}
}

func (c *StatsCache) GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error) {
	key := "stat:" + riotID + ":" + string(field)
	v, err := c.load(key, func() (any, error) {
		return c.backend.GetPlayerStat(ctx, riotID, field)
	})
	if err != nil {
		return domain.StatValue{}, err
	}
	return v.(domain.StatValue), nil
}

func (c *StatsCache) GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error) {
	key := fmt.Sprintf("masteries:%s:%s:%d", riotID, order, n)
	v, err := c.load(key, func() (any, error) {
		return c.backend.GetTopMasteries(ctx, riotID, n, order)
	})
	if err != nil {
		return nil, err
	}
	rows := v.([]domain.ChampionMastery)
	return append([]domain.ChampionMastery(nil), rows...), nil
}

// SavePlayerStats writes through and drops every cached entry for the player.
func (c *StatsCache) SavePlayerStats(ctx context.Context, stats domain.PlayerStats) (domain.Player, error) {
	p, err := c.backend.SavePlayerStats(ctx, stats)
	if err != nil {
		return domain.Player{}, err
	}
	c.Invalidate(stats.RiotID)
	return p, nil
}

func (c *StatsCache) Invalidate(riotID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.cache {
		if strings.HasPrefix(key, "stat:"+riotID+":") || strings.HasPrefix(key, "masteries:"+riotID+":") {
			delete(c.cache, key)
		}
	}
}

func (c *StatsCache) load(key string, fetch func() (any, error)) (any, error) {
	now := c.clock()
	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.value, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = cachedEntry{value: v, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

func (c *StatsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
