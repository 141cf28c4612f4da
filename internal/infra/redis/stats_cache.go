package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"lol-trivia-service/internal/domain"
)

// StatsBackend is the store the cache reads through to.
type StatsBackend interface {
	GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error)
	GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error)
	SavePlayerStats(ctx context.Context, stats domain.PlayerStats) (domain.Player, error)
}

// StatsCache caches stat lookups in Redis and falls back to the backend on a miss.
// Values are JSON strings:
//
//	trivia:stat:{riotID}:{field}
//	trivia:masteries:{riotID}:{order}:{n}
//
// and every key written for a player is tracked in the set trivia:player:{riotID}:keys so a
// sync can drop them all at once.
type StatsCache struct {
	client  *redis.Client
	backend StatsBackend
	ttl     time.Duration
	sf      singleflight.Group
	mu      sync.Mutex
	rnd     *rand.Rand
}

func NewStatsCache(client *redis.Client, backend StatsBackend, ttl time.Duration) *StatsCache {
	return &StatsCache{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StatsCache) GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error) {
	var v domain.StatValue
	key := "trivia:stat:" + riotID + ":" + string(field)
	err := c.load(ctx, riotID, key, &v, func() (any, error) {
		return c.backend.GetPlayerStat(ctx, riotID, field)
	})
	return v, err
}

func (c *StatsCache) GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error) {
	var rows []domain.ChampionMastery
	key := fmt.Sprintf("trivia:masteries:%s:%s:%d", riotID, order, n)
	err := c.load(ctx, riotID, key, &rows, func() (any, error) {
		return c.backend.GetTopMasteries(ctx, riotID, n, order)
	})
	return rows, err
}

// SavePlayerStats writes through and invalidates the player's cached keys.
func (c *StatsCache) SavePlayerStats(ctx context.Context, stats domain.PlayerStats) (domain.Player, error) {
	p, err := c.backend.SavePlayerStats(ctx, stats)
	if err != nil {
		return domain.Player{}, err
	}
	if err := c.Invalidate(ctx, stats.RiotID); err != nil {
		return p, fmt.Errorf("invalidate cached stats: %w", err)
	}
	return p, nil
}

func (c *StatsCache) Invalidate(ctx context.Context, riotID string) error {
	index := c.indexKey(riotID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, append(keys, index)...).Err()
}

// load fills out from Redis, or from fetch on a miss. Only one fetch per key runs at a time.
func (c *StatsCache) load(ctx context.Context, riotID, key string, out any, fetch func() (any, error)) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, out)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	result, err, _ := c.sf.Do(key, func() (any, error) {
		// another caller may have filled the key meanwhile
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		pipe.Set(ctx, key, raw, ttl)
		pipe.SAdd(ctx, c.indexKey(riotID), key)
		if ttl > 0 {
			pipe.Expire(ctx, c.indexKey(riotID), ttl*2)
		}
		_, _ = pipe.Exec(ctx)
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), out)
}

func (c *StatsCache) indexKey(riotID string) string {
	return "trivia:player:" + riotID + ":keys"
}

func (c *StatsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
