package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionMarker keeps a liveness key per lobby with a running game. Round state itself stays
// in process memory; the key lets operators see which lobbies are live.
type SessionMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionMarker(client *redis.Client, ttl time.Duration) *SessionMarker {
	return &SessionMarker{client: client, ttl: ttl}
}

func (m *SessionMarker) MarkActive(ctx context.Context, lobbyID string) error {
	return m.client.Set(ctx, m.key(lobbyID), time.Now().UTC().Format(time.RFC3339), m.ttl).Err()
}

func (m *SessionMarker) Clear(ctx context.Context, lobbyID string) error {
	return m.client.Del(ctx, m.key(lobbyID)).Err()
}

// Active lists lobby ids that currently carry a marker.
func (m *SessionMarker) Active(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := m.client.Scan(ctx, cursor, sessionPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, k[len(sessionPrefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

const sessionPrefix = "trivia:session:"

func (m *SessionMarker) key(lobbyID string) string {
	return sessionPrefix + lobbyID
}
