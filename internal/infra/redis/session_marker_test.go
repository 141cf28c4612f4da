package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionMarkerSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	marker := NewSessionMarker(client, time.Minute)
	ctx := context.Background()

	if err := marker.MarkActive(ctx, "lobby-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !mr.Exists("trivia:session:lobby-1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("trivia:session:lobby-1"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}

	active, err := marker.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0] != "lobby-1" {
		t.Fatalf("expected lobby-1 active, got %v", active)
	}

	if err := marker.Clear(ctx, "lobby-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("trivia:session:lobby-1") {
		t.Fatalf("expected redis key to be removed")
	}
}
