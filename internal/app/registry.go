package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionMarker records which lobbies have a live game, e.g. in Redis for operators.
type SessionMarker interface {
	MarkActive(ctx context.Context, lobbyID string) error
	Clear(ctx context.Context, lobbyID string) error
}

// Registry maps lobby ids to their live Game. Games are fully constructed before they are
// published, so lookups never see a half-initialized session.
type Registry struct {
	mu     sync.RWMutex
	games  map[string]*Game
	marker SessionMarker
	logger *slog.Logger
}

func NewRegistry(marker SessionMarker, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		games:  make(map[string]*Game),
		marker: marker,
		logger: logger,
	}
}

// Put publishes g for its lobby and returns the game it replaced, if any. The caller must
// Stop the previous game before starting g.
func (r *Registry) Put(g *Game) *Game {
	r.mu.Lock()
	prev := r.games[g.LobbyID()]
	r.games[g.LobbyID()] = g
	r.mu.Unlock()

	if prev == nil {
		activeGames.Inc()
	}
	r.mark(g.LobbyID(), true)
	return prev
}

func (r *Registry) Get(lobbyID string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[lobbyID]
	return g, ok
}

// Remove drops g only if it is still the lobby's current game.
func (r *Registry) Remove(g *Game) bool {
	r.mu.Lock()
	current, ok := r.games[g.LobbyID()]
	if ok && current == g {
		delete(r.games, g.LobbyID())
	}
	r.mu.Unlock()

	if !ok || current != g {
		return false
	}
	activeGames.Dec()
	r.mark(g.LobbyID(), false)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Close stops every game and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	games := r.games
	r.games = make(map[string]*Game)
	r.mu.Unlock()

	for id, g := range games {
		g.Stop()
		activeGames.Dec()
		r.mark(id, false)
	}
}

func (r *Registry) mark(lobbyID string, active bool) {
	if r.marker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var err error
	if active {
		err = r.marker.MarkActive(ctx, lobbyID)
	} else {
		err = r.marker.Clear(ctx, lobbyID)
	}
	if err != nil {
		r.logger.Warn("update session marker", "lobby_id", lobbyID, "active", active, "err", err)
	}
}
