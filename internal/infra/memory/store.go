package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lol-trivia-service/internal/domain"
)

// Store is an in-memory implementation of the persistent store, used for local runs and tests.
type Store struct {
	mu        sync.RWMutex
	lobbies   map[string]*lobbyRecord
	codes     map[string]string
	players   map[string]domain.Player
	masteries map[string][]domain.ChampionMastery
	now       func() time.Time
}

type lobbyRecord struct {
	lobby   domain.Lobby
	members []string
}

func NewStore() *Store {
	return &Store{
		lobbies:   make(map[string]*lobbyRecord),
		codes:     make(map[string]string),
		players:   make(map[string]domain.Player),
		masteries: make(map[string][]domain.ChampionMastery),
		now:       time.Now,
	}
}

// SeedPlayer stores a player snapshot directly, bypassing the stats provider.
func (s *Store) SeedPlayer(p domain.Player, masteries ...domain.ChampionMastery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.GameName == "" {
		p.GameName, p.TagLine, _ = domain.SplitRiotID(p.ID)
	}
	s.players[p.ID] = p
	rows := make([]domain.ChampionMastery, len(masteries))
	for i, m := range masteries {
		m.RiotID = p.ID
		rows[i] = m
	}
	s.masteries[p.ID] = rows
}

func (s *Store) CreateLobby(_ context.Context, lobby domain.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[lobby.Code]; taken {
		return domain.ErrDuplicateLobbyCode
	}
	lobby.Players = nil
	s.lobbies[lobby.ID] = &lobbyRecord{lobby: lobby}
	s.codes[lobby.Code] = lobby.ID
	return nil
}

func (s *Store) GetLobby(_ context.Context, lobbyID string) (domain.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	lobby := rec.lobby
	lobby.Players = s.rosterLocked(rec)
	return lobby, nil
}

func (s *Store) GetLobbyPlayers(_ context.Context, lobbyID string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	return s.rosterLocked(rec), nil
}

func (s *Store) rosterLocked(rec *lobbyRecord) []domain.Player {
	roster := make([]domain.Player, 0, len(rec.members))
	for _, id := range rec.members {
		roster = append(roster, s.players[id])
	}
	return roster
}

// AddLobbyPlayer creates a stub player record when riotID has never been synced.
func (s *Store) AddLobbyPlayer(_ context.Context, lobbyID, riotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.ErrLobbyNotFound
	}
	if _, ok := s.players[riotID]; !ok {
		name, tag, _ := domain.SplitRiotID(riotID)
		s.players[riotID] = domain.Player{ID: riotID, GameName: name, TagLine: tag}
	}
	for _, id := range rec.members {
		if id == riotID {
			return nil
		}
	}
	rec.members = append(rec.members, riotID)
	return nil
}

func (s *Store) RemoveLobbyPlayer(_ context.Context, lobbyID, riotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.ErrLobbyNotFound
	}
	for i, id := range rec.members {
		if id == riotID {
			rec.members = append(rec.members[:i], rec.members[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) SetLobbyStarted(_ context.Context, lobbyID string, started bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.ErrLobbyNotFound
	}
	rec.lobby.Started = started
	return nil
}

func (s *Store) GetPlayer(_ context.Context, riotID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[riotID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return p, nil
}

func (s *Store) SavePlayerStats(_ context.Context, stats domain.PlayerStats) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := domain.Player{
		ID:         stats.RiotID,
		GameName:   stats.GameName,
		TagLine:    stats.TagLine,
		PUUID:      stats.PUUID,
		Region:     stats.Region,
		Rank:       stats.Rank,
		MostKills:  stats.MostKills,
		MostDeaths: stats.MostDeaths,
		Winrate:    stats.Winrate,
		UpdatedAt:  s.now().UTC(),
	}
	s.players[p.ID] = p
	rows := make([]domain.ChampionMastery, len(stats.Masteries))
	for i, m := range stats.Masteries {
		m.RiotID = p.ID
		rows[i] = m
	}
	s.masteries[p.ID] = rows
	return p, nil
}

func (s *Store) GetPlayerStat(_ context.Context, riotID string, field domain.StatField) (domain.StatValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[riotID]
	if !ok {
		return domain.StatValue{}, domain.ErrPlayerNotFound
	}
	switch field {
	case domain.StatMostKills:
		return intStat(p.MostKills), nil
	case domain.StatMostDeaths:
		return intStat(p.MostDeaths), nil
	case domain.StatRank:
		rank := strings.TrimSpace(p.Rank)
		return domain.StatValue{Valid: rank != "", Text: rank}, nil
	default:
		return domain.StatValue{}, nil
	}
}

func (s *Store) GetTopMasteries(_ context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.players[riotID]; !ok {
		return nil, domain.ErrPlayerNotFound
	}
	rows := append([]domain.ChampionMastery(nil), s.masteries[riotID]...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points == rows[j].Points {
			return rows[i].ChampionID < rows[j].ChampionID
		}
		if order == domain.Ascending {
			return rows[i].Points < rows[j].Points
		}
		return rows[i].Points > rows[j].Points
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func intStat(v *int) domain.StatValue {
	if v == nil {
		return domain.StatValue{}
	}
	return domain.StatValue{Valid: true, Number: *v}
}
