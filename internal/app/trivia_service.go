package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"lol-trivia-service/internal/domain"
	"lol-trivia-service/internal/gateway"
)

// LobbyStore persists lobbies and their rosters.
type LobbyStore interface {
	CreateLobby(ctx context.Context, lobby domain.Lobby) error
	GetLobby(ctx context.Context, lobbyID string) (domain.Lobby, error)
	GetLobbyPlayers(ctx context.Context, lobbyID string) ([]domain.Player, error)
	AddLobbyPlayer(ctx context.Context, lobbyID, riotID string) error
	RemoveLobbyPlayer(ctx context.Context, lobbyID, riotID string) error
	SetLobbyStarted(ctx context.Context, lobbyID string, started bool) error
}

// StatsStore persists player statistics.
type StatsStore interface {
	StatsReader
	PlayerWriter
	GetPlayer(ctx context.Context, riotID string) (domain.Player, error)
}

// Store is the full persistent store contract.
type Store interface {
	LobbyStore
	StatsStore
}

// Gateway is the connection registry the service drives.
type Gateway interface {
	Notifier
	Register() *gateway.Client
	Attach(c *gateway.Client, lobbyID, playerID string) (gateway.Membership, bool)
	Detach(c *gateway.Client) (gateway.Membership, bool)
	Unregister(c *gateway.Client) (gateway.Membership, bool)
	Membership(c *gateway.Client) (gateway.Membership, bool)
	Connected(lobbyID, playerID string) bool
	Send(c *gateway.Client, e domain.Event)
}

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	codeAttempts    = 5
	maxChatLength   = 500
	syncFailMessage = "Error syncing player data. Please try again."
)

// ServiceConfig wires optional collaborators into TriviaService.
type ServiceConfig struct {
	Game GameConfig
	// Syncer refreshes roster stats before a game starts; nil disables syncing.
	Syncer *Syncer
	Marker SessionMarker
	Logger *slog.Logger
	// CodeSource feeds lobby-code generation; defaults to crypto/rand.
	CodeSource io.Reader
	Now        func() time.Time
}

// LobbyView is a lobby together with its live connection and game state.
type LobbyView struct {
	Lobby     domain.Lobby  `json:"lobby"`
	Connected []string      `json:"connected"`
	Game      *GameSnapshot `json:"game,omitempty"`
}

// TriviaService contains the lobby and game use cases.
type TriviaService struct {
	store     Store
	questions QuestionSource
	hub       Gateway
	registry  *Registry
	syncer    *Syncer
	cfg       GameConfig
	codes     io.Reader
	now       func() time.Time
	logger    *slog.Logger
	baseCtx   context.Context
}

func NewTriviaService(store Store, questions QuestionSource, hub Gateway, cfg ServiceConfig) *TriviaService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codes := cfg.CodeSource
	if codes == nil {
		codes = rand.Reader
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TriviaService{
		store:     store,
		questions: questions,
		hub:       hub,
		registry:  NewRegistry(cfg.Marker, logger),
		syncer:    cfg.Syncer,
		cfg:       cfg.Game.withDefaults(),
		codes:     codes,
		now:       now,
		logger:    logger,
		baseCtx:   context.Background(),
	}
}

// CreateLobby opens a lobby hosted by hostID and puts the host on its roster.
func (s *TriviaService) CreateLobby(ctx context.Context, hostID string) (domain.Lobby, error) {
	if _, _, ok := domain.SplitRiotID(hostID); !ok {
		return domain.Lobby{}, domain.ErrInvalidRiotID
	}

	var lobby domain.Lobby
	for attempt := 0; ; attempt++ {
		code, err := GenerateCode(s.codes)
		if err != nil {
			return domain.Lobby{}, fmt.Errorf("generate lobby code: %w", err)
		}
		lobby = domain.Lobby{
			ID:        uuid.NewString(),
			Code:      code,
			HostID:    hostID,
			CreatedAt: s.now().UTC(),
		}
		err = s.store.CreateLobby(ctx, lobby)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrDuplicateLobbyCode) || attempt+1 >= codeAttempts {
			return domain.Lobby{}, err
		}
		s.logger.Debug("lobby code collision, regenerating", "code", code)
	}

	if err := s.store.AddLobbyPlayer(ctx, lobby.ID, hostID); err != nil {
		return domain.Lobby{}, err
	}
	s.logger.Info("lobby created", "lobby_id", lobby.ID, "code", lobby.Code, "host", hostID)
	return s.store.GetLobby(ctx, lobby.ID)
}

// GetLobby returns the stored lobby with its connected players and game state.
func (s *TriviaService) GetLobby(ctx context.Context, lobbyID string) (LobbyView, error) {
	lobby, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return LobbyView{}, err
	}
	view := LobbyView{Lobby: lobby, Connected: s.hub.Participants(lobbyID)}
	if g, ok := s.registry.Get(lobbyID); ok {
		if snap, err := g.Snapshot(ctx); err == nil {
			view.Game = &snap
		}
	}
	return view, nil
}

// AddPlayer puts riotID on the lobby roster.
func (s *TriviaService) AddPlayer(ctx context.Context, lobbyID, riotID string) (domain.Lobby, error) {
	if _, _, ok := domain.SplitRiotID(riotID); !ok {
		return domain.Lobby{}, domain.ErrInvalidRiotID
	}
	if _, err := s.store.GetLobby(ctx, lobbyID); err != nil {
		return domain.Lobby{}, err
	}
	if err := s.store.AddLobbyPlayer(ctx, lobbyID, riotID); err != nil {
		return domain.Lobby{}, err
	}
	return s.publishLobbyState(ctx, lobbyID)
}

// RemovePlayer takes riotID off the lobby roster.
func (s *TriviaService) RemovePlayer(ctx context.Context, lobbyID, riotID string) (domain.Lobby, error) {
	if err := s.store.RemoveLobbyPlayer(ctx, lobbyID, riotID); err != nil {
		return domain.Lobby{}, err
	}
	return s.publishLobbyState(ctx, lobbyID)
}

// JoinLobby attaches a connection to a lobby as playerID. A connection that was attached
// elsewhere leaves that lobby first.
func (s *TriviaService) JoinLobby(ctx context.Context, c *gateway.Client, lobbyID, playerID string) error {
	if _, _, ok := domain.SplitRiotID(playerID); !ok {
		return domain.ErrInvalidRiotID
	}
	lobby, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if !lobby.HasPlayer(playerID) {
		if err := s.store.AddLobbyPlayer(ctx, lobbyID, playerID); err != nil {
			return err
		}
	}

	prev, had := s.hub.Attach(c, lobbyID, playerID)
	if had && prev != (gateway.Membership{LobbyID: lobbyID, PlayerID: playerID}) {
		s.announceLeave(ctx, prev)
	}

	s.hub.BroadcastToLobby(lobbyID, domain.Event{Type: domain.EventPlayerJoined, Payload: domain.PlayerPayload{PlayerID: playerID}})
	if _, err := s.publishLobbyState(ctx, lobbyID); err != nil {
		s.logger.Warn("publish lobby state", "lobby_id", lobbyID, "err", err)
	}
	s.notifyPresence(lobbyID)
	return nil
}

// Connect registers a new connection that has not joined any lobby yet.
func (s *TriviaService) Connect() *gateway.Client {
	return s.hub.Register()
}

// LeaveLobby detaches a connection from its lobby.
func (s *TriviaService) LeaveLobby(ctx context.Context, c *gateway.Client) {
	if m, ok := s.hub.Detach(c); ok {
		s.announceLeave(ctx, m)
	}
}

// Disconnect is called once a connection is gone for good.
func (s *TriviaService) Disconnect(ctx context.Context, c *gateway.Client) {
	if m, ok := s.hub.Unregister(c); ok {
		s.announceLeave(ctx, m)
	}
}

// SendChat relays a chat line to the lobby the connection has joined.
func (s *TriviaService) SendChat(_ context.Context, c *gateway.Client, lobbyID, text string) error {
	m, err := s.requireMembership(c, lobbyID)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = truncateChat(text)
	s.hub.BroadcastToLobby(lobbyID, domain.Event{Type: domain.EventChatMessage, Payload: domain.ChatPayload{
		Player:    m.PlayerID,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	}})
	return nil
}

// RequestStart starts the game on behalf of a connection that has joined the lobby.
func (s *TriviaService) RequestStart(ctx context.Context, c *gateway.Client, lobbyID string) error {
	if _, err := s.requireMembership(c, lobbyID); err != nil {
		return err
	}
	return s.StartGame(ctx, lobbyID)
}

// StartGame syncs the roster's stats and begins a fresh game for the lobby, replacing any game
// already running there.
func (s *TriviaService) StartGame(ctx context.Context, lobbyID string) error {
	lobby, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if len(lobby.Players) == 0 {
		return domain.ErrEmptyLobby
	}

	if s.syncer != nil {
		if err := s.syncer.SyncRoster(ctx, lobby.Players); err != nil {
			s.logger.Error("sync roster", "lobby_id", lobbyID, "err", err)
			s.hub.BroadcastToLobby(lobbyID, domain.SystemChat(syncFailMessage, s.now()))
			return fmt.Errorf("sync roster: %w", err)
		}
	}

	if err := s.store.SetLobbyStarted(ctx, lobbyID, true); err != nil {
		s.logger.Warn("mark lobby started", "lobby_id", lobbyID, "err", err)
	}
	s.hub.BroadcastToLobby(lobbyID, domain.Event{Type: domain.EventStartGame, Payload: domain.StartGamePayload{LobbyID: lobbyID}})

	g := NewGame(s.baseCtx, lobbyID, s.cfg, GameDeps{
		Roster:    s.store,
		Questions: s.questions,
		Notifier:  s.hub,
		Logger:    s.logger,
		Now:       s.now,
		OnFinish:  s.gameFinished,
	})
	if prev := s.registry.Put(g); prev != nil {
		s.logger.Info("replacing running game", "lobby_id", lobbyID)
		prev.Stop()
	}
	return g.Start(ctx)
}

// SubmitAnswer forwards a connection's answer to its lobby's game. round may be zero.
func (s *TriviaService) SubmitAnswer(ctx context.Context, c *gateway.Client, lobbyID string, round int, a domain.Answer) (bool, int, error) {
	m, err := s.requireMembership(c, lobbyID)
	if err != nil {
		return false, 0, err
	}
	g, ok := s.registry.Get(lobbyID)
	if !ok {
		return false, 0, domain.ErrNoActiveGame
	}
	return g.Submit(ctx, m.PlayerID, round, a)
}

// EndGame finishes the lobby's running game and broadcasts its standings.
func (s *TriviaService) EndGame(ctx context.Context, lobbyID string) error {
	g, ok := s.registry.Get(lobbyID)
	if !ok {
		return domain.ErrNoActiveGame
	}
	return g.End(ctx, domain.EndCancelled)
}

// Close stops every running game.
func (s *TriviaService) Close() {
	s.registry.Close()
}

// Send writes an event to a single connection.
func (s *TriviaService) Send(c *gateway.Client, e domain.Event) {
	s.hub.Send(c, e)
}

func (s *TriviaService) gameFinished(g *Game, reason domain.EndReason) {
	// A replacement game already owns the lobby's started flag.
	if !s.registry.Remove(g) {
		return
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, 5*time.Second)
	defer cancel()
	if err := s.store.SetLobbyStarted(ctx, g.LobbyID(), false); err != nil {
		s.logger.Warn("clear lobby started flag", "lobby_id", g.LobbyID(), "reason", reason, "err", err)
	}
}

func (s *TriviaService) announceLeave(ctx context.Context, m gateway.Membership) {
	if !s.hub.Connected(m.LobbyID, m.PlayerID) {
		if err := s.store.RemoveLobbyPlayer(ctx, m.LobbyID, m.PlayerID); err != nil && !errors.Is(err, domain.ErrLobbyNotFound) {
			s.logger.Warn("remove player from lobby", "lobby_id", m.LobbyID, "riot_id", m.PlayerID, "err", err)
		}
		s.hub.BroadcastToLobby(m.LobbyID, domain.Event{Type: domain.EventPlayerLeft, Payload: domain.PlayerPayload{PlayerID: m.PlayerID}})
		s.hub.BroadcastToLobby(m.LobbyID, domain.SystemChat(m.PlayerID+" has left the lobby.", s.now()))
		if _, err := s.publishLobbyState(ctx, m.LobbyID); err != nil && !errors.Is(err, domain.ErrLobbyNotFound) {
			s.logger.Warn("publish lobby state", "lobby_id", m.LobbyID, "err", err)
		}
	}
	s.notifyPresence(m.LobbyID)
}

func (s *TriviaService) notifyPresence(lobbyID string) {
	if g, ok := s.registry.Get(lobbyID); ok {
		g.ParticipantsChanged()
	}
}

func (s *TriviaService) publishLobbyState(ctx context.Context, lobbyID string) (domain.Lobby, error) {
	lobby, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return domain.Lobby{}, err
	}
	s.hub.BroadcastToLobby(lobbyID, domain.Event{Type: domain.EventLobbyState, Payload: domain.LobbyStatePayload{
		Lobby:     lobby,
		Connected: s.hub.Participants(lobbyID),
	}})
	return lobby, nil
}

func (s *TriviaService) requireMembership(c *gateway.Client, lobbyID string) (gateway.Membership, error) {
	m, ok := s.hub.Membership(c)
	if !ok || m.LobbyID != lobbyID {
		return gateway.Membership{}, domain.ErrNotInLobby
	}
	return m, nil
}

// truncateChat caps text at maxChatLength bytes without splitting a multi-byte character.
func truncateChat(text string) string {
	if len(text) <= maxChatLength {
		return text
	}
	cut := maxChatLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// GenerateCode returns a short uppercase join code read from src.
func GenerateCode(src io.Reader) (string, error) {
	code := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(src, limit)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
