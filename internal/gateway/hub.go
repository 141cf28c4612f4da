package gateway

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"lol-trivia-service/internal/domain"
)

// Membership is the lobby and identity a connection is attached to.
type Membership struct {
	LobbyID  string
	PlayerID string
}

// Client is one live connection. The transport drains Events and writes them to the wire.
type Client struct {
	id         string
	send       chan domain.Event
	membership Membership
	attached   bool
	closed     bool
}

func (c *Client) ID() string { return c.id }

// Events is closed when the client is unregistered.
func (c *Client) Events() <-chan domain.Event { return c.send }

// Hub tracks connections per lobby and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	lobbies map[string]map[*Client]struct{}
	buffer  int
	logger  *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		lobbies: make(map[string]map[*Client]struct{}),
		buffer:  buffer,
		logger:  logger,
	}
}

func (h *Hub) Register() *Client {
	c := &Client{
		id:   uuid.NewString(),
		send: make(chan domain.Event, h.buffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

// Attach associates c with a lobby and identity, detaching it from any previous lobby first.
// The previous membership is returned when there was one.
func (h *Hub) Attach(c *Client, lobbyID, playerID string) (Membership, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, had := h.detachLocked(c)
	if c.closed {
		return prev, had
	}
	c.membership = Membership{LobbyID: lobbyID, PlayerID: playerID}
	c.attached = true
	members, ok := h.lobbies[lobbyID]
	if !ok {
		members = make(map[*Client]struct{})
		h.lobbies[lobbyID] = members
	}
	members[c] = struct{}{}
	return prev, had
}

// Detach removes c from its lobby.
func (h *Hub) Detach(c *Client) (Membership, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detachLocked(c)
}

// Unregister detaches c and closes its event channel.
func (h *Hub) Unregister(c *Client) (Membership, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, had := h.detachLocked(c)
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	delete(h.clients, c.id)
	return m, had
}

func (h *Hub) detachLocked(c *Client) (Membership, bool) {
	if !c.attached {
		return Membership{}, false
	}
	m := c.membership
	if members, ok := h.lobbies[m.LobbyID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.lobbies, m.LobbyID)
		}
	}
	c.membership = Membership{}
	c.attached = false
	return m, true
}

func (h *Hub) Membership(c *Client) (Membership, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.membership, c.attached
}

// Send delivers e to a single connection.
func (h *Hub) Send(c *Client, e domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(c, e)
}

// BroadcastToLobby delivers e to every connection attached to lobbyID.
func (h *Hub) BroadcastToLobby(lobbyID string, e domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.lobbies[lobbyID] {
		h.deliverLocked(c, e)
	}
}

// Participants returns the distinct player ids connected to lobbyID, sorted.
func (h *Hub) Participants(lobbyID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{}, len(h.lobbies[lobbyID]))
	for c := range h.lobbies[lobbyID] {
		seen[c.membership.PlayerID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) ParticipantCount(lobbyID string) int {
	return len(h.Participants(lobbyID))
}

// Connected reports whether playerID still has at least one connection in lobbyID.
func (h *Hub) Connected(lobbyID, playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.lobbies[lobbyID] {
		if c.membership.PlayerID == playerID {
			return true
		}
	}
	return false
}

// deliverLocked never blocks: a full buffer loses its oldest event so a slow reader cannot
// stall the broadcaster.
func (h *Hub) deliverLocked(c *Client, e domain.Event) {
	if c.closed {
		return
	}
	select {
	case c.send <- e:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- e:
	default:
	}
	h.logger.Warn("client lagging, dropped oldest event", "client_id", c.id, "event", e.Type)
}
