package gateway

import (
	"testing"

	"lol-trivia-service/internal/domain"
)

func TestAttachDetachTracksParticipants(t *testing.T) {
	h := NewHub(4, nil)
	a, b, c := h.Register(), h.Register(), h.Register()

	h.Attach(a, "lobby-1", "Faker#KR1")
	h.Attach(b, "lobby-1", "Faker#KR1")
	h.Attach(c, "lobby-1", "Caps#EUW1")

	got := h.Participants("lobby-1")
	if len(got) != 2 || got[0] != "Caps#EUW1" || got[1] != "Faker#KR1" {
		t.Fatalf("expected distinct sorted participants, got %v", got)
	}

	if m, ok := h.Detach(a); !ok || m.PlayerID != "Faker#KR1" {
		t.Fatalf("unexpected detach result %+v %v", m, ok)
	}
	if !h.Connected("lobby-1", "Faker#KR1") {
		t.Fatalf("second connection should keep Faker#KR1 connected")
	}
	h.Detach(b)
	if h.Connected("lobby-1", "Faker#KR1") {
		t.Fatalf("Faker#KR1 should be gone")
	}
	if h.ParticipantCount("lobby-1") != 1 {
		t.Fatalf("expected 1 participant, got %d", h.ParticipantCount("lobby-1"))
	}
	if _, ok := h.Detach(a); ok {
		t.Fatalf("detaching twice should report no membership")
	}
}

func TestAttachMovesBetweenLobbies(t *testing.T) {
	h := NewHub(4, nil)
	c := h.Register()
	h.Attach(c, "lobby-1", "Faker#KR1")

	prev, had := h.Attach(c, "lobby-2", "Faker#KR1")
	if !had || prev.LobbyID != "lobby-1" {
		t.Fatalf("expected previous membership in lobby-1, got %+v", prev)
	}
	if h.ParticipantCount("lobby-1") != 0 || h.ParticipantCount("lobby-2") != 1 {
		t.Fatalf("connection did not move lobbies")
	}
}

func TestBroadcastDropsOldestWhenFull(t *testing.T) {
	h := NewHub(2, nil)
	c := h.Register()
	h.Attach(c, "lobby-1", "Faker#KR1")

	for _, typ := range []string{"one", "two", "three"} {
		h.BroadcastToLobby("lobby-1", domain.Event{Type: typ})
	}
	first, second := <-c.Events(), <-c.Events()
	if first.Type != "two" || second.Type != "three" {
		t.Fatalf("expected newest events, got %s %s", first.Type, second.Type)
	}
}

func TestBroadcastOnlyReachesLobby(t *testing.T) {
	h := NewHub(4, nil)
	in, out := h.Register(), h.Register()
	h.Attach(in, "lobby-1", "Faker#KR1")
	h.Attach(out, "lobby-2", "Caps#EUW1")

	h.BroadcastToLobby("lobby-1", domain.Event{Type: "hello"})
	if len(in.Events()) != 1 || len(out.Events()) != 0 {
		t.Fatalf("broadcast leaked across lobbies")
	}
}

func TestUnregisterClosesEvents(t *testing.T) {
	h := NewHub(4, nil)
	c := h.Register()
	h.Attach(c, "lobby-1", "Faker#KR1")

	m, had := h.Unregister(c)
	if !had || m.LobbyID != "lobby-1" {
		t.Fatalf("unexpected membership %+v", m)
	}
	if _, open := <-c.Events(); open {
		t.Fatalf("events channel should be closed")
	}
	// delivery and attach after unregister are no-ops
	h.Send(c, domain.Event{Type: "late"})
	h.Attach(c, "lobby-1", "Faker#KR1")
	if h.ParticipantCount("lobby-1") != 0 {
		t.Fatalf("closed client must not rejoin")
	}
	if _, had := h.Unregister(c); had {
		t.Fatalf("second unregister should report no membership")
	}
}
