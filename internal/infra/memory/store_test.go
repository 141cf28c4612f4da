package memory

import (
	"context"
	"errors"
	"testing"

	"lol-trivia-service/internal/domain"
)

func TestStoreLobbyLifecycle(t *testing.T) {
	ctx := context.Background()
	store := seededStore()

	if err := store.CreateLobby(ctx, domain.Lobby{ID: "l1", Code: "ABC123", HostID: "Faker#KR1"}); err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	if err := store.CreateLobby(ctx, domain.Lobby{ID: "l2", Code: "ABC123"}); !errors.Is(err, domain.ErrDuplicateLobbyCode) {
		t.Fatalf("expected duplicate code error, got %v", err)
	}

	_ = store.AddLobbyPlayer(ctx, "l1", "Faker#KR1")
	_ = store.AddLobbyPlayer(ctx, "l1", "Caps#EUW1")
	_ = store.AddLobbyPlayer(ctx, "l1", "Faker#KR1")

	lobby, err := store.GetLobby(ctx, "l1")
	if err != nil {
		t.Fatalf("get lobby: %v", err)
	}
	if len(lobby.Players) != 2 || lobby.Players[0].ID != "Faker#KR1" || lobby.Players[1].ID != "Caps#EUW1" {
		t.Fatalf("expected roster in join order without duplicates, got %+v", lobby.Players)
	}
	if lobby.Players[1].GameName != "Caps" || lobby.Players[1].TagLine != "EUW1" {
		t.Fatalf("expected stub player split from riot id, got %+v", lobby.Players[1])
	}

	if err := store.RemoveLobbyPlayer(ctx, "l1", "Faker#KR1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	players, _ := store.GetLobbyPlayers(ctx, "l1")
	if len(players) != 1 || players[0].ID != "Caps#EUW1" {
		t.Fatalf("expected only Caps left, got %+v", players)
	}

	if _, err := store.GetLobby(ctx, "missing"); !errors.Is(err, domain.ErrLobbyNotFound) {
		t.Fatalf("expected ErrLobbyNotFound, got %v", err)
	}
}

func TestStoreTopMasteriesOrdering(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	desc, err := store.GetTopMasteries(ctx, "Faker#KR1", 2, domain.Descending)
	if err != nil {
		t.Fatalf("desc: %v", err)
	}
	if len(desc) != 2 || desc[0].Label() != "LeBlanc" || desc[1].Label() != "Orianna" {
		t.Fatalf("unexpected descending order %+v", desc)
	}

	asc, _ := store.GetTopMasteries(ctx, "Faker#KR1", 4, domain.Ascending)
	if len(asc) != 3 || asc[0].Label() != "Twisted Fate" {
		t.Fatalf("unexpected ascending order %+v", asc)
	}
}

func TestStorePlayerStatNullable(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	deaths, err := store.GetPlayerStat(ctx, "Faker#KR1", domain.StatMostDeaths)
	if err != nil {
		t.Fatalf("deaths: %v", err)
	}
	if deaths.Valid {
		t.Fatalf("expected null deaths, got %+v", deaths)
	}
	rank, _ := store.GetPlayerStat(ctx, "Faker#KR1", domain.StatRank)
	if !rank.Valid || rank.Text != "CHALLENGER" {
		t.Fatalf("unexpected rank %+v", rank)
	}
}
