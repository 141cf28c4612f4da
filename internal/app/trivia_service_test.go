package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"lol-trivia-service/internal/app"
	"lol-trivia-service/internal/domain"
	"lol-trivia-service/internal/gateway"
	"lol-trivia-service/internal/infra/memory"
)

type oneQuestion struct{}

func (oneQuestion) Generate(_ context.Context, _ []domain.Player, excluded map[domain.QuestionType]struct{}) (domain.Question, error) {
	if _, done := excluded[domain.QuestionRankTier]; done {
		return domain.Question{}, domain.ErrNoQuestionAvailable
	}
	return domain.Question{Type: domain.QuestionRankTier, Text: "Rank?", Options: []string{"GOLD", "IRON"}, Answer: "GOLD"}, nil
}

type failingProvider struct{}

func (failingProvider) FetchPlayerStats(context.Context, string) (domain.PlayerStats, error) {
	return domain.PlayerStats{}, domain.ErrStatsUnavailable
}

func newService(t *testing.T, cfg app.ServiceConfig) (*app.TriviaService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	if cfg.Game.MaxRounds == 0 {
		cfg.Game = app.GameConfig{MaxRounds: 1, RoundSeconds: 60, TickInterval: time.Hour}
	}
	service := app.NewTriviaService(store, oneQuestion{}, gateway.NewHub(128, nil), cfg)
	t.Cleanup(service.Close)
	return service, store
}

func expect(t *testing.T, c *gateway.Client, want string) domain.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-c.Events():
			if !ok {
				t.Fatalf("client closed while waiting for %s", want)
			}
			if e.Type == want {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestCreateLobbyRetriesDuplicateCode(t *testing.T) {
	codes := append(bytes.Repeat([]byte{0}, 12), bytes.Repeat([]byte{1}, 6)...)
	service, _ := newService(t, app.ServiceConfig{CodeSource: bytes.NewReader(codes)})
	ctx := context.Background()

	first, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.Code != "AAAAAA" {
		t.Fatalf("unexpected code %q", first.Code)
	}
	if !first.HasPlayer("Faker#KR1") || first.HostID != "Faker#KR1" {
		t.Fatalf("host missing from lobby %+v", first)
	}

	second, err := service.CreateLobby(ctx, "Caps#EUW1")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.Code != "BBBBBB" || second.ID == first.ID {
		t.Fatalf("expected a regenerated code, got %+v", second)
	}
}

func TestCreateLobbyRejectsInvalidHost(t *testing.T) {
	service, _ := newService(t, app.ServiceConfig{})
	if _, err := service.CreateLobby(context.Background(), "Faker"); !errors.Is(err, domain.ErrInvalidRiotID) {
		t.Fatalf("expected invalid riot id, got %v", err)
	}
}

func TestJoinAndLeaveAnnouncePresence(t *testing.T) {
	service, store := newService(t, app.ServiceConfig{})
	ctx := context.Background()
	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	host, guest := service.Connect(), service.Connect()
	if err := service.JoinLobby(ctx, host, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("host join: %v", err)
	}
	if err := service.JoinLobby(ctx, guest, lobby.ID, "Caps#EUW1"); err != nil {
		t.Fatalf("guest join: %v", err)
	}
	joined := expect(t, host, domain.EventPlayerJoined).Payload.(domain.PlayerPayload)
	if joined.PlayerID != "Faker#KR1" {
		t.Fatalf("expected own join first, got %s", joined.PlayerID)
	}
	joined = expect(t, host, domain.EventPlayerJoined).Payload.(domain.PlayerPayload)
	if joined.PlayerID != "Caps#EUW1" {
		t.Fatalf("expected guest join, got %s", joined.PlayerID)
	}

	stored, err := store.GetLobby(ctx, lobby.ID)
	if err != nil || !stored.HasPlayer("Caps#EUW1") {
		t.Fatalf("guest should be on the roster: %+v %v", stored, err)
	}

	service.LeaveLobby(ctx, guest)
	left := expect(t, host, domain.EventPlayerLeft).Payload.(domain.PlayerPayload)
	if left.PlayerID != "Caps#EUW1" {
		t.Fatalf("unexpected leave %+v", left)
	}
	chat := expect(t, host, domain.EventChatMessage).Payload.(domain.ChatPayload)
	if chat.Player != domain.SystemSender || !strings.Contains(chat.Text, "Caps#EUW1") {
		t.Fatalf("unexpected system chat %+v", chat)
	}
	stored, _ = store.GetLobby(ctx, lobby.ID)
	if stored.HasPlayer("Caps#EUW1") {
		t.Fatalf("guest should be off the roster")
	}
	if err := service.SendChat(ctx, guest, lobby.ID, "hi"); !errors.Is(err, domain.ErrNotInLobby) {
		t.Fatalf("expected not in lobby after leaving, got %v", err)
	}
}

func TestJoinAnotherLobbyLeavesThePreviousOne(t *testing.T) {
	service, store := newService(t, app.ServiceConfig{})
	ctx := context.Background()
	first, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := service.CreateLobby(ctx, "Chovy#KR1")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	watcher, mover := service.Connect(), service.Connect()
	if err := service.JoinLobby(ctx, watcher, first.ID, "Faker#KR1"); err != nil {
		t.Fatalf("watcher join: %v", err)
	}
	if err := service.JoinLobby(ctx, mover, first.ID, "Caps#EUW1"); err != nil {
		t.Fatalf("mover join: %v", err)
	}
	if err := service.StartGame(ctx, first.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	expect(t, watcher, domain.EventQuestion)

	zero := 0
	if accepted, _, err := service.SubmitAnswer(ctx, watcher, first.ID, 0, domain.Answer{Index: &zero}); err != nil || !accepted {
		t.Fatalf("answer not accepted: %v %v", accepted, err)
	}
	progress := expect(t, watcher, domain.EventAnswerProgress).Payload.(domain.AnswerProgressPayload)
	if progress.Answered != 1 || progress.Expected != 2 {
		t.Fatalf("round should wait for the second player: %+v", progress)
	}

	if err := service.JoinLobby(ctx, mover, second.ID, "Caps#EUW1"); err != nil {
		t.Fatalf("move: %v", err)
	}
	left := expect(t, watcher, domain.EventPlayerLeft).Payload.(domain.PlayerPayload)
	if left.PlayerID != "Caps#EUW1" {
		t.Fatalf("unexpected leave %+v", left)
	}
	chat := expect(t, watcher, domain.EventChatMessage).Payload.(domain.ChatPayload)
	if chat.Player != domain.SystemSender || !strings.Contains(chat.Text, "Caps#EUW1") {
		t.Fatalf("unexpected system chat %+v", chat)
	}

	// The only player still connected has answered, so the round closes without the timer.
	results := expect(t, watcher, domain.EventResults).Payload.(domain.ResultsPayload)
	if results.Scores["Faker#KR1"] != 10 {
		t.Fatalf("unexpected scores %v", results.Scores)
	}

	stored, err := store.GetLobby(ctx, first.ID)
	if err != nil || stored.HasPlayer("Caps#EUW1") {
		t.Fatalf("mover should be off the first roster: %+v %v", stored, err)
	}
	stored, err = store.GetLobby(ctx, second.ID)
	if err != nil || !stored.HasPlayer("Caps#EUW1") {
		t.Fatalf("mover should be on the second roster: %+v %v", stored, err)
	}
}

func TestSendChatTruncatesOnCharacterBoundary(t *testing.T) {
	service, _ := newService(t, app.ServiceConfig{})
	ctx := context.Background()
	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := service.Connect()
	if err := service.JoinLobby(ctx, c, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := service.SendChat(ctx, c, lobby.ID, strings.Repeat("a", 499)+"é"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	chat := expect(t, c, domain.EventChatMessage).Payload.(domain.ChatPayload)
	if !utf8.ValidString(chat.Text) {
		t.Fatalf("truncated chat is not valid UTF-8")
	}
	if len(chat.Text) != 499 {
		t.Fatalf("expected the split character to be dropped, got %d bytes", len(chat.Text))
	}

	if err := service.SendChat(ctx, c, lobby.ID, strings.Repeat("b", 600)); err != nil {
		t.Fatalf("chat: %v", err)
	}
	chat = expect(t, c, domain.EventChatMessage).Payload.(domain.ChatPayload)
	if len(chat.Text) != 500 {
		t.Fatalf("expected 500 bytes, got %d", len(chat.Text))
	}
}

func TestSubmitAnswerRequiresMembershipAndGame(t *testing.T) {
	service, _ := newService(t, app.ServiceConfig{})
	ctx := context.Background()
	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := service.Connect()
	one := 0

	if _, _, err := service.SubmitAnswer(ctx, c, lobby.ID, 1, domain.Answer{Index: &one}); !errors.Is(err, domain.ErrNotInLobby) {
		t.Fatalf("expected not in lobby, got %v", err)
	}
	if err := service.JoinLobby(ctx, c, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := service.SubmitAnswer(ctx, c, lobby.ID, 1, domain.Answer{Index: &one}); !errors.Is(err, domain.ErrNoActiveGame) {
		t.Fatalf("expected no active game, got %v", err)
	}
	if err := service.EndGame(ctx, lobby.ID); !errors.Is(err, domain.ErrNoActiveGame) {
		t.Fatalf("expected no active game on end, got %v", err)
	}
}

func TestGameLifecycleClearsStartedFlag(t *testing.T) {
	service, store := newService(t, app.ServiceConfig{})
	ctx := context.Background()
	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := service.Connect()
	if err := service.JoinLobby(ctx, c, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.RequestStart(ctx, c, lobby.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	expect(t, c, domain.EventStartGame)
	q := expect(t, c, domain.EventQuestion).Payload.(domain.QuestionPayload)

	zero := 0
	accepted, round, err := service.SubmitAnswer(ctx, c, lobby.ID, 0, domain.Answer{Index: &zero})
	if err != nil || !accepted || round != q.Round {
		t.Fatalf("answer not accepted: %v %v %d", accepted, err, round)
	}
	results := expect(t, c, domain.EventResults).Payload.(domain.ResultsPayload)
	if results.Scores["Faker#KR1"] != 10 {
		t.Fatalf("unexpected scores %v", results.Scores)
	}
	expect(t, c, domain.EventGameOver)

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := store.GetLobby(ctx, lobby.ID)
		if err != nil {
			t.Fatalf("get lobby: %v", err)
		}
		if !stored.Started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("started flag never cleared")
		}
		time.Sleep(10 * time.Millisecond)
	}
	view, err := service.GetLobby(ctx, lobby.ID)
	if err != nil || view.Game != nil {
		t.Fatalf("finished game should be deregistered: %+v %v", view, err)
	}
}

func TestStartGameReplacesRunningGame(t *testing.T) {
	service, _ := newService(t, app.ServiceConfig{Game: app.GameConfig{MaxRounds: 3, RoundSeconds: 60, TickInterval: time.Hour}})
	ctx := context.Background()
	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := service.Connect()
	if err := service.JoinLobby(ctx, c, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := service.StartGame(ctx, lobby.ID); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		q := expect(t, c, domain.EventQuestion).Payload.(domain.QuestionPayload)
		if q.Round != 1 {
			t.Fatalf("restart should begin at round 1, got %d", q.Round)
		}
	}
	view, err := service.GetLobby(ctx, lobby.ID)
	if err != nil || view.Game == nil {
		t.Fatalf("expected a running game: %+v %v", view, err)
	}
	if view.Game.RoundsAsked != 1 {
		t.Fatalf("expected a fresh game, got %d rounds asked", view.Game.RoundsAsked)
	}
}

func TestStartGameReportsSyncFailure(t *testing.T) {
	store := memory.NewStore()
	hub := gateway.NewHub(128, nil)
	service := app.NewTriviaService(store, oneQuestion{}, hub, app.ServiceConfig{
		Syncer: app.NewSyncer(failingProvider{}, store, time.Hour, nil),
	})
	t.Cleanup(service.Close)
	ctx := context.Background()

	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := service.Connect()
	if err := service.JoinLobby(ctx, c, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	err = service.StartGame(ctx, lobby.ID)
	if !errors.Is(err, domain.ErrStatsUnavailable) {
		t.Fatalf("expected stats unavailable, got %v", err)
	}
	chat := expect(t, c, domain.EventChatMessage).Payload.(domain.ChatPayload)
	if chat.Player != domain.SystemSender || chat.Text != "Error syncing player data. Please try again." {
		t.Fatalf("unexpected chat %+v", chat)
	}
	if view, _ := service.GetLobby(ctx, lobby.ID); view.Game != nil || view.Lobby.Started {
		t.Fatalf("no game should be running after a failed sync")
	}
}

func TestStartGameOnEmptyLobby(t *testing.T) {
	service, _ := newService(t, app.ServiceConfig{})
	ctx := context.Background()
	lobby, err := service.CreateLobby(ctx, "Faker#KR1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.RemovePlayer(ctx, lobby.ID, "Faker#KR1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := service.StartGame(ctx, lobby.ID); !errors.Is(err, domain.ErrEmptyLobby) {
		t.Fatalf("expected empty lobby, got %v", err)
	}
}

func TestGenerateCode(t *testing.T) {
	code, err := app.GenerateCode(bytes.NewReader([]byte{0, 1, 25, 26, 35, 2}))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code != "ABZ09C" {
		t.Fatalf("unexpected code %q", code)
	}
	if _, err := app.GenerateCode(bytes.NewReader(nil)); err == nil {
		t.Fatalf("expected error from an empty source")
	}
}
