package domain

import "time"

// Outbound event names sent over the lobby connection.
const (
	EventQuestion       = "question"
	EventTick           = "tick"
	EventAnswerProgress = "answer-progress"
	EventResults        = "results"
	EventGameOver       = "game-over"
	EventLobbyState     = "lobby-state"
	EventPlayerJoined   = "player-joined"
	EventPlayerLeft     = "player-left"
	EventChatMessage    = "chat-message"
	EventStartGame      = "start-game"
	EventAnswerAccepted = "answer-accepted"
	EventError          = "error"
)

// SystemSender is the chat author used for server generated messages.
const SystemSender = "SYSTEM"

// Event is a typed message fanned out to lobby connections.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type QuestionPayload struct {
	Round           int          `json:"round"`
	TotalRounds     int          `json:"totalRounds"`
	Type            QuestionType `json:"type"`
	Text            string       `json:"text"`
	Options         []string     `json:"options"`
	DurationSeconds int          `json:"durationSeconds"`
}

type TickPayload struct {
	Round            int `json:"round"`
	SecondsRemaining int `json:"secondsRemaining"`
}

type AnswerProgressPayload struct {
	Round    int `json:"round"`
	Answered int `json:"answered"`
	Expected int `json:"expected"`
}

// ResultsPayload is broadcast once per closed round.
type ResultsPayload struct {
	Round           int            `json:"round"`
	CorrectAnswer   string         `json:"correctAnswer"`
	Options         []string       `json:"options"`
	PerOptionCounts []int          `json:"perOptionCounts"`
	Correct         []string       `json:"correct"`
	Scores          map[string]int `json:"scores"`
	PointDeltas     map[string]int `json:"pointDeltas"`
}

type GameOverPayload struct {
	Reason    EndReason  `json:"reason"`
	Message   string     `json:"message"`
	Standings []Standing `json:"standings"`
}

type LobbyStatePayload struct {
	Lobby     Lobby    `json:"lobby"`
	Connected []string `json:"connected"`
}

type PlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type ChatPayload struct {
	Player    string `json:"player"`
	Text      string `json:"text"`
	System    bool   `json:"system,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type StartGamePayload struct {
	LobbyID string `json:"lobbyId"`
}

type AnswerAcceptedPayload struct {
	Round    int  `json:"round"`
	Accepted bool `json:"accepted"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// SystemChat builds a chat-message event authored by the server.
func SystemChat(text string, now time.Time) Event {
	return Event{Type: EventChatMessage, Payload: ChatPayload{
		Player:    SystemSender,
		Text:      text,
		System:    true,
		Timestamp: now.UnixMilli(),
	}}
}
