package domain

import (
	"strconv"
	"strings"
	"time"
)

// Player is a League account identified by its riot id (gameName#tagLine) together with the
// statistics snapshot the question catalog samples from.
type Player struct {
	ID         string    `json:"id"`
	GameName   string    `json:"gameName"`
	TagLine    string    `json:"tagLine"`
	PUUID      string    `json:"puuid,omitempty"`
	Region     string    `json:"region,omitempty"`
	Rank       string    `json:"rank,omitempty"`
	MostKills  *int      `json:"mostKills,omitempty"`
	MostDeaths *int      `json:"mostDeaths,omitempty"`
	Winrate    *float64  `json:"winrate,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ChampionMastery is the number of mastery points a player has on one champion.
type ChampionMastery struct {
	RiotID       string `json:"riotId"`
	ChampionID   int    `json:"championId"`
	ChampionName string `json:"championName,omitempty"`
	Points       int    `json:"points"`
}

// Label is the text shown to players for the champion.
func (m ChampionMastery) Label() string {
	if m.ChampionName != "" {
		return m.ChampionName
	}
	return strconv.Itoa(m.ChampionID)
}

// Lobby groups the players that play one game session together.
type Lobby struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Started   bool      `json:"started"`
	HostID    string    `json:"hostId"`
	Players   []Player  `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasPlayer reports whether riotID is on the lobby roster.
func (l Lobby) HasPlayer(riotID string) bool {
	for _, p := range l.Players {
		if p.ID == riotID {
			return true
		}
	}
	return false
}

// PlayerStats is what the stats provider returns for one account.
type PlayerStats struct {
	RiotID        string
	GameName      string
	TagLine       string
	PUUID         string
	Region        string
	Rank          string
	MostKills     *int
	MostDeaths    *int
	Winrate       *float64
	GamesAnalyzed int
	Masteries     []ChampionMastery
}

// StatField names a single per-player statistic kept by the store.
type StatField string

const (
	StatMostKills  StatField = "mostKills"
	StatMostDeaths StatField = "mostDeaths"
	StatRank       StatField = "rank"
)

// StatValue is a nullable statistic. Numeric fields set Number, text fields set Text.
type StatValue struct {
	Valid  bool   `json:"valid"`
	Number int    `json:"number,omitempty"`
	Text   string `json:"text,omitempty"`
}

// SortOrder orders mastery records by points.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// QuestionType tags a catalog entry; a game never asks the same type twice.
type QuestionType string

const (
	QuestionLeastPlayed   QuestionType = "least-played-champion"
	QuestionMostPlayed    QuestionType = "most-played-champion"
	QuestionMostKills     QuestionType = "most-kills"
	QuestionMostDeaths    QuestionType = "most-deaths"
	QuestionMasteryPoints QuestionType = "mastery-points"
	QuestionLobbyKiller   QuestionType = "lobby-top-killer"
	QuestionRankTier      QuestionType = "rank-tier"
)

// Question is one generated trivia question. Options is empty for free-response questions.
type Question struct {
	Type      QuestionType `json:"type"`
	Text      string       `json:"text"`
	Options   []string     `json:"options"`
	Answer    string       `json:"-"`
	SubjectID string       `json:"subjectId,omitempty"`
}

// FreeResponse reports whether players type their answer instead of picking an option.
func (q Question) FreeResponse() bool {
	return len(q.Options) == 0
}

// Answer is a participant's submission. Index is nil when no option was picked.
type Answer struct {
	Index *int
	Text  string
}

// Normalize is applied to both the submitted text and the canonical answer before comparing.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Standing is one row of the final scoreboard.
type Standing struct {
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
}

// EndReason explains why a game session stopped.
type EndReason string

const (
	EndCompleted    EndReason = "completed"
	EndNoQuestions  EndReason = "no-questions"
	EndEmptyLobby   EndReason = "empty-lobby"
	EndRosterFailed EndReason = "roster-failed"
	EndError        EndReason = "error"
	EndCancelled    EndReason = "cancelled"
)

// Message is the human readable text sent with game-over.
func (r EndReason) Message() string {
	switch r {
	case EndCompleted:
		return "Game over! The question set is complete."
	case EndNoQuestions:
		return "Game over! There are no more unique questions for this lobby."
	case EndEmptyLobby:
		return "Game ended: everyone left the lobby."
	case EndRosterFailed:
		return "Game ended: the lobby roster could not be loaded."
	case EndCancelled:
		return "Game ended by the host."
	default:
		return "Game ended: something went wrong while preparing the next question."
	}
}

// SplitRiotID splits "gameName#tagLine". ok is false when either half is missing.
func SplitRiotID(riotID string) (gameName, tagLine string, ok bool) {
	gameName, tagLine, found := strings.Cut(riotID, "#")
	if !found || gameName == "" || tagLine == "" {
		return "", "", false
	}
	return gameName, tagLine, true
}
