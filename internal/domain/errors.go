package domain

import "errors"

var (
	// ErrNoQuestionAvailable is returned when every question type is excluded or lacks data.
	ErrNoQuestionAvailable = errors.New("no question available")
	// ErrEmptyLobby indicates the lobby has no roster or no connected participants.
	ErrEmptyLobby = errors.New("lobby is empty")
	// ErrRosterFetchFailed wraps store failures while loading the lobby roster.
	ErrRosterFetchFailed = errors.New("lobby roster fetch failed")
	// ErrLobbyNotFound is returned when a lobby id is unknown.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrDuplicateLobbyCode is returned by stores when a generated join code is already taken.
	ErrDuplicateLobbyCode = errors.New("lobby code already in use")
	// ErrPlayerNotFound is returned when a riot id has never been stored.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrNoActiveGame is returned when answers are sent to a lobby without a running game.
	ErrNoActiveGame = errors.New("no active game for lobby")
	// ErrNotInLobby indicates a connection acted on a lobby it has not joined.
	ErrNotInLobby = errors.New("connection has not joined this lobby")
	// ErrInvalidRiotID indicates an identifier that is not gameName#tagLine.
	ErrInvalidRiotID = errors.New("riot id must look like gameName#tagLine")
	// ErrStatsUnavailable is returned by the stats provider when an account has no data.
	ErrStatsUnavailable = errors.New("player stats unavailable")
	// ErrProviderRequest wraps non-2xx responses from the stats provider.
	ErrProviderRequest = errors.New("stats provider request failed")
)
