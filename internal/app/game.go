package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lol-trivia-service/internal/domain"
)

// Notifier fans events out to the connections attached to a lobby.
type Notifier interface {
	BroadcastToLobby(lobbyID string, event domain.Event)
	// Participants lists the distinct player ids currently connected to the lobby.
	Participants(lobbyID string) []string
}

// QuestionSource produces the next question for a roster.
type QuestionSource interface {
	Generate(ctx context.Context, roster []domain.Player, excluded map[domain.QuestionType]struct{}) (domain.Question, error)
}

// RosterSource loads the players registered in a lobby.
type RosterSource interface {
	GetLobbyPlayers(ctx context.Context, lobbyID string) ([]domain.Player, error)
}

// GameConfig holds the round timing and scoring knobs.
type GameConfig struct {
	MaxRounds        int
	RoundSeconds     int
	TickInterval     time.Duration
	InterRoundDelay  time.Duration
	PointsPerCorrect int
}

// DefaultGameConfig is six rounds of fifteen seconds with a five second pause.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		MaxRounds:        6,
		RoundSeconds:     15,
		TickInterval:     time.Second,
		InterRoundDelay:  5 * time.Second,
		PointsPerCorrect: 10,
	}
}

func (c GameConfig) withDefaults() GameConfig {
	d := DefaultGameConfig()
	if c.MaxRounds <= 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.RoundSeconds <= 0 {
		c.RoundSeconds = d.RoundSeconds
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.InterRoundDelay < 0 {
		c.InterRoundDelay = d.InterRoundDelay
	}
	if c.PointsPerCorrect <= 0 {
		c.PointsPerCorrect = d.PointsPerCorrect
	}
	return c
}

type phase int

const (
	phaseIdle phase = iota
	phaseRoundActive
	phaseRoundClosing
	phaseGameOver
)

func (p phase) String() string {
	switch p {
	case phaseRoundActive:
		return "round-active"
	case phaseRoundClosing:
		return "round-closing"
	case phaseGameOver:
		return "game-over"
	default:
		return "idle"
	}
}

// GameSnapshot is a race-free view of a running game.
type GameSnapshot struct {
	LobbyID     string         `json:"lobbyId"`
	Phase       string         `json:"phase"`
	Round       int            `json:"round"`
	RoundsAsked int            `json:"roundsAsked"`
	MaxRounds   int            `json:"maxRounds"`
	Answered    int            `json:"answered"`
	Remaining   int            `json:"secondsRemaining"`
	Scores      map[string]int `json:"scores"`
}

type gameMsg interface{ isGameMsg() }

type startMsg struct{}

type answerMsg struct {
	participant string
	round       int
	answer      domain.Answer
	reply       chan submitReply
}

type submitReply struct {
	accepted bool
	round    int
}

type presenceMsg struct{}

type endMsg struct{ reason domain.EndReason }

type snapshotMsg struct{ reply chan GameSnapshot }

func (startMsg) isGameMsg()    {}
func (answerMsg) isGameMsg()   {}
func (presenceMsg) isGameMsg() {}
func (endMsg) isGameMsg()      {}
func (snapshotMsg) isGameMsg() {}

// Game runs the round lifecycle of one lobby. All state below the channels is owned by the
// run goroutine; other goroutines talk to it through the inbox.
type Game struct {
	lobbyID   string
	cfg       GameConfig
	roster    RosterSource
	questions QuestionSource
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
	onFinish  func(*Game, domain.EndReason)

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan gameMsg
	done   chan struct{}

	phase    phase
	progress *Progress
	ledger   *Ledger
	round    *Round
	ticker   *time.Ticker
	tickC    <-chan time.Time
	delay    *time.Timer
	delayC   <-chan time.Time
}

// GameDeps groups the collaborators of a Game.
type GameDeps struct {
	Roster    RosterSource
	Questions QuestionSource
	Notifier  Notifier
	Logger    *slog.Logger
	Now       func() time.Time
	// OnFinish runs on the game goroutine once the game reaches game over.
	OnFinish func(*Game, domain.EndReason)
}

// NewGame starts an idle game goroutine for lobbyID. Call Start to begin round one.
func NewGame(parent context.Context, lobbyID string, cfg GameConfig, deps GameDeps) *Game {
	ctx, cancel := context.WithCancel(parent)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	g := &Game{
		lobbyID:   lobbyID,
		cfg:       cfg.withDefaults(),
		roster:    deps.Roster,
		questions: deps.Questions,
		notifier:  deps.Notifier,
		logger:    logger.With("lobby_id", lobbyID),
		now:       now,
		onFinish:  deps.OnFinish,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan gameMsg, 64),
		done:      make(chan struct{}),
	}
	go g.run()
	return g
}

func (g *Game) LobbyID() string { return g.lobbyID }

// Done is closed once the game goroutine has exited and its timers are stopped.
func (g *Game) Done() <-chan struct{} { return g.done }

// Start begins round one. Calling it on a running game has no effect.
func (g *Game) Start(ctx context.Context) error {
	return g.send(ctx, startMsg{})
}

// Submit hands an answer to the active round. round may be zero to mean "whatever round is
// active". It reports whether the answer was recorded and the round it was recorded for.
func (g *Game) Submit(ctx context.Context, participant string, round int, a domain.Answer) (bool, int, error) {
	reply := make(chan submitReply, 1)
	if err := g.send(ctx, answerMsg{participant: participant, round: round, answer: a, reply: reply}); err != nil {
		return false, 0, err
	}
	select {
	case r := <-reply:
		return r.accepted, r.round, nil
	case <-g.done:
		return false, 0, domain.ErrNoActiveGame
	case <-ctx.Done():
		return false, 0, ctx.Err()
	}
}

// ParticipantsChanged tells the game that connections joined or left its lobby.
func (g *Game) ParticipantsChanged() {
	_ = g.send(context.Background(), presenceMsg{})
}

// End finishes the game with reason, broadcasting final standings.
func (g *Game) End(ctx context.Context, reason domain.EndReason) error {
	return g.send(ctx, endMsg{reason: reason})
}

// Stop cancels the game without a game-over broadcast and waits for its goroutine to exit.
func (g *Game) Stop() {
	g.cancel()
	<-g.done
}

func (g *Game) Snapshot(ctx context.Context) (GameSnapshot, error) {
	reply := make(chan GameSnapshot, 1)
	if err := g.send(ctx, snapshotMsg{reply: reply}); err != nil {
		return GameSnapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-g.done:
		return GameSnapshot{}, domain.ErrNoActiveGame
	case <-ctx.Done():
		return GameSnapshot{}, ctx.Err()
	}
}

func (g *Game) send(ctx context.Context, msg gameMsg) error {
	select {
	case <-g.done:
		return domain.ErrNoActiveGame
	default:
	}
	select {
	case g.inbox <- msg:
		return nil
	case <-g.done:
		return domain.ErrNoActiveGame
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Game) run() {
	defer close(g.done)
	defer g.stopTimers()

	for g.phase != phaseGameOver {
		select {
		case <-g.ctx.Done():
			return
		case msg := <-g.inbox:
			g.handle(msg)
		case <-g.tickC:
			g.onTick()
		case <-g.delayC:
			g.delay, g.delayC = nil, nil
			g.beginRound()
		}
	}
}

func (g *Game) handle(msg gameMsg) {
	switch m := msg.(type) {
	case startMsg:
		if g.progress != nil {
			return
		}
		g.progress = NewProgress(g.cfg.MaxRounds)
		g.ledger = NewLedger(g.cfg.PointsPerCorrect, nil)
		g.logger.Info("game started", "max_rounds", g.cfg.MaxRounds)
		g.beginRound()

	case answerMsg:
		m.reply <- g.submit(m)

	case presenceMsg:
		g.onPresence()

	case endMsg:
		if g.progress == nil {
			g.progress = NewProgress(g.cfg.MaxRounds)
		}
		g.finish(m.reason)

	case snapshotMsg:
		m.reply <- g.snapshot()
	}
}

// beginRound is the Idle -> RoundActive transition.
func (g *Game) beginRound() {
	if g.progress.Exhausted() {
		g.finish(domain.EndCompleted)
		return
	}

	roster, err := g.roster.GetLobbyPlayers(g.ctx, g.lobbyID)
	if err != nil {
		if g.ctx.Err() != nil {
			return
		}
		g.logger.Error("load roster", "err", errors.Join(domain.ErrRosterFetchFailed, err))
		g.finish(domain.EndRosterFailed)
		return
	}
	if len(roster) == 0 || len(g.notifier.Participants(g.lobbyID)) == 0 {
		g.finish(domain.EndEmptyLobby)
		return
	}
	ids := make([]string, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
	}
	g.ledger.Ensure(ids)

	q, err := g.questions.Generate(g.ctx, roster, g.progress.Excluded())
	switch {
	case errors.Is(err, domain.ErrNoQuestionAvailable):
		g.finish(domain.EndNoQuestions)
		return
	case err != nil:
		if g.ctx.Err() != nil {
			return
		}
		g.logger.Error("generate question", "err", err)
		g.finish(domain.EndError)
		return
	}
	if err := g.progress.Record(q.Type); err != nil {
		g.logger.Error("record question", "err", err)
		g.finish(domain.EndError)
		return
	}

	g.round = newRound(g.progress.Asked(), q, g.cfg.RoundSeconds)
	g.phase = phaseRoundActive
	g.ticker = time.NewTicker(g.cfg.TickInterval)
	g.tickC = g.ticker.C
	roundsStarted.WithLabelValues(string(q.Type)).Inc()

	g.logger.Debug("round started", "round", g.round.Number, "type", q.Type)
	g.broadcast(domain.EventQuestion, domain.QuestionPayload{
		Round:           g.round.Number,
		TotalRounds:     g.cfg.MaxRounds,
		Type:            q.Type,
		Text:            q.Text,
		Options:         nonNil(q.Options),
		DurationSeconds: g.cfg.RoundSeconds,
	})
}

func (g *Game) submit(m answerMsg) submitReply {
	if g.phase != phaseRoundActive || g.round == nil {
		answersReceived.WithLabelValues(outcomeRejected).Inc()
		return submitReply{}
	}
	if m.round != 0 && m.round != g.round.Number {
		answersReceived.WithLabelValues(outcomeRejected).Inc()
		return submitReply{round: g.round.Number}
	}
	number := g.round.Number
	if !g.round.Submit(m.participant, m.answer) {
		answersReceived.WithLabelValues(outcomeRejected).Inc()
		return submitReply{round: number}
	}
	answersReceived.WithLabelValues(outcomeAccepted).Inc()

	participants := g.notifier.Participants(g.lobbyID)
	g.broadcast(domain.EventAnswerProgress, domain.AnswerProgressPayload{
		Round:    number,
		Answered: g.round.AnswerCount(),
		Expected: len(participants),
	})
	g.closeIfEveryoneAnswered(participants)
	return submitReply{accepted: true, round: number}
}

func (g *Game) onTick() {
	if g.phase != phaseRoundActive || g.round == nil {
		g.stopTicker()
		return
	}
	remaining := g.round.Tick()
	g.broadcast(domain.EventTick, domain.TickPayload{Round: g.round.Number, SecondsRemaining: remaining})
	if remaining <= 0 {
		g.closeRound(triggerTimeout)
	}
}

func (g *Game) onPresence() {
	participants := g.notifier.Participants(g.lobbyID)
	switch g.phase {
	case phaseRoundActive:
		if len(participants) == 0 {
			g.closeRound(triggerEmptyLobby)
			return
		}
		g.closeIfEveryoneAnswered(participants)
	case phaseIdle:
		if g.progress != nil && len(participants) == 0 {
			g.finish(domain.EndEmptyLobby)
		}
	}
}

// closeIfEveryoneAnswered closes the round once every connected participant has an answer.
func (g *Game) closeIfEveryoneAnswered(participants []string) {
	if len(participants) == 0 {
		g.closeRound(triggerEmptyLobby)
		return
	}
	for _, p := range participants {
		if !g.round.Answered(p) {
			return
		}
	}
	g.closeRound(triggerAllAnswered)
}

// closeRound is RoundActive -> RoundClosing -> (Idle with delay armed | GameOver).
func (g *Game) closeRound(trigger string) {
	g.phase = phaseRoundClosing
	g.stopTicker()
	g.round.Close()
	roundsClosed.WithLabelValues(trigger).Inc()

	tally := g.round.Tally()
	scores, deltas := g.ledger.Apply(tally.Correct)
	g.broadcast(domain.EventResults, domain.ResultsPayload{
		Round:           g.round.Number,
		CorrectAnswer:   g.round.Question.Answer,
		Options:         nonNil(g.round.Question.Options),
		PerOptionCounts: tally.Counts,
		Correct:         nonNil(tally.Correct),
		Scores:          scores,
		PointDeltas:     deltas,
	})
	g.logger.Debug("round closed", "round", g.round.Number, "trigger", trigger, "correct", len(tally.Correct))
	g.round = nil

	switch {
	case g.progress.Exhausted():
		g.finish(domain.EndCompleted)
	case len(g.notifier.Participants(g.lobbyID)) == 0:
		g.finish(domain.EndEmptyLobby)
	default:
		g.phase = phaseIdle
		g.delay = time.NewTimer(g.cfg.InterRoundDelay)
		g.delayC = g.delay.C
	}
}

func (g *Game) finish(reason domain.EndReason) {
	if g.phase == phaseGameOver {
		return
	}
	g.stopTimers()
	g.round = nil
	g.phase = phaseGameOver

	var standings []domain.Standing
	if g.ledger != nil {
		standings = g.ledger.Standings(3)
	}
	g.broadcast(domain.EventGameOver, domain.GameOverPayload{
		Reason:    reason,
		Message:   reason.Message(),
		Standings: nonNil(standings),
	})
	g.notifier.BroadcastToLobby(g.lobbyID, domain.SystemChat(reason.Message(), g.now()))
	gamesFinished.WithLabelValues(string(reason)).Inc()
	g.logger.Info("game over", "reason", reason, "rounds", g.progress.Asked())

	if g.onFinish != nil {
		g.onFinish(g, reason)
	}
}

func (g *Game) snapshot() GameSnapshot {
	s := GameSnapshot{LobbyID: g.lobbyID, Phase: g.phase.String(), MaxRounds: g.cfg.MaxRounds}
	if g.progress != nil {
		s.RoundsAsked = g.progress.Asked()
	}
	if g.ledger != nil {
		s.Scores = g.ledger.Scores()
	}
	if g.round != nil {
		s.Round = g.round.Number
		s.Answered = g.round.AnswerCount()
		s.Remaining = g.round.Remaining
	}
	return s
}

func (g *Game) broadcast(eventType string, payload any) {
	g.notifier.BroadcastToLobby(g.lobbyID, domain.Event{Type: eventType, Payload: payload})
}

func (g *Game) stopTicker() {
	if g.ticker != nil {
		g.ticker.Stop()
	}
	g.ticker, g.tickC = nil, nil
}

func (g *Game) stopTimers() {
	g.stopTicker()
	if g.delay != nil {
		g.delay.Stop()
	}
	g.delay, g.delayC = nil, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
