package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "rounds_started_total",
		Help:      "Rounds started, by question type.",
	}, []string{"type"})

	roundsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "rounds_closed_total",
		Help:      "Rounds closed, by what closed them.",
	}, []string{"trigger"})

	answersReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "answers_total",
		Help:      "Answer submissions, by outcome.",
	}, []string{"outcome"})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "games_finished_total",
		Help:      "Finished game sessions, by end reason.",
	}, []string{"reason"})

	activeGames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trivia",
		Name:      "active_games",
		Help:      "Game sessions currently held in the registry.",
	})

	rosterSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trivia",
		Name:      "roster_sync_seconds",
		Help:      "Time spent refreshing roster stats from the stats provider.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
	})
)

const (
	triggerTimeout     = "timeout"
	triggerAllAnswered = "all-answered"
	triggerEmptyLobby  = "empty-lobby"

	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
)
