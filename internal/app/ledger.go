package app

import (
	"sort"

	"lol-trivia-service/internal/domain"
)

// Ledger keeps cumulative points per player for one game. Scores only ever go up.
type Ledger struct {
	points int
	scores map[string]int
	order  []string
}

func NewLedger(pointsPerCorrect int, roster []string) *Ledger {
	l := &Ledger{
		points: pointsPerCorrect,
		scores: make(map[string]int, len(roster)),
	}
	l.Ensure(roster)
	return l
}

// Ensure adds players at zero points; existing scores are left alone.
func (l *Ledger) Ensure(ids []string) {
	for _, id := range ids {
		if _, ok := l.scores[id]; ok || id == "" {
			continue
		}
		l.scores[id] = 0
		l.order = append(l.order, id)
	}
}

// Apply awards the fixed per-round points to each correct participant and returns the
// updated scores and the per-player deltas for this round.
func (l *Ledger) Apply(correct []string) (map[string]int, map[string]int) {
	l.Ensure(correct)
	deltas := make(map[string]int, len(l.scores))
	for _, id := range l.order {
		deltas[id] = 0
	}
	for _, id := range correct {
		if deltas[id] > 0 {
			continue
		}
		deltas[id] = l.points
		l.scores[id] += l.points
	}
	return l.Scores(), deltas
}

// Scores returns a copy of the current totals.
func (l *Ledger) Scores() map[string]int {
	out := make(map[string]int, len(l.scores))
	for id, s := range l.scores {
		out[id] = s
	}
	return out
}

// Standings returns the top n players by points. Ties keep ledger insertion order and share
// the same rank (1, 1, 3).
func (l *Ledger) Standings(n int) []domain.Standing {
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	sort.SliceStable(ids, func(i, j int) bool {
		return l.scores[ids[i]] > l.scores[ids[j]]
	})
	if n > len(ids) {
		n = len(ids)
	}

	standings := make([]domain.Standing, 0, n)
	for i, id := range ids[:n] {
		rank := i + 1
		if i > 0 && l.scores[id] == standings[i-1].Points {
			rank = standings[i-1].Rank
		}
		standings = append(standings, domain.Standing{PlayerID: id, Points: l.scores[id], Rank: rank})
	}
	return standings
}
