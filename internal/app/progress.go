package app

import (
	"fmt"

	"lol-trivia-service/internal/domain"
)

// Progress tracks which question types a game has asked and how many rounds it has run.
type Progress struct {
	maxRounds int
	asked     int
	seen      map[domain.QuestionType]struct{}
}

func NewProgress(maxRounds int) *Progress {
	return &Progress{
		maxRounds: maxRounds,
		seen:      make(map[domain.QuestionType]struct{}),
	}
}

// Exhausted reports whether the game has asked its last round.
func (p *Progress) Exhausted() bool {
	return p.asked >= p.maxRounds
}

// Record counts a new round for the given type.
func (p *Progress) Record(t domain.QuestionType) error {
	if p.Exhausted() {
		return fmt.Errorf("round limit %d reached", p.maxRounds)
	}
	if _, ok := p.seen[t]; ok {
		return fmt.Errorf("question type %q already asked", t)
	}
	p.seen[t] = struct{}{}
	p.asked++
	return nil
}

// Excluded returns a copy of the asked types for the generator.
func (p *Progress) Excluded() map[domain.QuestionType]struct{} {
	out := make(map[domain.QuestionType]struct{}, len(p.seen))
	for t := range p.seen {
		out[t] = struct{}{}
	}
	return out
}

func (p *Progress) Asked() int     { return p.asked }
func (p *Progress) MaxRounds() int { return p.maxRounds }
