package app

import (
	"testing"

	"lol-trivia-service/internal/domain"
)

func TestProgressRejectsRepeatedType(t *testing.T) {
	p := NewProgress(6)
	if err := p.Record(domain.QuestionMostKills); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := p.Record(domain.QuestionMostKills); err == nil {
		t.Fatalf("expected duplicate type error")
	}
	if p.Asked() != 1 {
		t.Fatalf("duplicate must not count as a round, asked=%d", p.Asked())
	}
}

func TestProgressRespectsMaxRounds(t *testing.T) {
	p := NewProgress(2)
	for _, qt := range []domain.QuestionType{domain.QuestionMostKills, domain.QuestionRankTier} {
		if err := p.Record(qt); err != nil {
			t.Fatalf("record %s: %v", qt, err)
		}
	}
	if !p.Exhausted() {
		t.Fatalf("expected exhausted after 2 rounds")
	}
	if err := p.Record(domain.QuestionMostDeaths); err == nil {
		t.Fatalf("expected round limit error")
	}
	if p.Asked() > p.MaxRounds() {
		t.Fatalf("asked %d exceeds max %d", p.Asked(), p.MaxRounds())
	}
}

func TestProgressExcludedIsCopy(t *testing.T) {
	p := NewProgress(6)
	_ = p.Record(domain.QuestionRankTier)
	ex := p.Excluded()
	delete(ex, domain.QuestionRankTier)
	if _, ok := p.Excluded()[domain.QuestionRankTier]; !ok {
		t.Fatalf("mutating the excluded set changed progress")
	}
}
