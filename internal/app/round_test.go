package app

import (
	"testing"

	"lol-trivia-service/internal/domain"
)

func idx(i int) *int { return &i }

func choiceQuestion() domain.Question {
	return domain.Question{
		Type:    domain.QuestionMostKills,
		Text:    "What is the most kills Faker#KR1 has had in a single game?",
		Options: []string{"12", "11", "13", "10"},
		Answer:  "12",
	}
}

func TestRoundOneAnswerPerParticipant(t *testing.T) {
	r := newRound(1, choiceQuestion(), 15)

	if !r.Submit("a", domain.Answer{Index: idx(0)}) {
		t.Fatalf("first answer should be accepted")
	}
	if r.Submit("a", domain.Answer{Index: idx(1)}) {
		t.Fatalf("second answer from the same participant must be ignored")
	}
	if r.Submit("", domain.Answer{Index: idx(1)}) {
		t.Fatalf("anonymous answers must be ignored")
	}
	if got := r.AnswerCount(); got != 1 {
		t.Fatalf("expected 1 answer, got %d", got)
	}

	tally := r.Tally()
	if tally.Counts[0] != 1 || tally.Counts[1] != 0 {
		t.Fatalf("first answer should be the one counted, got %v", tally.Counts)
	}
}

func TestRoundRejectsAfterClose(t *testing.T) {
	r := newRound(1, choiceQuestion(), 15)
	r.Close()
	if r.Submit("a", domain.Answer{Index: idx(0)}) {
		t.Fatalf("answers after close must be rejected")
	}
	if !r.Closed() {
		t.Fatalf("round should report closed")
	}
}

func TestRoundTallyMultipleChoice(t *testing.T) {
	r := newRound(2, choiceQuestion(), 15)
	r.Submit("c", domain.Answer{Index: idx(0)})
	r.Submit("a", domain.Answer{Index: idx(2)})
	r.Submit("b", domain.Answer{Index: idx(0)})
	r.Submit("d", domain.Answer{Index: idx(9)})
	r.Submit("e", domain.Answer{Text: "12"})

	tally := r.Tally()
	want := []int{2, 0, 1, 0}
	for i := range want {
		if tally.Counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", tally.Counts, want)
		}
	}
	if len(tally.Correct) != 2 || tally.Correct[0] != "c" || tally.Correct[1] != "b" {
		t.Fatalf("correct should keep submission order, got %v", tally.Correct)
	}
}

func TestRoundTallyFreeResponse(t *testing.T) {
	r := newRound(1, domain.Question{
		Type:   domain.QuestionMasteryPoints,
		Text:   "Which champion does Faker#KR1 have 900 mastery points on?",
		Answer: "LeBlanc",
	}, 15)
	r.Submit("a", domain.Answer{Text: "  leblanc "})
	r.Submit("b", domain.Answer{Text: "LeBlanc"})
	r.Submit("c", domain.Answer{Text: "Lux"})
	r.Submit("d", domain.Answer{})

	tally := r.Tally()
	if len(tally.Counts) != 0 {
		t.Fatalf("free response has no option counts, got %v", tally.Counts)
	}
	if len(tally.Correct) != 2 || tally.Correct[0] != "a" || tally.Correct[1] != "b" {
		t.Fatalf("expected a and b correct, got %v", tally.Correct)
	}
}

func TestRoundTickStopsAtZero(t *testing.T) {
	r := newRound(1, choiceQuestion(), 2)
	if got := r.Tick(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := r.Tick(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := r.Tick(); got != 0 {
		t.Fatalf("countdown must not go negative, got %d", got)
	}
}
