package app

import "lol-trivia-service/internal/domain"

// Round is the in-memory state of one active question. It is owned by a single Game goroutine
// and never shared.
type Round struct {
	Number    int
	Question  domain.Question
	Remaining int

	answers map[string]domain.Answer
	order   []string
	closed  bool
}

// Tally is the outcome of a closed round.
type Tally struct {
	Counts  []int
	Correct []string
}

func newRound(number int, q domain.Question, seconds int) *Round {
	return &Round{
		Number:    number,
		Question:  q,
		Remaining: seconds,
		answers:   make(map[string]domain.Answer),
	}
}

// Submit records the first answer of a participant. Later answers from the same participant,
// and any answer after Close, are ignored and reported as false.
func (r *Round) Submit(participant string, a domain.Answer) bool {
	if r.closed || participant == "" {
		return false
	}
	if _, ok := r.answers[participant]; ok {
		return false
	}
	r.answers[participant] = a
	r.order = append(r.order, participant)
	return true
}

// Answered reports whether participant already has an answer recorded.
func (r *Round) Answered(participant string) bool {
	_, ok := r.answers[participant]
	return ok
}

func (r *Round) AnswerCount() int {
	return len(r.order)
}

func (r *Round) Closed() bool {
	return r.closed
}

func (r *Round) Close() {
	r.closed = true
}

// Tick counts the countdown down by one second and returns what is left.
func (r *Round) Tick() int {
	if r.Remaining > 0 {
		r.Remaining--
	}
	return r.Remaining
}

// Tally counts picks per option and lists correct participants in submission order.
func (r *Round) Tally() Tally {
	t := Tally{Counts: make([]int, len(r.Question.Options))}
	for _, participant := range r.order {
		a := r.answers[participant]
		if idx, ok := r.optionIndex(a); ok {
			t.Counts[idx]++
		}
		if r.isCorrect(a) {
			t.Correct = append(t.Correct, participant)
		}
	}
	return t
}

func (r *Round) optionIndex(a domain.Answer) (int, bool) {
	if a.Index == nil {
		return 0, false
	}
	idx := *a.Index
	if idx < 0 || idx >= len(r.Question.Options) {
		return 0, false
	}
	return idx, true
}

// isCorrect treats malformed answers (bad index, missing text) as wrong.
func (r *Round) isCorrect(a domain.Answer) bool {
	want := domain.Normalize(r.Question.Answer)
	if r.Question.FreeResponse() {
		got := domain.Normalize(a.Text)
		return got != "" && got == want
	}
	idx, ok := r.optionIndex(a)
	if !ok {
		return false
	}
	return domain.Normalize(r.Question.Options[idx]) == want
}
