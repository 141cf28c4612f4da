package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"lol-trivia-service/internal/domain"
)

// StatsReader is the read side of the persistent store used to build questions.
type StatsReader interface {
	GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error)
	GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error)
}

// errNotApplicable marks a question type that has no source data for the chosen subject.
var errNotApplicable = errors.New("question type not applicable")

var rankTiers = []string{
	"IRON", "BRONZE", "SILVER", "GOLD", "PLATINUM",
	"EMERALD", "DIAMOND", "MASTER", "GRANDMASTER", "CHALLENGER",
}

type questionKind struct {
	tag   domain.QuestionType
	build func(ctx context.Context, rnd *rand.Rand, subject domain.Player, roster []domain.Player) (domain.Question, error)
}

// Generator builds trivia questions from stored player statistics. One generator is shared by
// every lobby; each call draws its own seed so results stay reproducible for a fixed seed and
// call order.
type Generator struct {
	stats          StatsReader
	masteryOptions int
	catalog        []questionKind

	mu  sync.Mutex
	rnd *rand.Rand
}

type GeneratorOption func(*Generator)

// WithSeed fixes the random source.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithMasteryOptions sets how many mastery entries become options.
func WithMasteryOptions(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.masteryOptions = n
		}
	}
}

func NewGenerator(stats StatsReader, opts ...GeneratorOption) *Generator {
	g := &Generator{
		stats:          stats,
		masteryOptions: 4,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.catalog = []questionKind{
		{tag: domain.QuestionLeastPlayed, build: g.masteryChoice(domain.Ascending, "Who is %s's least played champion?")},
		{tag: domain.QuestionMostPlayed, build: g.masteryChoice(domain.Descending, "Who is %s's most played champion?")},
		{tag: domain.QuestionMostKills, build: g.numericChoice(domain.StatMostKills, "How many kills did %s get in their highest-kill game recently?")},
		{tag: domain.QuestionMostDeaths, build: g.numericChoice(domain.StatMostDeaths, "How many deaths did %s have in their highest-death game recently?")},
		{tag: domain.QuestionMasteryPoints, build: g.masteryPoints},
		{tag: domain.QuestionLobbyKiller, build: g.lobbyTopKiller},
		{tag: domain.QuestionRankTier, build: g.rankTier},
	}
	return g
}

// Types lists the catalog tags in declaration order.
func (g *Generator) Types() []domain.QuestionType {
	out := make([]domain.QuestionType, len(g.catalog))
	for i, k := range g.catalog {
		out[i] = k.tag
	}
	return out
}

// Generate picks a subject from the roster and builds a question of a type not in excluded.
// It returns domain.ErrNoQuestionAvailable once every remaining type is excluded or lacks data.
func (g *Generator) Generate(ctx context.Context, roster []domain.Player, excluded map[domain.QuestionType]struct{}) (domain.Question, error) {
	if len(roster) == 0 {
		return domain.Question{}, domain.ErrEmptyLobby
	}
	rnd := g.callRand()

	candidates := make([]questionKind, 0, len(g.catalog))
	for _, kind := range g.catalog {
		if _, skip := excluded[kind.tag]; !skip {
			candidates = append(candidates, kind)
		}
	}
	if len(candidates) == 0 {
		return domain.Question{}, domain.ErrNoQuestionAvailable
	}

	subjects := append([]domain.Player(nil), roster...)
	rnd.Shuffle(len(subjects), func(i, j int) {
		subjects[i], subjects[j] = subjects[j], subjects[i]
	})
	rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	// players without synced stats are skipped in favour of the next subject
	for _, subject := range subjects {
		for _, kind := range candidates {
			q, err := kind.build(ctx, rnd, subject, roster)
			if errors.Is(err, errNotApplicable) {
				continue
			}
			if err != nil {
				return domain.Question{}, fmt.Errorf("build %s question: %w", kind.tag, err)
			}
			q.Type = kind.tag
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrNoQuestionAvailable
}

func (g *Generator) callRand() *rand.Rand {
	g.mu.Lock()
	seed := g.rnd.Int63()
	g.mu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (g *Generator) masteryChoice(order domain.SortOrder, format string) func(context.Context, *rand.Rand, domain.Player, []domain.Player) (domain.Question, error) {
	return func(ctx context.Context, rnd *rand.Rand, subject domain.Player, _ []domain.Player) (domain.Question, error) {
		masteries, err := g.topMasteries(ctx, subject.ID, g.masteryOptions, order)
		if err != nil {
			return domain.Question{}, err
		}
		options := make([]string, len(masteries))
		for i, m := range masteries {
			options[i] = m.Label()
		}
		answer := options[0]
		shuffle(rnd, options)
		return domain.Question{
			Text:      fmt.Sprintf(format, subject.ID),
			Options:   options,
			Answer:    answer,
			SubjectID: subject.ID,
		}, nil
	}
}

func (g *Generator) numericChoice(field domain.StatField, format string) func(context.Context, *rand.Rand, domain.Player, []domain.Player) (domain.Question, error) {
	return func(ctx context.Context, rnd *rand.Rand, subject domain.Player, _ []domain.Player) (domain.Question, error) {
		v, err := g.stat(ctx, subject.ID, field)
		if err != nil {
			return domain.Question{}, err
		}
		options := numericOptions(v.Number)
		shuffle(rnd, options)
		return domain.Question{
			Text:      fmt.Sprintf(format, subject.ID),
			Options:   options,
			Answer:    strconv.Itoa(v.Number),
			SubjectID: subject.ID,
		}, nil
	}
}

// numericOptions builds the choices for a numeric stat in fixed order. Values are not
// deduplicated.
func numericOptions(v int) []string {
	return []string{
		strconv.Itoa(v),
		strconv.Itoa(v + 1),
		strconv.Itoa(v - 1),
		strconv.Itoa(v + 2),
	}
}

func (g *Generator) masteryPoints(ctx context.Context, rnd *rand.Rand, subject domain.Player, _ []domain.Player) (domain.Question, error) {
	masteries, err := g.topMasteries(ctx, subject.ID, 10, domain.Descending)
	if err != nil {
		return domain.Question{}, err
	}
	pick := masteries[rnd.Intn(len(masteries))]
	return domain.Question{
		Text:      fmt.Sprintf("Which champion has %s put exactly %d mastery points into?", subject.ID, pick.Points),
		Answer:    pick.Label(),
		SubjectID: subject.ID,
	}, nil
}

func (g *Generator) lobbyTopKiller(ctx context.Context, rnd *rand.Rand, _ domain.Player, roster []domain.Player) (domain.Question, error) {
	var (
		options []string
		best    string
		top     = -1
		tied    bool
	)
	for _, p := range roster {
		v, err := g.stat(ctx, p.ID, domain.StatMostKills)
		if errors.Is(err, errNotApplicable) {
			continue
		}
		if err != nil {
			return domain.Question{}, err
		}
		options = append(options, p.ID)
		switch {
		case v.Number > top:
			best, top, tied = p.ID, v.Number, false
		case v.Number == top:
			tied = true
		}
	}
	if len(options) < 2 || tied {
		return domain.Question{}, errNotApplicable
	}
	shuffle(rnd, options)
	return domain.Question{
		Text:    "Who in this lobby has the highest kills in a single recent game?",
		Options: options,
		Answer:  best,
	}, nil
}

func (g *Generator) rankTier(ctx context.Context, rnd *rand.Rand, subject domain.Player, _ []domain.Player) (domain.Question, error) {
	v, err := g.stat(ctx, subject.ID, domain.StatRank)
	if err != nil {
		return domain.Question{}, err
	}
	tier := strings.ToUpper(strings.TrimSpace(v.Text))
	if tier == "" {
		return domain.Question{}, errNotApplicable
	}

	distractors := make([]string, 0, len(rankTiers))
	for _, t := range rankTiers {
		if t != tier {
			distractors = append(distractors, t)
		}
	}
	shuffle(rnd, distractors)
	options := append([]string{tier}, distractors[:3]...)
	shuffle(rnd, options)
	return domain.Question{
		Text:      fmt.Sprintf("What ranked tier is %s in solo queue?", subject.ID),
		Options:   options,
		Answer:    tier,
		SubjectID: subject.ID,
	}, nil
}

// topMasteries maps "no records" and unknown players to errNotApplicable.
func (g *Generator) topMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error) {
	masteries, err := g.stats.GetTopMasteries(ctx, riotID, n, order)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, errNotApplicable
	}
	if err != nil {
		return nil, err
	}
	if len(masteries) == 0 {
		return nil, errNotApplicable
	}
	return masteries, nil
}

func (g *Generator) stat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error) {
	v, err := g.stats.GetPlayerStat(ctx, riotID, field)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return domain.StatValue{}, errNotApplicable
	}
	if err != nil {
		return domain.StatValue{}, err
	}
	if !v.Valid {
		return domain.StatValue{}, errNotApplicable
	}
	return v, nil
}

func shuffle(rnd *rand.Rand, s []string) {
	rnd.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
