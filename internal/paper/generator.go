package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"exam-judge-service/internal/domain"
)

// DefaultSize is the number of questions on a paper when the caller does not ask for one.
const DefaultSize = 10

// QuestionLister returns the current pool for a filter.
type QuestionLister interface {
	List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// Generator samples exam papers from a question pool.
type Generator struct {
	questions   QuestionLister
	defaultSize int

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Generator)

// WithRand injects the random source, e.g. a fixed seed in tests.
func WithRand(rnd *rand.Rand) Option {
	return func(g *Generator) {
		if rnd != nil {
			g.rnd = rnd
		}
	}
}

func WithDefaultSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.defaultSize = n
		}
	}
}

func New(questions QuestionLister, opts ...Option) *Generator {
	g := &Generator{
		questions:   questions,
		defaultSize: DefaultSize,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Assemble draws size questions without replacement from the questions matching
// variants (all variants when none are given). A pool no larger than size is
// returned whole, shuffled.
func (g *Generator) Assemble(ctx context.Context, size int, variants ...domain.Variant) ([]domain.Question, error) {
	if size <= 0 {
		size = g.defaultSize
	}
	pool, err := g.questions.List(ctx, domain.QuestionFilter{Variants: variants})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(pool) == 0 {
		return []domain.Question{}, nil
	}

	// Work on a copy; repositories may hand out shared slices.
	picked := make([]domain.Question, len(pool))
	copy(picked, pool)

	g.mu.Lock()
	defer g.mu.Unlock()
	if size >= len(picked) {
		g.rnd.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		return picked, nil
	}
	// Partial Fisher-Yates: the first size slots end up a uniform sample.
	for i := 0; i < size; i++ {
		j := i + g.rnd.Intn(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:size], nil
}
