package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"exam-judge-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionStore is a backing store for the question bank (Postgres, SQLite or a static map).
type QuestionStore interface {
	Get(ctx context.Context, id int64) (domain.Question, error)
	List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
	Count(ctx context.Context, variant domain.Variant) (int, error)
}

// QuestionRepository is an in-memory question bank (useful for tests/demos and the default backend).
type QuestionRepository struct {
	now func() time.Time

	mu        sync.RWMutex
	questions map[int64]domain.Question
	nextID    int64
}

func NewQuestionRepository(questions ...domain.Question) *QuestionRepository {
	r := &QuestionRepository{
		now:       time.Now,
		questions: make(map[int64]domain.Question, len(questions)),
	}
	for _, q := range questions {
		_, _ = r.AddQuestion(context.Background(), q)
	}
	return r
}

// AddQuestion stores q, assigning the next free ID when q.ID is zero.
func (r *QuestionRepository) AddQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID == 0 {
		r.nextID++
		q.ID = r.nextID
	} else if q.ID > r.nextID {
		r.nextID = q.ID
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = r.now().UTC()
	}
	r.questions[q.ID] = q
	return q, nil
}

func (r *QuestionRepository) Get(_ context.Context, id int64) (domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

// List returns matching questions ordered by ID.
func (r *QuestionRepository) List(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	r.mu.RLock()
	out := make([]domain.Question, 0, len(r.questions))
	for _, q := range r.questions {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *QuestionRepository) Count(_ context.Context, variant domain.Variant) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, q := range r.questions {
		if q.Variant == variant {
			n++
		}
	}
	return n, nil
}

// CachedQuestionRepository caches single-question lookups with TTL to avoid repeated DB hits
// while a paper is graded. Listing and counting always go to the store.
type CachedQuestionRepository struct {
	store QuestionStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[int64]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewCachedQuestionRepository(store QuestionStore, ttl time.Duration) *CachedQuestionRepository {
	return &CachedQuestionRepository{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[int64]cachedQuestion),
	}
}

func (r *CachedQuestionRepository) Get(ctx context.Context, id int64) (domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[id]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.question, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[id]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.question, nil
		}
		r.mu.RUnlock()

		q, err := r.store.Get(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		r.mu.Lock()
		r.cache[id] = cachedQuestion{
			question:  q,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (r *CachedQuestionRepository) List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	return r.store.List(ctx, filter)
}

func (r *CachedQuestionRepository) Count(ctx context.Context, variant domain.Variant) (int, error) {
	return r.store.Count(ctx, variant)
}

func (r *CachedQuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
