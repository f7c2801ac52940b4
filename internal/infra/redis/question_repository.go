package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// QuestionRepository caches questions in Redis and falls back to the backing store on a miss.
// Each question is stored as JSON under exam:question:{id}. Listing and counting go straight
// to the store so papers always sample the current bank.
type QuestionRepository struct {
	client *redis.Client
	store  memory.QuestionStore
	ttl    time.Duration
	sf     singleflight.Group
	logger *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, store memory.QuestionStore, ttl time.Duration, logger *zap.Logger) *QuestionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionRepository{
		client: client,
		store:  store,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) Get(ctx context.Context, id int64) (domain.Question, error) {
	key := r.key(id)
	if q, ok := r.cached(ctx, key); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := r.cached(ctx, key); ok {
			return q, nil
		}

		q, err := r.store.Get(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		raw, err := json.Marshal(q)
		if err != nil {
			return domain.Question{}, err
		}
		if err := r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err(); err != nil {
			// The store answered; a cache write failure only costs the next lookup.
			r.logger.Warn("question cache write failed", zap.Int64("question_id", id), zap.Error(err))
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (r *QuestionRepository) List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	return r.store.List(ctx, filter)
}

func (r *QuestionRepository) Count(ctx context.Context, variant domain.Variant) (int, error) {
	return r.store.Count(ctx, variant)
}

// Invalidate drops a cached question, e.g. after it was edited in the store.
func (r *QuestionRepository) Invalidate(ctx context.Context, id int64) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *QuestionRepository) cached(ctx context.Context, key string) (domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("question cache read failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		r.logger.Warn("question cache entry corrupt", zap.String("key", key), zap.Error(err))
		return domain.Question{}, false
	}
	return q, true
}

func (r *QuestionRepository) key(id int64) string {
	return "exam:question:" + strconv.FormatInt(id, 10)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
