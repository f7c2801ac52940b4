package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-judge-service/internal/analytics"
	"exam-judge-service/internal/app"
	"exam-judge-service/internal/config"
	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/grading"
	"exam-judge-service/internal/infra/memory"
	"exam-judge-service/internal/infra/postgres"
	rediscache "exam-judge-service/internal/infra/redis"
	"exam-judge-service/internal/infra/sqlite"
	"exam-judge-service/internal/judge"
	"exam-judge-service/internal/metrics"
	"exam-judge-service/internal/paper"
	"exam-judge-service/internal/recorder"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errNoPersistentStore = errors.New("no persistent store configured: set postgres.url or sqlite.path")

// questionSeeder is implemented by the stores the seed command can write to.
type questionSeeder interface {
	AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
}

// backend is the storage wiring picked from config: Postgres, else SQLite,
// else the in-memory sample bank. Redis, when configured, fronts the question
// bank and holds exam sessions.
type backend struct {
	name      string
	store     memory.QuestionStore
	questions app.QuestionRepository
	attempts  app.AttemptStore
	sessions  app.SessionRepository
	seeder    questionSeeder
	closers   []func()
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}
	switch {
	case cfg.Postgres.URL != "":
		db := postgres.OpenBun(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })
		if _, err := postgres.Migrate(ctx, db); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		pg := postgres.NewQuestionRepository(pool)
		b.name, b.store, b.seeder = "postgres", pg, pg
		b.attempts = postgres.NewAttemptStore(db)
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		b.name, b.store, b.seeder, b.attempts = "sqlite", store, store, store
	default:
		bank := memory.NewQuestionRepository(app.SampleQuestions()...)
		b.name, b.store = "memory", bank
		b.attempts = memory.NewAttemptStore()
	}

	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 2*time.Hour)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.questions = rediscache.NewQuestionRepository(client, b.store, cacheTTL, logger)
		b.sessions = rediscache.NewSessionStore(client, sessionTTL)
	} else {
		b.questions = memory.NewCachedQuestionRepository(b.store, cacheTTL)
		b.sessions = memory.NewSessionStore(sessionTTL)
	}

	logger.Info("storage ready",
		zap.String("backend", b.name),
		zap.Bool("redis", cfg.Redis.Addr != ""))
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// newService assembles the exam use cases over b. m may be nil when no
// metrics are exported.
func newService(cfg config.Config, logger *zap.Logger, b *backend, m *metrics.Metrics) *app.ExamService {
	judgeOpts := []judge.Option{
		judge.WithTimeout(config.TTLDuration(cfg.Judge.Timeout, 0)),
		judge.WithAllow(cfg.Judge.Allow...),
		judge.WithLogger(logger),
	}
	gradeOpts := []grading.Option{
		grading.CountUnresolved(cfg.Grading.CountUnresolved),
		grading.WithLogger(logger),
	}
	recordOpts := []recorder.Option{recorder.WithLogger(logger)}
	if m != nil {
		judgeOpts = append(judgeOpts, judge.WithObserver(m))
		gradeOpts = append(gradeOpts, grading.WithObserver(m))
		recordOpts = append(recordOpts, recorder.WithObserver(m))
	}

	interpreter := judge.NewInterpreter(judgeOpts...)
	rec := recorder.New(b.attempts, recordOpts...)
	return app.NewExamService(app.Components{
		Questions: b.questions,
		Sessions:  b.sessions,
		Papers:    paper.New(b.questions, paper.WithDefaultSize(cfg.Exam.PaperSize)),
		Grader:    grading.New(b.questions, interpreter, gradeOpts...),
		Judge:     interpreter,
		Recorder:  rec,
		Analytics: analytics.New(rec, b.questions,
			analytics.WithLocation(cfg.Location()),
			analytics.WithTopUsers(cfg.Exam.TopUsers)),
		Logger: logger,
	})
}
