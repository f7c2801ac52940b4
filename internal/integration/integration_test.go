package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"exam-judge-service/internal/analytics"
	"exam-judge-service/internal/app"
	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/grading"
	"exam-judge-service/internal/infra/postgres"
	infraredis "exam-judge-service/internal/infra/redis"
	"exam-judge-service/internal/judge"
	"exam-judge-service/internal/paper"
	"exam-judge-service/internal/recorder"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestSubmitExamEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	bank := postgres.NewQuestionRepository(pool)
	seeded := seedQuestions(t, ctx, bank)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	questions := infraredis.NewQuestionRepository(redisClient, bank, 5*time.Minute, zap.NewNop())
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	interpreter := judge.NewInterpreter()
	rec := recorder.New(postgres.NewAttemptStore(db))
	service := app.NewExamService(app.Components{
		Questions: questions,
		Sessions:  sessions,
		Papers:    paper.New(questions),
		Grader:    grading.New(questions, interpreter),
		Judge:     interpreter,
		Recorder:  rec,
		Analytics: analytics.New(rec, questions),
	})

	userCtx := app.WithUser(ctx, 7)
	session, paperQuestions, err := service.StartExam(userCtx, 0)
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	if len(paperQuestions) != len(seeded) {
		t.Fatalf("expected whole bank on paper, got %d", len(paperQuestions))
	}

	answers := map[int64]domain.AnswerPayload{}
	for _, q := range seeded {
		switch q.Variant {
		case domain.VariantCode:
			answers[q.ID] = domain.AnswerPayload{Answer: "func square(n int) int { return n * n }"}
		case domain.VariantChoice:
			answers[q.ID] = domain.AnswerPayload{Answer: "b"}
		default:
			answers[q.ID] = domain.AnswerPayload{Answer: "while"}
		}
	}
	res, err := service.SubmitExam(userCtx, session.ID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Batch.Score != 2 || res.Batch.Total != 3 || res.Attempt.ID == 0 {
		t.Fatalf("expected 2/3 recorded attempt, got %+v", res)
	}

	if _, err := service.SubmitExam(userCtx, session.ID, answers); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected closed session, got %v", err)
	}

	history, err := service.UserHistory(ctx, 7, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != res.Attempt.ID || len(history[0].Details) != 3 {
		t.Fatalf("unexpected history %+v", history)
	}

	summary, err := service.AnalyticsSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalAttempts != 1 || summary.TypeDistribution[domain.VariantCode] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, bank *postgres.QuestionRepository) []domain.Question {
	t.Helper()
	input := []domain.Question{
		{Variant: domain.VariantChoice, Prompt: "What is 2 + 2?", Options: [4]string{"3", "4", "5", "6"}, Answer: "B", Difficulty: 1},
		{Variant: domain.VariantFill, Prompt: "The only loop keyword in Go is ____.", Answer: "for", Difficulty: 1},
		{Variant: domain.VariantCode, Prompt: "Write square(n int) int.", Answer: "func square(n int) int { return n * n }", JudgeScript: `assert(square(4) == 16, "square(4) should be 16")`, Difficulty: 3},
	}
	out := make([]domain.Question, 0, len(input))
	for _, q := range input {
		stored, err := bank.AddQuestion(ctx, q)
		if err != nil {
			t.Fatalf("seed question: %v", err)
		}
		out = append(out, stored)
	}
	return out
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
