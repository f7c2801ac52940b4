package postgres

import (
	"context"
	"errors"
	"fmt"

	"exam-judge-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const questionColumns = `id, qtype, prompt, option_a, option_b, option_c, option_d, answer, judge_script, difficulty, created_at`

// QuestionRepository reads the question bank from Postgres.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) Get(ctx context.Context, id int64) (domain.Question, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question %d: %w", id, err)
	}
	return q, nil
}

// List returns matching questions ordered by ID.
func (r *QuestionRepository) List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(filter.Variants) == 0 {
		rows, err = r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY id`)
	} else {
		names := make([]string, 0, len(filter.Variants))
		for _, v := range filter.Variants {
			names = append(names, v.String())
		}
		rows, err = r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE qtype = ANY($1) ORDER BY id`, names)
	}
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	out := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepository) Count(ctx context.Context, variant domain.Variant) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM questions WHERE qtype=$1`, variant.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// AddQuestion inserts q and returns it with the generated ID and timestamp.
func (r *QuestionRepository) AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO questions (qtype, prompt, option_a, option_b, option_c, option_d, answer, judge_script, difficulty)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`,
		q.Variant.String(), q.Prompt, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.Answer, q.JudgeScript, q.Difficulty,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q     domain.Question
		qtype string
	)
	err := row.Scan(&q.ID, &qtype, &q.Prompt, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3],
		&q.Answer, &q.JudgeScript, &q.Difficulty, &q.CreatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	q.Variant = domain.VariantOf(qtype)
	return q, nil
}
