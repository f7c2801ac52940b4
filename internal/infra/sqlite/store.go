package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exam-judge-service/internal/domain"
	_ "modernc.org/sqlite"
)

// Store keeps the question bank and attempt history in a single SQLite file,
// for running the service without a database server.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent submissions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	questionTable := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		qtype TEXT NOT NULL,
		prompt TEXT NOT NULL,
		option_a TEXT NOT NULL DEFAULT '',
		option_b TEXT NOT NULL DEFAULT '',
		option_c TEXT NOT NULL DEFAULT '',
		option_d TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		judge_script TEXT NOT NULL DEFAULT '',
		difficulty INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_qtype ON questions(qtype);
	`

	attemptTable := `
	CREATE TABLE IF NOT EXISTS exam_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		score REAL NOT NULL,
		total REAL NOT NULL,
		duration_seconds INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		details TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_user ON exam_attempts(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON exam_attempts(created_at);
	`

	for _, table := range []string{questionTable, attemptTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const questionColumns = `id, qtype, prompt, option_a, option_b, option_c, option_d, answer, judge_script, difficulty, created_at`

func (s *Store) Get(ctx context.Context, id int64) (domain.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question %d: %w", id, err)
	}
	return q, nil
}

func (s *Store) List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	args := make([]any, 0, len(filter.Variants))
	if len(filter.Variants) > 0 {
		placeholders := make([]string, 0, len(filter.Variants))
		for _, v := range filter.Variants {
			placeholders = append(placeholders, "?")
			args = append(args, v.String())
		}
		query += ` WHERE qtype IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *Store) Count(ctx context.Context, variant domain.Variant) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE qtype = ?`, variant.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *Store) AddQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (qtype, prompt, option_a, option_b, option_c, option_d, answer, judge_script, difficulty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Variant.String(), q.Prompt, q.Options[0], q.Options[1], q.Options[2], q.Options[3],
		q.Answer, q.JudgeScript, q.Difficulty, q.CreatedAt.UnixNano())
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	if q.ID, err = res.LastInsertId(); err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// AddAttempt writes one attempt in a single statement.
func (s *Store) AddAttempt(ctx context.Context, attempt domain.ExamAttempt) (domain.ExamAttempt, error) {
	details, err := domain.EncodeDetails(attempt.Details)
	if err != nil {
		return domain.ExamAttempt{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO exam_attempts (user_id, score, total, duration_seconds, created_at, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.UserID, attempt.Score, attempt.Total, attempt.DurationSeconds, attempt.CreatedAt.UnixNano(), details)
	if err != nil {
		return domain.ExamAttempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	if attempt.ID, err = res.LastInsertId(); err != nil {
		return domain.ExamAttempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

// QueryAttempts returns matching attempts newest first.
func (s *Store) QueryAttempts(ctx context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.Until.UnixNano())
	}
	query := `SELECT id, user_id, score, total, duration_seconds, created_at, details FROM exam_attempts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	out := []domain.ExamAttempt{}
	for rows.Next() {
		var (
			a       domain.ExamAttempt
			created int64
			details string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Score, &a.Total, &a.DurationSeconds, &created, &details); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.CreatedAt = time.Unix(0, created).UTC()
		if a.Details, err = domain.DecodeDetails(details); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (domain.Question, error) {
	var (
		q       domain.Question
		qtype   string
		created int64
	)
	err := row.Scan(&q.ID, &qtype, &q.Prompt, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3],
		&q.Answer, &q.JudgeScript, &q.Difficulty, &created)
	if err != nil {
		return domain.Question{}, err
	}
	q.Variant = domain.VariantOf(qtype)
	q.CreatedAt = time.Unix(0, created).UTC()
	return q, nil
}
