// Package analytics derives statistics from the attempt history. Nothing is
// maintained incrementally: every call recomputes from the store.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"exam-judge-service/internal/domain"
)

const (
	DefaultBuckets       = 10
	DefaultTrendDays     = 14
	DefaultTopUsers      = 10
	DefaultPassThreshold = 0.6
)

// AttemptQuerier is the read side of the exam recorder.
type AttemptQuerier interface {
	Query(ctx context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error)
}

// QuestionCounter counts the bank per variant.
type QuestionCounter interface {
	Count(ctx context.Context, variant domain.Variant) (int, error)
}

type Aggregator struct {
	attempts  AttemptQuerier
	questions QuestionCounter
	now       func() time.Time
	loc       *time.Location
	topUsers  int
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocation sets the time zone that defines calendar days for trends.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithTopUsers sets how many users Summary ranks.
func WithTopUsers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topUsers = n
		}
	}
}

func New(attempts AttemptQuerier, questions QuestionCounter, opts ...Option) *Aggregator {
	a := &Aggregator{attempts: attempts, questions: questions, now: time.Now, loc: time.UTC, topUsers: DefaultTopUsers}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) query(ctx context.Context, filter domain.AttemptFilter) ([]domain.ExamAttempt, error) {
	attempts, err := a.attempts.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return attempts, nil
}

func (a *Aggregator) TotalAttempts(ctx context.Context) (int, error) {
	attempts, err := a.query(ctx, domain.AttemptFilter{})
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

// AverageScore is the mean raw score over all attempts, 0 when there are none.
func (a *Aggregator) AverageScore(ctx context.Context) (float64, error) {
	attempts, err := a.query(ctx, domain.AttemptFilter{})
	if err != nil {
		return 0, err
	}
	return meanScore(attempts), nil
}

func (a *Aggregator) AverageScoreForUser(ctx context.Context, userID int64) (float64, error) {
	attempts, err := a.query(ctx, domain.AttemptFilter{UserID: &userID})
	if err != nil {
		return 0, err
	}
	return meanScore(attempts), nil
}

// AverageDuration is the mean duration in seconds.
func (a *Aggregator) AverageDuration(ctx context.Context) (float64, error) {
	attempts, err := a.query(ctx, domain.AttemptFilter{})
	if err != nil {
		return 0, err
	}
	return meanDuration(attempts), nil
}

// PassRate is the fraction of the user's attempts with score/total >= threshold.
// Attempts with a zero total count as attempts but never pass.
func (a *Aggregator) PassRate(ctx context.Context, userID int64, threshold float64) (float64, error) {
	attempts, err := a.query(ctx, domain.AttemptFilter{UserID: &userID})
	if err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		return 0, nil
	}
	passed := 0
	for _, at := range attempts {
		if at.Total > 0 && at.Score/at.Total >= threshold {
			passed++
		}
	}
	return float64(passed) / float64(len(attempts)), nil
}

// ScoreHistogram splits [0, max observed total] into equal-width buckets and
// counts attempts by score. Attempts with a zero total are left out.
func (a *Aggregator) ScoreHistogram(ctx context.Context, buckets int) ([]int, error) {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	attempts, err := a.query(ctx, domain.AttemptFilter{})
	if err != nil {
		return nil, err
	}
	counts := make([]int, buckets)
	maxTotal := 0.0
	for _, at := range attempts {
		if at.Total > maxTotal {
			maxTotal = at.Total
		}
	}
	if maxTotal == 0 {
		return counts, nil
	}
	for _, at := range attempts {
		if at.Total == 0 {
			continue
		}
		idx := int(at.Score / maxTotal * float64(buckets))
		if idx >= buckets {
			idx = buckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return counts, nil
}

// TypeDistribution counts the question bank per variant. Every variant is present.
func (a *Aggregator) TypeDistribution(ctx context.Context) (map[domain.Variant]int, error) {
	out := make(map[domain.Variant]int, len(domain.AllVariants))
	for _, v := range domain.AllVariants {
		n, err := a.questions.Count(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("analytics: count %s questions: %w", v, err)
		}
		out[v] = n
	}
	return out, nil
}

// ScoreTrend returns the mean score per calendar day for the trailing days,
// oldest first and including today. Days without attempts report 0.
func (a *Aggregator) ScoreTrend(ctx context.Context, days int) (domain.Trend, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	today := a.now().In(a.loc)
	first := time.Date(today.Year(), today.Month(), today.Day()-(days-1), 0, 0, 0, 0, a.loc)

	attempts, err := a.query(ctx, domain.AttemptFilter{Since: first})
	if err != nil {
		return domain.Trend{}, err
	}
	type acc struct {
		sum float64
		n   int
	}
	byDay := make(map[string]acc, days)
	for _, at := range attempts {
		key := at.CreatedAt.In(a.loc).Format("2006-01-02")
		cur := byDay[key]
		cur.sum += at.Score
		cur.n++
		byDay[key] = cur
	}

	trend := domain.Trend{Dates: make([]string, 0, days), AvgScores: make([]float64, 0, days)}
	for i := 0; i < days; i++ {
		key := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, a.loc).Format("2006-01-02")
		trend.Dates = append(trend.Dates, key)
		avg := 0.0
		if cur, ok := byDay[key]; ok && cur.n > 0 {
			avg = cur.sum / float64(cur.n)
		}
		trend.AvgScores = append(trend.AvgScores, avg)
	}
	return trend, nil
}

// TopUsers ranks users by mean score, highest first. Equal means are ordered by user ID.
func (a *Aggregator) TopUsers(ctx context.Context, limit int) ([]domain.UserStanding, error) {
	if limit <= 0 {
		limit = DefaultTopUsers
	}
	attempts, err := a.query(ctx, domain.AttemptFilter{})
	if err != nil {
		return nil, err
	}
	sums := map[int64]float64{}
	counts := map[int64]int{}
	for _, at := range attempts {
		sums[at.UserID] += at.Score
		counts[at.UserID]++
	}
	out := make([]domain.UserStanding, 0, len(counts))
	for user, n := range counts {
		out = append(out, domain.UserStanding{UserID: user, MeanScore: sums[user] / float64(n), AttemptCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanScore != out[j].MeanScore {
			return out[i].MeanScore > out[j].MeanScore
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Summary bundles the dashboard figures. TopUsers holds the configured number of leaders.
func (a *Aggregator) Summary(ctx context.Context) (domain.Summary, error) {
	attempts, err := a.query(ctx, domain.AttemptFilter{})
	if err != nil {
		return domain.Summary{}, err
	}
	dist, err := a.TypeDistribution(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	top, err := a.TopUsers(ctx, a.topUsers)
	if err != nil {
		return domain.Summary{}, err
	}
	scores := make([]float64, 0, len(attempts))
	for _, at := range attempts {
		scores = append(scores, at.Score)
	}
	return domain.Summary{
		TotalAttempts:    len(attempts),
		AvgScore:         meanScore(attempts),
		AvgDuration:      meanDuration(attempts),
		MedianScore:      Percentile(scores, 50),
		P90Score:         Percentile(scores, 90),
		TypeDistribution: dist,
		TopUsers:         top,
	}, nil
}

// Percentile interpolates linearly between the closest ranks. p is clamped to
// [0, 100]; an empty sample or a NaN p yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || math.IsNaN(p) {
		return 0
	}
	p = math.Max(0, math.Min(100, p))
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	k := float64(len(sorted)-1) * p / 100
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

func meanScore(attempts []domain.ExamAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	sum := 0.0
	for _, at := range attempts {
		sum += at.Score
	}
	return sum / float64(len(attempts))
}

func meanDuration(attempts []domain.ExamAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	var sum int64
	for _, at := range attempts {
		sum += at.DurationSeconds
	}
	return float64(sum) / float64(len(attempts))
}
