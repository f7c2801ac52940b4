package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Variant is the closed set of question kinds. Each variant has its own grading rule.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantChoice
	VariantFill
	VariantCode
)

// AllVariants lists the gradable variants in display order.
var AllVariants = []Variant{VariantChoice, VariantFill, VariantCode}

func (v Variant) String() string {
	switch v {
	case VariantChoice:
		return "choice"
	case VariantFill:
		return "fill"
	case VariantCode:
		return "code"
	default:
		return "unknown"
	}
}

// ParseVariant maps the stored/wire name of a variant back to the enum.
func ParseVariant(raw string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "choice":
		return VariantChoice, nil
	case "fill":
		return VariantFill, nil
	case "code":
		return VariantCode, nil
	}
	return VariantUnknown, fmt.Errorf("%w: %q", ErrInvalidVariant, raw)
}

// VariantOf is ParseVariant for trusted storage values: anything unrecognised
// decodes to VariantUnknown so grading can report it instead of failing the load.
func VariantOf(raw string) Variant {
	v, err := ParseVariant(raw)
	if err != nil {
		return VariantUnknown
	}
	return v
}

func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	*v = VariantOf(string(text))
	return nil
}

// Question is a single item in the question bank. It is never mutated by grading.
type Question struct {
	ID          int64     `json:"id"`
	Variant     Variant   `json:"type"`
	Prompt      string    `json:"prompt"`
	Options     [4]string `json:"options"` // A-D, choice questions only
	Answer      string    `json:"answer"`
	JudgeScript string    `json:"judgeScript,omitempty"`
	Difficulty  int       `json:"difficulty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PublicQuestion is the view of a question handed to exam takers.
type PublicQuestion struct {
	ID         int64    `json:"id"`
	Variant    Variant  `json:"type"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options,omitempty"`
	Difficulty int      `json:"difficulty"`
}

// Public strips the canonical answer and judge script.
func (q Question) Public() PublicQuestion {
	pq := PublicQuestion{ID: q.ID, Variant: q.Variant, Prompt: q.Prompt, Difficulty: q.Difficulty}
	if q.Variant == VariantChoice {
		pq.Options = q.Options[:]
	}
	return pq
}

// QuestionFilter narrows repository queries. An empty Variants slice matches every variant.
type QuestionFilter struct {
	Variants []Variant
}

// Matches reports whether q passes the filter.
func (f QuestionFilter) Matches(q Question) bool {
	if len(f.Variants) == 0 {
		return true
	}
	for _, v := range f.Variants {
		if q.Variant == v {
			return true
		}
	}
	return false
}

// AnswerPayload is the raw answer for one question: a letter, free text or source code.
type AnswerPayload struct {
	Answer string `json:"answer"`
}

// AnswerSubmission pairs a question reference with its payload.
type AnswerSubmission struct {
	QuestionID int64
	Payload    AnswerPayload
}

// Outcome tags how a single answer was graded.
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeAssertionFailed
	OutcomeRuntimeFailed
	OutcomeNotFound
	OutcomeUnknownType
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeAssertionFailed:
		return "assertion_failed"
	case OutcomeRuntimeFailed:
		return "runtime_failed"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown_type"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "passed":
		*o = OutcomePassed
	case "assertion_failed":
		*o = OutcomeAssertionFailed
	case "runtime_failed":
		*o = OutcomeRuntimeFailed
	case "not_found":
		*o = OutcomeNotFound
	case "unknown_type":
		*o = OutcomeUnknownType
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// GradeResult is the per-question outcome of grading.
type GradeResult struct {
	QuestionID int64
	Variant    Variant
	Score      float64
	Correct    bool
	Outcome    Outcome
	Message    string
	Expected   string
	Got        string
}

// Detail converts the result into its persisted form.
func (r GradeResult) Detail() Detail {
	return Detail{
		QuestionID: r.QuestionID,
		Variant:    r.Variant,
		OK:         r.Correct,
		Score:      r.Score,
		Outcome:    r.Outcome,
		Expected:   r.Expected,
		Got:        r.Got,
		Message:    r.Message,
	}
}

// Detail is the stored summary of one graded question inside an attempt.
type Detail struct {
	QuestionID int64   `json:"questionId"`
	Variant    Variant `json:"type"`
	OK         bool    `json:"ok"`
	Score      float64 `json:"score"`
	Outcome    Outcome `json:"outcome"`
	Expected   string  `json:"expected,omitempty"`
	Got        string  `json:"got,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// EncodeDetails serializes details for a text column.
func EncodeDetails(details []Detail) (string, error) {
	if details == nil {
		details = []Detail{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("encode details: %w", err)
	}
	return string(raw), nil
}

// DecodeDetails is the inverse of EncodeDetails.
func DecodeDetails(raw string) ([]Detail, error) {
	if strings.TrimSpace(raw) == "" {
		return []Detail{}, nil
	}
	var details []Detail
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return details, nil
}

// ExamAttempt is one completed, scored exam. It is never updated after creation.
type ExamAttempt struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	Score           float64   `json:"score"`
	Total           float64   `json:"total"`
	DurationSeconds int64     `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
	Details         []Detail  `json:"details"`
}

// Ratio returns score/total, or 0 when total is zero.
func (a ExamAttempt) Ratio() float64 {
	if a.Total == 0 {
		return 0
	}
	return a.Score / a.Total
}

// AttemptFilter narrows attempt queries. Zero values mean "no constraint".
// Results are always ordered newest first.
type AttemptFilter struct {
	UserID *int64
	Since  time.Time
	Until  time.Time
	Limit  int
}

// ForUser is a convenience constructor for a per-user filter.
func ForUser(userID int64, limit int) AttemptFilter {
	return AttemptFilter{UserID: &userID, Limit: limit}
}

// Matches reports whether a passes the non-limit constraints.
func (f AttemptFilter) Matches(a ExamAttempt) bool {
	if f.UserID != nil && a.UserID != *f.UserID {
		return false
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !a.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// ExamSession tracks an in-progress exam between paper assembly and submission.
type ExamSession struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	QuestionIDs []int64   `json:"questionIds"`
	StartedAt   time.Time `json:"startedAt"`
}

// UserStanding is one leaderboard row.
type UserStanding struct {
	UserID       int64   `json:"userId"`
	MeanScore    float64 `json:"meanScore"`
	AttemptCount int     `json:"attemptCount"`
}

// Summary is the dashboard-level analytics snapshot.
type Summary struct {
	TotalAttempts    int             `json:"totalAttempts"`
	AvgScore         float64         `json:"avgScore"`
	AvgDuration      float64         `json:"avgDuration"`
	MedianScore      float64         `json:"medianScore"`
	P90Score         float64         `json:"p90Score"`
	TypeDistribution map[Variant]int `json:"typeDistribution"`
	TopUsers         []UserStanding  `json:"topUsers"`
}

// Trend is a per-day mean score series, oldest first.
type Trend struct {
	Dates     []string  `json:"dates"`
	AvgScores []float64 `json:"avgScores"`
}
