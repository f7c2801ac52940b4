package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"exam-judge-service/internal/analytics"
	"exam-judge-service/internal/app"
	"exam-judge-service/internal/domain"
	"go.uber.org/zap"
)

// APIHandler serves the REST surface of the exam service.
type APIHandler struct {
	service       *app.ExamService
	limiter       *RunLimiter
	logger        *zap.Logger
	passThreshold float64
	trendDays     int
}

type APIOption func(*APIHandler)

func WithPassThreshold(t float64) APIOption {
	return func(h *APIHandler) {
		if t > 0 {
			h.passThreshold = t
		}
	}
}

func WithTrendDays(days int) APIOption {
	return func(h *APIHandler) {
		if days > 0 {
			h.trendDays = days
		}
	}
}

func NewAPIHandler(service *app.ExamService, limiter *RunLimiter, logger *zap.Logger, opts ...APIOption) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &APIHandler{
		service:       service,
		limiter:       limiter,
		logger:        logger,
		passThreshold: analytics.DefaultPassThreshold,
		trendDays:     analytics.DefaultTrendDays,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/paper", h.paper)
	mux.HandleFunc("POST /api/exams", requireUser(h.startExam))
	mux.HandleFunc("POST /api/exams/{id}/submit", requireUser(h.submitExam))
	mux.HandleFunc("POST /api/grade", requireUser(h.grade))
	mux.HandleFunc("POST /api/questions/{id}/run", requireUser(h.runCode))
	mux.HandleFunc("GET /api/users/{id}/history", h.history)
	mux.HandleFunc("GET /api/users/{id}/stats", h.stats)
	mux.HandleFunc("GET /api/analytics/summary", h.summary)
	mux.HandleFunc("GET /api/analytics/trend", h.trend)
	mux.HandleFunc("GET /api/analytics/histogram", h.histogram)
	mux.HandleFunc("GET /api/attempts/export", h.export)
}

type paperResponse struct {
	SessionID string                  `json:"sessionId,omitempty"`
	StartedAt *time.Time              `json:"startedAt,omitempty"`
	Questions []domain.PublicQuestion `json:"questions"`
}

type startRequest struct {
	Size  int      `json:"size"`
	Types []string `json:"types"`
}

type answersRequest struct {
	Answers map[int64]domain.AnswerPayload `json:"answers"`
}

type gradeResponse struct {
	AttemptID int64           `json:"attemptId,omitempty"`
	Score     float64         `json:"score"`
	Total     float64         `json:"total"`
	Details   []domain.Detail `json:"details"`
}

type runResponse struct {
	Passed  bool           `json:"passed"`
	Outcome domain.Outcome `json:"outcome"`
	Message string         `json:"message,omitempty"`
	Output  string         `json:"output,omitempty"`
}

func (h *APIHandler) paper(w http.ResponseWriter, r *http.Request) {
	variants, err := parseVariants(splitTypes(r.URL.Query().Get("types")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	questions, err := h.service.AssemblePaper(r.Context(), queryInt(r, "size", 0), variants...)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperResponse{Questions: publicQuestions(questions)})
}

func (h *APIHandler) startExam(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
			return
		}
	}
	variants, err := parseVariants(req.Types)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session, questions, err := h.service.StartExam(r.Context(), req.Size, variants...)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paperResponse{
		SessionID: session.ID,
		StartedAt: &session.StartedAt,
		Questions: publicQuestions(questions),
	})
}

func (h *APIHandler) submitExam(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidAnswers)
		return
	}
	res, err := h.service.SubmitExam(r.Context(), r.PathValue("id"), req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gradeResponse{
		AttemptID: res.Attempt.ID,
		Score:     res.Batch.Score,
		Total:     res.Batch.Total,
		Details:   res.Batch.Details(),
	})
}

func (h *APIHandler) grade(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidAnswers)
		return
	}
	// Code answers run the judge, so they draw on the same budget as /run.
	hasCode, err := h.service.HasCodeAnswers(r.Context(), req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	userID, _ := app.UserFromContext(r.Context())
	if hasCode && !h.limiter.Allow(userID) {
		writeJSON(w, http.StatusTooManyRequests, errorPayload{Message: "too many code runs"})
		return
	}
	res, err := h.service.GradeBatch(r.Context(), req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gradeResponse{Score: res.Score, Total: res.Total, Details: res.Details()})
}

func (h *APIHandler) runCode(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid question id"})
		return
	}
	userID, _ := app.UserFromContext(r.Context())
	if !h.limiter.Allow(userID) {
		writeJSON(w, http.StatusTooManyRequests, errorPayload{Message: "too many code runs"})
		return
	}
	var payload domain.AnswerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.ErrInvalidAnswers)
		return
	}
	verdict, err := h.service.RunCode(r.Context(), questionID, payload.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		Passed:  verdict.Passed(),
		Outcome: verdict.Outcome,
		Message: verdict.Message,
		Output:  verdict.Output,
	})
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid user id"})
		return
	}
	attempts, err := h.service.UserHistory(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *APIHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid user id"})
		return
	}
	threshold := h.passThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 || t > 1 {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "threshold must be within [0, 1]"})
			return
		}
		threshold = t
	}
	stats, err := h.service.UserStats(r.Context(), userID, threshold)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.AnalyticsSummary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) trend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.service.ScoreTrend(r.Context(), queryInt(r, "days", h.trendDays))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (h *APIHandler) histogram(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.ScoreHistogram(r.Context(), queryInt(r, "buckets", 0))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"buckets": counts})
}

func (h *APIHandler) export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="exam_attempts.csv"`)
	if err := h.service.ExportAttempts(r.Context(), w); err != nil {
		// Headers are gone by now; the truncated body is all the client gets.
		h.logger.Error("export attempts failed", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNoIdentity):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidVariant), errors.Is(err, domain.ErrInvalidAnswers), errors.Is(err, domain.ErrNotCodeQuestion):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func splitTypes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func parseVariants(names []string) ([]domain.Variant, error) {
	variants := make([]domain.Variant, 0, len(names))
	for _, name := range names {
		v, err := domain.ParseVariant(name)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func publicQuestions(questions []domain.Question) []domain.PublicQuestion {
	out := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.Public())
	}
	return out
}
