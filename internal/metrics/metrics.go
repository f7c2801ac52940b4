// Package metrics exposes Prometheus collectors for judging, grading,
// recording and the HTTP surface.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"exam-judge-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	JudgeExecutions  *prometheus.CounterVec
	JudgeDuration    prometheus.Histogram
	GradingBatches   prometheus.Counter
	GradedScoreRatio prometheus.Histogram
	AttemptsRecorded prometheus.Counter
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	gatherer         prometheus.Gatherer
}

// New builds the collectors and registers them on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of the global registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		JudgeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judge_executions_total",
				Help: "Code judge executions by outcome",
			},
			[]string{"outcome"},
		),
		JudgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "judge_execution_seconds",
			Help:    "Wall-clock time spent judging one submission",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		GradingBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_batches_total",
			Help: "Answer sheets graded",
		}),
		GradedScoreRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_score_ratio",
			Help:    "Score over total of graded answer sheets",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		AttemptsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_recorded_total",
			Help: "Exam attempts persisted",
		}),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}
	reg.MustRegister(
		m.JudgeExecutions,
		m.JudgeDuration,
		m.GradingBatches,
		m.GradedScoreRatio,
		m.AttemptsRecorded,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

// ObserveJudge implements judge.Observer.
func (m *Metrics) ObserveJudge(outcome domain.Outcome, elapsed time.Duration) {
	m.JudgeExecutions.WithLabelValues(outcome.String()).Inc()
	m.JudgeDuration.Observe(elapsed.Seconds())
}

// ObserveBatch implements grading.Observer.
func (m *Metrics) ObserveBatch(score, total float64) {
	m.GradingBatches.Inc()
	if total > 0 {
		m.GradedScoreRatio.Observe(score / total)
	}
}

// ObserveAttempt implements recorder.Observer.
func (m *Metrics) ObserveAttempt(domain.ExamAttempt) {
	m.AttemptsRecorded.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts and times requests. The route label is the ServeMux
// pattern that matched, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
