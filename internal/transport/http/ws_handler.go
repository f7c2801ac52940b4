package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"exam-judge-service/internal/app"
	"exam-judge-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler runs a live exam over a websocket: the paper is pushed on connect,
// code answers can be tried out, and the final sheet is graded and recorded.
type WSHandler struct {
	service  *app.ExamService
	limiter  *RunLimiter
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService, limiter *RunLimiter, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		limiter: limiter,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type runPayload struct {
	QuestionID int64  `json:"questionId"`
	Answer     string `json:"answer"`
}

type runResult struct {
	QuestionID int64 `json:"questionId"`
	runResponse
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the exam use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(UserHeader)
	if raw == "" {
		raw = r.URL.Query().Get("userId")
	}
	userID, ok := parseUserID(raw)
	if !ok {
		http.Error(w, "missing or invalid userId", http.StatusBadRequest)
		return
	}
	variants, err := parseVariants(splitTypes(r.URL.Query().Get("types")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := app.WithUser(r.Context(), userID)
	session, questions, err := h.service.StartExam(ctx, size, variants...)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer goroutine: gorilla connections do not allow concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", zap.Error(err))
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "paper", Payload: paperResponse{
		SessionID: session.ID,
		StartedAt: &session.StartedAt,
		Questions: publicQuestions(questions),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload answersRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: domain.ErrInvalidAnswers.Error()}}
				continue
			}
			res, err := h.service.SubmitExam(ctx, session.ID, payload.Answers)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "graded", Payload: gradeResponse{
				AttemptID: res.Attempt.ID,
				Score:     res.Batch.Score,
				Total:     res.Batch.Total,
				Details:   res.Batch.Details(),
			}}
		case "run":
			var payload runPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid run payload"}}
				continue
			}
			if !h.limiter.Allow(userID) {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "too many code runs"}}
				continue
			}
			verdict, err := h.service.RunCode(ctx, payload.QuestionID, payload.Answer)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "runResult", Payload: runResult{
				QuestionID: payload.QuestionID,
				runResponse: runResponse{
					Passed:  verdict.Passed(),
					Outcome: verdict.Outcome,
					Message: verdict.Message,
					Output:  verdict.Output,
				},
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
