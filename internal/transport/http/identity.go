package http

import (
	"net/http"
	"strconv"
	"strings"

	"exam-judge-service/internal/app"
	"exam-judge-service/internal/domain"
)

// UserHeader carries the authenticated user ID set by the upstream gateway.
const UserHeader = "X-User-ID"

func parseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requireUser attaches the caller's identity to the request context or rejects the request.
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUserID(r.Header.Get(UserHeader))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorPayload{Message: domain.ErrNoIdentity.Error()})
			return
		}
		next(w, r.WithContext(app.WithUser(r.Context(), id)))
	}
}
