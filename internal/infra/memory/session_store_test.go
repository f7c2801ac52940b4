package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-judge-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(0)
	ctx := context.Background()

	session := domain.ExamSession{ID: "s1", UserID: 7, QuestionIDs: []int64{1, 2}, StartedAt: time.Now()}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("expected session present: %v", err)
	}
	if got.UserID != 7 || len(got.QuestionIDs) != 2 {
		t.Fatalf("unexpected session %+v", got)
	}

	_ = store.Delete(ctx, "s1")
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestSessionStoreExpires(t *testing.T) {
	store := NewSessionStore(time.Minute)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	_ = store.Save(context.Background(), domain.ExamSession{ID: "s1"})
	now = now.Add(time.Minute)
	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
