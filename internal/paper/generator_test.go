package paper_test

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"exam-judge-service/internal/domain"
	"exam-judge-service/internal/paper"
	"github.com/google/go-cmp/cmp"
)

type staticPool []domain.Question

func (p staticPool) List(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	out := []domain.Question{}
	for _, q := range p {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	return out, nil
}

type brokenPool struct{}

func (brokenPool) List(context.Context, domain.QuestionFilter) ([]domain.Question, error) {
	return nil, errors.New("db down")
}

func mixedPool() staticPool {
	return staticPool{
		{ID: 1, Variant: domain.VariantChoice},
		{ID: 2, Variant: domain.VariantChoice},
		{ID: 3, Variant: domain.VariantChoice},
		{ID: 4, Variant: domain.VariantFill},
		{ID: 5, Variant: domain.VariantFill},
		{ID: 6, Variant: domain.VariantCode},
	}
}

func ids(qs []domain.Question) []int64 {
	out := make([]int64, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestAssembleOverRequestReturnsWholePool(t *testing.T) {
	g := paper.New(mixedPool(), paper.WithRand(rand.New(rand.NewSource(1))))

	got, err := g.Assemble(context.Background(), 5, domain.VariantChoice)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, ids(got)); diff != "" {
		t.Fatalf("expected every choice question exactly once (-want +got):\n%s", diff)
	}
}

func TestAssembleSamplesWithoutReplacement(t *testing.T) {
	g := paper.New(mixedPool(), paper.WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 50; i++ {
		got, err := g.Assemble(context.Background(), 4)
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 questions, got %d", len(got))
		}
		seen := map[int64]bool{}
		for _, q := range got {
			if seen[q.ID] {
				t.Fatalf("duplicate question %d in paper", q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestAssembleIsDeterministicWithSeed(t *testing.T) {
	a := paper.New(mixedPool(), paper.WithRand(rand.New(rand.NewSource(42))))
	b := paper.New(mixedPool(), paper.WithRand(rand.New(rand.NewSource(42))))

	pa, _ := a.Assemble(context.Background(), 3)
	pb, _ := b.Assemble(context.Background(), 3)
	if diff := cmp.Diff(pa, pb); diff != "" {
		t.Fatalf("same seed should give the same paper (-a +b):\n%s", diff)
	}
}

func TestAssembleCoversPoolAcrossCalls(t *testing.T) {
	g := paper.New(mixedPool(), paper.WithRand(rand.New(rand.NewSource(3))))
	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		got, _ := g.Assemble(context.Background(), 1)
		seen[got[0].ID] = true
	}
	if len(seen) != len(mixedPool()) {
		t.Fatalf("expected every question drawable, saw %v", seen)
	}
}

func TestAssembleDefaultsAndEmptyPool(t *testing.T) {
	g := paper.New(mixedPool(), paper.WithDefaultSize(2))
	got, err := g.Assemble(context.Background(), 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected default size 2, got %d (%v)", len(got), err)
	}

	empty := paper.New(staticPool{})
	got, err = empty.Assemble(context.Background(), 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty paper, got %d (%v)", len(got), err)
	}
}

func TestAssemblePropagatesListErrors(t *testing.T) {
	if _, err := paper.New(brokenPool{}).Assemble(context.Background(), 3); err == nil {
		t.Fatalf("expected error")
	}
}
