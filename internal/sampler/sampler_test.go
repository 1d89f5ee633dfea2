package sampler_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/sampler"
)

type fakeSource struct {
	questions []domain.Question
	err       error

	gotPredicate domain.Predicate
	gotLimit     int
}

func (f *fakeSource) Filter(_ context.Context, p domain.Predicate, limit int) ([]domain.Question, error) {
	f.gotPredicate = p
	f.gotLimit = limit

	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.questions) {
		return f.questions[:limit], nil
	}
	return f.questions, nil
}

func makeQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{QuestionID: fmt.Sprintf("q%d", i)}
	}
	return qs
}

func TestSampler_Draw(t *testing.T) {
	tests := map[string]struct {
		candidates int
		requested  int
		wantLen    int
	}{
		"more candidates than requested":  {candidates: 50, requested: 10, wantLen: 10},
		"fewer candidates than requested": {candidates: 3, requested: 10, wantLen: 3},
		"exactly as many":                 {candidates: 5, requested: 5, wantLen: 5},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := sampler.New(sampler.Config{
				Source: &fakeSource{questions: makeQuestions(tt.candidates)},
				Rand:   rand.New(rand.NewPCG(1, 2)),
			})

			ws, err := s.Draw(context.Background(), domain.Predicate{}, tt.requested)
			require.NoError(t, err)
			require.Len(t, ws, tt.wantLen)

			seen := make(map[string]struct{}, len(ws))
			for _, q := range ws {
				_, dup := seen[q.QuestionID]
				require.False(t, dup, "duplicate question %s", q.QuestionID)
				seen[q.QuestionID] = struct{}{}
			}
		})
	}
}

func TestSampler_Draw_NoMatches(t *testing.T) {
	s := sampler.New(sampler.Config{Source: &fakeSource{}})

	_, err := s.Draw(context.Background(), domain.Predicate{Difficulty: "hard"}, 10)
	require.Error(t, err)
	assert.True(t, errors.HasReason(err, errors.ReasonNoMatchingQuestions))
}

func TestSampler_Draw_SourceUnavailable(t *testing.T) {
	s := sampler.New(sampler.Config{
		Source: &fakeSource{err: fmt.Errorf("connection refused")},
	})

	ws, err := s.Draw(context.Background(), domain.Predicate{}, 10)
	require.Error(t, err)
	assert.True(t, errors.HasReason(err, errors.ReasonQuestionSourceUnavailable))
	assert.Nil(t, ws, "no partial working set on fetch failure")
}

func TestSampler_Draw_CandidateCap(t *testing.T) {
	src := &fakeSource{questions: makeQuestions(1000)}
	s := sampler.New(sampler.Config{Source: src, Rand: rand.New(rand.NewPCG(3, 4))})

	_, err := s.Draw(context.Background(), domain.Predicate{Category: "Steel"}, 10)
	require.NoError(t, err)

	assert.Equal(t, 500, src.gotLimit)
	assert.Equal(t, domain.Predicate{Category: "Steel"}, src.gotPredicate)
}

// TestSampler_Draw_Uniform checks that no working-set slot systematically
// favors any candidate: over many seeded draws of 1 from 4, each candidate
// should land close to a quarter of the time. A chi-square statistic over
// 4000 trials with 3 degrees of freedom stays under 16.27 (p=0.001) for
// any honest uniform shuffle.
func TestSampler_Draw_Uniform(t *testing.T) {
	const (
		candidates = 4
		trials     = 4000
	)

	src := &fakeSource{questions: makeQuestions(candidates)}
	s := sampler.New(sampler.Config{
		Source: src,
		Rand:   rand.New(rand.NewPCG(42, 43)),
	})

	counts := make(map[string]int, candidates)
	for i := 0; i < trials; i++ {
		ws, err := s.Draw(context.Background(), domain.Predicate{}, 1)
		require.NoError(t, err)
		require.Len(t, ws, 1)
		counts[ws[0].QuestionID]++
	}

	expected := float64(trials) / candidates
	chi2 := 0.0
	for _, q := range src.questions {
		d := float64(counts[q.QuestionID]) - expected
		chi2 += d * d / expected
	}

	assert.Less(t, chi2, 16.27, "draw distribution is not uniform: %v", counts)
}

// Repeated draws over the same pool should not keep producing the same
// order.
func TestSampler_Draw_OrderVaries(t *testing.T) {
	s := sampler.New(sampler.Config{
		Source: &fakeSource{questions: makeQuestions(10)},
		Rand:   rand.New(rand.NewPCG(7, 8)),
	})

	orders := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		ws, err := s.Draw(context.Background(), domain.Predicate{}, 10)
		require.NoError(t, err)

		key := ""
		for _, q := range ws {
			key += q.QuestionID + ","
		}
		orders[key] = struct{}{}
	}

	assert.Greater(t, len(orders), 1, "every draw produced the identical order")
}
