package sampler

import (
	"context"
	"math/rand/v2"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
)

// candidateCap bounds how many questions are fetched per draw so a broad
// predicate never scans the whole bank.
const candidateCap = 500

// QuestionSource is the read path into the question bank.
type QuestionSource interface {
	Filter(ctx context.Context, p domain.Predicate, limit int) ([]domain.Question, error)
}

type Config struct {
	Source QuestionSource
	// CandidateCap overrides the default fetch bound, zero keeps the default.
	CandidateCap int
	// Rand overrides the shuffle source, nil uses the global source.
	Rand *rand.Rand
}

// Sampler draws randomized working sets from the question bank.
type Sampler struct {
	source QuestionSource
	cap    int
	rand   *rand.Rand
}

func New(c Config) *Sampler {
	s := &Sampler{
		source: c.Source,
		cap:    c.CandidateCap,
		rand:   c.Rand,
	}
	if s.cap <= 0 {
		s.cap = candidateCap
	}

	return s
}

// Draw fetches candidates matching the predicate and returns
// min(requestedCount, len(candidates)) of them in uniformly shuffled order.
// Each candidate has equal inclusion probability: the whole candidate set
// is permuted with a Fisher-Yates shuffle, then truncated. The order is
// fixed for the run.
func (s *Sampler) Draw(ctx context.Context, p domain.Predicate, requestedCount int) ([]domain.Question, error) {
	candidates, err := s.source.Filter(ctx, p, s.cap)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithReason(errors.ReasonQuestionSourceUnavailable),
			errors.WithMessagef("question bank fetch failed"),
			errors.WithCause(err),
		)
	}

	if len(candidates) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithReason(errors.ReasonNoMatchingQuestions),
			errors.WithMessagef("no questions match the selected filters"),
		)
	}

	s.shuffle(candidates)

	if requestedCount < len(candidates) {
		candidates = candidates[:requestedCount]
	}

	return candidates, nil
}

func (s *Sampler) shuffle(qs []domain.Question) {
	swap := func(i, j int) { qs[i], qs[j] = qs[j], qs[i] }
	if s.rand != nil {
		s.rand.Shuffle(len(qs), swap)
		return
	}
	rand.Shuffle(len(qs), swap)
}
