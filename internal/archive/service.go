package archive

import (
	"context"
	"log/slog"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/event"
	"github.com/structprep/quizd/internal/telemetry"
)

// Writer persists one completed session.
type Writer interface {
	Create(ctx context.Context, identity domain.Identity, sum domain.SessionSummary) (domain.StoredSession, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Writer
}

// Service archives completed sessions off the event bus. Persistence is
// fire-and-forget relative to the run: the learner sees their results as
// soon as the run completes, and a storage fault here is logged and
// counted but never rolls anything back. Aborted runs are never archived.
type Service struct {
	store Writer
}

func NewService(c Config) *Service {
	s := &Service{store: c.Store}

	c.EventBus.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return s.archiveSession(ctx, e.(domain.EventSessionCompleted))
	})

	return s
}

func (s *Service) archiveSession(ctx context.Context, e domain.EventSessionCompleted) error {
	stored, err := s.store.Create(ctx, e.Identity, e.Summary)
	if err != nil {
		telemetry.PersistenceFailures.Inc()
		return errors.New(errors.CodeInternal,
			errors.WithReason(errors.ReasonPersistenceFailure),
			errors.WithMessagef("archive session for run %s", e.RunID),
			errors.WithCause(err),
		)
	}

	slog.InfoContext(ctx, "archive: session stored",
		"run", e.RunID,
		"session", stored.SessionID,
		"score", stored.Score,
		"created_by", stored.CreatedBy,
	)

	return nil
}
