package archive_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structprep/quizd/internal/archive"
	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/event"
	"github.com/structprep/quizd/internal/telemetry"
)

type fakeWriter struct {
	mu      sync.Mutex
	err     error
	created []createCall
}

type createCall struct {
	identity domain.Identity
	summary  domain.SessionSummary
}

func (f *fakeWriter) Create(_ context.Context, id domain.Identity, sum domain.SessionSummary) (domain.StoredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return domain.StoredSession{}, f.err
	}

	f.created = append(f.created, createCall{identity: id, summary: sum})
	return domain.StoredSession{
		SessionID: "stored-1",
		Score:     sum.Score,
		CreatedBy: id.Submitter(),
	}, nil
}

func TestService_ArchivesCompletedSessions(t *testing.T) {
	eb := event.NewBus()
	w := &fakeWriter{}
	archive.NewService(archive.Config{EventBus: eb, Store: w})

	summary := domain.SessionSummary{Score: 80, TotalQuestions: 10, CorrectAnswers: 8}
	eb.Publish(context.Background(), domain.EventSessionCompleted{
		RunID:    "r1",
		Summary:  summary,
		Identity: domain.Identity{Email: "eng@x.com"},
	})
	eb.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.created, 1)
	assert.Equal(t, summary, w.created[0].summary)
	assert.Equal(t, "eng@x.com", w.created[0].identity.Email)
}

func TestService_PersistenceFailureIsSwallowed(t *testing.T) {
	eb := event.NewBus()
	w := &fakeWriter{err: fmt.Errorf("disk full")}
	archive.NewService(archive.Config{EventBus: eb, Store: w})

	before := testutil.ToFloat64(telemetry.PersistenceFailures)

	// The publish must not fail even though the store does: persistence is
	// fire-and-forget relative to the run.
	eb.Publish(context.Background(), domain.EventSessionCompleted{
		RunID:   "r1",
		Summary: domain.SessionSummary{Score: 80},
	})
	eb.Stop()

	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.PersistenceFailures))
}
