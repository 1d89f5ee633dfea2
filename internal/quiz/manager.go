package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/event"
	"github.com/structprep/quizd/internal/filter"
	"github.com/structprep/quizd/internal/telemetry"
)

// Drawer produces the working set for a run.
type Drawer interface {
	Draw(ctx context.Context, p domain.Predicate, requestedCount int) ([]domain.Question, error)
}

type Config struct {
	EventBus *event.Bus
	Sampler  Drawer
	// NewTickerFunc overrides the elapsed-time ticker, nil uses time.Ticker.
	NewTickerFunc TickerFunc
	// NowFunc overrides the wall clock, nil uses time.Now.
	NowFunc func() time.Time
}

// Manager owns the live runs. Starting a run draws the working set first;
// answer and advance calls are only possible once the run exists, so no
// mutation can ever race the draw.
type Manager struct {
	eb        *event.Bus
	sampler   Drawer
	newTicker TickerFunc
	now       func() time.Time

	mu   sync.RWMutex
	runs map[string]*Run
}

func NewManager(c Config) *Manager {
	m := &Manager{
		eb:        c.EventBus,
		sampler:   c.Sampler,
		newTicker: c.NewTickerFunc,
		now:       c.NowFunc,
		runs:      make(map[string]*Run),
	}
	if m.newTicker == nil {
		m.newTicker = defaultTicker
	}
	if m.now == nil {
		m.now = time.Now
	}

	return m
}

// StartRun freezes the filter selection, draws the working set and starts
// a new run for the caller. The selection stays with the caller when the
// draw finds nothing, so they can adjust filters and retry.
func (m *Manager) StartRun(ctx context.Context, fc *filter.Config, identity domain.Identity) (*Run, error) {
	fs := fc.FilterSet()

	ws, err := m.sampler.Draw(ctx, fc.Predicate(), fs.QuestionCount)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run ID: %w", err)
	}

	r, err := newRun(id.String(), ws, fs, identity, m)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.runs[r.id] = r
	m.mu.Unlock()

	telemetry.SessionsStarted.Inc()

	slog.InfoContext(ctx, "quiz: run started",
		"run", r.id,
		"questions", len(ws),
		"filters", fs,
	)

	return r, nil
}

// Get returns the live run with the given id.
func (m *Manager) Get(id string) (*Run, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithReason(errors.ReasonRunNotFound),
			errors.WithMessagef("run %s not found", id),
		)
	}

	return r, nil
}

// Abort cancels a run mid-session: the ticker stops and the in-memory
// state is discarded without persisting anything.
func (m *Manager) Abort(ctx context.Context, id string) error {
	r, err := m.Get(id)
	if err != nil {
		return err
	}

	r.abort()

	m.mu.Lock()
	delete(m.runs, id)
	m.mu.Unlock()

	m.eb.Publish(ctx, domain.EventSessionAborted{
		RunID:    id,
		Identity: r.Identity(),
	})

	slog.InfoContext(ctx, "quiz: run aborted", "run", id)

	return nil
}

// completeRun publishes the completion event. Persistence and community
// stats both hang off this event and never feed back into the run: the
// learner sees their results regardless of what the subscribers do.
//
// TODO: evict completed runs from the map after a retention window.
func (m *Manager) completeRun(ctx context.Context, r *Run, s domain.SessionSummary) {
	m.eb.Publish(ctx, domain.EventSessionCompleted{
		RunID:    r.id,
		Summary:  s,
		Identity: r.Identity(),
	})

	slog.InfoContext(ctx, "quiz: run completed",
		"run", r.id,
		"score", s.Score,
		"total", s.TotalQuestions,
		"correct", s.CorrectAnswers,
	)
}

// Close aborts every live run, releasing their tickers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.runs {
		r.abort()
		delete(m.runs, id)
	}
}
