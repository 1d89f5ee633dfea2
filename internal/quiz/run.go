package quiz

import (
	"context"
	"sync"
	"time"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/scoring"
)

// State of a run. A run is created in StateInProgress because the manager
// only builds it once a non-empty working set has arrived; the configuring
// phase lives with the caller until then.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
)

// Run is one quiz session: a fixed working set, the forward-only question
// cursor, the recorded answers and flags, and the elapsed-time ticker.
// All mutations are serialized by the run's own mutex.
type Run struct {
	mu sync.Mutex

	id       string
	identity domain.Identity
	filters  domain.FilterSet
	ws       []domain.Question

	state    State
	index    int
	revealed bool
	answers  map[int]domain.AnswerRecord
	flags    map[string]bool

	elapsed   int
	startTime time.Time
	endTime   time.Time
	summary   domain.SessionSummary

	ticker   Ticker
	tickStop chan struct{}
	stopOnce sync.Once

	now        func() time.Time
	onComplete func(ctx context.Context, r *Run, s domain.SessionSummary)
}

func newRun(id string, ws []domain.Question, fs domain.FilterSet, identity domain.Identity, m *Manager) (*Run, error) {
	if len(ws) == 0 {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonEmptyWorkingSet),
			errors.WithMessagef("cannot start a run with no questions"),
		)
	}

	r := &Run{
		id:         id,
		identity:   identity,
		filters:    fs,
		ws:         ws,
		state:      StateInProgress,
		answers:    make(map[int]domain.AnswerRecord, len(ws)),
		flags:      make(map[string]bool),
		startTime:  m.now(),
		tickStop:   make(chan struct{}),
		now:        m.now,
		onComplete: m.completeRun,
	}

	r.ticker = m.newTicker(time.Second)
	go r.tickLoop()

	return r, nil
}

// tickLoop advances the elapsed counter once per second while the run is
// in progress. It exits when the ticker is stopped, which happens exactly
// once, on completion or abort.
func (r *Run) tickLoop() {
	for {
		select {
		case <-r.ticker.C():
			r.mu.Lock()
			if r.state == StateInProgress {
				r.elapsed++
			}
			r.mu.Unlock()
		case <-r.tickStop:
			return
		}
	}
}

func (r *Run) stopTicker() {
	r.stopOnce.Do(func() {
		r.ticker.Stop()
		close(r.tickStop)
	})
}

func (r *Run) ID() string { return r.id }

func (r *Run) Identity() domain.Identity { return r.identity }

// SelectAnswer records the learner's choice for the current question and
// reveals it. Calls while the question is already revealed, or after
// completion, are silently ignored: the first record for an index wins and
// never changes. An out-of-range option index scores as incorrect.
func (r *Run) SelectAnswer(optionIndex int) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInProgress || r.revealed {
		return r.snapshotLocked()
	}
	if _, exists := r.answers[r.index]; exists {
		r.revealed = true
		return r.snapshotLocked()
	}

	q := r.ws[r.index]
	correct := optionIndex >= 0 && optionIndex < len(q.Options) && q.Options[optionIndex].IsCorrect

	r.answers[r.index] = domain.AnswerRecord{
		QuestionID:  q.QuestionID,
		OptionIndex: optionIndex,
		IsCorrect:   correct,
	}
	r.revealed = true

	return r.snapshotLocked()
}

// Skip records a skip for the current question and reveals it.
func (r *Run) Skip() Snapshot {
	return r.SelectAnswer(-1)
}

// Advance moves to the next question, or completes the run when the
// current question is the last. Only valid while the current question is
// revealed. Completion happens exactly once: the ticker stops, the summary
// is built from the recorded answers, and the completion hook fires.
func (r *Run) Advance(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()

	if r.state != StateInProgress {
		r.mu.Unlock()
		return Snapshot{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("run is not in progress"),
		)
	}
	if !r.revealed {
		r.mu.Unlock()
		return Snapshot{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot advance before the current question is revealed"),
		)
	}

	if r.index < len(r.ws)-1 {
		r.index++
		r.revealed = false
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap, nil
	}

	r.state = StateCompleted
	r.endTime = r.now()
	r.stopTicker()
	r.summary = scoring.Summarize(r.ws, r.answers, r.elapsed, r.startTime, r.endTime, r.filters)
	snap := r.snapshotLocked()
	summary := r.summary
	r.mu.Unlock()

	r.onComplete(ctx, r, summary)

	return snap, nil
}

// Flag marks a question of the working set for review. Flags live only for
// the run and are never persisted. Re-flagging reports AlreadyFlagged
// without changing state; an unknown question id is rejected.
func (r *Run) Flag(questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inWorkingSetLocked(questionID) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonInvalidFlagTarget),
			errors.WithMessagef("question %q is not part of this run", questionID),
		)
	}

	if r.flags[questionID] {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithReason(errors.ReasonAlreadyFlagged),
			errors.WithMessagef("question %q is already flagged for review", questionID),
		)
	}

	r.flags[questionID] = true
	return nil
}

func (r *Run) inWorkingSetLocked(questionID string) bool {
	if questionID == "" {
		return false
	}
	for _, q := range r.ws {
		if q.QuestionID == questionID {
			return true
		}
	}

	return false
}

// Summary returns the completed run's summary.
func (r *Run) Summary() (domain.SessionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateCompleted {
		return domain.SessionSummary{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonRunNotCompleted),
			errors.WithMessagef("run %s is not completed", r.id),
		)
	}

	return r.summary, nil
}

// abort discards the run: the ticker is cancelled and nothing is persisted.
func (r *Run) abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateInProgress {
		r.state = StateAborted
	}
	r.stopTicker()
}

// Snapshot is a read-only view of the run for the API layer. The current
// question's correctness flags are withheld until the question is revealed.
type Snapshot struct {
	RunID          string
	State          State
	Index          int
	TotalQuestions int
	Revealed       bool
	ElapsedSeconds int
	Current        *domain.Question
	Answer         *domain.AnswerRecord
	Flagged        map[string]bool
}

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

func (r *Run) snapshotLocked() Snapshot {
	s := Snapshot{
		RunID:          r.id,
		State:          r.state,
		Index:          r.index,
		TotalQuestions: len(r.ws),
		Revealed:       r.revealed,
		ElapsedSeconds: r.elapsed,
		Flagged:        make(map[string]bool, len(r.flags)),
	}
	for id := range r.flags {
		s.Flagged[id] = true
	}

	if r.state == StateInProgress {
		q := r.ws[r.index]
		s.Current = &q
	}
	if a, ok := r.answers[r.index]; ok && r.revealed {
		s.Answer = &a
	}

	return s
}
