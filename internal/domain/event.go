package domain

const (
	EventNameSessionCompleted = "session.completed"
	EventNameSessionAborted   = "session.aborted"
)

// EventSessionCompleted is published exactly once when a run finishes.
// Identity is carried explicitly so subscribers never read ambient state.
type EventSessionCompleted struct {
	RunID    string
	Summary  SessionSummary
	Identity Identity
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventSessionAborted struct {
	RunID    string
	Identity Identity
}

func (EventSessionAborted) Name() string { return EventNameSessionAborted }
