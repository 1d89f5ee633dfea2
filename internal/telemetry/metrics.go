package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/event"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_sessions_started_total",
		Help: "Quiz runs started.",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_sessions_completed_total",
		Help: "Quiz runs completed.",
	})

	SessionsAborted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_sessions_aborted_total",
		Help: "Quiz runs aborted before completion.",
	})

	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_persistence_failures_total",
		Help: "Completed sessions that could not be archived.",
	})

	SessionScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quizd_session_score",
		Help:    "Score distribution of completed runs, percent.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
)

// MonitorBus wires the session lifecycle counters to the event bus.
func MonitorBus(eb *event.Bus) {
	eb.Subscribe(domain.EventNameSessionCompleted, func(_ context.Context, e event.Event) error {
		SessionsCompleted.Inc()
		SessionScores.Observe(float64(e.(domain.EventSessionCompleted).Summary.Score))
		return nil
	})

	eb.Subscribe(domain.EventNameSessionAborted, func(context.Context, event.Event) error {
		SessionsAborted.Inc()
		return nil
	})
}
