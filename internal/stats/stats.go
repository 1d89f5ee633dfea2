package stats

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/structprep/quizd/internal/domain"
)

// SessionStore is the read path into the session archive.
type SessionStore interface {
	Filter(ctx context.Context, q domain.SessionQuery) ([]domain.StoredSession, error)
}

type Config struct {
	Store SessionStore
}

// Aggregator computes the community comparison shown next to a learner's
// results. It is best-effort: a failing archive degrades to the empty
// comparison and never blocks the results view.
type Aggregator struct {
	store SessionStore
}

func New(c Config) *Aggregator {
	return &Aggregator{store: c.Store}
}

// Compare returns the average score and distinct participant count among
// prior sessions for the category. Comparison is category-scoped only: the
// wildcard or an absent category returns the zero result without touching
// the archive. Results are recomputed on every call, never cached.
func (a *Aggregator) Compare(ctx context.Context, category string) domain.CommunityStats {
	if category == "" || category == domain.FilterAll {
		return domain.CommunityStats{}
	}

	sessions, err := a.store.Filter(ctx, domain.SessionQuery{Category: category})
	if err != nil {
		slog.WarnContext(ctx, "stats: community query failed, degrading to empty comparison",
			"category", category,
			"error", err,
		)
		return domain.CommunityStats{}
	}

	if len(sessions) == 0 {
		return domain.CommunityStats{}
	}

	sum := decimal.Zero
	participants := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		sum = sum.Add(decimal.NewFromInt(int64(s.Score)))
		participants[s.CreatedBy] = struct{}{}
	}

	avg := sum.Div(decimal.NewFromInt(int64(len(sessions))))

	return domain.CommunityStats{
		AverageScore:     avg.InexactFloat64(),
		ParticipantCount: len(participants),
	}
}

// OwnHistoryCount returns how many sessions the caller has archived for
// the category. Anonymous callers have no history; archive faults degrade
// to zero like the community comparison does.
func (a *Aggregator) OwnHistoryCount(ctx context.Context, identity domain.Identity, category string) int {
	if identity.IsAnonymous() {
		return 0
	}

	q := domain.SessionQuery{CreatedBy: identity.Email}
	if category != "" && category != domain.FilterAll {
		q.Category = category
	}

	sessions, err := a.store.Filter(ctx, q)
	if err != nil {
		slog.WarnContext(ctx, "stats: own history query failed",
			"error", err,
		)
		return 0
	}

	return len(sessions)
}
