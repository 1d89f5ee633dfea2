package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/structprep/quizd/internal/domain"
)

type StoreConfig struct {
	DB *pgxpool.Pool
}

// Store is the durable session archive. Rows are append-only: summaries go
// in once at completion and are only ever read back for statistics.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(c StoreConfig) *Store {
	return &Store{db: c.DB}
}

// Create persists one completed session. The store stamps the submitter
// identity and creation time; the caller supplies identity explicitly.
func (s *Store) Create(ctx context.Context, identity domain.Identity, sum domain.SessionSummary) (domain.StoredSession, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.StoredSession{}, fmt.Errorf("generate session ID: %w", err)
	}

	filters, err := json.Marshal(sum.FiltersUsed)
	if err != nil {
		return domain.StoredSession{}, fmt.Errorf("encode filters: %w", err)
	}
	answered, err := json.Marshal(sum.Answered)
	if err != nil {
		return domain.StoredSession{}, fmt.Errorf("encode answers: %w", err)
	}

	const stmt = `
INSERT INTO quiz_sessions (session_id, score, total_questions, correct_answers, session_duration, filters_used, questions_answered, created_by, create_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	now := time.Now().UTC()
	createdBy := identity.Submitter()

	_, err = s.db.Exec(ctx, stmt, id, sum.Score, sum.TotalQuestions, sum.CorrectAnswers,
		sum.DurationMinutes, filters, answered, createdBy, now)
	if err != nil {
		return domain.StoredSession{}, fmt.Errorf("insert session: %w", err)
	}

	return domain.StoredSession{
		SessionID:       id.String(),
		Score:           sum.Score,
		TotalQuestions:  sum.TotalQuestions,
		CorrectAnswers:  sum.CorrectAnswers,
		DurationMinutes: sum.DurationMinutes,
		FiltersUsed:     sum.FiltersUsed,
		Answered:        sum.Answered,
		CreatedBy:       createdBy,
		CreateTime:      now,
	}, nil
}

// Filter returns archived sessions matching the query. Zero-value fields
// are unconstrained. Category matches against the filters the session was
// run with.
func (s *Store) Filter(ctx context.Context, q domain.SessionQuery) ([]domain.StoredSession, error) {
	const stmt = `
SELECT session_id, score, total_questions, correct_answers, session_duration, filters_used, questions_answered, created_by, create_time
FROM quiz_sessions
WHERE ($1 = '' OR filters_used->>'category' = $1)
  AND ($2 = '' OR created_by = $2)
ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt, q.Category, q.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("filter sessions: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.StoredSession, error) {
		var (
			ss          domain.StoredSession
			rawFilters  []byte
			rawAnswered []byte
		)
		if err := r.Scan(&ss.SessionID, &ss.Score, &ss.TotalQuestions, &ss.CorrectAnswers,
			&ss.DurationMinutes, &rawFilters, &rawAnswered, &ss.CreatedBy, &ss.CreateTime); err != nil {
			return domain.StoredSession{}, err
		}

		if err := json.Unmarshal(rawFilters, &ss.FiltersUsed); err != nil {
			return domain.StoredSession{}, fmt.Errorf("decode filters for %s: %w", ss.SessionID, err)
		}
		if len(rawAnswered) > 0 {
			if err := json.Unmarshal(rawAnswered, &ss.Answered); err != nil {
				return domain.StoredSession{}, fmt.Errorf("decode answers for %s: %w", ss.SessionID, err)
			}
		}

		return ss, nil
	})
}
