package questionbank

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/structprep/quizd/internal/domain"
)

type Config struct {
	DB *pgxpool.Pool
}

// Store is the read-only question bank. Questions are authored elsewhere;
// this service only lists and filters them.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(c Config) *Store {
	return &Store{db: c.DB}
}

const selectColumns = `question_id, code_source, category, difficulty, question_text,
	COALESCE(explanation, ''), COALESCE(image_url, ''), COALESCE(reference, ''), options`

// List returns up to limit questions in stable id order. Used by the
// catalog to enumerate the categories present in the bank.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Question, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM questions ORDER BY question_id LIMIT $1;`, selectColumns)

	rows, err := s.db.Query(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return collectQuestions(rows)
}

// Filter returns up to limit questions matching the predicate. Zero-value
// predicate fields are unconstrained.
func (s *Store) Filter(ctx context.Context, p domain.Predicate, limit int) ([]domain.Question, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM questions WHERE ($1 = '' OR code_source = $1)
	AND ($2 = '' OR category = $2)
	AND ($3 = '' OR difficulty = $3)
ORDER BY question_id
LIMIT $4;`, selectColumns)

	rows, err := s.db.Query(ctx, stmt, p.CodeSource, p.Category, p.Difficulty, limit)
	if err != nil {
		return nil, fmt.Errorf("filter questions: %w", err)
	}

	return collectQuestions(rows)
}

type optionRow struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

func collectQuestions(rows pgx.Rows) ([]domain.Question, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			q       domain.Question
			rawOpts []byte
		)
		if err := r.Scan(&q.QuestionID, &q.CodeSource, &q.Category, &q.Difficulty,
			&q.QuestionText, &q.Explanation, &q.ImageURL, &q.Reference, &rawOpts); err != nil {
			return domain.Question{}, err
		}

		var opts []optionRow
		if err := json.Unmarshal(rawOpts, &opts); err != nil {
			return domain.Question{}, fmt.Errorf("decode options for %s: %w", q.QuestionID, err)
		}
		q.Options = make([]domain.Option, 0, len(opts))
		for _, o := range opts {
			q.Options = append(q.Options, domain.Option{
				OptionText: o.Text,
				IsCorrect:  o.IsCorrect,
			})
		}

		return q, nil
	})
}
