package filter

import (
	"slices"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
)

// CodeSources are the code identifiers recognized by the question bank.
var CodeSources = []string{"ACI", "AISC", "IBC", "ASCE", "NDS", "TMS"}

// Difficulties in ascending order.
var Difficulties = []string{
	domain.DifficultyEasy,
	domain.DifficultyMedium,
	domain.DifficultyHard,
	domain.DifficultyImpossible,
}

// QuestionCounts are the selectable working-set sizes.
var QuestionCounts = []int{5, 10, 20, 30, 50}

const DefaultQuestionCount = 10

// Config validates and holds the learner's filter selection for one run.
// Category values are checked against the catalog snapshot supplied at
// construction. Mutable until the run starts; the engine freezes the
// resulting FilterSet at that point.
type Config struct {
	categories []string
	fs         domain.FilterSet
}

func New(categories []string) *Config {
	return &Config{
		categories: categories,
		fs: domain.FilterSet{
			CodeSource:    domain.FilterAll,
			Category:      domain.FilterAll,
			Difficulty:    domain.FilterAll,
			QuestionCount: DefaultQuestionCount,
		},
	}
}

func (c *Config) SetCodeSource(v string) error {
	if v != domain.FilterAll && !slices.Contains(CodeSources, v) {
		return invalidValue("code_source", v)
	}

	c.fs.CodeSource = v
	return nil
}

func (c *Config) SetCategory(v string) error {
	if v != domain.FilterAll && !slices.Contains(c.categories, v) {
		return invalidValue("category", v)
	}

	c.fs.Category = v
	return nil
}

func (c *Config) SetDifficulty(v string) error {
	if v != domain.FilterAll && !slices.Contains(Difficulties, v) {
		return invalidValue("difficulty", v)
	}

	c.fs.Difficulty = v
	return nil
}

func (c *Config) SetQuestionCount(n int) error {
	if !slices.Contains(QuestionCounts, n) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonInvalidFilterValue),
			errors.WithMessagef("question_count must be one of %v, got %d", QuestionCounts, n),
		)
	}

	c.fs.QuestionCount = n
	return nil
}

// EntryParams are filter overrides read once at configuration time, before
// the learner interacts with the selection. Empty fields leave the current
// value in place.
type EntryParams struct {
	Difficulty string
	CodeSource string
	Category   string
}

func (c *Config) ApplyEntryParams(p EntryParams) error {
	if p.Difficulty != "" {
		if err := c.SetDifficulty(p.Difficulty); err != nil {
			return err
		}
	}
	if p.CodeSource != "" {
		if err := c.SetCodeSource(p.CodeSource); err != nil {
			return err
		}
	}
	if p.Category != "" {
		if err := c.SetCategory(p.Category); err != nil {
			return err
		}
	}

	return nil
}

// FilterSet returns a copy of the current selection.
func (c *Config) FilterSet() domain.FilterSet {
	return c.fs
}

// Predicate builds the question-bank query from the selection. Wildcard
// fields are omitted, so an all-wildcard selection yields the
// unconstrained predicate.
func (c *Config) Predicate() domain.Predicate {
	var p domain.Predicate
	if c.fs.CodeSource != domain.FilterAll {
		p.CodeSource = c.fs.CodeSource
	}
	if c.fs.Category != domain.FilterAll {
		p.Category = c.fs.Category
	}
	if c.fs.Difficulty != domain.FilterAll {
		p.Difficulty = c.fs.Difficulty
	}

	return p
}

func invalidValue(field, v string) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithReason(errors.ReasonInvalidFilterValue),
		errors.WithMessagef("invalid %s: %q", field, v),
	)
}
