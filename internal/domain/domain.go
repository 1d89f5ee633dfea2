package domain

import (
	"time"
)

// Difficulty levels recognized by the question bank.
const (
	DifficultyEasy       = "easy"
	DifficultyMedium     = "medium"
	DifficultyHard       = "hard"
	DifficultyImpossible = "impossible"
)

// FilterAll is the wildcard value for a filter field.
const FilterAll = "all"

// Question is an immutable record from the question bank.
type Question struct {
	QuestionID   string
	CodeSource   string
	Category     string
	Difficulty   string
	QuestionText string
	Explanation  string
	ImageURL     string
	Reference    string
	Options      []Option
}

type Option struct {
	OptionText string
	IsCorrect  bool
}

// FilterSet is the user's question selection for one run. Mutable until the
// run starts, frozen afterwards.
type FilterSet struct {
	CodeSource    string `json:"code_source"`
	Category      string `json:"category"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
}

// Predicate is the query passed to the question bank. Only non-wildcard
// filter fields are set; zero values mean unconstrained.
type Predicate struct {
	CodeSource string
	Category   string
	Difficulty string
}

// AnswerRecord is the learner's response to one question in the working
// set. OptionIndex -1 marks a skip. Records are immutable once written.
type AnswerRecord struct {
	QuestionID  string
	OptionIndex int
	IsCorrect   bool
}

// Skipped reports whether the learner skipped the question.
func (r AnswerRecord) Skipped() bool { return r.OptionIndex < 0 }

// SessionSummary is the aggregate result of one completed run.
type SessionSummary struct {
	TotalQuestions  int
	CorrectAnswers  int
	Score           int
	ElapsedSeconds  int
	TimePerQuestion int
	DurationMinutes int
	FiltersUsed     FilterSet
	Answered        []AnsweredQuestion
}

// AnsweredQuestion is one entry of the per-question answer list persisted
// with the summary.
type AnsweredQuestion struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	IsCorrect      bool   `json:"is_correct"`
	TimeSpent      int    `json:"time_spent"`
}

// StoredSession is a persisted session as returned by the archive. The
// archive stamps CreatedBy and CreateTime on insert.
type StoredSession struct {
	SessionID       string
	Score           int
	TotalQuestions  int
	CorrectAnswers  int
	DurationMinutes int
	FiltersUsed     FilterSet
	Answered        []AnsweredQuestion
	CreatedBy       string
	CreateTime      time.Time
}

// SessionQuery selects stored sessions by any combination of fields; zero
// values are unconstrained.
type SessionQuery struct {
	Category  string
	CreatedBy string
}

// CommunityStats is the category-scoped comparison against prior learners.
type CommunityStats struct {
	AverageScore     float64
	ParticipantCount int
}

// Identity is the authenticated caller. Anonymous callers get the zero
// email and no role.
type Identity struct {
	Email string
	Role  string
}

// Anonymous is the identity used when no caller is signed in.
var Anonymous = Identity{}

func (id Identity) IsAnonymous() bool { return id.Email == "" }

func (id Identity) IsAdmin() bool { return id.Role == "admin" }

// Submitter is the identity string stamped on archived sessions. Signed-out
// callers archive under an explicit anonymous marker rather than an
// ambient default.
func (id Identity) Submitter() string {
	if id.IsAnonymous() {
		return "anonymous"
	}

	return id.Email
}
