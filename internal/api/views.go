package api

import (
	"fmt"
	"sort"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/quiz"
)

type runView struct {
	RunID          string      `json:"run_id"`
	State          string      `json:"state"`
	Index          int         `json:"index"`
	TotalQuestions int         `json:"total_questions"`
	Revealed       bool        `json:"revealed"`
	ElapsedSeconds int         `json:"elapsed_seconds"`
	ElapsedDisplay string      `json:"elapsed_display"`
	Question       *questionView `json:"question,omitempty"`
	Answer         *answerView `json:"answer,omitempty"`
	Flagged        []string    `json:"flagged"`
}

type questionView struct {
	QuestionID   string       `json:"question_id"`
	CodeSource   string       `json:"code_source"`
	Category     string       `json:"category"`
	Difficulty   string       `json:"difficulty"`
	QuestionText string       `json:"question_text"`
	ImageURL     string       `json:"image_url,omitempty"`
	Options      []optionView `json:"options"`

	// Revealed-only fields.
	CorrectOption *int   `json:"correct_option,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

type optionView struct {
	Text string `json:"text"`
}

type answerView struct {
	OptionIndex int  `json:"option_index"`
	IsCorrect   bool `json:"is_correct"`
	Skipped     bool `json:"skipped"`
}

// newRunView renders a snapshot. Correctness, explanation and reference of
// the current question stay hidden until the question is revealed.
func newRunView(s quiz.Snapshot) runView {
	v := runView{
		RunID:          s.RunID,
		State:          string(s.State),
		Index:          s.Index,
		TotalQuestions: s.TotalQuestions,
		Revealed:       s.Revealed,
		ElapsedSeconds: s.ElapsedSeconds,
		ElapsedDisplay: formatElapsed(s.ElapsedSeconds),
		Flagged:        make([]string, 0, len(s.Flagged)),
	}
	for id := range s.Flagged {
		v.Flagged = append(v.Flagged, id)
	}
	sort.Strings(v.Flagged)

	if s.Current != nil {
		v.Question = newQuestionView(*s.Current, s.Revealed)
	}
	if s.Answer != nil {
		v.Answer = &answerView{
			OptionIndex: s.Answer.OptionIndex,
			IsCorrect:   s.Answer.IsCorrect,
			Skipped:     s.Answer.Skipped(),
		}
	}

	return v
}

func newQuestionView(q domain.Question, revealed bool) *questionView {
	v := &questionView{
		QuestionID:   q.QuestionID,
		CodeSource:   q.CodeSource,
		Category:     q.Category,
		Difficulty:   q.Difficulty,
		QuestionText: q.QuestionText,
		ImageURL:     q.ImageURL,
		Options:      make([]optionView, 0, len(q.Options)),
	}
	for _, o := range q.Options {
		v.Options = append(v.Options, optionView{Text: o.OptionText})
	}

	if revealed {
		for i, o := range q.Options {
			if o.IsCorrect {
				idx := i
				v.CorrectOption = &idx
				break
			}
		}
		v.Explanation = q.Explanation
		v.Reference = q.Reference
	}

	return v
}

type resultsView struct {
	Score            int                       `json:"score"`
	TotalQuestions   int                       `json:"total_questions"`
	CorrectAnswers   int                       `json:"correct_answers"`
	IncorrectAnswers int                       `json:"incorrect_answers"`
	ElapsedSeconds   int                       `json:"elapsed_seconds"`
	ElapsedDisplay   string                    `json:"elapsed_display"`
	TimePerQuestion  int                       `json:"time_per_question"`
	DurationMinutes  int                       `json:"session_duration"`
	FiltersUsed      domain.FilterSet          `json:"filters_used"`
	Answered         []domain.AnsweredQuestion `json:"questions_answered"`
	Community        communityView             `json:"community"`
	MySessionCount   int                       `json:"my_session_count"`
}

type communityView struct {
	AverageScore     float64 `json:"average_score"`
	ParticipantCount int     `json:"participant_count"`
}

func newResultsView(s domain.SessionSummary, cs domain.CommunityStats, ownCount int) resultsView {
	return resultsView{
		Score:            s.Score,
		TotalQuestions:   s.TotalQuestions,
		CorrectAnswers:   s.CorrectAnswers,
		IncorrectAnswers: s.TotalQuestions - s.CorrectAnswers,
		ElapsedSeconds:   s.ElapsedSeconds,
		ElapsedDisplay:   formatElapsed(s.ElapsedSeconds),
		TimePerQuestion:  s.TimePerQuestion,
		DurationMinutes:  s.DurationMinutes,
		FiltersUsed:      s.FiltersUsed,
		Answered:         s.Answered,
		Community: communityView{
			AverageScore:     cs.AverageScore,
			ParticipantCount: cs.ParticipantCount,
		},
		MySessionCount: ownCount,
	}
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
