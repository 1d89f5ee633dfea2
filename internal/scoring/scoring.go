package scoring

import (
	"math"
	"strconv"
	"time"

	"github.com/structprep/quizd/internal/domain"
)

// Summarize computes the aggregate result of a completed run. Pure: it
// reads the working set, the recorded answers and the timing inputs, and
// performs no I/O.
//
// ElapsedSeconds comes from the per-second tick and feeds the on-screen
// totals; the persisted duration in minutes is derived from the wall-clock
// start and end instead, so timer drift never skews the archive.
func Summarize(
	workingSet []domain.Question,
	answers map[int]domain.AnswerRecord,
	elapsedSeconds int,
	start, end time.Time,
	filters domain.FilterSet,
) domain.SessionSummary {
	total := len(workingSet)

	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}

	s := domain.SessionSummary{
		TotalQuestions:  total,
		CorrectAnswers:  correct,
		ElapsedSeconds:  elapsedSeconds,
		DurationMinutes: roundRatio(end.Sub(start).Seconds(), 60),
		FiltersUsed:     filters,
		Answered:        answeredList(workingSet, answers),
	}

	if total > 0 {
		s.Score = roundRatio(float64(correct)*100, float64(total))
		s.TimePerQuestion = roundRatio(float64(elapsedSeconds), float64(total))
	}

	return s
}

func answeredList(workingSet []domain.Question, answers map[int]domain.AnswerRecord) []domain.AnsweredQuestion {
	out := make([]domain.AnsweredQuestion, 0, len(answers))
	for i := range workingSet {
		a, ok := answers[i]
		if !ok {
			continue
		}

		out = append(out, domain.AnsweredQuestion{
			QuestionID:     a.QuestionID,
			SelectedAnswer: strconv.Itoa(a.OptionIndex),
			IsCorrect:      a.IsCorrect,
		})
	}

	return out
}

func roundRatio(num, den float64) int {
	if den == 0 {
		return 0
	}

	return int(math.Round(num / den))
}
