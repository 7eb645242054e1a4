package tutor

import (
	"math"

	"github.com/pkarpov/studytutor/internal/model"
)

// Grade scores a fully answered multiple-choice submission against the
// answer key. It is deterministic and pure: answers[i] is compared by exact
// string equality against questions[i].CorrectLabel.
//
// An empty question list grades as 0/0 with 0%, never NaN; session creation
// rejects empty exams so this only arises from direct calls.
func Grade(questions []model.Question, answers []string) model.Result {
	total := len(questions)
	result := model.Result{TotalCount: total}

	for i, q := range questions {
		selected := model.NoAnswer
		if i < len(answers) {
			selected = answers[i]
		}
		correct := selected == q.CorrectLabel
		if correct {
			result.CorrectCount++
		}
		result.Details = append(result.Details, model.QuestionResult{
			Index:        i,
			Selected:     selected,
			CorrectLabel: q.CorrectLabel,
			Correct:      correct,
		})
	}

	if total > 0 {
		result.Percentage = int(math.Round(100 * float64(result.CorrectCount) / float64(total)))
	}
	return result
}
