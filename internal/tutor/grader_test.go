package tutor

import (
	"reflect"
	"testing"

	"github.com/pkarpov/studytutor/internal/model"
)

func mcQuestions(correct ...string) []model.Question {
	qs := make([]model.Question, len(correct))
	for i, c := range correct {
		qs[i] = model.Question{
			Text:         "Q",
			Options:      []string{"A. one", "B. two", "C. three", "D. four"},
			CorrectLabel: c,
		}
	}
	return qs
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name        string
		questions   []model.Question
		answers     []string
		wantCorrect int
		wantPercent int
	}{
		{"all correct", mcQuestions("A", "B", "C"), []string{"A", "B", "C"}, 3, 100},
		{"none correct", mcQuestions("A", "B"), []string{"B", "A"}, 0, 0},
		{"three of five", mcQuestions("A", "B", "C", "D", "A"), []string{"A", "B", "C", "A", "B"}, 3, 60},
		{"one of three rounds down", mcQuestions("A", "B", "C"), []string{"A", "C", "B"}, 1, 33},
		{"two of three rounds up", mcQuestions("A", "B", "C"), []string{"A", "B", "A"}, 2, 67},
		{"empty exam grades as zero", nil, nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(tt.questions, tt.answers)
			if got.CorrectCount != tt.wantCorrect {
				t.Errorf("CorrectCount = %d, want %d", got.CorrectCount, tt.wantCorrect)
			}
			if got.TotalCount != len(tt.questions) {
				t.Errorf("TotalCount = %d, want %d", got.TotalCount, len(tt.questions))
			}
			if got.Percentage != tt.wantPercent {
				t.Errorf("Percentage = %d, want %d", got.Percentage, tt.wantPercent)
			}
			if len(got.Details) != len(tt.questions) {
				t.Errorf("expected %d details, got %d", len(tt.questions), len(got.Details))
			}
		})
	}
}

func TestGradeIsDeterministic(t *testing.T) {
	questions := mcQuestions("A", "B", "C", "D")
	answers := []string{"A", "C", "C", "B"}

	first := Grade(questions, answers)
	second := Grade(questions, answers)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("grading is not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestGradeDetails(t *testing.T) {
	questions := mcQuestions("A", "B")
	result := Grade(questions, []string{"A", "C"})

	want := []model.QuestionResult{
		{Index: 0, Selected: "A", CorrectLabel: "A", Correct: true},
		{Index: 1, Selected: "C", CorrectLabel: "B", Correct: false},
	}
	if !reflect.DeepEqual(result.Details, want) {
		t.Errorf("Details = %+v, want %+v", result.Details, want)
	}
}

func TestPassingThreshold(t *testing.T) {
	if !(model.Result{Percentage: 60}).Passed() {
		t.Error("60% should pass")
	}
	if (model.Result{Percentage: 59}).Passed() {
		t.Error("59% should not pass")
	}
}
