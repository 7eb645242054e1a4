package tutor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pkarpov/studytutor/internal/model"
)

func newMCSession(correct ...string) *Session {
	return NewMultipleChoice("s1", "make an exam", "Quiz", mcQuestions(correct...))
}

func TestNewMultipleChoiceInitializesNoAnswers(t *testing.T) {
	s := newMCSession("A", "B", "C")

	if s.Status != model.StatusAwaitingAnswers {
		t.Errorf("expected awaiting_answers, got %s", s.Status)
	}
	for i, a := range s.Answers() {
		if a != model.NoAnswer {
			t.Errorf("answer %d not initialized to no-answer: %q", i, a)
		}
	}
	if s.Unanswered() != 3 {
		t.Errorf("Unanswered = %d, want 3", s.Unanswered())
	}
}

func TestAnswerSelfLoop(t *testing.T) {
	s := newMCSession("A", "B")

	if err := s.Answer(0, "A"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// Edits are legal any number of times while awaiting.
	if err := s.Answer(0, "C"); err != nil {
		t.Fatalf("re-Answer: %v", err)
	}
	if got := s.Answers()[0]; got != "C" {
		t.Errorf("expected overwritten answer C, got %q", got)
	}

	if err := s.Answer(5, "A"); !errors.Is(err, ErrNoSuchQuestion) {
		t.Errorf("expected ErrNoSuchQuestion, got %v", err)
	}
}

func TestIncompleteSubmissionLeavesStateUnchanged(t *testing.T) {
	s := newMCSession("A", "B", "C", "D", "A")
	for i, label := range []string{"A", "B", "C"} {
		if err := s.Answer(i, label); err != nil {
			t.Fatalf("Answer %d: %v", i, err)
		}
	}
	before := s.Answers()

	err := s.CheckComplete()
	var incomplete *IncompleteSubmissionError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteSubmissionError, got %v", err)
	}
	if incomplete.Unanswered != 2 {
		t.Errorf("Unanswered = %d, want 2", incomplete.Unanswered)
	}
	if s.Status != model.StatusAwaitingAnswers {
		t.Errorf("status changed to %s", s.Status)
	}
	if !reflect.DeepEqual(s.Answers(), before) {
		t.Error("answers changed by rejected submission")
	}

	if _, err := s.GradeLocally(); !errors.As(err, &incomplete) {
		t.Errorf("GradeLocally should reject incomplete submission, got %v", err)
	}
	if s.Status != model.StatusAwaitingAnswers {
		t.Errorf("status changed to %s after rejected grade", s.Status)
	}
}

func TestGradeLocallyTransitions(t *testing.T) {
	s := newMCSession("A", "B", "C", "D", "A")
	for i, label := range []string{"A", "B", "C", "A", "B"} {
		if err := s.Answer(i, label); err != nil {
			t.Fatalf("Answer %d: %v", i, err)
		}
	}

	result, err := s.GradeLocally()
	if err != nil {
		t.Fatalf("GradeLocally: %v", err)
	}
	if s.Status != model.StatusGraded {
		t.Errorf("expected graded, got %s", s.Status)
	}
	if result.CorrectCount != 3 || result.Percentage != 60 {
		t.Errorf("expected 3 correct / 60%%, got %d / %d%%", result.CorrectCount, result.Percentage)
	}
	if s.Result == nil || s.Result.CorrectCount != 3 {
		t.Error("result not stored on session")
	}

	// A graded session is immutable.
	if err := s.Answer(0, "D"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed after grading, got %v", err)
	}
	if got := s.Answers()[0]; got != "A" {
		t.Errorf("answer mutated after grading: %q", got)
	}
	if _, err := s.GradeLocally(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed on double grade, got %v", err)
	}
}

func TestOpenResponseLifecycle(t *testing.T) {
	s := NewOpenResponse("s2", "make questions", "1. Why is the sky blue?")

	err := s.CheckComplete()
	var incomplete *IncompleteSubmissionError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteSubmissionError for empty response, got %v", err)
	}
	if incomplete.Unanswered != 0 {
		t.Errorf("open-response incompleteness should not count questions, got %d", incomplete.Unanswered)
	}

	if err := s.SetResponse("   "); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}
	if err := s.CheckComplete(); err == nil {
		t.Error("whitespace-only response should be incomplete")
	}

	if err := s.SetResponse("Because of Rayleigh scattering."); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}
	result, err := s.CompleteWithFeedback("Score: 1/1. Correct.")
	if err != nil {
		t.Fatalf("CompleteWithFeedback: %v", err)
	}
	if s.Status != model.StatusGraded {
		t.Errorf("expected graded, got %s", s.Status)
	}
	if result.Feedback == "" {
		t.Error("expected feedback carried in result")
	}

	if err := s.SetResponse("late edit"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed after grading, got %v", err)
	}
}

func TestKindMismatch(t *testing.T) {
	mc := newMCSession("A")
	if err := mc.SetResponse("text"); err == nil {
		t.Error("SetResponse on multiple-choice session should fail")
	}
	if _, err := mc.CompleteWithFeedback("x"); err == nil {
		t.Error("CompleteWithFeedback on multiple-choice session should fail")
	}

	open := NewOpenResponse("s3", "p", "q")
	if err := open.Answer(0, "A"); err == nil {
		t.Error("Answer on open-response session should fail")
	}
	if _, err := open.GradeLocally(); err == nil {
		t.Error("GradeLocally on open-response session should fail")
	}
}

func TestDiscard(t *testing.T) {
	s := newMCSession("A")
	s.Discard()
	if s.Status != model.StatusDiscarded {
		t.Errorf("expected discarded, got %s", s.Status)
	}
	if err := s.Answer(0, "A"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed on discarded session, got %v", err)
	}

	// Discard does not reopen a graded session.
	g := newMCSession("A")
	if err := g.Answer(0, "A"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := g.GradeLocally(); err != nil {
		t.Fatalf("GradeLocally: %v", err)
	}
	g.Discard()
	if g.Status != model.StatusGraded {
		t.Errorf("discard changed a graded session to %s", g.Status)
	}
}
