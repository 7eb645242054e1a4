package tutor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkarpov/studytutor/internal/model"
)

// ErrSessionClosed is returned when a mutation reaches a session that has
// already been graded or discarded.
var ErrSessionClosed = errors.New("challenge session is closed")

// ErrNoSuchQuestion is returned for an out-of-range question index.
var ErrNoSuchQuestion = errors.New("question index out of range")

// IncompleteSubmissionError rejects a grading attempt on a session that is
// not fully answered. It is recoverable: the session stays in
// awaiting-answers and no network call or log entry is made.
type IncompleteSubmissionError struct {
	Unanswered int
}

func (e *IncompleteSubmissionError) Error() string {
	if e.Unanswered > 0 {
		return fmt.Sprintf("submission incomplete: %d questions unanswered", e.Unanswered)
	}
	return "submission incomplete: answer is empty"
}

// Session tracks a generated challenge from creation through answering to
// grading or discarding. It is an explicit value type with no rendering-layer
// coupling and is not internally thread-safe; callers serialize access per
// instance (the tutor service does).
type Session struct {
	ID            string              `json:"id"`
	Kind          model.ChallengeKind `json:"kind"`
	Status        model.SessionStatus `json:"status"`
	PromptUsed    string              `json:"prompt_used"`
	Title         string              `json:"title,omitempty"`
	Questions     []model.Question    `json:"questions,omitempty"`
	ChallengeText string              `json:"challenge_text,omitempty"`
	Result        *model.Result       `json:"result,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`

	answers  []string
	response string
}

// NewMultipleChoice creates an awaiting-answers session with every answer
// slot initialized to no-answer.
func NewMultipleChoice(id, promptUsed, title string, questions []model.Question) *Session {
	answers := make([]string, len(questions))
	for i := range answers {
		answers[i] = model.NoAnswer
	}
	return &Session{
		ID:         id,
		Kind:       model.KindMultipleChoice,
		Status:     model.StatusAwaitingAnswers,
		PromptUsed: promptUsed,
		Title:      title,
		Questions:  questions,
		CreatedAt:  time.Now(),
		answers:    answers,
	}
}

// NewOpenResponse creates an awaiting-answers session with an empty
// free-text answer.
func NewOpenResponse(id, promptUsed, challengeText string) *Session {
	return &Session{
		ID:            id,
		Kind:          model.KindOpenResponse,
		Status:        model.StatusAwaitingAnswers,
		PromptUsed:    promptUsed,
		ChallengeText: challengeText,
		CreatedAt:     time.Now(),
	}
}

// Answer records the user's selected label for one question. Recording is a
// self-loop: it is legal any number of times while the session awaits
// answers and rejected once the session is closed.
func (s *Session) Answer(index int, label string) error {
	if s.Status != model.StatusAwaitingAnswers {
		return ErrSessionClosed
	}
	if s.Kind != model.KindMultipleChoice {
		return fmt.Errorf("session kind %s takes a free-text response", s.Kind)
	}
	if index < 0 || index >= len(s.answers) {
		return ErrNoSuchQuestion
	}
	s.answers[index] = label
	return nil
}

// SetResponse records the free-text answer of an open-response session.
func (s *Session) SetResponse(text string) error {
	if s.Status != model.StatusAwaitingAnswers {
		return ErrSessionClosed
	}
	if s.Kind != model.KindOpenResponse {
		return fmt.Errorf("session kind %s takes per-question answers", s.Kind)
	}
	s.response = text
	return nil
}

// Answers returns a copy of the recorded multiple-choice answers.
func (s *Session) Answers() []string {
	out := make([]string, len(s.answers))
	copy(out, s.answers)
	return out
}

// Response returns the recorded free-text answer.
func (s *Session) Response() string { return s.response }

// Unanswered counts the multiple-choice questions still at no-answer.
func (s *Session) Unanswered() int {
	n := 0
	for _, a := range s.answers {
		if a == model.NoAnswer {
			n++
		}
	}
	return n
}

// CheckComplete validates that the session can be submitted. On failure it
// returns an IncompleteSubmissionError and leaves all state untouched.
func (s *Session) CheckComplete() error {
	if s.Status != model.StatusAwaitingAnswers {
		return ErrSessionClosed
	}
	switch s.Kind {
	case model.KindMultipleChoice:
		if n := s.Unanswered(); n > 0 {
			return &IncompleteSubmissionError{Unanswered: n}
		}
	case model.KindOpenResponse:
		if strings.TrimSpace(s.response) == "" {
			return &IncompleteSubmissionError{}
		}
	}
	return nil
}

// GradeLocally scores a fully answered multiple-choice session and moves it
// to graded. No network call is involved.
func (s *Session) GradeLocally() (model.Result, error) {
	if s.Kind != model.KindMultipleChoice {
		return model.Result{}, fmt.Errorf("session kind %s is not graded locally", s.Kind)
	}
	if err := s.CheckComplete(); err != nil {
		return model.Result{}, err
	}
	result := Grade(s.Questions, s.answers)
	s.Result = &result
	s.Status = model.StatusGraded
	return result, nil
}

// CompleteWithFeedback moves an open-response session to graded, carrying
// the model's feedback. Callers invoke it only after the grading call
// succeeded; on failure the session stays in awaiting-answers.
func (s *Session) CompleteWithFeedback(feedback string) (model.Result, error) {
	if s.Kind != model.KindOpenResponse {
		return model.Result{}, fmt.Errorf("session kind %s is graded locally", s.Kind)
	}
	if err := s.CheckComplete(); err != nil {
		return model.Result{}, err
	}
	result := model.Result{Feedback: feedback}
	s.Result = &result
	s.Status = model.StatusGraded
	return result, nil
}

// Discard closes an awaiting session without grading it. Discarding leaves
// already recorded conversation entries untouched.
func (s *Session) Discard() {
	if s.Status == model.StatusAwaitingAnswers {
		s.Status = model.StatusDiscarded
	}
}

// clone returns a copy that is safe to read after the service releases its
// lock. Questions and grading details are never mutated after being set, so
// sharing those slices is fine; answers are copied.
func (s *Session) clone() *Session {
	c := *s
	c.answers = append([]string(nil), s.answers...)
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}
