// Package tutor implements the study-tutor core: the challenge session state
// machine, local grading, option-label parsing, and the conversation log.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkarpov/studytutor/internal/llm"
	"github.com/pkarpov/studytutor/internal/llm/prompts"
	"github.com/pkarpov/studytutor/internal/model"
)

// ErrNoActiveSession is returned when an answer or submission arrives with
// no challenge session in flight.
var ErrNoActiveSession = errors.New("no active challenge session")

// History persists transcript entries and graded results across restarts.
type History interface {
	AppendEntry(model.ConversationEntry) error
	ResetEntries() error
	InsertResult(kind model.ChallengeKind, title string, r model.Result) error
}

// Config holds the service-level defaults applied to challenge specs.
type Config struct {
	QuestionCount    int
	OptionCount      int
	Difficulty       model.Difficulty
	MaxMaterialBytes int64
	ContextChars     int
}

const (
	defaultQuestionCount = 5
	defaultOptionCount   = 4
)

// ChallengeOutcome is the result of starting a challenge. Exam kinds carry a
// snapshot of the created session; one-shot kinds (summary, key points,
// analogy, question) carry the model's reply text.
type ChallengeOutcome struct {
	Session *Session
	Text    string
}

// Service orchestrates material, sessions, the generation client, and the
// conversation log. All operations are serialized by an internal mutex; the
// host keeps at most one generation in flight, and the lock makes concurrent
// hosts safe too.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	client  *llm.Client
	log     *ConversationLog
	history History

	material *model.Material
	session  *Session
}

// NewService creates the orchestrating service. history may be nil when no
// persistence is wanted.
func NewService(client *llm.Client, history History, cfg Config) *Service {
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = defaultQuestionCount
	}
	if cfg.OptionCount <= 0 {
		cfg.OptionCount = defaultOptionCount
	}
	return &Service{
		cfg:     cfg,
		client:  client,
		log:     NewConversationLog(),
		history: history,
	}
}

// UploadMaterial validates and installs new study material, replacing any
// previous one wholesale. Replacing material invalidates the active session.
func (s *Service) UploadMaterial(name, declaredMIME string, data []byte) (*model.Material, error) {
	m, err := NewMaterial(name, declaredMIME, data, s.cfg.MaxMaterialBytes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.material = m
	s.discardLocked()
	return m, nil
}

// ClearMaterial removes the material, discards the active session, and
// resets the whole conversation log.
func (s *Service) ClearMaterial() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.material = nil
	s.discardLocked()
	s.log.Reset()
	if s.history != nil {
		if err := s.history.ResetEntries(); err != nil {
			slog.Warn("reset persisted transcript", "error", err)
		}
	}
}

// Material returns the current study material, or nil.
func (s *Service) Material() *model.Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.material
}

// StartChallenge issues a create-mode generation call. Starting a new
// challenge counts as a task switch and discards any session still awaiting
// answers. Fatal generation errors are recorded as error entries and
// returned.
func (s *Service) StartChallenge(ctx context.Context, spec model.ChallengeSpec) (*ChallengeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec = s.applyDefaults(spec)
	s.discardLocked()

	// Free-form questions may run without material; every other kind needs it
	// loaded first.
	if s.material == nil && spec.Kind != model.KindQuestion {
		s.recordErrorLocked(llm.ErrMaterialNotReady)
		return nil, llm.ErrMaterialNotReady
	}

	data := prompts.CreateData{
		QuestionCount: spec.QuestionCount,
		OptionCount:   spec.OptionCount,
		Difficulty:    string(spec.Difficulty),
		Prompt:        spec.Prompt,
	}
	if s.material != nil && s.material.IsText() {
		data.MaterialText = s.material.Text
	}
	prompt, err := prompts.BuildCreate(spec.Kind, data)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	// The session keeps the exact prompt sent to the generator. The
	// transcript never carries material content, so the logged entry is the
	// material-free rendering when the two differ.
	instruction := prompt
	if data.MaterialText != "" {
		data.MaterialText = ""
		if instruction, err = prompts.BuildCreate(spec.Kind, data); err != nil {
			return nil, fmt.Errorf("build instruction: %w", err)
		}
	}

	userEntry := model.ConversationEntry{Role: model.RoleUser, Text: instruction}
	if s.material != nil {
		userEntry.Material = s.material.Ref()
	}
	s.appendLocked(userEntry)

	switch spec.Kind {
	case model.KindMultipleChoice:
		exam, err := s.client.CreateExam(ctx, prompt, s.material)
		if err != nil {
			s.recordErrorLocked(err)
			return nil, err
		}
		questions, err := convertQuestions(exam)
		if err != nil {
			s.recordErrorLocked(err)
			return nil, err
		}
		session := NewMultipleChoice(uuid.NewString(), prompt, exam.Title, questions)
		s.session = session
		s.appendLocked(model.ConversationEntry{
			Role: model.RoleModel,
			Text: renderExam(exam),
		})
		return &ChallengeOutcome{Session: session.clone()}, nil

	case model.KindOpenResponse:
		text, err := s.client.CreateText(ctx, prompt, s.material)
		if err != nil {
			s.recordErrorLocked(err)
			return nil, err
		}
		session := NewOpenResponse(uuid.NewString(), prompt, text)
		s.session = session
		s.appendLocked(model.ConversationEntry{Role: model.RoleModel, Text: text})
		return &ChallengeOutcome{Session: session.clone()}, nil

	default:
		text, err := s.client.CreateText(ctx, prompt, s.material)
		if err != nil {
			s.recordErrorLocked(err)
			return nil, err
		}
		s.appendLocked(model.ConversationEntry{Role: model.RoleModel, Text: text})
		return &ChallengeOutcome{Text: text}, nil
	}
}

// RecordAnswer stores the user's selected label for one question of the
// active multiple-choice session.
func (s *Service) RecordAnswer(index int, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoActiveSession
	}
	return s.session.Answer(index, label)
}

// RecordResponse stores the free-text answer of the active open-response
// session.
func (s *Service) RecordResponse(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoActiveSession
	}
	return s.session.SetResponse(text)
}

// Submit grades the active session. Multiple-choice grading is local and
// synchronous; open-response grading issues a grade-mode generation call and
// only transitions on success. An incomplete submission is rejected before
// any log entry or network call.
func (s *Service) Submit(ctx context.Context) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNoActiveSession
	}
	if err := s.session.CheckComplete(); err != nil {
		return nil, err
	}

	switch s.session.Kind {
	case model.KindMultipleChoice:
		answers := s.session.Answers()
		s.appendLocked(model.ConversationEntry{
			Role:         model.RoleUser,
			Text:         "Submitted answers: " + strings.Join(answers, ", "),
			IsSubmission: true,
		})

		result, err := s.session.GradeLocally()
		if err != nil {
			return nil, err
		}
		s.appendLocked(model.ConversationEntry{
			Role: model.RoleModel,
			Text: renderScore(result),
			Grading: &model.GradingSummary{
				CorrectCount: result.CorrectCount,
				TotalCount:   result.TotalCount,
				Percentage:   result.Percentage,
			},
		})
		s.persistResultLocked(result)
		return &result, nil

	case model.KindOpenResponse:
		s.appendLocked(model.ConversationEntry{
			Role:         model.RoleUser,
			Text:         s.session.Response(),
			IsSubmission: true,
		})

		contextText := ""
		if s.material != nil && s.material.IsText() {
			contextText = ContextSnippet(s.material.Text, s.cfg.ContextChars)
		}
		feedback, err := s.client.GradeSubmission(ctx, s.session.ChallengeText, s.session.Response(), contextText)
		if err != nil {
			s.recordErrorLocked(err)
			return nil, err
		}

		result, err := s.session.CompleteWithFeedback(feedback)
		if err != nil {
			return nil, err
		}
		s.appendLocked(model.ConversationEntry{Role: model.RoleModel, Text: feedback})
		s.persistResultLocked(result)
		return &result, nil

	default:
		return nil, fmt.Errorf("session kind %s cannot be submitted", s.session.Kind)
	}
}

// Discard drops the active session without grading it. Recorded transcript
// entries stay.
func (s *Service) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

// Session returns a snapshot of the active challenge session, or nil. The
// snapshot is taken under the service lock; the live session never leaves
// the service.
func (s *Service) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return s.session.clone()
}

// Transcript returns the conversation entries in append order.
func (s *Service) Transcript() []model.ConversationEntry {
	return s.log.All()
}

func (s *Service) applyDefaults(spec model.ChallengeSpec) model.ChallengeSpec {
	if spec.QuestionCount <= 0 {
		spec.QuestionCount = s.cfg.QuestionCount
	}
	if spec.OptionCount <= 0 {
		spec.OptionCount = s.cfg.OptionCount
	}
	if spec.Difficulty == "" {
		spec.Difficulty = s.cfg.Difficulty
	}
	return spec
}

func (s *Service) discardLocked() {
	if s.session != nil {
		s.session.Discard()
		s.session = nil
	}
}

func (s *Service) appendLocked(entry model.ConversationEntry) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	s.log.Append(entry)
	if s.history != nil {
		if err := s.history.AppendEntry(entry); err != nil {
			slog.Warn("persist transcript entry", "error", err)
		}
	}
}

func (s *Service) recordErrorLocked(err error) {
	s.appendLocked(model.ConversationEntry{
		Role:    model.RoleModel,
		Text:    err.Error(),
		IsError: true,
	})
}

func (s *Service) persistResultLocked(result model.Result) {
	if s.history == nil {
		return
	}
	if err := s.history.InsertResult(s.session.Kind, s.session.Title, result); err != nil {
		slog.Warn("persist challenge result", "error", err)
	}
}

// convertQuestions normalizes generated questions into the session shape,
// rejecting any whose correct answer does not match an option label.
func convertQuestions(exam *llm.GeneratedExam) ([]model.Question, error) {
	questions := make([]model.Question, len(exam.Questions))
	for i, gq := range exam.Questions {
		label := NormalizeCorrectAnswer(gq.CorrectAnswer, gq.Options)
		if label == "" {
			return nil, &llm.MalformedOutputError{
				Raw: gq.CorrectAnswer,
				Err: fmt.Errorf("question %d: correct answer matches no option", i+1),
			}
		}
		questions[i] = model.Question{
			Text:         gq.Question,
			Options:      gq.Options,
			CorrectLabel: label,
		}
	}
	return questions, nil
}

func renderExam(exam *llm.GeneratedExam) string {
	var sb strings.Builder
	if exam.Title != "" {
		sb.WriteString(exam.Title + "\n\n")
	}
	for i, q := range exam.Questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q.Question)
		for j, opt := range q.Options {
			if leadingLabel.MatchString(opt) {
				fmt.Fprintf(&sb, "   %s\n", strings.TrimSpace(opt))
			} else {
				fmt.Fprintf(&sb, "   %s. %s\n", PositionLabel(j), strings.TrimSpace(opt))
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderScore(result model.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Score: %d/%d (%d%%)", result.CorrectCount, result.TotalCount, result.Percentage)
	for _, d := range result.Details {
		mark := "correct"
		if !d.Correct {
			mark = fmt.Sprintf("incorrect, answer %s", d.CorrectLabel)
		}
		fmt.Fprintf(&sb, "\n%d. %s (%s)", d.Index+1, d.Selected, mark)
	}
	return sb.String()
}
