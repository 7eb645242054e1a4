package model

import (
	"time"
)

// MIME types accepted at the upload boundary.
const (
	MIMETextPlain = "text/plain"
	MIMEMarkdown  = "text/markdown"
	MIMEPDF       = "application/pdf"
	MIMEJPEG      = "image/jpeg"
	MIMEPNG       = "image/png"
)

// AllowedMIMETypes is the upload allow-list.
var AllowedMIMETypes = map[string]bool{
	MIMETextPlain: true,
	MIMEMarkdown:  true,
	MIMEPDF:       true,
	MIMEJPEG:      true,
	MIMEPNG:       true,
}

// IsTextMIME reports whether content of the given MIME type is stored as
// decoded text rather than base64 data.
func IsTextMIME(mime string) bool {
	return mime == MIMETextPlain || mime == MIMEMarkdown
}

// IsImageMIME reports whether the MIME type is an image type, which selects
// the vision-style system instruction.
func IsImageMIME(mime string) bool {
	return mime == MIMEJPEG || mime == MIMEPNG
}

// Material is the study input supplied by the user. Exactly one of Text and
// Data is populated: Text for text MIME types, Data (base64) otherwise.
type Material struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MIMEType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Text       string    `json:"text,omitempty"`
	Data       string    `json:"data,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// IsText reports whether the material content is decoded text.
func (m *Material) IsText() bool { return IsTextMIME(m.MIMEType) }

// IsImage reports whether the material is image-typed.
func (m *Material) IsImage() bool { return IsImageMIME(m.MIMEType) }

// Ref returns the name-and-type reference recorded in conversation entries.
// Content is never copied into the transcript.
func (m *Material) Ref() *MaterialRef {
	return &MaterialRef{Name: m.Name, MIMEType: m.MIMEType}
}

// MaterialRef identifies a material without carrying its content.
type MaterialRef struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
}

// ChallengeKind identifies the task requested from the generator.
type ChallengeKind string

const (
	KindMultipleChoice ChallengeKind = "multiple_choice"
	KindOpenResponse   ChallengeKind = "open_response"
	KindSummary        ChallengeKind = "summary"
	KindKeyPoints      ChallengeKind = "key_points"
	KindAnalogy        ChallengeKind = "analogy"
	KindQuestion       ChallengeKind = "question"
)

// IsExam reports whether the kind produces a gradable challenge session.
func (k ChallengeKind) IsExam() bool {
	return k == KindMultipleChoice || k == KindOpenResponse
}

// Difficulty represents challenge difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ChallengeSpec carries the kind-specific parameters of one generation
// request. It is not persisted beyond the call that consumes it.
type ChallengeSpec struct {
	Kind          ChallengeKind `json:"kind"`
	QuestionCount int           `json:"question_count,omitempty"`
	OptionCount   int           `json:"option_count,omitempty"`
	Difficulty    Difficulty    `json:"difficulty,omitempty"`
	Prompt        string        `json:"prompt,omitempty"`
}

// SessionStatus represents the state of a challenge session.
type SessionStatus string

const (
	StatusAwaitingAnswers SessionStatus = "awaiting_answers"
	StatusGraded          SessionStatus = "graded"
	StatusDiscarded       SessionStatus = "discarded"
)

// NoAnswer marks an unanswered multiple-choice question. It is distinct from
// every valid option label.
const NoAnswer = ""

// Question is one multiple-choice question with positionally or explicitly
// labelled options.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectLabel string   `json:"correct_label"`
}

// PassPercent is the presentational passing threshold.
const PassPercent = 60

// Result holds the outcome of grading a challenge session.
type Result struct {
	CorrectCount int              `json:"correct_count"`
	TotalCount   int              `json:"total_count"`
	Percentage   int              `json:"percentage"`
	Details      []QuestionResult `json:"details,omitempty"`
	Feedback     string           `json:"feedback,omitempty"`
}

// Passed reports whether the result meets the passing threshold.
func (r Result) Passed() bool { return r.Percentage >= PassPercent }

// QuestionResult is the per-question correctness detail of a multiple-choice
// grading.
type QuestionResult struct {
	Index        int    `json:"index"`
	Selected     string `json:"selected"`
	CorrectLabel string `json:"correct_label"`
	Correct      bool   `json:"correct"`
}

// Role represents a conversation turn role.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ConversationEntry is one turn of the transcript. Entries are append-only
// and never mutated after being recorded.
type ConversationEntry struct {
	ID           string          `json:"id"`
	Role         Role            `json:"role"`
	Text         string          `json:"text"`
	CreatedAt    time.Time       `json:"created_at"`
	IsSubmission bool            `json:"is_submission,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	Material     *MaterialRef    `json:"material,omitempty"`
	Grading      *GradingSummary `json:"grading,omitempty"`
}

// GradingSummary is the score metadata attached to an entry that reports a
// grading outcome.
type GradingSummary struct {
	CorrectCount int `json:"correct_count"`
	TotalCount   int `json:"total_count"`
	Percentage   int `json:"percentage"`
}
