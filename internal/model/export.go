package model

import "time"

// ResultRecord is a persisted grading outcome.
type ResultRecord struct {
	ID           int64         `json:"id"`
	Kind         ChallengeKind `json:"kind"`
	Title        string        `json:"title,omitempty"`
	CorrectCount int           `json:"correct_count"`
	TotalCount   int           `json:"total_count"`
	Percentage   int           `json:"percentage"`
	Feedback     string        `json:"feedback,omitempty"`
	GradedAt     time.Time     `json:"graded_at"`
}

// TranscriptExport is the JSON document produced by the export command.
type TranscriptExport struct {
	ExportedAt time.Time           `json:"exported_at"`
	Entries    []ConversationEntry `json:"entries"`
	Results    []ResultRecord      `json:"results"`
}
