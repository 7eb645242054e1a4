package store

import (
	"time"

	"github.com/pkarpov/studytutor/internal/model"
)

// Export collects the persisted transcript and grading outcomes into one
// JSON-serializable document for the export command.
func (s *Store) Export() (*model.TranscriptExport, error) {
	entries, err := s.ListEntries()
	if err != nil {
		return nil, err
	}
	results, err := s.ListResults()
	if err != nil {
		return nil, err
	}
	return &model.TranscriptExport{
		ExportedAt: time.Now(),
		Entries:    entries,
		Results:    results,
	}, nil
}
