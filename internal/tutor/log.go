package tutor

import (
	"sync"

	"github.com/pkarpov/studytutor/internal/model"
)

// ConversationLog is the append-only ordered record of turns. Entries are
// never reordered or mutated after append; the only removal is a whole-log
// reset, tied to material removal.
type ConversationLog struct {
	mu      sync.Mutex
	entries []model.ConversationEntry
}

// NewConversationLog returns an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

// Append records one entry at the end of the log.
func (l *ConversationLog) Append(entry model.ConversationEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// All returns the entries in append order. The returned slice is a copy.
func (l *ConversationLog) All() []model.ConversationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ConversationEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards the whole log.
func (l *ConversationLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
