// Package store persists the conversation transcript and graded challenge
// results in SQLite, so a server restart does not lose history.
package store

import (
	"database/sql"
	"fmt"

	"github.com/pkarpov/studytutor/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_entries (
		id TEXT PRIMARY KEY,
		seq INTEGER UNIQUE,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		is_submission INTEGER NOT NULL DEFAULT 0,
		is_error INTEGER NOT NULL DEFAULT 0,
		material_name TEXT,
		material_mime TEXT,
		grade_correct INTEGER,
		grade_total INTEGER,
		grade_percent INTEGER
	);

	CREATE TABLE IF NOT EXISTS challenge_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		correct_count INTEGER NOT NULL DEFAULT 0,
		total_count INTEGER NOT NULL DEFAULT 0,
		percentage INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		graded_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendEntry stores one transcript entry. Append order is preserved via a
// monotonic sequence number.
func (s *Store) AppendEntry(e model.ConversationEntry) error {
	var materialName, materialMime sql.NullString
	if e.Material != nil {
		materialName = sql.NullString{String: e.Material.Name, Valid: true}
		materialMime = sql.NullString{String: e.Material.MIMEType, Valid: true}
	}
	var gradeCorrect, gradeTotal, gradePercent sql.NullInt64
	if e.Grading != nil {
		gradeCorrect = sql.NullInt64{Int64: int64(e.Grading.CorrectCount), Valid: true}
		gradeTotal = sql.NullInt64{Int64: int64(e.Grading.TotalCount), Valid: true}
		gradePercent = sql.NullInt64{Int64: int64(e.Grading.Percentage), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO conversation_entries
		 (id, seq, role, text, created_at, is_submission, is_error,
		  material_name, material_mime, grade_correct, grade_total, grade_percent)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_entries), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Role), e.Text, e.CreatedAt, e.IsSubmission, e.IsError,
		materialName, materialMime, gradeCorrect, gradeTotal, gradePercent,
	)
	return err
}

// ListEntries returns all persisted entries in append order.
func (s *Store) ListEntries() ([]model.ConversationEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, role, text, created_at, is_submission, is_error,
		        material_name, material_mime, grade_correct, grade_total, grade_percent
		 FROM conversation_entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ConversationEntry
	for rows.Next() {
		var (
			e                          model.ConversationEntry
			role                       string
			materialName, materialMime sql.NullString
			gc, gt, gp                 sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &role, &e.Text, &e.CreatedAt, &e.IsSubmission, &e.IsError,
			&materialName, &materialMime, &gc, &gt, &gp); err != nil {
			return nil, err
		}
		e.Role = model.Role(role)
		if materialName.Valid {
			e.Material = &model.MaterialRef{Name: materialName.String, MIMEType: materialMime.String}
		}
		if gc.Valid {
			e.Grading = &model.GradingSummary{
				CorrectCount: int(gc.Int64),
				TotalCount:   int(gt.Int64),
				Percentage:   int(gp.Int64),
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ResetEntries drops the whole persisted transcript. Graded results are
// kept; they are historical outcomes, not conversation state.
func (s *Store) ResetEntries() error {
	_, err := s.db.Exec(`DELETE FROM conversation_entries`)
	return err
}

// InsertResult stores one grading outcome.
func (s *Store) InsertResult(kind model.ChallengeKind, title string, r model.Result) error {
	_, err := s.db.Exec(
		`INSERT INTO challenge_results (kind, title, correct_count, total_count, percentage, feedback, graded_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		string(kind), title, r.CorrectCount, r.TotalCount, r.Percentage, r.Feedback,
	)
	return err
}

// ListResults returns all persisted grading outcomes, oldest first.
func (s *Store) ListResults() ([]model.ResultRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, title, correct_count, total_count, percentage, feedback, graded_at
		 FROM challenge_results ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var (
			r    model.ResultRecord
			kind string
		)
		if err := rows.Scan(&r.ID, &kind, &r.Title, &r.CorrectCount, &r.TotalCount,
			&r.Percentage, &r.Feedback, &r.GradedAt); err != nil {
			return nil, err
		}
		r.Kind = model.ChallengeKind(kind)
		records = append(records, r)
	}
	return records, rows.Err()
}
