package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickjot/quickjot/note"
)

// searchLimit caps search results to keep responses small.
const searchLimit = 50

// CreateNote inserts a new note. Category may be empty for auto-captured
// notes; it is set later by the classification pipeline.
func (d *DB) CreateNote(ctx context.Context, content string, source note.Source, category note.Category) (*note.Note, error) {
	n := &note.Note{
		ID:        uuid.New().String(),
		Content:   content,
		Category:  category,
		Metadata:  note.Metadata{},
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}

	var cat sql.NullString
	if category != "" {
		cat = sql.NullString{String: string(category), Valid: true}
	}

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO notes (id, content, category, metadata, source, created_at)
		VALUES (?, ?, ?, '{}', ?, ?)`,
		n.ID, n.Content, cat, string(n.Source), n.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("creating note: %w", err)
	}

	return n, nil
}

// GetNote fetches a note by id, including soft-deleted rows (callers that
// must exclude them check DeletedAt).
func (d *DB) GetNote(ctx context.Context, id string) (*note.Note, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT id, content, category, metadata, source, created_at, deleted_at
		FROM notes WHERE id = ?`, id)

	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching note: %w", err)
	}
	return n, nil
}

// UpdateNoteClassification sets category and metadata in a single write.
// The content column is never touched; the cleaned task variant lives in
// metadata only.
func (d *DB) UpdateNoteClassification(ctx context.Context, noteID string, category note.Category, metadata note.Metadata) error {
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	res, err := d.conn.ExecContext(ctx, `
		UPDATE notes SET category = ?, metadata = ? WHERE id = ?`,
		string(category), metaJSON, noteID)
	if err != nil {
		return fmt.Errorf("updating note classification: %w", err)
	}
	return requireRow(res)
}

// UpdateNoteMetadata replaces a note's metadata.
func (d *DB) UpdateNoteMetadata(ctx context.Context, noteID string, metadata note.Metadata) error {
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	res, err := d.conn.ExecContext(ctx, `
		UPDATE notes SET metadata = ? WHERE id = ?`, metaJSON, noteID)
	if err != nil {
		return fmt.Errorf("updating note metadata: %w", err)
	}
	return requireRow(res)
}

// MergeNoteMetadata applies a patch on top of a note's current metadata,
// preserving keys the patch does not mention. Soft-deleted notes are not
// patched. Used for due-date changes and meeting detail updates.
func (d *DB) MergeNoteMetadata(ctx context.Context, noteID string, patch note.Metadata) error {
	row := d.conn.QueryRowContext(ctx, `
		SELECT metadata FROM notes WHERE id = ? AND deleted_at IS NULL`, noteID)

	var current string
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("fetching note metadata: %w", err)
	}

	merged := note.Metadata{}
	if err := json.Unmarshal([]byte(current), &merged); err != nil {
		// Corrupt metadata is replaced rather than failing the patch.
		merged = note.Metadata{}
	}
	for k, v := range patch {
		merged[k] = v
	}

	return d.UpdateNoteMetadata(ctx, noteID, merged)
}

// SoftDelete marks a note deleted by setting deleted_at. Already-deleted
// notes are left untouched; the operation is idempotent.
func (d *DB) SoftDelete(ctx context.Context, noteID string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE notes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), noteID)
	if err != nil {
		return fmt.Errorf("soft deleting note: %w", err)
	}
	return nil
}

// SetTaskCompletion toggles a task's completion marker. Completion is
// insert-or-ignore; un-completion deletes the row. Existence of the row is
// the whole lifecycle.
func (d *DB) SetTaskCompletion(ctx context.Context, noteID string, completed bool) error {
	var err error
	if completed {
		_, err = d.conn.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_completions (note_id) VALUES (?)`, noteID)
	} else {
		_, err = d.conn.ExecContext(ctx, `
			DELETE FROM task_completions WHERE note_id = ?`, noteID)
	}
	if err != nil {
		return fmt.Errorf("setting task completion: %w", err)
	}
	return nil
}

// TaskCompleted reports whether a completion marker exists for the note.
func (d *DB) TaskCompleted(ctx context.Context, noteID string) (bool, error) {
	var one int
	err := d.conn.QueryRowContext(ctx, `
		SELECT 1 FROM task_completions WHERE note_id = ?`, noteID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking task completion: %w", err)
	}
	return true, nil
}

// SearchNotes performs a case-insensitive substring search over note
// content, newest first, capped at 50 rows. Soft-deleted notes are
// excluded. Unlike most store operations, search errors propagate; there
// is no fallback value for a failed search.
func (d *DB) SearchNotes(ctx context.Context, query string) ([]*note.Note, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, content, category, metadata, source, created_at, deleted_at
		FROM notes
		WHERE deleted_at IS NULL AND content LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY created_at DESC
		LIMIT ?`, pattern, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

// ListNotes returns non-deleted notes, optionally filtered by category,
// newest first.
func (d *DB) ListNotes(ctx context.Context, category note.Category, limit int) ([]*note.Note, error) {
	if limit <= 0 || limit > searchLimit {
		limit = searchLimit
	}

	var rows *sql.Rows
	var err error
	if category != "" {
		rows, err = d.conn.QueryContext(ctx, `
			SELECT id, content, category, metadata, source, created_at, deleted_at
			FROM notes
			WHERE deleted_at IS NULL AND category = ?
			ORDER BY created_at DESC
			LIMIT ?`, string(category), limit)
	} else {
		rows, err = d.conn.QueryContext(ctx, `
			SELECT id, content, category, metadata, source, created_at, deleted_at
			FROM notes
			WHERE deleted_at IS NULL
			ORDER BY created_at DESC
			LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*note.Note, error) {
	var (
		n         note.Note
		category  sql.NullString
		metaJSON  string
		source    string
		createdAt string
		deletedAt sql.NullString
	)

	if err := s.Scan(&n.ID, &n.Content, &category, &metaJSON, &source, &createdAt, &deletedAt); err != nil {
		return nil, err
	}

	if category.Valid {
		n.Category = note.Category(category.String)
	}
	n.Source = note.Source(source)

	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
			n.Metadata = note.Metadata{}
		}
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		n.CreatedAt = t
	}
	if deletedAt.Valid {
		if t, err := time.Parse(time.RFC3339, deletedAt.String); err == nil {
			n.DeletedAt = &t
		}
	}

	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]*note.Note, error) {
	notes := []*note.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func marshalMetadata(metadata note.Metadata) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	return string(data), nil
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards in user-supplied search terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
