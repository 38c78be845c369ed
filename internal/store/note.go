package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/taskdeck/apiserver/types"
)

// NoteRepository handles persistence for notes. Tags and attachment
// metadata are stored as JSONB columns.
type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteColumns = `id, title, content, tags, user_id, attachment, created_at, updated_at`

func (r *NoteRepository) List(ctx context.Context) ([]types.Note, error) {
	const query = `
		SELECT ` + noteColumns + `
		FROM notes
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ListByUser returns the notes owned by the given user.
func (r *NoteRepository) ListByUser(ctx context.Context, userID int) ([]types.Note, error) {
	const query = `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func (r *NoteRepository) Get(ctx context.Context, id int) (types.Note, error) {
	const query = `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE id = $1`
	var note types.Note
	var tagsJSON, attachmentJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&note.ID,
		&note.Title,
		&note.Content,
		&tagsJSON,
		&note.UserID,
		&attachmentJSON,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}

	_ = json.Unmarshal(tagsJSON, &note.Tags)
	_ = json.Unmarshal(attachmentJSON, &note.Attachment)
	return note, nil
}

func (r *NoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return types.Note{}, err
	}
	attachmentJSON, err := json.Marshal(note.Attachment)
	if err != nil {
		return types.Note{}, err
	}

	const query = `
		INSERT INTO notes (title, content, tags, user_id, attachment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		note.Title,
		note.Content,
		tagsJSON,
		note.UserID,
		attachmentJSON,
		note.CreatedAt,
		note.UpdatedAt,
	).Scan(&note.ID); err != nil {
		return types.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) Update(ctx context.Context, note types.Note) (types.Note, error) {
	note.UpdatedAt = time.Now()
	if note.Tags == nil {
		note.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return types.Note{}, err
	}
	attachmentJSON, err := json.Marshal(note.Attachment)
	if err != nil {
		return types.Note{}, err
	}

	const query = `
		UPDATE notes
		SET title = $1,
			content = $2,
			tags = $3,
			attachment = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		note.Title,
		note.Content,
		tagsJSON,
		attachmentJSON,
		note.UpdatedAt,
		note.ID,
	)
	if err != nil {
		return types.Note{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Note{}, err
	}
	if affected == 0 {
		return types.Note{}, ErrNotFound
	}
	return note, nil
}

func (r *NoteRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM notes WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes all notes owned by the given user.
func (r *NoteRepository) DeleteByUser(ctx context.Context, userID int) error {
	const query = `DELETE FROM notes WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func scanNotes(rows *sql.Rows) ([]types.Note, error) {
	notes := make([]types.Note, 0)
	for rows.Next() {
		var note types.Note
		var tagsJSON, attachmentJSON []byte
		if err := rows.Scan(
			&note.ID,
			&note.Title,
			&note.Content,
			&tagsJSON,
			&note.UserID,
			&attachmentJSON,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(tagsJSON, &note.Tags)
		_ = json.Unmarshal(attachmentJSON, &note.Attachment)
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}
