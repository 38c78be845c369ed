package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/taskdeck/apiserver/internal/storage"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

// ErrAttachmentsDisabled is returned when no object storage backend is
// configured.
var ErrAttachmentsDisabled = errors.New("attachments disabled")

// NoteRepository defines persistence operations for notes.
type NoteRepository interface {
	List(ctx context.Context) ([]types.Note, error)
	ListByUser(ctx context.Context, userID int) ([]types.Note, error)
	Get(ctx context.Context, id int) (types.Note, error)
	Create(ctx context.Context, note types.Note) (types.Note, error)
	Update(ctx context.Context, note types.Note) (types.Note, error)
	Delete(ctx context.Context, id int) error
	DeleteByUser(ctx context.Context, userID int) error
}

// NotePatch carries the optional fields of a partial note update.
// Nil fields are left unchanged.
type NotePatch struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// NoteService encapsulates note use-cases, including attachment storage.
// Every record-level operation takes the acting user and applies the
// CanAccess ownership gate.
type NoteService struct {
	repo    NoteRepository
	storage *storage.Storage
	audit   *AuditPublisher
	logger  *slog.Logger
}

func NewNoteService(repo NoteRepository, objectStorage *storage.Storage, audit *AuditPublisher, logger *slog.Logger) *NoteService {
	return &NoteService{repo: repo, storage: objectStorage, audit: audit, logger: logger}
}

// List returns every note for admins and only the actor's own notes
// otherwise.
func (s *NoteService) List(ctx context.Context, actor types.User) ([]types.Note, error) {
	if actor.IsAdmin() {
		return s.repo.List(ctx)
	}
	return s.repo.ListByUser(ctx, actor.ID)
}

func (s *NoteService) Get(ctx context.Context, actor types.User, id int) (types.Note, error) {
	note, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Note{}, err
	}
	if !CanAccess(actor, note.UserID) {
		return types.Note{}, ErrForbidden
	}
	return note, nil
}

func (s *NoteService) Create(ctx context.Context, actor types.User, note types.Note) (types.Note, error) {
	note.UserID = actor.ID
	created, err := s.repo.Create(ctx, note)
	if err != nil {
		return types.Note{}, err
	}
	s.audit.Emit(ctx, "note.created", actor.ID, map[string]any{"note_id": created.ID})
	return created, nil
}

func (s *NoteService) Update(ctx context.Context, actor types.User, id int, patch NotePatch) (types.Note, error) {
	note, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.Note{}, err
	}

	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.Tags != nil {
		note.Tags = *patch.Tags
	}

	updated, err := s.repo.Update(ctx, note)
	if err != nil {
		return types.Note{}, err
	}
	s.audit.Emit(ctx, "note.updated", actor.ID, map[string]any{"note_id": updated.ID})
	return updated, nil
}

// Delete removes the note and, when present, its stored attachment.
func (s *NoteService) Delete(ctx context.Context, actor types.User, id int) error {
	note, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	if !note.Attachment.Empty() && s.storage != nil {
		if err := s.storage.Delete(ctx, note.Attachment.ObjectKey); err != nil {
			s.logger.WarnContext(ctx, "attachment cleanup failed",
				slog.Int("note_id", note.ID),
				slog.String("object_key", note.Attachment.ObjectKey),
				slog.Any("error", err),
			)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Emit(ctx, "note.deleted", actor.ID, map[string]any{"note_id": id})
	return nil
}

// Attach uploads a file for the note, replacing any previous attachment
// object, and records the attachment metadata on the note.
func (s *NoteService) Attach(ctx context.Context, actor types.User, id int, attachment types.Attachment, r io.Reader) (types.Note, error) {
	if s.storage == nil {
		return types.Note{}, ErrAttachmentsDisabled
	}

	note, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.Note{}, err
	}

	key := attachmentKey(note.ID, attachment.Filename)
	if err := s.storage.Put(ctx, key, r, attachment.Size, attachment.ContentType); err != nil {
		return types.Note{}, fmt.Errorf("store attachment: %w", err)
	}

	if !note.Attachment.Empty() && note.Attachment.ObjectKey != key {
		if err := s.storage.Delete(ctx, note.Attachment.ObjectKey); err != nil {
			s.logger.WarnContext(ctx, "stale attachment cleanup failed",
				slog.Int("note_id", note.ID),
				slog.String("object_key", note.Attachment.ObjectKey),
				slog.Any("error", err),
			)
		}
	}

	attachment.ObjectKey = key
	note.Attachment = attachment

	updated, err := s.repo.Update(ctx, note)
	if err != nil {
		return types.Note{}, err
	}
	s.audit.Emit(ctx, "note.updated", actor.ID, map[string]any{"note_id": updated.ID, "attachment": key})
	return updated, nil
}

// OpenAttachment opens a reader for the note's attachment. Returns
// store.ErrNotFound when the note has no attachment.
func (s *NoteService) OpenAttachment(ctx context.Context, actor types.User, id int) (io.ReadCloser, types.Attachment, error) {
	if s.storage == nil {
		return nil, types.Attachment{}, ErrAttachmentsDisabled
	}

	note, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, types.Attachment{}, err
	}
	if note.Attachment.Empty() {
		return nil, types.Attachment{}, store.ErrNotFound
	}

	reader, err := s.storage.Get(ctx, note.Attachment.ObjectKey)
	if err != nil {
		return nil, types.Attachment{}, err
	}
	return reader, note.Attachment, nil
}

// DeleteAttachment removes the note's attachment object and clears the
// attachment metadata.
func (s *NoteService) DeleteAttachment(ctx context.Context, actor types.User, id int) (types.Note, error) {
	if s.storage == nil {
		return types.Note{}, ErrAttachmentsDisabled
	}

	note, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.Note{}, err
	}
	if note.Attachment.Empty() {
		return types.Note{}, store.ErrNotFound
	}

	if err := s.storage.Delete(ctx, note.Attachment.ObjectKey); err != nil {
		return types.Note{}, fmt.Errorf("delete attachment: %w", err)
	}

	note.Attachment = types.Attachment{}
	updated, err := s.repo.Update(ctx, note)
	if err != nil {
		return types.Note{}, err
	}
	s.audit.Emit(ctx, "note.updated", actor.ID, map[string]any{"note_id": updated.ID})
	return updated, nil
}

func attachmentKey(noteID int, filename string) string {
	return fmt.Sprintf("notes/%d/%s", noteID, filename)
}
