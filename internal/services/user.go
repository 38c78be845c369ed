package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskdeck/apiserver/internal/storage"
	"github.com/taskdeck/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases, including the admin-only
// account deletion with its cascade.
type UserService struct {
	repo    UserRepository
	tasks   TaskRepository
	notes   NoteRepository
	storage *storage.Storage
	audit   *AuditPublisher
	logger  *slog.Logger
}

func NewUserService(
	repo UserRepository,
	tasks TaskRepository,
	notes NoteRepository,
	objectStorage *storage.Storage,
	audit *AuditPublisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		repo:    repo,
		tasks:   tasks,
		notes:   notes,
		storage: objectStorage,
		audit:   audit,
		logger:  logger,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

// DeleteAccount removes a user together with their tasks, notes, and
// note attachments. Attachment cleanup is best-effort: a failed object
// delete is logged but does not abort the account deletion.
func (s *UserService) DeleteAccount(ctx context.Context, actor types.User, id int) error {
	victim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	notes, err := s.notes.ListByUser(ctx, victim.ID)
	if err != nil {
		return fmt.Errorf("list notes for cascade: %w", err)
	}
	if s.storage != nil {
		for _, note := range notes {
			if note.Attachment.Empty() {
				continue
			}
			if err := s.storage.Delete(ctx, note.Attachment.ObjectKey); err != nil {
				s.logger.WarnContext(ctx, "attachment cleanup failed",
					slog.Int("note_id", note.ID),
					slog.String("object_key", note.Attachment.ObjectKey),
					slog.Any("error", err),
				)
			}
		}
	}

	if err := s.tasks.DeleteByUser(ctx, victim.ID); err != nil {
		return fmt.Errorf("cascade tasks: %w", err)
	}
	if err := s.notes.DeleteByUser(ctx, victim.ID); err != nil {
		return fmt.Errorf("cascade notes: %w", err)
	}
	if err := s.repo.Delete(ctx, victim.ID); err != nil {
		return err
	}

	s.audit.Emit(ctx, "user.deleted", actor.ID, map[string]any{"user_id": victim.ID, "email": victim.Email})
	return nil
}
