package services

import (
	"context"

	"github.com/taskdeck/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context) ([]types.Task, error)
	ListByUser(ctx context.Context, userID int) ([]types.Task, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
	DeleteByUser(ctx context.Context, userID int) error
}

// TaskPatch carries the optional fields of a partial task update.
// Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

// TaskService encapsulates task use-cases. Every record-level operation
// takes the acting user and applies the CanAccess ownership gate.
type TaskService struct {
	repo  TaskRepository
	audit *AuditPublisher
}

func NewTaskService(repo TaskRepository, audit *AuditPublisher) *TaskService {
	return &TaskService{repo: repo, audit: audit}
}

// List returns every task for admins and only the actor's own tasks
// otherwise.
func (s *TaskService) List(ctx context.Context, actor types.User) ([]types.Task, error) {
	if actor.IsAdmin() {
		return s.repo.List(ctx)
	}
	return s.repo.ListByUser(ctx, actor.ID)
}

func (s *TaskService) Get(ctx context.Context, actor types.User, id int) (types.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !CanAccess(actor, task.UserID) {
		return types.Task{}, ErrForbidden
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, actor types.User, task types.Task) (types.Task, error) {
	task.UserID = actor.ID
	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return types.Task{}, err
	}
	s.audit.Emit(ctx, "task.created", actor.ID, map[string]any{"task_id": created.ID})
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, actor types.User, id int, patch TaskPatch) (types.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.Task{}, err
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}

	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		return types.Task{}, err
	}
	s.audit.Emit(ctx, "task.updated", actor.ID, map[string]any{"task_id": updated.ID})
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, actor types.User, id int) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Emit(ctx, "task.deleted", actor.ID, map[string]any{"task_id": id})
	return nil
}
