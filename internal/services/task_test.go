package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

type fakeTaskRepo struct {
	tasks  map[int]types.Task
	nextID int
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int]types.Task{}, nextID: 1}
}

func (r *fakeTaskRepo) List(ctx context.Context) ([]types.Task, error) {
	tasks := make([]types.Task, 0, len(r.tasks))
	for id := 1; id < r.nextID; id++ {
		if task, ok := r.tasks[id]; ok {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (r *fakeTaskRepo) ListByUser(ctx context.Context, userID int) ([]types.Task, error) {
	tasks := []types.Task{}
	for id := 1; id < r.nextID; id++ {
		if task, ok := r.tasks[id]; ok && task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (r *fakeTaskRepo) Get(ctx context.Context, id int) (types.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) Create(ctx context.Context, task types.Task) (types.Task, error) {
	task.ID = r.nextID
	r.nextID++
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task types.Task) (types.Task, error) {
	if _, ok := r.tasks[task.ID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) DeleteByUser(ctx context.Context, userID int) error {
	for id, task := range r.tasks {
		if task.UserID == userID {
			delete(r.tasks, id)
		}
	}
	return nil
}

var (
	taskAlice = types.User{ID: 1, Email: "alice@example.com", Role: types.RoleUser}
	taskBob   = types.User{ID: 2, Email: "bob@example.com", Role: types.RoleUser}
	taskAdmin = types.User{ID: 3, Email: "admin@example.com", Role: types.RoleAdmin}
)

func seedTaskService(t *testing.T) (*TaskService, types.Task, types.Task) {
	t.Helper()

	repo := newFakeTaskRepo()
	svc := NewTaskService(repo, nil)
	ctx := context.Background()

	aliceTask, err := svc.Create(ctx, taskAlice, types.Task{Title: "Write report", Description: "Q3 numbers", Status: types.TaskStatusTodo, Priority: types.TaskPriorityHigh})
	require.NoError(t, err)
	bobTask, err := svc.Create(ctx, taskBob, types.Task{Title: "Review PR", Description: "storage layer", Status: types.TaskStatusTodo, Priority: types.TaskPriorityLow})
	require.NoError(t, err)

	return svc, aliceTask, bobTask
}

func TestTaskListScopedToOwner(t *testing.T) {
	svc, aliceTask, _ := seedTaskService(t)
	ctx := context.Background()

	mine, err := svc.List(ctx, taskAlice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, aliceTask.ID, mine[0].ID)

	all, err := svc.List(ctx, taskAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTaskGetForeignRecordForbidden(t *testing.T) {
	svc, aliceTask, bobTask := seedTaskService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, taskAlice, bobTask.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Get(ctx, taskAdmin, aliceTask.ID)
	require.NoError(t, err)
	assert.Equal(t, aliceTask.ID, got.ID)

	_, err = svc.Get(ctx, taskAlice, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTaskCreateAssignsOwner(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := NewTaskService(repo, nil)

	created, err := svc.Create(context.Background(), taskAlice, types.Task{Title: "x", Description: "y", UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, taskAlice.ID, created.UserID)
}

func TestTaskUpdateAppliesPatch(t *testing.T) {
	svc, aliceTask, bobTask := seedTaskService(t)
	ctx := context.Background()

	status := types.TaskStatusCompleted
	updated, err := svc.Update(ctx, taskAlice, aliceTask.ID, TaskPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, updated.Status)
	assert.Equal(t, aliceTask.Title, updated.Title)
	assert.Equal(t, aliceTask.Priority, updated.Priority)

	_, err = svc.Update(ctx, taskAlice, bobTask.ID, TaskPatch{Status: &status})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTaskDelete(t *testing.T) {
	svc, aliceTask, bobTask := seedTaskService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, taskAlice, bobTask.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, taskAlice, 999), store.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, taskAlice, aliceTask.ID))
	_, err := svc.Get(ctx, taskAlice, aliceTask.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
