package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(ctx context.Context) ([]types.User, error) {
	users := make([]types.User, 0, len(r.users))
	for id := 1; id < r.nextID; id++ {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return types.User{}, store.ErrEmailExists
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func TestDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()

	users := newFakeUserRepo()
	tasks := newFakeTaskRepo()
	notes := newFakeNoteRepo()
	svc := NewUserService(users, tasks, notes, nil, nil, discardLogger())

	alice, err := users.Create(ctx, types.User{Email: "alice@example.com", Name: "Alice", Role: types.RoleUser})
	require.NoError(t, err)
	bob, err := users.Create(ctx, types.User{Email: "bob@example.com", Name: "Bob", Role: types.RoleUser})
	require.NoError(t, err)
	admin, err := users.Create(ctx, types.User{Email: "admin@example.com", Name: "Admin", Role: types.RoleAdmin})
	require.NoError(t, err)

	_, err = tasks.Create(ctx, types.Task{Title: "t1", UserID: alice.ID})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, types.Task{Title: "t2", UserID: bob.ID})
	require.NoError(t, err)
	_, err = notes.Create(ctx, types.Note{Title: "n1", UserID: alice.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, admin, alice.ID))

	_, err = users.GetByID(ctx, alice.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	remainingTasks, err := tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, remainingTasks, 1)
	assert.Equal(t, bob.ID, remainingTasks[0].UserID)

	remainingNotes, err := notes.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, remainingNotes)
}

func TestDeleteAccountMissingUser(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), newFakeTaskRepo(), newFakeNoteRepo(), nil, nil, discardLogger())

	err := svc.DeleteAccount(context.Background(), types.User{ID: 1, Role: types.RoleAdmin}, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
