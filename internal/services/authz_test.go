package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskdeck/apiserver/types"
)

func TestCanAccess(t *testing.T) {
	alice := types.User{ID: 1, Role: types.RoleUser}
	bob := types.User{ID: 2, Role: types.RoleUser}
	admin := types.User{ID: 3, Role: types.RoleAdmin}

	assert.True(t, CanAccess(alice, alice.ID))
	assert.False(t, CanAccess(alice, bob.ID))
	assert.True(t, CanAccess(admin, alice.ID))
	assert.True(t, CanAccess(admin, admin.ID))
}
