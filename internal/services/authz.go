package services

import (
	"errors"

	"github.com/taskdeck/apiserver/types"
)

// ErrForbidden is returned when an authenticated user is not allowed to
// act on a record they can otherwise see exists.
var ErrForbidden = errors.New("forbidden")

// CanAccess is the single ownership predicate applied before every
// record-level read or write. Admins may access any record; everyone
// else only their own.
func CanAccess(user types.User, ownerID int) bool {
	return user.IsAdmin() || user.ID == ownerID
}
