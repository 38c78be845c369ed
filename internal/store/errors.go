package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating or updating a user would
// duplicate an existing email address.
var ErrEmailExists = errors.New("email already exists")
