package types

import "time"

// Note represents a free-form text note owned by a single user.
type Note struct {
	// ID is the unique identifier of the note.
	ID int `json:"id" db:"id"`

	// Title is the short human-readable name of the note.
	Title string `json:"title" db:"title"`

	// Content contains the note body.
	Content string `json:"content" db:"content"`

	// Tags are free-form labels associated with the note. Order is
	// preserved as supplied by the client.
	Tags []string `json:"tags" db:"tags"`

	// UserID identifies the owning user. Only the owner and admins may
	// read or modify the note.
	UserID int `json:"user_id" db:"user_id"`

	// Attachment describes the optional file stored alongside the note
	// in object storage. A zero value means the note has no attachment.
	Attachment Attachment `json:"attachment" db:"attachment"`

	// CreatedAt is the timestamp at which the note was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the note.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Attachment describes a file stored in object storage and referenced
// by its object key.
type Attachment struct {
	// ObjectKey is the identifier or path of the file in object storage.
	ObjectKey string `json:"object_key,omitempty" db:"object_key"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename,omitempty" db:"filename"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"content_type,omitempty" db:"content_type"`

	// Size is the file size in bytes.
	Size int64 `json:"size,omitempty" db:"size"`
}

// Empty reports whether the attachment slot is unused.
func (a Attachment) Empty() bool {
	return a.ObjectKey == ""
}
