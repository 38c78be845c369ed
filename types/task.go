package types

import "time"

// Task status values. There is no enforced transition order; the owner
// may set any status at any time.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task priority values.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusCompleted
}

// ValidTaskPriority reports whether p is a known task priority.
func ValidTaskPriority(p string) bool {
	return p == TaskPriorityLow || p == TaskPriorityMedium || p == TaskPriorityHigh
}

// Task represents a unit of work owned by a single user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Title is the short human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Description contains the full task body.
	Description string `json:"description" db:"description"`

	// Status is the current workflow state: "todo", "in_progress",
	// or "completed".
	Status string `json:"status" db:"status"`

	// Priority is the relative urgency: "low", "medium", or "high".
	Priority string `json:"priority" db:"priority"`

	// UserID identifies the owning user. Only the owner and admins may
	// read or modify the task.
	UserID int `json:"user_id" db:"user_id"`

	// CreatedAt is the timestamp at which the task was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
