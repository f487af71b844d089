package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus defines the kanban column a task sits in.
type TaskStatus string

const (
	TaskStatusTodo  TaskStatus = "todo"
	TaskStatusDoing TaskStatus = "doing"
	TaskStatusDone  TaskStatus = "done"
)

// ValidTaskStatus reports whether s is one of the allowed task states.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusDone:
		return true
	}
	return false
}

// RoomTask is a shared to-do item scoped to a room.
type RoomTask struct {
	ID        uuid.UUID  `json:"id"`
	RoomID    uuid.UUID  `json:"roomId"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	DueAt     *time.Time `json:"dueAt,omitempty"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
