package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/realtime"
)

// Errors the service layer maps to HTTP statuses.
var (
	ErrNotFound  = errors.New("task not found")
	ErrForbidden = errors.New("not allowed")
)

// TasksRepository defines what the app layer needs from the repository.
type TasksRepository interface {
	CreateTask(ctx context.Context, roomID uuid.UUID, createdBy, title string, dueAt *time.Time) (*models.RoomTask, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.RoomTask, error)
	ListTasks(ctx context.Context, roomID uuid.UUID) ([]models.RoomTask, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) (*models.RoomTask, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
}

// Membership answers room membership questions for permission checks.
type Membership interface {
	IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error)
	GetMemberRole(ctx context.Context, roomID uuid.UUID, userID string) (models.RoomRole, error)
}

// Broadcaster pushes task events to the room's live connections.
type Broadcaster interface {
	Publish(roomID string, event string, payload any)
}

// App handles task business logic. Every mutation persists first and
// broadcasts to the room only after the write succeeds.
type App struct {
	repo    TasksRepository
	members Membership
	bc      Broadcaster
}

// NewApp creates a new tasks App.
func NewApp(repo TasksRepository, members Membership, bc Broadcaster) *App {
	return &App{repo: repo, members: members, bc: bc}
}

// ListTasks returns the room's tasks. Members only.
func (a *App) ListTasks(ctx context.Context, roomID uuid.UUID, userID string) ([]models.RoomTask, error) {
	if err := a.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	tasks, err := a.repo.ListTasks(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask adds a task to the room's board and broadcasts it.
func (a *App) CreateTask(ctx context.Context, roomID uuid.UUID, userID, title string, dueAt *time.Time) (*models.RoomTask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := a.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	task, err := a.repo.CreateTask(ctx, roomID, userID, title, dueAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	a.bc.Publish(roomID.String(), realtime.EventTaskCreated, task)
	log.Info().Str("task_id", task.ID.String()).Str("room_id", roomID.String()).Msg("task created")
	return task, nil
}

// ChangeStatus moves a task between columns and broadcasts the update.
func (a *App) ChangeStatus(ctx context.Context, taskID uuid.UUID, userID string, status models.TaskStatus) (*models.RoomTask, error) {
	if !models.ValidTaskStatus(status) {
		return nil, fmt.Errorf("invalid task status: %s", status)
	}

	task, err := a.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, ErrNotFound
	}
	if err := a.requireMember(ctx, task.RoomID, userID); err != nil {
		return nil, err
	}

	updated, err := a.repo.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	a.bc.Publish(updated.RoomID.String(), realtime.EventTaskUpdated, updated)
	return updated, nil
}

// DeleteTask removes a task. Only the task's creator or the room owner
// may delete.
func (a *App) DeleteTask(ctx context.Context, taskID uuid.UUID, userID string) error {
	task, err := a.repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return ErrNotFound
	}

	if task.CreatedBy != userID {
		role, err := a.members.GetMemberRole(ctx, task.RoomID, userID)
		if err != nil {
			return fmt.Errorf("failed to get member role: %w", err)
		}
		if role != models.RoomRoleOwner {
			return fmt.Errorf("%w: only the creator or room owner can delete a task", ErrForbidden)
		}
	}

	if err := a.repo.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	a.bc.Publish(task.RoomID.String(), realtime.EventTaskDeleted, map[string]string{
		"id":     task.ID.String(),
		"roomId": task.RoomID.String(),
	})
	return nil
}

func (a *App) requireMember(ctx context.Context, roomID uuid.UUID, userID string) error {
	ok, err := a.members.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: room members only", ErrForbidden)
	}
	return nil
}
