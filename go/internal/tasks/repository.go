package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/sqlutil"
)

// Repository implements task data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new tasks repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateTask inserts a task in the todo column.
func (r *Repository) CreateTask(ctx context.Context, roomID uuid.UUID, createdBy, title string, dueAt *time.Time) (*models.RoomTask, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO room_tasks (id, room_id, title, status, due_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, room_id, title, status, due_at, created_by, created_at, updated_at`,
		uuid.New(), roomID, title, models.TaskStatusTodo, sqlutil.ToSqlTime(dueAt), createdBy)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID. Returns nil when it does not exist.
func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*models.RoomTask, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, room_id, title, status, due_at, created_by, created_at, updated_at
		FROM room_tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns the room's tasks, oldest first.
func (r *Repository) ListTasks(ctx context.Context, roomID uuid.UUID) ([]models.RoomTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, title, status, due_at, created_by, created_at, updated_at
		FROM room_tasks WHERE room_id = $1
		ORDER BY created_at ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.RoomTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus moves a task to a new column.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) (*models.RoomTask, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE room_tasks SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, room_id, title, status, due_at, created_by, created_at, updated_at`,
		id, status)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM room_tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.RoomTask, error) {
	var task models.RoomTask
	var dueAt sql.NullTime
	if err := row.Scan(&task.ID, &task.RoomID, &task.Title, &task.Status,
		&dueAt, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.DueAt = sqlutil.FromSqlTime(dueAt)
	return &task, nil
}
