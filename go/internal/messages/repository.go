package messages

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
)

// Repository implements chat message data access.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new messages repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AppendMessage persists a chat message and returns the stored record.
func (r *Repository) AppendMessage(ctx context.Context, roomID uuid.UUID, userID, content string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, room_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, room_id, user_id, content, created_at`,
		uuid.New(), roomID, userID, content)

	var msg models.Message
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &msg, nil
}

// ListBefore returns up to take messages created strictly before the
// cursor, newest first. A zero cursor means "from the latest".
func (r *Repository) ListBefore(ctx context.Context, roomID uuid.UUID, before time.Time, take int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, content, created_at
		FROM messages
		WHERE room_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		roomID, nullableTime(before), take)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
