package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
)

// Repository implements study session data access.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new sessions repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AppendStudySession persists a completed focus interval.
func (r *Repository) AppendStudySession(ctx context.Context, s models.StudySession) (*models.StudySession, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO study_sessions (id, room_id, user_id, phase, started_at, ended_at, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.RoomID, s.UserID, s.Phase, s.StartedAt, s.EndedAt, s.DurationSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to append study session: %w", err)
	}
	return &s, nil
}

// CountFocusSessions returns the user's historical count of focus
// sessions.
func (r *Repository) CountFocusSessions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM study_sessions
		WHERE user_id = $1 AND phase = $2`,
		userID, models.PhaseFocus).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count focus sessions: %w", err)
	}
	return count, nil
}

// DistinctFocusDaysSince returns the distinct UTC calendar days on or
// after fromDateUTC with at least one focus session for the user.
func (r *Repository) DistinctFocusDaysSince(ctx context.Context, userID string, fromDateUTC time.Time) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT date_trunc('day', started_at AT TIME ZONE 'UTC')
		FROM study_sessions
		WHERE user_id = $1 AND phase = $2 AND started_at >= $3
		ORDER BY 1`,
		userID, models.PhaseFocus, fromDateUTC)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan focus day: %w", err)
		}
		days = append(days, day.UTC())
	}
	return days, rows.Err()
}
