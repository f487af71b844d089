package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/studyhall/studyhall/go/internal/models"
)

// SessionsRepository defines what the app layer needs from the repository.
type SessionsRepository interface {
	AppendStudySession(ctx context.Context, s models.StudySession) (*models.StudySession, error)
	CountFocusSessions(ctx context.Context, userID string) (int, error)
	DistinctFocusDaysSince(ctx context.Context, userID string, fromDateUTC time.Time) ([]time.Time, error)
}

// App handles study session business logic.
type App struct {
	repo SessionsRepository
}

// NewApp creates a new sessions App.
func NewApp(repo SessionsRepository) *App {
	return &App{repo: repo}
}

// AppendStudySession validates and persists a completed session.
func (a *App) AppendStudySession(ctx context.Context, s models.StudySession) (*models.StudySession, error) {
	if s.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if s.DurationSeconds <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	if s.Phase == "" {
		s.Phase = models.PhaseFocus
	}
	return a.repo.AppendStudySession(ctx, s)
}

// CountFocusSessions returns the user's total focus session count.
func (a *App) CountFocusSessions(ctx context.Context, userID string) (int, error) {
	return a.repo.CountFocusSessions(ctx, userID)
}

// DistinctFocusDaysSince returns the user's distinct focus days since
// fromDateUTC.
func (a *App) DistinctFocusDaysSince(ctx context.Context, userID string, fromDateUTC time.Time) ([]time.Time, error) {
	return a.repo.DistinctFocusDaysSince(ctx, userID, fromDateUTC)
}
