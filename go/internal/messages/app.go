package messages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
)

const maxHistoryPage = 100

// MessagesRepository defines what the app layer needs from the repository.
type MessagesRepository interface {
	AppendMessage(ctx context.Context, roomID uuid.UUID, userID, content string) (*models.Message, error)
	ListBefore(ctx context.Context, roomID uuid.UUID, before time.Time, take int) ([]models.Message, error)
}

// App handles chat message business logic.
type App struct {
	repo MessagesRepository
}

// NewApp creates a new messages App.
func NewApp(repo MessagesRepository) *App {
	return &App{repo: repo}
}

// AppendMessage validates and persists a chat message.
func (a *App) AppendMessage(ctx context.Context, roomID uuid.UUID, userID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content is required")
	}
	return a.repo.AppendMessage(ctx, roomID, userID, content)
}

// History returns a page of the room's messages before the cursor,
// newest first. Catch-up after a missed broadcast goes through here.
func (a *App) History(ctx context.Context, roomID uuid.UUID, before time.Time, take int) ([]models.Message, error) {
	if take <= 0 {
		take = 20
	}
	if take > maxHistoryPage {
		take = maxHistoryPage
	}
	return a.repo.ListBefore(ctx, roomID, before, take)
}
