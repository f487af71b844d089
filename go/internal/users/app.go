package users

import (
	"context"
	"fmt"

	"github.com/studyhall/studyhall/go/internal/models"
)

// UsersRepository defines what the app layer needs from the repository.
type UsersRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, id, userName string) (*models.User, error)
	ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// App handles the user directory.
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App.
func NewApp(repo UsersRepository) *App {
	return &App{repo: repo}
}

// EnsureUser provisions the user record backing an identity the first
// time it is seen.
func (a *App) EnsureUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user id is required")
	}
	user, err := a.repo.UpsertUser(ctx, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", id, err)
	}
	return user, nil
}

// GetUser retrieves a user, or nil when unknown.
func (a *App) GetUser(ctx context.Context, id string) (*models.User, error) {
	return a.repo.GetUser(ctx, id)
}

// ResolveDisplayNames maps user IDs to display names.
func (a *App) ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	return a.repo.ResolveDisplayNames(ctx, userIDs)
}
