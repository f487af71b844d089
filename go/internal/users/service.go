package users

import (
	"context"
	"net/http"

	"github.com/studyhall/studyhall/go/internal/httpapi"
	"github.com/studyhall/studyhall/go/internal/models"
)

// BadgeDirectory lists the badges a user has earned.
type BadgeDirectory interface {
	ListOwnedBadges(ctx context.Context, userID string) ([]models.Badge, error)
}

// Service exposes the user directory over HTTP JSON.
type Service struct {
	app    *App
	badges BadgeDirectory
}

// NewService creates a new users Service.
func NewService(app *App, badges BadgeDirectory) *Service {
	return &Service{app: app, badges: badges}
}

// RegisterRoutes mounts the user endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", s.handleEnsure)
	mux.HandleFunc("GET /api/users/{id}", s.handleGet)
	mux.HandleFunc("GET /api/users/{id}/badges", s.handleBadges)
}

func (s *Service) handleEnsure(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r)
	if userID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "user identity required")
		return
	}
	user, err := s.app.EnsureUser(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to provision user")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, user)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		httpapi.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, user)
}

func (s *Service) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.badges.ListOwnedBadges(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to list badges")
		return
	}
	if badges == nil {
		badges = []models.Badge{}
	}
	httpapi.WriteJSON(w, http.StatusOK, badges)
}
