package rooms

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/httpapi"
)

// Service exposes room operations over HTTP JSON.
type Service struct {
	app *App
}

// NewService creates a new rooms Service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the room endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", s.handleCreate)
	mux.HandleFunc("GET /api/rooms", s.handleExplore)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGet)
	mux.HandleFunc("POST /api/rooms/{id}/join", s.handleJoin)
	mux.HandleFunc("POST /api/rooms/{id}/leave", s.handleLeave)
	mux.HandleFunc("GET /api/rooms/{id}/members", s.handleMembers)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r)
	if userID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req CreateRoomRequest
	if err := httpapi.ReadJSON(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := s.app.CreateRoom(r.Context(), userID, req)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, room)
}

func (s *Service) handleExplore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cards, err := s.app.Explore(r.Context(), ExploreFilter{
		Search:  q.Get("search"),
		Subject: q.Get("subject"),
		Sort:    q.Get("sort"),
	})
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, cards)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	room, err := s.app.GetRoom(r.Context(), roomID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, room)
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r)
	if userID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "user identity required")
		return
	}
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}

	var req JoinRoomRequest
	if r.ContentLength > 0 {
		if err := httpapi.ReadJSON(r, &req); err != nil {
			httpapi.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.app.JoinRoom(r.Context(), roomID, userID, req); err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (s *Service) handleLeave(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r)
	if userID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "user identity required")
		return
	}
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	if err := s.app.LeaveRoom(r.Context(), roomID, userID); err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (s *Service) handleMembers(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.roomID(w, r)
	if !ok {
		return
	}
	members, err := s.app.ListMembers(r.Context(), roomID)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, members)
}

func (s *Service) roomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Service) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrBadCode):
		httpapi.WriteError(w, http.StatusForbidden, ErrBadCode.Error())
	case errors.Is(err, ErrForbidden):
		httpapi.WriteError(w, http.StatusForbidden, err.Error())
	default:
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
