package tasks

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/httpapi"
	"github.com/studyhall/studyhall/go/internal/models"
)

// Service exposes task operations over HTTP JSON.
type Service struct {
	app *App
}

// NewService creates a new tasks Service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the task endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{roomId}/tasks", s.handleList)
	mux.HandleFunc("POST /api/rooms/{roomId}/tasks", s.handleCreate)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleChangeStatus)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDelete)
}

type createTaskRequest struct {
	Title string     `json:"title"`
	DueAt *time.Time `json:"dueAt,omitempty"`
}

type changeStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := s.identity(w, r, "roomId")
	if !ok {
		return
	}
	tasks, err := s.app.ListTasks(r.Context(), roomID, userID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.RoomTask{}
	}
	httpapi.WriteJSON(w, http.StatusOK, tasks)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := s.identity(w, r, "roomId")
	if !ok {
		return
	}
	var req createTaskRequest
	if err := httpapi.ReadJSON(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.app.CreateTask(r.Context(), roomID, userID, req.Title, req.DueAt)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, task)
}

func (s *Service) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.identity(w, r, "id")
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := httpapi.ReadJSON(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.app.ChangeStatus(r.Context(), taskID, userID, req.Status)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, task)
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.identity(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteTask(r.Context(), taskID, userID); err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (s *Service) identity(w http.ResponseWriter, r *http.Request, pathKey string) (string, uuid.UUID, bool) {
	userID := httpapi.UserID(r)
	if userID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "user identity required")
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue(pathKey))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid id")
		return "", uuid.Nil, false
	}
	return userID, id, true
}

func (s *Service) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		httpapi.WriteError(w, http.StatusForbidden, err.Error())
	default:
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
	}
}
