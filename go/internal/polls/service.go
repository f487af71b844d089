package polls

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/httpapi"
	"github.com/studyhall/studyhall/go/internal/models"
)

// Service exposes poll operations over HTTP JSON.
type Service struct {
	app *App
}

// NewService creates a new polls Service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the poll endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{roomId}/polls", s.handleList)
	mux.HandleFunc("POST /api/rooms/{roomId}/polls", s.handleCreate)
	mux.HandleFunc("POST /api/polls/{id}/vote", s.handleVote)
	mux.HandleFunc("DELETE /api/polls/{id}", s.handleClose)
}

type createPollRequest struct {
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

type voteRequest struct {
	OptionID uuid.UUID `json:"optionId"`
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := s.identity(w, r, "roomId")
	if !ok {
		return
	}
	polls, err := s.app.ListPolls(r.Context(), roomID, userID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if polls == nil {
		polls = []models.Poll{}
	}
	httpapi.WriteJSON(w, http.StatusOK, polls)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := s.identity(w, r, "roomId")
	if !ok {
		return
	}
	var req createPollRequest
	if err := httpapi.ReadJSON(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	poll, err := s.app.CreatePoll(r.Context(), roomID, userID, req.Question, req.Options, req.ExpiresAt)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, poll)
}

func (s *Service) handleVote(w http.ResponseWriter, r *http.Request) {
	userID, pollID, ok := s.identity(w, r, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := httpapi.ReadJSON(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	counts, err := s.app.Vote(r.Context(), pollID, req.OptionID, userID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, VotePayload{PollID: pollID, Counts: counts})
}

func (s *Service) handleClose(w http.ResponseWriter, r *http.Request) {
	userID, pollID, ok := s.identity(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.ClosePoll(r.Context(), pollID, userID); err != nil {
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
	case errors.Is(err, ErrPollClosed), errors.Is(err, ErrAlreadyVoted):
		httpapi.WriteError(w, http.StatusConflict, err.Error())
	default:
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
	}
}
