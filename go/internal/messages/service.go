package messages

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/httpapi"
	"github.com/studyhall/studyhall/go/internal/models"
)

// Service exposes message history over HTTP JSON. Live delivery goes
// over the websocket; this endpoint is the pull catch-up path.
type Service struct {
	app *App
}

// NewService creates a new messages Service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the message endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{roomId}/messages", s.handleHistory)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("roomId"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	q := r.URL.Query()
	before := time.Now().UTC()
	if raw := q.Get("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httpapi.WriteError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
	}
	take, _ := strconv.Atoi(q.Get("take"))

	msgs, err := s.app.History(r.Context(), roomID, before, take)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	httpapi.WriteJSON(w, http.StatusOK, msgs)
}
