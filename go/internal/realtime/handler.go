package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler upgrades HTTP requests to WebSocket connections.
type Handler struct {
	manager  *Manager
	identity IdentityResolver
}

// NewHandler creates the WebSocket HTTP handler.
func NewHandler(manager *Manager, identity IdentityResolver) *Handler {
	return &Handler{manager: manager, identity: identity}
}

// HandleConnect upgrades the request and hands the connection to the
// manager's pumps. Identity resolution never fails: an anonymous request
// is keyed by its connection ID.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	connID := uuid.New().String()
	userID := h.identity.Resolve(r, connID)

	if _, err := h.manager.Upgrade(w, r, connID, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to upgrade websocket connection")
		return
	}
}

// HandleStats reports live connection statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.manager.Stats())
}

// RegisterRoutes registers the WebSocket routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnect)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}
