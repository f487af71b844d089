package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/roomtimer"
)

// Presence defines what the hub needs from the presence tracker.
type Presence interface {
	Join(roomID uuid.UUID, userID string)
	Leave(roomID uuid.UUID, userID string)
	OnlineUserIDs(roomID uuid.UUID) []string
}

// TimerEngine defines what the hub needs from the room timer engine.
type TimerEngine interface {
	Get(roomID uuid.UUID) roomtimer.State
	Start(roomID uuid.UUID, seconds int, phase string) roomtimer.State
	Pause(roomID uuid.UUID) roomtimer.State
	Resume(roomID uuid.UUID) roomtimer.State
}

// RoomDirectory answers membership questions for persisted rooms.
type RoomDirectory interface {
	IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, roomID uuid.UUID, userID, content string) (*models.Message, error)
}

// UserDirectory resolves user IDs to display names.
type UserDirectory interface {
	ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// SessionRecorder persists completed study sessions.
type SessionRecorder interface {
	AppendStudySession(ctx context.Context, session models.StudySession) (*models.StudySession, error)
}

// BadgeEvaluator evaluates award predicates after a session persist.
type BadgeEvaluator interface {
	EvaluateOnSession(ctx context.Context, userID string, sessionStartUTC time.Time, durationSeconds int) ([]models.Badge, error)
}

// Hub routes client commands to the presence tracker, timer engine and
// storage collaborators, and fans results back out through the
// connection manager. Room IDs arrive as raw strings: an ID that does
// not parse as a UUID still gets a broadcast group, it just never
// touches presence or persistence.
type Hub struct {
	manager  *Manager
	presence Presence
	timers   TimerEngine
	rooms    RoomDirectory
	messages MessageStore
	users    UserDirectory
	sessions SessionRecorder
	badges   BadgeEvaluator
	clock    clockwork.Clock
}

// NewHub creates the hub. Call manager.SetHandler with the result before
// serving connections.
func NewHub(manager *Manager, presence Presence, timers TimerEngine, rooms RoomDirectory, messages MessageStore, users UserDirectory, sessions SessionRecorder, badges BadgeEvaluator, clock clockwork.Clock) *Hub {
	return &Hub{
		manager:  manager,
		presence: presence,
		timers:   timers,
		rooms:    rooms,
		messages: messages,
		users:    users,
		sessions: sessions,
		badges:   badges,
		clock:    clock,
	}
}

type command struct {
	Action  string `json:"action"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Seconds int    `json:"seconds"`
	Phase   string `json:"phase"`
}

// HandleMessage dispatches one inbound client frame. A malformed or
// failed command never tears down the connection.
func (h *Hub) HandleMessage(ctx context.Context, conn *Connection, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.errorTo(conn, "", "malformed command")
		return
	}

	switch cmd.Action {
	case "ping":
		h.manager.PublishToConn(conn, "", EventPong, nil)
	case "join_room":
		h.JoinRoom(ctx, conn, cmd.RoomID)
	case "leave_room":
		h.LeaveRoom(ctx, conn, cmd.RoomID)
	case "send_message":
		h.SendMessage(ctx, conn, cmd.RoomID, cmd.Content)
	case "get_online_users":
		h.manager.PublishToConn(conn, cmd.RoomID, EventOnlineUsers, h.OnlineUsers(ctx, cmd.RoomID))
	case "timer_sync":
		h.Sync(conn, cmd.RoomID)
	case "timer_start":
		h.StartTimer(ctx, conn, cmd.RoomID, cmd.Seconds, cmd.Phase)
	case "timer_pause":
		h.PauseTimer(ctx, conn, cmd.RoomID)
	case "timer_resume":
		h.ResumeTimer(ctx, conn, cmd.RoomID)
	case "log_focus_session":
		h.LogFocusSession(ctx, conn, cmd.RoomID, cmd.Seconds)
	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("action", cmd.Action).
			Msg("unknown action")
		h.errorTo(conn, cmd.RoomID, "unknown action")
	}
}

// JoinRoom subscribes the connection to the room group, updates presence
// for parseable room IDs and announces the join to the room.
func (h *Hub) JoinRoom(ctx context.Context, conn *Connection, roomID string) {
	h.manager.JoinGroup(conn, roomID)
	if rid, err := uuid.Parse(roomID); err == nil {
		h.presence.Join(rid, conn.UserID)
	}
	h.manager.Publish(roomID, EventUserJoined, UserPayload{UserID: conn.UserID})
	h.broadcastOnlineUsers(ctx, roomID)
}

// LeaveRoom mirrors JoinRoom.
func (h *Hub) LeaveRoom(ctx context.Context, conn *Connection, roomID string) {
	h.manager.LeaveGroup(conn, roomID)
	if rid, err := uuid.Parse(roomID); err == nil {
		h.presence.Leave(rid, conn.UserID)
	}
	h.manager.Publish(roomID, EventUserLeft, UserPayload{UserID: conn.UserID})
	h.broadcastOnlineUsers(ctx, roomID)
}

// HandleDisconnect runs the leave sequence for every room the connection
// had joined. TakeRooms empties the membership set atomically, so the
// cleanup happens exactly once even under concurrent disconnect signals.
func (h *Hub) HandleDisconnect(ctx context.Context, conn *Connection) {
	rooms := conn.TakeRooms()
	for _, roomID := range rooms {
		h.manager.LeaveGroup(conn, roomID)
		if rid, err := uuid.Parse(roomID); err == nil {
			h.presence.Leave(rid, conn.UserID)
		}
		h.manager.Publish(roomID, EventUserLeft, UserPayload{UserID: conn.UserID})
		h.broadcastOnlineUsers(ctx, roomID)
	}
	if len(rooms) > 0 {
		log.Debug().
			Str("connection_id", conn.ID).
			Int("rooms", len(rooms)).
			Msg("disconnect cleanup complete")
	}
}

// SendMessage persists and broadcasts a chat message. Whitespace-only
// text is ignored. For a room ID that does not parse the message is
// broadcast ephemerally instead of failing the call.
func (h *Hub) SendMessage(ctx context.Context, conn *Connection, roomID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	rid, err := uuid.Parse(roomID)
	if err != nil {
		h.manager.Publish(roomID, EventMessageReceived, MessagePayload{
			ID:          uuid.New(),
			RoomID:      roomID,
			UserID:      conn.UserID,
			DisplayName: conn.UserID,
			Content:     text,
			CreatedAt:   h.clock.Now().UTC(),
		})
		return
	}

	if !h.requireMember(ctx, conn, rid, "join the room to send messages") {
		return
	}

	msg, err := h.messages.AppendMessage(ctx, rid, conn.UserID, text)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to persist message")
		h.errorTo(conn, roomID, "message could not be saved")
		return
	}

	h.manager.Publish(roomID, EventMessageReceived, MessagePayload{
		ID:          msg.ID,
		RoomID:      roomID,
		UserID:      msg.UserID,
		DisplayName: h.displayName(ctx, msg.UserID),
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
	})
}

// OnlineUsers resolves the room's presence set against the user
// directory. Unparseable or unknown rooms yield an empty list, never an
// error.
func (h *Hub) OnlineUsers(ctx context.Context, roomID string) []OnlineUser {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return []OnlineUser{}
	}
	ids := h.presence.OnlineUserIDs(rid)
	if len(ids) == 0 {
		return []OnlineUser{}
	}
	sort.Strings(ids)

	names, err := h.users.ResolveDisplayNames(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to resolve display names")
		names = map[string]string{}
	}
	list := make([]OnlineUser, 0, len(ids))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		list = append(list, OnlineUser{UserID: id, DisplayName: name})
	}
	return list
}

// Sync returns the room's timer state to the calling connection only.
func (h *Hub) Sync(conn *Connection, roomID string) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		h.manager.PublishToConn(conn, roomID, EventTimerUpdated, roomtimer.State{Phase: models.PhaseIdle})
		return
	}
	h.manager.PublishToConn(conn, roomID, EventTimerUpdated, h.timers.Get(rid))
}

// StartTimer starts (or restarts) the room timer and broadcasts the new
// state.
func (h *Hub) StartTimer(ctx context.Context, conn *Connection, roomID string, seconds int, phase string) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return
	}
	if !h.requireMember(ctx, conn, rid, "join the room to control the timer") {
		return
	}
	h.manager.Publish(roomID, EventTimerUpdated, h.timers.Start(rid, seconds, phase))
}

// PauseTimer pauses the room timer and broadcasts the new state.
func (h *Hub) PauseTimer(ctx context.Context, conn *Connection, roomID string) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return
	}
	if !h.requireMember(ctx, conn, rid, "join the room to control the timer") {
		return
	}
	h.manager.Publish(roomID, EventTimerUpdated, h.timers.Pause(rid))
}

// ResumeTimer resumes the room timer and broadcasts the new state.
func (h *Hub) ResumeTimer(ctx context.Context, conn *Connection, roomID string) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return
	}
	if !h.requireMember(ctx, conn, rid, "join the room to control the timer") {
		return
	}
	h.manager.Publish(roomID, EventTimerUpdated, h.timers.Resume(rid))
}

// LogFocusSession records a completed focus interval reported by the
// owning connection, then evaluates badge predicates. Newly earned
// badges go back to the caller only.
func (h *Hub) LogFocusSession(ctx context.Context, conn *Connection, roomID string, seconds int) {
	if seconds <= 0 {
		return
	}
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return
	}

	end := h.clock.Now().UTC()
	start := end.Add(-time.Duration(seconds) * time.Second)
	_, err = h.sessions.AppendStudySession(ctx, models.StudySession{
		RoomID:          rid,
		UserID:          conn.UserID,
		Phase:           models.PhaseFocus,
		StartedAt:       start,
		EndedAt:         end,
		DurationSeconds: seconds,
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to persist study session")
		h.errorTo(conn, roomID, "session could not be saved")
		return
	}

	earned, err := h.badges.EvaluateOnSession(ctx, conn.UserID, start, seconds)
	if err != nil {
		log.Warn().Err(err).Str("user_id", conn.UserID).Msg("badge evaluation failed")
		return
	}
	if len(earned) == 0 {
		return
	}
	payload := make([]BadgePayload, 0, len(earned))
	for _, b := range earned {
		payload = append(payload, BadgePayload{Key: b.Key, Name: b.Name, Icon: b.Icon})
	}
	h.manager.PublishToConn(conn, roomID, EventBadgesAwarded, payload)
}

func (h *Hub) broadcastOnlineUsers(ctx context.Context, roomID string) {
	h.manager.Publish(roomID, EventOnlineUsers, h.OnlineUsers(ctx, roomID))
}

// requireMember rejects the operation with an Error event when the user
// is not a member of the room. Nothing is broadcast on rejection.
func (h *Hub) requireMember(ctx context.Context, conn *Connection, roomID uuid.UUID, reject string) bool {
	ok, err := h.rooms.IsMember(ctx, roomID, conn.UserID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("membership check failed")
		h.errorTo(conn, roomID.String(), "membership check failed")
		return false
	}
	if !ok {
		h.errorTo(conn, roomID.String(), reject)
		return false
	}
	return true
}

func (h *Hub) errorTo(conn *Connection, roomID, message string) {
	h.manager.PublishToConn(conn, roomID, EventError, ErrorPayload{Message: message})
}

func (h *Hub) displayName(ctx context.Context, userID string) string {
	names, err := h.users.ResolveDisplayNames(ctx, []string{userID})
	if err != nil || names[userID] == "" {
		return userID
	}
	return names[userID]
}
