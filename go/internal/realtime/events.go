package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire frame for every event delivered to a client.
type Envelope struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Events published to room groups or individual connections.
const (
	EventUserJoined      = "UserJoined"
	EventUserLeft        = "UserLeft"
	EventOnlineUsers     = "OnlineUsers"
	EventMessageReceived = "MessageReceived"
	EventTimerUpdated    = "TimerUpdated"
	EventTimerEnded      = "TimerEnded"
	EventBadgesAwarded   = "BadgesAwarded"
	EventTaskCreated     = "TaskCreated"
	EventTaskUpdated     = "TaskUpdated"
	EventTaskDeleted     = "TaskDeleted"
	EventPollCreated     = "PollCreated"
	EventPollVoted       = "PollVoted"
	EventPollDeleted     = "PollDeleted"
	EventError           = "Error"
	EventPong            = "Pong"
)

// UserPayload carries the subject of a UserJoined/UserLeft event.
type UserPayload struct {
	UserID string `json:"userId"`
}

// OnlineUser is one entry of an OnlineUsers snapshot.
type OnlineUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// MessagePayload is the MessageReceived event body. RoomID is the raw
// string the sender supplied, so ephemeral rooms round-trip unchanged.
type MessagePayload struct {
	ID          uuid.UUID `json:"id"`
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BadgePayload is one newly awarded badge in a BadgesAwarded event.
type BadgePayload struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// ErrorPayload is sent to the calling connection when an operation is
// rejected. Failures are per-call: the connection stays usable.
type ErrorPayload struct {
	Message string `json:"message"`
}
