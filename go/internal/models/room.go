package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomRole defines a member's role within a room.
type RoomRole string

const (
	RoomRoleOwner  RoomRole = "owner"
	RoomRoleMember RoomRole = "member"
)

// Room represents a named collaboration context grouping presence, chat,
// tasks, polls and one shared timer.
type Room struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Subject     *string   `json:"subject,omitempty"`
	Description *string   `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	JoinCode    *string   `json:"-"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RoomMember links a user to a room.
type RoomMember struct {
	RoomID   uuid.UUID `json:"roomId"`
	UserID   string    `json:"userId"`
	Role     RoomRole  `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomCard is a room enriched with listing metadata (member and live
// online counts) for the explore view.
type RoomCard struct {
	Room
	MemberCount int `json:"memberCount"`
	OnlineCount int `json:"onlineCount"`
}
