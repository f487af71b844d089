package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is a single-choice room poll with a fixed expiry.
type Poll struct {
	ID        uuid.UUID    `json:"id"`
	RoomID    uuid.UUID    `json:"roomId"`
	Question  string       `json:"question"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
	IsClosed  bool         `json:"isClosed"`
	Options   []PollOption `json:"options,omitempty"`
}

// Closed reports whether the poll no longer accepts votes at now.
func (p Poll) Closed(now time.Time) bool {
	return p.IsClosed || !p.ExpiresAt.After(now)
}

// PollOption is one votable choice of a poll.
type PollOption struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"pollId"`
	Text     string    `json:"text"`
	Position int       `json:"position"`
}

// PollVote records a user's single vote on a poll.
type PollVote struct {
	PollID    uuid.UUID `json:"pollId"`
	OptionID  uuid.UUID `json:"optionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// OptionCount pairs a poll option with its current vote tally.
type OptionCount struct {
	OptionID uuid.UUID `json:"optionId"`
	Count    int       `json:"count"`
}
