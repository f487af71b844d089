package models

import (
	"time"

	"github.com/google/uuid"
)

// Timer phases carried through events and study sessions.
const (
	PhaseFocus = "focus"
	PhaseBreak = "break"
	PhaseIdle  = "idle"
)

// StudySession is an immutable record of one completed focus interval.
type StudySession struct {
	ID              uuid.UUID `json:"id"`
	RoomID          uuid.UUID `json:"roomId"`
	UserID          string    `json:"userId"`
	Phase           string    `json:"phase"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	DurationSeconds int       `json:"durationSeconds"`
}
