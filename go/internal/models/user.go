package models

import "time"

// User represents a participant. The ID is an opaque stable string that
// outlives any single connection.
type User struct {
	ID          string    `json:"id"`
	UserName    string    `json:"userName"`
	DisplayName *string   `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.UserName
}
