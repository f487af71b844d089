package rooms

// CreateRoomRequest carries the fields needed to create a room.
type CreateRoomRequest struct {
	Name        string  `json:"name"`
	Subject     *string `json:"subject,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPrivate   bool    `json:"isPrivate"`
	JoinCode    string  `json:"joinCode,omitempty"`
}

// JoinRoomRequest carries a join attempt. JoinCode is required for
// private rooms and ignored for public ones.
type JoinRoomRequest struct {
	JoinCode string `json:"joinCode,omitempty"`
}

// ExploreFilter narrows and orders the room listing.
type ExploreFilter struct {
	Search  string
	Subject string
	Sort    string // "active" or "new"
}
