package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/models"
)

// Errors the service layer maps to HTTP statuses.
var (
	ErrNotFound  = errors.New("room not found")
	ErrForbidden = errors.New("not allowed")
	ErrBadCode   = errors.New("invalid join code")
)

// RoomsRepository defines what the app layer needs from the repository.
type RoomsRepository interface {
	CreateRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, filter ExploreFilter) ([]models.RoomCard, error)
	AddMember(ctx context.Context, roomID uuid.UUID, userID string, role models.RoomRole) error
	RemoveMember(ctx context.Context, roomID uuid.UUID, userID string) error
	IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error)
	GetMemberRole(ctx context.Context, roomID uuid.UUID, userID string) (models.RoomRole, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error)
}

// OnlineCounter reports live per-room occupancy for the explore listing.
type OnlineCounter interface {
	AllCounts() map[uuid.UUID]int
}

// App handles rooms business logic.
type App struct {
	repo   RoomsRepository
	online OnlineCounter
}

// NewApp creates a new rooms App.
func NewApp(repo RoomsRepository, online OnlineCounter) *App {
	return &App{repo: repo, online: online}
}

// CreateRoom creates a room and enrolls the creator as its owner.
func (a *App) CreateRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*models.Room, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.JoinCode = strings.TrimSpace(req.JoinCode)
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.IsPrivate && req.JoinCode == "" {
		return nil, fmt.Errorf("private rooms require a join code")
	}
	if !req.IsPrivate {
		req.JoinCode = ""
	}

	room, err := a.repo.CreateRoom(ctx, ownerID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("owner_id", ownerID).
		Bool("private", room.IsPrivate).
		Msg("room created")
	return room, nil
}

// GetRoom retrieves a room by ID.
func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, ErrNotFound
	}
	return room, nil
}

// Explore lists rooms matching the filter, enriched with live online
// counts. Sort "active" orders by current occupancy, anything else
// keeps the repository's newest-first order.
func (a *App) Explore(ctx context.Context, filter ExploreFilter) ([]models.RoomCard, error) {
	cards, err := a.repo.ListRooms(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to explore rooms: %w", err)
	}

	counts := a.online.AllCounts()
	for i := range cards {
		cards[i].OnlineCount = counts[cards[i].ID]
	}

	if filter.Sort == "active" {
		sort.SliceStable(cards, func(i, j int) bool {
			return cards[i].OnlineCount > cards[j].OnlineCount
		})
	}
	return cards, nil
}

// JoinRoom enrolls a user as a member. Private rooms require the
// matching join code; re-joining is a no-op.
func (a *App) JoinRoom(ctx context.Context, roomID uuid.UUID, userID string, req JoinRoomRequest) error {
	room, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return ErrNotFound
	}
	if room.IsPrivate {
		if room.JoinCode == nil || strings.TrimSpace(req.JoinCode) != *room.JoinCode {
			return ErrBadCode
		}
	}

	if err := a.repo.AddMember(ctx, roomID, userID, models.RoomRoleMember); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	log.Info().Str("room_id", roomID.String()).Str("user_id", userID).Msg("user joined room")
	return nil
}

// LeaveRoom drops a user's membership. The owner cannot leave their
// own room.
func (a *App) LeaveRoom(ctx context.Context, roomID uuid.UUID, userID string) error {
	role, err := a.repo.GetMemberRole(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to get member role: %w", err)
	}
	if role == models.RoomRoleOwner {
		return fmt.Errorf("%w: owner cannot leave their own room", ErrForbidden)
	}
	if err := a.repo.RemoveMember(ctx, roomID, userID); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the room.
func (a *App) IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error) {
	return a.repo.IsMember(ctx, roomID, userID)
}

// GetMemberRole returns the user's role in the room, "" for non-members.
func (a *App) GetMemberRole(ctx context.Context, roomID uuid.UUID, userID string) (models.RoomRole, error) {
	return a.repo.GetMemberRole(ctx, roomID, userID)
}

// ListMembers returns the room's membership.
func (a *App) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	members, err := a.repo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
