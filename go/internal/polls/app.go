package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/realtime"
)

// Errors the service layer maps to HTTP statuses.
var (
	ErrNotFound     = errors.New("poll not found")
	ErrForbidden    = errors.New("not allowed")
	ErrPollClosed   = errors.New("poll is closed")
	ErrAlreadyVoted = errors.New("already voted")
)

const (
	minOptions = 2
	maxOptions = 5

	defaultPollLifetime = 24 * time.Hour
)

// PollsRepository defines what the app layer needs from the repository.
type PollsRepository interface {
	CreatePoll(ctx context.Context, roomID uuid.UUID, createdBy, question string, options []string, expiresAt time.Time) (*models.Poll, error)
	GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	ListPolls(ctx context.Context, roomID uuid.UUID) ([]models.Poll, error)
	RecordVote(ctx context.Context, pollID, optionID uuid.UUID, userID string) (bool, error)
	CountVotes(ctx context.Context, pollID uuid.UUID) ([]models.OptionCount, error)
	DeletePoll(ctx context.Context, id uuid.UUID) error
}

// Membership answers room membership questions for permission checks.
type Membership interface {
	IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error)
	GetMemberRole(ctx context.Context, roomID uuid.UUID, userID string) (models.RoomRole, error)
}

// Broadcaster pushes poll events to the room's live connections.
type Broadcaster interface {
	Publish(roomID string, event string, payload any)
}

// VotePayload is the PollVoted event body: the poll with fresh tallies.
type VotePayload struct {
	PollID uuid.UUID            `json:"pollId"`
	Counts []models.OptionCount `json:"counts"`
}

// App handles poll business logic. Mutations persist first and
// broadcast to the room only after the write succeeds.
type App struct {
	repo    PollsRepository
	members Membership
	bc      Broadcaster
	clock   clockwork.Clock
}

// NewApp creates a new polls App.
func NewApp(repo PollsRepository, members Membership, bc Broadcaster, clock clockwork.Clock) *App {
	return &App{repo: repo, members: members, bc: bc, clock: clock}
}

// ListPolls returns the room's polls. Members only.
func (a *App) ListPolls(ctx context.Context, roomID uuid.UUID, userID string) ([]models.Poll, error) {
	if err := a.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	polls, err := a.repo.ListPolls(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	return polls, nil
}

// CreatePoll validates and stores a poll, then broadcasts it to the room.
// A zero expiresAt falls back to the default lifetime.
func (a *App) CreatePoll(ctx context.Context, roomID uuid.UUID, userID, question string, options []string, expiresAt time.Time) (*models.Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	trimmed := make([]string, 0, len(options))
	for _, opt := range options {
		if opt = strings.TrimSpace(opt); opt != "" {
			trimmed = append(trimmed, opt)
		}
	}
	if len(trimmed) < minOptions || len(trimmed) > maxOptions {
		return nil, fmt.Errorf("polls need between %d and %d options", minOptions, maxOptions)
	}

	if err := a.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	now := a.clock.Now().UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultPollLifetime)
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("expiry must be in the future")
	}

	poll, err := a.repo.CreatePoll(ctx, roomID, userID, question, trimmed, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	a.bc.Publish(roomID.String(), realtime.EventPollCreated, poll)
	log.Info().Str("poll_id", poll.ID.String()).Str("room_id", roomID.String()).Msg("poll created")
	return poll, nil
}

// Vote records a single vote and broadcasts the fresh tallies. A second
// vote by the same user is rejected.
func (a *App) Vote(ctx context.Context, pollID, optionID uuid.UUID, userID string) ([]models.OptionCount, error) {
	poll, err := a.repo.GetPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrNotFound
	}
	if err := a.requireMember(ctx, poll.RoomID, userID); err != nil {
		return nil, err
	}
	if poll.Closed(a.clock.Now().UTC()) {
		return nil, ErrPollClosed
	}

	valid := false
	for _, opt := range poll.Options {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("option does not belong to this poll")
	}

	recorded, err := a.repo.RecordVote(ctx, pollID, optionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	if !recorded {
		return nil, ErrAlreadyVoted
	}

	counts, err := a.repo.CountVotes(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	a.bc.Publish(poll.RoomID.String(), realtime.EventPollVoted, VotePayload{PollID: pollID, Counts: counts})
	return counts, nil
}

// ClosePoll deletes a poll. Only the poll's creator or the room owner
// may close one.
func (a *App) ClosePoll(ctx context.Context, pollID uuid.UUID, userID string) error {
	poll, err := a.repo.GetPoll(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return ErrNotFound
	}

	if poll.CreatedBy != userID {
		role, err := a.members.GetMemberRole(ctx, poll.RoomID, userID)
		if err != nil {
			return fmt.Errorf("failed to get member role: %w", err)
		}
		if role != models.RoomRoleOwner {
			return fmt.Errorf("%w: only the creator or room owner can close a poll", ErrForbidden)
		}
	}

	if err := a.repo.DeletePoll(ctx, pollID); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}

	a.bc.Publish(poll.RoomID.String(), realtime.EventPollDeleted, map[string]string{
		"id":     poll.ID.String(),
		"roomId": poll.RoomID.String(),
	})
	return nil
}

func (a *App) requireMember(ctx context.Context, roomID uuid.UUID, userID string) error {
	ok, err := a.members.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: room members only", ErrForbidden)
	}
	return nil
}
