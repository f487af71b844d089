package polls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/realtime"
)

type fakePollRepo struct {
	polls map[uuid.UUID]*models.Poll
	votes map[uuid.UUID]map[string]uuid.UUID // pollID -> userID -> optionID
}

func newFakePollRepo() *fakePollRepo {
	return &fakePollRepo{
		polls: map[uuid.UUID]*models.Poll{},
		votes: map[uuid.UUID]map[string]uuid.UUID{},
	}
}

func (f *fakePollRepo) CreatePoll(ctx context.Context, roomID uuid.UUID, createdBy, question string, options []string, expiresAt time.Time) (*models.Poll, error) {
	poll := &models.Poll{
		ID: uuid.New(), RoomID: roomID, Question: question,
		CreatedBy: createdBy, ExpiresAt: expiresAt,
	}
	for i, text := range options {
		poll.Options = append(poll.Options, models.PollOption{
			ID: uuid.New(), PollID: poll.ID, Text: text, Position: i,
		})
	}
	f.polls[poll.ID] = poll
	f.votes[poll.ID] = map[string]uuid.UUID{}
	return poll, nil
}

func (f *fakePollRepo) GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	return f.polls[id], nil
}

func (f *fakePollRepo) ListPolls(ctx context.Context, roomID uuid.UUID) ([]models.Poll, error) {
	var out []models.Poll
	for _, p := range f.polls {
		if p.RoomID == roomID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePollRepo) RecordVote(ctx context.Context, pollID, optionID uuid.UUID, userID string) (bool, error) {
	if _, ok := f.votes[pollID][userID]; ok {
		return false, nil
	}
	f.votes[pollID][userID] = optionID
	return true, nil
}

func (f *fakePollRepo) CountVotes(ctx context.Context, pollID uuid.UUID) ([]models.OptionCount, error) {
	tally := map[uuid.UUID]int{}
	for _, optID := range f.votes[pollID] {
		tally[optID]++
	}
	var counts []models.OptionCount
	for _, opt := range f.polls[pollID].Options {
		counts = append(counts, models.OptionCount{OptionID: opt.ID, Count: tally[opt.ID]})
	}
	return counts, nil
}

func (f *fakePollRepo) DeletePoll(ctx context.Context, id uuid.UUID) error {
	delete(f.polls, id)
	delete(f.votes, id)
	return nil
}

type fakeMembership struct {
	members map[string]models.RoomRole
}

func (f *fakeMembership) IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error) {
	_, ok := f.members[userID]
	return ok, nil
}

func (f *fakeMembership) GetMemberRole(ctx context.Context, roomID uuid.UUID, userID string) (models.RoomRole, error) {
	return f.members[userID], nil
}

type publishedEvent struct {
	roomID string
	event  string
}

type fakeBroadcaster struct {
	events []publishedEvent
}

func (f *fakeBroadcaster) Publish(roomID string, event string, payload any) {
	f.events = append(f.events, publishedEvent{roomID: roomID, event: event})
}

func fixture(members map[string]models.RoomRole) (*App, *fakePollRepo, *fakeBroadcaster, *clockwork.FakeClock) {
	repo := newFakePollRepo()
	bc := &fakeBroadcaster{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewApp(repo, &fakeMembership{members: members}, bc, clock), repo, bc, clock
}

func members(ids ...string) map[string]models.RoomRole {
	m := map[string]models.RoomRole{}
	for _, id := range ids {
		m[id] = models.RoomRoleMember
	}
	return m
}

func TestCreatePollValidation(t *testing.T) {
	app, _, _, _ := fixture(members("u1"))
	roomID := uuid.New()
	ctx := context.Background()

	if _, err := app.CreatePoll(ctx, roomID, "u1", "  ", []string{"a", "b"}, time.Time{}); err == nil {
		t.Error("expected error for blank question")
	}
	if _, err := app.CreatePoll(ctx, roomID, "u1", "q", []string{"only"}, time.Time{}); err == nil {
		t.Error("expected error for a single option")
	}
	if _, err := app.CreatePoll(ctx, roomID, "u1", "q", []string{"a", "b", "c", "d", "e", "f"}, time.Time{}); err == nil {
		t.Error("expected error for six options")
	}
	if _, err := app.CreatePoll(ctx, roomID, "u1", "q", []string{"a", " ", "b", ""}, time.Time{}); err != nil {
		t.Errorf("blank options should be dropped, not fatal: %v", err)
	}
}

func TestCreatePollDefaultsExpiry(t *testing.T) {
	app, _, bc, clock := fixture(members("u1"))
	poll, err := app.CreatePoll(context.Background(), uuid.New(), "u1", "break when?", []string{"now", "later"}, time.Time{})
	if err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}
	if want := clock.Now().UTC().Add(defaultPollLifetime); !poll.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", poll.ExpiresAt, want)
	}
	if len(bc.events) != 1 || bc.events[0].event != realtime.EventPollCreated {
		t.Errorf("events = %v, want one PollCreated", bc.events)
	}
}

func TestVoteOncePerUser(t *testing.T) {
	app, _, bc, _ := fixture(members("u1", "u2"))
	poll, _ := app.CreatePoll(context.Background(), uuid.New(), "u1", "q", []string{"a", "b"}, time.Time{})
	optA := poll.Options[0].ID

	counts, err := app.Vote(context.Background(), poll.ID, optA, "u2")
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if counts[0].Count != 1 {
		t.Errorf("option a count = %d, want 1", counts[0].Count)
	}
	if bc.events[len(bc.events)-1].event != realtime.EventPollVoted {
		t.Errorf("last event = %v, want PollVoted", bc.events)
	}

	if _, err := app.Vote(context.Background(), poll.ID, poll.Options[1].ID, "u2"); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("second vote: err = %v, want ErrAlreadyVoted", err)
	}
}

func TestVoteChecks(t *testing.T) {
	app, _, _, clock := fixture(members("u1"))
	poll, _ := app.CreatePoll(context.Background(), uuid.New(), "u1", "q", []string{"a", "b"}, time.Time{})

	if _, err := app.Vote(context.Background(), poll.ID, uuid.New(), "u1"); err == nil {
		t.Error("expected error for foreign option id")
	}
	if _, err := app.Vote(context.Background(), poll.ID, poll.Options[0].ID, "stranger"); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-member vote: err = %v, want ErrForbidden", err)
	}
	if _, err := app.Vote(context.Background(), uuid.New(), poll.Options[0].ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown poll: err = %v, want ErrNotFound", err)
	}

	clock.Advance(defaultPollLifetime + time.Minute)
	if _, err := app.Vote(context.Background(), poll.ID, poll.Options[0].ID, "u1"); !errors.Is(err, ErrPollClosed) {
		t.Errorf("expired poll: err = %v, want ErrPollClosed", err)
	}
}

func TestClosePollPermissions(t *testing.T) {
	m := members("creator", "other")
	m["owner"] = models.RoomRoleOwner
	app, repo, bc, _ := fixture(m)
	poll, _ := app.CreatePoll(context.Background(), uuid.New(), "creator", "q", []string{"a", "b"}, time.Time{})

	if err := app.ClosePoll(context.Background(), poll.ID, "other"); !errors.Is(err, ErrForbidden) {
		t.Errorf("other member close: err = %v, want ErrForbidden", err)
	}
	if err := app.ClosePoll(context.Background(), poll.ID, "creator"); err != nil {
		t.Errorf("creator close: %v", err)
	}
	if _, ok := repo.polls[poll.ID]; ok {
		t.Error("poll should be gone after close")
	}
	if bc.events[len(bc.events)-1].event != realtime.EventPollDeleted {
		t.Errorf("last event = %v, want PollDeleted", bc.events)
	}

	poll2, _ := app.CreatePoll(context.Background(), uuid.New(), "creator", "q2", []string{"a", "b"}, time.Time{})
	if err := app.ClosePoll(context.Background(), poll2.ID, "owner"); err != nil {
		t.Errorf("room owner close: %v", err)
	}
}
