package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/presence"
	"github.com/studyhall/studyhall/go/internal/roomtimer"
)

type fakeRooms struct {
	mu      sync.Mutex
	members map[string]bool // roomID/userID
	err     error
}

func (f *fakeRooms) allow(roomID uuid.UUID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members == nil {
		f.members = make(map[string]bool)
	}
	f.members[roomID.String()+"/"+userID] = true
}

func (f *fakeRooms) IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.members[roomID.String()+"/"+userID], nil
}

type fakeMessages struct {
	mu       sync.Mutex
	appended []models.Message
	err      error
}

func (f *fakeMessages) AppendMessage(ctx context.Context, roomID uuid.UUID, userID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	msg := models.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.appended = append(f.appended, msg)
	return &msg, nil
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type fakeUsers struct {
	names map[string]string
}

func (f *fakeUsers) ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range userIDs {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	appended []models.StudySession
	err      error
}

func (f *fakeSessions) AppendStudySession(ctx context.Context, s models.StudySession) (*models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s.ID = uuid.New()
	f.appended = append(f.appended, s)
	return &s, nil
}

func (f *fakeSessions) all() []models.StudySession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.StudySession(nil), f.appended...)
}

type fakeBadges struct {
	earned []models.Badge
	err    error
}

func (f *fakeBadges) EvaluateOnSession(ctx context.Context, userID string, start time.Time, durationSeconds int) ([]models.Badge, error) {
	return f.earned, f.err
}

type hubFixture struct {
	hub      *Hub
	manager  *Manager
	tracker  *presence.Tracker
	engine   *roomtimer.Engine
	clock    *clockwork.FakeClock
	rooms    *fakeRooms
	messages *fakeMessages
	sessions *fakeSessions
	badges   *fakeBadges
	cancel   context.CancelFunc
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	manager := NewManager(DefaultConnectionConfig())
	tracker := presence.NewTracker()
	engine := roomtimer.NewEngine(clock, manager)
	rooms := &fakeRooms{}
	messages := &fakeMessages{}
	users := &fakeUsers{names: map[string]string{"alice": "Alice", "bob": "Bob"}}
	sessions := &fakeSessions{}
	badges := &fakeBadges{}

	hub := NewHub(manager, tracker, engine, rooms, messages, users, sessions, badges, clock)
	manager.SetHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)
	t.Cleanup(cancel)

	return &hubFixture{
		hub: hub, manager: manager, tracker: tracker, engine: engine,
		clock: clock, rooms: rooms, messages: messages, sessions: sessions,
		badges: badges, cancel: cancel,
	}
}

func (f *hubFixture) conn(userID string) *Connection {
	return &Connection{
		ID:      uuid.New().String(),
		UserID:  userID,
		send:    make(chan []byte, 64),
		manager: f.manager,
		rooms:   make(map[string]struct{}),
	}
}

func nextEvent(t *testing.T, conn *Connection) Envelope {
	t.Helper()
	select {
	case data := <-conn.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad envelope %s: %v", data, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Envelope{}
	}
}

func waitForEvent(t *testing.T, conn *Connection, event string) Envelope {
	t.Helper()
	for {
		env := nextEvent(t, conn)
		if env.Event == event {
			return env
		}
	}
}

func expectNoEvent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func decodeData(t *testing.T, env Envelope, target any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("decode %s data: %v", env.Event, err)
	}
}

func TestJoinRoomUpdatesPresenceAndBroadcasts(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	f.hub.JoinRoom(ctx, alice, room.String())

	if got := f.tracker.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount = %d, want 1", got)
	}

	env := waitForEvent(t, alice, EventUserJoined)
	var joined UserPayload
	decodeData(t, env, &joined)
	if joined.UserID != "alice" {
		t.Fatalf("UserJoined.userId = %q", joined.UserID)
	}

	env = waitForEvent(t, alice, EventOnlineUsers)
	var online []OnlineUser
	decodeData(t, env, &online)
	want := []OnlineUser{{UserID: "alice", DisplayName: "Alice"}}
	if diff := cmp.Diff(want, online); diff != "" {
		t.Fatalf("OnlineUsers mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinRoomNonUUIDSkipsPresence(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	alice := f.conn("alice")
	f.hub.JoinRoom(ctx, alice, "lobby")

	if counts := f.tracker.AllCounts(); len(counts) != 0 {
		t.Fatalf("presence touched for non-UUID room: %v", counts)
	}
	// The broadcast group still works.
	if got := f.manager.GroupSize("lobby"); got != 1 {
		t.Fatalf("GroupSize = %d, want 1", got)
	}
	waitForEvent(t, alice, EventUserJoined)
}

func TestLeaveRoomRemovesPresence(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	bob := f.conn("bob")
	f.hub.JoinRoom(ctx, alice, room.String())
	f.hub.JoinRoom(ctx, bob, room.String())
	if got := f.tracker.OnlineCount(room); got != 2 {
		t.Fatalf("OnlineCount = %d, want 2", got)
	}

	f.hub.LeaveRoom(ctx, alice, room.String())
	if got := f.tracker.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount after leave = %d, want 1", got)
	}

	env := waitForEvent(t, bob, EventUserLeft)
	var left UserPayload
	decodeData(t, env, &left)
	if left.UserID != "alice" {
		t.Fatalf("UserLeft.userId = %q", left.UserID)
	}
}

func TestSendMessagePersistsAndBroadcasts(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	bob := f.conn("bob")
	f.rooms.allow(room, "alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	f.hub.JoinRoom(ctx, bob, room.String())

	f.hub.SendMessage(ctx, alice, room.String(), "hello")

	env := waitForEvent(t, bob, EventMessageReceived)
	var msg MessagePayload
	decodeData(t, env, &msg)
	if msg.Content != "hello" || msg.UserID != "alice" || msg.DisplayName != "Alice" {
		t.Fatalf("MessageReceived = %+v", msg)
	}
	if f.messages.count() != 1 {
		t.Fatalf("persisted %d messages, want 1", f.messages.count())
	}
}

func TestSendMessageWhitespaceIsNoOp(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	f.rooms.allow(room, "alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	waitForEvent(t, alice, EventOnlineUsers)

	f.hub.SendMessage(ctx, alice, room.String(), "   \t\n")
	expectNoEvent(t, alice)
	if f.messages.count() != 0 {
		t.Fatalf("whitespace message was persisted")
	}
}

func TestSendMessageEphemeralFallback(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	alice := f.conn("alice")
	f.hub.JoinRoom(ctx, alice, "lobby")
	waitForEvent(t, alice, EventOnlineUsers)

	f.hub.SendMessage(ctx, alice, "lobby", "hi all")

	env := waitForEvent(t, alice, EventMessageReceived)
	var msg MessagePayload
	decodeData(t, env, &msg)
	if msg.RoomID != "lobby" || msg.Content != "hi all" {
		t.Fatalf("ephemeral MessageReceived = %+v", msg)
	}
	if f.messages.count() != 0 {
		t.Fatalf("ephemeral message was persisted")
	}
}

func TestSendMessageNonMemberRejected(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	waitForEvent(t, alice, EventOnlineUsers)

	f.hub.SendMessage(ctx, alice, room.String(), "hello")

	env := nextEvent(t, alice)
	if env.Event != EventError {
		t.Fatalf("event = %q, want Error", env.Event)
	}
	if f.messages.count() != 0 {
		t.Fatalf("rejected message was persisted")
	}
	// Nothing was broadcast.
	expectNoEvent(t, alice)
}

func TestSendMessagePersistFailureNoBroadcast(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	f.rooms.allow(room, "alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	waitForEvent(t, alice, EventOnlineUsers)

	f.messages.err = errors.New("db down")
	f.hub.SendMessage(ctx, alice, room.String(), "hello")

	env := nextEvent(t, alice)
	if env.Event != EventError {
		t.Fatalf("event = %q, want Error", env.Event)
	}
	expectNoEvent(t, alice)
}

func TestTimerControlNonMemberRejected(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	waitForEvent(t, alice, EventOnlineUsers)

	f.hub.StartTimer(ctx, alice, room.String(), 60, models.PhaseFocus)

	env := nextEvent(t, alice)
	if env.Event != EventError {
		t.Fatalf("event = %q, want Error", env.Event)
	}
	if st := f.engine.Get(room); st.Running {
		t.Fatalf("timer started for non-member: %+v", st)
	}
}

func TestTimerStartBroadcastsUpdate(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	f.rooms.allow(room, "alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	waitForEvent(t, alice, EventOnlineUsers)

	f.hub.StartTimer(ctx, alice, room.String(), 300, models.PhaseFocus)

	env := waitForEvent(t, alice, EventTimerUpdated)
	var st roomtimer.State
	decodeData(t, env, &st)
	if !st.Running || st.TotalSeconds != 300 || st.Phase != models.PhaseFocus {
		t.Fatalf("TimerUpdated = %+v", st)
	}
}

func TestDisconnectCleansUpOnce(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	bob := f.conn("bob")
	f.hub.JoinRoom(ctx, alice, room.String())
	f.hub.JoinRoom(ctx, bob, room.String())
	waitForEvent(t, bob, EventOnlineUsers)

	f.hub.HandleDisconnect(ctx, alice)
	if got := f.tracker.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount after disconnect = %d, want 1", got)
	}

	env := waitForEvent(t, bob, EventUserLeft)
	var left UserPayload
	decodeData(t, env, &left)
	if left.UserID != "alice" {
		t.Fatalf("UserLeft.userId = %q", left.UserID)
	}
	waitForEvent(t, bob, EventOnlineUsers)

	// A second disconnect signal must be a complete no-op.
	f.hub.HandleDisconnect(ctx, alice)
	expectNoEvent(t, bob)
}

func TestLogFocusSessionPersistsAndAwards(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	f.badges.earned = []models.Badge{{Key: models.BadgeEarlyBird, Name: "Early Bird", Icon: "🌅"}}

	alice := f.conn("alice")
	f.hub.JoinRoom(ctx, alice, room.String())
	waitForEvent(t, alice, EventOnlineUsers)

	f.hub.LogFocusSession(ctx, alice, room.String(), 1500)

	sessions := f.sessions.all()
	if len(sessions) != 1 {
		t.Fatalf("persisted %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.DurationSeconds != 1500 || s.Phase != models.PhaseFocus || s.RoomID != room {
		t.Fatalf("session = %+v", s)
	}
	if got := s.EndedAt.Sub(s.StartedAt); got != 1500*time.Second {
		t.Fatalf("session span = %v, want 25m", got)
	}

	env := waitForEvent(t, alice, EventBadgesAwarded)
	var badges []BadgePayload
	decodeData(t, env, &badges)
	want := []BadgePayload{{Key: models.BadgeEarlyBird, Name: "Early Bird", Icon: "🌅"}}
	if diff := cmp.Diff(want, badges); diff != "" {
		t.Fatalf("BadgesAwarded mismatch (-want +got):\n%s", diff)
	}
}

func TestLogFocusSessionInvalidInputs(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	alice := f.conn("alice")
	f.hub.LogFocusSession(ctx, alice, uuid.New().String(), 0)
	f.hub.LogFocusSession(ctx, alice, "not-a-room", 60)

	if got := len(f.sessions.all()); got != 0 {
		t.Fatalf("persisted %d sessions, want 0", got)
	}
}

// TestEndToEndScenario walks the full happy path: two users join, one
// chats, starts a short focus timer, the timer ends for everyone, and
// the completion is logged as a study session.
func TestEndToEndScenario(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()

	alice := f.conn("alice")
	bob := f.conn("bob")
	f.rooms.allow(room, "alice")

	f.hub.JoinRoom(ctx, alice, room.String())
	if got := f.tracker.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount = %d, want 1", got)
	}
	f.hub.JoinRoom(ctx, bob, room.String())
	if got := f.tracker.OnlineCount(room); got != 2 {
		t.Fatalf("OnlineCount = %d, want 2", got)
	}

	f.hub.SendMessage(ctx, alice, room.String(), "hello")
	for _, conn := range []*Connection{alice, bob} {
		env := waitForEvent(t, conn, EventMessageReceived)
		var msg MessagePayload
		decodeData(t, env, &msg)
		if msg.Content != "hello" {
			t.Fatalf("content = %q, want hello", msg.Content)
		}
	}

	f.hub.StartTimer(ctx, alice, room.String(), 5, models.PhaseFocus)
	waitForEvent(t, alice, EventTimerUpdated)
	waitForEvent(t, bob, EventTimerUpdated)

	f.clock.Advance(5 * time.Second)
	for _, conn := range []*Connection{alice, bob} {
		env := waitForEvent(t, conn, EventTimerEnded)
		var st roomtimer.State
		decodeData(t, env, &st)
		if st.Running || st.Phase != models.PhaseFocus {
			t.Fatalf("TimerEnded = %+v", st)
		}
	}

	f.hub.LogFocusSession(ctx, alice, room.String(), 5)
	sessions := f.sessions.all()
	if len(sessions) != 1 {
		t.Fatalf("persisted %d sessions, want exactly 1", len(sessions))
	}
	if sessions[0].UserID != "alice" || sessions[0].DurationSeconds != 5 {
		t.Fatalf("session = %+v", sessions[0])
	}
}

func TestHandleMessageMalformed(t *testing.T) {
	f := newHubFixture(t)
	alice := f.conn("alice")

	f.hub.HandleMessage(context.Background(), alice, []byte("{not json"))
	env := nextEvent(t, alice)
	if env.Event != EventError {
		t.Fatalf("event = %q, want Error", env.Event)
	}

	// The connection stays usable after a failed call.
	f.hub.HandleMessage(context.Background(), alice, []byte(`{"action":"ping"}`))
	if env := nextEvent(t, alice); env.Event != EventPong {
		t.Fatalf("event = %q, want Pong", env.Event)
	}
}

func TestHandleMessageRoutesCommands(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	room := uuid.New()
	alice := f.conn("alice")
	f.rooms.allow(room, "alice")

	join := fmt.Sprintf(`{"action":"join_room","roomId":%q}`, room.String())
	f.hub.HandleMessage(ctx, alice, []byte(join))
	waitForEvent(t, alice, EventOnlineUsers)
	if got := f.tracker.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount = %d, want 1", got)
	}

	start := fmt.Sprintf(`{"action":"timer_start","roomId":%q,"seconds":60,"phase":"focus"}`, room.String())
	f.hub.HandleMessage(ctx, alice, []byte(start))
	env := waitForEvent(t, alice, EventTimerUpdated)
	var st roomtimer.State
	decodeData(t, env, &st)
	if !st.Running || st.TotalSeconds != 60 {
		t.Fatalf("TimerUpdated = %+v", st)
	}

	sync := fmt.Sprintf(`{"action":"timer_sync","roomId":%q}`, room.String())
	f.hub.HandleMessage(ctx, alice, []byte(sync))
	env = waitForEvent(t, alice, EventTimerUpdated)
	decodeData(t, env, &st)
	if !st.Running {
		t.Fatalf("sync state = %+v, want running", st)
	}
}
