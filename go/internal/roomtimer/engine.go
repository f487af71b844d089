package roomtimer

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/models"
)

// Broadcaster is what the engine needs to push timer events to a room's
// subscriber group.
type Broadcaster interface {
	Publish(roomID string, event string, payload any)
}

// EventTimerEnded is published to the room group when a running timer
// reaches its deadline.
const EventTimerEnded = "TimerEnded"

// State is a point-in-time snapshot of a room's timer.
type State struct {
	RoomID           uuid.UUID `json:"roomId"`
	Running          bool      `json:"running"`
	SecondsRemaining int       `json:"secondsRemaining"`
	TotalSeconds     int       `json:"totalSeconds"`
	Phase            string    `json:"phase"`
}

// mode is the tagged variant of a room timer. Exactly one of endsAt
// (running) or remaining (paused) is authoritative at any moment; idle
// carries neither.
type mode int

const (
	modeIdle mode = iota
	modeRunning
	modePaused
)

type roomTimer struct {
	mu           sync.Mutex
	mode         mode
	totalSeconds int
	phase        string
	endsAt       time.Time // valid when mode == modeRunning
	remaining    int       // valid when mode == modePaused

	// gen invalidates scheduled completions: every state mutation bumps
	// it, and a fired completion that no longer holds the live value is
	// a complete no-op.
	gen     uint64
	pending clockwork.Timer
	cancel  chan struct{}
}

// Engine is the authoritative per-room countdown timer. One instance is
// created at process start and shared by every connection handler; all
// state is in-memory and resets to idle on restart.
type Engine struct {
	clock clockwork.Clock
	bc    Broadcaster

	mu     sync.RWMutex
	timers map[uuid.UUID]*roomTimer
}

// NewEngine creates a timer engine publishing completions through bc.
func NewEngine(clock clockwork.Clock, bc Broadcaster) *Engine {
	return &Engine{
		clock:  clock,
		bc:     bc,
		timers: make(map[uuid.UUID]*roomTimer),
	}
}

// Get returns the room's current timer state without mutating it. The
// remaining seconds are computed live from the deadline while running.
func (e *Engine) Get(roomID uuid.UUID) State {
	e.mu.RLock()
	rt, ok := e.timers[roomID]
	e.mu.RUnlock()
	if !ok {
		return idleState(roomID)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.stateLocked(roomID, e.clock.Now())
}

// Start begins a fresh countdown. Start always resets: called on a
// running timer it cancels the pending completion and overwrites the
// total, phase and deadline.
func (e *Engine) Start(roomID uuid.UUID, seconds int, phase string) State {
	if seconds < 1 {
		seconds = 1
	}
	if strings.TrimSpace(phase) == "" {
		phase = models.PhaseFocus
	}

	rt := e.timer(roomID)
	rt.mu.Lock()
	rt.cancelPendingLocked()
	rt.mode = modeRunning
	rt.totalSeconds = seconds
	rt.phase = phase
	rt.endsAt = e.clock.Now().Add(time.Duration(seconds) * time.Second)
	rt.remaining = 0
	e.scheduleLocked(roomID, rt)
	st := rt.stateLocked(roomID, e.clock.Now())
	rt.mu.Unlock()

	log.Debug().
		Str("room_id", roomID.String()).
		Int("total_seconds", seconds).
		Str("phase", phase).
		Msg("timer started")
	return st
}

// Pause stops the countdown and freezes the remaining seconds. Pausing
// an already-paused or idle timer leaves the stored remainder untouched.
func (e *Engine) Pause(roomID uuid.UUID) State {
	e.mu.RLock()
	rt, ok := e.timers[roomID]
	e.mu.RUnlock()
	if !ok {
		return idleState(roomID)
	}

	rt.mu.Lock()
	rt.cancelPendingLocked()
	if rt.mode == modeRunning {
		rt.remaining = ceilSeconds(rt.endsAt.Sub(e.clock.Now()))
		rt.mode = modePaused
	}
	st := rt.stateLocked(roomID, e.clock.Now())
	rt.mu.Unlock()

	log.Debug().
		Str("room_id", roomID.String()).
		Int("remaining", st.SecondsRemaining).
		Msg("timer paused")
	return st
}

// Resume restarts a paused countdown from its frozen remainder. Calling
// Resume while already running is a strict no-op: the live deadline must
// not be touched, or the elapsed time would be erased. Resuming with no
// time left also does nothing.
func (e *Engine) Resume(roomID uuid.UUID) State {
	e.mu.RLock()
	rt, ok := e.timers[roomID]
	e.mu.RUnlock()
	if !ok {
		return idleState(roomID)
	}

	rt.mu.Lock()
	if rt.mode == modeRunning {
		st := rt.stateLocked(roomID, e.clock.Now())
		rt.mu.Unlock()
		return st
	}
	if rt.remaining <= 0 {
		rt.mode = modeIdle
		st := rt.stateLocked(roomID, e.clock.Now())
		rt.mu.Unlock()
		return st
	}

	rt.cancelPendingLocked()
	rt.mode = modeRunning
	rt.endsAt = e.clock.Now().Add(time.Duration(rt.remaining) * time.Second)
	rt.remaining = 0
	e.scheduleLocked(roomID, rt)
	st := rt.stateLocked(roomID, e.clock.Now())
	rt.mu.Unlock()

	log.Debug().
		Str("room_id", roomID.String()).
		Int("remaining", st.SecondsRemaining).
		Msg("timer resumed")
	return st
}

func (e *Engine) timer(roomID uuid.UUID) *roomTimer {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.timers[roomID]
	if !ok {
		rt = &roomTimer{phase: models.PhaseFocus}
		e.timers[roomID] = rt
	}
	return rt
}

// scheduleLocked arms the completion timer for the current deadline.
// Must be called with rt.mu held and mode == modeRunning.
func (e *Engine) scheduleLocked(roomID uuid.UUID, rt *roomTimer) {
	gen := rt.gen
	timer := e.clock.NewTimer(rt.endsAt.Sub(e.clock.Now()))
	cancel := make(chan struct{})
	rt.pending = timer
	rt.cancel = cancel
	go e.awaitCompletion(roomID, rt, timer, cancel, gen)
}

// awaitCompletion waits for the scheduled deadline and performs the
// autonomous running->idle transition. The generation captured at
// scheduling time is re-checked under the lock, so a completion that
// raced a Start/Pause/Resume has zero observable effect.
func (e *Engine) awaitCompletion(roomID uuid.UUID, rt *roomTimer, t clockwork.Timer, cancel <-chan struct{}, gen uint64) {
	select {
	case <-t.Chan():
	case <-cancel:
		return
	}

	rt.mu.Lock()
	if rt.gen != gen || rt.mode != modeRunning {
		rt.mu.Unlock()
		return
	}
	rt.mode = modeIdle
	rt.remaining = 0
	rt.pending = nil
	rt.cancel = nil
	st := rt.stateLocked(roomID, e.clock.Now())
	rt.mu.Unlock()

	// Broadcast after releasing the lock: delivery is async I/O and the
	// transition must already be visible to Get by the time any
	// subscriber sees the event.
	e.bc.Publish(roomID.String(), EventTimerEnded, st)
	log.Info().
		Str("room_id", roomID.String()).
		Str("phase", st.Phase).
		Msg("timer ended")
}

// cancelPendingLocked invalidates any scheduled completion. Must be
// called with rt.mu held.
func (rt *roomTimer) cancelPendingLocked() {
	rt.gen++
	if rt.pending != nil {
		stopAndDrainTimer(rt.pending)
		rt.pending = nil
	}
	if rt.cancel != nil {
		close(rt.cancel)
		rt.cancel = nil
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, per the
// time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (rt *roomTimer) stateLocked(roomID uuid.UUID, now time.Time) State {
	st := State{
		RoomID:       roomID,
		TotalSeconds: rt.totalSeconds,
		Phase:        rt.phase,
	}
	switch rt.mode {
	case modeRunning:
		st.Running = true
		st.SecondsRemaining = ceilSeconds(rt.endsAt.Sub(now))
	case modePaused:
		st.SecondsRemaining = max(0, rt.remaining)
	}
	return st
}

func idleState(roomID uuid.UUID) State {
	return State{RoomID: roomID, Phase: models.PhaseIdle}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
