package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker records which user IDs are currently connected to which room,
// independent of how many physical connections each user holds. Room
// entries are created lazily on first Join and removed as soon as the
// last user leaves, so abandoned rooms never accumulate.
//
// Rooms are kept in a sync.Map with a small locked set per room rather
// than behind one process-wide lock, so traffic in unrelated rooms never
// serializes.
type Tracker struct {
	rooms sync.Map // uuid.UUID -> *roomSet
}

type roomSet struct {
	mu sync.Mutex
	// dead marks a set that has been removed from the map; a Join that
	// raced the removal must retry against a fresh set.
	dead  bool
	users map[string]struct{}
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Join adds userID to the room's online set. Idempotent: joining twice,
// or from a second connection, counts once.
func (t *Tracker) Join(roomID uuid.UUID, userID string) {
	for {
		v, _ := t.rooms.LoadOrStore(roomID, &roomSet{users: make(map[string]struct{})})
		rs := v.(*roomSet)
		rs.mu.Lock()
		if rs.dead {
			rs.mu.Unlock()
			continue
		}
		rs.users[userID] = struct{}{}
		rs.mu.Unlock()
		return
	}
}

// Leave removes userID from the room's online set. When the set empties
// the room entry itself is dropped.
func (t *Tracker) Leave(roomID uuid.UUID, userID string) {
	v, ok := t.rooms.Load(roomID)
	if !ok {
		return
	}
	rs := v.(*roomSet)
	rs.mu.Lock()
	delete(rs.users, userID)
	if len(rs.users) == 0 && !rs.dead {
		rs.dead = true
		t.rooms.Delete(roomID)
	}
	rs.mu.Unlock()
}

// OnlineCount returns the number of distinct users online in the room,
// or 0 for an unknown room.
func (t *Tracker) OnlineCount(roomID uuid.UUID) int {
	v, ok := t.rooms.Load(roomID)
	if !ok {
		return 0
	}
	rs := v.(*roomSet)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.users)
}

// AllCounts returns a snapshot of every tracked room's online count.
func (t *Tracker) AllCounts() map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	t.rooms.Range(func(key, value any) bool {
		rs := value.(*roomSet)
		rs.mu.Lock()
		n := len(rs.users)
		rs.mu.Unlock()
		if n > 0 {
			counts[key.(uuid.UUID)] = n
		}
		return true
	})
	return counts
}

// OnlineUserIDs returns a snapshot of the user IDs online in the room.
func (t *Tracker) OnlineUserIDs(roomID uuid.UUID) []string {
	v, ok := t.rooms.Load(roomID)
	if !ok {
		return nil
	}
	rs := v.(*roomSet)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ids := make([]string, 0, len(rs.users))
	for id := range rs.users {
		ids = append(ids, id)
	}
	return ids
}
