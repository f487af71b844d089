package presence

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestJoinLeaveCounts(t *testing.T) {
	tr := NewTracker()
	room := uuid.New()

	if got := tr.OnlineCount(room); got != 0 {
		t.Fatalf("OnlineCount on unknown room = %d, want 0", got)
	}

	tr.Join(room, "alice")
	tr.Join(room, "bob")
	if got := tr.OnlineCount(room); got != 2 {
		t.Fatalf("OnlineCount = %d, want 2", got)
	}

	// Same user again, e.g. from a second tab, still counts once.
	tr.Join(room, "alice")
	if got := tr.OnlineCount(room); got != 2 {
		t.Fatalf("OnlineCount after duplicate join = %d, want 2", got)
	}

	tr.Leave(room, "alice")
	if got := tr.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount after leave = %d, want 1", got)
	}

	// Leaving a user who is not present is a no-op.
	tr.Leave(room, "carol")
	if got := tr.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount after stranger leave = %d, want 1", got)
	}
}

func TestEmptyRoomRemoved(t *testing.T) {
	tr := NewTracker()
	room := uuid.New()

	tr.Join(room, "alice")
	tr.Leave(room, "alice")

	if counts := tr.AllCounts(); len(counts) != 0 {
		t.Fatalf("AllCounts after last leave = %v, want empty", counts)
	}

	// The room must be joinable again after removal.
	tr.Join(room, "bob")
	if got := tr.OnlineCount(room); got != 1 {
		t.Fatalf("OnlineCount after rejoin = %d, want 1", got)
	}
}

func TestAllCountsSnapshot(t *testing.T) {
	tr := NewTracker()
	a, b := uuid.New(), uuid.New()

	tr.Join(a, "alice")
	tr.Join(a, "bob")
	tr.Join(b, "carol")

	counts := tr.AllCounts()
	if counts[a] != 2 || counts[b] != 1 {
		t.Fatalf("AllCounts = %v, want {%s:2 %s:1}", counts, a, b)
	}
}

func TestOnlineUserIDs(t *testing.T) {
	tr := NewTracker()
	room := uuid.New()

	if ids := tr.OnlineUserIDs(room); len(ids) != 0 {
		t.Fatalf("OnlineUserIDs on unknown room = %v, want empty", ids)
	}

	tr.Join(room, "alice")
	tr.Join(room, "bob")

	ids := tr.OnlineUserIDs(room)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	if len(ids) != 2 || !seen["alice"] || !seen["bob"] {
		t.Fatalf("OnlineUserIDs = %v, want alice and bob", ids)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	tr := NewTracker()
	room := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%10))
			for j := 0; j < 100; j++ {
				tr.Join(room, id)
				tr.OnlineCount(room)
				tr.Leave(room, id)
			}
		}(i)
	}
	wg.Wait()

	if got := tr.OnlineCount(room); got != 0 {
		t.Fatalf("OnlineCount after churn = %d, want 0", got)
	}
}
