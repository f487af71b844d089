package messages

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
)

type fakeMessageRepo struct {
	appended []models.Message
	lastTake int
}

func (f *fakeMessageRepo) AppendMessage(ctx context.Context, roomID uuid.UUID, userID, content string) (*models.Message, error) {
	msg := models.Message{ID: uuid.New(), RoomID: roomID, UserID: userID, Content: content}
	f.appended = append(f.appended, msg)
	return &msg, nil
}

func (f *fakeMessageRepo) ListBefore(ctx context.Context, roomID uuid.UUID, before time.Time, take int) ([]models.Message, error) {
	f.lastTake = take
	return nil, nil
}

func TestAppendMessageRejectsBlank(t *testing.T) {
	repo := &fakeMessageRepo{}
	app := NewApp(repo)

	if _, err := app.AppendMessage(context.Background(), uuid.New(), "u1", "   \t"); err == nil {
		t.Error("expected error for whitespace content")
	}
	if len(repo.appended) != 0 {
		t.Errorf("nothing should be persisted, got %d", len(repo.appended))
	}

	if _, err := app.AppendMessage(context.Background(), uuid.New(), "u1", "hello"); err != nil {
		t.Errorf("AppendMessage: %v", err)
	}
}

func TestHistoryClampsPageSize(t *testing.T) {
	repo := &fakeMessageRepo{}
	app := NewApp(repo)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		take int
		want int
	}{
		{0, 20},
		{-5, 20},
		{50, 50},
		{500, maxHistoryPage},
	}
	for _, tt := range tests {
		if _, err := app.History(ctx, uuid.New(), now, tt.take); err != nil {
			t.Fatalf("History(take=%d): %v", tt.take, err)
		}
		if repo.lastTake != tt.want {
			t.Errorf("History(take=%d) asked repo for %d, want %d", tt.take, repo.lastTake, tt.want)
		}
	}
}
