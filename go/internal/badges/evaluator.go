package badges

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/models"
)

// BadgeRepository defines what the evaluator needs from badge storage.
type BadgeRepository interface {
	ListBadges(ctx context.Context, keys []string) ([]models.Badge, error)
	ListOwnedBadgeIDs(ctx context.Context, userID string) ([]int, error)
	AwardBadges(ctx context.Context, userID string, badgeIDs []int) error
}

// SessionStats defines the session aggregates the predicates feed on.
type SessionStats interface {
	CountFocusSessions(ctx context.Context, userID string) (int, error)
	DistinctFocusDaysSince(ctx context.Context, userID string, fromDateUTC time.Time) ([]time.Time, error)
}

// Evaluator runs the badge award predicates after each session persist.
// Awarding is idempotent: a badge already owned is never returned as
// newly earned, and all new awards land in one batched persist.
type Evaluator struct {
	repo  BadgeRepository
	stats SessionStats
	clock clockwork.Clock
	local *time.Location
}

// NewEvaluator creates the evaluator. local is the timezone used for
// the early bird predicate; pass time.Local in production.
func NewEvaluator(repo BadgeRepository, stats SessionStats, clock clockwork.Clock, local *time.Location) *Evaluator {
	if local == nil {
		local = time.Local
	}
	return &Evaluator{repo: repo, stats: stats, clock: clock, local: local}
}

// EvaluateOnSession evaluates every predicate against the user's
// history (inclusive of the session just persisted) and returns the
// badges newly awarded by this session.
func (e *Evaluator) EvaluateOnSession(ctx context.Context, userID string, sessionStartUTC time.Time, durationSeconds int) ([]models.Badge, error) {
	keys := []string{models.BadgeEarlyBird, models.BadgeFocusMaster10, models.BadgeConsistency7}
	all, err := e.repo.ListBadges(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	byKey := make(map[string]models.Badge, len(all))
	for _, b := range all {
		byKey[b.Key] = b
	}

	ownedIDs, err := e.repo.ListOwnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owned badges: %w", err)
	}
	owned := make(map[int]bool, len(ownedIDs))
	for _, id := range ownedIDs {
		owned[id] = true
	}

	var awarded []models.Badge
	award := func(key string, qualifies func() (bool, error)) error {
		b, exists := byKey[key]
		if !exists || owned[b.ID] {
			return nil
		}
		ok, err := qualifies()
		if err != nil || !ok {
			return err
		}
		awarded = append(awarded, b)
		return nil
	}

	if err := award(models.BadgeEarlyBird, func() (bool, error) {
		return QualifiesEarlyBird(sessionStartUTC.In(e.local)), nil
	}); err != nil {
		return nil, err
	}

	if err := award(models.BadgeFocusMaster10, func() (bool, error) {
		count, err := e.stats.CountFocusSessions(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("failed to count focus sessions: %w", err)
		}
		return QualifiesFocusMaster(count), nil
	}); err != nil {
		return nil, err
	}

	if err := award(models.BadgeConsistency7, func() (bool, error) {
		today := e.clock.Now().UTC()
		from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -6)
		days, err := e.stats.DistinctFocusDaysSince(ctx, userID, from)
		if err != nil {
			return false, fmt.Errorf("failed to list focus days: %w", err)
		}
		return QualifiesConsistency(days, today), nil
	}); err != nil {
		return nil, err
	}

	if len(awarded) > 0 {
		ids := make([]int, 0, len(awarded))
		for _, b := range awarded {
			ids = append(ids, b.ID)
		}
		if err := e.repo.AwardBadges(ctx, userID, ids); err != nil {
			return nil, fmt.Errorf("failed to persist badge awards: %w", err)
		}
		log.Info().
			Str("user_id", userID).
			Int("awards", len(awarded)).
			Msg("badges awarded")
	}
	return awarded, nil
}
