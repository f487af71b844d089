package badges

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/sqlutil"
)

// Repository implements badge data access.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new badges repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListBadges returns the badge definitions for the given keys.
func (r *Repository) ListBadges(ctx context.Context, keys []string) ([]models.Badge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, key, name, description, icon FROM badges WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var out []models.Badge
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.ID, &b.Key, &b.Name, &b.Description, &b.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListOwnedBadgeIDs returns the IDs of badges the user already holds.
func (r *Repository) ListOwnedBadgeIDs(ctx context.Context, userID string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned badges: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owned badge: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOwnedBadges returns the full badge definitions the user holds,
// newest award first.
func (r *Repository) ListOwnedBadges(ctx context.Context, userID string) ([]models.Badge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.key, b.name, b.description, b.icon
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.awarded_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	var out []models.Badge
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.ID, &b.Key, &b.Name, &b.Description, &b.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AwardBadges inserts all award records in one transaction. Re-awarding
// an already-held badge is a silent no-op.
func (r *Repository) AwardBadges(ctx context.Context, userID string, badgeIDs []int) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, id := range badgeIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_badges (user_id, badge_id)
				VALUES ($1, $2)
				ON CONFLICT (user_id, badge_id) DO NOTHING`, userID, id); err != nil {
				return fmt.Errorf("failed to award badge %d: %w", id, err)
			}
		}
		return nil
	})
}

// SeedCatalog inserts the built-in badge definitions if missing.
func (r *Repository) SeedCatalog(ctx context.Context) error {
	seed := []models.Badge{
		{Key: models.BadgeEarlyBird, Name: "Early Bird", Description: "Start a focus session before 7 AM", Icon: "🌅"},
		{Key: models.BadgeFocusMaster10, Name: "Focus Master", Description: "Complete 10 focus sessions", Icon: "🎯"},
		{Key: models.BadgeConsistency7, Name: "Consistency", Description: "Focus every day for 7 days straight", Icon: "🔥"},
	}
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, b := range seed {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO badges (key, name, description, icon)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (key) DO NOTHING`, b.Key, b.Name, b.Description, b.Icon); err != nil {
				return fmt.Errorf("failed to seed badge %s: %w", b.Key, err)
			}
		}
		return nil
	})
}
