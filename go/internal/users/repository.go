package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/sqlutil"
)

// Repository implements user data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_name, display_name, created_at FROM users WHERE id = $1`, id)

	var u models.User
	var displayName sql.NullString
	if err := row.Scan(&u.ID, &u.UserName, &displayName, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.DisplayName = sqlutil.FromSqlString(displayName)
	return &u, nil
}

// UpsertUser creates the user on first sight and refreshes the username
// on later sights.
func (r *Repository) UpsertUser(ctx context.Context, id, userName string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, user_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET user_name = EXCLUDED.user_name
		RETURNING id, user_name, display_name, created_at`, id, userName)

	var u models.User
	var displayName sql.NullString
	if err := row.Scan(&u.ID, &u.UserName, &displayName, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	u.DisplayName = sqlutil.FromSqlString(displayName)
	return &u, nil
}

// ResolveDisplayNames maps user IDs to their display names (falling back
// to the username). Unknown IDs are simply absent from the result.
func (r *Repository) ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	// The pgx stdlib driver binds []string as a text[] parameter.
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(NULLIF(display_name, ''), user_name) FROM users WHERE id = ANY($1)`,
		userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve display names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(userIDs))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan display name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
