package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/sqlutil"
)

// Repository implements room data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new rooms repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRoom inserts the room and its owner membership in one transaction.
func (r *Repository) CreateRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*models.Room, error) {
	room := &models.Room{}
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO rooms (id, name, subject, description, is_private, join_code, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, name, subject, description, is_private, join_code, owner_id, created_at`,
			uuid.New(), req.Name, req.Subject, req.Description, req.IsPrivate,
			sqlutil.ToSqlString(nullIfEmpty(req.JoinCode)), ownerID)
		if err := scanRoom(row, room); err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id, role)
			VALUES ($1, $2, $3)`, room.ID, ownerID, models.RoomRoleOwner); err != nil {
			return fmt.Errorf("failed to add owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by ID. Returns nil when the room does not exist.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, subject, description, is_private, join_code, owner_id, created_at
		FROM rooms WHERE id = $1`, id)

	var room models.Room
	if err := scanRoom(row, &room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// ListRooms returns rooms matching the filter with their member counts,
// newest first. Ordering by live activity happens above this layer.
func (r *Repository) ListRooms(ctx context.Context, filter ExploreFilter) ([]models.RoomCard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.subject, r.description, r.is_private, r.join_code, r.owner_id, r.created_at,
		       COUNT(m.user_id) AS member_count
		FROM rooms r
		LEFT JOIN room_members m ON m.room_id = r.id
		WHERE ($1 = '' OR r.name ILIKE '%' || $1 || '%' OR COALESCE(r.description, '') ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR r.subject = $2)
		GROUP BY r.id
		ORDER BY r.created_at DESC`, filter.Search, filter.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var cards []models.RoomCard
	for rows.Next() {
		var c models.RoomCard
		var subject, description, joinCode sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &subject, &description, &c.IsPrivate,
			&joinCode, &c.OwnerID, &c.CreatedAt, &c.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan room card: %w", err)
		}
		c.Subject = sqlutil.FromSqlString(subject)
		c.Description = sqlutil.FromSqlString(description)
		c.JoinCode = sqlutil.FromSqlString(joinCode)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// AddMember records a user's membership. Joining twice is a no-op.
func (r *Repository) AddMember(ctx context.Context, roomID uuid.UUID, userID string, role models.RoomRole) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID, role); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember drops a user's membership.
func (r *Repository) RemoveMember(ctx context.Context, roomID uuid.UUID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the room.
func (r *Repository) IsMember(ctx context.Context, roomID uuid.UUID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// GetMemberRole returns the user's role in the room, or "" for non-members.
func (r *Repository) GetMemberRole(ctx context.Context, roomID uuid.UUID, userID string) (models.RoomRole, error) {
	var role models.RoomRole
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM room_members WHERE room_id = $1 AND user_id = $2`,
		roomID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	return role, nil
}

// ListMembers returns the room's membership records, oldest first.
func (r *Repository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT room_id, user_id, role, joined_at
		FROM room_members WHERE room_id = $1
		ORDER BY joined_at ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.RoomMember
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner, room *models.Room) error {
	var subject, description, joinCode sql.NullString
	if err := row.Scan(&room.ID, &room.Name, &subject, &description,
		&room.IsPrivate, &joinCode, &room.OwnerID, &room.CreatedAt); err != nil {
		return err
	}
	room.Subject = sqlutil.FromSqlString(subject)
	room.Description = sqlutil.FromSqlString(description)
	room.JoinCode = sqlutil.FromSqlString(joinCode)
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
