package polls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/sqlutil"
)

// Repository implements poll data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new polls repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreatePoll inserts the poll and its options in one transaction.
func (r *Repository) CreatePoll(ctx context.Context, roomID uuid.UUID, createdBy, question string, options []string, expiresAt time.Time) (*models.Poll, error) {
	poll := &models.Poll{}
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO polls (id, room_id, question, created_by, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, room_id, question, created_by, created_at, expires_at, is_closed`,
			uuid.New(), roomID, question, createdBy, expiresAt)
		if err := row.Scan(&poll.ID, &poll.RoomID, &poll.Question, &poll.CreatedBy,
			&poll.CreatedAt, &poll.ExpiresAt, &poll.IsClosed); err != nil {
			return fmt.Errorf("failed to create poll: %w", err)
		}

		for i, text := range options {
			opt := models.PollOption{ID: uuid.New(), PollID: poll.ID, Text: text, Position: i}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO poll_options (id, poll_id, text, position)
				VALUES ($1, $2, $3, $4)`, opt.ID, opt.PollID, opt.Text, opt.Position); err != nil {
				return fmt.Errorf("failed to create poll option: %w", err)
			}
			poll.Options = append(poll.Options, opt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// GetPoll retrieves a poll with its options. Returns nil when the poll
// does not exist.
func (r *Repository) GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, room_id, question, created_by, created_at, expires_at, is_closed
		FROM polls WHERE id = $1`, id)

	var poll models.Poll
	if err := row.Scan(&poll.ID, &poll.RoomID, &poll.Question, &poll.CreatedBy,
		&poll.CreatedAt, &poll.ExpiresAt, &poll.IsClosed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	options, err := r.listOptions(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	poll.Options = options
	return &poll, nil
}

// ListPolls returns the room's polls with options, newest first.
func (r *Repository) ListPolls(ctx context.Context, roomID uuid.UUID) ([]models.Poll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, question, created_by, created_at, expires_at, is_closed
		FROM polls WHERE room_id = $1
		ORDER BY created_at DESC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var polls []models.Poll
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Question, &p.CreatedBy,
			&p.CreatedAt, &p.ExpiresAt, &p.IsClosed); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range polls {
		options, err := r.listOptions(ctx, polls[i].ID)
		if err != nil {
			return nil, err
		}
		polls[i].Options = options
	}
	return polls, nil
}

// RecordVote inserts the user's vote. Returns false when the user has
// already voted on this poll.
func (r *Repository) RecordVote(ctx context.Context, pollID, optionID uuid.UUID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, option_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (poll_id, user_id) DO NOTHING`, pollID, optionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to record vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read vote result: %w", err)
	}
	return n == 1, nil
}

// CountVotes tallies votes per option, including zero-vote options.
func (r *Repository) CountVotes(ctx context.Context, pollID uuid.UUID) ([]models.OptionCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, COUNT(v.user_id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.position
		ORDER BY o.position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	var counts []models.OptionCount
	for rows.Next() {
		var c models.OptionCount
		if err := rows.Scan(&c.OptionID, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DeletePoll removes a poll with its options and votes.
func (r *Repository) DeletePoll(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return nil
}

func (r *Repository) listOptions(ctx context.Context, pollID uuid.UUID) ([]models.PollOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, poll_id, text, position
		FROM poll_options WHERE poll_id = $1
		ORDER BY position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list poll options: %w", err)
	}
	defer rows.Close()

	var options []models.PollOption
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Text, &o.Position); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}
