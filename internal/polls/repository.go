package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloomcircle/backend/internal/models"
)

// ErrOptionNotFound is returned when a vote targets an option that does not
// exist or belongs to a different poll.
var ErrOptionNotFound = errors.New("poll option not found")

// Repository handles poll persistence. A poll is always attached to exactly
// one message; creating a poll creates its carrier message in the same
// transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the carrier message, the poll and its options in one
// transaction and returns the full poll-bearing message.
func (r *Repository) Create(ctx context.Context, roomID, authorID uuid.UUID, question string, options []string, multiSelect bool) (*models.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	m := models.Message{
		RoomID:    roomID,
		AuthorID:  &authorID,
		Kind:      models.KindUser,
		Reactions: []models.Reaction{},
	}
	const authorQ = `SELECT display_name, avatar_url FROM users WHERE id = $1`
	if err := tx.QueryRow(ctx, authorQ, authorID).Scan(&m.AuthorName, &m.AuthorAvatar); err != nil {
		return nil, err
	}

	const msgQ = `INSERT INTO messages (id, room_id, author_id, kind) VALUES (gen_random_uuid(), $1, $2, 'user')
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, msgQ, roomID, authorID).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, err
	}

	p := models.Poll{Question: question, MultiSelect: multiSelect}
	const pollQ = `INSERT INTO polls (id, room_id, message_id, question, multi_select)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id`
	if err := tx.QueryRow(ctx, pollQ, roomID, m.ID, question, multiSelect).Scan(&p.ID); err != nil {
		return nil, err
	}

	const optQ = `INSERT INTO poll_options (id, poll_id, label, position) VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id`
	for i, label := range options {
		opt := models.PollOption{Label: label, Votes: []models.Vote{}}
		if err := tx.QueryRow(ctx, optQ, p.ID, label, i).Scan(&opt.ID); err != nil {
			return nil, err
		}
		p.Options = append(p.Options, opt)
	}
	m.Poll = &p

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &m, nil
}

// ToggleVote applies one vote tap and returns the poll's full state
// afterwards, along with the carrier message ID. Tapping a held option
// removes the vote. On a single-select poll a new vote first clears the
// user's votes on sibling options.
func (r *Repository) ToggleVote(ctx context.Context, optionID, userID uuid.UUID) (uuid.UUID, *models.Poll, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer tx.Rollback(ctx)

	const lookupQ = `SELECT p.id, p.message_id, p.multi_select
		FROM poll_options o JOIN polls p ON p.id = o.poll_id
		WHERE o.id = $1`
	var pollID, messageID uuid.UUID
	var multiSelect bool
	err = tx.QueryRow(ctx, lookupQ, optionID).Scan(&pollID, &messageID, &multiSelect)
	if err == pgx.ErrNoRows {
		return uuid.Nil, nil, ErrOptionNotFound
	}
	if err != nil {
		return uuid.Nil, nil, err
	}

	const heldQ = `SELECT EXISTS (SELECT 1 FROM poll_votes WHERE option_id = $1 AND user_id = $2)`
	var held bool
	if err := tx.QueryRow(ctx, heldQ, optionID, userID).Scan(&held); err != nil {
		return uuid.Nil, nil, err
	}

	if held {
		const deleteQ = `DELETE FROM poll_votes WHERE option_id = $1 AND user_id = $2`
		if _, err := tx.Exec(ctx, deleteQ, optionID, userID); err != nil {
			return uuid.Nil, nil, err
		}
	} else {
		if !multiSelect {
			const clearQ = `DELETE FROM poll_votes WHERE user_id = $1
				AND option_id IN (SELECT id FROM poll_options WHERE poll_id = $2)`
			if _, err := tx.Exec(ctx, clearQ, userID, pollID); err != nil {
				return uuid.Nil, nil, err
			}
		}
		const insertQ = `INSERT INTO poll_votes (option_id, user_id) VALUES ($1, $2)`
		if _, err := tx.Exec(ctx, insertQ, optionID, userID); err != nil {
			return uuid.Nil, nil, err
		}
	}

	poll, err := loadPollTx(ctx, tx, pollID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, nil, err
	}
	return messageID, poll, nil
}

// RoomOfOption returns the room that owns the option's carrier message.
func (r *Repository) RoomOfOption(ctx context.Context, optionID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT m.room_id
		FROM poll_options o
		JOIN polls p ON p.id = o.poll_id
		JOIN messages m ON m.id = p.message_id
		WHERE o.id = $1`
	var roomID uuid.UUID
	err := r.pool.QueryRow(ctx, q, optionID).Scan(&roomID)
	if err == pgx.ErrNoRows {
		return uuid.Nil, ErrOptionNotFound
	}
	return roomID, err
}

func loadPollTx(ctx context.Context, tx pgx.Tx, pollID uuid.UUID) (*models.Poll, error) {
	var p models.Poll
	const pollQ = `SELECT id, question, multi_select FROM polls WHERE id = $1`
	if err := tx.QueryRow(ctx, pollQ, pollID).Scan(&p.ID, &p.Question, &p.MultiSelect); err != nil {
		return nil, err
	}

	const optQ = `SELECT id, label FROM poll_options WHERE poll_id = $1 ORDER BY position`
	rows, err := tx.Query(ctx, optQ, pollID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.Label); err != nil {
			rows.Close()
			return nil, err
		}
		o.Votes = []models.Vote{}
		p.Options = append(p.Options, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const voteQ = `SELECT v.option_id, v.user_id, u.display_name, u.avatar_url
		FROM poll_votes v
		JOIN poll_options o ON o.id = v.option_id
		JOIN users u ON u.id = v.user_id
		WHERE o.poll_id = $1 ORDER BY v.voted_at`
	rows, err = tx.Query(ctx, voteQ, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var optionID uuid.UUID
		var v models.Vote
		if err := rows.Scan(&optionID, &v.UserID, &v.DisplayName, &v.AvatarURL); err != nil {
			return nil, err
		}
		for i := range p.Options {
			if p.Options[i].ID == optionID {
				p.Options[i].Votes = append(p.Options[i].Votes, v)
				break
			}
		}
	}
	return &p, rows.Err()
}
