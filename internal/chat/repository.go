package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloomcircle/backend/internal/models"
)

// ErrReplyTargetNotFound is returned when the quoted message does not exist
// in the room the send is addressed to.
var ErrReplyTargetNotFound = errors.New("reply target not found")

// Repository handles message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByRoom returns the most recent messages of a room in chronological
// order, each carrying its full reaction collection and, for poll-bearing
// messages, the poll with all vote sets.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	const q = `SELECT id, room_id, author_id, author_name, author_avatar, body, kind, reply_to_id, reply_body, reply_author, created_at FROM (
			SELECT m.id, m.room_id, m.author_id,
				COALESCE(u.display_name, '') AS author_name,
				COALESCE(u.avatar_url, '') AS author_avatar,
				m.body, m.kind, m.reply_to_id, m.reply_body, m.reply_author, m.created_at
			FROM messages m LEFT JOIN users u ON u.id = m.author_id
			WHERE m.room_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) recent ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Message
	var ids []uuid.UUID
	for rows.Next() {
		var m models.Message
		var replyToID *uuid.UUID
		var replyBody, replyAuthor *string
		if err := rows.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.AuthorName, &m.AuthorAvatar,
			&m.Body, &m.Kind, &replyToID, &replyBody, &replyAuthor, &m.CreatedAt); err != nil {
			return nil, err
		}
		if replyToID != nil {
			m.ReplyTo = &models.ReplySnapshot{MessageID: *replyToID}
			if replyBody != nil {
				m.ReplyTo.Body = *replyBody
			}
			if replyAuthor != nil {
				m.ReplyTo.AuthorName = *replyAuthor
			}
		}
		m.Reactions = []models.Reaction{}
		list = append(list, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	if err := r.attachReactions(ctx, list, ids); err != nil {
		return nil, err
	}
	if err := r.attachPolls(ctx, list, ids); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repository) attachReactions(ctx context.Context, list []models.Message, ids []uuid.UUID) error {
	const q = `SELECT r.message_id, r.user_id, r.emoji, u.display_name, u.avatar_url
		FROM reactions r JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ANY($1) ORDER BY r.created_at`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Message, len(list))
	for i := range list {
		byID[list[i].ID] = &list[i]
	}
	for rows.Next() {
		var messageID uuid.UUID
		var re models.Reaction
		if err := rows.Scan(&messageID, &re.UserID, &re.Emoji, &re.DisplayName, &re.AvatarURL); err != nil {
			return err
		}
		if m, ok := byID[messageID]; ok {
			m.Reactions = append(m.Reactions, re)
		}
	}
	return rows.Err()
}

func (r *Repository) attachPolls(ctx context.Context, list []models.Message, ids []uuid.UUID) error {
	const pollQ = `SELECT id, message_id, question, multi_select FROM polls WHERE message_id = ANY($1)`
	rows, err := r.pool.Query(ctx, pollQ, ids)
	if err != nil {
		return err
	}
	polls := make(map[uuid.UUID]*models.Poll) // pollID -> poll
	messageOf := make(map[uuid.UUID]uuid.UUID)
	var pollIDs []uuid.UUID
	for rows.Next() {
		var p models.Poll
		var messageID uuid.UUID
		if err := rows.Scan(&p.ID, &messageID, &p.Question, &p.MultiSelect); err != nil {
			rows.Close()
			return err
		}
		polls[p.ID] = &p
		messageOf[p.ID] = messageID
		pollIDs = append(pollIDs, p.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(pollIDs) == 0 {
		return nil
	}

	const optQ = `SELECT id, poll_id, label FROM poll_options WHERE poll_id = ANY($1) ORDER BY position`
	rows, err = r.pool.Query(ctx, optQ, pollIDs)
	if err != nil {
		return err
	}
	optionPoll := make(map[uuid.UUID]uuid.UUID) // optionID -> pollID
	var optionIDs []uuid.UUID
	for rows.Next() {
		var o models.PollOption
		var pollID uuid.UUID
		if err := rows.Scan(&o.ID, &pollID, &o.Label); err != nil {
			rows.Close()
			return err
		}
		o.Votes = []models.Vote{}
		polls[pollID].Options = append(polls[pollID].Options, o)
		optionPoll[o.ID] = pollID
		optionIDs = append(optionIDs, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(optionIDs) > 0 {
		const voteQ = `SELECT v.option_id, v.user_id, u.display_name, u.avatar_url
			FROM poll_votes v JOIN users u ON u.id = v.user_id
			WHERE v.option_id = ANY($1) ORDER BY v.voted_at`
		rows, err = r.pool.Query(ctx, voteQ, optionIDs)
		if err != nil {
			return err
		}
		for rows.Next() {
			var optionID uuid.UUID
			var v models.Vote
			if err := rows.Scan(&optionID, &v.UserID, &v.DisplayName, &v.AvatarURL); err != nil {
				rows.Close()
				return err
			}
			pollID := optionPoll[optionID]
			opts := polls[pollID].Options
			for i := range opts {
				if opts[i].ID == optionID {
					opts[i].Votes = append(opts[i].Votes, v)
					break
				}
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	byID := make(map[uuid.UUID]*models.Message, len(list))
	for i := range list {
		byID[list[i].ID] = &list[i]
	}
	for pollID, p := range polls {
		if m, ok := byID[messageOf[pollID]]; ok {
			m.Poll = p
		}
	}
	return nil
}

// CreateUserMessage inserts a user message. When replyToID is set, the
// quoted body and author name are copied into the new row at insert time;
// the quote never changes afterwards even if the original does.
func (r *Repository) CreateUserMessage(ctx context.Context, roomID, authorID uuid.UUID, body string, replyToID *uuid.UUID) (*models.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	m := models.Message{
		RoomID:    roomID,
		AuthorID:  &authorID,
		Body:      &body,
		Kind:      models.KindUser,
		Reactions: []models.Reaction{},
	}

	const authorQ = `SELECT display_name, avatar_url FROM users WHERE id = $1`
	if err := tx.QueryRow(ctx, authorQ, authorID).Scan(&m.AuthorName, &m.AuthorAvatar); err != nil {
		return nil, err
	}

	var replyBody, replyAuthor *string
	if replyToID != nil {
		const quoteQ = `SELECT COALESCE(m.body, ''), COALESCE(u.display_name, '')
			FROM messages m LEFT JOIN users u ON u.id = m.author_id
			WHERE m.id = $1 AND m.room_id = $2`
		var qb, qa string
		err := tx.QueryRow(ctx, quoteQ, *replyToID, roomID).Scan(&qb, &qa)
		if err == pgx.ErrNoRows {
			return nil, ErrReplyTargetNotFound
		}
		if err != nil {
			return nil, err
		}
		replyBody, replyAuthor = &qb, &qa
		m.ReplyTo = &models.ReplySnapshot{MessageID: *replyToID, Body: qb, AuthorName: qa}
	}

	const q = `INSERT INTO messages (id, room_id, author_id, body, kind, reply_to_id, reply_body, reply_author)
		VALUES (gen_random_uuid(), $1, $2, $3, 'user', $4, $5, $6)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, roomID, authorID, body, replyToID, replyBody, replyAuthor).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateSystemMessage inserts an authorless system notice.
func (r *Repository) CreateSystemMessage(ctx context.Context, roomID uuid.UUID, body string) (*models.Message, error) {
	m := models.Message{
		RoomID:    roomID,
		Body:      &body,
		Kind:      models.KindSystem,
		Reactions: []models.Reaction{},
	}
	const q = `INSERT INTO messages (id, room_id, body, kind) VALUES (gen_random_uuid(), $1, $2, 'system')
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, roomID, body).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// RoomOf returns the room a message belongs to.
func (r *Repository) RoomOf(ctx context.Context, messageID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT room_id FROM messages WHERE id = $1`
	var roomID uuid.UUID
	err := r.pool.QueryRow(ctx, q, messageID).Scan(&roomID)
	return roomID, err
}
