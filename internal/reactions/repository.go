package reactions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloomcircle/backend/internal/models"
)

// Repository handles reaction persistence. Each user holds at most one
// reaction per message; the (message_id, user_id) primary key enforces it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reactions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Toggle applies one reaction tap and returns the message's full reaction
// collection afterwards. No existing reaction inserts, tapping the held
// emoji removes it, tapping a different emoji replaces it.
func (r *Repository) Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) ([]models.Reaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const currentQ = `SELECT emoji FROM reactions WHERE message_id = $1 AND user_id = $2 FOR UPDATE`
	var current string
	err = tx.QueryRow(ctx, currentQ, messageID, userID).Scan(&current)
	switch {
	case err == pgx.ErrNoRows:
		const insertQ = `INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, insertQ, messageID, userID, emoji); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case current == emoji:
		const deleteQ = `DELETE FROM reactions WHERE message_id = $1 AND user_id = $2`
		if _, err := tx.Exec(ctx, deleteQ, messageID, userID); err != nil {
			return nil, err
		}
	default:
		const updateQ = `UPDATE reactions SET emoji = $3, created_at = NOW() WHERE message_id = $1 AND user_id = $2`
		if _, err := tx.Exec(ctx, updateQ, messageID, userID, emoji); err != nil {
			return nil, err
		}
	}

	list, err := listTx(ctx, tx, messageID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return list, nil
}

// ListForMessage returns the full reaction collection of a message.
func (r *Repository) ListForMessage(ctx context.Context, messageID uuid.UUID) ([]models.Reaction, error) {
	return listTx(ctx, r.pool, messageID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listTx(ctx context.Context, q querier, messageID uuid.UUID) ([]models.Reaction, error) {
	const listQ = `SELECT r.user_id, r.emoji, u.display_name, u.avatar_url
		FROM reactions r JOIN users u ON u.id = r.user_id
		WHERE r.message_id = $1 ORDER BY r.created_at`
	rows, err := q.Query(ctx, listQ, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Reaction{}
	for rows.Next() {
		var re models.Reaction
		if err := rows.Scan(&re.UserID, &re.Emoji, &re.DisplayName, &re.AvatarURL); err != nil {
			return nil, err
		}
		list = append(list, re)
	}
	return list, rows.Err()
}
