package rooms

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloomcircle/backend/internal/models"
)

// Repository handles room and membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rooms repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new room and adds the creator as its first member.
func (r *Repository) Create(ctx context.Context, room *models.Room) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO rooms (id, name, created_by) VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, room.Name, room.CreatedBy).Scan(&room.ID, &room.CreatedAt); err != nil {
		return err
	}
	const mq = `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)`
	if _, err := tx.Exec(ctx, mq, room.ID, room.CreatedBy); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns a room by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT id, name, created_by, created_at FROM rooms WHERE id = $1`
	var room models.Room
	err := r.pool.QueryRow(ctx, q, id).Scan(&room.ID, &room.Name, &room.CreatedBy, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListForUser returns the rooms the user belongs to.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	const q = `SELECT r.id, r.name, r.created_by, r.created_at
		FROM rooms r JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = $1 ORDER BY r.created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedBy, &room.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, room)
	}
	return list, rows.Err()
}

// Join adds a user to a room; joining twice is a no-op.
func (r *Repository) Join(ctx context.Context, roomID, userID uuid.UUID) error {
	const q = `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, roomID, userID)
	return err
}

// IsMember reports whether the user belongs to the room.
func (r *Repository) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, q, roomID, userID).Scan(&ok)
	return ok, err
}

// ListMembers returns the roster in join order. Mention autocomplete relies
// on this ordering being stable.
func (r *Repository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Member, error) {
	const q = `SELECT u.id, u.display_name, u.avatar_url
		FROM room_members m JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 ORDER BY m.joined_at`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.AvatarURL); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
