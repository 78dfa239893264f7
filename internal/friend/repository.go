package friend

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wireline-chat/wireline-server/internal/postgres"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed friendship repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// Add inserts both directed rows in a single transaction; if either insert collides with an existing row the whole
// pair is treated as already-friends, since the invariant guarantees both rows exist or neither.
func (r *PGRepository) Add(ctx context.Context, userID, friendID uint32) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, pair := range [][2]uint32{{userID, friendID}, {friendID, userID}} {
			_, err := tx.Exec(ctx,
				`INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)`,
				pair[0], pair[1],
			)
			if err != nil {
				if postgres.IsUniqueViolation(err) {
					return ErrAlreadyFriends
				}
				return fmt.Errorf("insert friendship row: %w", err)
			}
		}
		return nil
	})
}

// Remove deletes both directed rows in a single transaction.
func (r *PGRepository) Remove(ctx context.Context, userID, friendID uint32) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM friendships WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
			userID, friendID,
		)
		if err != nil {
			return fmt.Errorf("delete friendship rows: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFriends
		}
		return nil
	})
}

// List returns the ids of userID's friends.
func (r *PGRepository) List(ctx context.Context, userID uint32) ([]uint32, error) {
	rows, err := r.db.Query(ctx, `SELECT friend_id FROM friendships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	ids := make([]uint32, 0)
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Info returns display information for friendID, scoped to an existing friendship with userID.
func (r *PGRepository) Info(ctx context.Context, userID, friendID uint32) (*Info, error) {
	var info Info
	info.UserID = friendID
	err := r.db.QueryRow(ctx,
		`SELECT u.username, u.display_name
		 FROM friendships f JOIN users u ON u.id = f.friend_id
		 WHERE f.user_id = $1 AND f.friend_id = $2`,
		userID, friendID,
	).Scan(&info.Username, &info.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFriends
		}
		return nil, fmt.Errorf("query friend info: %w", err)
	}
	return &info, nil
}
