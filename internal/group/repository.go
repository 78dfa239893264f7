package group

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

// NewPGRepository creates a new PostgreSQL-backed group repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// Create inserts the group row and the creator's membership row in a single transaction.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (*Group, error) {
	g := &Group{Title: params.Title, CreatorID: params.CreatorID}
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO ugroups (name, creator_id) VALUES ($1, $2) RETURNING id, created_at`,
			params.Title, params.CreatorID,
		).Scan(&g.ID, &g.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`,
			g.ID, params.CreatorID,
		)
		if err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByID returns the group matching id.
func (r *PGRepository) GetByID(ctx context.Context, id uint32) (*Group, error) {
	var g Group
	g.ID = id
	err := r.db.QueryRow(ctx,
		`SELECT name, creator_id, created_at FROM ugroups WHERE id = $1`, id,
	).Scan(&g.Title, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query group by id: %w", err)
	}
	return &g, nil
}

// Members returns the authoritative member id set for a group.
func (r *PGRepository) Members(ctx context.Context, id uint32) ([]uint32, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	ids := make([]uint32, 0)
	for rows.Next() {
		var uid uint32
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, uid)
	}
	return ids, rows.Err()
}

// Join inserts userID into group id's membership.
func (r *PGRepository) Join(ctx context.Context, id, userID uint32) error {
	_, err := r.db.Exec(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, id, userID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyMember
		}
		if postgres.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert group membership: %w", err)
	}
	return nil
}

// Leave removes userID from group id's membership.
func (r *PGRepository) Leave(ctx context.Context, id, userID uint32) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete group membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// IsMember reports whether userID belongs to group id.
func (r *PGRepository) IsMember(ctx context.Context, id, userID uint32) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`, id, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return exists, nil
}

// ListForUser returns the ids of every group userID belongs to.
func (r *PGRepository) ListForUser(ctx context.Context, userID uint32) ([]uint32, error) {
	rows, err := r.db.Query(ctx, `SELECT group_id FROM group_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query groups for user: %w", err)
	}
	defer rows.Close()

	ids := make([]uint32, 0)
	for rows.Next() {
		var gid uint32
		if err := rows.Scan(&gid); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, gid)
	}
	return ids, rows.Err()
}

// Delete removes a group row. Foreign keys on group_members and ugroup_messages cascade the removal.
func (r *PGRepository) Delete(ctx context.Context, id uint32) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ugroups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
