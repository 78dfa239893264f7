package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// selectColumns lists the columns returned by queries that produce a *User, in scan order.
const selectColumns = `id, username, display_name, role, avatar_url, password_hash, friends_updated_at,
	groups_updated_at, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.AvatarURL, &u.PasswordHash,
		&u.FriendsUpdatedAt, &u.GroupsUpdatedAt, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if !ValidRole(u.Role) {
		return nil, fmt.Errorf("scan user: invalid stored role %d", u.Role)
	}
	return &u, nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed user repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Create inserts a new user with the default role and display name equal to the username, returning the assigned id.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (uint32, error) {
	var id uint32
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, display_name, role, password_hash)
		 VALUES ($1, $1, $2, $3)
		 RETURNING id`,
		params.Username, RoleUser, params.PasswordHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// GetByID returns the user matching the given id.
func (r *PGRepository) GetByID(ctx context.Context, id uint32) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

// GetByUsername returns the user matching the given username, used on the login path.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by username: %w", err)
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored password hash for a user.
func (r *PGRepository) UpdatePasswordHash(ctx context.Context, id uint32, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchFriendsUpdatedAt bumps the user's friends_updated_at to now, signalling friend-list cache consumers to
// refresh.
func (r *PGRepository) TouchFriendsUpdatedAt(ctx context.Context, id uint32) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET friends_updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch friends_updated_at: %w", err)
	}
	return nil
}

// TouchGroupsUpdatedAt bumps the user's groups_updated_at to now.
func (r *PGRepository) TouchGroupsUpdatedAt(ctx context.Context, id uint32) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET groups_updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch groups_updated_at: %w", err)
	}
	return nil
}

// Delete removes a user row. Foreign keys on friendships, group_members, and messages cascade the removal.
func (r *PGRepository) Delete(ctx context.Context, id uint32) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
