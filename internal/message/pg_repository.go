package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL, persisting private messages in `messages` and group messages
// in `ugroup_messages` as two physically distinct tables.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed message repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

func scanPrivate(row pgx.Row) (*PrivateMessage, error) {
	var m PrivateMessage
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Type, &m.Body, &m.TimestampMS); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanGroup(row pgx.Row) (*GroupMessage, error) {
	var m GroupMessage
	if err := row.Scan(&m.ID, &m.SenderID, &m.GroupID, &m.Type, &m.Body, &m.TimestampMS); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreatePrivate inserts a message row, assigning (id, timestamp) atomically from the database.
func (r *PGRepository) CreatePrivate(ctx context.Context, params CreatePrivateParams) (*PrivateMessage, error) {
	m := &PrivateMessage{SenderID: params.SenderID, ReceiverID: params.ReceiverID, Type: params.Type, Body: params.Body}
	err := r.db.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, message_type, message, timestamp)
		 VALUES ($1, $2, $3, $4, (extract(epoch from now()) * 1000)::bigint)
		 RETURNING id, timestamp`,
		params.SenderID, params.ReceiverID, params.Type, params.Body,
	).Scan(&m.ID, &m.TimestampMS)
	if err != nil {
		return nil, fmt.Errorf("insert private message: %w", err)
	}
	return m, nil
}

// CreateGroup inserts a group message row, assigning (id, timestamp) atomically from the database.
func (r *PGRepository) CreateGroup(ctx context.Context, params CreateGroupParams) (*GroupMessage, error) {
	m := &GroupMessage{SenderID: params.SenderID, GroupID: params.GroupID, Type: params.Type, Body: params.Body}
	err := r.db.QueryRow(ctx,
		`INSERT INTO ugroup_messages (group_id, sender_id, message_type, message, timestamp)
		 VALUES ($1, $2, $3, $4, (extract(epoch from now()) * 1000)::bigint)
		 RETURNING id, timestamp`,
		params.GroupID, params.SenderID, params.Type, params.Body,
	).Scan(&m.ID, &m.TimestampMS)
	if err != nil {
		return nil, fmt.Errorf("insert group message: %w", err)
	}
	return m, nil
}

// GetPrivateByID returns a single private message by id.
func (r *PGRepository) GetPrivateByID(ctx context.Context, id uint64) (*PrivateMessage, error) {
	m, err := scanPrivate(r.db.QueryRow(ctx,
		`SELECT id, sender_id, receiver_id, message_type, message, timestamp FROM messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query private message by id: %w", err)
	}
	return m, nil
}

// GetGroupByID returns a single group message by id.
func (r *PGRepository) GetGroupByID(ctx context.Context, id uint64) (*GroupMessage, error) {
	m, err := scanGroup(r.db.QueryRow(ctx,
		`SELECT id, sender_id, group_id, message_type, message, timestamp FROM ugroup_messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query group message by id: %w", err)
	}
	return m, nil
}

// ListPrivate returns the offset*PageSize..(offset+1)*PageSize-1 page of the conversation between userA and userB,
// ordered by timestamp ascending.
func (r *PGRepository) ListPrivate(ctx context.Context, userA, userB uint32, offset int) ([]PrivateMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sender_id, receiver_id, message_type, message, timestamp FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY timestamp ASC, id ASC
		 LIMIT $3 OFFSET $4`,
		userA, userB, PageSize, offset*PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query private message page: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanRowPrivate)
}

// LatestPrivate returns the most recent message between userA and userB.
func (r *PGRepository) LatestPrivate(ctx context.Context, userA, userB uint32) (*PrivateMessage, error) {
	m, err := scanPrivate(r.db.QueryRow(ctx,
		`SELECT id, sender_id, receiver_id, message_type, message, timestamp FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY timestamp DESC, id DESC LIMIT 1`,
		userA, userB,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest private message: %w", err)
	}
	return m, nil
}

// AfterPrivate returns every message after afterMS between userA and userB, ascending, capped at PageSize.
func (r *PGRepository) AfterPrivate(ctx context.Context, userA, userB uint32, afterMS int64) ([]PrivateMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sender_id, receiver_id, message_type, message, timestamp FROM messages
		 WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		   AND timestamp > $3
		 ORDER BY timestamp ASC, id ASC
		 LIMIT $4`,
		userA, userB, afterMS, PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query private messages after timestamp: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanRowPrivate)
}

// ListGroup mirrors ListPrivate for a group's message history.
func (r *PGRepository) ListGroup(ctx context.Context, groupID uint32, offset int) ([]GroupMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sender_id, group_id, message_type, message, timestamp FROM ugroup_messages
		 WHERE group_id = $1
		 ORDER BY timestamp ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		groupID, PageSize, offset*PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query group message page: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanRowGroup)
}

// LatestGroup mirrors LatestPrivate for a group.
func (r *PGRepository) LatestGroup(ctx context.Context, groupID uint32) (*GroupMessage, error) {
	m, err := scanGroup(r.db.QueryRow(ctx,
		`SELECT id, sender_id, group_id, message_type, message, timestamp FROM ugroup_messages
		 WHERE group_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1`,
		groupID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest group message: %w", err)
	}
	return m, nil
}

// AfterGroup mirrors AfterPrivate for a group.
func (r *PGRepository) AfterGroup(ctx context.Context, groupID uint32, afterMS int64) ([]GroupMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sender_id, group_id, message_type, message, timestamp FROM ugroup_messages
		 WHERE group_id = $1 AND timestamp > $2
		 ORDER BY timestamp ASC, id ASC
		 LIMIT $3`,
		groupID, afterMS, PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query group messages after timestamp: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanRowGroup)
}

// DeletePrivate removes a private message by id.
func (r *PGRepository) DeletePrivate(ctx context.Context, id uint64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete private message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup removes a group message by id.
func (r *PGRepository) DeleteGroup(ctx context.Context, id uint64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ugroup_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRowPrivate(row pgx.Rows) (PrivateMessage, error) {
	var m PrivateMessage
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Type, &m.Body, &m.TimestampMS)
	return m, err
}

func scanRowGroup(row pgx.Rows) (GroupMessage, error) {
	var m GroupMessage
	err := row.Scan(&m.ID, &m.SenderID, &m.GroupID, &m.Type, &m.Body, &m.TimestampMS)
	return m, err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
